// Copyright 2024 The PrometheusD Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package promhttp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	prometheusd "github.com/ivanovsergeyminsk/PrometheusD"
)

func TestHandlerServesExposition(t *testing.T) {
	registry := prometheusd.NewRegistry()
	counter, err := prometheusd.NewFactory(registry).NewCounter(prometheusd.CounterOpts{
		Name: "handled_total",
		Help: "test help",
	})
	if err != nil {
		t.Fatal(err)
	}
	counter.Add(5)

	rec := httptest.NewRecorder()
	HandlerFor(registry, HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if expected, got := http.StatusOK, rec.Code; expected != got {
		t.Errorf("Expected status %d, got %d.", expected, got)
	}
	if expected, got := `text/plain; version=0.0.4; charset=utf-8`, rec.Header().Get("Content-Type"); expected != got {
		t.Errorf("Expected content type %q, got %q.", expected, got)
	}
	if body := rec.Body.String(); !strings.Contains(body, "handled_total 5") {
		t.Errorf("body misses the counter: %q", body)
	}
}

func TestHandlerScrapeFailure(t *testing.T) {
	registry := prometheusd.NewRegistry()
	registry.OnBeforeCollectAsync(func(context.Context) error {
		return &prometheusd.ScrapeError{Reason: "backend down"}
	})

	rec := httptest.NewRecorder()
	HandlerFor(registry, HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if expected, got := http.StatusServiceUnavailable, rec.Code; expected != got {
		t.Errorf("Expected status %d, got %d.", expected, got)
	}
	if body := rec.Body.String(); !strings.Contains(body, "backend down") {
		t.Errorf("body misses the failure reason: %q", body)
	}
}

func TestHandlerPredicate(t *testing.T) {
	registry := prometheusd.NewRegistry()
	handler := HandlerFor(registry, HandlerOpts{
		Predicate: func(r *http.Request) bool {
			return r.Header.Get("Authorization") != ""
		},
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if expected, got := http.StatusForbidden, rec.Code; expected != got {
		t.Errorf("Expected status %d, got %d.", expected, got)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if expected, got := http.StatusOK, rec.Code; expected != got {
		t.Errorf("Expected status %d, got %d.", expected, got)
	}
}

func TestServerStartStop(t *testing.T) {
	registry := prometheusd.NewRegistry()
	gauge, err := prometheusd.NewFactory(registry).NewGauge(prometheusd.GaugeOpts{
		Name: "served",
		Help: "test help",
	})
	if err != nil {
		t.Fatal(err)
	}
	gauge.Set(3)

	server := NewServer(registry, "127.0.0.1:0", "", HandlerOpts{})

	if err := server.Start(); err != nil {
		t.Fatal(err)
	}
	defer server.Stop(context.Background())

	if err := server.Start(); err == nil {
		t.Error("expected an error starting a started server")
	}

	if err := server.Stop(context.Background()); err != nil {
		t.Errorf("unexpected stop error: %v", err)
	}
	// A stopped server can be started again.
	if err := server.Start(); err != nil {
		t.Errorf("unexpected restart error: %v", err)
	}
}

func TestServerServes(t *testing.T) {
	registry := prometheusd.NewRegistry()
	counter, err := prometheusd.NewFactory(registry).NewCounter(prometheusd.CounterOpts{
		Name: "roundtrip_total",
		Help: "test help",
	})
	if err != nil {
		t.Fatal(err)
	}
	counter.Inc()

	// Bind the listener through httptest instead of Server to get a free
	// port, then exercise the same handler the Server mounts.
	ts := httptest.NewServer(HandlerFor(registry, HandlerOpts{}))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "roundtrip_total 1") {
		t.Errorf("body misses the counter: %q", body)
	}
}
