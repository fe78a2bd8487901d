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

// Package promhttp exposes a Registry over HTTP in the Prometheus text
// exposition format. The package only provides the handler and a thin
// start/stop wrapper; routing, TLS and middleware remain the application's
// business.
package promhttp

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	prometheusd "github.com/ivanovsergeyminsk/PrometheusD"
)

// Logger is the minimal interface promhttp needs for error reporting. It is
// implemented by *log.Logger.
type Logger interface {
	Println(v ...interface{})
}

// HandlerOpts configures the exposition handler.
type HandlerOpts struct {
	// ErrorLog receives collection errors. Nil means no logging.
	ErrorLog Logger

	// Predicate, if set, is consulted for every request; a false return
	// rejects the request with 403 Forbidden.
	Predicate func(*http.Request) bool
}

// Handler returns an exposition handler for the default registry.
func Handler() http.Handler {
	return HandlerFor(prometheusd.DefaultRegistry(), HandlerOpts{})
}

// HandlerFor returns an exposition handler for the given registry.
//
// Responses: 200 with the text exposition on success, 403 if the request
// predicate rejects the request, 503 with the failure reason if a
// before-collect callback signals a scrape failure, 500 on any other error.
func HandlerFor(reg *prometheusd.Registry, opts HandlerOpts) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if opts.Predicate != nil && !opts.Predicate(r) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		var buf bytes.Buffer
		if err := reg.CollectAndSerialize(r.Context(), &buf); err != nil {
			if opts.ErrorLog != nil {
				opts.ErrorLog.Println("error collecting metrics:", err)
			}
			var scrapeErr *prometheusd.ScrapeError
			if errors.As(err, &scrapeErr) {
				http.Error(w, scrapeErr.Reason, http.StatusServiceUnavailable)
				return
			}
			http.Error(w, "An error has occurred while serving metrics.", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", prometheusd.TextContentType)
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	})
}

// Server serves one registry on a single metrics endpoint. It exists for
// applications without an HTTP server of their own; everyone else mounts
// HandlerFor on their mux directly.
type Server struct {
	addr string
	path string
	reg  *prometheusd.Registry
	opts HandlerOpts

	mtx     sync.Mutex
	srv     *http.Server
	started bool
}

// NewServer returns an unstarted Server answering on path (default
// "/metrics") at addr.
func NewServer(reg *prometheusd.Registry, addr, path string, opts HandlerOpts) *Server {
	if path == "" {
		path = "/metrics"
	}
	return &Server{
		addr: addr,
		path: path,
		reg:  reg,
		opts: opts,
	}
}

// Start binds the listener and begins serving in the background. Starting an
// already-started server is an error.
func (s *Server) Start() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.started {
		return errors.New("metric server is already started")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, HandlerFor(s.reg, s.opts))
	srv := &http.Server{Handler: mux}
	s.srv = srv
	s.started = true

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			if s.opts.ErrorLog != nil {
				s.opts.ErrorLog.Println("metric server error:", err)
			}
		}
	}()
	return nil
}

// Stop stops accepting connections and waits for in-flight handlers, up to
// the context's deadline. The server can be started again afterwards.
func (s *Server) Stop(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.started {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	s.srv = nil
	s.started = false
	return err
}
