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

package prometheusd

import (
	"testing"
	"time"
)

func TestTimerObserve(t *testing.T) {
	histogram, err := newTestFactory().NewHistogram(HistogramOpts{
		Name: "test_duration_seconds",
		Help: "test help",
	})
	if err != nil {
		t.Fatal(err)
	}

	timer := NewTimer(histogram)
	time.Sleep(time.Millisecond)
	d := timer.ObserveDuration()

	if d <= 0 {
		t.Errorf("expected a positive duration, got %v", d)
	}
	if expected, got := uint64(1), histogram.Count(); expected != got {
		t.Errorf("Expected count %d, got %d.", expected, got)
	}
	if histogram.Sum() <= 0 {
		t.Error("expected a positive observed sum")
	}
}

func TestTimerObserverFunc(t *testing.T) {
	gauge, err := newTestFactory().NewGauge(GaugeOpts{
		Name: "test_last_duration_seconds",
		Help: "test help",
	})
	if err != nil {
		t.Fatal(err)
	}

	timer := NewTimer(ObserverFunc(gauge.Set))
	timer.ObserveDuration()

	if gauge.Value() < 0 {
		t.Errorf("expected a non-negative gauge value, got %f", gauge.Value())
	}
}

func TestTimerNilObserver(t *testing.T) {
	timer := NewTimer(nil)
	if d := timer.ObserveDuration(); d < 0 {
		t.Errorf("expected a non-negative duration, got %v", d)
	}
}
