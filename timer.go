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

import "time"

// Observer is the interface that wraps the Observe method, used by Timer to
// feed durations into Histograms and Summaries.
type Observer interface {
	Observe(float64)
}

var (
	_ Observer = (*Histogram)(nil)
	_ Observer = (*Summary)(nil)
)

// ObserverFunc is an adapter to allow the use of ordinary functions as
// Observers. To time something with a Gauge, use
// ObserverFunc(gauge.Set).
type ObserverFunc func(float64)

// Observe calls f(value).
func (f ObserverFunc) Observe(value float64) {
	f(value)
}

// Timer is a helper to time functions. Create a Timer when the work starts
// and call ObserveDuration when it is done:
//
//	func handle() {
//		timer := prometheusd.NewTimer(requestDuration)
//		defer timer.ObserveDuration()
//		// ...
//	}
type Timer struct {
	begin    time.Time
	observer Observer
}

// NewTimer creates a Timer observing into o. The timer starts immediately.
func NewTimer(o Observer) *Timer {
	return &Timer{
		begin:    time.Now(),
		observer: o,
	}
}

// ObserveDuration records the number of seconds since the timer was created
// and returns the elapsed duration.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.begin)
	if t.observer != nil {
		t.observer.Observe(d.Seconds())
	}
	return d
}
