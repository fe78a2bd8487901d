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
	"math"
	"sync"
	"testing"
)

func testGauge(t *testing.T) *Gauge {
	gauge, err := newTestFactory().NewGauge(GaugeOpts{
		Name: "test",
		Help: "test help",
	})
	if err != nil {
		t.Fatal(err)
	}
	return gauge
}

func TestGaugeSetIncDec(t *testing.T) {
	gauge := testGauge(t)

	gauge.Inc()
	if expected, got := 1., gauge.Value(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
	gauge.Add(3.2)
	if expected, got := 4.2, gauge.Value(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
	gauge.Set(4)
	if expected, got := 4., gauge.Value(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
	gauge.Sub(0.2)
	if expected, got := 3.8, gauge.Value(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
	gauge.Dec()
	if expected, got := 2.8, gauge.Value(); math.Abs(expected-got) > 1e-12 {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
}

func TestGaugeDecTo(t *testing.T) {
	gauge := testGauge(t)

	gauge.Set(999)
	gauge.DecTo(100)
	if expected, got := 100., gauge.Value(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
	gauge.DecTo(100)
	if expected, got := 100., gauge.Value(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
	gauge.DecTo(500)
	if expected, got := 100., gauge.Value(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
}

func TestGaugeIncTo(t *testing.T) {
	gauge := testGauge(t)

	gauge.IncTo(10)
	if expected, got := 10., gauge.Value(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
	gauge.IncTo(5)
	if expected, got := 10., gauge.Value(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
	gauge.IncTo(20)
	if expected, got := 20., gauge.Value(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
}

func TestGaugeConcurrentAdds(t *testing.T) {
	gauge := testGauge(t)

	var wg sync.WaitGroup
	goroutines := 100
	opsPerGoroutine := 1000
	for i := 0; i < goroutines; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				if i%2 == 0 {
					gauge.Inc()
				} else {
					gauge.Dec()
				}
			}
		}()
	}
	wg.Wait()

	if expected, got := 0., gauge.Value(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
}
