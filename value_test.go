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

func TestAtomicAddFloat(t *testing.T) {
	var bits uint64
	var wg sync.WaitGroup
	goroutines := 1000
	increment := 1.0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			atomicAddFloat(&bits, increment)
		}()
	}
	wg.Wait()

	if expected, got := float64(goroutines)*increment, atomicLoadFloat(&bits); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
}

func TestAtomicMaxFloat(t *testing.T) {
	var bits uint64
	atomicStoreFloat(&bits, 10)

	if atomicMaxFloat(&bits, 5) {
		t.Error("max with a smaller value reported an update")
	}
	if got := atomicLoadFloat(&bits); got != 10 {
		t.Errorf("Expected 10, got %f.", got)
	}
	if !atomicMaxFloat(&bits, 15) {
		t.Error("max with a greater value reported no update")
	}
	if got := atomicLoadFloat(&bits); got != 15 {
		t.Errorf("Expected 15, got %f.", got)
	}
	if atomicMaxFloat(&bits, math.NaN()) {
		t.Error("max with NaN reported an update")
	}
	if got := atomicLoadFloat(&bits); got != 15 {
		t.Errorf("Expected 15 after NaN, got %f.", got)
	}
}

func TestAtomicMinFloat(t *testing.T) {
	var bits uint64
	atomicStoreFloat(&bits, 10)

	if atomicMinFloat(&bits, 15) {
		t.Error("min with a greater value reported an update")
	}
	if !atomicMinFloat(&bits, 5) {
		t.Error("min with a smaller value reported no update")
	}
	if got := atomicLoadFloat(&bits); got != 5 {
		t.Errorf("Expected 5, got %f.", got)
	}
	if atomicMinFloat(&bits, math.NaN()) {
		t.Error("min with NaN reported an update")
	}
}
