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
	"bytes"
	"math"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"
)

var defTestObjectives = []Objective{
	{Quantile: 0.5, Epsilon: 0.05},
	{Quantile: 0.9, Epsilon: 0.01},
	{Quantile: 0.99, Epsilon: 0.001},
}

func TestSummaryWithoutObjectives(t *testing.T) {
	summary, err := newTestFactory().NewSummary(SummaryOpts{
		Name: "test",
		Help: "test help",
	})
	if err != nil {
		t.Fatal(err)
	}

	summary.Observe(1)
	summary.Observe(2.5)
	summary.Observe(math.NaN()) // must be dropped

	if expected, got := uint64(2), summary.Count(); expected != got {
		t.Errorf("Expected count %d, got %d.", expected, got)
	}
	if expected, got := 3.5, summary.Sum(); expected != got {
		t.Errorf("Expected sum %f, got %f.", expected, got)
	}
	if got := summary.Quantile(0.5); !math.IsNaN(got) {
		t.Errorf("Expected NaN quantile without objectives, got %f.", got)
	}

	var buf bytes.Buffer
	summary.collect(&buf)
	expected := "test_sum 3.5\ntest_count 2\n"
	if got := buf.String(); got != expected {
		t.Errorf("Expected %q, got %q.", expected, got)
	}
}

func TestSummaryUncompressedExact(t *testing.T) {
	summary, err := newTestFactory().NewSummary(SummaryOpts{
		Name:       "test",
		Help:       "test help",
		Objectives: defTestObjectives,
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 100; i > 0; i-- {
		summary.Observe(float64(i))
	}

	// Below the stream buffer size, queries answer from the raw samples.
	if expected, got := 50., summary.Quantile(0.5); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
	if expected, got := 90., summary.Quantile(0.9); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
	if expected, got := uint64(100), summary.Count(); expected != got {
		t.Errorf("Expected count %d, got %d.", expected, got)
	}
	if expected, got := 5050., summary.Sum(); expected != got {
		t.Errorf("Expected sum %f, got %f.", expected, got)
	}
}

func TestSummaryQuantileEstimates(t *testing.T) {
	summary, err := newTestFactory().NewSummary(SummaryOpts{
		Name:       "test",
		Help:       "test help",
		Objectives: defTestObjectives,
	})
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(42))
	n := 10000
	samples := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := rng.NormFloat64()
		samples = append(samples, v)
		summary.Observe(v)
	}
	sort.Float64s(samples)

	for _, o := range defTestObjectives {
		got := summary.Quantile(o.Quantile)
		lower := samples[int(float64(n)*(o.Quantile-4*o.Epsilon))]
		upperIdx := int(float64(n) * (o.Quantile + 4*o.Epsilon))
		if upperIdx >= n {
			upperIdx = n - 1
		}
		upper := samples[upperIdx]
		if got < lower || got > upper {
			t.Errorf("quantile %v: got %v, want within [%v, %v]", o.Quantile, got, lower, upper)
		}
	}
}

// fakeTimeSummary pins the summary's clock to a controllable time and
// re-anchors the expiry timestamps to it.
func fakeTimeSummary(t *testing.T, maxAge time.Duration, ageBuckets int) (*Summary, *time.Time) {
	summary, err := newTestFactory().NewSummary(SummaryOpts{
		Name:       "test",
		Help:       "test help",
		Objectives: defTestObjectives,
		MaxAge:     maxAge,
		AgeBuckets: ageBuckets,
	})
	if err != nil {
		t.Fatal(err)
	}
	now := time.Unix(1700000000, 0)
	summary.now = func() time.Time { return now }
	summary.hotBufExpTime = now.Add(summary.streamDuration)
	summary.headStreamExpTime = summary.hotBufExpTime
	return summary, &now
}

func TestSummaryAgeRotation(t *testing.T) {
	maxAge := 100 * time.Second
	summary, now := fakeTimeSummary(t, maxAge, 5)

	summary.Observe(10)

	// Half way into the window the observation is still visible.
	*now = now.Add(50 * time.Second)
	if expected, got := 10., summary.Quantile(0.5); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}

	// Beyond maxAge plus one bucket rotation it must be gone.
	*now = now.Add(80 * time.Second)
	if got := summary.Quantile(0.5); !math.IsNaN(got) {
		t.Errorf("Expected NaN after the window passed, got %f.", got)
	}

	// Sum and count survive the rotation; only quantiles age out.
	if expected, got := uint64(1), summary.Count(); expected != got {
		t.Errorf("Expected count %d, got %d.", expected, got)
	}
}

func TestSummaryBufferFlushOnCapacity(t *testing.T) {
	summary, err := newTestFactory().NewSummary(SummaryOpts{
		Name:       "test",
		Help:       "test help",
		Objectives: defTestObjectives,
		BufCap:     3,
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 7; i++ {
		summary.Observe(float64(i))
	}
	if expected, got := uint64(7), summary.Count(); expected != got {
		t.Errorf("Expected count %d, got %d.", expected, got)
	}
	if expected, got := 28., summary.Sum(); expected != got {
		t.Errorf("Expected sum %f, got %f.", expected, got)
	}
}

func TestSummarySerialization(t *testing.T) {
	summary, err := newTestFactory().NewSummary(SummaryOpts{
		Name:       "test",
		Help:       "test help",
		Objectives: []Objective{{Quantile: 0.5, Epsilon: 0.05}},
	})
	if err != nil {
		t.Fatal(err)
	}
	summary.Observe(4.2)

	var buf bytes.Buffer
	summary.collect(&buf)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	expected := []string{
		"test_sum 4.2",
		"test_count 1",
		`test{quantile="0.5"} 4.2`,
	}
	if len(lines) != len(expected) {
		t.Fatalf("Expected %d lines, got %d: %q", len(expected), len(lines), lines)
	}
	for i, e := range expected {
		if lines[i] != e {
			t.Errorf("line %d: expected %q, got %q", i, e, lines[i])
		}
	}
}

func TestSummaryEmptySerializesNaN(t *testing.T) {
	summary, err := newTestFactory().NewSummary(SummaryOpts{
		Name:       "test",
		Help:       "test help",
		Objectives: []Objective{{Quantile: 0.9, Epsilon: 0.01}},
	})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	summary.collect(&buf)
	if !strings.Contains(buf.String(), `test{quantile="0.9"} NaN`) {
		t.Errorf("Expected a NaN quantile line, got %q.", buf.String())
	}
}

func TestSummaryOptsValidation(t *testing.T) {
	factory := newTestFactory()
	for i, opts := range []SummaryOpts{
		{Name: "a", Objectives: []Objective{{Quantile: 1.5, Epsilon: 0.05}}},
		{Name: "b", Objectives: []Objective{{Quantile: 0.5, Epsilon: 0}}},
		{Name: "c", MaxAge: -time.Second},
		{Name: "d", AgeBuckets: -1},
		{Name: "e", BufCap: -1},
	} {
		if _, err := factory.NewSummary(opts); err == nil {
			t.Errorf("case %d: expected an error", i)
		}
	}
}
