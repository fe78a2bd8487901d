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
	"fmt"
	"math"
	"sync/atomic"
)

// DefBuckets are the default Histogram buckets. They are tailored to measure
// request durations in seconds. Override them with the Buckets field of
// HistogramOpts when measuring something else.
var DefBuckets = []float64{.005, .01, .025, .05, .075, .1, .25, .5, .75, 1, 2.5, 5, 7.5, 10}

// LinearBuckets creates 'count' buckets, each 'width' wide, where the lowest
// bucket has an upper bound of 'start'. The returned slice is meant to be
// used for the Buckets field of HistogramOpts; the final +Inf bucket is not
// included.
//
// The function panics if 'count' or 'width' is not positive.
func LinearBuckets(start, width float64, count int) []float64 {
	if count < 1 {
		panic("LinearBuckets needs a positive count")
	}
	if width <= 0 {
		panic("LinearBuckets needs a positive width")
	}
	buckets := make([]float64, count)
	for i := range buckets {
		buckets[i] = start
		start += width
	}
	return buckets
}

// ExponentialBuckets creates 'count' buckets, where the lowest bucket has an
// upper bound of 'start' and each following bucket's upper bound is 'factor'
// times the previous bucket's upper bound. The final +Inf bucket is not
// included.
//
// The function panics if 'count' is not positive, if 'start' is not
// positive, or if 'factor' is not greater than 1.
func ExponentialBuckets(start, factor float64, count int) []float64 {
	if count < 1 {
		panic("ExponentialBuckets needs a positive count")
	}
	if start <= 0 {
		panic("ExponentialBuckets needs a positive start value")
	}
	if factor <= 1 {
		panic("ExponentialBuckets needs a factor greater than 1")
	}
	buckets := make([]float64, count)
	for i := range buckets {
		buckets[i] = start
		start *= factor
	}
	return buckets
}

// validateBuckets checks a caller-supplied bucket list, substitutes the
// defaults for an empty list, and appends the +Inf bucket if it is missing.
func validateBuckets(buckets []float64) ([]float64, error) {
	if len(buckets) == 0 {
		buckets = DefBuckets
	}
	for i := 0; i < len(buckets)-1; i++ {
		if buckets[i+1] <= buckets[i] {
			return nil, fmt.Errorf(
				"histogram buckets must be in increasing order: %v >= %v",
				buckets[i], buckets[i+1],
			)
		}
	}
	out := make([]float64, len(buckets), len(buckets)+1)
	copy(out, buckets)
	if !math.IsInf(out[len(out)-1], +1) {
		out = append(out, math.Inf(+1))
	}
	return out, nil
}

// HistogramOpts bundles the options for creating a Histogram metric. Name is
// mandatory; everything else can be left at its zero value.
type HistogramOpts struct {
	Name string
	Help string

	// StaticLabels are attached to every child of this family, after the
	// per-child labels and before the registry's static labels.
	StaticLabels Labels

	// SuppressInitialValue omits children from the exposition until their
	// first observation.
	SuppressInitialValue bool

	// Buckets defines the buckets into which observations are counted.
	// Each element is the upper inclusive bound of a bucket. The values
	// must be sorted in strictly increasing order. There is no need to add
	// a highest bucket with +Inf bound, it will be added implicitly. The
	// default value is DefBuckets.
	Buckets []float64
}

// A Histogram counts individual observations from an event or sample stream
// in configurable buckets, and also keeps a sum of all observed values and a
// total count.
//
// All methods are safe for concurrent use and never block.
type Histogram struct {
	// sumBits contains the bits of the float64 representing the sum of
	// all observations. It has to go first in the struct to guarantee
	// alignment for atomic operations.
	// http://golang.org/pkg/sync/atomic/#pkg-note-BUG
	sumBits uint64

	childBase
	counts []uint64

	upperBounds []float64

	sumID     []byte
	countID   []byte
	bucketIDs [][]byte
}

func newHistogramChild(base childBase, flat LabelSet) *Histogram {
	fam := base.fam
	h := &Histogram{
		childBase:   base,
		counts:      make([]uint64, len(fam.upperBounds)),
		upperBounds: fam.upperBounds,
		sumID:       buildIdentifier(fam.name, "_sum", flat, "", ""),
		countID:     buildIdentifier(fam.name, "_count", flat, "", ""),
		bucketIDs:   make([][]byte, len(fam.upperBounds)),
	}
	for i, ub := range fam.upperBounds {
		h.bucketIDs[i] = buildIdentifier(fam.name, "_bucket", flat, bucketLabel, formatFloatLabel(ub))
	}
	return h
}

// Observe adds a single observation to the histogram. NaN observations are
// dropped.
func (h *Histogram) Observe(v float64) {
	h.ObserveN(v, 1)
}

// ObserveN counts the value v as if it had been observed n times.
func (h *Histogram) ObserveN(v float64, n uint64) {
	if math.IsNaN(v) {
		return
	}
	for i, ub := range h.upperBounds {
		if v <= ub {
			atomic.AddUint64(&h.counts[i], n)
			break
		}
	}
	atomicAddFloat(&h.sumBits, v*float64(n))
	h.publish()
}

// Sum returns the sum of all observed values.
func (h *Histogram) Sum() float64 {
	return atomicLoadFloat(&h.sumBits)
}

// Count returns the total number of observations.
func (h *Histogram) Count() uint64 {
	var total uint64
	for i := range h.counts {
		total += atomic.LoadUint64(&h.counts[i])
	}
	return total
}

// collect emits the _sum and _count series followed by one cumulative
// _bucket series per upper bound.
//
// The per-bucket counts and the sum are updated independently on the observe
// path, so a concurrent scrape may see the two momentarily disagree.
func (h *Histogram) collect(b *bytes.Buffer) {
	counts := make([]uint64, len(h.counts))
	var total uint64
	for i := range h.counts {
		counts[i] = atomic.LoadUint64(&h.counts[i])
		total += counts[i]
	}

	writeSample(b, h.sumID, h.Sum())
	writeSampleUint(b, h.countID, total)
	var cumulative uint64
	for i := range counts {
		cumulative += counts[i]
		writeSampleUint(b, h.bucketIDs[i], cumulative)
	}
}

// HistogramVec is a family of Histograms that differ only in their label
// values.
type HistogramVec struct {
	fam *family
}

// GetMetricWithLabelValues returns the Histogram for the given label values,
// creating it on first use. For the same tuple the same *Histogram is
// returned on every call.
func (v *HistogramVec) GetMetricWithLabelValues(lvs ...string) (*Histogram, error) {
	c, err := v.fam.getOrCreate(lvs)
	if err != nil {
		return nil, err
	}
	return c.(*Histogram), nil
}

// WithLabelValues works as GetMetricWithLabelValues, but panics on error.
func (v *HistogramVec) WithLabelValues(lvs ...string) *Histogram {
	h, err := v.GetMetricWithLabelValues(lvs...)
	if err != nil {
		panic(err)
	}
	return h
}

// GetMetricWith returns the Histogram for the given label map. The map must
// contain exactly the names of the family's label schema.
func (v *HistogramVec) GetMetricWith(labels Labels) (*Histogram, error) {
	lvs, err := labelMapToValues(v.fam, labels)
	if err != nil {
		return nil, err
	}
	return v.GetMetricWithLabelValues(lvs...)
}

// With works as GetMetricWith, but panics on error.
func (v *HistogramVec) With(labels Labels) *Histogram {
	h, err := v.GetMetricWith(labels)
	if err != nil {
		panic(err)
	}
	return h
}

// RemoveLabelValues discards the child for the given tuple. It reports
// whether a child was removed.
func (v *HistogramVec) RemoveLabelValues(lvs ...string) bool {
	return v.fam.remove(lvs)
}

// LabelValues returns the label value tuples of all children in insertion
// order.
func (v *HistogramVec) LabelValues() [][]string {
	return v.fam.labelValuesList()
}
