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

// Package quantile implements the streaming quantile estimator of Cormode,
// Korn, Muthukrishnan and Srivastava ("Effective Computation of Biased
// Quantiles over Data Streams"). A Stream keeps a compressed, ordered list
// of weighted samples whose per-sample rank error is bounded by the chosen
// invariant function, so selected quantiles can be queried with a fixed
// relative error without holding the whole data set.
//
// Streams are not safe for concurrent use.
package quantile

import (
	"math"
	"sort"
)

// Sample holds an observed value together with its CKMS bookkeeping: Width
// is the number of original observations the sample stands for, Delta the
// uncertainty of its rank.
type Sample struct {
	Value float64
	Width float64
	Delta float64
}

// Samples represents a slice of samples, sortable by value.
type Samples []Sample

func (a Samples) Len() int           { return len(a) }
func (a Samples) Less(i, j int) bool { return a[i].Value < a[j].Value }
func (a Samples) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }

// invariant bounds the tolerated rank error of a sample at rank r when n
// observations have been made. Larger values allow more aggressive
// compression.
type invariant func(s *stream, r float64) float64

// NewLowBiased returns a Stream whose relative error is bounded by epsilon
// in the lower ranks, i.e. it answers low quantiles most precisely.
func NewLowBiased(epsilon float64) *Stream {
	f := func(s *stream, r float64) float64 {
		return 2 * epsilon * r
	}
	return newStream(f)
}

// NewHighBiased returns a Stream whose relative error is bounded by epsilon
// in the higher ranks, i.e. it answers high quantiles most precisely.
func NewHighBiased(epsilon float64) *Stream {
	f := func(s *stream, r float64) float64 {
		return 2 * epsilon * (s.n - r)
	}
	return newStream(f)
}

type target struct {
	quantile float64
	epsilon  float64
}

// NewTargeted returns a Stream that estimates exactly the quantiles given as
// map keys, each within its mapped absolute error. Values outside the
// targeted quantiles may be compressed away aggressively.
func NewTargeted(targetMap map[float64]float64) *Stream {
	targets := make([]target, 0, len(targetMap))
	for quantile, epsilon := range targetMap {
		targets = append(targets, target{quantile: quantile, epsilon: epsilon})
	}
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].quantile < targets[j].quantile
	})

	f := func(s *stream, r float64) float64 {
		m := math.MaxFloat64
		var v float64
		for _, t := range targets {
			if t.quantile*s.n <= r {
				v = (2 * t.epsilon * r) / t.quantile
			} else {
				v = (2 * t.epsilon * (s.n - r)) / (1 - t.quantile)
			}
			if v < m {
				m = v
			}
		}
		return m
	}
	return newStream(f)
}

// bufCap is the size at which the insertion buffer is sorted and merged into
// the compressed sample list.
const bufCap = 500

// Stream batches insertions through a fixed-size buffer before they are
// merged into the underlying compressed stream.
type Stream struct {
	*stream
	b      Samples
	sorted bool
}

func newStream(f invariant) *Stream {
	return &Stream{
		stream: &stream{inv: f},
		b:      make(Samples, 0, bufCap),
		sorted: true,
	}
}

// Insert adds v to the stream.
func (s *Stream) Insert(v float64) {
	s.insert(Sample{Value: v, Width: 1})
}

func (s *Stream) insert(sample Sample) {
	s.b = append(s.b, sample)
	s.sorted = false
	if len(s.b) == cap(s.b) {
		s.flush()
	}
}

// Query returns the computed q-quantile of the inserted values. While the
// stream has never been flushed, the buffered samples themselves answer the
// query exactly.
func (s *Stream) Query(q float64) float64 {
	if !s.flushed() {
		l := len(s.b)
		if l == 0 {
			return 0
		}
		i := int(math.Ceil(float64(l) * q))
		if i > 0 {
			i--
		}
		s.maybeSort()
		return s.b[i].Value
	}
	s.flush()
	return s.stream.query(q)
}

// Merge inserts already-weighted samples taken from another stream's
// Samples. The invariants of the two streams must match.
func (s *Stream) Merge(samples Samples) {
	sorted := make(Samples, len(samples))
	copy(sorted, samples)
	sort.Sort(sorted)
	s.stream.merge(sorted)
}

// Reset discards all inserted values and returns the stream to its initial
// state.
func (s *Stream) Reset() {
	s.stream.reset()
	s.b = s.b[:0]
	s.sorted = true
}

// Samples returns the samples currently held. A stream that has never been
// flushed returns its insertion buffer as is; otherwise the buffer is flushed
// first and a copy of the compressed list is returned.
func (s *Stream) Samples() Samples {
	if !s.flushed() {
		return s.b
	}
	s.flush()
	samples := make(Samples, len(s.stream.l))
	copy(samples, s.stream.l)
	return samples
}

// Count returns the total number of values inserted since the last Reset.
func (s *Stream) Count() int {
	return len(s.b) + s.stream.count()
}

func (s *Stream) flush() {
	s.maybeSort()
	s.stream.merge(s.b)
	s.b = s.b[:0]
}

func (s *Stream) maybeSort() {
	if !s.sorted {
		s.sorted = true
		sort.Sort(s.b)
	}
}

func (s *Stream) flushed() bool {
	return len(s.stream.l) > 0
}

// stream is the compressed sample list proper.
type stream struct {
	n   float64
	l   []Sample
	inv invariant
}

func (s *stream) reset() {
	s.l = s.l[:0]
	s.n = 0
}

// merge walks the ordered list once, splicing each incoming sample in before
// the first existing sample with a greater value. The new sample's delta is
// the maximum of its own and floor(inv(r))-1 at the insertion rank r.
func (s *stream) merge(samples Samples) {
	var r float64
	i := 0
	for _, sample := range samples {
		for ; i < len(s.l); i++ {
			c := s.l[i]
			if c.Value > sample.Value {
				s.l = append(s.l, Sample{})
				copy(s.l[i+1:], s.l[i:])
				s.l[i] = Sample{
					Value: sample.Value,
					Width: sample.Width,
					Delta: math.Max(sample.Delta, math.Floor(s.inv(s, r))-1),
				}
				i++
				goto inserted
			}
			r += c.Width
		}
		s.l = append(s.l, Sample{Value: sample.Value, Width: sample.Width})
		i++
	inserted:
		s.n += sample.Width
		r += sample.Width
	}
	s.compress()
}

// query walks the samples left to right and returns the value of the last
// sample before the accumulated rank bound exceeds the target rank.
func (s *stream) query(q float64) float64 {
	t := math.Ceil(q * s.n)
	t += math.Ceil(s.inv(s, t) / 2)
	p := s.l[0]
	var r float64
	for _, c := range s.l[1:] {
		r += p.Width
		if r+c.Width+c.Delta > t {
			return p.Value
		}
		p = c
	}
	return p.Value
}

// compress scans from the right and folds each sample into its right
// neighbour while the combined width stays within the invariant bound at
// that rank.
func (s *stream) compress() {
	if len(s.l) < 2 {
		return
	}
	x := s.l[len(s.l)-1]
	xi := len(s.l) - 1
	r := s.n - 1 - x.Width

	for i := len(s.l) - 2; i >= 0; i-- {
		c := s.l[i]
		if c.Width+x.Width+x.Delta <= s.inv(s, r) {
			x.Width += c.Width
			s.l[xi] = x
			copy(s.l[i:], s.l[i+1:])
			s.l = s.l[:len(s.l)-1]
			xi--
		} else {
			x = c
			xi = i
		}
		r -= c.Width
	}
}

func (s *stream) count() int {
	return int(s.n)
}
