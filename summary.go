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
	"sync"
	"sync/atomic"
	"time"

	"github.com/ivanovsergeyminsk/PrometheusD/internal/quantile"
)

// Objective pairs a quantile to estimate with the tolerated absolute error
// of the estimate.
type Objective struct {
	Quantile float64
	Epsilon  float64
}

const (
	// DefMaxAge is the default duration for which observations stay
	// relevant.
	DefMaxAge time.Duration = 10 * time.Minute
	// DefAgeBuckets is the default number of buckets used to calculate
	// the age of observations.
	DefAgeBuckets = 5
	// DefBufCap is the standard buffer size for collecting Summary
	// observations.
	DefBufCap = 500
)

// SummaryOpts bundles the options for creating a Summary metric. Name is
// mandatory; everything else can be left at its zero value.
type SummaryOpts struct {
	Name string
	Help string

	// StaticLabels are attached to every child of this family, after the
	// per-child labels and before the registry's static labels.
	StaticLabels Labels

	// SuppressInitialValue omits children from the exposition until their
	// first observation.
	SuppressInitialValue bool

	// Objectives defines the quantile rank estimates with their tolerated
	// absolute error. The default is the empty list, i.e. a summary that
	// only provides sum and count.
	Objectives []Objective

	// MaxAge defines the duration for which an observation stays relevant
	// for the summary. Must be positive. The default value is DefMaxAge.
	MaxAge time.Duration

	// AgeBuckets is the number of buckets used to exclude observations
	// that are older than MaxAge from the summary. A higher number has a
	// resource penalty, so only increase it if the higher resolution is
	// really required. The default value is DefAgeBuckets.
	AgeBuckets int

	// BufCap defines the default sample stream buffer size. The default
	// value of DefBufCap should suffice for most uses.
	BufCap int
}

// A Summary captures individual observations from an event or sample stream
// and summarizes them as a total sum and count plus configurable φ-quantile
// estimates over a sliding time window.
//
// All methods are safe for concurrent use.
type Summary struct {
	// Lock-free cells used when no objectives are configured; the summary
	// then degenerates to sum and count and never touches the buffers.
	// They have to go first in the struct to guarantee alignment for
	// atomic operations.
	// http://golang.org/pkg/sync/atomic/#pkg-note-BUG
	cntBits uint64
	sumBits uint64

	childBase

	hasObjectives bool
	quantiles     []float64

	// bufMtx protects the hot buffer and its expiry; mtx protects
	// everything else. On flush paths bufMtx is always acquired first.
	bufMtx sync.Mutex
	mtx    sync.Mutex

	sum float64
	cnt uint64

	hotBuf, coldBuf []float64

	streams        []*quantile.Stream
	streamDuration time.Duration
	headStream     *quantile.Stream
	headStreamIdx  int

	hotBufExpTime     time.Time
	headStreamExpTime time.Time

	now func() time.Time // to mock out time.Now() for testing

	sumID       []byte
	countID     []byte
	quantileIDs [][]byte
}

func newSummaryChild(base childBase, flat LabelSet) *Summary {
	fam := base.fam
	s := &Summary{
		childBase:     base,
		hasObjectives: len(fam.objectives) > 0,
		now:           time.Now,
		sumID:         buildIdentifier(fam.name, "_sum", flat, "", ""),
		countID:       buildIdentifier(fam.name, "_count", flat, "", ""),
	}
	if !s.hasObjectives {
		return s
	}

	objectives := make(map[float64]float64, len(fam.objectives))
	s.quantiles = make([]float64, 0, len(fam.objectives))
	s.quantileIDs = make([][]byte, 0, len(fam.objectives))
	for _, o := range fam.objectives {
		objectives[o.Quantile] = o.Epsilon
		s.quantiles = append(s.quantiles, o.Quantile)
		s.quantileIDs = append(s.quantileIDs,
			buildIdentifier(fam.name, "", flat, quantileLabel, formatFloatLabel(o.Quantile)))
	}

	s.hotBuf = make([]float64, 0, fam.bufCap)
	s.coldBuf = make([]float64, 0, fam.bufCap)
	s.streamDuration = fam.maxAge / time.Duration(fam.ageBuckets)
	s.headStreamExpTime = s.now().Add(s.streamDuration)
	s.hotBufExpTime = s.headStreamExpTime

	for i := 0; i < fam.ageBuckets; i++ {
		s.streams = append(s.streams, quantile.NewTargeted(objectives))
	}
	s.headStream = s.streams[0]
	return s
}

// Observe adds a single observation to the summary. NaN observations are
// dropped.
func (s *Summary) Observe(v float64) {
	if math.IsNaN(v) {
		return
	}
	if !s.hasObjectives {
		atomic.AddUint64(&s.cntBits, 1)
		atomicAddFloat(&s.sumBits, v)
		s.publish()
		return
	}

	s.bufMtx.Lock()
	now := s.now()
	if now.After(s.hotBufExpTime) {
		s.asyncFlush(now)
	}
	s.hotBuf = append(s.hotBuf, v)
	if len(s.hotBuf) == cap(s.hotBuf) {
		s.asyncFlush(now)
	}
	s.bufMtx.Unlock()
	s.publish()
}

// Sum returns the sum of all observed values.
func (s *Summary) Sum() float64 {
	if !s.hasObjectives {
		return atomicLoadFloat(&s.sumBits)
	}
	s.flushNow()
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.sum
}

// Count returns the total number of observations.
func (s *Summary) Count() uint64 {
	if !s.hasObjectives {
		return atomic.LoadUint64(&s.cntBits)
	}
	s.flushNow()
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.cnt
}

// Quantile returns the current estimate for the q-quantile over the sliding
// window, or NaN while no observation is inside the window.
func (s *Summary) Quantile(q float64) float64 {
	if !s.hasObjectives {
		return math.NaN()
	}
	s.flushNow()
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.headStream.Count() == 0 {
		return math.NaN()
	}
	return s.headStream.Query(q)
}

// asyncFlush must be called with bufMtx held. It swaps the buffers under the
// state lock, then drains the cold buffer on a separate goroutine so the
// observer that triggered the flush is not held up; the state lock stays
// held until the drain finishes.
func (s *Summary) asyncFlush(now time.Time) {
	s.mtx.Lock()
	s.swapBufs(now)

	go func() {
		s.flushColdBuf()
		s.mtx.Unlock()
	}()
}

// flushNow synchronously flushes any buffered observations, respecting the
// bufMtx-before-mtx lock order.
func (s *Summary) flushNow() {
	s.bufMtx.Lock()
	s.mtx.Lock()
	s.swapBufs(s.now())
	s.bufMtx.Unlock()
	s.flushColdBuf()
	s.mtx.Unlock()
}

// swapBufs needs both mutexes held. The hot buffer expiry catches up one
// stream interval at a time, which keeps the rotation count exact even after
// long observation pauses.
func (s *Summary) swapBufs(now time.Time) {
	if len(s.coldBuf) != 0 {
		panic("coldBuf is not empty")
	}
	s.hotBuf, s.coldBuf = s.coldBuf, s.hotBuf
	for now.After(s.hotBufExpTime) {
		s.hotBufExpTime = s.hotBufExpTime.Add(s.streamDuration)
	}
}

// flushColdBuf needs mtx held. Every drained value feeds all age-bucket
// streams; the head stream, reset longest ago, holds the full window's worth
// of data.
func (s *Summary) flushColdBuf() {
	for _, v := range s.coldBuf {
		for _, stream := range s.streams {
			stream.Insert(v)
		}
		s.cnt++
		s.sum += v
	}
	s.coldBuf = s.coldBuf[:0]
	s.maybeRotateStreams()
}

// maybeRotateStreams needs mtx held. The head stream advances around the
// ring until its expiry matches the hot buffer's, resetting each stream it
// leaves behind.
func (s *Summary) maybeRotateStreams() {
	for !s.hotBufExpTime.Equal(s.headStreamExpTime) {
		s.headStream.Reset()
		s.headStreamIdx++
		if s.headStreamIdx >= len(s.streams) {
			s.headStreamIdx = 0
		}
		s.headStream = s.streams[s.headStreamIdx]
		s.headStreamExpTime = s.headStreamExpTime.Add(s.streamDuration)
	}
}

// collect emits the _sum and _count series followed by one series per
// configured quantile. An empty estimator yields NaN quantiles.
func (s *Summary) collect(b *bytes.Buffer) {
	if !s.hasObjectives {
		writeSample(b, s.sumID, atomicLoadFloat(&s.sumBits))
		writeSampleUint(b, s.countID, atomic.LoadUint64(&s.cntBits))
		return
	}

	s.bufMtx.Lock()
	s.mtx.Lock()
	s.swapBufs(s.now())
	s.bufMtx.Unlock()
	s.flushColdBuf()

	sum := s.sum
	cnt := s.cnt
	qvals := make([]float64, len(s.quantiles))
	for i, q := range s.quantiles {
		if s.headStream.Count() == 0 {
			qvals[i] = math.NaN()
		} else {
			qvals[i] = s.headStream.Query(q)
		}
	}
	s.mtx.Unlock()

	writeSample(b, s.sumID, sum)
	writeSampleUint(b, s.countID, cnt)
	for i := range qvals {
		writeSample(b, s.quantileIDs[i], qvals[i])
	}
}

// SummaryVec is a family of Summaries that differ only in their label
// values.
type SummaryVec struct {
	fam *family
}

// GetMetricWithLabelValues returns the Summary for the given label values,
// creating it on first use. For the same tuple the same *Summary is returned
// on every call.
func (v *SummaryVec) GetMetricWithLabelValues(lvs ...string) (*Summary, error) {
	c, err := v.fam.getOrCreate(lvs)
	if err != nil {
		return nil, err
	}
	return c.(*Summary), nil
}

// WithLabelValues works as GetMetricWithLabelValues, but panics on error.
func (v *SummaryVec) WithLabelValues(lvs ...string) *Summary {
	s, err := v.GetMetricWithLabelValues(lvs...)
	if err != nil {
		panic(err)
	}
	return s
}

// GetMetricWith returns the Summary for the given label map. The map must
// contain exactly the names of the family's label schema.
func (v *SummaryVec) GetMetricWith(labels Labels) (*Summary, error) {
	lvs, err := labelMapToValues(v.fam, labels)
	if err != nil {
		return nil, err
	}
	return v.GetMetricWithLabelValues(lvs...)
}

// With works as GetMetricWith, but panics on error.
func (v *SummaryVec) With(labels Labels) *Summary {
	s, err := v.GetMetricWith(labels)
	if err != nil {
		panic(err)
	}
	return s
}

// RemoveLabelValues discards the child for the given tuple. It reports
// whether a child was removed.
func (v *SummaryVec) RemoveLabelValues(lvs ...string) bool {
	return v.fam.remove(lvs)
}

// LabelValues returns the label value tuples of all children in insertion
// order.
func (v *SummaryVec) LabelValues() [][]string {
	return v.fam.labelValuesList()
}
