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
	"sync"
	"sync/atomic"
	"time"
)

type metricKind int

const (
	counterKind metricKind = iota
	gaugeKind
	histogramKind
	summaryKind
)

func (k metricKind) String() string {
	switch k {
	case counterKind:
		return "counter"
	case gaugeKind:
		return "gauge"
	case histogramKind:
		return "histogram"
	case summaryKind:
		return "summary"
	}
	return "unknown"
}

// metricChild is the collection-time view of a child. The observation
// operations live on the concrete per-kind types; this interface is only
// dispatched while serializing.
type metricChild interface {
	base() *childBase
	collect(b *bytes.Buffer)
}

// childBase carries the state common to all four kinds: the owning family
// (a back reference the child does not own), the label value tuple, its
// fingerprint, and the published flag.
type childBase struct {
	fam         *family
	labelValues []string
	hash        uint64
	published   uint32
}

func (c *childBase) base() *childBase { return c }

func (c *childBase) publish() { atomic.StoreUint32(&c.published, 1) }

func (c *childBase) isPublished() bool { return atomic.LoadUint32(&c.published) != 0 }

// family is the registered unit: (name, help, kind, label schema) plus the
// children keyed by label value tuple. Families are never removed from their
// registry; children may be.
type family struct {
	name            string
	help            string
	kind            metricKind
	labelNames      []string
	staticLabels    LabelSet
	suppressInitial bool
	header          []byte

	// Kind-specific configuration, set by the factory.
	upperBounds []float64     // histogram: includes the final +Inf bound
	objectives  []Objective   // summary
	maxAge      time.Duration // summary
	ageBuckets  int           // summary
	bufCap      int           // summary

	mtx      sync.RWMutex
	children map[uint64][]metricChild // fingerprint -> children, collision chain
	order    []metricChild            // insertion order, drives serialization
}

func newFamily(name, help string, kind metricKind, labelNames []string, staticLabels LabelSet, suppressInitial bool) *family {
	return &family{
		name:            name,
		help:            help,
		kind:            kind,
		labelNames:      labelNames,
		staticLabels:    staticLabels,
		suppressInitial: suppressInitial,
		header:          buildHeader(name, help, kind),
		children:        map[uint64][]metricChild{},
	}
}

// matches reports whether a new registration with the given kind and schema
// is compatible with this family. The two error messages are part of the
// public contract.
func (f *family) matches(kind metricKind, labelNames []string) error {
	if f.kind != kind {
		return fmt.Errorf("Collector of a different type with the same name is already registered.")
	}
	if len(f.labelNames) != len(labelNames) {
		return fmt.Errorf("Collector matches a previous registration but has a different set of label names.")
	}
	for i, name := range f.labelNames {
		if labelNames[i] != name {
			return fmt.Errorf("Collector matches a previous registration but has a different set of label names.")
		}
	}
	return nil
}

// getOrCreate returns the unique child for the given label value tuple,
// creating it on first use. For a given tuple the same child reference is
// returned on every call until the tuple is removed.
func (f *family) getOrCreate(values []string) (metricChild, error) {
	if len(values) != len(f.labelNames) {
		return nil, fmt.Errorf(
			"%s: expected %d label values but got %d",
			f.name, len(f.labelNames), len(values),
		)
	}
	h := hashLabelValues(values)

	f.mtx.RLock()
	child, ok := f.findChild(h, values)
	f.mtx.RUnlock()
	if ok {
		return child, nil
	}

	f.mtx.Lock()
	defer f.mtx.Unlock()
	if child, ok := f.findChild(h, values); ok {
		return child, nil
	}

	tuple := make([]string, len(values))
	copy(tuple, values)
	flat, err := NewLabelSet(f.labelNames, tuple)
	if err != nil {
		return nil, err
	}
	flat = flat.AppendSet(f.staticLabels)

	base := childBase{fam: f, labelValues: tuple, hash: h}
	if !f.suppressInitial {
		base.published = 1
	}
	child = f.makeChild(base, flat)
	f.children[h] = append(f.children[h], child)
	f.order = append(f.order, child)
	return child, nil
}

// findChild must be called with at least the read lock held.
func (f *family) findChild(h uint64, values []string) (metricChild, bool) {
	for _, c := range f.children[h] {
		if tupleEqual(c.base().labelValues, values) {
			return c, true
		}
	}
	return nil, false
}

func tupleEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// makeChild constructs the concrete child for this family's kind.
func (f *family) makeChild(base childBase, flat LabelSet) metricChild {
	switch f.kind {
	case counterKind:
		return newCounterChild(base, flat)
	case gaugeKind:
		return newGaugeChild(base, flat)
	case histogramKind:
		return newHistogramChild(base, flat)
	case summaryKind:
		return newSummaryChild(base, flat)
	}
	panic(fmt.Errorf("unknown metric kind %d", f.kind))
}

// remove discards the child for the given tuple. A subsequent getOrCreate
// returns a fresh child with cleared state. It reports whether a child was
// removed.
func (f *family) remove(values []string) bool {
	h := hashLabelValues(values)

	f.mtx.Lock()
	defer f.mtx.Unlock()
	chain := f.children[h]
	for i, c := range chain {
		if !tupleEqual(c.base().labelValues, values) {
			continue
		}
		if len(chain) == 1 {
			delete(f.children, h)
		} else {
			f.children[h] = append(chain[:i], chain[i+1:]...)
		}
		for j, o := range f.order {
			if o == c {
				f.order = append(f.order[:j], f.order[j+1:]...)
				break
			}
		}
		return true
	}
	return false
}

// labelValuesList returns the label value tuples of all labelled children in
// insertion order. The unlabelled child is excluded.
func (f *family) labelValuesList() [][]string {
	f.mtx.RLock()
	defer f.mtx.RUnlock()
	out := make([][]string, 0, len(f.order))
	for _, c := range f.order {
		values := c.base().labelValues
		if len(values) == 0 {
			continue
		}
		tuple := make([]string, len(values))
		copy(tuple, values)
		out = append(out, tuple)
	}
	return out
}

// collect writes the family header followed by the lines of every published
// child, in insertion order.
func (f *family) collect(b *bytes.Buffer) {
	f.mtx.RLock()
	children := make([]metricChild, len(f.order))
	copy(children, f.order)
	f.mtx.RUnlock()

	b.Write(f.header)
	for _, c := range children {
		if c.base().isPublished() {
			c.collect(b)
		}
	}
}
