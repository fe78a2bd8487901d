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
	"time"
)

// GaugeOpts bundles the options for creating a Gauge metric. Name is
// mandatory; everything else can be left at its zero value.
type GaugeOpts struct {
	Name string
	Help string

	// StaticLabels are attached to every child of this family, after the
	// per-child labels and before the registry's static labels.
	StaticLabels Labels

	// SuppressInitialValue omits children from the exposition until their
	// first mutation.
	SuppressInitialValue bool
}

// A Gauge is a metric value that can arbitrarily go up and down, typically
// an instantaneous measurement like a temperature or a queue length.
//
// All methods are safe for concurrent use and never block.
type Gauge struct {
	// valBits contains the bits of the float64 value. It has to go first
	// in the struct to guarantee alignment for atomic operations.
	// http://golang.org/pkg/sync/atomic/#pkg-note-BUG
	valBits uint64

	childBase
	id []byte
}

func newGaugeChild(base childBase, flat LabelSet) *Gauge {
	return &Gauge{
		childBase: base,
		id:        buildIdentifier(base.fam.name, "", flat, "", ""),
	}
}

// Set sets the gauge to an arbitrary value.
func (g *Gauge) Set(v float64) {
	atomicStoreFloat(&g.valBits, v)
	g.publish()
}

// SetToCurrentTime sets the gauge to the current Unix time in seconds.
func (g *Gauge) SetToCurrentTime() {
	g.Set(float64(time.Now().UnixNano()) / 1e9)
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	g.Add(1)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	g.Add(-1)
}

// Add adds the given value to the gauge. The value can be negative,
// resulting in a decrease.
func (g *Gauge) Add(v float64) {
	atomicAddFloat(&g.valBits, v)
	g.publish()
}

// Sub subtracts the given value from the gauge.
func (g *Gauge) Sub(v float64) {
	g.Add(-v)
}

// IncTo sets the gauge to v iff v is greater than the current value. It
// never decreases the gauge.
func (g *Gauge) IncTo(v float64) {
	atomicMaxFloat(&g.valBits, v)
	g.publish()
}

// DecTo sets the gauge to v iff v is less than the current value. It never
// increases the gauge.
func (g *Gauge) DecTo(v float64) {
	atomicMinFloat(&g.valBits, v)
	g.publish()
}

// Value returns the current value of the gauge.
func (g *Gauge) Value() float64 {
	return atomicLoadFloat(&g.valBits)
}

func (g *Gauge) collect(b *bytes.Buffer) {
	writeSample(b, g.id, g.Value())
}

// GaugeVec is a family of Gauges that differ only in their label values.
type GaugeVec struct {
	fam *family
}

// GetMetricWithLabelValues returns the Gauge for the given label values,
// creating it on first use. For the same tuple the same *Gauge is returned
// on every call.
func (v *GaugeVec) GetMetricWithLabelValues(lvs ...string) (*Gauge, error) {
	c, err := v.fam.getOrCreate(lvs)
	if err != nil {
		return nil, err
	}
	return c.(*Gauge), nil
}

// WithLabelValues works as GetMetricWithLabelValues, but panics on error.
func (v *GaugeVec) WithLabelValues(lvs ...string) *Gauge {
	g, err := v.GetMetricWithLabelValues(lvs...)
	if err != nil {
		panic(err)
	}
	return g
}

// GetMetricWith returns the Gauge for the given label map. The map must
// contain exactly the names of the family's label schema.
func (v *GaugeVec) GetMetricWith(labels Labels) (*Gauge, error) {
	lvs, err := labelMapToValues(v.fam, labels)
	if err != nil {
		return nil, err
	}
	return v.GetMetricWithLabelValues(lvs...)
}

// With works as GetMetricWith, but panics on error.
func (v *GaugeVec) With(labels Labels) *Gauge {
	g, err := v.GetMetricWith(labels)
	if err != nil {
		panic(err)
	}
	return g
}

// RemoveLabelValues discards the child for the given tuple. It reports
// whether a child was removed.
func (v *GaugeVec) RemoveLabelValues(lvs ...string) bool {
	return v.fam.remove(lvs)
}

// LabelValues returns the label value tuples of all children in insertion
// order.
func (v *GaugeVec) LabelValues() [][]string {
	return v.fam.labelValuesList()
}
