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
	"errors"
	"fmt"
	"math"
)

// CounterOpts bundles the options for creating a Counter metric. Name is
// mandatory; everything else can be left at its zero value.
type CounterOpts struct {
	// Name is the metric name. It must match the metric name grammar
	// [a-zA-Z_:][a-zA-Z0-9_:]*.
	Name string

	// Help provides information about this metric.
	Help string

	// StaticLabels are attached to every child of this family, after the
	// per-child labels and before the registry's static labels.
	StaticLabels Labels

	// SuppressInitialValue omits children from the exposition until their
	// first mutation.
	SuppressInitialValue bool
}

// A Counter is a metric value that only ever goes up. Use a Gauge for values
// that can also go down.
//
// All methods are safe for concurrent use and never block.
type Counter struct {
	// valBits contains the bits of the float64 value. It has to go first
	// in the struct to guarantee alignment for atomic operations.
	// http://golang.org/pkg/sync/atomic/#pkg-note-BUG
	valBits uint64

	childBase
	id []byte
}

func newCounterChild(base childBase, flat LabelSet) *Counter {
	return &Counter{
		childBase: base,
		id:        buildIdentifier(base.fam.name, "", flat, "", ""),
	}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.Add(1)
}

// Add adds the given value to the counter. It panics if the value is
// negative or not finite.
func (c *Counter) Add(v float64) {
	if v < 0 {
		panic(errors.New("counter cannot decrease in value"))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		panic(fmt.Errorf("counter increment must be finite, got %v", v))
	}
	atomicAddFloat(&c.valBits, v)
	c.publish()
}

// IncTo sets the counter to v iff v is greater than the current value, so
// the counter stays monotone when fed an externally maintained total.
func (c *Counter) IncTo(v float64) {
	atomicMaxFloat(&c.valBits, v)
	c.publish()
}

// Value returns the current value of the counter.
func (c *Counter) Value() float64 {
	return atomicLoadFloat(&c.valBits)
}

func (c *Counter) collect(b *bytes.Buffer) {
	writeSample(b, c.id, c.Value())
}

// CounterVec is a family of Counters that differ only in their label values.
type CounterVec struct {
	fam *family
}

// GetMetricWithLabelValues returns the Counter for the given label values,
// creating it on first use. For the same tuple the same *Counter is returned
// on every call.
func (v *CounterVec) GetMetricWithLabelValues(lvs ...string) (*Counter, error) {
	c, err := v.fam.getOrCreate(lvs)
	if err != nil {
		return nil, err
	}
	return c.(*Counter), nil
}

// WithLabelValues works as GetMetricWithLabelValues, but panics on error.
// It allows the shorthand
//
//	vec.WithLabelValues("404", "GET").Inc()
func (v *CounterVec) WithLabelValues(lvs ...string) *Counter {
	c, err := v.GetMetricWithLabelValues(lvs...)
	if err != nil {
		panic(err)
	}
	return c
}

// GetMetricWith returns the Counter for the given label map. The map must
// contain exactly the names of the family's label schema.
func (v *CounterVec) GetMetricWith(labels Labels) (*Counter, error) {
	lvs, err := labelMapToValues(v.fam, labels)
	if err != nil {
		return nil, err
	}
	return v.GetMetricWithLabelValues(lvs...)
}

// With works as GetMetricWith, but panics on error.
func (v *CounterVec) With(labels Labels) *Counter {
	c, err := v.GetMetricWith(labels)
	if err != nil {
		panic(err)
	}
	return c
}

// RemoveLabelValues discards the child for the given tuple. A later
// WithLabelValues returns a fresh Counter starting at zero. It reports
// whether a child was removed.
func (v *CounterVec) RemoveLabelValues(lvs ...string) bool {
	return v.fam.remove(lvs)
}

// LabelValues returns the label value tuples of all children in insertion
// order.
func (v *CounterVec) LabelValues() [][]string {
	return v.fam.labelValuesList()
}

// labelMapToValues resolves a Labels map against the family's schema,
// rejecting missing or superfluous names.
func labelMapToValues(f *family, labels Labels) ([]string, error) {
	if len(labels) != len(f.labelNames) {
		return nil, fmt.Errorf(
			"%s: expected %d label values but got %d",
			f.name, len(f.labelNames), len(labels),
		)
	}
	lvs := make([]string, len(f.labelNames))
	for i, name := range f.labelNames {
		value, ok := labels[name]
		if !ok {
			return nil, fmt.Errorf("%s: label name %q missing in label map", f.name, name)
		}
		lvs[i] = value
	}
	return lvs, nil
}
