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
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Labels represents a collection of label name -> value mappings. It is used
// for the With(Labels) lookup methods of the Vec types and for static labels
// in the Opts structs and on registries.
type Labels map[string]string

// separatorByte is written between label values when fingerprinting. It
// cannot occur in a valid UTF-8 sequence, so adjacent values cannot be
// confused with each other.
const separatorByte byte = 255

// A LabelSet is an immutable ordered vector of label name/value pairs. Within
// a family all children share the same names, so equality between children is
// defined over the values alone. The value fingerprint is computed once at
// construction.
type LabelSet struct {
	names  []string
	values []string
	hash   uint64
}

// NewLabelSet returns a LabelSet over the given names and values. The two
// slices must have the same length; empty slices are valid and produce the
// empty label set.
func NewLabelSet(names, values []string) (LabelSet, error) {
	if len(names) != len(values) {
		return LabelSet{}, fmt.Errorf(
			"label name count %d does not match label value count %d",
			len(names), len(values),
		)
	}
	return LabelSet{
		names:  names,
		values: values,
		hash:   hashLabelValues(values),
	}, nil
}

func hashLabelValues(values []string) uint64 {
	d := xxhash.New()
	for _, v := range values {
		d.WriteString(v)
		d.Write([]byte{separatorByte})
	}
	return d.Sum64()
}

// Len returns the number of label pairs in the set.
func (s LabelSet) Len() int { return len(s.names) }

// Append returns a new LabelSet with the given pair added at the end. The
// receiver is left unchanged.
func (s LabelSet) Append(name, value string) LabelSet {
	names := make([]string, 0, len(s.names)+1)
	values := make([]string, 0, len(s.values)+1)
	names = append(append(names, s.names...), name)
	values = append(append(values, s.values...), value)
	return LabelSet{names: names, values: values, hash: hashLabelValues(values)}
}

// AppendSet returns a new LabelSet with every pair of o added after the
// receiver's pairs, preserving both orders.
func (s LabelSet) AppendSet(o LabelSet) LabelSet {
	names := make([]string, 0, len(s.names)+len(o.names))
	values := make([]string, 0, len(s.values)+len(o.values))
	names = append(append(names, s.names...), o.names...)
	values = append(append(values, s.values...), o.values...)
	return LabelSet{names: names, values: values, hash: hashLabelValues(values)}
}

// String renders the set as it appears between the braces of a metric line:
// name1="value1",name2="value2". Values are escaped per the text exposition
// format.
func (s LabelSet) String() string {
	var b bytes.Buffer
	s.writeTo(&b)
	return b.String()
}

func (s LabelSet) writeTo(b *bytes.Buffer) {
	for i, name := range s.names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(name)
		b.WriteString(`="`)
		writeEscapedLabelValue(b, s.values[i])
		b.WriteByte('"')
	}
}

// labelSetFromMap converts a Labels map into a LabelSet ordered by name, so
// that map iteration order cannot leak into the exposition.
func labelSetFromMap(labels Labels) LabelSet {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = labels[name]
	}
	ls, _ := NewLabelSet(names, values)
	return ls
}
