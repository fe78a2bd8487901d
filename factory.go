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
	"fmt"
	"sort"
)

// A Factory is the front door for creating metrics against one registry: it
// validates names and labels, composes static labels, and performs
// get-or-create against the registry. Creating a metric under a name that is
// already registered returns the existing family, provided kind and label
// schema match exactly.
type Factory struct {
	reg          *Registry
	staticLabels LabelSet
}

// NewFactory returns a Factory creating metrics in r.
func NewFactory(r *Registry) *Factory {
	return &Factory{reg: r}
}

// WithStaticLabels returns a derived Factory that attaches the given labels
// to every metric it creates, between the metric's own static labels and the
// registry's.
func (f *Factory) WithStaticLabels(labels Labels) *Factory {
	return &Factory{
		reg:          f.reg,
		staticLabels: f.staticLabels.AppendSet(labelSetFromMap(labels)),
	}
}

// Registry returns the registry this factory creates metrics in.
func (f *Factory) Registry() *Registry {
	return f.reg
}

// newFamily validates all identifiers, composes the effective static label
// set, and get-or-adds the family against the registry. configure is applied
// to a newly built family only; on re-registration the existing family's
// configuration wins.
func (f *Factory) newFamily(
	name, help string,
	kind metricKind,
	labelNames []string,
	metricStatic Labels,
	suppressInitial bool,
	configure func(*family) error,
) (*family, error) {
	if err := validateMetricName(name); err != nil {
		return nil, err
	}
	static := labelSetFromMap(metricStatic).
		AppendSet(f.staticLabels).
		AppendSet(f.reg.StaticLabels())

	seen := map[string]struct{}{}
	if err := validateLabelNames(labelNames, kind, seen); err != nil {
		return nil, err
	}
	if err := validateLabelNames(static.names, kind, seen); err != nil {
		return nil, err
	}

	schema := make([]string, len(labelNames))
	copy(schema, labelNames)

	return f.reg.getOrAdd(name, kind, schema, func() (*family, error) {
		fam := newFamily(name, help, kind, schema, static, suppressInitial)
		if configure != nil {
			if err := configure(fam); err != nil {
				return nil, err
			}
		}
		return fam, nil
	})
}

// NewCounter creates (or looks up) an unlabelled Counter.
func (f *Factory) NewCounter(opts CounterOpts) (*Counter, error) {
	fam, err := f.newFamily(opts.Name, opts.Help, counterKind, nil, opts.StaticLabels, opts.SuppressInitialValue, nil)
	if err != nil {
		return nil, err
	}
	child, err := fam.getOrCreate(nil)
	if err != nil {
		return nil, err
	}
	return child.(*Counter), nil
}

// NewCounterVec creates (or looks up) a CounterVec partitioned by the given
// label names.
func (f *Factory) NewCounterVec(opts CounterOpts, labelNames []string) (*CounterVec, error) {
	fam, err := f.newFamily(opts.Name, opts.Help, counterKind, labelNames, opts.StaticLabels, opts.SuppressInitialValue, nil)
	if err != nil {
		return nil, err
	}
	return &CounterVec{fam: fam}, nil
}

// NewGauge creates (or looks up) an unlabelled Gauge.
func (f *Factory) NewGauge(opts GaugeOpts) (*Gauge, error) {
	fam, err := f.newFamily(opts.Name, opts.Help, gaugeKind, nil, opts.StaticLabels, opts.SuppressInitialValue, nil)
	if err != nil {
		return nil, err
	}
	child, err := fam.getOrCreate(nil)
	if err != nil {
		return nil, err
	}
	return child.(*Gauge), nil
}

// NewGaugeVec creates (or looks up) a GaugeVec partitioned by the given
// label names.
func (f *Factory) NewGaugeVec(opts GaugeOpts, labelNames []string) (*GaugeVec, error) {
	fam, err := f.newFamily(opts.Name, opts.Help, gaugeKind, labelNames, opts.StaticLabels, opts.SuppressInitialValue, nil)
	if err != nil {
		return nil, err
	}
	return &GaugeVec{fam: fam}, nil
}

func configureHistogram(opts HistogramOpts) func(*family) error {
	return func(fam *family) error {
		buckets, err := validateBuckets(opts.Buckets)
		if err != nil {
			return err
		}
		fam.upperBounds = buckets
		return nil
	}
}

// NewHistogram creates (or looks up) an unlabelled Histogram.
func (f *Factory) NewHistogram(opts HistogramOpts) (*Histogram, error) {
	fam, err := f.newFamily(opts.Name, opts.Help, histogramKind, nil, opts.StaticLabels, opts.SuppressInitialValue, configureHistogram(opts))
	if err != nil {
		return nil, err
	}
	child, err := fam.getOrCreate(nil)
	if err != nil {
		return nil, err
	}
	return child.(*Histogram), nil
}

// NewHistogramVec creates (or looks up) a HistogramVec partitioned by the
// given label names.
func (f *Factory) NewHistogramVec(opts HistogramOpts, labelNames []string) (*HistogramVec, error) {
	fam, err := f.newFamily(opts.Name, opts.Help, histogramKind, labelNames, opts.StaticLabels, opts.SuppressInitialValue, configureHistogram(opts))
	if err != nil {
		return nil, err
	}
	return &HistogramVec{fam: fam}, nil
}

func configureSummary(opts SummaryOpts) func(*family) error {
	return func(fam *family) error {
		objectives := make([]Objective, len(opts.Objectives))
		copy(objectives, opts.Objectives)
		for _, o := range objectives {
			if o.Quantile < 0 || o.Quantile > 1 {
				return fmt.Errorf("summary objective quantile %v is not between 0 and 1", o.Quantile)
			}
			if o.Epsilon <= 0 || o.Epsilon >= 1 {
				return fmt.Errorf("summary objective epsilon %v is not between 0 and 1", o.Epsilon)
			}
		}
		sort.Slice(objectives, func(i, j int) bool {
			return objectives[i].Quantile < objectives[j].Quantile
		})

		maxAge := opts.MaxAge
		if maxAge == 0 {
			maxAge = DefMaxAge
		} else if maxAge < 0 {
			return fmt.Errorf("summary MaxAge %v must be positive", opts.MaxAge)
		}
		ageBuckets := opts.AgeBuckets
		if ageBuckets == 0 {
			ageBuckets = DefAgeBuckets
		} else if ageBuckets < 0 {
			return fmt.Errorf("summary AgeBuckets %d must be positive", opts.AgeBuckets)
		}
		bufCap := opts.BufCap
		if bufCap == 0 {
			bufCap = DefBufCap
		} else if bufCap < 0 {
			return fmt.Errorf("summary BufCap %d must be positive", opts.BufCap)
		}

		fam.objectives = objectives
		fam.maxAge = maxAge
		fam.ageBuckets = ageBuckets
		fam.bufCap = bufCap
		return nil
	}
}

// NewSummary creates (or looks up) an unlabelled Summary.
func (f *Factory) NewSummary(opts SummaryOpts) (*Summary, error) {
	fam, err := f.newFamily(opts.Name, opts.Help, summaryKind, nil, opts.StaticLabels, opts.SuppressInitialValue, configureSummary(opts))
	if err != nil {
		return nil, err
	}
	child, err := fam.getOrCreate(nil)
	if err != nil {
		return nil, err
	}
	return child.(*Summary), nil
}

// NewSummaryVec creates (or looks up) a SummaryVec partitioned by the given
// label names.
func (f *Factory) NewSummaryVec(opts SummaryOpts, labelNames []string) (*SummaryVec, error) {
	fam, err := f.newFamily(opts.Name, opts.Help, summaryKind, labelNames, opts.StaticLabels, opts.SuppressInitialValue, configureSummary(opts))
	if err != nil {
		return nil, err
	}
	return &SummaryVec{fam: fam}, nil
}

// MustNewCounter creates a Counter in the default registry and panics on
// error. The Must variants allow metrics to be declared as package
// variables:
//
//	var requestsTotal = prometheusd.MustNewCounter(prometheusd.CounterOpts{
//		Name: "http_requests_total",
//		Help: "Total number of HTTP requests.",
//	})
func MustNewCounter(opts CounterOpts) *Counter {
	c, err := DefaultFactory().NewCounter(opts)
	if err != nil {
		panic(err)
	}
	return c
}

// MustNewCounterVec creates a CounterVec in the default registry and panics
// on error.
func MustNewCounterVec(opts CounterOpts, labelNames []string) *CounterVec {
	v, err := DefaultFactory().NewCounterVec(opts, labelNames)
	if err != nil {
		panic(err)
	}
	return v
}

// MustNewGauge creates a Gauge in the default registry and panics on error.
func MustNewGauge(opts GaugeOpts) *Gauge {
	g, err := DefaultFactory().NewGauge(opts)
	if err != nil {
		panic(err)
	}
	return g
}

// MustNewGaugeVec creates a GaugeVec in the default registry and panics on
// error.
func MustNewGaugeVec(opts GaugeOpts, labelNames []string) *GaugeVec {
	v, err := DefaultFactory().NewGaugeVec(opts, labelNames)
	if err != nil {
		panic(err)
	}
	return v
}

// MustNewHistogram creates a Histogram in the default registry and panics on
// error.
func MustNewHistogram(opts HistogramOpts) *Histogram {
	h, err := DefaultFactory().NewHistogram(opts)
	if err != nil {
		panic(err)
	}
	return h
}

// MustNewHistogramVec creates a HistogramVec in the default registry and
// panics on error.
func MustNewHistogramVec(opts HistogramOpts, labelNames []string) *HistogramVec {
	v, err := DefaultFactory().NewHistogramVec(opts, labelNames)
	if err != nil {
		panic(err)
	}
	return v
}

// MustNewSummary creates a Summary in the default registry and panics on
// error.
func MustNewSummary(opts SummaryOpts) *Summary {
	s, err := DefaultFactory().NewSummary(opts)
	if err != nil {
		panic(err)
	}
	return s
}

// MustNewSummaryVec creates a SummaryVec in the default registry and panics
// on error.
func MustNewSummaryVec(opts SummaryOpts, labelNames []string) *SummaryVec {
	v, err := DefaultFactory().NewSummaryVec(opts, labelNames)
	if err != nil {
		panic(err)
	}
	return v
}
