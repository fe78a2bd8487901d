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
	"context"
	"errors"
	"io"
	"sync"
)

// ScrapeError signals that a before-collect callback could not produce its
// values, e.g. because an external dependency is down. It aborts the
// collection; the HTTP exporter maps it to a 503 response and the pusher
// skips the cycle.
type ScrapeError struct {
	Reason string
}

func (e *ScrapeError) Error() string {
	return "scrape failed: " + e.Reason
}

// A Registry holds metric families keyed by name and orchestrates their
// collection into the text exposition format. Families are never removed;
// the registry is append-only.
//
// All methods are safe for concurrent use. Multiple collections may overlap.
type Registry struct {
	mtx          sync.RWMutex
	families     map[string]*family
	order        []*family
	staticLabels LabelSet
	staticSet    bool

	beforeCollect      []func()
	beforeCollectAsync []func(context.Context) error

	firstMtx       sync.Mutex
	hasCollected   bool
	onFirstCollect func(*Factory)
}

// NewRegistry returns a new, empty Registry without any static labels or
// callbacks.
func NewRegistry() *Registry {
	return &Registry{
		families: map[string]*family{},
	}
}

// SetStaticLabels attaches the given labels to every child of every family
// of this registry. It can be called at most once, and only while the
// registry is untouched: before any metric is registered and before the
// first collection.
func (r *Registry) SetStaticLabels(labels Labels) error {
	// firstMtx before mtx, the order runFirstCollect uses while its hook
	// registers metrics.
	r.firstMtx.Lock()
	defer r.firstMtx.Unlock()
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.staticSet {
		return errors.New("static labels are already set")
	}
	if len(r.families) > 0 {
		return errors.New("static labels cannot be set after metrics have been registered")
	}
	if r.hasCollected {
		return errors.New("static labels cannot be set after the first collection")
	}
	for name := range labels {
		if err := validateLabelName(name, gaugeKind); err != nil {
			return err
		}
	}
	r.staticLabels = labelSetFromMap(labels)
	r.staticSet = true
	return nil
}

// StaticLabels returns the registry's static labels in serialization order.
func (r *Registry) StaticLabels() LabelSet {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.staticLabels
}

// OnBeforeCollect registers a callback run synchronously at the start of
// every collection, in registration order. A callback that panics with a
// *ScrapeError aborts the scrape; any other panic is swallowed so a single
// faulty callback cannot prevent other metrics from being exposed.
func (r *Registry) OnBeforeCollect(fn func()) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.beforeCollect = append(r.beforeCollect, fn)
}

// OnBeforeCollectAsync registers a callback run concurrently with the other
// asynchronous callbacks at the start of every collection. The collection
// waits for all of them. A returned *ScrapeError aborts the scrape; other
// errors are ignored.
func (r *Registry) OnBeforeCollectAsync(fn func(context.Context) error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.beforeCollectAsync = append(r.beforeCollectAsync, fn)
}

// SetOnFirstCollect installs a hook run exactly once, at the start of the
// first collection. The default registry uses it to register the process
// sample metrics.
func (r *Registry) SetOnFirstCollect(fn func(*Factory)) {
	r.firstMtx.Lock()
	defer r.firstMtx.Unlock()
	r.onFirstCollect = fn
}

// getOrAdd returns the family registered under name, or inserts the one
// built by build. An existing family must match the requested kind and
// label schema exactly.
func (r *Registry) getOrAdd(name string, kind metricKind, labelNames []string, build func() (*family, error)) (*family, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if existing, ok := r.families[name]; ok {
		if err := existing.matches(kind, labelNames); err != nil {
			return nil, err
		}
		return existing, nil
	}
	fam, err := build()
	if err != nil {
		return nil, err
	}
	r.families[name] = fam
	r.order = append(r.order, fam)
	return fam, nil
}

// CollectAndSerialize runs the collection callbacks and streams the text
// exposition of every family, in registration order, into w.
//
// The output is assembled in one piece after all callbacks have finished, so
// a scrape failure never produces a partial exposition.
func (r *Registry) CollectAndSerialize(ctx context.Context, w io.Writer) error {
	r.runFirstCollect()

	if err := r.runCallbacks(ctx); err != nil {
		return err
	}

	r.mtx.RLock()
	families := make([]*family, len(r.order))
	copy(families, r.order)
	r.mtx.RUnlock()

	var buf bytes.Buffer
	for _, fam := range families {
		fam.collect(&buf)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (r *Registry) runFirstCollect() {
	r.firstMtx.Lock()
	defer r.firstMtx.Unlock()
	if r.hasCollected {
		return
	}
	if r.onFirstCollect != nil {
		r.onFirstCollect(NewFactory(r))
	}
	r.hasCollected = true
}

func (r *Registry) runCallbacks(ctx context.Context) error {
	r.mtx.RLock()
	syncFns := make([]func(), len(r.beforeCollect))
	copy(syncFns, r.beforeCollect)
	asyncFns := make([]func(context.Context) error, len(r.beforeCollectAsync))
	copy(asyncFns, r.beforeCollectAsync)
	r.mtx.RUnlock()

	for _, fn := range syncFns {
		if err := runGuarded(fn); err != nil {
			return err
		}
	}

	if len(asyncFns) == 0 {
		return nil
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(asyncFns))
	for _, fn := range asyncFns {
		fn := fn
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					if scrapeErr, ok := v.(*ScrapeError); ok {
						errCh <- scrapeErr
					}
				}
			}()
			if err := fn(ctx); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		var scrapeErr *ScrapeError
		if errors.As(err, &scrapeErr) {
			return scrapeErr
		}
	}
	return nil
}

// runGuarded converts a *ScrapeError panic into the scrape abort signal and
// swallows every other panic.
func runGuarded(fn func()) (err error) {
	defer func() {
		if v := recover(); v != nil {
			if scrapeErr, ok := v.(*ScrapeError); ok {
				err = scrapeErr
			}
		}
	}()
	fn()
	return nil
}

var (
	defaultMtx      sync.Mutex
	defaultRegistry *Registry
	defaultFactory  *Factory
)

// DefaultRegistry returns the lazily initialized process-wide registry. Its
// first collection registers the process sample metrics.
func DefaultRegistry() *Registry {
	defaultMtx.Lock()
	defer defaultMtx.Unlock()
	if defaultRegistry == nil {
		defaultRegistry = NewRegistry()
		defaultRegistry.SetOnFirstCollect(registerProcessMetrics)
		defaultFactory = NewFactory(defaultRegistry)
	}
	return defaultRegistry
}

// DefaultFactory returns the factory of the default registry.
func DefaultFactory() *Factory {
	DefaultRegistry()
	defaultMtx.Lock()
	defer defaultMtx.Unlock()
	return defaultFactory
}

// ResetDefaultRegistry discards the default registry so the next use starts
// from an empty one. It is meant for tests.
func ResetDefaultRegistry() {
	defaultMtx.Lock()
	defer defaultMtx.Unlock()
	defaultRegistry = nil
	defaultFactory = nil
}
