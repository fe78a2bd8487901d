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

// Package push delivers a Registry's text exposition to a Pushgateway, once
// or on a fixed interval.
package push

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	prometheusd "github.com/ivanovsergeyminsk/PrometheusD"
)

// DefInterval is the default push interval of Run.
const DefInterval = 1000 * time.Millisecond

const contentType = `text/plain`

// HTTPDoer is an interface for the one method of http.Client that is used by
// Pusher.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

type groupingPair struct {
	key   string
	value string
}

// Pusher collects a registry and POSTs the exposition to a Pushgateway. Use
// New to create one, attach the optional parameters with the builder
// methods, then call Push for a single delivery or Run for the periodic
// loop:
//
//	err := push.New("http://pushgateway:9091", "db_backup").
//		Grouping("shard", "eu-1").
//		Push(ctx)
type Pusher struct {
	err error

	endpoint string
	job      string
	instance string
	grouping []groupingPair

	interval time.Duration
	registry *prometheusd.Registry
	client   HTTPDoer
	onError  func(error)
}

// New returns a Pusher for the default registry with the default interval.
// The endpoint is the Pushgateway base URL; job names the pushed group.
// Neither may be empty.
func New(endpoint, job string) *Pusher {
	p := &Pusher{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		job:      job,
		interval: DefInterval,
		registry: prometheusd.DefaultRegistry(),
		client:   &http.Client{},
	}
	if endpoint == "" {
		p.err = errors.New("push: endpoint must not be empty")
	} else if _, err := url.Parse(endpoint); err != nil {
		p.err = fmt.Errorf("push: invalid endpoint: %w", err)
	}
	if job == "" && p.err == nil {
		p.err = errors.New("push: job must not be empty")
	}
	return p
}

// Instance adds an instance grouping label to the target URL.
func (p *Pusher) Instance(instance string) *Pusher {
	if instance == "" && p.err == nil {
		p.err = errors.New("push: instance must not be empty")
	}
	p.instance = instance
	return p
}

// Grouping adds an additional grouping label to the target URL. Neither key
// nor value may be empty.
func (p *Pusher) Grouping(key, value string) *Pusher {
	if (key == "" || value == "") && p.err == nil {
		p.err = errors.New("push: grouping key and value must not be empty")
	}
	p.grouping = append(p.grouping, groupingPair{key: key, value: value})
	return p
}

// Interval sets the delay between the cycles of Run. It must be positive.
func (p *Pusher) Interval(d time.Duration) *Pusher {
	if d <= 0 && p.err == nil {
		p.err = fmt.Errorf("push: interval must be positive, got %v", d)
	}
	p.interval = d
	return p
}

// Registry sets the registry to collect. Default is the process-wide default
// registry.
func (p *Pusher) Registry(r *prometheusd.Registry) *Pusher {
	p.registry = r
	return p
}

// Client sets a custom HTTP client.
func (p *Pusher) Client(c HTTPDoer) *Pusher {
	p.client = c
	return p
}

// OnError sets a callback receiving transport failures from Run. Without it,
// failures are logged.
func (p *Pusher) OnError(fn func(error)) *Pusher {
	p.onError = fn
	return p
}

// targetURL builds <endpoint>/job/<job>[/instance/<instance>][/k/v...].
func (p *Pusher) targetURL() string {
	var b strings.Builder
	b.WriteString(p.endpoint)
	b.WriteString("/job/")
	b.WriteString(url.PathEscape(p.job))
	if p.instance != "" {
		b.WriteString("/instance/")
		b.WriteString(url.PathEscape(p.instance))
	}
	for _, g := range p.grouping {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(g.key))
		b.WriteByte('/')
		b.WriteString(url.PathEscape(g.value))
	}
	return b.String()
}

// Push collects the registry once and POSTs the exposition to the target
// URL. A *prometheusd.ScrapeError is returned as is, so callers can tell a
// failed collection from a failed delivery.
func (p *Pusher) Push(ctx context.Context) error {
	if p.err != nil {
		return p.err
	}

	var buf bytes.Buffer
	if err := p.registry.CollectAndSerialize(ctx, &buf); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.targetURL(), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("push: unexpected status %d pushing to %s: %s", resp.StatusCode, p.targetURL(), body)
	}
	return nil
}

// Run pushes every interval until ctx is cancelled. On cancellation one
// final push is performed so the latest state reaches the gateway, then Run
// returns nil; the cancellation itself is not reported.
//
// A scrape failure skips the cycle silently. Any other push error goes to
// the OnError callback, or the log when none is set; the loop continues.
func (p *Pusher) Run(ctx context.Context) error {
	if p.err != nil {
		return p.err
	}

	for {
		started := time.Now()
		p.pushAndReport(ctx)

		delay := p.interval - time.Since(started)
		if delay < 0 {
			delay = 0
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			// Final push with the latest state. The loop context is
			// gone, so it cannot carry the request.
			p.pushAndReport(context.Background())
			return nil
		case <-timer.C:
		}
	}
}

func (p *Pusher) pushAndReport(ctx context.Context) {
	err := p.Push(ctx)
	if err == nil {
		return
	}
	var scrapeErr *prometheusd.ScrapeError
	if errors.As(err, &scrapeErr) {
		return
	}
	if p.onError != nil {
		p.onError(err)
		return
	}
	log.Printf("push: %v", err)
}
