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

// Package prometheusd is an in-process metrics instrumentation library that
// records Counters, Gauges, Histograms and Summaries and exposes them in the
// Prometheus text exposition format (version 0.0.4).
//
// Metrics are created through a Factory bound to a Registry. The zero
// ceremony path uses the process-wide default registry:
//
//	var (
//		requestsTotal = prometheusd.MustNewCounter(prometheusd.CounterOpts{
//			Name: "http_requests_total",
//			Help: "Total number of HTTP requests.",
//		})
//		requestDuration = prometheusd.MustNewHistogramVec(prometheusd.HistogramOpts{
//			Name: "http_request_duration_seconds",
//			Help: "HTTP request latency distribution.",
//		}, []string{"method"})
//	)
//
//	func handle() {
//		requestsTotal.Inc()
//		timer := prometheusd.NewTimer(requestDuration.WithLabelValues("GET"))
//		defer timer.ObserveDuration()
//		// ...
//	}
//
// Applications that want isolation (tests, libraries) create their own
// Registry with NewRegistry and a Factory with NewFactory.
//
// The observe paths of Counter, Gauge and Histogram are lock-free; the
// Summary takes a short buffer lock. All types are safe for concurrent use.
//
// Exposition is pull-mode through the promhttp subpackage, which serves the
// registry on an HTTP endpoint, or push-mode through the push subpackage,
// which periodically delivers the exposition to a Pushgateway.
package prometheusd
