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
	"os"

	"github.com/prometheus/procfs"
)

// registerProcessMetrics installs the default process sample metrics and a
// before-collect callback refreshing them from procfs. Where procfs is not
// available (anything but Linux, or a masked /proc) it registers nothing.
func registerProcessMetrics(f *Factory) {
	if _, err := procfs.NewDefaultFS(); err != nil {
		return
	}

	cpuTotal, err := f.NewCounter(CounterOpts{
		Name: "process_cpu_seconds_total",
		Help: "Total user and system CPU time spent in seconds.",
	})
	if err != nil {
		return
	}
	openFDs, err := f.NewGauge(GaugeOpts{
		Name: "process_open_fds",
		Help: "Number of open file descriptors.",
	})
	if err != nil {
		return
	}
	maxFDs, err := f.NewGauge(GaugeOpts{
		Name: "process_max_fds",
		Help: "Maximum number of open file descriptors.",
	})
	if err != nil {
		return
	}
	vsize, err := f.NewGauge(GaugeOpts{
		Name: "process_virtual_memory_bytes",
		Help: "Virtual memory size in bytes.",
	})
	if err != nil {
		return
	}
	rss, err := f.NewGauge(GaugeOpts{
		Name: "process_resident_memory_bytes",
		Help: "Resident memory size in bytes.",
	})
	if err != nil {
		return
	}
	startTime, err := f.NewGauge(GaugeOpts{
		Name: "process_start_time_seconds",
		Help: "Start time of the process since unix epoch in seconds.",
	})
	if err != nil {
		return
	}

	f.Registry().OnBeforeCollect(func() {
		p, err := procfs.NewProc(os.Getpid())
		if err != nil {
			return
		}
		if stat, err := p.Stat(); err == nil {
			cpuTotal.IncTo(stat.CPUTime())
			vsize.Set(float64(stat.VirtualMemory()))
			rss.Set(float64(stat.ResidentMemory()))
			if st, err := stat.StartTime(); err == nil {
				startTime.Set(st)
			}
		}
		if fds, err := p.FileDescriptorsLen(); err == nil {
			openFDs.Set(float64(fds))
		}
		if limits, err := p.Limits(); err == nil {
			maxFDs.Set(float64(limits.OpenFiles))
		}
	})
}
