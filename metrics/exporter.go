// Copyright 2026 Lukasz Bola. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"net/http"

	"github.com/LukasBola/orderstream/stream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// promMirror duplicates registry deltas into Prometheus collectors.
// Nil unless EnablePrometheus was called; the internal counters remain authoritative
// for report lines and final snapshots either way.
type promMirror struct {
	sentOK     prometheus.Counter
	sentError  prometheus.Counter
	processed  prometheus.Counter
	errors     prometheus.Counter
	ackLatency prometheus.Histogram
	e2eLatency prometheus.Histogram
}

func newPromMirror(component string) *promMirror {
	labels := prometheus.Labels{"component": component}
	return &promMirror{
		sentOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "orderstream_sent_ok_total",
			Help:        "Total number of successfully acknowledged deliveries",
			ConstLabels: labels,
		}),
		sentError: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "orderstream_sent_error_total",
			Help:        "Total number of failed or unacknowledged deliveries",
			ConstLabels: labels,
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "orderstream_processed_total",
			Help:        "Total number of records consumed and accounted",
			ConstLabels: labels,
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "orderstream_errors_total",
			Help:        "Total number of records skipped due to errors",
			ConstLabels: labels,
		}),
		ackLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "orderstream_ack_latency_seconds",
			Help:        "Histogram of broker acknowledgment latency",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}),
		e2eLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "orderstream_end_to_end_latency_seconds",
			Help:        "Histogram of end-to-end event latency",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}),
	}
}

// EnablePrometheus mirrors all future registry deltas into a fresh prometheus.Registry
// and returns it, ready for StartExporter. Call before any counters are recorded.
func (r *Registry) EnablePrometheus(component string) *prometheus.Registry {
	mirror := newPromMirror(component)
	preg := prometheus.NewRegistry()
	preg.MustRegister(mirror.sentOK, mirror.sentError, mirror.processed, mirror.errors,
		mirror.ackLatency, mirror.e2eLatency)
	r.mu.Lock()
	r.mirror = mirror
	r.mu.Unlock()
	return preg
}

// StartExporter serves preg on addr under /metrics in a background goroutine.
func StartExporter(addr string, preg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(preg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			// the exporter is best effort; losing it never stops the process
			stream.Log().Errorf("metrics exporter on %s failed: %v", addr, err)
		}
	}()
}
