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

// Package metrics provides the in-process counter registry shared by the publisher
// and the latency tracker. Counters are owned by the registry and mutated only through
// delta methods; external readers receive immutable snapshots, never live references.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/LukasBola/orderstream/sak"
)

// Histogram bounds in microseconds: 1µs up to 1 hour, 3 significant figures.
const (
	histMinMicros = 1
	histMaxMicros = int64(time.Hour / time.Microsecond)
)

// Registry accumulates delivery and consumption counters for a single process.
// All methods are safe for concurrent use; delivery callbacks and the report loop
// share one instance.
type Registry struct {
	mu      sync.Mutex
	start   time.Time
	sentOK  int64
	sentErr int64

	processed int64
	errors    int64

	ackHist *hdrhistogram.Histogram
	e2eHist *hdrhistogram.Histogram

	mirror *promMirror
}

// NewRegistry returns an empty registry whose throughput clock starts now.
func NewRegistry() *Registry {
	return &Registry{
		start:   time.Now(),
		ackHist: hdrhistogram.New(histMinMicros, histMaxMicros, 3),
		e2eHist: hdrhistogram.New(histMinMicros, histMaxMicros, 3),
	}
}

func clampMicros(d time.Duration) int64 {
	us := d.Microseconds()
	if us < histMinMicros {
		return histMinMicros
	}
	if us > histMaxMicros {
		return histMaxMicros
	}
	return us
}

// RecordSendOK accounts one acknowledged delivery and its ack latency.
func (r *Registry) RecordSendOK(ackLatency time.Duration) {
	r.mu.Lock()
	r.sentOK++
	r.ackHist.RecordValue(clampMicros(ackLatency))
	mirror := r.mirror
	r.mu.Unlock()
	if mirror != nil {
		mirror.sentOK.Inc()
		mirror.ackLatency.Observe(ackLatency.Seconds())
	}
}

// RecordSendError accounts one failed delivery.
func (r *Registry) RecordSendError() {
	r.mu.Lock()
	r.sentErr++
	mirror := r.mirror
	r.mu.Unlock()
	if mirror != nil {
		mirror.sentError.Inc()
	}
}

// AddSendErrors accounts n deliveries that never received an acknowledgment,
// used when the final drain times out.
func (r *Registry) AddSendErrors(n int64) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	r.sentErr += n
	mirror := r.mirror
	r.mu.Unlock()
	if mirror != nil {
		mirror.sentError.Add(float64(n))
	}
}

// RecordProcessed accounts one consumed record and its end-to-end latency.
func (r *Registry) RecordProcessed(latency time.Duration) {
	r.mu.Lock()
	r.processed++
	r.e2eHist.RecordValue(clampMicros(latency))
	mirror := r.mirror
	r.mu.Unlock()
	if mirror != nil {
		mirror.processed.Inc()
		mirror.e2eLatency.Observe(latency.Seconds())
	}
}

// RecordError accounts one record that could not be processed (malformed payload, fetch error).
func (r *Registry) RecordError() {
	r.mu.Lock()
	r.errors++
	mirror := r.mirror
	r.mu.Unlock()
	if mirror != nil {
		mirror.errors.Inc()
	}
}

// Snapshot is an immutable point-in-time copy of the registry counters.
type Snapshot struct {
	SentOK    int64
	SentError int64
	Processed int64
	Errors    int64

	ThroughputEPS float64
	AvgAckMs      float64
	P99AckMs      float64
	AvgLatencyMs  float64
	P99LatencyMs  float64
	Elapsed       time.Duration
}

// Snapshot produces an immutable copy of the current counters. Throughput is derived
// from successful sends for producers and processed records for consumers; both rates
// are computed here and the caller picks the relevant one.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	elapsed := time.Since(r.start)
	s := Snapshot{
		SentOK:    r.sentOK,
		SentError: r.sentErr,
		Processed: r.processed,
		Errors:    r.errors,
		Elapsed:   elapsed,
	}
	seconds := sak.Max(elapsed.Seconds(), 0.001)
	if r.sentOK > 0 {
		s.ThroughputEPS = float64(r.sentOK) / seconds
		s.AvgAckMs = r.ackHist.Mean() / 1000
		s.P99AckMs = float64(r.ackHist.ValueAtQuantile(99)) / 1000
	}
	if r.processed > 0 {
		s.ThroughputEPS = float64(r.processed) / seconds
		s.AvgLatencyMs = r.e2eHist.Mean() / 1000
		s.P99LatencyMs = float64(r.e2eHist.ValueAtQuantile(99)) / 1000
	}
	return s
}

// ProducerLine renders the publisher report format:
//
//	sent_ok=120 sent_error=0 throughput_eps=9.98 avg_ack_ms=1.42
func (s Snapshot) ProducerLine() string {
	return fmt.Sprintf("sent_ok=%d sent_error=%d throughput_eps=%.2f avg_ack_ms=%.2f",
		s.SentOK, s.SentError, s.ThroughputEPS, s.AvgAckMs)
}

// ConsumerLine renders the tracker report format:
//
//	processed=1200 errors=3 throughput_eps=240.12 avg_end_to_end_latency_ms=18.40
func (s Snapshot) ConsumerLine() string {
	return fmt.Sprintf("processed=%d errors=%d throughput_eps=%.2f avg_end_to_end_latency_ms=%.2f",
		s.Processed, s.Errors, s.ThroughputEPS, s.AvgLatencyMs)
}

// SummarySuffix appends the elapsed wall time, used on final summary lines only.
func (s Snapshot) SummarySuffix() string {
	return fmt.Sprintf(" elapsed_s=%.2f", s.Elapsed.Seconds())
}
