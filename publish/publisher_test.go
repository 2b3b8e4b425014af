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

package publish

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LukasBola/orderstream/metrics"
	"github.com/LukasBola/orderstream/order"
	"github.com/LukasBola/orderstream/sak"
	"github.com/twmb/franz-go/pkg/kgo"
)

// fakeSender acknowledges produced records according to its mode: immediately,
// with an error, or not at all until the test releases them.
type fakeSender struct {
	mu       sync.Mutex
	records  []*kgo.Record
	promises []func(*kgo.Record, error)
	ackErr   error
	hold     bool
}

func (f *fakeSender) Produce(_ context.Context, record *kgo.Record, promise func(*kgo.Record, error)) {
	f.mu.Lock()
	f.records = append(f.records, record)
	if f.hold {
		f.promises = append(f.promises, promise)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	promise(record, f.ackErr)
}

func (f *fakeSender) Flush(ctx context.Context) error {
	f.mu.Lock()
	held := len(f.promises)
	f.mu.Unlock()
	if held > 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakeSender) release() {
	f.mu.Lock()
	promises, records := f.promises, f.records
	f.promises = nil
	f.mu.Unlock()
	for i, promise := range promises {
		promise(records[i], nil)
	}
}

func newTestPublisher(t *testing.T, config Config, sender Sender) (*Publisher, *metrics.Registry) {
	t.Helper()
	registry := metrics.NewRegistry()
	p, err := NewPublisher(config, sender, order.NewSeededGenerator(5), registry)
	if err != nil {
		t.Fatal(err)
	}
	return p, registry
}

func TestPublisherAccountingExact(t *testing.T) {
	sender := &fakeSender{}
	p, registry := newTestPublisher(t, Config{
		Topic:           "orders",
		EventsPerSecond: 100000,
		MaxEvents:       25,
	}, sender)
	if err := p.Run(sak.NewRunStatus(context.Background())); err != nil {
		t.Fatal(err)
	}
	s := registry.Snapshot()
	if s.SentOK != 25 || s.SentError != 0 {
		t.Errorf("incorrect accounting. sent_ok %d, sent_error %d, expected 25/0", s.SentOK, s.SentError)
	}
	if got := p.Attempts(); got != s.SentOK+s.SentError {
		t.Errorf("attempts %d != sent_ok + sent_error %d", got, s.SentOK+s.SentError)
	}
}

func TestPublisherCountsAckErrors(t *testing.T) {
	sender := &fakeSender{ackErr: errors.New("broker said no")}
	p, registry := newTestPublisher(t, Config{
		Topic:           "orders",
		EventsPerSecond: 100000,
		MaxEvents:       10,
	}, sender)
	if err := p.Run(sak.NewRunStatus(context.Background())); err != nil {
		t.Fatal(err)
	}
	s := registry.Snapshot()
	if s.SentOK != 0 || s.SentError != 10 {
		t.Errorf("incorrect accounting. sent_ok %d, sent_error %d, expected 0/10", s.SentOK, s.SentError)
	}
}

// a drain that times out must count the unacknowledged sends as sent_error,
// and acks that straggle in afterwards must not be double counted
func TestPublisherDrainTimeoutAndLateAcks(t *testing.T) {
	sender := &fakeSender{hold: true}
	p, registry := newTestPublisher(t, Config{
		Topic:           "orders",
		EventsPerSecond: 100000,
		MaxEvents:       10,
		FlushTimeout:    50 * time.Millisecond,
	}, sender)
	if err := p.Run(sak.NewRunStatus(context.Background())); err != nil {
		t.Fatal(err)
	}
	s := registry.Snapshot()
	if s.SentOK != 0 || s.SentError != 10 {
		t.Errorf("incorrect accounting after timeout. sent_ok %d, sent_error %d, expected 0/10", s.SentOK, s.SentError)
	}

	sender.release()
	s = registry.Snapshot()
	if s.SentOK != 0 || s.SentError != 10 {
		t.Errorf("late acks were double counted. sent_ok %d, sent_error %d, expected 0/10", s.SentOK, s.SentError)
	}
}

func TestPublisherPacingNoBurst(t *testing.T) {
	sender := &fakeSender{}
	p, _ := newTestPublisher(t, Config{
		Topic:           "orders",
		EventsPerSecond: 200,
		MaxEvents:       20,
	}, sender)
	started := time.Now()
	if err := p.Run(sak.NewRunStatus(context.Background())); err != nil {
		t.Fatal(err)
	}
	// 20 events at 200/s with burst 1 needs at least 19 inter-send intervals
	if elapsed := time.Since(started); elapsed < 80*time.Millisecond {
		t.Errorf("20 events at 200 eps finished in %v, pacing is not being honored", elapsed)
	}
}

func TestPublisherStopsOnDuration(t *testing.T) {
	sender := &fakeSender{}
	p, registry := newTestPublisher(t, Config{
		Topic:           "orders",
		EventsPerSecond: 100,
		Duration:        100 * time.Millisecond,
	}, sender)
	if err := p.Run(sak.NewRunStatus(context.Background())); err != nil {
		t.Fatal(err)
	}
	s := registry.Snapshot()
	if s.SentOK == 0 {
		t.Error("expected at least one event before the duration elapsed")
	}
	if s.SentOK > 30 {
		t.Errorf("sent %d events in 100ms at 100 eps, duration limit is not being honored", s.SentOK)
	}
}

func TestPublisherStopsOnHalt(t *testing.T) {
	sender := &fakeSender{}
	p, _ := newTestPublisher(t, Config{
		Topic:           "orders",
		EventsPerSecond: 10,
	}, sender)
	rs := sak.NewRunStatus(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(rs) }()
	time.Sleep(50 * time.Millisecond)
	rs.Halt()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publisher did not stop after halt")
	}
}

func TestPublisherDeliveryObserver(t *testing.T) {
	var mu sync.Mutex
	var outcomes []Outcome
	sender := &fakeSender{}
	p, _ := newTestPublisher(t, Config{
		Topic:           "orders",
		EventsPerSecond: 100000,
		MaxEvents:       5,
		OnDelivery: func(dr DeliveryRecord) {
			mu.Lock()
			outcomes = append(outcomes, dr.Outcome)
			mu.Unlock()
		},
	}, sender)
	if err := p.Run(sak.NewRunStatus(context.Background())); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(outcomes) != 5 {
		t.Fatalf("incorrect delivery count. actual %d, expected %d", len(outcomes), 5)
	}
	for _, outcome := range outcomes {
		if outcome != AckOK {
			t.Errorf("incorrect outcome. actual %v, expected %v", outcome, AckOK)
		}
	}
}

func TestPublisherConfigValidation(t *testing.T) {
	registry := metrics.NewRegistry()
	if _, err := NewPublisher(Config{Topic: "orders"}, &fakeSender{}, order.NewGenerator(), registry); err == nil {
		t.Error("expected error for zero events-per-second")
	}
	if _, err := NewPublisher(Config{EventsPerSecond: 10}, &fakeSender{}, order.NewGenerator(), registry); err == nil {
		t.Error("expected error for empty topic")
	}
	if _, err := NewPublisher(Config{Topic: "orders", EventsPerSecond: 10, MaxEvents: -1}, &fakeSender{}, order.NewGenerator(), registry); err == nil {
		t.Error("expected error for negative max-events")
	}
}
