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

// Package publish implements the rate-governed publish loop with delivery accounting.
// The pacing loop never blocks on broker acknowledgments; outcomes are reconciled
// asynchronously as they arrive and drained with a bounded timeout at shutdown.
package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LukasBola/orderstream/metrics"
	"github.com/LukasBola/orderstream/order"
	"github.com/LukasBola/orderstream/sak"
	"github.com/LukasBola/orderstream/stream"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/time/rate"
)

// Outcome of a single publish attempt.
type Outcome int

const (
	AckOK Outcome = iota
	AckError
)

// DeliveryRecord describes the fate of one publish attempt. Records are ephemeral;
// they feed the metrics registry and the optional observer, and are never persisted.
type DeliveryRecord struct {
	Outcome    Outcome
	SentAt     time.Time
	AckLatency time.Duration
	Err        error
}

// Sender is the broker surface the publisher needs. *kgo.Client satisfies it.
type Sender interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
}

// Generator yields the next event to publish. Implemented by order.Generator
// and order.InvalidGenerator.
type Generator interface {
	Next() *order.OrderEvent
}

type Config struct {
	Topic string
	// Target publish rate. Must be > 0.
	EventsPerSecond float64
	// Stop after this many publish attempts. 0 means no cap.
	MaxEvents int64
	// Stop after this much wall time. 0 means no duration limit.
	Duration time.Duration
	// How long the final drain waits for outstanding acknowledgments before
	// counting them as sent_error. Defaults to 10s.
	FlushTimeout time.Duration
	// Optional, invoked from the pacing loop after every attempt. Used for progress display.
	OnSend func(attempts int64)
	// Optional observer for individual delivery outcomes. Invoked from delivery callbacks.
	OnDelivery func(DeliveryRecord)
}

func (c Config) validate() error {
	if len(c.Topic) == 0 {
		return errors.New("topic must not be empty")
	}
	if c.EventsPerSecond <= 0 {
		return fmt.Errorf("events-per-second must be greater than 0, got %v", c.EventsPerSecond)
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %v", c.Duration)
	}
	if c.MaxEvents < 0 {
		return fmt.Errorf("max-events must not be negative, got %d", c.MaxEvents)
	}
	return nil
}

// Publisher runs the throughput-governed publish loop.
type Publisher struct {
	config    Config
	sender    Sender
	generator Generator
	registry  *metrics.Registry

	mu        sync.Mutex
	attempts  int64
	finalized bool
}

func NewPublisher(config Config, sender Sender, generator Generator, registry *metrics.Registry) (*Publisher, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.FlushTimeout <= 0 {
		config.FlushTimeout = 10 * time.Second
	}
	return &Publisher{
		config:    config,
		sender:    sender,
		generator: generator,
		registry:  registry,
	}, nil
}

// Attempts returns the number of publish attempts issued so far.
func (p *Publisher) Attempts() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// settle runs fn unless the publisher already finalized its accounting.
// Guarantees sent_ok + sent_error == attempts exactly, even when the drain
// times out while acknowledgments are still in flight.
func (p *Publisher) settle(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.finalized {
		fn()
	}
}

func (p *Publisher) deliver(dr DeliveryRecord) {
	if p.config.OnDelivery != nil {
		p.config.OnDelivery(dr)
	}
}

// Run publishes events at the configured rate until the duration elapses, the
// max-events cap is reached, or rs halts — whichever happens first — then drains
// outstanding acknowledgments. The limiter carries a burst of 1, so a send that
// overruns its interval delays subsequent sends instead of triggering a catch-up burst.
func (p *Publisher) Run(rs sak.RunStatus) error {
	limiter := rate.NewLimiter(rate.Limit(p.config.EventsPerSecond), 1)
	loopCtx := rs.Ctx()
	if p.config.Duration > 0 {
		var cancel context.CancelFunc
		loopCtx, cancel = context.WithTimeout(loopCtx, p.config.Duration)
		defer cancel()
	}

	var attempts int64
	for {
		if p.config.MaxEvents > 0 && attempts >= p.config.MaxEvents {
			break
		}
		if err := limiter.Wait(loopCtx); err != nil {
			// duration elapsed or stop signal received
			break
		}
		attempts++
		p.mu.Lock()
		p.attempts = attempts
		p.mu.Unlock()
		p.send()
		if p.config.OnSend != nil {
			p.config.OnSend(attempts)
		}
	}
	return p.drain()
}

func (p *Publisher) send() {
	ev := p.generator.Next()
	payload, err := stream.JsonItemEncoder(ev)
	sentAt := time.Now()
	if err != nil {
		serr := &stream.SerializationError{Err: err}
		stream.Log().Errorf("[producer][error] %v", serr)
		p.settle(func() {
			p.registry.RecordSendError()
		})
		p.deliver(DeliveryRecord{Outcome: AckError, SentAt: sentAt, Err: serr})
		return
	}
	record := &kgo.Record{
		Topic: p.config.Topic,
		Key:   []byte(ev.Key()),
		Value: payload,
	}
	// the pacing loop does not wait on this promise; reconciliation happens as acks arrive
	p.sender.Produce(context.Background(), record, func(_ *kgo.Record, kErr error) {
		ackLatency := time.Since(sentAt)
		if kErr != nil {
			stream.Log().Errorf("[producer][error] %v", kErr)
			p.settle(func() {
				p.registry.RecordSendError()
			})
			p.deliver(DeliveryRecord{Outcome: AckError, SentAt: sentAt, AckLatency: ackLatency, Err: kErr})
			return
		}
		p.settle(func() {
			p.registry.RecordSendOK(ackLatency)
		})
		p.deliver(DeliveryRecord{Outcome: AckOK, SentAt: sentAt, AckLatency: ackLatency})
	})
}

// drain flushes outstanding sends with a bounded timeout, then finalizes accounting.
// Acks that do not arrive in time are counted as sent_error; any that straggle in
// afterwards are dropped so nothing is double counted.
func (p *Publisher) drain() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.FlushTimeout)
	defer cancel()
	if err := p.sender.Flush(ctx); err != nil {
		stream.Log().Warnf("final drain did not complete within %v: %v", p.config.FlushTimeout, err)
	}
	p.mu.Lock()
	p.finalized = true
	attempts := p.attempts
	p.mu.Unlock()

	s := p.registry.Snapshot()
	if unacked := attempts - s.SentOK - s.SentError; unacked > 0 {
		stream.Log().Warnf("%d sends were never acknowledged, counting as sent_error", unacked)
		p.registry.AddSendErrors(unacked)
	}
	return nil
}
