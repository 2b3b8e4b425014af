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

package stream

import (
	"context"
	"fmt"
	"time"
)

// ConnectionError indicates the broker could not be reached. Connection errors are retried
// with bounded backoff and become process-fatal only after the retry budget is exhausted.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("broker unreachable during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// SerializationError indicates an outbound payload could not be encoded.
// The affected record is counted and skipped, never fatal.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("payload serialization failed: %v", e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// CommitError indicates an offset or checkpoint write failed. Commits are retried; if retries
// exhaust, the owning consumer must stop advancing past that point rather than silently
// losing its at-least-once guarantee.
type CommitError struct {
	TopicPartition TopicPartition
	Err            error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed for %+v: %v", e.TopicPartition, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// RetryConfig bounds the Retry helper. MaxAttempts includes the first try.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetry is the budget used for commit and connect paths throughout the module.
var DefaultRetry = RetryConfig{
	MaxAttempts: 5,
	BaseDelay:   250 * time.Millisecond,
	MaxDelay:    5 * time.Second,
}

// Retry invokes fn until it succeeds, ctx is cancelled, or cfg.MaxAttempts is exhausted.
// The delay doubles after every failed attempt, capped at cfg.MaxDelay.
// Returns the error from the final attempt.
func Retry(ctx context.Context, cfg RetryConfig, op string, fn func() error) (err error) {
	delay := cfg.BaseDelay
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= cfg.MaxAttempts {
			return err
		}
		log.Warnf("%s failed (attempt %d/%d), retrying in %v: %v", op, attempt, cfg.MaxAttempts, delay, err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		if delay *= 2; delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
