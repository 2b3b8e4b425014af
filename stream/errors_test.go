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
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
	err := Retry(context.Background(), cfg, "test op", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 3 {
		t.Errorf("incorrect attempt count. actual %d, expected %d", attempts, 3)
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	attempts := 0
	permanent := errors.New("permanent")
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	err := Retry(context.Background(), cfg, "test op", func() error {
		attempts++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("expected the final attempt's error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("incorrect attempt count. actual %d, expected %d", attempts, 3)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 10, BaseDelay: time.Hour, MaxDelay: time.Hour}
	err := Retry(ctx, cfg, "test op", func() error {
		attempts++
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if attempts != 1 {
		t.Errorf("incorrect attempt count. actual %d, expected %d", attempts, 1)
	}
}

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("cause")
	for _, err := range []error{
		&ConnectionError{Op: "ping", Err: cause},
		&SerializationError{Err: cause},
		&CommitError{TopicPartition: NTP(0, "orders"), Err: cause},
	} {
		if !errors.Is(err, cause) {
			t.Errorf("%T does not unwrap to its cause", err)
		}
	}
}
