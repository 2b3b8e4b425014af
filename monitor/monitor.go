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

// Package monitor implements the latency tracker: an independent consumer group
// that measures end-to-end delivery latency per record and commits its offsets
// manually on a fixed cadence and at shutdown.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LukasBola/orderstream/metrics"
	"github.com/LukasBola/orderstream/order"
	"github.com/LukasBola/orderstream/sak"
	"github.com/LukasBola/orderstream/stream"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

type Config struct {
	Topic   string
	GroupID string
	// CommitEvery is how many records may be consumed between offset commits.
	// A final commit always happens at shutdown regardless. Defaults to 100.
	CommitEvery int
	Cluster     stream.Cluster
	Registry    *metrics.Registry
	// Retry budget for offset commits. Defaults to stream.DefaultRetry.
	Retry stream.RetryConfig
}

func (c *Config) validate() error {
	if len(c.Topic) == 0 {
		return errors.New("topic must not be empty")
	}
	if len(c.GroupID) == 0 {
		return errors.New("group-id must not be empty")
	}
	if c.Registry == nil {
		return errors.New("registry must not be nil")
	}
	if c.CommitEvery <= 0 {
		c.CommitEvery = 100
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = stream.DefaultRetry
	}
	return nil
}

// Monitor consumes every record on the order topic, reporting how long each one
// took from origination to consumption. Auto-commit is disabled: offsets advance
// only through explicit commits, so a crash replays at most CommitEvery records.
type Monitor struct {
	config Config
	client *kgo.Client

	mu            sync.Mutex
	pending       map[int32]kgo.EpochOffset
	lastCommitted map[int32]int64
	sinceCommit   int

	commitFn func(ctx context.Context) error
}

// NewMonitor connects the tracker's consumer group client.
func NewMonitor(config Config) (*Monitor, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	m := &Monitor{
		config:        config,
		pending:       make(map[int32]kgo.EpochOffset),
		lastCommitted: make(map[int32]int64),
	}
	m.commitFn = m.commit
	var err error
	m.client, err = stream.NewClient(config.Cluster,
		kgo.ConsumerGroup(config.GroupID),
		kgo.ConsumeTopics(config.Topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.FetchMaxWait(2*time.Second),
		kgo.SessionTimeout(6*time.Second),
		kgo.OnPartitionsRevoked(m.partitionsRevoked),
	)
	if err != nil {
		return nil, &stream.ConnectionError{Op: "monitor client setup", Err: err}
	}
	return m, nil
}

// partitionsRevoked flushes pending offsets before ownership moves, so the next
// owner does not replay records this instance already reported.
func (m *Monitor) partitionsRevoked(ctx context.Context, _ *kgo.Client, _ map[string][]int32) {
	if err := m.commit(ctx); err != nil {
		stream.Log().Errorf("commit on partition revoke failed: %v", err)
	}
}

// Run consumes until rs halts or an offset commit exhausts its retry budget.
// A final commit covers whatever arrived after the last cadence boundary.
func (m *Monitor) Run(rs sak.RunStatus) error {
	defer m.client.Close()
	for rs.Running() {
		fetches := m.client.PollFetches(rs.Ctx())
		if fetches.IsClientClosed() {
			break
		}
		for _, fetchErr := range fetches.Errors() {
			if errors.Is(fetchErr.Err, context.Canceled) {
				continue
			}
			stream.Log().Errorf("fetch error on %s/%d: %v", fetchErr.Topic, fetchErr.Partition, fetchErr.Err)
		}
		if err := m.processFetches(rs.Ctx(), fetches); err != nil {
			rs.Halt()
			return err
		}
	}
	if err := m.commitWithRetry(context.Background()); err != nil {
		return err
	}
	return nil
}

// processFetches accounts every record in log order, committing whenever the
// cadence boundary is crossed. The commit is synchronous: a failure is observed
// before any further record advances the pending offsets.
func (m *Monitor) processFetches(ctx context.Context, fetches kgo.Fetches) error {
	var commitErr error
	fetches.EachRecord(func(record *kgo.Record) {
		if commitErr != nil {
			return
		}
		m.observe(record)
		m.mu.Lock()
		m.pending[record.Partition] = kgo.EpochOffset{Epoch: record.LeaderEpoch, Offset: record.Offset + 1}
		m.sinceCommit++
		due := m.sinceCommit >= m.config.CommitEvery
		m.mu.Unlock()
		if due {
			commitErr = m.commitWithRetry(ctx)
		}
	})
	return commitErr
}

// observe records one consumed event. Undecodable payloads count as errors but
// still advance the offset cursor; the tracker reports, it does not filter.
func (m *Monitor) observe(record *kgo.Record) {
	ev, err := stream.JsonItemDecoder[order.OrderEvent](record.Value)
	if err != nil {
		m.config.Registry.RecordError()
		stream.Log().Warnf("undecodable record at %s/%d offset %d: %v", record.Topic, record.Partition, record.Offset, err)
		return
	}
	latency := time.Since(time.UnixMilli(ev.EventTimeMs))
	if ev.EventTimeMs == 0 {
		latency = 0
	}
	m.config.Registry.RecordProcessed(latency)
	quantity := 0
	if ev.Quantity != nil {
		quantity = *ev.Quantity
	}
	stream.Log().Infof("[tracker] partition=%d offset=%d order_id=%s item=%q quantity=%d latency_ms=%.2f",
		record.Partition, record.Offset, ev.OrderID, ev.Item, quantity, float64(latency.Microseconds())/1000)
}

func (m *Monitor) commitWithRetry(ctx context.Context) error {
	return stream.Retry(ctx, m.config.Retry, "offset commit", func() error {
		return m.commitFn(ctx)
	})
}

// commit synchronously flushes the pending offsets. The response is inspected
// per partition; a partition-level error code fails the whole commit so that
// the cadence counter is not reset on a partial success.
func (m *Monitor) commit(ctx context.Context) error {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return nil
	}
	offsets := make(map[int32]kgo.EpochOffset, len(m.pending))
	for partition, eo := range m.pending {
		// offsets only move forward, even across rebalance replays
		if eo.Offset > m.lastCommitted[partition] {
			offsets[partition] = eo
		}
	}
	m.mu.Unlock()
	if len(offsets) == 0 {
		return nil
	}

	var commitErr error
	m.client.CommitOffsetsSync(ctx, map[string]map[int32]kgo.EpochOffset{m.config.Topic: offsets},
		func(_ *kgo.Client, _ *kmsg.OffsetCommitRequest, resp *kmsg.OffsetCommitResponse, err error) {
			if err != nil {
				commitErr = err
				return
			}
			for _, topic := range resp.Topics {
				for _, partition := range topic.Partitions {
					if kafkaErr := kerr.ErrorForCode(partition.ErrorCode); kafkaErr != nil {
						commitErr = &stream.CommitError{
							TopicPartition: stream.NTP(partition.Partition, topic.Topic),
							Err:            kafkaErr,
						}
						return
					}
				}
			}
		})
	if commitErr != nil {
		return commitErr
	}

	m.mu.Lock()
	for partition, eo := range offsets {
		m.lastCommitted[partition] = eo.Offset
		if m.pending[partition] == eo {
			delete(m.pending, partition)
		}
	}
	m.sinceCommit = 0
	m.mu.Unlock()
	stream.Log().Debugf("committed offsets for %d partition(s)", len(offsets))
	return nil
}

// Committed returns the last successfully committed offset for a partition,
// or -1 when nothing has been committed yet.
func (m *Monitor) Committed(partition int32) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset, ok := m.lastCommitted[partition]; ok {
		return offset
	}
	return -1
}
