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

// Package pipeline implements the streaming validator/partitioner: a micro-batch
// consume, parse, classify, persist, checkpoint loop with at-least-once semantics.
// Valid and invalid records land in independent sinks, each guarded by its own
// write-ahead checkpoint markers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LukasBola/orderstream/order"
	"github.com/LukasBola/orderstream/sak"
	"github.com/LukasBola/orderstream/stream"
	"github.com/twmb/franz-go/pkg/kgo"
)

// State of the micro-batch machine. Exposed for observability and tests.
type State int32

const (
	Idle State = iota
	FetchingBatch
	Parsing
	Classifying
	PersistingValid
	PersistingInvalid
	CommittingCheckpoint
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case FetchingBatch:
		return "FetchingBatch"
	case Parsing:
		return "Parsing"
	case Classifying:
		return "Classifying"
	case PersistingValid:
		return "PersistingValid"
	case PersistingInvalid:
		return "PersistingInvalid"
	case CommittingCheckpoint:
		return "CommittingCheckpoint"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// invalidRow is the shape persisted to the invalid sink: the event flattened,
// plus the rejection reason. For undecodable payloads the raw bytes are kept
// instead so the record stays traceable.
type invalidRow struct {
	order.OrderEvent
	Reason     string `json:"reject_reason"`
	RawPayload string `json:"raw_payload,omitempty"`
}

type Config struct {
	Topic   string
	GroupID string
	// Root output directory; valid/ and invalid/ sinks are created beneath it.
	OutputDir string
	// Upper bound on records per micro-batch. Defaults to 500.
	BatchMaxRecords int
	// Max time one fetch waits for new records. Also bounds how quickly a stop
	// signal is honored. Defaults to 2s.
	BatchInterval time.Duration
	Cluster       stream.Cluster
	// Retry budget for sink writes and checkpoint commits. Defaults to stream.DefaultRetry.
	Retry stream.RetryConfig
}

func (c *Config) validate() error {
	if len(c.Topic) == 0 {
		return errors.New("topic must not be empty")
	}
	if len(c.GroupID) == 0 {
		return errors.New("group-id must not be empty")
	}
	if len(c.OutputDir) == 0 {
		return errors.New("output-dir must not be empty")
	}
	if c.BatchMaxRecords <= 0 {
		c.BatchMaxRecords = 500
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = 2 * time.Second
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = stream.DefaultRetry
	}
	return nil
}

// Pipeline consumes the order topic under its own consumer group and partitions
// every record into the valid or invalid sink. Offsets are never committed to the
// group; the pipeline's own checkpoint markers are the durable cursor, adjusted
// into the fetch offsets at assignment time.
type Pipeline struct {
	config      Config
	client      *kgo.Client
	validSink   *Sink
	invalidSink *Sink

	assignedMu sync.Mutex
	assigned   stream.TopicPartitionSet

	// cursorMu guards nextBatch and resume: processBatch advances them on the
	// poll loop goroutine while adjustOffsets reads them during rebalances.
	cursorMu  sync.Mutex
	nextBatch map[int32]int64
	resume    map[int32]int64 // last persisted offset per partition, -1 if none

	state    atomic.Int32
	fatalErr error

	validCount   int64
	invalidCount int64
}

// NewPipeline loads both sinks' checkpoints and connects the consumer group client.
func NewPipeline(config Config) (*Pipeline, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	validSink, err := NewSink(filepath.Join(config.OutputDir, "valid"))
	if err != nil {
		return nil, err
	}
	invalidSink, err := NewSink(filepath.Join(config.OutputDir, "invalid"))
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		config:      config,
		validSink:   validSink,
		invalidSink: invalidSink,
		assigned:    stream.NewTopicPartitionSet(),
		nextBatch:   make(map[int32]int64),
		resume:      make(map[int32]int64),
	}
	if err = p.loadResumePoints(); err != nil {
		return nil, err
	}
	p.client, err = stream.NewClient(config.Cluster,
		kgo.ConsumerGroup(config.GroupID),
		kgo.ConsumeTopics(config.Topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.FetchMaxWait(config.BatchInterval),
		kgo.SessionTimeout(6*time.Second),
		kgo.OnPartitionsAssigned(p.partitionsAssigned),
		kgo.OnPartitionsRevoked(p.partitionsRevoked),
		kgo.AdjustFetchOffsetsFn(p.adjustOffsets),
	)
	if err != nil {
		return nil, &stream.ConnectionError{Op: "pipeline client setup", Err: err}
	}
	return p, nil
}

// loadResumePoints seeds the cursor for every partition either sink has a marker for.
func (p *Pipeline) loadResumePoints() error {
	validMarkers, err := p.validSink.Checkpoints().LoadAll()
	if err != nil {
		return err
	}
	invalidMarkers, err := p.invalidSink.Checkpoints().LoadAll()
	if err != nil {
		return err
	}
	partitions := make(map[int32]bool)
	for partition := range validMarkers {
		partitions[partition] = true
	}
	for partition := range invalidMarkers {
		partitions[partition] = true
	}
	for _, partition := range sak.MapKeysToSlice(partitions) {
		offset, batch, err := p.refreshResume(partition)
		if err != nil {
			return err
		}
		stream.Log().Infof("partition %d resumes after offset %d at batch %d", partition, offset, batch)
	}
	return nil
}

// refreshResume re-reads both sinks' markers for one partition and updates the
// in-memory cursor. The conservative cursor is the minimum of the two offsets:
// a crash between the valid and invalid commits replays the whole batch, which
// both sinks absorb idempotently.
func (p *Pipeline) refreshResume(partition int32) (offset, nextBatch int64, err error) {
	v, haveValid, err := p.validSink.Checkpoints().Load(partition)
	if err != nil {
		return 0, 0, err
	}
	i, haveInvalid, err := p.invalidSink.Checkpoints().Load(partition)
	if err != nil {
		return 0, 0, err
	}
	offset, batch := int64(-1), int64(-1)
	switch {
	case haveValid && haveInvalid:
		offset = sak.Min(v.Offset, i.Offset)
		batch = sak.Min(v.BatchID, i.BatchID)
	case haveValid:
		offset, batch = v.Offset, v.BatchID
	case haveInvalid:
		offset, batch = i.Offset, i.BatchID
	}
	p.cursorMu.Lock()
	p.resume[partition] = offset
	p.nextBatch[partition] = batch + 1
	p.cursorMu.Unlock()
	return offset, batch + 1, nil
}

// adjustOffsets points newly assigned partitions at the offset following our own
// checkpoint markers, re-read from disk so a partition that moved away and came
// back mid-run resumes from the latest committed marker, not the startup cursor.
// A marker referencing a no-longer-existent offset (the log was reset or truncated
// since it was written) is treated as "start fresh", not a crash.
func (p *Pipeline) adjustOffsets(ctx context.Context, assignments map[string]map[int32]kgo.Offset) (map[string]map[int32]kgo.Offset, error) {
	bounds, err := stream.ListLogBounds(ctx, p.client, p.config.Topic)
	if err != nil {
		stream.Log().Warnf("could not list log bounds, keeping default offsets: %v", err)
		bounds = nil
	}
	for topic, partitionAssignments := range assignments {
		for partition := range partitionAssignments {
			last, _, err := p.refreshResume(partition)
			if err != nil {
				return nil, err
			}
			if last < 0 {
				continue
			}
			next := last + 1
			// next == End means we are caught up with an empty tail, which is fine
			if b, haveBounds := bounds[partition]; haveBounds && next != b.End && !b.Contains(next) {
				stream.Log().Warnf("checkpoint for %s/%d references offset %d outside log bounds [%d,%d), starting fresh",
					topic, partition, next, b.Start, b.End)
				continue
			}
			stream.Log().Infof("resuming %s/%d at offset %d", topic, partition, next)
			partitionAssignments[partition] = kgo.NewOffset().At(next)
		}
	}
	return assignments, nil
}

func (p *Pipeline) partitionsAssigned(_ context.Context, _ *kgo.Client, assignments map[string][]int32) {
	p.assignedMu.Lock()
	defer p.assignedMu.Unlock()
	for topic, partitions := range assignments {
		for _, partition := range partitions {
			p.assigned.Insert(stream.NTP(partition, topic))
		}
		stream.Log().Debugf("assigned topic: %s, partitions: %v", topic, partitions)
	}
}

func (p *Pipeline) partitionsRevoked(_ context.Context, _ *kgo.Client, assignments map[string][]int32) {
	p.assignedMu.Lock()
	defer p.assignedMu.Unlock()
	for topic, partitions := range assignments {
		for _, partition := range partitions {
			p.assigned.Remove(stream.NTP(partition, topic))
		}
		stream.Log().Debugf("revoked topic: %s, partitions: %v", topic, partitions)
	}
}

// Assigned returns the partitions currently owned by this pipeline instance.
func (p *Pipeline) Assigned() []stream.TopicPartition {
	p.assignedMu.Lock()
	defer p.assignedMu.Unlock()
	return p.assigned.Items()
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
	stream.Log().Tracef("pipeline state: %v", s)
}

// CurrentState reports the machine's position, for observability only.
func (p *Pipeline) CurrentState() State {
	return State(p.state.Load())
}

// Run drives the fetch/persist/commit loop until rs halts or a commit-class error
// exhausts its retry budget. The loop is strictly sequential per poll: a slow sink
// delays the next fetch instead of buffering unbounded records.
func (p *Pipeline) Run(rs sak.RunStatus) error {
	defer p.client.Close()
	for rs.Running() {
		p.setState(FetchingBatch)
		ctx, cancel := context.WithTimeout(rs.Ctx(), p.config.BatchInterval+time.Second)
		fetches := p.client.PollFetches(ctx)
		cancel()
		if fetches.IsClientClosed() {
			break
		}
		for _, fetchErr := range fetches.Errors() {
			if errors.Is(fetchErr.Err, context.Canceled) || errors.Is(fetchErr.Err, context.DeadlineExceeded) {
				continue
			}
			stream.Log().Errorf("fetch error on %s/%d: %v", fetchErr.Topic, fetchErr.Partition, fetchErr.Err)
		}
		fetches.EachPartition(func(ftp kgo.FetchTopicPartition) {
			if p.fatalErr != nil {
				return
			}
			p.processPartition(rs, ftp)
		})
		if p.fatalErr != nil {
			rs.Halt()
			return p.fatalErr
		}
		p.setState(Idle)
	}
	p.setState(Idle)
	return p.fatalErr
}

// processPartition splits a fetch into bounded micro-batches, preserving log order.
func (p *Pipeline) processPartition(rs sak.RunStatus, ftp kgo.FetchTopicPartition) {
	records := ftp.Records
	for start := 0; start < len(records); start += p.config.BatchMaxRecords {
		end := sak.Min(start+p.config.BatchMaxRecords, len(records))
		if err := p.processBatch(rs, ftp.Partition, records[start:end]); err != nil {
			p.fatalErr = err
			return
		}
	}
}

func (p *Pipeline) processBatch(rs sak.RunStatus, partition int32, records []*kgo.Record) error {
	if len(records) == 0 {
		return nil
	}
	p.setState(Parsing)
	outcomes := make([]order.ValidationOutcome, len(records))
	for i, record := range records {
		outcomes[i] = order.Classify(record.Value)
	}

	p.setState(Classifying)
	var validRows, invalidRows [][]byte
	for _, outcome := range outcomes {
		if outcome.Valid {
			row, err := stream.JsonItemEncoder(outcome.Event)
			if err != nil {
				return fmt.Errorf("could not encode valid record %s: %w", outcome.Event.OrderID, err)
			}
			validRows = append(validRows, row)
			continue
		}
		ir := invalidRow{OrderEvent: outcome.Event, Reason: string(outcome.Reason)}
		if outcome.Reason == order.ReasonMalformedPayload {
			ir.RawPayload = string(outcome.Raw)
		}
		row, err := stream.JsonItemEncoder(ir)
		if err != nil {
			return fmt.Errorf("could not encode invalid record: %w", err)
		}
		invalidRows = append(invalidRows, row)
	}

	p.cursorMu.Lock()
	batchID := p.nextBatch[partition]
	p.cursorMu.Unlock()
	lastOffset := records[len(records)-1].Offset

	p.setState(PersistingValid)
	validChecksum, err := p.writeWithRetry(rs, p.validSink, partition, batchID, validRows)
	if err != nil {
		return err
	}
	p.setState(PersistingInvalid)
	invalidChecksum, err := p.writeWithRetry(rs, p.invalidSink, partition, batchID, invalidRows)
	if err != nil {
		return err
	}

	p.setState(CommittingCheckpoint)
	if err = p.commitWithRetry(rs, p.validSink, partition, batchID, lastOffset, validChecksum); err != nil {
		return err
	}
	if err = p.commitWithRetry(rs, p.invalidSink, partition, batchID, lastOffset, invalidChecksum); err != nil {
		return err
	}

	p.cursorMu.Lock()
	p.nextBatch[partition] = batchID + 1
	p.resume[partition] = lastOffset
	p.cursorMu.Unlock()
	p.validCount += int64(len(validRows))
	p.invalidCount += int64(len(invalidRows))
	stream.Log().Infof("[pipeline][batch] partition=%d batch_id=%d records=%d valid=%d invalid=%d last_offset=%d",
		partition, batchID, len(records), len(validRows), len(invalidRows), lastOffset)
	return nil
}

func (p *Pipeline) writeWithRetry(rs sak.RunStatus, sink *Sink, partition int32, batchID int64, rows [][]byte) (checksum uint64, err error) {
	err = stream.Retry(rs.Ctx(), p.config.Retry, "sink write", func() error {
		var writeErr error
		checksum, writeErr = sink.WriteBatch(partition, batchID, rows)
		return writeErr
	})
	return checksum, err
}

func (p *Pipeline) commitWithRetry(rs sak.RunStatus, sink *Sink, partition int32, batchID, lastOffset int64, checksum uint64) error {
	marker := Marker{
		Topic:     p.config.Topic,
		Partition: partition,
		Offset:    lastOffset,
		BatchID:   batchID,
		Checksum:  checksum,
	}
	return stream.Retry(rs.Ctx(), p.config.Retry, "checkpoint commit", func() error {
		return sink.Checkpoints().Commit(marker)
	})
}

// Counts returns how many records have been routed to each sink since start.
func (p *Pipeline) Counts() (valid, invalid int64) {
	return p.validCount, p.invalidCount
}
