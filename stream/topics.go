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
	"fmt"
	"net"
	"time"

	"github.com/LukasBola/orderstream/sak"
	"github.com/google/btree"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

type TopicPartition struct {
	Partition int32
	Topic     string
}

// NTP == 'New Topic Partition'. Essentially a macro for TopicPartition{Partition: p, Topic: t} which is quite verbose.
func NTP(p int32, t string) TopicPartition {
	return TopicPartition{Partition: p, Topic: t}
}

var tpSetFreeList = btree.NewFreeListG[TopicPartition](128)

// A convenience data structure. It is what the name implies, a Set of TopicPartitions.
// This data structure is not thread-safe. You will need to provide your own locking mechanism.
type TopicPartitionSet struct {
	*btree.BTreeG[TopicPartition]
}

// Comparator for TopicPartitions
func topicPartitionLess(a, b TopicPartition) bool {
	res := a.Partition - b.Partition
	if res != 0 {
		return res < 0
	}
	return a.Topic < b.Topic
}

// Returns a new, empty TopicPartitionSet.
func NewTopicPartitionSet() TopicPartitionSet {
	return TopicPartitionSet{btree.NewWithFreeListG(16, topicPartitionLess, tpSetFreeList)}
}

// Insert the TopicPartition. Returns true if the item was inserted, false if the item was already present
func (tps TopicPartitionSet) Insert(tp TopicPartition) bool {
	_, ok := tps.ReplaceOrInsert(tp)
	return !ok
}

// Returns true if tp is currently a member of TopicPartitionSet
func (tps TopicPartitionSet) Contains(tp TopicPartition) bool {
	_, ok := tps.Get(tp)
	return ok
}

// Removes tp from the TopicPartitionSet. Returns true if the item was present.
func (tps TopicPartitionSet) Remove(tp TopicPartition) bool {
	_, ok := tps.Delete(tp)
	return ok
}

// Converts the set to a newly allocated slice of TopicPartitions.
func (tps TopicPartitionSet) Items() []TopicPartition {
	slice := make([]TopicPartition, 0, tps.Len())
	tps.Ascend(func(tp TopicPartition) bool {
		slice = append(slice, tp)
		return true
	})
	return slice
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var opError *net.OpError
	if errors.As(err, &opError) {
		log.Warnf("network error for operation: %s, error: %v", opError.Op, opError)
		return true
	}
	return false
}

// TopicSpec describes a topic to be provisioned by EnsureTopic.
type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	MinInSync         int
}

func (ts TopicSpec) minInSyncConfig() string {
	if ts.ReplicationFactor <= 1 {
		return "1"
	}
	if ts.MinInSync <= 0 || ts.MinInSync >= ts.ReplicationFactor {
		return fmt.Sprintf("%d", ts.ReplicationFactor-1)
	}
	return fmt.Sprintf("%d", ts.MinInSync)
}

func createTopic(adminClient *kadm.Client, spec TopicSpec) error {
	res, err := adminClient.CreateTopics(context.Background(), int32(spec.NumPartitions), int16(spec.ReplicationFactor),
		map[string]*string{"min.insync.replicas": sak.Ptr(spec.minInSyncConfig())}, spec.Name)
	log.Infof("createTopic res: %+v, err: %v", res, err)
	if err != nil {
		return err
	}
	for _, r := range res {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return r.Err
		}
	}
	return nil
}

// EnsureTopic creates the topic described by spec if it does not yet exist and returns
// the partition count reported by the cluster. Network errors are retried for up to 15 attempts,
// after which the error is surfaced to the caller. TOPIC_ALREADY_EXISTS is not an error.
func EnsureTopic(cluster Cluster, spec TopicSpec) (numPartitions int, err error) {
	client, err := NewClient(cluster, kgo.RequestRetries(20), kgo.RetryTimeout(30*time.Second))
	if err != nil {
		return 0, err
	}
	defer client.Close()
	adminClient := kadm.NewClient(client)
	for retryCount := 0; retryCount < 15; retryCount++ {
		err = createTopic(adminClient, spec)
		if !isNetworkError(err) {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		return 0, err
	}
	res, err := adminClient.ListTopics(context.Background(), spec.Name)
	if err != nil {
		return 0, err
	}
	detail, ok := res[spec.Name]
	if !ok || detail.Err != nil {
		return 0, fmt.Errorf("topic %s does not exist after create", spec.Name)
	}
	return len(detail.Partitions.Numbers()), nil
}

// LogBounds holds the current first and next-to-be-produced offsets of a single partition.
type LogBounds struct {
	Start int64
	End   int64
}

// Contains reports whether `offset` currently exists in the partition's log.
// An offset outside these bounds indicates the log was truncated or reset since it was recorded.
func (b LogBounds) Contains(offset int64) bool {
	return offset >= b.Start && offset < b.End
}

// ListLogBounds fetches the start and end offsets for every partition of `topic`.
// Used by consumers to detect checkpoints that reference no-longer-existent offsets.
func ListLogBounds(ctx context.Context, client *kgo.Client, topic string) (map[int32]LogBounds, error) {
	adminClient := kadm.NewClient(client)
	starts, err := adminClient.ListStartOffsets(ctx, topic)
	if err != nil {
		return nil, err
	}
	ends, err := adminClient.ListEndOffsets(ctx, topic)
	if err != nil {
		return nil, err
	}
	bounds := make(map[int32]LogBounds)
	for _, listed := range starts[topic] {
		bounds[listed.Partition] = LogBounds{Start: listed.Offset}
	}
	for _, listed := range ends[topic] {
		b := bounds[listed.Partition]
		b.End = listed.Offset
		bounds[listed.Partition] = b
	}
	return bounds, nil
}
