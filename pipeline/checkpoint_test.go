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

package pipeline

import (
	"errors"
	"testing"

	"github.com/LukasBola/orderstream/stream"
)

func newTestStore(t *testing.T) *CheckpointStore {
	t.Helper()
	store, err := NewCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestCheckpointRoundTrip(t *testing.T) {
	store := newTestStore(t)
	if _, ok, err := store.Load(0); err != nil || ok {
		t.Fatalf("empty store must report no marker, got ok=%v err=%v", ok, err)
	}
	committed := Marker{Topic: "orders", Partition: 0, Offset: 499, BatchID: 3, Checksum: 42}
	if err := store.Commit(committed); err != nil {
		t.Fatal(err)
	}
	loaded, ok, err := store.Load(0)
	if err != nil || !ok {
		t.Fatalf("expected a marker, got ok=%v err=%v", ok, err)
	}
	if loaded.Offset != 499 || loaded.BatchID != 3 || loaded.Checksum != 42 || loaded.Topic != "orders" {
		t.Errorf("marker round trip mismatch: %+v", loaded)
	}
	if len(loaded.CommittedAt) == 0 {
		t.Error("committed_at must be stamped")
	}
}

func TestCheckpointNeverRegresses(t *testing.T) {
	store := newTestStore(t)
	if err := store.Commit(Marker{Topic: "orders", Partition: 1, Offset: 100, BatchID: 1}); err != nil {
		t.Fatal(err)
	}
	err := store.Commit(Marker{Topic: "orders", Partition: 1, Offset: 50, BatchID: 0})
	var commitErr *stream.CommitError
	if !errors.As(err, &commitErr) {
		t.Fatalf("expected CommitError for regressing marker, got %v", err)
	}
	loaded, _, _ := store.Load(1)
	if loaded.Offset != 100 {
		t.Errorf("marker regressed to offset %d", loaded.Offset)
	}
}

// re-committing after a batch replay is a no-op, not an error
func TestCheckpointReplayCommitIsNoop(t *testing.T) {
	store := newTestStore(t)
	m := Marker{Topic: "orders", Partition: 2, Offset: 10, BatchID: 0, Checksum: 7}
	if err := store.Commit(m); err != nil {
		t.Fatal(err)
	}
	first, _, _ := store.Load(2)
	if err := store.Commit(m); err != nil {
		t.Fatal(err)
	}
	second, _, _ := store.Load(2)
	if first.CommittedAt != second.CommittedAt {
		t.Error("replay commit must not rewrite the marker")
	}
}

func TestCheckpointLoadAll(t *testing.T) {
	store := newTestStore(t)
	for partition := int32(0); partition < 3; partition++ {
		m := Marker{Topic: "orders", Partition: partition, Offset: int64(partition) * 100, BatchID: int64(partition)}
		if err := store.Commit(m); err != nil {
			t.Fatal(err)
		}
	}
	markers, err := store.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(markers) != 3 {
		t.Fatalf("incorrect marker count. actual %d, expected %d", len(markers), 3)
	}
	for partition, m := range markers {
		if m.Offset != int64(partition)*100 {
			t.Errorf("partition %d: incorrect offset %d", partition, m.Offset)
		}
	}
}
