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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/LukasBola/orderstream/stream"
)

// Marker records the last durably persisted log position of one partition for one sink.
// Markers are write-ahead: the batch data is on disk before its marker is committed,
// so a crash in between replays the batch rather than losing it.
type Marker struct {
	Topic       string `json:"topic"`
	Partition   int32  `json:"partition"`
	Offset      int64  `json:"offset"` // last persisted offset, inclusive
	BatchID     int64  `json:"batch_id"`
	Checksum    uint64 `json:"checksum"` // xxhash64 of the persisted batch payload
	CommittedAt string `json:"committed_at"`
}

// CheckpointStore persists one Marker per partition as a JSON file in a flat directory.
// Commits are atomic (temp file + rename) and never move a marker backward.
type CheckpointStore struct {
	dir string
}

func NewCheckpointStore(dir string) (*CheckpointStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create checkpoint dir %s: %w", dir, err)
	}
	return &CheckpointStore{dir: dir}, nil
}

func (s *CheckpointStore) markerPath(partition int32) string {
	return filepath.Join(s.dir, fmt.Sprintf("partition-%05d.json", partition))
}

// Load reads the committed marker for a partition. The second return is false
// if no marker has ever been committed.
func (s *CheckpointStore) Load(partition int32) (Marker, bool, error) {
	var m Marker
	data, err := os.ReadFile(s.markerPath(partition))
	if errors.Is(err, fs.ErrNotExist) {
		return m, false, nil
	}
	if err != nil {
		return m, false, err
	}
	if m, err = stream.JsonItemDecoder[Marker](data); err != nil {
		return m, false, fmt.Errorf("corrupt checkpoint for partition %d: %w", partition, err)
	}
	return m, true, nil
}

// LoadAll reads every committed marker in the store, keyed by partition.
func (s *CheckpointStore) LoadAll() (map[int32]Marker, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	markers := make(map[int32]Marker)
	for _, e := range entries {
		var partition int32
		if n, _ := fmt.Sscanf(e.Name(), "partition-%d.json", &partition); n != 1 {
			continue
		}
		m, ok, err := s.Load(partition)
		if err != nil {
			return nil, err
		}
		if ok {
			markers[partition] = m
		}
	}
	return markers, nil
}

// Commit durably writes the marker. Re-committing the marker a batch replay produced
// is a no-op; an offset lower than the committed one is rejected, the marker never regresses.
func (s *CheckpointStore) Commit(m Marker) error {
	existing, ok, err := s.Load(m.Partition)
	if err != nil {
		return &stream.CommitError{TopicPartition: stream.NTP(m.Partition, m.Topic), Err: err}
	}
	if ok {
		if m.Offset < existing.Offset {
			return &stream.CommitError{
				TopicPartition: stream.NTP(m.Partition, m.Topic),
				Err:            fmt.Errorf("marker would regress from offset %d to %d", existing.Offset, m.Offset),
			}
		}
		if m.Offset == existing.Offset {
			// replay of an already committed batch
			return nil
		}
	}
	m.CommittedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := stream.JsonItemEncoder(m)
	if err != nil {
		return &stream.CommitError{TopicPartition: stream.NTP(m.Partition, m.Topic), Err: err}
	}
	if err = writeFileAtomic(s.markerPath(m.Partition), data); err != nil {
		return &stream.CommitError{TopicPartition: stream.NTP(m.Partition, m.Topic), Err: err}
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target's directory, syncs it,
// then renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
