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
	"bytes"
	"os"
	"testing"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := NewSink(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return sink
}

func TestSinkWriteBatch(t *testing.T) {
	sink := newTestSink(t)
	rows := [][]byte{[]byte(`{"order_id":"a"}`), []byte(`{"order_id":"b"}`)}
	checksum, err := sink.WriteBatch(0, 0, rows)
	if err != nil {
		t.Fatal(err)
	}
	if checksum == 0 {
		t.Error("expected a non-zero checksum for non-empty rows")
	}
	data, err := os.ReadFile(sink.BatchPath(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	expected := []byte("{\"order_id\":\"a\"}\n{\"order_id\":\"b\"}\n")
	if !bytes.Equal(data, expected) {
		t.Errorf("incorrect batch content. actual %q, expected %q", data, expected)
	}
}

// rewriting the same (partition, batch id) must overwrite, not duplicate
func TestSinkWriteBatchIdempotent(t *testing.T) {
	sink := newTestSink(t)
	rows := [][]byte{[]byte(`{"order_id":"a"}`)}
	first, err := sink.WriteBatch(1, 4, rows)
	if err != nil {
		t.Fatal(err)
	}
	second, err := sink.WriteBatch(1, 4, rows)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("replayed batch produced a different checksum: %d vs %d", first, second)
	}
	entries, err := os.ReadDir(sink.Dir())
	if err != nil {
		t.Fatal(err)
	}
	var batchFiles int
	for _, e := range entries {
		if !e.IsDir() {
			batchFiles++
		}
	}
	if batchFiles != 1 {
		t.Errorf("incorrect batch file count. actual %d, expected %d", batchFiles, 1)
	}
}

func TestSinkEmptyBatchStillWritesFile(t *testing.T) {
	sink := newTestSink(t)
	if _, err := sink.WriteBatch(0, 7, nil); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(sink.BatchPath(0, 7))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("empty batch file must be empty, got %d bytes", len(data))
	}
}

func TestBatchFileNaming(t *testing.T) {
	if name := batchFileName(3, 12); name != "part-00003-000000012.json" {
		t.Errorf("incorrect batch file name: %s", name)
	}
}
