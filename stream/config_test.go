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
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "bootstrap_servers: broker1:9092\ntopic: custom-orders\ngroup_id: my-group\nreport_every_seconds: 30\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if fc.BootstrapServers != "broker1:9092" {
		t.Errorf("incorrect bootstrap servers: %q", fc.BootstrapServers)
	}
	if fc.Topic != "custom-orders" || fc.GroupID != "my-group" || fc.ReportEverySeconds != 30 {
		t.Errorf("incorrect parsed config: %+v", fc)
	}
}

func TestLoadFileConfigErrors(t *testing.T) {
	if _, err := LoadFileConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("{not yaml: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFileConfig(path); err == nil {
		t.Error("expected error for unparseable file")
	}
}

func TestFlagsExplicitlySet(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("topic", "orders", "")
	fs.String("group-id", "g", "")
	if err := fs.Parse([]string{"--topic", "other"}); err != nil {
		t.Fatal(err)
	}
	set := FlagsExplicitlySet(fs)
	if !set["topic"] {
		t.Error("topic was passed and must be reported as set")
	}
	if set["group-id"] {
		t.Error("group-id was defaulted and must not be reported as set")
	}
}

func TestParseCluster(t *testing.T) {
	cluster := ParseCluster("localhost:9092, localhost:9094 ,localhost:9096")
	if len(cluster) != 3 {
		t.Fatalf("incorrect broker count. actual %d, expected %d", len(cluster), 3)
	}
	for _, broker := range cluster {
		if broker != "localhost:9092" && broker != "localhost:9094" && broker != "localhost:9096" {
			t.Errorf("unexpected broker %q", broker)
		}
	}
}

func TestLogBoundsContains(t *testing.T) {
	b := LogBounds{Start: 10, End: 20}
	for _, offset := range []int64{10, 15, 19} {
		if !b.Contains(offset) {
			t.Errorf("offset %d must be within bounds [10,20)", offset)
		}
	}
	for _, offset := range []int64{9, 20, 25} {
		if b.Contains(offset) {
			t.Errorf("offset %d must be outside bounds [10,20)", offset)
		}
	}
}

func TestTopicPartitionSet(t *testing.T) {
	set := NewTopicPartitionSet()
	tp := NTP(3, "orders")
	if set.Contains(tp) {
		t.Error("empty set must not contain anything")
	}
	if !set.Insert(tp) {
		t.Error("first insert must report true")
	}
	if set.Insert(tp) {
		t.Error("duplicate insert must report false")
	}
	set.Insert(NTP(1, "orders"))
	items := set.Items()
	if len(items) != 2 {
		t.Fatalf("incorrect item count. actual %d, expected %d", len(items), 2)
	}
	if !set.Remove(tp) || set.Contains(tp) {
		t.Error("remove did not take effect")
	}
}
