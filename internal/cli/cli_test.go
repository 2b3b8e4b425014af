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

package cli

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/LukasBola/orderstream/stream"
)

func TestParseLogLevel(t *testing.T) {
	levels := map[string]stream.LogLevel{
		"none":  stream.LogLevelNone,
		"trace": stream.LogLevelTrace,
		"debug": stream.LogLevelDebug,
		"info":  stream.LogLevelInfo,
		"warn":  stream.LogLevelWarn,
		"error": stream.LogLevelError,
	}
	for input, expected := range levels {
		level, err := ParseLogLevel(input)
		if err != nil {
			t.Errorf("level %q did not parse: %v", input, err)
			continue
		}
		if level != expected {
			t.Errorf("incorrect level for %q. actual %v, expected %v", input, level, expected)
		}
	}
	if _, err := ParseLogLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

// explicit flags beat the config file, the config file beats flag defaults
func TestResolvePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "bootstrap_servers: filehost:9092\ntopic: file-topic\nreport_every_seconds: 60\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var cf CommonFlags
	cf.Register(fs)
	if err := fs.Parse([]string{"--config", path, "--topic", "flag-topic"}); err != nil {
		t.Fatal(err)
	}
	if _, err := cf.Resolve(fs); err != nil {
		t.Fatal(err)
	}

	if cf.Topic != "flag-topic" {
		t.Errorf("explicit flag must win. actual %q, expected %q", cf.Topic, "flag-topic")
	}
	if cf.BootstrapServers != "filehost:9092" {
		t.Errorf("config file must beat default. actual %q, expected %q", cf.BootstrapServers, "filehost:9092")
	}
	if cf.ReportEverySeconds != 60 {
		t.Errorf("config file must beat default. actual %d, expected %d", cf.ReportEverySeconds, 60)
	}
}

func TestResolveWithoutFile(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var cf CommonFlags
	cf.Register(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}
	if _, err := cf.Resolve(fs); err != nil {
		t.Fatal(err)
	}
	if cf.BootstrapServers != DefaultBootstrapServers || cf.Topic != DefaultTopic {
		t.Errorf("defaults not applied: %+v", cf)
	}
}
