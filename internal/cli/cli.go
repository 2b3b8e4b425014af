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

// Package cli holds the flag, config-file and lifecycle plumbing shared by the
// orderstream commands. Flag parse errors exit 2; runtime failures exit 1.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LukasBola/orderstream/metrics"
	"github.com/LukasBola/orderstream/sak"
	"github.com/LukasBola/orderstream/stream"
)

const (
	DefaultBootstrapServers = "localhost:9092,localhost:9094"
	DefaultTopic            = "orders"
)

// CommonFlags are accepted by every command. Precedence, highest first:
// explicitly passed flag, --config file value, flag default.
type CommonFlags struct {
	BootstrapServers   string
	Topic              string
	ConfigPath         string
	ReportEverySeconds int
	MetricsAddr        string
	LogLevel           string
}

// Register binds the common flags onto fs.
func (cf *CommonFlags) Register(fs *flag.FlagSet) {
	fs.StringVar(&cf.BootstrapServers, "bootstrap-servers", DefaultBootstrapServers, "comma separated list of Kafka brokers")
	fs.StringVar(&cf.Topic, "topic", DefaultTopic, "the order event topic")
	fs.StringVar(&cf.ConfigPath, "config", "", "optional YAML config file; explicit flags take precedence")
	fs.IntVar(&cf.ReportEverySeconds, "report-every-seconds", 5, "interval between metrics report lines")
	fs.StringVar(&cf.MetricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")
	fs.StringVar(&cf.LogLevel, "log-level", "info", "one of: none, trace, debug, info, warn, error")
}

// ParseLogLevel maps the --log-level flag value onto a stream.LogLevel.
func ParseLogLevel(s string) (stream.LogLevel, error) {
	switch s {
	case "none":
		return stream.LogLevelNone, nil
	case "trace":
		return stream.LogLevelTrace, nil
	case "debug":
		return stream.LogLevelDebug, nil
	case "info":
		return stream.LogLevelInfo, nil
	case "warn":
		return stream.LogLevelWarn, nil
	case "error":
		return stream.LogLevelError, nil
	}
	return stream.LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Resolve applies the optional config file and installs the logger. A FileConfig value
// is only honored where the corresponding flag was not set on the command line.
func (cf *CommonFlags) Resolve(fs *flag.FlagSet) (stream.FileConfig, error) {
	var fc stream.FileConfig
	if len(cf.ConfigPath) > 0 {
		var err error
		if fc, err = stream.LoadFileConfig(cf.ConfigPath); err != nil {
			return fc, err
		}
	}
	set := stream.FlagsExplicitlySet(fs)
	if !set["bootstrap-servers"] && len(fc.BootstrapServers) > 0 {
		cf.BootstrapServers = fc.BootstrapServers
	}
	if !set["topic"] && len(fc.Topic) > 0 {
		cf.Topic = fc.Topic
	}
	if !set["metrics-addr"] && len(fc.MetricsAddr) > 0 {
		cf.MetricsAddr = fc.MetricsAddr
	}
	if !set["report-every-seconds"] && fc.ReportEverySeconds > 0 {
		cf.ReportEverySeconds = fc.ReportEverySeconds
	}
	level, err := ParseLogLevel(cf.LogLevel)
	if err != nil {
		return fc, err
	}
	stream.InitLogger(stream.SimpleLogger(level), stream.LogLevelError)
	return fc, nil
}

// Cluster builds the broker list from the resolved bootstrap servers.
func (cf *CommonFlags) Cluster() stream.SimpleCluster {
	return stream.ParseCluster(cf.BootstrapServers)
}

// ReportInterval returns the metrics reporting cadence as a duration.
func (cf *CommonFlags) ReportInterval() time.Duration {
	return time.Duration(cf.ReportEverySeconds) * time.Second
}

// StartExporter serves Prometheus metrics when --metrics-addr was provided.
func (cf *CommonFlags) StartExporter(registry *metrics.Registry, component string) {
	if len(cf.MetricsAddr) == 0 {
		return
	}
	metrics.StartExporter(cf.MetricsAddr, registry.EnablePrometheus(component))
}

// NewRunStatus returns a RunStatus halted by SIGINT or SIGTERM.
func NewRunStatus() sak.RunStatus {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return sak.NewRunStatus(ctx)
}

// Ping verifies broker reachability before any real work starts, retrying with
// the default budget. Exhaustion is fatal for every command.
func Ping(rs sak.RunStatus, cluster stream.Cluster) error {
	client, err := stream.NewClient(cluster)
	if err != nil {
		return &stream.ConnectionError{Op: "ping", Err: err}
	}
	defer client.Close()
	err = stream.Retry(rs.Ctx(), stream.DefaultRetry, "broker ping", func() error {
		ctx, cancel := context.WithTimeout(rs.Ctx(), 5*time.Second)
		defer cancel()
		return client.Ping(ctx)
	})
	if err != nil {
		return &stream.ConnectionError{Op: "ping", Err: err}
	}
	return nil
}

// Fatal prints err and exits 1.
func Fatal(err error) {
	fmt.Fprintln(os.Stderr, "fatal:", err)
	os.Exit(1)
}

// Usage prints err plus the flag defaults and exits 2.
func Usage(fs *flag.FlagSet, err error) {
	fmt.Fprintln(os.Stderr, err)
	fs.Usage()
	os.Exit(2)
}
