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
	"fmt"
	"time"

	"github.com/LukasBola/orderstream/metrics"
	"github.com/LukasBola/orderstream/order"
	"github.com/LukasBola/orderstream/publish"
	"github.com/LukasBola/orderstream/stream"
	"github.com/schollz/progressbar/v3"
)

// ProducerMain is the shared entry point for the valid and invalid event producers.
// The two commands differ only in which generator feeds the publisher.
func ProducerMain(name string, args []string, invalid bool) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var cf CommonFlags
	cf.Register(fs)
	eventsPerSecond := fs.Float64("events-per-second", 10, "target publish rate")
	maxEvents := fs.Int64("max-events", 0, "stop after this many events, 0 means unlimited")
	durationSeconds := fs.Int("duration-seconds", 0, "stop after this many seconds, 0 means unlimited")
	progress := fs.Bool("progress", false, "render a progress bar, requires --max-events")
	seed := fs.Int64("seed", 0, "seed the event generator for reproducible runs, 0 means random")
	invalidMode := "random"
	if invalid {
		fs.StringVar(&invalidMode, "invalid-mode", "random",
			"one of: missing_quantity, missing_price, missing_both, non_positive_quantity, non_positive_price, non_positive, random")
	}
	fs.Parse(args)

	if _, err := cf.Resolve(fs); err != nil {
		Usage(fs, err)
	}
	if *progress && *maxEvents <= 0 {
		Usage(fs, fmt.Errorf("--progress requires --max-events"))
	}
	// reject bad flag values before touching the broker
	if *eventsPerSecond <= 0 {
		Usage(fs, fmt.Errorf("--events-per-second must be greater than 0, got %v", *eventsPerSecond))
	}
	if *maxEvents < 0 {
		Usage(fs, fmt.Errorf("--max-events must not be negative, got %d", *maxEvents))
	}
	if *durationSeconds < 0 {
		Usage(fs, fmt.Errorf("--duration-seconds must not be negative, got %d", *durationSeconds))
	}

	var gen *order.Generator
	if *seed != 0 {
		gen = order.NewSeededGenerator(*seed)
	} else {
		gen = order.NewGenerator()
	}
	var generator publish.Generator = gen
	if invalid {
		mode, ok := order.ParseInvalidMode(invalidMode)
		if !ok {
			Usage(fs, fmt.Errorf("unknown --invalid-mode %q", invalidMode))
		}
		generator = order.NewInvalidGenerator(gen, mode)
	}

	rs := NewRunStatus()
	cluster := cf.Cluster()
	if err := Ping(rs, cluster); err != nil {
		Fatal(err)
	}

	client, err := stream.NewClient(cluster)
	if err != nil {
		Fatal(&stream.ConnectionError{Op: name + " client setup", Err: err})
	}
	defer client.Close()

	registry := metrics.NewRegistry()
	cf.StartExporter(registry, name)

	config := publish.Config{
		Topic:           cf.Topic,
		EventsPerSecond: *eventsPerSecond,
		MaxEvents:       *maxEvents,
		Duration:        time.Duration(*durationSeconds) * time.Second,
	}
	if *progress {
		bar := progressbar.Default(*maxEvents, name)
		config.OnSend = func(attempts int64) {
			bar.Set64(attempts)
		}
	}

	publisher, err := publish.NewPublisher(config, client, generator, registry)
	if err != nil {
		Fatal(err)
	}

	reporter := metrics.NewReporter(registry, name, cf.ReportInterval(), metrics.Snapshot.ProducerLine)
	go reporter.Run(rs.Fork())

	err = publisher.Run(rs)
	reporter.Summary()
	if err != nil {
		Fatal(err)
	}
}
