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

// The tracker command measures end-to-end delivery latency for every order
// event, committing its offsets manually on a fixed cadence.
package main

import (
	"flag"
	"os"

	"github.com/LukasBola/orderstream/internal/cli"
	"github.com/LukasBola/orderstream/metrics"
	"github.com/LukasBola/orderstream/monitor"
	"github.com/LukasBola/orderstream/stream"
)

func main() {
	fs := flag.NewFlagSet("tracker", flag.ExitOnError)
	var cf cli.CommonFlags
	cf.Register(fs)
	groupID := fs.String("group-id", "order-tracker", "consumer group id")
	commitEvery := fs.Int("commit-every", 100, "commit offsets after this many records")
	fs.Parse(os.Args[1:])

	fc, err := cf.Resolve(fs)
	if err != nil {
		cli.Usage(fs, err)
	}
	if !stream.FlagsExplicitlySet(fs)["group-id"] && len(fc.GroupID) > 0 {
		*groupID = fc.GroupID
	}

	rs := cli.NewRunStatus()
	cluster := cf.Cluster()
	if err := cli.Ping(rs, cluster); err != nil {
		cli.Fatal(err)
	}

	registry := metrics.NewRegistry()
	cf.StartExporter(registry, "tracker")

	m, err := monitor.NewMonitor(monitor.Config{
		Topic:       cf.Topic,
		GroupID:     *groupID,
		CommitEvery: *commitEvery,
		Cluster:     cluster,
		Registry:    registry,
	})
	if err != nil {
		cli.Fatal(err)
	}

	reporter := metrics.NewReporter(registry, "tracker", cf.ReportInterval(), metrics.Snapshot.ConsumerLine)
	go reporter.Run(rs.Fork())

	err = m.Run(rs)
	reporter.Summary()
	if err != nil {
		cli.Fatal(err)
	}
}
