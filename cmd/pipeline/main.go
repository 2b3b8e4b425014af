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

// The pipeline command runs the streaming validator/partitioner: it consumes the
// order topic, splits records into valid and invalid sinks on disk, and tracks
// its own progress through checkpoint markers.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/LukasBola/orderstream/internal/cli"
	"github.com/LukasBola/orderstream/pipeline"
	"github.com/LukasBola/orderstream/stream"
)

func main() {
	fs := flag.NewFlagSet("pipeline", flag.ExitOnError)
	var cf cli.CommonFlags
	cf.Register(fs)
	groupID := fs.String("group-id", "order-pipeline", "consumer group id")
	outputDir := fs.String("output-dir", "", "root directory for the valid/ and invalid/ sinks")
	batchMaxRecords := fs.Int("batch-max-records", 500, "maximum records per micro-batch")
	batchIntervalSeconds := fs.Int("batch-interval", 2, "maximum seconds one fetch waits for records")
	fs.Parse(os.Args[1:])

	fc, err := cf.Resolve(fs)
	if err != nil {
		cli.Usage(fs, err)
	}
	set := stream.FlagsExplicitlySet(fs)
	if !set["group-id"] && len(fc.GroupID) > 0 {
		*groupID = fc.GroupID
	}
	if !set["output-dir"] && len(fc.OutputDir) > 0 {
		*outputDir = fc.OutputDir
	}
	if len(*outputDir) == 0 {
		cli.Usage(fs, fmt.Errorf("--output-dir is required"))
	}

	rs := cli.NewRunStatus()
	cluster := cf.Cluster()
	if err := cli.Ping(rs, cluster); err != nil {
		cli.Fatal(err)
	}

	p, err := pipeline.NewPipeline(pipeline.Config{
		Topic:           cf.Topic,
		GroupID:         *groupID,
		OutputDir:       *outputDir,
		BatchMaxRecords: *batchMaxRecords,
		BatchInterval:   time.Duration(*batchIntervalSeconds) * time.Second,
		Cluster:         cluster,
	})
	if err != nil {
		cli.Fatal(err)
	}

	if err := p.Run(rs); err != nil {
		cli.Fatal(err)
	}
	valid, invalid := p.Counts()
	stream.Log().Infof("[pipeline][summary] valid=%d invalid=%d", valid, invalid)
}
