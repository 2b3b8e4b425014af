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

// The provision command creates the order topic if it does not yet exist.
// Topic management is deliberately kept out of the producers and consumers.
package main

import (
	"flag"
	"os"

	"github.com/LukasBola/orderstream/internal/cli"
	"github.com/LukasBola/orderstream/stream"
)

func main() {
	fs := flag.NewFlagSet("provision", flag.ExitOnError)
	var cf cli.CommonFlags
	cf.Register(fs)
	partitions := fs.Int("partitions", 3, "number of partitions for the topic")
	replicationFactor := fs.Int("replication-factor", 2, "replication factor for the topic")
	minInSync := fs.Int("min-insync-replicas", 1, "min.insync.replicas for the topic")
	fs.Parse(os.Args[1:])

	if _, err := cf.Resolve(fs); err != nil {
		cli.Usage(fs, err)
	}

	rs := cli.NewRunStatus()
	cluster := cf.Cluster()
	if err := cli.Ping(rs, cluster); err != nil {
		cli.Fatal(err)
	}

	numPartitions, err := stream.EnsureTopic(cluster, stream.TopicSpec{
		Name:              cf.Topic,
		NumPartitions:     *partitions,
		ReplicationFactor: *replicationFactor,
		MinInSync:         *minInSync,
	})
	if err != nil {
		cli.Fatal(err)
	}
	stream.Log().Infof("topic %s ready with %d partition(s)", cf.Topic, numPartitions)
}
