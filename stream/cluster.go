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
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
)

// An interface for implementing a reusable Kafka client configuration.
type Cluster interface {
	// Returns the list of kgo.Opt(s) that will be used whenever a connection is made to this cluster.
	// At minimum, it should return the kgo.SeedBrokers() option.
	Config() ([]kgo.Opt, error)
}

// A [Cluster] implementation which establishes a plain text connection to a Kafka cluster.
//
//	cluster := stream.SimpleCluster([]string{"127.0.0.1:9092"})
type SimpleCluster []string

// Returns []kgo.Opt{kgo.SeedBrokers(sc...)}
func (sc SimpleCluster) Config() ([]kgo.Opt, error) {
	return []kgo.Opt{kgo.SeedBrokers(sc...)}, nil
}

// ParseCluster builds a SimpleCluster from a comma separated broker list,
// the format accepted by the --bootstrap-servers flag.
func ParseCluster(bootstrapServers string) SimpleCluster {
	parts := strings.Split(bootstrapServers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); len(p) > 0 {
			brokers = append(brokers, p)
		}
	}
	return SimpleCluster(brokers)
}

// NewClient creates a kgo.Client from the options returned by the provided [Cluster] and additional `options`.
// Used by every process in this module and exposed for convenience.
func NewClient(cluster Cluster, options ...kgo.Opt) (*kgo.Client, error) {
	configOptions := []kgo.Opt{kgo.WithLogger(kgoLogger)}
	clusterOpts, err := cluster.Config()
	if err != nil {
		return nil, err
	}
	configOptions = append(configOptions, clusterOpts...)
	configOptions = append(configOptions, options...)
	return kgo.NewClient(configOptions...)
}
