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

package metrics

import (
	"time"

	"github.com/LukasBola/orderstream/sak"
	"github.com/LukasBola/orderstream/stream"
)

// LineFunc renders a Snapshot into the report format for one process kind,
// e.g. Snapshot.ProducerLine or Snapshot.ConsumerLine.
type LineFunc func(Snapshot) string

// Reporter periodically prints a human-readable metrics line for its Registry.
type Reporter struct {
	registry  *Registry
	component string
	interval  time.Duration
	line      LineFunc
}

func NewReporter(registry *Registry, component string, interval time.Duration, line LineFunc) *Reporter {
	return &Reporter{
		registry:  registry,
		component: component,
		interval:  interval,
		line:      line,
	}
}

// Run emits a report line every interval until rs halts. Meant to be launched
// as `go reporter.Run(rs)` next to the owning loop.
func (r *Reporter) Run(rs sak.RunStatus) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stream.Log().Infof("[%s][metrics] %s", r.component, r.line(r.registry.Snapshot()))
		case <-rs.Done():
			return
		}
	}
}

// Summary prints the final report line including elapsed wall time.
func (r *Reporter) Summary() {
	s := r.registry.Snapshot()
	stream.Log().Infof("[%s][summary] %s%s", r.component, r.line(s), s.SummarySuffix())
}
