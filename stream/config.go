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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig mirrors the optional YAML file accepted via --config. Every field has a
// flag counterpart; values from the file apply only where the flag was left at its default.
type FileConfig struct {
	BootstrapServers   string `yaml:"bootstrap_servers"`
	Topic              string `yaml:"topic"`
	GroupID            string `yaml:"group_id"`
	OutputDir          string `yaml:"output_dir"`
	MetricsAddr        string `yaml:"metrics_addr"`
	ReportEverySeconds int    `yaml:"report_every_seconds"`
}

// LoadFileConfig reads and parses the YAML file at path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("could not read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	return fc, nil
}

// FlagsExplicitlySet returns the set of flag names the user passed on the command line.
// Used to decide which FileConfig values may override flag defaults.
func FlagsExplicitlySet(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}
