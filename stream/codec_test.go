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
	"testing"
)

type testPayload struct {
	Name  string `json:"name"`
	Count *int   `json:"count,omitempty"`
}

func TestJsonCodecOmitsNilPointers(t *testing.T) {
	data, err := JsonItemEncoder(testPayload{Name: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "count") {
		t.Errorf("nil pointer field must be omitted, got %s", data)
	}
	decoded, err := JsonItemDecoder[testPayload](data)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Count != nil {
		t.Error("omitted field must decode to nil")
	}
}

func TestJsonCodecPreservesZeroValues(t *testing.T) {
	zero := 0
	data, err := JsonItemEncoder(testPayload{Name: "a", Count: &zero})
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := JsonItemDecoder[testPayload](data)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Count == nil || *decoded.Count != 0 {
		t.Error("explicit zero must survive a round trip distinct from missing")
	}
}

func TestJsonItemDecoderRejectsGarbage(t *testing.T) {
	if _, err := JsonItemDecoder[testPayload]([]byte("not json")); err == nil {
		t.Error("expected decode error for garbage input")
	}
}
