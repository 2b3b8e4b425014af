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
	"bytes"

	jsoniter "github.com/json-iterator/go"
)

type Codec[T any] interface {
	Encode(*bytes.Buffer, T) error
	Decode([]byte) (T, error)
}

var defaultJson = jsoniter.ConfigCompatibleWithStandardLibrary

// A generic JSON en/decoder.
// Uses "github.com/json-iterator/go".ConfigCompatibleWithStandardLibrary for en/decoding JSON in a performant way
type JsonCodec[T any] struct{}

// Encodes the provided value.
func (JsonCodec[T]) Encode(b *bytes.Buffer, t T) error {
	stream := defaultJson.BorrowStream(b)
	defer defaultJson.ReturnStream(stream)
	stream.WriteVal(t)
	return stream.Flush()
}

// Decodes the provided []byte,
func (JsonCodec[T]) Decode(b []byte) (T, error) {
	iter := defaultJson.BorrowIterator(b)
	defer defaultJson.ReturnIterator(iter)

	var t T
	iter.ReadVal(&t)
	return t, iter.Error
}

// A convenience function for decoding a raw record value.
//
//	order, err := stream.JsonItemDecoder[order.OrderEvent](record.Value)
func JsonItemDecoder[T any](value []byte) (T, error) {
	var codec JsonCodec[T]
	return codec.Decode(value)
}

// A convenience function for encoding an item into a freshly allocated []byte.
func JsonItemEncoder[T any](item T) ([]byte, error) {
	var codec JsonCodec[T]
	buf := bytes.NewBuffer(nil)
	if err := codec.Encode(buf, item); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
