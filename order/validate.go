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

package order

import "github.com/LukasBola/orderstream/stream"

// InvalidReason classifies why an event failed validation.
type InvalidReason string

const (
	ReasonMalformedPayload    InvalidReason = "malformed_payload"
	ReasonMissingQuantity     InvalidReason = "missing_quantity"
	ReasonMissingPrice        InvalidReason = "missing_price"
	ReasonNonPositiveQuantity InvalidReason = "non_positive_quantity"
	ReasonNonPositivePrice    InvalidReason = "non_positive_price"
)

// ValidationOutcome is the tagged result of classifying a consumed record.
// When Reason == ReasonMalformedPayload the Event is zero-valued and Raw holds
// the undecodable payload.
type ValidationOutcome struct {
	Event  OrderEvent
	Valid  bool
	Reason InvalidReason
	Raw    []byte
}

// Validate classifies a decoded event. When multiple violations apply, the first
// matching reason in this fixed precedence order wins:
// missing_quantity, missing_price, non_positive_quantity, non_positive_price.
func Validate(ev OrderEvent) ValidationOutcome {
	switch {
	case ev.Quantity == nil:
		return ValidationOutcome{Event: ev, Reason: ReasonMissingQuantity}
	case ev.UnitPrice == nil:
		return ValidationOutcome{Event: ev, Reason: ReasonMissingPrice}
	case *ev.Quantity <= 0:
		return ValidationOutcome{Event: ev, Reason: ReasonNonPositiveQuantity}
	case *ev.UnitPrice <= 0:
		return ValidationOutcome{Event: ev, Reason: ReasonNonPositivePrice}
	}
	return ValidationOutcome{Event: ev, Valid: true}
}

// Classify decodes a raw record payload and validates the result.
// An undecodable payload short-circuits all field checks with malformed_payload.
func Classify(payload []byte) ValidationOutcome {
	ev, err := stream.JsonItemDecoder[OrderEvent](payload)
	if err != nil {
		raw := make([]byte, len(payload))
		copy(raw, payload)
		return ValidationOutcome{Reason: ReasonMalformedPayload, Raw: raw}
	}
	return Validate(ev)
}
