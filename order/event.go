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

// Package order defines the canonical order-event schema shared by the producers,
// the streaming pipeline and the latency tracker, along with the synthetic event
// generators and the valid/invalid classification rules.
package order

// OrderEvent is the wire schema for a single purchase. Events are immutable once produced.
// Quantity and UnitPrice are pointers so that a missing required field survives a JSON
// round trip and remains distinguishable from a zero value.
type OrderEvent struct {
	OrderID          string   `json:"order_id"`
	User             string   `json:"user"`
	Item             string   `json:"item"`
	Category         string   `json:"category"`
	Quantity         *int     `json:"quantity,omitempty"`
	UnitPrice        *float64 `json:"unit_price,omitempty"`
	DiscountPct      int      `json:"discount_pct"`
	TotalAmount      float64  `json:"total_amount"`
	PaymentMethod    string   `json:"payment_method"`
	SalesChannel     string   `json:"sales_channel"`
	StoreCity        string   `json:"store_city"`
	PurchaseDatetime string   `json:"purchase_datetime"`
	PurchaseDate     string   `json:"purchase_date"`
	PurchaseTime     string   `json:"purchase_time"`
	WeekdayName      string   `json:"weekday_name"`
	WeekdayNum       int      `json:"weekday_num"`
	HourOfDay        int      `json:"hour_of_day"`
	IsWeekend        bool     `json:"is_weekend"`
	// EventTimeMs is the origination timestamp in epoch millis, set once at creation.
	// The tracker derives end-to-end latency from it.
	EventTimeMs int64 `json:"event_time_ms"`
	// InvalidMode is set only by the invalid-event generator so that deliberately
	// broken events remain traceable through the invalid sink.
	InvalidMode string `json:"invalid_mode,omitempty"`
}

// Key returns the record key used for partitioning: the order id.
func (e *OrderEvent) Key() string {
	return e.OrderID
}
