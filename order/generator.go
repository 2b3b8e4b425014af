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

import (
	"math"
	"math/rand"
	"time"

	"github.com/LukasBola/orderstream/sak"
	"github.com/google/uuid"
)

type product struct {
	item      string
	category  string
	basePrice float64
}

var productCatalog = []product{
	{"yogurt", "dairy", 3.20},
	{"potatoes", "vegetables", 2.10},
	{"apples", "fruit", 2.80},
	{"bananas", "fruit", 3.10},
	{"carrots", "vegetables", 2.40},
	{"cheese", "dairy", 8.50},
	{"bread", "bakery", 4.20},
	{"rice", "grains", 5.90},
	{"pasta", "grains", 6.20},
	{"eggs", "dairy", 7.30},
}

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
var paymentMethods = []string{"card", "blik", "cash", "mobile_wallet"}
var salesChannels = []string{"store", "online", "pickup"}
var discountChoices = []int{0, 0, 0, 5, 10, 15}

var userNames = []string{
	"Anna Kowalska", "Piotr Nowak", "Maria Wisniewska", "Jan Wojcik", "Ewa Kaminska",
	"Tomasz Lewandowski", "Agnieszka Zielinska", "Marek Szymanski", "Katarzyna Dabrowska",
	"Pawel Kozlowski", "Magda Jankowska", "Adam Mazur", "Iga Krawczyk", "Rafal Piotrowski",
}

var storeCities = []string{
	"Warszawa", "Krakow", "Gdansk", "Wroclaw", "Poznan", "Lodz", "Szczecin",
	"Katowice", "Lublin", "Bialystok", "Bydgoszcz", "Rzeszow",
}

// Generator produces synthetic, well-formed OrderEvents. Not safe for concurrent use;
// each publisher loop owns exactly one Generator.
type Generator struct {
	rand *rand.Rand
	now  func() time.Time
}

// NewGenerator returns a Generator seeded from the current time.
func NewGenerator() *Generator {
	return NewSeededGenerator(time.Now().UnixNano())
}

// NewSeededGenerator returns a Generator with a deterministic random source. Used by tests.
func NewSeededGenerator(seed int64) *Generator {
	return &Generator{
		rand: rand.New(rand.NewSource(seed)),
		now:  time.Now,
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func (g *Generator) pick(n int) int {
	return g.rand.Intn(n)
}

// Next creates a fresh OrderEvent. The purchase time is spread over the last 4 weeks
// with a random time of day; event_time_ms records the actual creation instant.
func (g *Generator) Next() *OrderEvent {
	nowDt := g.now()
	purchaseDt := nowDt.Add(-(time.Duration(g.pick(28))*24*time.Hour +
		time.Duration(g.pick(24))*time.Hour +
		time.Duration(g.pick(60))*time.Minute +
		time.Duration(g.pick(60))*time.Second))

	p := productCatalog[g.pick(len(productCatalog))]
	quantity := 1 + g.pick(20)
	unitPrice := roundCents(p.basePrice*0.85 + g.rand.Float64()*(p.basePrice*1.20-p.basePrice*0.85))
	discountPct := discountChoices[g.pick(len(discountChoices))]
	totalAmount := roundCents(float64(quantity) * unitPrice * (1 - float64(discountPct)/100))

	// time.Weekday starts on Sunday, the schema counts from Monday
	weekdayNum := (int(purchaseDt.Weekday()) + 6) % 7

	return &OrderEvent{
		OrderID:          uuid.NewString(),
		User:             userNames[g.pick(len(userNames))],
		Item:             p.item,
		Category:         p.category,
		Quantity:         sak.Ptr(quantity),
		UnitPrice:        sak.Ptr(unitPrice),
		DiscountPct:      discountPct,
		TotalAmount:      totalAmount,
		PaymentMethod:    paymentMethods[g.pick(len(paymentMethods))],
		SalesChannel:     salesChannels[g.pick(len(salesChannels))],
		StoreCity:        storeCities[g.pick(len(storeCities))],
		PurchaseDatetime: purchaseDt.Format("2006-01-02T15:04:05"),
		PurchaseDate:     purchaseDt.Format("2006-01-02"),
		PurchaseTime:     purchaseDt.Format("15:04:05"),
		WeekdayName:      weekdays[weekdayNum],
		WeekdayNum:       weekdayNum,
		HourOfDay:        purchaseDt.Hour(),
		IsWeekend:        weekdayNum >= 5,
		EventTimeMs:      nowDt.UnixMilli(),
	}
}

// InvalidMode selects which required-field constraint the invalid generator violates.
type InvalidMode string

const (
	MissingQuantity     InvalidMode = "missing_quantity"
	MissingPrice        InvalidMode = "missing_price"
	MissingBoth         InvalidMode = "missing_both"
	NonPositiveQuantity InvalidMode = "non_positive_quantity"
	NonPositivePrice    InvalidMode = "non_positive_price"
	// NonPositive picks one of NonPositiveQuantity/NonPositivePrice per event.
	NonPositive InvalidMode = "non_positive"
	// RandomMode picks any concrete mode per event.
	RandomMode InvalidMode = "random"
)

var concreteInvalidModes = []InvalidMode{
	MissingPrice, MissingQuantity, MissingBoth, NonPositivePrice, NonPositiveQuantity,
}

// ParseInvalidMode validates the --invalid-mode flag value. Legacy spellings
// (missing_unit_price, non_positive_unit_price) are accepted as aliases.
func ParseInvalidMode(s string) (InvalidMode, bool) {
	switch InvalidMode(s) {
	case MissingQuantity, MissingPrice, MissingBoth, NonPositiveQuantity, NonPositivePrice, NonPositive, RandomMode:
		return InvalidMode(s), true
	}
	switch s {
	case "missing_unit_price":
		return MissingPrice, true
	case "non_positive_unit_price":
		return NonPositivePrice, true
	}
	return "", false
}

// InvalidGenerator wraps a Generator and breaks each event per the configured mode.
// The order id is always preserved so invalid events remain traceable downstream.
type InvalidGenerator struct {
	gen  *Generator
	mode InvalidMode
}

func NewInvalidGenerator(gen *Generator, mode InvalidMode) *InvalidGenerator {
	return &InvalidGenerator{gen: gen, mode: mode}
}

// Next creates an OrderEvent violating one or more required-field constraints.
// The applied mode is recorded in the event's invalid_mode field.
func (ig *InvalidGenerator) Next() *OrderEvent {
	ev := ig.gen.Next()
	mode := ig.mode
	switch mode {
	case RandomMode:
		mode = concreteInvalidModes[ig.gen.pick(len(concreteInvalidModes))]
	case NonPositive:
		if ig.gen.pick(2) == 0 {
			mode = NonPositiveQuantity
		} else {
			mode = NonPositivePrice
		}
	}
	switch mode {
	case MissingQuantity:
		ev.Quantity = nil
	case MissingPrice:
		ev.UnitPrice = nil
	case MissingBoth:
		ev.Quantity = nil
		ev.UnitPrice = nil
	case NonPositiveQuantity:
		ev.Quantity = sak.Ptr(0)
	case NonPositivePrice:
		ev.UnitPrice = sak.Ptr(0.0)
	}
	ev.InvalidMode = string(mode)
	return ev
}
