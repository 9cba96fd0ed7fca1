// Package testdata holds a frozen AAPL option chain used to exercise the
// solver and the batch strategies against real quotes.
package testdata

import (
	optionkit "github.com/jwaldner/optionkit/optionkit_lib"
)

// Quote is one contract's top of book.
type Quote struct {
	Symbol  string
	Type    optionkit.OptionType
	Strike  float64
	Bid     float64
	Ask     float64
	BidSize int
	AskSize int
}

// MicroPrice is Bid + (Ask - Bid) * BidSize / (BidSize + AskSize), or the
// plain mid when there is no size.
func (q Quote) MicroPrice() float64 {
	if q.BidSize > 0 && q.AskSize > 0 {
		ratio := float64(q.BidSize) / float64(q.BidSize+q.AskSize)
		return q.Bid + (q.Ask-q.Bid)*ratio
	}
	return (q.Bid + q.Ask) / 2
}

// Chain is a single-expiry chain on one underlying.
type Chain struct {
	Symbol     string
	Spot       float64
	Expiration string
	Time       float64 // years, 31 days / 365
	Rate       float64
	Quotes     []Quote
}

// Len returns the number of quotes.
func (c Chain) Len() int { return len(c.Quotes) }

// Inputs returns batch inputs over the chain with the given option type. Only
// quotes of that type are included, in chain order.
func (c Chain) Inputs(typ optionkit.OptionType) (optionkit.IVInputs, []Quote) {
	var quotes []Quote
	var strikes, prices []float64
	for _, q := range c.Quotes {
		if q.Type != typ {
			continue
		}
		quotes = append(quotes, q)
		strikes = append(strikes, q.Strike)
		prices = append(prices, q.MicroPrice())
	}
	return optionkit.IVInputs{
		Inputs: optionkit.Inputs{
			Spot:   optionkit.Scalar(c.Spot),
			Strike: optionkit.Array(strikes),
			Time:   optionkit.Scalar(c.Time),
			Rate:   optionkit.Scalar(c.Rate),
		},
		Price: optionkit.Array(prices),
	}, quotes
}

// AAPL captured 2025-12-16 for the 2026-01-16 monthly expiry.
var AAPL = Chain{
	Symbol:     "AAPL",
	Spot:       272.225,
	Expiration: "2026-01-16",
	Time:       0.0849,
	Rate:       0.05,
	Quotes: []Quote{
		{Symbol: "AAPL260116P00250000", Type: optionkit.Put, Strike: 250, Bid: 0.75, Ask: 0.85, BidSize: 450, AskSize: 280},
		{Symbol: "AAPL260116P00255000", Type: optionkit.Put, Strike: 255, Bid: 1.14, Ask: 1.24, BidSize: 320, AskSize: 180},
		{Symbol: "AAPL260116P00260000", Type: optionkit.Put, Strike: 260, Bid: 1.80, Ask: 1.84, BidSize: 85, AskSize: 55},
		{Symbol: "AAPL260116P00265000", Type: optionkit.Put, Strike: 265, Bid: 2.83, Ask: 2.93, BidSize: 390, AskSize: 220},
		{Symbol: "AAPL260116P00275000", Type: optionkit.Put, Strike: 275, Bid: 6.10, Ask: 6.30, BidSize: 180, AskSize: 140},
		{Symbol: "AAPL260116P00280000", Type: optionkit.Put, Strike: 280, Bid: 8.80, Ask: 9.00, BidSize: 150, AskSize: 85},
		{Symbol: "AAPL260116C00275000", Type: optionkit.Call, Strike: 275, Bid: 3.10, Ask: 3.20, BidSize: 220, AskSize: 160},
		{Symbol: "AAPL260116C00280000", Type: optionkit.Call, Strike: 280, Bid: 4.23, Ask: 4.29, BidSize: 135, AskSize: 95},
		{Symbol: "AAPL260116C00285000", Type: optionkit.Call, Strike: 285, Bid: 2.08, Ask: 2.12, BidSize: 340, AskSize: 260},
		{Symbol: "AAPL260116C00290000", Type: optionkit.Call, Strike: 290, Bid: 0.83, Ask: 0.87, BidSize: 520, AskSize: 380},
		{Symbol: "AAPL260116C00295000", Type: optionkit.Call, Strike: 295, Bid: 0.82, Ask: 0.86, BidSize: 290, AskSize: 210},
		{Symbol: "AAPL260116C00300000", Type: optionkit.Call, Strike: 300, Bid: 0.40, Ask: 0.45, BidSize: 40, AskSize: 25},
	},
}
