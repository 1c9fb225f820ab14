package market

import "time"

// Tick is one normalized trade from the exchange stream.
type Tick struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// PriceBook holds the latest known price per symbol. It is transient
// state, rebuilt from the feed, and is never persisted.
//
// The book is owned by the simulator loop and is not safe for
// concurrent use.
type PriceBook struct {
	prices map[string]float64
}

func NewPriceBook() *PriceBook {
	return &PriceBook{prices: make(map[string]float64)}
}

func (b *PriceBook) Set(symbol string, price float64) {
	b.prices[symbol] = price
}

func (b *PriceBook) Get(symbol string) (float64, bool) {
	p, ok := b.prices[symbol]
	return p, ok
}

func (b *PriceBook) Len() int { return len(b.prices) }
