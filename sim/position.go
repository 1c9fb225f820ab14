package sim

import (
	"time"

	"papersim/pkg/id"
)

// Direction of a leveraged bet.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Status of a position. Transitions only OPEN -> CLOSED or
// OPEN -> LIQUIDATED, terminal thereafter.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusClosed     Status = "CLOSED"
	StatusLiquidated Status = "LIQUIDATED"
)

// Position is one leveraged bet. Size is margin times leverage and
// quantity is size over the entry price; both are fixed at open, as is
// the liquidation price.
type Position struct {
	ID               string     `json:"id"`
	Symbol           string     `json:"symbol"`
	Direction        Direction  `json:"direction"`
	EntryPrice       float64    `json:"entry_price"`
	CurrentPrice     float64    `json:"current_price"`
	Margin           float64    `json:"margin"`
	Leverage         float64    `json:"leverage"`
	Size             float64    `json:"size"`
	Quantity         float64    `json:"quantity"`
	LiquidationPrice float64    `json:"liquidation_price"`
	PnL              float64    `json:"pnl"`
	PnLPercent       float64    `json:"pnl_percent"`
	Status           Status     `json:"status"`
	OpenedAt         time.Time  `json:"opened_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
	ClosePrice       *float64   `json:"close_price,omitempty"`
}

func newPosition(symbol string, dir Direction, entry, margin, leverage float64, now time.Time) *Position {
	size := margin * leverage
	qty := size / entry

	return &Position{
		ID:               id.New(),
		Symbol:           symbol,
		Direction:        dir,
		EntryPrice:       entry,
		CurrentPrice:     entry,
		Margin:           margin,
		Leverage:         leverage,
		Size:             size,
		Quantity:         qty,
		LiquidationPrice: liquidationPrice(dir, entry, margin, qty),
		Status:           StatusOpen,
		OpenedAt:         now,
	}
}

// liquidationPrice is the price at which the accumulated loss equals
// the full margin: entry - margin/qty for longs, entry + margin/qty
// for shorts.
func liquidationPrice(dir Direction, entry, margin, qty float64) float64 {
	if dir == Long {
		return entry - margin/qty
	}
	return entry + margin/qty
}

// mark revalues the position against the latest price.
func (p *Position) mark(price float64) {
	p.CurrentPrice = price
	if p.Direction == Long {
		p.PnL = (price - p.EntryPrice) * p.Quantity
	} else {
		p.PnL = (p.EntryPrice - price) * p.Quantity
	}
	p.PnLPercent = p.PnL / p.Margin * 100
}

// breached reports whether the loss has consumed the full margin.
func (p *Position) breached() bool {
	return p.PnL <= -p.Margin
}
