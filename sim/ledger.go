package sim

import (
	"errors"
	"time"

	"papersim/market"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoPrice             = errors.New("no price for symbol")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrIndexOutOfRange     = errors.New("position index out of range")
)

// maxHistory caps the persisted closed-position history; the oldest
// entries are dropped first.
const maxHistory = 50

// Account is the singleton per-session account state. Balance is
// spendable collateral and must stay >= 0 after any single operation;
// an open that would overdraw is rejected, not clamped.
type Account struct {
	Balance             float64 `json:"balance"`
	TotalDeposited      float64 `json:"total_deposited"`
	TotalRealizedProfit float64 `json:"total_realized_profit"`
	TotalRealizedLoss   float64 `json:"total_realized_loss"`
}

// Ledger owns the account, the open positions and the closed history.
// All mutation goes through its methods and every operation is
// all-or-nothing. Open positions are ordered most-recent-first; so is
// the history.
//
// The ledger is owned by the simulator loop and is not safe for
// concurrent use.
type Ledger struct {
	acct    Account
	prices  *market.PriceBook
	open    []*Position
	history []*Position
}

// NewLedger restores a ledger from a snapshot. Open positions are
// never part of a snapshot, so a restored ledger always starts with
// none.
func NewLedger(snap Snapshot, prices *market.PriceBook) *Ledger {
	return &Ledger{
		acct: Account{
			Balance:             snap.Balance,
			TotalDeposited:      snap.TotalDeposited,
			TotalRealizedProfit: snap.TotalRealizedProfit,
			TotalRealizedLoss:   snap.TotalRealizedLoss,
		},
		prices:  prices,
		history: append([]*Position(nil), snap.History...),
	}
}

func (l *Ledger) Account() Account { return l.acct }

// OpenPositions returns the open list, most recent first.
func (l *Ledger) OpenPositions() []*Position {
	return append([]*Position(nil), l.open...)
}

// History returns closed and liquidated positions, most recent first.
func (l *Ledger) History() []*Position {
	return append([]*Position(nil), l.history...)
}

// OpenPosition opens a leveraged position at the latest known price for
// the symbol, debiting the margin from the balance.
func (l *Ledger) OpenPosition(symbol string, dir Direction, margin, leverage float64) (*Position, error) {
	if margin <= 0 || leverage <= 0 {
		return nil, ErrInvalidAmount
	}
	if margin > l.acct.Balance {
		return nil, ErrInsufficientBalance
	}
	price, ok := l.prices.Get(symbol)
	if !ok || price <= 0 {
		return nil, ErrNoPrice
	}

	l.acct.Balance -= margin

	p := newPosition(symbol, dir, price, margin, leverage, time.Now().UTC())
	l.open = append([]*Position{p}, l.open...)
	return p, nil
}

// ClosePosition closes the open position at index at its current
// price, crediting margin plus pnl back to the balance. The pnl may be
// negative but can never force the balance negative: the loss on an
// open position is capped at the margin by the liquidation rule.
func (l *Ledger) ClosePosition(index int) (*Position, error) {
	if index < 0 || index >= len(l.open) {
		return nil, ErrIndexOutOfRange
	}

	p := l.open[index]
	l.open = append(l.open[:index], l.open[index+1:]...)

	l.acct.Balance += p.Margin + p.PnL

	now := time.Now().UTC()
	price := p.CurrentPrice
	p.Status = StatusClosed
	p.ClosePrice = &price
	p.ClosedAt = &now

	if p.PnL >= 0 {
		l.acct.TotalRealizedProfit += p.PnL
	} else {
		l.acct.TotalRealizedLoss += -p.PnL
	}

	l.pushHistory(p)
	return p, nil
}

// Deposit credits the balance and the deposit total.
func (l *Ledger) Deposit(amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	l.acct.Balance += amount
	l.acct.TotalDeposited += amount
	return nil
}

// ApplyPrice revalues every open position on the symbol and
// force-closes those whose loss has consumed the full margin. A
// liquidated position settles at the liquidation price fixed at open,
// for exactly the margin, even when the tick overshoots the threshold.
// The margin is not returned to the balance. Returns the liquidated
// positions.
func (l *Ledger) ApplyPrice(symbol string, price float64, now time.Time) []*Position {
	var liquidated []*Position

	kept := l.open[:0]
	for _, p := range l.open {
		if p.Symbol != symbol {
			kept = append(kept, p)
			continue
		}

		p.mark(price)
		if !p.breached() {
			kept = append(kept, p)
			continue
		}

		lp := p.LiquidationPrice
		closedAt := now
		p.Status = StatusLiquidated
		p.CurrentPrice = lp
		p.ClosePrice = &lp
		p.ClosedAt = &closedAt
		p.PnL = -p.Margin
		p.PnLPercent = -100

		l.acct.TotalRealizedLoss += p.Margin
		l.pushHistory(p)
		liquidated = append(liquidated, p)
	}
	l.open = kept

	return liquidated
}

func (l *Ledger) pushHistory(p *Position) {
	l.history = append([]*Position{p}, l.history...)
	if len(l.history) > maxHistory {
		l.history = l.history[:maxHistory]
	}
}

// Snapshot exports the durable state. Open positions are deliberately
// left out: a reload always starts with zero open positions.
func (l *Ledger) Snapshot(watchlist []string) Snapshot {
	return Snapshot{
		Balance:             l.acct.Balance,
		Watchlist:           append([]string(nil), watchlist...),
		History:             append([]*Position(nil), l.history...),
		TotalDeposited:      l.acct.TotalDeposited,
		TotalRealizedProfit: l.acct.TotalRealizedProfit,
		TotalRealizedLoss:   l.acct.TotalRealizedLoss,
	}
}
