package sim

import (
	"fmt"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"papersim/store"
)

// DefaultBalance is the starting balance for a fresh session.
const DefaultBalance = 1000

// DefaultWatchlist is the symbol set tracked when no saved state
// exists.
var DefaultWatchlist = []string{
	"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT", "BNBUSDT", "DOGEUSDT",
}

// Snapshot is the JSON shape written to the durable slot.
type Snapshot struct {
	Balance             float64     `json:"balance"`
	Watchlist           []string    `json:"watchlist"`
	History             []*Position `json:"history"`
	TotalDeposited      float64     `json:"total_deposited"`
	TotalRealizedProfit float64     `json:"total_realized_profit"`
	TotalRealizedLoss   float64     `json:"total_realized_loss"`
}

func DefaultSnapshot() Snapshot {
	return Snapshot{
		Balance:   DefaultBalance,
		Watchlist: append([]string(nil), DefaultWatchlist...),
	}
}

// LoadSnapshot reads the slot and applies whatever was stored over the
// base snapshot. Absent state, a missing field or a corrupt payload
// falls back to the base; storage errors are logged and swallowed, per
// the degraded-mode policy.
func LoadSnapshot(slot store.Slot, base Snapshot, log *zap.Logger) Snapshot {
	if log == nil {
		log = zap.NewNop()
	}

	data, ok, err := slot.Load()
	if err != nil {
		log.Warn("load state failed, using defaults", zap.Error(err))
		return base
	}
	if !ok {
		return base
	}

	// Pointer fields distinguish "absent" from legitimate zero values.
	var stored struct {
		Balance             *float64    `json:"balance"`
		Watchlist           []string    `json:"watchlist"`
		History             []*Position `json:"history"`
		TotalDeposited      float64     `json:"total_deposited"`
		TotalRealizedProfit float64     `json:"total_realized_profit"`
		TotalRealizedLoss   float64     `json:"total_realized_loss"`
	}
	if err := json.Unmarshal(data, &stored); err != nil {
		log.Warn("decode state failed, using defaults", zap.Error(err))
		return base
	}

	snap := base
	if stored.Balance != nil {
		snap.Balance = *stored.Balance
	}
	if len(stored.Watchlist) > 0 {
		snap.Watchlist = stored.Watchlist
	}
	snap.History = stored.History
	if len(snap.History) > maxHistory {
		snap.History = snap.History[:maxHistory]
	}
	snap.TotalDeposited = stored.TotalDeposited
	snap.TotalRealizedProfit = stored.TotalRealizedProfit
	snap.TotalRealizedLoss = stored.TotalRealizedLoss
	return snap
}

// SaveSnapshot overwrites the slot with the snapshot, capping the
// history to its most recent entries.
func SaveSnapshot(slot store.Slot, snap Snapshot) error {
	if len(snap.History) > maxHistory {
		snap.History = snap.History[:maxHistory]
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := slot.Save(data); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
