package sim

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"

	"papersim/market"
	"papersim/store"
)

// ErrStopped is returned by simulator actions after Run has exited.
var ErrStopped = errors.New("simulator stopped")

const seedTimeout = 15 * time.Second

// Feed is the live tick source. A Subscribe call replaces any existing
// subscription wholesale.
type Feed interface {
	Subscribe(symbols []string)
	Ticks() <-chan market.Tick
	Close()
}

// CandleSource fetches historical bars for series seeding.
type CandleSource interface {
	Klines(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error)
}

// Config holds the simulator's runtime parameters. StartingBalance and
// Watchlist only apply when the slot holds no saved state.
type Config struct {
	Symbol          string
	Timeframe       string
	SeedBars        int
	FlushInterval   time.Duration
	StartingBalance float64
	Watchlist       []string
}

// Simulator ties the feed, price buffer, ledger, candle series and
// persistence together behind one event loop. The feed handler, the
// periodic flush and all actions execute as non-overlapping steps on
// that single loop goroutine, so the ledger and buffer need no locks.
type Simulator struct {
	cfg    Config
	feed   Feed
	source CandleSource
	slot   store.Slot
	log    *zap.Logger

	buffer    *PriceBuffer
	prices    *market.PriceBook
	ledger    *Ledger
	series    *market.Series
	watchlist []string
	symbol    string
	timeframe string

	commands chan func()
	seeded   chan seedResult
	done     chan struct{}
}

type seedResult struct {
	symbol    string
	timeframe string
	candles   []market.Candle
}

func New(cfg Config, fd Feed, source CandleSource, slot store.Slot, log *zap.Logger) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.SeedBars <= 0 {
		cfg.SeedBars = 200
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = "1m"
	}

	base := DefaultSnapshot()
	if cfg.StartingBalance > 0 {
		base.Balance = cfg.StartingBalance
	}
	if len(cfg.Watchlist) > 0 {
		base.Watchlist = append([]string(nil), cfg.Watchlist...)
	}
	snap := LoadSnapshot(slot, base, log)

	symbol := cfg.Symbol
	if symbol == "" && len(snap.Watchlist) > 0 {
		symbol = snap.Watchlist[0]
	}

	prices := market.NewPriceBook()
	return &Simulator{
		cfg:       cfg,
		feed:      fd,
		source:    source,
		slot:      slot,
		log:       log,
		buffer:    NewPriceBuffer(),
		prices:    prices,
		ledger:    NewLedger(snap, prices),
		series:    market.NewSeries(cfg.Timeframe),
		watchlist: snap.Watchlist,
		symbol:    symbol,
		timeframe: cfg.Timeframe,
		commands:  make(chan func()),
		seeded:    make(chan seedResult, 1),
		done:      make(chan struct{}),
	}
}

// Run drives the event loop until ctx is cancelled. Shutdown closes
// the feed subscription and stops the flush timer.
func (s *Simulator) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.feed.Close()

	s.resubscribe()
	s.requestSeed(s.symbol, s.timeframe)

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case tick := <-s.feed.Ticks():
			s.buffer.Record(tick.Symbol, tick.Price)

		case <-ticker.C:
			s.flush()

		case res := <-s.seeded:
			// Ignore seeds for a symbol or timeframe the user has
			// already switched away from.
			if res.symbol == s.symbol && res.timeframe == s.timeframe {
				s.series.Seed(res.candles)
			}

		case cmd := <-s.commands:
			cmd()
		}
	}
}

// do runs fn on the loop goroutine and waits for it to complete.
func (s *Simulator) do(fn func()) error {
	ran := make(chan struct{})
	select {
	case s.commands <- func() { fn(); close(ran) }:
	case <-s.done:
		return ErrStopped
	}
	select {
	case <-ran:
		return nil
	case <-s.done:
		return ErrStopped
	}
}

// flush drains the price buffer, revalues positions, advances the
// chart series for the active symbol and persists if durable state
// changed. An empty flush is a no-op.
func (s *Simulator) flush() {
	prices := s.buffer.Flush()
	if len(prices) == 0 {
		return
	}

	now := time.Now().UTC()
	mutated := false
	for symbol, price := range prices {
		s.prices.Set(symbol, price)
		for _, p := range s.ledger.ApplyPrice(symbol, price, now) {
			mutated = true
			s.log.Info("position liquidated",
				zap.String("id", p.ID),
				zap.String("symbol", p.Symbol),
				zap.Float64("price", p.LiquidationPrice),
				zap.Float64("margin", p.Margin))
		}
	}

	if price, ok := prices[s.symbol]; ok {
		s.series.Ingest(price, now.Unix())
	}

	if mutated {
		s.persist()
	}
}

func (s *Simulator) persist() {
	if err := SaveSnapshot(s.slot, s.ledger.Snapshot(s.watchlist)); err != nil {
		s.log.Warn("persist state failed", zap.Error(err))
	}
}

// resubscribe establishes one subscription covering the union of the
// watchlist and the chart's active symbol.
func (s *Simulator) resubscribe() {
	symbols := append([]string(nil), s.watchlist...)
	if s.symbol != "" && !slices.Contains(symbols, s.symbol) {
		symbols = append(symbols, s.symbol)
	}
	s.feed.Subscribe(symbols)
}

// requestSeed fetches historical bars off the loop so an in-flight
// fetch never stalls price flushing. The result is handed back to the
// loop via the seeded channel.
func (s *Simulator) requestSeed(symbol, timeframe string) {
	if s.source == nil || symbol == "" {
		return
	}
	limit := s.cfg.SeedBars

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
		defer cancel()

		candles, err := s.source.Klines(ctx, symbol, timeframe, limit)
		if err != nil {
			// Prior series stays intact; the chart degrades, the
			// simulator keeps running.
			s.log.Warn("seed candles failed",
				zap.String("symbol", symbol),
				zap.String("timeframe", timeframe),
				zap.Error(err))
			return
		}

		select {
		case s.seeded <- seedResult{symbol: symbol, timeframe: timeframe, candles: candles}:
		case <-s.done:
		}
	}()
}

// OpenPosition opens a leveraged position and persists on success.
func (s *Simulator) OpenPosition(symbol string, dir Direction, margin, leverage float64) (Position, error) {
	var pos Position
	var err error
	if derr := s.do(func() {
		var p *Position
		p, err = s.ledger.OpenPosition(symbol, dir, margin, leverage)
		if err != nil {
			return
		}
		pos = *p
		s.persist()
	}); derr != nil {
		return Position{}, derr
	}
	return pos, err
}

// ClosePosition closes the open position at index and persists.
func (s *Simulator) ClosePosition(index int) (Position, error) {
	var pos Position
	var err error
	if derr := s.do(func() {
		var p *Position
		p, err = s.ledger.ClosePosition(index)
		if err != nil {
			return
		}
		pos = *p
		s.persist()
	}); derr != nil {
		return Position{}, derr
	}
	return pos, err
}

// Deposit credits the account and persists.
func (s *Simulator) Deposit(amount float64) error {
	var err error
	if derr := s.do(func() {
		err = s.ledger.Deposit(amount)
		if err != nil {
			return
		}
		s.persist()
	}); derr != nil {
		return derr
	}
	return err
}

// Watch appends a symbol to the watchlist and resubscribes. Adding a
// symbol already present is a no-op.
func (s *Simulator) Watch(symbol string) error {
	return s.do(func() {
		if slices.Contains(s.watchlist, symbol) {
			return
		}
		s.watchlist = append(s.watchlist, symbol)
		s.resubscribe()
		s.persist()
	})
}

// Unwatch removes a symbol from the watchlist and resubscribes. Open
// positions on the symbol keep receiving updates while it remains the
// chart's active symbol.
func (s *Simulator) Unwatch(symbol string) error {
	return s.do(func() {
		i := slices.Index(s.watchlist, symbol)
		if i < 0 {
			return
		}
		s.watchlist = slices.Delete(s.watchlist, i, i+1)
		s.resubscribe()
		s.persist()
	})
}

// SetSymbol switches the chart's active symbol, reseeding the series
// and resubscribing.
func (s *Simulator) SetSymbol(symbol string) error {
	return s.do(func() {
		if symbol == "" || symbol == s.symbol {
			return
		}
		s.symbol = symbol
		s.series = market.NewSeries(s.timeframe)
		s.resubscribe()
		s.requestSeed(s.symbol, s.timeframe)
	})
}

// SetTimeframe switches the chart timeframe and reseeds the series.
func (s *Simulator) SetTimeframe(timeframe string) error {
	return s.do(func() {
		if timeframe == "" || timeframe == s.timeframe {
			return
		}
		s.timeframe = timeframe
		s.series = market.NewSeries(timeframe)
		s.requestSeed(s.symbol, s.timeframe)
	})
}

func (s *Simulator) Account() (Account, error) {
	var acct Account
	err := s.do(func() { acct = s.ledger.Account() })
	return acct, err
}

func (s *Simulator) OpenPositions() ([]Position, error) {
	var out []Position
	err := s.do(func() {
		for _, p := range s.ledger.OpenPositions() {
			out = append(out, *p)
		}
	})
	return out, err
}

func (s *Simulator) History() ([]Position, error) {
	var out []Position
	err := s.do(func() {
		for _, p := range s.ledger.History() {
			out = append(out, *p)
		}
	})
	return out, err
}

func (s *Simulator) Watchlist() ([]string, error) {
	var out []string
	err := s.do(func() { out = append([]string(nil), s.watchlist...) })
	return out, err
}

func (s *Simulator) Candles() ([]market.Candle, error) {
	var out []market.Candle
	err := s.do(func() { out = s.series.Candles() })
	return out, err
}

// Price returns the latest known price for a symbol.
func (s *Simulator) Price(symbol string) (float64, bool, error) {
	var price float64
	var ok bool
	err := s.do(func() { price, ok = s.prices.Get(symbol) })
	return price, ok, err
}
