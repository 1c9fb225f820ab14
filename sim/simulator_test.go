package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papersim/market"
	"papersim/store"
)

type fakeFeed struct {
	mu     sync.Mutex
	ticks  chan market.Tick
	subs   [][]string
	closed bool
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{ticks: make(chan market.Tick, 64)}
}

func (f *fakeFeed) Subscribe(symbols []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, append([]string(nil), symbols...))
}

func (f *fakeFeed) Ticks() <-chan market.Tick { return f.ticks }

func (f *fakeFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeFeed) lastSub() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		return nil
	}
	return f.subs[len(f.subs)-1]
}

func (f *fakeFeed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeFeed) push(symbol string, price float64) {
	f.ticks <- market.Tick{Symbol: symbol, Price: price, Time: time.Now()}
}

type fakeSource struct {
	candles []market.Candle
	err     error
}

func (f *fakeSource) Klines(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	return f.candles, f.err
}

func startSimulator(t *testing.T, source CandleSource, slot store.Slot) (*Simulator, *fakeFeed) {
	t.Helper()

	fd := newFakeFeed()
	s := New(Config{
		Symbol:        "BTCUSDT",
		Timeframe:     "1m",
		FlushInterval: 10 * time.Millisecond,
		Watchlist:     []string{"BTCUSDT", "ETHUSDT"},
	}, fd, source, slot, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("simulator did not stop")
		}
	})
	return s, fd
}

func waitForPrice(t *testing.T, s *Simulator, symbol string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok, err := s.Price(symbol)
		return err == nil && ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSimulatorOpenAndLiquidate(t *testing.T) {
	t.Parallel()

	slot := store.NewMemory()
	s, fd := startSimulator(t, nil, slot)

	fd.push("BTCUSDT", 100)
	waitForPrice(t, s, "BTCUSDT")

	_, err := s.OpenPosition("BTCUSDT", Long, 10, 10) // liq at 90
	require.NoError(t, err)

	acct, err := s.Account()
	require.NoError(t, err)
	assert.Equal(t, 990.0, acct.Balance)

	fd.push("BTCUSDT", 89.5)

	require.Eventually(t, func() bool {
		open, err := s.OpenPositions()
		return err == nil && len(open) == 0
	}, 2*time.Second, 5*time.Millisecond)

	history, err := s.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, StatusLiquidated, history[0].Status)
	require.NotNil(t, history[0].ClosePrice)
	assert.Equal(t, 90.0, *history[0].ClosePrice)

	acct, err = s.Account()
	require.NoError(t, err)
	assert.Equal(t, 990.0, acct.Balance) // margin forfeited

	// the liquidation was persisted
	snap := LoadSnapshot(slot, DefaultSnapshot(), nil)
	require.Len(t, snap.History, 1)
	assert.Equal(t, StatusLiquidated, snap.History[0].Status)
}

func TestSimulatorDepositPersists(t *testing.T) {
	t.Parallel()

	slot := store.NewMemory()
	s, _ := startSimulator(t, nil, slot)

	require.NoError(t, s.Deposit(500))
	assert.ErrorIs(t, s.Deposit(-1), ErrInvalidAmount)

	snap := LoadSnapshot(slot, DefaultSnapshot(), nil)
	assert.Equal(t, 1500.0, snap.Balance)
	assert.Equal(t, 500.0, snap.TotalDeposited)
}

func TestSimulatorSeedsSeries(t *testing.T) {
	t.Parallel()

	seed := []market.Candle{
		{Time: 1_700_000_040, Open: 1, High: 2, Low: 0.5, Close: 1.5},
		{Time: 1_700_000_100, Open: 1.5, High: 3, Low: 1, Close: 2},
	}
	s, _ := startSimulator(t, &fakeSource{candles: seed}, store.NewMemory())

	require.Eventually(t, func() bool {
		candles, err := s.Candles()
		return err == nil && len(candles) == len(seed)
	}, 2*time.Second, 5*time.Millisecond)

	candles, err := s.Candles()
	require.NoError(t, err)
	assert.Equal(t, seed, candles)
}

func TestSimulatorSubscriptionCoversWatchlistAndActiveSymbol(t *testing.T) {
	t.Parallel()

	s, fd := startSimulator(t, nil, store.NewMemory())

	require.Eventually(t, func() bool {
		return len(fd.lastSub()) > 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, fd.lastSub())

	// active symbol outside the watchlist joins the union
	require.NoError(t, s.SetSymbol("SOLUSDT"))
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, fd.lastSub())

	require.NoError(t, s.Watch("XRPUSDT"))
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "XRPUSDT", "SOLUSDT"}, fd.lastSub())

	require.NoError(t, s.Unwatch("ETHUSDT"))
	assert.Equal(t, []string{"BTCUSDT", "XRPUSDT", "SOLUSDT"}, fd.lastSub())

	list, err := s.Watchlist()
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "XRPUSDT"}, list)
}

func TestSimulatorCloseShutsDownFeed(t *testing.T) {
	t.Parallel()

	fd := newFakeFeed()
	s := New(Config{FlushInterval: 10 * time.Millisecond}, fd, nil, store.NewMemory(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("simulator did not stop")
	}
	assert.True(t, fd.isClosed())

	// actions after shutdown fail fast
	_, err := s.Account()
	assert.ErrorIs(t, err, ErrStopped)
}
