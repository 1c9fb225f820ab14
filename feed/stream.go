package feed

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"papersim/market"
)

// DefaultStreamURL is the Binance combined stream endpoint.
const DefaultStreamURL = "wss://stream.binance.com:9443/stream"

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Status reports the connection state of a Stream.
type Status int32

const (
	Disconnected Status = iota
	Connected
)

func (s Status) String() string {
	if s == Connected {
		return "CONNECTED"
	}
	return "DISCONNECTED"
}

// Stream subscribes to a multiplexed trade stream and delivers
// normalized ticks on a buffered channel. Malformed or non-trade
// frames are dropped. The stream never blocks its consumer; when the
// tick channel is full the frame is discarded.
type Stream struct {
	baseURL string
	log     *zap.Logger

	ticks  chan market.Tick
	status atomic.Int32

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
}

func NewStream(baseURL string, log *zap.Logger) *Stream {
	if baseURL == "" {
		baseURL = DefaultStreamURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Stream{
		baseURL: baseURL,
		log:     log,
		ticks:   make(chan market.Tick, 1024),
	}
}

// Ticks is the stream of normalized trades. The channel stays open for
// the life of the Stream across resubscriptions and reconnects.
func (s *Stream) Ticks() <-chan market.Tick { return s.ticks }

func (s *Stream) Status() Status { return Status(s.status.Load()) }

// Subscribe replaces any live subscription with a fresh connection
// covering exactly the given symbols. A changed watchlist or active
// symbol is a full resubscription, not an incremental join.
func (s *Stream) Subscribe(symbols []string) {
	s.mu.Lock()
	s.teardownLocked()
	if len(symbols) == 0 {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	url := s.streamURL(symbols)
	s.mu.Unlock()

	go s.run(ctx, url)
}

// Close tears down the connection and stops the read pump. The Stream
// may be resubscribed afterwards.
func (s *Stream) Close() {
	s.mu.Lock()
	s.teardownLocked()
	s.mu.Unlock()
}

func (s *Stream) teardownLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.status.Store(int32(Disconnected))
}

func (s *Stream) streamURL(symbols []string) string {
	parts := make([]string, len(symbols))
	for i, sym := range symbols {
		parts[i] = strings.ToLower(sym) + "@trade"
	}
	return s.baseURL + "?streams=" + strings.Join(parts, "/")
}

// run dials and reads until ctx is cancelled, reconnecting with
// exponential backoff plus jitter. The backoff resets after each
// successful dial.
func (s *Stream) run(ctx context.Context, url string) {
	backoff := initialBackoff

	for ctx.Err() == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("feed dial failed", zap.String("url", url), zap.Error(err))
			if !sleep(ctx, withJitter(backoff)) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		// teardown cancels under the same mutex; checking ctx here keeps
		// a cancelled run from resurrecting the connection state.
		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conn = conn
		s.status.Store(int32(Connected))
		s.mu.Unlock()
		s.log.Info("feed connected", zap.String("url", url))
		backoff = initialBackoff

		s.readLoop(ctx, conn)

		conn.Close()
		if ctx.Err() != nil {
			return
		}
		s.status.Store(int32(Disconnected))
		s.log.Warn("feed disconnected, reconnecting")
		if !sleep(ctx, withJitter(backoff)) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("feed read failed", zap.Error(err))
			}
			return
		}

		tick, ok := parseTrade(raw)
		if !ok {
			continue
		}

		select {
		case s.ticks <- tick:
		default:
			// consumer is behind; drop the tick
		}
	}
}

// tradeFrame is the combined-stream envelope. Only the symbol and
// price fields of the trade payload are consumed.
type tradeFrame struct {
	Data struct {
		Symbol string `json:"s"`
		Price  string `json:"p"`
	} `json:"data"`
}

func parseTrade(raw []byte) (market.Tick, bool) {
	var f tradeFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return market.Tick{}, false
	}
	if f.Data.Symbol == "" || f.Data.Price == "" {
		return market.Tick{}, false
	}
	price, err := strconv.ParseFloat(f.Data.Price, 64)
	if err != nil || price <= 0 {
		return market.Tick{}, false
	}
	return market.Tick{
		Symbol: f.Data.Symbol,
		Price:  price,
		Time:   time.Now().UTC(),
	}, true
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func withJitter(d time.Duration) time.Duration {
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
