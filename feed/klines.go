package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"papersim/market"
)

// DefaultAPIURL is the Binance spot REST endpoint.
const DefaultAPIURL = "https://api.binance.com"

// Client fetches historical candles used to seed the chart series.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(baseURL string, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		log:     log,
	}
}

// Klines returns up to limit bars for symbol at the given timeframe,
// oldest first. Each row arrives as [openTimeMs, "o", "h", "l", "c",
// ...]; only the first five fields are consumed. Rows that do not parse
// are skipped.
func (c *Client) Klines(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	u := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		c.baseURL, symbol, timeframe, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("klines http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var rows [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	candles := make([]market.Candle, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		candle, ok := parseKline(row)
		if !ok {
			skipped++
			continue
		}
		candles = append(candles, candle)
	}
	if skipped > 0 {
		c.log.Warn("skipped malformed kline rows",
			zap.String("symbol", symbol), zap.Int("skipped", skipped))
	}
	return candles, nil
}

func parseKline(row []interface{}) (market.Candle, bool) {
	if len(row) < 5 {
		return market.Candle{}, false
	}

	openMs, ok := row[0].(float64)
	if !ok {
		return market.Candle{}, false
	}

	var px [4]float64
	for i := 1; i < 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return market.Candle{}, false
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Candle{}, false
		}
		px[i-1] = v
	}

	return market.Candle{
		Time:  int64(openMs) / 1000,
		Open:  px[0],
		High:  px[1],
		Low:   px[2],
		Close: px[3],
	}, true
}
