package market

import "strconv"

// Candle represents OHLC (Open, High, Low, Close) candlestick data for
// one chart interval. Time is the interval-aligned open time in unix
// seconds.
type Candle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// IntervalSeconds converts a timeframe token such as "1m", "4h" or "1d"
// into its interval length in seconds. Tokens that cannot be parsed
// fall back to one minute.
func IntervalSeconds(token string) int64 {
	if len(token) < 2 {
		return 60
	}

	n, err := strconv.ParseInt(token[:len(token)-1], 10, 64)
	if err != nil || n <= 0 {
		return 60
	}

	switch token[len(token)-1] {
	case 'm':
		return n * 60
	case 'h':
		return n * 3600
	case 'd':
		return n * 86400
	}
	return 60
}
