package market

// Series is the candle sequence for the chart's single active symbol.
// The last candle is mutated in place until its interval elapses, then
// a new one is appended. There is no reordering and empty intervals are
// never backfilled.
//
// A Series is owned by the simulator loop and is not safe for
// concurrent use.
type Series struct {
	interval int64
	candles  []Candle
}

func NewSeries(timeframe string) *Series {
	return &Series{interval: IntervalSeconds(timeframe)}
}

func (s *Series) Interval() int64 { return s.interval }

// Seed replaces the series wholesale with historical bars. Used when
// the symbol or timeframe changes.
func (s *Series) Seed(history []Candle) {
	s.candles = append(s.candles[:0:0], history...)
}

// Ingest applies one buffered price to the series. Within the current
// interval it updates close/high/low of the last bar; once the interval
// has elapsed it opens a new bar at the floor-aligned boundary.
//
// After a feed gap spanning several intervals only one bar is opened,
// at the current boundary. The skipped intervals stay missing.
func (s *Series) Ingest(price float64, now int64) {
	boundary := now / s.interval * s.interval

	if n := len(s.candles); n > 0 && now < s.candles[n-1].Time+s.interval {
		last := &s.candles[n-1]
		last.Close = price
		if price > last.High {
			last.High = price
		}
		if price < last.Low {
			last.Low = price
		}
		return
	}

	s.candles = append(s.candles, Candle{
		Time:  boundary,
		Open:  price,
		High:  price,
		Low:   price,
		Close: price,
	})
}

// Last returns the most recent bar, if any.
func (s *Series) Last() (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// Candles returns a copy of the series.
func (s *Series) Candles() []Candle {
	return append([]Candle(nil), s.candles...)
}

func (s *Series) Len() int { return len(s.candles) }
