package sim

// PriceBuffer coalesces feed ticks between flush cycles. Recording
// overwrites any prior buffered value for the symbol, so only the most
// recent price per symbol survives a flush window. This is the sole
// rate-limiting mechanism between the feed and the rest of the system.
//
// The buffer is owned by the simulator loop and is not safe for
// concurrent use.
type PriceBuffer struct {
	pending map[string]float64
}

func NewPriceBuffer() *PriceBuffer {
	return &PriceBuffer{pending: make(map[string]float64)}
}

func (b *PriceBuffer) Record(symbol string, price float64) {
	b.pending[symbol] = price
}

// Flush returns the buffered prices and clears the buffer. A nil map
// means no ticks arrived since the previous flush; callers treat that
// as nothing to do, not as unchanged prices.
func (b *PriceBuffer) Flush() map[string]float64 {
	if len(b.pending) == 0 {
		return nil
	}
	out := b.pending
	b.pending = make(map[string]float64)
	return out
}

func (b *PriceBuffer) Len() int { return len(b.pending) }
