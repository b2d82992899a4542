package stream

import (
	"sort"
	"sync"

	"github.com/alphalab-research/alphalab/models"
)

// Batcher buffers live bars per symbol so the store sees one append per
// symbol per flush instead of one write per bar.
type Batcher struct {
	mu      sync.Mutex
	pending map[string][]models.Bar
}

// NewBatcher returns an empty batcher.
func NewBatcher() *Batcher {
	return &Batcher{pending: make(map[string][]models.Bar)}
}

// Add buffers one bar. Safe for concurrent use with Flush.
func (b *Batcher) Add(sb models.SymbolBar) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[sb.Symbol] = append(b.pending[sb.Symbol], sb.Bar)
}

// Len reports the number of buffered bars across all symbols.
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, bars := range b.pending {
		n += len(bars)
	}
	return n
}

// Flush appends all buffered bars to the store in symbol order and
// empties the buffer. It returns the number of bars written; on error
// the unwritten symbols stay buffered for the next flush.
func (b *Batcher) Flush(store models.BarStore) (int, error) {
	b.mu.Lock()
	batch := b.pending
	b.pending = make(map[string][]models.Bar)
	b.mu.Unlock()

	symbols := make([]string, 0, len(batch))
	for symbol := range batch {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	written := 0
	for i, symbol := range symbols {
		if err := store.AppendBars(symbol, batch[symbol]); err != nil {
			b.requeue(batch, symbols[i:])
			return written, err
		}
		written += len(batch[symbol])
	}
	return written, nil
}

// requeue puts failed symbols back, ahead of anything added meanwhile.
func (b *Batcher) requeue(batch map[string][]models.Bar, symbols []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, symbol := range symbols {
		b.pending[symbol] = append(batch[symbol], b.pending[symbol]...)
	}
}
