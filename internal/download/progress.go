package download

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Progress records which symbols have been fully downloaded so an
// interrupted run can resume without refetching.
type Progress struct {
	mu        sync.Mutex
	path      string
	completed map[string]bool
}

type progressFile struct {
	CompletedTickers []string       `json:"completed_tickers"`
	LastUpdated      time.Time      `json:"last_updated"`
	Stats            *StatsSnapshot `json:"stats,omitempty"`
}

// LoadProgress reads the progress file; a missing file is a fresh start.
func LoadProgress(path string) (*Progress, error) {
	p := &Progress{
		path:      path,
		completed: make(map[string]bool),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("reading progress file: %w", err)
	}

	var pf progressFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing progress file %s: %w", path, err)
	}

	for _, t := range pf.CompletedTickers {
		p.completed[t] = true
	}
	return p, nil
}

// Done reports whether a symbol has already been downloaded.
func (p *Progress) Done(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed[symbol]
}

// CompletedCount returns how many symbols are recorded complete.
func (p *Progress) CompletedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.completed)
}

// MarkDone records a symbol as complete and persists the file immediately,
// so a crash never re-downloads finished symbols.
func (p *Progress) MarkDone(symbol string, snap StatsSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed[symbol] = true
	return p.save(&snap)
}

func (p *Progress) save(snap *StatsSnapshot) error {
	tickers := make([]string, 0, len(p.completed))
	for t := range p.completed {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	pf := progressFile{
		CompletedTickers: tickers,
		LastUpdated:      time.Now().UTC(),
		Stats:            snap,
	}

	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling progress: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("writing progress file: %w", err)
	}
	return nil
}
