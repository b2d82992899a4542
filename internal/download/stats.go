package download

import (
	"sync/atomic"
	"time"
)

// Stats holds counters shared by download workers.
type Stats struct {
	start time.Time

	Completed atomic.Int64
	Skipped   atomic.Int64
	Failed    atomic.Int64
	APICalls  atomic.Int64
	Rows      atomic.Int64
}

// NewStats starts the elapsed-time clock.
func NewStats() *Stats {
	return &Stats{start: time.Now()}
}

// StatsSnapshot is the serializable view of the counters.
type StatsSnapshot struct {
	TotalSymbols   int     `json:"total_symbols"`
	Completed      int64   `json:"completed"`
	Skipped        int64   `json:"skipped"`
	Failed         int64   `json:"failed"`
	APICalls       int64   `json:"total_api_calls"`
	Rows           int64   `json:"total_data_points"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	ETASeconds     float64 `json:"eta_seconds"`
}

// Snapshot freezes the counters and estimates time to completion from the
// average pace so far.
func (s *Stats) Snapshot(totalSymbols int) StatsSnapshot {
	elapsed := time.Since(s.start).Seconds()
	completed := s.Completed.Load()
	skipped := s.Skipped.Load()
	failed := s.Failed.Load()

	snap := StatsSnapshot{
		TotalSymbols:   totalSymbols,
		Completed:      completed,
		Skipped:        skipped,
		Failed:         failed,
		APICalls:       s.APICalls.Load(),
		Rows:           s.Rows.Load(),
		ElapsedSeconds: elapsed,
	}

	processed := completed + failed
	remaining := int64(totalSymbols) - processed - skipped
	if processed > 0 && remaining > 0 {
		snap.ETASeconds = elapsed / float64(processed) * float64(remaining)
	}

	return snap
}
