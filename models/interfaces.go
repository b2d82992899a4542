package models

import (
	"context"
	"time"
)

// BarSource fetches historical bars for one Polygon ticker.
type BarSource interface {
	Aggregates(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error)
}

// BarStore reads and writes per-symbol bar series.
type BarStore interface {
	WriteSeries(series *Series) error
	AppendBars(symbol string, bars []Bar) error
	ReadSeries(symbol string) (*Series, error)
	ListSymbols() ([]string, error)
}

// RunStore persists and serves research runs.
type RunStore interface {
	SaveReport(ctx context.Context, report *SignalReport) error
	SaveBacktest(ctx context.Context, runID string, results *BacktestResults) error
	ListRuns(ctx context.Context) ([]RunSummary, error)
	GetReport(ctx context.Context, runID string) (*SignalReport, error)
	GetBacktests(ctx context.Context, runID string) ([]BacktestResults, error)
}

// Notifier delivers run-completion messages.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
