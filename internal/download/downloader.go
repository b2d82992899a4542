package download

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/alphalab-research/alphalab/internal/universe"
	"github.com/alphalab-research/alphalab/models"
)

// progressLogInterval is how often a long run reports pace and ETA.
const progressLogInterval = 30 * time.Second

// Downloader pulls full bar histories for a universe with a bounded worker
// pool and resume support.
type Downloader struct {
	client    models.BarSource
	store     models.BarStore
	progress  *Progress
	stats     *Stats
	workers   int
	chunkDays int
	logger    zerolog.Logger
}

// New wires a downloader with the default stock chunk size.
func New(client models.BarSource, store models.BarStore, progress *Progress, workers int) *Downloader {
	if workers < 1 {
		workers = 1
	}
	return &Downloader{
		client:    client,
		store:     store,
		progress:  progress,
		stats:     NewStats(),
		workers:   workers,
		chunkDays: DefaultChunkDays,
		logger:    log.With().Str("component", "downloader").Logger(),
	}
}

// Run downloads every symbol in the universe that is not already complete.
// Per-symbol failures are logged and counted without aborting the run;
// cancellation stops scheduling and returns once in-flight symbols finish.
func (d *Downloader) Run(ctx context.Context, u *universe.Universe, from, to time.Time) (StatsSnapshot, error) {
	existing := make(map[string]bool)
	if symbols, err := d.store.ListSymbols(); err == nil {
		for _, s := range symbols {
			existing[s] = true
		}
	}

	d.logger.Info().
		Str("universe", u.Name).
		Str("asset_class", u.AssetClass).
		Int("symbols", len(u.Symbols)).
		Int("workers", d.workers).
		Time("from", from).
		Time("to", to).
		Msg("Starting download")

	stop := make(chan struct{})
	go d.reportLoop(len(u.Symbols), stop)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for _, symbol := range u.Symbols {
		if d.progress.Done(symbol) || existing[symbol] {
			d.stats.Skipped.Add(1)
			continue
		}

		symbol := symbol
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			if err := d.fetchSymbol(gctx, u, symbol, from, to); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				d.stats.Failed.Add(1)
				d.logger.Error().Err(err).Str("symbol", symbol).Msg("Symbol failed")
			}
			return nil
		})
	}

	err := g.Wait()
	close(stop)
	snap := d.stats.Snapshot(len(u.Symbols))

	d.logger.Info().
		Int64("completed", snap.Completed).
		Int64("skipped", snap.Skipped).
		Int64("failed", snap.Failed).
		Int64("api_calls", snap.APICalls).
		Int64("rows", snap.Rows).
		Float64("elapsed_sec", snap.ElapsedSeconds).
		Msg("Download finished")

	return snap, err
}

// reportLoop logs pace and ETA every progressLogInterval until stop closes.
func (d *Downloader) reportLoop(totalSymbols int, stop <-chan struct{}) {
	ticker := time.NewTicker(progressLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := d.stats.Snapshot(totalSymbols)
			rate := 0.0
			if snap.ElapsedSeconds > 0 {
				rate = float64(snap.Completed) / snap.ElapsedSeconds * 60
			}
			d.logger.Info().
				Int64("completed", snap.Completed).
				Int("total", snap.TotalSymbols).
				Int64("failed", snap.Failed).
				Int64("rows", snap.Rows).
				Float64("elapsed_sec", snap.ElapsedSeconds).
				Float64("symbols_per_min", rate).
				Float64("eta_sec", snap.ETASeconds).
				Msg("Download progress")
		}
	}
}

func (d *Downloader) fetchSymbol(ctx context.Context, u *universe.Universe, symbol string, from, to time.Time) error {
	ticker := u.PolygonTicker(symbol)

	var chunks []DateRange
	if u.AssetClass == universe.AssetClassFX {
		chunks = MonthChunks(from, to)
	} else {
		chunks = ChunkRange(from, to, d.chunkDays)
	}

	var bars []models.Bar
	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}

		got, err := d.client.Aggregates(ctx, ticker, ch.From, ch.To)
		if err != nil {
			return fmt.Errorf("chunk %s to %s: %w",
				ch.From.Format("2006-01-02"), ch.To.Format("2006-01-02"), err)
		}
		d.stats.APICalls.Add(1)
		bars = append(bars, got...)
	}

	// Zero bars over the whole range is normal for delisted tickers; the
	// symbol is still recorded complete so reruns skip it.
	if len(bars) == 0 {
		d.logger.Warn().Str("symbol", symbol).Msg("No data in range, possibly delisted")
	}

	if err := d.store.WriteSeries(&models.Series{Symbol: symbol, Bars: bars}); err != nil {
		return fmt.Errorf("writing series: %w", err)
	}

	d.stats.Rows.Add(int64(len(bars)))
	d.stats.Completed.Add(1)

	if err := d.progress.MarkDone(symbol, d.stats.Snapshot(len(u.Symbols))); err != nil {
		return fmt.Errorf("recording progress: %w", err)
	}

	d.logger.Info().
		Str("symbol", symbol).
		Int("bars", len(bars)).
		Int("chunks", len(chunks)).
		Msg("Symbol complete")
	return nil
}
