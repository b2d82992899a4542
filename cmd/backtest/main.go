package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/alphalab-research/alphalab/config"
	"github.com/alphalab-research/alphalab/internal/backtest"
	"github.com/alphalab-research/alphalab/internal/features"
	"github.com/alphalab-research/alphalab/internal/report"
	sig "github.com/alphalab-research/alphalab/internal/signal"
	"github.com/alphalab-research/alphalab/internal/store"
	"github.com/alphalab-research/alphalab/internal/universe"
	"github.com/alphalab-research/alphalab/models"
)

func main() {
	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	runFlag := flag.String("run", "", "path to a research run artifact (picks its universe and top signals)")
	signalFlag := flag.String("signal", "", "backtest this signal column instead of the ranked ones")
	topFlag := flag.Int("top", 3, "number of ranked signals to replay when -run is given")
	universeFlag := flag.String("universe", "", "universe file (overrides UNIVERSE_FILE)")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (overrides the universe)")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *universeFlag != "" {
		cfg.UniverseFile = *universeFlag
	}

	// 2. Configure logging
	setupLogging(cfg.LogLevel)
	log.Info().Msg("Starting backtest")

	// 3. Decide what to replay
	runID := ""
	symbols := []string{}
	signals := []string{}

	if *runFlag != "" {
		rep, err := loadReport(*runFlag)
		if err != nil {
			log.Fatal().Err(err).Str("path", *runFlag).Msg("Failed to load run artifact")
		}
		runID = rep.RunID
		symbols = rep.Symbols
		cfg.Interval = rep.Interval
		cfg.ForwardHorizon = rep.Horizon
		signals = rankedSignals(rep, *topFlag)
		log.Info().Str("run_id", runID).Int("symbols", len(symbols)).Msg("Replaying research run")
	} else {
		symbols = resolveSymbols(cfg.UniverseFile, *symbolsFlag)
	}
	if *signalFlag != "" {
		signals = []string{*signalFlag}
	}
	if len(signals) == 0 {
		signals = []string{sig.ColumnName}
	}
	if len(symbols) == 0 {
		log.Fatal().Msg("No symbols to backtest")
	}

	// 4. Rebuild scored frames from the bar store
	barStore, err := store.NewCSVStore(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to open bar store")
	}
	frames := buildFrames(barStore, symbols, cfg)
	if len(frames) == 0 {
		log.Fatal().Msg("No usable series found, run fetch first")
	}

	// 5. Run the engine per signal and persist results
	params := backtest.Params{
		Horizon:        cfg.ForwardHorizon,
		Quantiles:      cfg.Quantiles,
		CostBps:        cfg.CostBps,
		InitialCapital: cfg.InitialCapital,
		Interval:       cfg.Interval,
		MinBreadth:     cfg.MinBreadth,
	}

	failed := 0
	for _, name := range signals {
		params.Signal = name
		results, err := runEngine(frames, params)
		if err != nil {
			log.Error().Err(err).Str("signal", name).Msg("Backtest failed")
			failed++
			continue
		}
		results.RunID = runID

		fmt.Println(report.FormatBacktest(results))
		persist(ctx, cfg, results)
	}
	if failed == len(signals) {
		os.Exit(1)
	}
}

// runEngine picks the engine by breadth: one frame replays as a single
// series, several as a cross-sectional quantile portfolio.
func runEngine(frames []backtest.SymbolFrame, params backtest.Params) (*models.BacktestResults, error) {
	if len(frames) == 1 {
		return backtest.RunSeries(frames[0].Frame, params)
	}
	return backtest.RunPanel(frames, params)
}

// loadReport reads a persisted research run artifact.
func loadReport(path string) (*models.SignalReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rep models.SignalReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("failed to parse run artifact: %w", err)
	}
	return &rep, nil
}

// rankedSignals returns up to n non-skipped signal names, best first.
func rankedSignals(rep *models.SignalReport, n int) []string {
	var names []string
	for _, s := range rep.Signals {
		if s.Skipped != "" {
			continue
		}
		names = append(names, s.Name)
		if len(names) == n {
			break
		}
	}
	return names
}

// resolveSymbols picks the explicit -symbols list when given, otherwise
// loads the universe file.
func resolveSymbols(universeFile, symbolsFlag string) []string {
	if symbolsFlag != "" {
		var symbols []string
		for _, s := range strings.Split(symbolsFlag, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				symbols = append(symbols, s)
			}
		}
		return symbols
	}

	u, err := universe.Load(universeFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", universeFile).Msg("Failed to load universe")
	}
	return u.Symbols
}

// buildFrames reads each symbol's series and rebuilds its scored frame.
func buildFrames(barStore *store.CSVStore, symbols []string, cfg *models.Config) []backtest.SymbolFrame {
	opts := features.DefaultOptions()
	opts.Horizon = cfg.ForwardHorizon

	frames := make([]backtest.SymbolFrame, 0, len(symbols))
	for _, symbol := range symbols {
		series, err := barStore.ReadSeries(symbol)
		if err != nil || series == nil || len(series.Bars) == 0 {
			log.Warn().Str("symbol", symbol).Msg("Skipping symbol, no usable bars")
			continue
		}
		frame, err := features.Build(*series, opts)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Skipping symbol, feature build failed")
			continue
		}
		if err := sig.Attach(frame, opts); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Skipping symbol, scoring failed")
			continue
		}
		frames = append(frames, backtest.SymbolFrame{Symbol: symbol, Frame: frame})
	}
	return frames
}

// persist writes the results artifact and saves to Postgres when configured.
func persist(ctx context.Context, cfg *models.Config, results *models.BacktestResults) {
	path, err := report.WriteBacktestArtifact(cfg.RunsDir, results)
	if err != nil {
		log.Error().Err(err).Msg("Failed to write backtest artifact")
	} else {
		log.Info().Str("path", path).Msg("Backtest artifact written")
	}

	if cfg.DatabaseURL == "" || results.RunID == "" {
		return
	}
	db, err := store.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to database")
		return
	}
	defer db.Close()
	if err := db.SaveBacktest(ctx, results.RunID, results); err != nil {
		log.Error().Err(err).Msg("Failed to save backtest to database")
		return
	}
	log.Info().Str("run_id", results.RunID).Str("signal", results.Signal).Msg("Backtest saved to database")
}

// setupSignalHandling configures signal handling for graceful shutdown
func setupSignalHandling(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutdown signal received, exiting...")
		cancel()
	}()
}

// setupLogging configures the logger
func setupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}
