package main

import (
	"context"
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
	"github.com/alphalab-research/alphalab/internal/features"
	"github.com/alphalab-research/alphalab/internal/notify"
	"github.com/alphalab-research/alphalab/internal/quality"
	"github.com/alphalab-research/alphalab/internal/report"
	sig "github.com/alphalab-research/alphalab/internal/signal"
	"github.com/alphalab-research/alphalab/internal/store"
	"github.com/alphalab-research/alphalab/internal/universe"
	"github.com/alphalab-research/alphalab/internal/validate"
	"github.com/alphalab-research/alphalab/models"
)

func main() {
	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	universeFlag := flag.String("universe", "", "universe file (overrides UNIVERSE_FILE)")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (overrides the universe)")
	horizonFlag := flag.Int("horizon", 0, "forward-return horizon in bars (overrides FORWARD_HORIZON)")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *universeFlag != "" {
		cfg.UniverseFile = *universeFlag
	}
	if *horizonFlag > 0 {
		cfg.ForwardHorizon = *horizonFlag
	}

	// 2. Configure logging
	setupLogging(cfg.LogLevel)
	log.Info().Msg("Starting research run")

	// 3. Resolve the symbol set
	universeName, symbols := resolveSymbols(cfg.UniverseFile, *symbolsFlag)
	if len(symbols) == 0 {
		log.Fatal().Msg("No symbols to research")
	}

	// 4. Build per-symbol feature frames
	barStore, err := store.NewCSVStore(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to open bar store")
	}
	inputs := buildInputs(barStore, symbols, cfg)
	if len(inputs) == 0 {
		log.Fatal().Msg("No usable series found, run fetch first")
	}

	// 5. Validate signals
	rep, err := validate.Run(validate.Params{
		Universe:        universeName,
		Interval:        cfg.Interval,
		Horizon:         cfg.ForwardHorizon,
		Quantiles:       cfg.Quantiles,
		ICWindow:        cfg.ICWindow,
		MinObservations: cfg.MinObservations,
		MinBreadth:      cfg.MinBreadth,
	}, inputs)
	if err != nil {
		log.Fatal().Err(err).Msg("Validation failed")
	}

	// 6. Render the report
	fmt.Println(report.FormatSignalReport(rep))

	// 7. Persist the artifact
	path, err := report.WriteArtifact(cfg.RunsDir, rep)
	if err != nil {
		log.Error().Err(err).Msg("Failed to write run artifact")
	} else {
		log.Info().Str("path", path).Msg("Run artifact written")
	}

	if cfg.DatabaseURL != "" {
		saveToDatabase(ctx, cfg.DatabaseURL, rep)
	}

	// 8. Notify
	notifier, err := notify.New(cfg.TelegramToken, cfg.TelegramChatID, log.Logger)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize notifier")
	} else if err := notifier.Notify(ctx, notifyText(rep)); err != nil {
		log.Error().Err(err).Msg("Failed to send notification")
	}
}

// resolveSymbols picks the explicit -symbols list when given, otherwise
// loads the universe file.
func resolveSymbols(universeFile, symbolsFlag string) (string, []string) {
	if symbolsFlag != "" {
		var symbols []string
		for _, s := range strings.Split(symbolsFlag, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				symbols = append(symbols, s)
			}
		}
		return "adhoc", symbols
	}

	u, err := universe.Load(universeFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", universeFile).Msg("Failed to load universe")
	}
	return u.Name, u.Symbols
}

// buildInputs reads each symbol's series and turns it into a scored
// feature frame plus a quality scan. Unusable symbols are skipped.
func buildInputs(barStore *store.CSVStore, symbols []string, cfg *models.Config) []validate.Input {
	opts := features.DefaultOptions()
	opts.Horizon = cfg.ForwardHorizon
	interval := models.IntervalDuration(cfg.Interval)

	inputs := make([]validate.Input, 0, len(symbols))
	for _, symbol := range symbols {
		series, err := barStore.ReadSeries(symbol)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Skipping symbol, series unreadable")
			continue
		}
		if series == nil || len(series.Bars) == 0 {
			log.Warn().Str("symbol", symbol).Msg("Skipping symbol, no bars on disk")
			continue
		}

		qualityReport := quality.Scan(*series, interval)
		log.Info().
			Str("symbol", symbol).
			Int("rows", qualityReport.Rows).
			Float64("score", qualityReport.Score).
			Msg("Quality scan done")

		frame, err := features.Build(*series, opts)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Skipping symbol, feature build failed")
			continue
		}
		if err := sig.Attach(frame, opts); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Skipping symbol, scoring failed")
			continue
		}

		inputs = append(inputs, validate.Input{
			Symbol:  symbol,
			Frame:   frame,
			Quality: qualityReport,
		})
	}
	return inputs
}

// saveToDatabase persists the report to Postgres.
func saveToDatabase(ctx context.Context, databaseURL string, rep *models.SignalReport) {
	db, err := store.NewPostgres(databaseURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to database")
		return
	}
	defer db.Close()

	if err := db.SaveReport(ctx, rep); err != nil {
		log.Error().Err(err).Msg("Failed to save report to database")
		return
	}
	log.Info().Str("run_id", rep.RunID).Msg("Report saved to database")
}

// notifyText builds the short run summary sent to Telegram.
func notifyText(rep *models.SignalReport) string {
	top := "no signal passed validation"
	for _, s := range rep.Signals {
		if s.Skipped == "" {
			top = fmt.Sprintf("top signal %s (IC %+.4f over %d obs)", s.Name, s.IC.Spearman, s.IC.Obs)
			break
		}
	}
	return fmt.Sprintf("Research run %s on %s: %d symbols, %d rows, %s",
		rep.RunID, rep.Universe, len(rep.Symbols), rep.Rows, top)
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
