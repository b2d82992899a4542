package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/alphalab-research/alphalab/config"
	"github.com/alphalab-research/alphalab/internal/api/polygon"
	"github.com/alphalab-research/alphalab/internal/download"
	"github.com/alphalab-research/alphalab/internal/store"
	"github.com/alphalab-research/alphalab/internal/universe"
)

func main() {
	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	universeFlag := flag.String("universe", "", "universe file (overrides UNIVERSE_FILE)")
	fromFlag := flag.String("from", "", "start date YYYY-MM-DD (overrides FETCH_FROM)")
	toFlag := flag.String("to", "", "end date YYYY-MM-DD (overrides FETCH_TO)")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *universeFlag != "" {
		cfg.UniverseFile = *universeFlag
	}
	if *fromFlag != "" {
		cfg.FetchFrom = *fromFlag
	}
	if *toFlag != "" {
		cfg.FetchTo = *toFlag
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.PolygonAPIKey == "" {
		log.Fatal().Msg("POLYGON_API_KEY is required for fetching")
	}

	// 2. Configure logging
	setupLogging(cfg.LogLevel)
	log.Info().Msg("Starting historical fetch")

	// 3. Load the universe
	u, err := universe.Load(cfg.UniverseFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.UniverseFile).Msg("Failed to load universe")
	}

	// 4. Setup API client, store, and progress tracking
	client := polygon.NewClient(polygon.ClientOptions{
		APIKey:          cfg.PolygonAPIKey,
		Adjusted:        cfg.FetchAdjusted,
		RequestTimeout:  cfg.RequestTimeout,
		RequestsPerSec:  cfg.RequestsPerSec,
		MaxRetryElapsed: cfg.MaxRetryElapsed,
	})

	barStore, err := store.NewCSVStore(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to open bar store")
	}

	progress, err := download.LoadProgress(filepath.Join(cfg.DataDir, "progress.json"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load progress file")
	}

	// 5. Run the download
	from, _ := time.Parse("2006-01-02", cfg.FetchFrom)
	to, _ := time.Parse("2006-01-02", cfg.FetchTo)

	dl := download.New(client, barStore, progress, cfg.FetchWorkers)
	snap, err := dl.Run(ctx, u, from, to)
	if err != nil {
		log.Error().Err(err).Msg("Download interrupted")
	}

	// 6. Print final stats
	printStats(u.Name, snap)
	if snap.Failed > 0 {
		os.Exit(1)
	}
}

// setupSignalHandling configures signal handling for graceful shutdown
func setupSignalHandling(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutdown signal received, finishing in-flight symbols...")
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

// printStats outputs the final download summary
func printStats(universeName string, snap download.StatsSnapshot) {
	fmt.Println("\n===== FETCH SUMMARY =====")
	fmt.Printf("Universe:   %s (%d symbols)\n", universeName, snap.TotalSymbols)
	fmt.Printf("Completed:  %d\n", snap.Completed)
	fmt.Printf("Skipped:    %d (already on disk)\n", snap.Skipped)
	fmt.Printf("Failed:     %d\n", snap.Failed)
	fmt.Printf("API calls:  %d\n", snap.APICalls)
	fmt.Printf("Rows:       %d\n", snap.Rows)
	fmt.Printf("Elapsed:    %.1fs\n", snap.ElapsedSeconds)
}
