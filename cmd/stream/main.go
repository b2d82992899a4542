package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/alphalab-research/alphalab/config"
	"github.com/alphalab-research/alphalab/internal/store"
	"github.com/alphalab-research/alphalab/internal/stream"
	"github.com/alphalab-research/alphalab/internal/universe"
)

const flushEvery = 15 * time.Second

func main() {
	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	universeFlag := flag.String("universe", "", "universe file (overrides UNIVERSE_FILE)")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *universeFlag != "" {
		cfg.UniverseFile = *universeFlag
	}
	if cfg.PolygonAPIKey == "" {
		log.Fatal().Msg("POLYGON_API_KEY is required for streaming")
	}

	// 2. Configure logging
	setupLogging(cfg.LogLevel)
	log.Info().Msg("Starting live ingest")

	// 3. Load the universe and build topics
	u, err := universe.Load(cfg.UniverseFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.UniverseFile).Msg("Failed to load universe")
	}
	topics := make([]string, len(u.Symbols))
	for i, symbol := range u.Symbols {
		topics[i] = u.StreamTopic(symbol)
	}

	// 4. Setup the store and batcher
	barStore, err := store.NewCSVStore(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to open bar store")
	}
	batcher := stream.NewBatcher()

	// 5. Flush buffered bars on a ticker
	go flushLoop(ctx, batcher, barStore)

	// 6. Run the stream until cancelled
	manager := stream.NewManager(stream.Config{
		URL:    fmt.Sprintf("wss://socket.polygon.io/%s", u.StreamCluster()),
		APIKey: cfg.PolygonAPIKey,
		Topics: topics,
	}, log.Logger)

	if err := manager.Run(ctx, batcher.Add); err != nil {
		if errors.Is(err, stream.ErrAuthFailed) {
			log.Fatal().Err(err).Msg("Stream authentication failed")
		}
		log.Error().Err(err).Msg("Stream stopped")
	}

	// 7. Final flush so nothing buffered is lost on shutdown
	if n, err := batcher.Flush(barStore); err != nil {
		log.Error().Err(err).Msg("Final flush failed")
	} else if n > 0 {
		log.Info().Int("bars", n).Msg("Final flush done")
	}
	log.Info().Msg("Live ingest stopped")
}

// flushLoop periodically appends buffered bars to the store.
func flushLoop(ctx context.Context, batcher *stream.Batcher, barStore *store.CSVStore) {
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := batcher.Flush(barStore)
			if err != nil {
				log.Error().Err(err).Msg("Flush failed, bars requeued")
				continue
			}
			if n > 0 {
				log.Info().Int("bars", n).Msg("Flushed bars")
			}
		}
	}
}

// setupSignalHandling configures signal handling for graceful shutdown
func setupSignalHandling(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutdown signal received, flushing and exiting...")
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
