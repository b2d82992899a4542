package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/alphalab-research/alphalab/models"
)

const (
	csvHeader = "timestamp,open,high,low,close,volume,vwap,trades"
	csvSuffix = "_1min.csv"
)

// CSVStore persists one CSV file per symbol under a single directory.
type CSVStore struct {
	dir    string
	logger zerolog.Logger
}

// NewCSVStore creates the data directory if needed and returns the store.
func NewCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}
	return &CSVStore{
		dir:    dir,
		logger: log.With().Str("component", "csv_store").Logger(),
	}, nil
}

func (s *CSVStore) path(symbol string) string {
	return filepath.Join(s.dir, symbol+csvSuffix)
}

// WriteSeries writes a full series, replacing any existing file. Bars are
// sorted and deduplicated before writing.
func (s *CSVStore) WriteSeries(series *models.Series) error {
	bars := make([]models.Bar, len(series.Bars))
	copy(bars, series.Bars)
	// Stable keeps the first occurrence of a duplicated timestamp.
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})
	bars = dedupe(bars)

	f, err := os.Create(s.path(series.Symbol))
	if err != nil {
		return fmt.Errorf("creating %s: %w", s.path(series.Symbol), err)
	}

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, csvHeader)
	for _, b := range bars {
		writeRow(w, b)
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", series.Symbol, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", series.Symbol, err)
	}

	s.logger.Debug().Str("symbol", series.Symbol).Int("rows", len(bars)).Msg("Wrote series")
	return nil
}

// AppendBars appends bars to a symbol's file, creating it with a header when
// absent. Used by the live ingester; rows are written in the order given.
func (s *CSVStore) AppendBars(symbol string, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	f, err := os.OpenFile(s.path(symbol), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s for append: %w", symbol, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat %s: %w", symbol, err)
	}

	w := bufio.NewWriter(f)
	if info.Size() == 0 {
		fmt.Fprintln(w, csvHeader)
	}
	for _, b := range bars {
		writeRow(w, b)
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("appending to %s: %w", symbol, err)
	}
	return f.Close()
}

// ReadSeries loads, sorts and deduplicates a symbol's bars.
func (s *CSVStore) ReadSeries(symbol string) (*models.Series, error) {
	f, err := os.Open(s.path(symbol))
	if err != nil {
		return nil, fmt.Errorf("opening series for %s: %w", symbol, err)
	}
	defer f.Close()

	var bars []models.Bar
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if line == 1 || text == "" {
			continue // header
		}

		bar, err := parseRow(text)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.path(symbol), line, err)
		}
		bars = append(bars, bar)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", symbol, err)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})
	bars = dedupe(bars)

	return &models.Series{Symbol: symbol, Bars: bars}, nil
}

// ListSymbols returns every symbol with a series file, sorted.
func (s *CSVStore) ListSymbols() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing data dir: %w", err)
	}

	var symbols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, csvSuffix) {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(name, csvSuffix))
	}
	sort.Strings(symbols)
	return symbols, nil
}

func writeRow(w *bufio.Writer, b models.Bar) {
	w.WriteString(b.Time.UTC().Format(time.RFC3339))
	w.WriteByte(',')
	w.WriteString(strconv.FormatFloat(b.Open, 'g', -1, 64))
	w.WriteByte(',')
	w.WriteString(strconv.FormatFloat(b.High, 'g', -1, 64))
	w.WriteByte(',')
	w.WriteString(strconv.FormatFloat(b.Low, 'g', -1, 64))
	w.WriteByte(',')
	w.WriteString(strconv.FormatFloat(b.Close, 'g', -1, 64))
	w.WriteByte(',')
	w.WriteString(strconv.FormatFloat(b.Volume, 'g', -1, 64))
	w.WriteByte(',')
	w.WriteString(strconv.FormatFloat(b.VWAP, 'g', -1, 64))
	w.WriteByte(',')
	w.WriteString(strconv.FormatInt(b.Trades, 10))
	w.WriteByte('\n')
}

func parseRow(text string) (models.Bar, error) {
	fields := strings.Split(text, ",")
	if len(fields) != 8 {
		return models.Bar{}, fmt.Errorf("want 8 fields, got %d", len(fields))
	}

	ts, err := time.Parse(time.RFC3339, fields[0])
	if err != nil {
		return models.Bar{}, fmt.Errorf("bad timestamp %q: %w", fields[0], err)
	}

	vals := make([]float64, 6)
	for i := 0; i < 6; i++ {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return models.Bar{}, fmt.Errorf("bad number %q: %w", fields[i+1], err)
		}
		vals[i] = v
	}

	trades, err := strconv.ParseInt(fields[7], 10, 64)
	if err != nil {
		return models.Bar{}, fmt.Errorf("bad trade count %q: %w", fields[7], err)
	}

	return models.Bar{
		Time:   ts.UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
		VWAP:   vals[5],
		Trades: trades,
	}, nil
}

func dedupe(bars []models.Bar) []models.Bar {
	if len(bars) < 2 {
		return bars
	}
	out := bars[:1]
	for _, b := range bars[1:] {
		if b.Time.Equal(out[len(out)-1].Time) {
			continue
		}
		out = append(out, b)
	}
	return out
}
