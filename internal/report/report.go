// Package report renders research runs for humans and persists them as JSON
// artifacts on disk.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alphalab-research/alphalab/models"
)

// FormatSignalReport creates a human-readable summary of a validation run.
func FormatSignalReport(r *models.SignalReport) string {
	if r == nil {
		return "No validation results available"
	}

	var b strings.Builder
	b.WriteString("\n===== SIGNAL VALIDATION =====\n")
	b.WriteString(fmt.Sprintf("Run: %s\n", r.RunID))
	b.WriteString(fmt.Sprintf("Universe: %s (%d symbols, %s bars)\n", r.Universe, len(r.Symbols), r.Interval))
	b.WriteString(fmt.Sprintf("Range: %s to %s\n", r.From.Format("2006-01-02 15:04"), r.To.Format("2006-01-02 15:04")))
	mode := "per-symbol windows"
	if r.CrossSection {
		mode = "cross-sectional"
	}
	b.WriteString(fmt.Sprintf("Rows: %d, horizon: %d bars, IC mode: %s\n", r.Rows, r.Horizon, mode))

	if len(r.Quality) > 0 {
		b.WriteString("\nData quality:\n")
		for _, q := range r.Quality {
			b.WriteString(fmt.Sprintf("- %s: score %.1f (rows %d, gaps %d, dupes %d, spikes %d)\n",
				q.Symbol, q.Score, q.Rows, q.TimeGaps, q.DuplicateTimes, q.PriceSpikes+q.VolumeSpikes))
		}
	}

	b.WriteString("\nSignals ranked by |Spearman IC|:\n")
	rank := 0
	for _, s := range r.Signals {
		if s.Skipped != "" {
			continue
		}
		rank++
		b.WriteString(fmt.Sprintf("%2d. %-22s IC %+.4f (pearson %+.4f, kendall %+.4f, n=%d)\n",
			rank, s.Name, s.IC.Spearman, s.IC.Pearson, s.IC.Kendall, s.IC.Obs))
		b.WriteString(fmt.Sprintf("    rolling mean %+.4f, IR %+.2f, hit %.1f%% over %d periods\n",
			s.Rolling.Mean, s.Rolling.IR, s.Rolling.HitRate*100, s.Rolling.Periods))
		b.WriteString(fmt.Sprintf("    quantile spread %+.4f%%, monotonicity %.0f%%, turnover %.1f%%\n",
			s.Quantiles.Spread*100, s.Quantiles.Monotonicity*100, s.Turnover.Mean*100))
	}

	skipped := 0
	for _, s := range r.Signals {
		if s.Skipped != "" {
			skipped++
		}
	}
	if skipped > 0 {
		b.WriteString("\nSkipped:\n")
		for _, s := range r.Signals {
			if s.Skipped != "" {
				b.WriteString(fmt.Sprintf("- %s: %s\n", s.Name, s.Skipped))
			}
		}
	}

	return b.String()
}

// FormatBacktest creates a human-readable summary of backtest results.
func FormatBacktest(r *models.BacktestResults) string {
	if r == nil {
		return "No backtest results available"
	}

	var b strings.Builder
	b.WriteString("\n===== BACKTEST RESULTS =====\n")
	b.WriteString(fmt.Sprintf("Signal: %s (%s)\n", r.Signal, r.Mode))
	b.WriteString(fmt.Sprintf("Periods: %d, trades: %d\n", r.Periods, r.Trades))
	b.WriteString(fmt.Sprintf("Winning periods: %d (%.2f%%)\n", r.WinningPeriods, r.WinRate*100))
	b.WriteString(fmt.Sprintf("Total return: %+.2f%%\n", r.TotalReturn*100))
	b.WriteString(fmt.Sprintf("Annualized return: %+.2f%%\n", r.AnnualizedReturn*100))
	b.WriteString(fmt.Sprintf("Sharpe ratio: %.2f\n", r.SharpeRatio))
	b.WriteString(fmt.Sprintf("Profit factor: %.2f\n", r.ProfitFactor))
	b.WriteString(fmt.Sprintf("Maximum drawdown: %.2f%%\n", r.MaxDrawdown*100))
	b.WriteString(fmt.Sprintf("Mean turnover: %.2f%%\n", r.MeanTurnover*100))
	b.WriteString(fmt.Sprintf("Max consecutive wins: %d\n", r.MaxConsecutive.Wins))
	b.WriteString(fmt.Sprintf("Max consecutive losses: %d\n", r.MaxConsecutive.Losses))

	if len(r.MonthlyReturns) > 0 {
		b.WriteString("\nMonthly returns:\n")
		months := make([]string, 0, len(r.MonthlyReturns))
		for month := range r.MonthlyReturns {
			months = append(months, month)
		}
		sort.Strings(months)
		for _, month := range months {
			v := r.MonthlyReturns[month]
			sign := ""
			if v > 0 {
				sign = "+"
			}
			b.WriteString(fmt.Sprintf("- %s: %s%.2f%%\n", month, sign, v*100))
		}
	}

	b.WriteString(fmt.Sprintf("\nFinal equity: %.2f\n", r.FinalEquity))
	return b.String()
}

// WriteArtifact persists a validation report under dir as <run_id>.json and
// returns the written path.
func WriteArtifact(dir string, r *models.SignalReport) (string, error) {
	if r == nil || r.RunID == "" {
		return "", fmt.Errorf("report has no run ID")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	path := filepath.Join(dir, fileSafe(r.RunID)+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// WriteBacktestArtifact persists backtest results next to the run report.
func WriteBacktestArtifact(dir string, r *models.BacktestResults) (string, error) {
	if r == nil {
		return "", fmt.Errorf("no results to write")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}

	runID := r.RunID
	if runID == "" {
		runID = "adhoc"
	}
	name := fmt.Sprintf("%s_backtest_%s_%s.json", fileSafe(runID), fileSafe(r.Signal), strings.ToLower(r.Mode))

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write results: %w", err)
	}
	return path, nil
}

// fileSafe keeps artifact names portable.
func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
