package validate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alphalab-research/alphalab/internal/features"
	"github.com/alphalab-research/alphalab/models"
)

func frameTimes(n int) []time.Time {
	base := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	times := make([]time.Time, n)
	for i := range times {
		times[i] = base.Add(time.Duration(i) * time.Minute)
	}
	return times
}

func mustAdd(t *testing.T, frame *features.Frame, name string, col []float64) {
	t.Helper()
	if err := frame.AddColumn(name, col); err != nil {
		t.Fatalf("AddColumn(%s) error = %v", name, err)
	}
}

// timeSeriesInputs builds two symbols where "alpha" equals the target,
// "anti" is its mirror and "flat" never moves.
func timeSeriesInputs(t *testing.T, rows int) []Input {
	t.Helper()
	var inputs []Input
	for s, symbol := range []string{"BBB", "AAA"} {
		target := make([]float64, rows)
		anti := make([]float64, rows)
		flat := make([]float64, rows)
		for i := range target {
			target[i] = float64(((i + s*3) * 7) % 13)
			anti[i] = -target[i]
			flat[i] = 5
		}

		frame := features.NewFrame(frameTimes(rows))
		mustAdd(t, frame, "alpha", append([]float64(nil), target...))
		mustAdd(t, frame, "anti", anti)
		mustAdd(t, frame, "flat", flat)
		mustAdd(t, frame, features.TargetColumn(1), target)

		inputs = append(inputs, Input{
			Symbol:  symbol,
			Frame:   frame,
			Quality: models.DataQualityReport{Symbol: symbol, Rows: rows, Score: 100},
		})
	}
	return inputs
}

func TestRunTimeSeriesMode(t *testing.T) {
	params := Params{
		RunID:           "run-1",
		Universe:        "test",
		Interval:        "1min",
		Horizon:         1,
		Quantiles:       5,
		ICWindow:        60,
		MinObservations: 50,
		MinBreadth:      20,
	}
	report, err := Run(params, timeSeriesInputs(t, 240))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.CrossSection {
		t.Error("Run() used cross-section mode with breadth 2")
	}
	if report.Rows != 480 {
		t.Errorf("Rows = %d, want 480", report.Rows)
	}
	if len(report.Symbols) != 2 || report.Symbols[0] != "AAA" || report.Symbols[1] != "BBB" {
		t.Errorf("Symbols = %v, want [AAA BBB]", report.Symbols)
	}
	if len(report.Quality) != 2 {
		t.Errorf("Quality reports = %d, want 2", len(report.Quality))
	}
	if len(report.Signals) != 3 {
		t.Fatalf("Signals = %d, want 3", len(report.Signals))
	}

	// alpha and anti tie on |IC| and sort by name; flat sinks to the bottom.
	if report.Signals[0].Name != "alpha" || report.Signals[1].Name != "anti" {
		t.Errorf("ranking = [%s %s], want [alpha anti]", report.Signals[0].Name, report.Signals[1].Name)
	}
	last := report.Signals[2]
	if last.Name != "flat" || last.Skipped == "" {
		t.Errorf("last signal = %+v, want skipped flat", last)
	}

	alpha := report.Signals[0]
	if !almostEqual(alpha.IC.Spearman, 1) {
		t.Errorf("alpha Spearman = %v, want 1", alpha.IC.Spearman)
	}
	if alpha.IC.Obs != 480 {
		t.Errorf("alpha Obs = %d, want 480", alpha.IC.Obs)
	}
	if alpha.Rolling.Periods != 8 {
		t.Errorf("alpha rolling periods = %d, want 8 windows", alpha.Rolling.Periods)
	}
	if !almostEqual(alpha.Rolling.Mean, 1) || alpha.Rolling.HitRate != 1 {
		t.Errorf("alpha rolling = %+v, want mean 1 and hit rate 1", alpha.Rolling)
	}
	if alpha.Quantiles.Spread <= 0 {
		t.Errorf("alpha quantile spread = %v, want positive", alpha.Quantiles.Spread)
	}
	if alpha.Turnover.Steps == 0 {
		t.Error("alpha turnover was not measured")
	}

	anti := report.Signals[1]
	if !almostEqual(anti.IC.Spearman, -1) {
		t.Errorf("anti Spearman = %v, want -1", anti.IC.Spearman)
	}

	// Persisted reports travel as JSON, which rejects NaN outright.
	if _, err := json.Marshal(report); err != nil {
		t.Errorf("report is not JSON-safe: %v", err)
	}
}

func TestRunCrossSectionMode(t *testing.T) {
	const symbols = 25
	const rows = 150

	var inputs []Input
	for s := 0; s < symbols; s++ {
		target := make([]float64, rows)
		alpha := make([]float64, rows)
		for i := range target {
			target[i] = float64((s*31 + i*17) % 101)
			alpha[i] = target[i]
		}
		frame := features.NewFrame(frameTimes(rows))
		mustAdd(t, frame, "alpha", alpha)
		mustAdd(t, frame, features.TargetColumn(1), target)
		inputs = append(inputs, Input{Symbol: string(rune('A'+s)) + "X", Frame: frame})
	}

	params := Params{
		Universe:        "panel",
		Interval:        "1min",
		Horizon:         1,
		Quantiles:       5,
		ICWindow:        60,
		MinObservations: 100,
		MinBreadth:      20,
	}
	report, err := Run(params, inputs)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !report.CrossSection {
		t.Fatal("Run() did not switch to cross-section mode")
	}
	if report.RunID == "" {
		t.Error("Run() left RunID empty")
	}

	alpha := report.Signals[0]
	if alpha.Name != "alpha" {
		t.Fatalf("top signal = %s, want alpha", alpha.Name)
	}
	if alpha.Rolling.Periods != rows {
		t.Errorf("panel IC periods = %d, want %d", alpha.Rolling.Periods, rows)
	}
	if !almostEqual(alpha.Rolling.Mean, 1) {
		t.Errorf("panel IC mean = %v, want 1", alpha.Rolling.Mean)
	}
	if alpha.Turnover.Steps != rows-1 {
		t.Errorf("panel turnover steps = %d, want %d", alpha.Turnover.Steps, rows-1)
	}
	if alpha.Turnover.Mean < 0 || alpha.Turnover.Mean > 1 {
		t.Errorf("panel turnover mean = %v, want within [0,1]", alpha.Turnover.Mean)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	if _, err := Run(Params{Horizon: 1, Quantiles: 5}, nil); err == nil {
		t.Error("Run() accepted empty inputs")
	}

	frame := features.NewFrame(frameTimes(10))
	mustAdd(t, frame, "alpha", make([]float64, 10))
	inputs := []Input{{Symbol: "AAPL", Frame: frame}}

	if _, err := Run(Params{Horizon: 0, Quantiles: 5}, inputs); err == nil {
		t.Error("Run() accepted a zero horizon")
	}
	if _, err := Run(Params{Horizon: 1, Quantiles: 1}, inputs); err == nil {
		t.Error("Run() accepted a single quantile")
	}
	if _, err := Run(Params{Horizon: 1, Quantiles: 5}, inputs); err == nil {
		t.Error("Run() accepted frames without a target column")
	}
}

func TestRunSkipsThinSignals(t *testing.T) {
	frame := features.NewFrame(frameTimes(20))
	target := make([]float64, 20)
	for i := range target {
		target[i] = float64(i % 7)
	}
	mustAdd(t, frame, "alpha", append([]float64(nil), target...))
	mustAdd(t, frame, features.TargetColumn(1), target)

	params := Params{Horizon: 1, Quantiles: 5, ICWindow: 60, MinObservations: 100, MinBreadth: 20}
	report, err := Run(params, []Input{{Symbol: "AAPL", Frame: frame}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Signals[0].Skipped == "" {
		t.Errorf("signal = %+v, want skipped for thin data", report.Signals[0])
	}
}
