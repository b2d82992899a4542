package features

import (
	"testing"

	"github.com/alphalab-research/alphalab/models"
)

func TestBuildColumns(t *testing.T) {
	series := models.Series{Symbol: "AAPL", Bars: syntheticBars(500)}
	frame, err := Build(series, DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if frame.Len() != 500 {
		t.Fatalf("Build() frame length = %d, want 500", frame.Len())
	}

	want := []string{
		"ret_1", "log_ret_1",
		"mom_5", "mom_30", "mom_390",
		"rsi_14",
		"stoch_k_14", "stoch_d_14_3",
		"macd_12_26", "macd_hist_12_26_9",
		"bb_pctb_20_2", "bb_width_20_2",
		"ema_gap_12_26",
		"atr_norm_14",
		"vol_ratio_5_20",
		"obv_delta_30",
		"volume_z_30",
		"vwap_dev",
		"range_pos_30",
		"adx_14", "di_spread_14",
		"rsi_div",
		"fwd_ret_1", "fwd_log_ret_1",
	}
	got := frame.Names()
	if len(got) != len(want) {
		t.Fatalf("Build() columns = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Build() column[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCandidatesExcludeTargets(t *testing.T) {
	series := models.Series{Symbol: "AAPL", Bars: syntheticBars(450)}
	frame, err := Build(series, DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	candidates := Candidates(frame)
	if len(candidates) != len(frame.Names())-2 {
		t.Fatalf("Candidates() = %d columns, want %d", len(candidates), len(frame.Names())-2)
	}
	for _, name := range candidates {
		if IsTarget(name) {
			t.Errorf("Candidates() included target column %q", name)
		}
	}
	if !IsTarget(TargetColumn(1)) || !IsTarget(LogTargetColumn(3)) {
		t.Error("IsTarget() rejected a target column name")
	}
}

// Appending future bars must never change already-computed feature values.
func TestBuildNoLookahead(t *testing.T) {
	bars := syntheticBars(460)
	opts := DefaultOptions()

	short, err := Build(models.Series{Symbol: "AAPL", Bars: bars[:400]}, opts)
	if err != nil {
		t.Fatalf("Build(short) error = %v", err)
	}
	long, err := Build(models.Series{Symbol: "AAPL", Bars: bars}, opts)
	if err != nil {
		t.Fatalf("Build(long) error = %v", err)
	}

	for _, name := range short.Names() {
		if IsTarget(name) {
			continue
		}
		for i := 0; i < short.Len(); i++ {
			a, b := short.Value(name, i), long.Value(name, i)
			if !sameFloat(a, b) {
				t.Fatalf("column %q row %d changed after appending bars: %v -> %v", name, i, a, b)
			}
		}
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	if _, err := Build(models.Series{Symbol: "AAPL"}, DefaultOptions()); err == nil {
		t.Error("Build() accepted an empty series")
	}

	opts := DefaultOptions()
	opts.Horizon = 0
	if _, err := Build(models.Series{Symbol: "AAPL", Bars: syntheticBars(10)}, opts); err == nil {
		t.Error("Build() accepted a zero horizon")
	}
}

func TestBuildHorizonColumns(t *testing.T) {
	opts := DefaultOptions()
	opts.Horizon = 5
	frame, err := Build(models.Series{Symbol: "EURUSD", Bars: syntheticBars(450)}, opts)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !frame.HasColumn("fwd_ret_5") || !frame.HasColumn("fwd_log_ret_5") {
		t.Errorf("Build() columns = %v, want horizon-5 targets", frame.Names())
	}
}
