package features

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alphalab-research/alphalab/models"
)

// targetPrefix marks columns that contain realized future returns. They are
// prediction targets and must never be fed back in as features.
const targetPrefix = "fwd_"

// Options holds the indicator parameters used by Build. Column names embed
// the parameter values, so two frames built with different options never
// collide silently.
type Options struct {
	RSIPeriod          int
	StochasticK        int
	StochasticD        int
	MACDFast           int
	MACDSlow           int
	MACDSignal         int
	BollingerPeriod    int
	BollingerStdDev    float64
	EMAFast            int
	EMASlow            int
	ATRPeriod          int
	MomentumWindows    []int
	VolRatioShort      int
	VolRatioLong       int
	OBVWindow          int
	VolumeZWindow      int
	RangeWindow        int
	ADXPeriod          int
	SwingStrength      int
	DivergenceLookback int
	Horizon            int
}

// DefaultOptions returns the standard research parameter set.
func DefaultOptions() Options {
	return Options{
		RSIPeriod:          14,
		StochasticK:        14,
		StochasticD:        3,
		MACDFast:           12,
		MACDSlow:           26,
		MACDSignal:         9,
		BollingerPeriod:    20,
		BollingerStdDev:    2.0,
		EMAFast:            12,
		EMASlow:            26,
		ATRPeriod:          14,
		MomentumWindows:    []int{5, 30, 390},
		VolRatioShort:      5,
		VolRatioLong:       20,
		OBVWindow:          30,
		VolumeZWindow:      30,
		RangeWindow:        30,
		ADXPeriod:          14,
		SwingStrength:      3,
		DivergenceLookback: 60,
		Horizon:            1,
	}
}

// TargetColumn names the forward simple-return target for a horizon.
func TargetColumn(horizon int) string {
	return fmt.Sprintf("%sret_%d", targetPrefix, horizon)
}

// LogTargetColumn names the forward log-return target for a horizon.
func LogTargetColumn(horizon int) string {
	return fmt.Sprintf("%slog_ret_%d", targetPrefix, horizon)
}

// IsTarget reports whether a column holds future returns.
func IsTarget(name string) bool {
	return strings.HasPrefix(name, targetPrefix)
}

// Candidates lists the frame's feature columns, excluding targets.
func Candidates(frame *Frame) []string {
	var out []string
	for _, name := range frame.Names() {
		if !IsTarget(name) {
			out = append(out, name)
		}
	}
	return out
}

// Build computes the full feature frame for one symbol's bar series. Every
// feature value at row i is a function of bars [0..i] only; the forward
// return targets are the single exception and read exactly horizon bars
// ahead.
func Build(series models.Series, opts Options) (*Frame, error) {
	if opts.Horizon < 1 {
		return nil, fmt.Errorf("horizon must be positive, got %d", opts.Horizon)
	}
	bars := series.Bars
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s", series.Symbol)
	}

	n := len(bars)
	times := make([]time.Time, n)
	closes := make([]float64, n)
	for i, b := range bars {
		times[i] = b.Time
		closes[i] = b.Close
	}

	frame := NewFrame(times)
	add := func(name string, values []float64) error {
		return frame.AddColumn(name, values)
	}

	if err := add("ret_1", ReturnSeries(closes)); err != nil {
		return nil, err
	}
	if err := add("log_ret_1", LogReturnSeries(closes)); err != nil {
		return nil, err
	}
	for _, w := range opts.MomentumWindows {
		if err := add(fmt.Sprintf("mom_%d", w), MomentumSeries(closes, w)); err != nil {
			return nil, err
		}
	}

	rsi := RSISeries(closes, opts.RSIPeriod)
	if err := add(fmt.Sprintf("rsi_%d", opts.RSIPeriod), rsi); err != nil {
		return nil, err
	}

	stochK, stochD := StochasticSeries(bars, opts.StochasticK, opts.StochasticD)
	if err := add(fmt.Sprintf("stoch_k_%d", opts.StochasticK), stochK); err != nil {
		return nil, err
	}
	if err := add(fmt.Sprintf("stoch_d_%d_%d", opts.StochasticK, opts.StochasticD), stochD); err != nil {
		return nil, err
	}

	macd, _, macdHist := MACDSeries(closes, opts.MACDFast, opts.MACDSlow, opts.MACDSignal)
	if err := add(fmt.Sprintf("macd_%d_%d", opts.MACDFast, opts.MACDSlow), macd); err != nil {
		return nil, err
	}
	if err := add(fmt.Sprintf("macd_hist_%d_%d_%d", opts.MACDFast, opts.MACDSlow, opts.MACDSignal), macdHist); err != nil {
		return nil, err
	}

	pctB, width := BollingerSeries(closes, opts.BollingerPeriod, opts.BollingerStdDev)
	if err := add(fmt.Sprintf("bb_pctb_%d_%g", opts.BollingerPeriod, opts.BollingerStdDev), pctB); err != nil {
		return nil, err
	}
	if err := add(fmt.Sprintf("bb_width_%d_%g", opts.BollingerPeriod, opts.BollingerStdDev), width); err != nil {
		return nil, err
	}

	if err := add(fmt.Sprintf("ema_gap_%d_%d", opts.EMAFast, opts.EMASlow), emaGapSeries(closes, opts.EMAFast, opts.EMASlow)); err != nil {
		return nil, err
	}

	if err := add(fmt.Sprintf("atr_norm_%d", opts.ATRPeriod), atrNormSeries(bars, closes, opts.ATRPeriod)); err != nil {
		return nil, err
	}

	if err := add(fmt.Sprintf("vol_ratio_%d_%d", opts.VolRatioShort, opts.VolRatioLong), VolRatioSeries(bars, opts.VolRatioShort, opts.VolRatioLong)); err != nil {
		return nil, err
	}
	if err := add(fmt.Sprintf("obv_delta_%d", opts.OBVWindow), OBVDeltaSeries(bars, opts.OBVWindow)); err != nil {
		return nil, err
	}
	if err := add(fmt.Sprintf("volume_z_%d", opts.VolumeZWindow), VolumeZScoreSeries(bars, opts.VolumeZWindow)); err != nil {
		return nil, err
	}
	if err := add("vwap_dev", VWAPDeviationSeries(bars)); err != nil {
		return nil, err
	}
	if err := add(fmt.Sprintf("range_pos_%d", opts.RangeWindow), RangePositionSeries(bars, opts.RangeWindow)); err != nil {
		return nil, err
	}

	adx, plusDI, minusDI := ADXSeries(bars, opts.ADXPeriod)
	if err := add(fmt.Sprintf("adx_%d", opts.ADXPeriod), adx); err != nil {
		return nil, err
	}
	if err := add(fmt.Sprintf("di_spread_%d", opts.ADXPeriod), diSpreadSeries(plusDI, minusDI)); err != nil {
		return nil, err
	}

	if err := add("rsi_div", DivergenceSeries(bars, rsi, opts.SwingStrength, opts.DivergenceLookback)); err != nil {
		return nil, err
	}

	if err := add(TargetColumn(opts.Horizon), ForwardReturnSeries(closes, opts.Horizon)); err != nil {
		return nil, err
	}
	if err := add(LogTargetColumn(opts.Horizon), ForwardLogReturnSeries(closes, opts.Horizon)); err != nil {
		return nil, err
	}

	return frame, nil
}

// emaGapSeries measures the fast/slow EMA spread relative to the slow EMA.
// Positive values mean the short-term average runs above the long-term one.
func emaGapSeries(closes []float64, fast, slow int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	fastEMA := EMASeries(closes, fast)
	slowEMA := EMASeries(closes, slow)
	for i := 0; i < n; i++ {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) && slowEMA[i] != 0 {
			out[i] = (fastEMA[i] - slowEMA[i]) / slowEMA[i]
		}
	}
	return out
}

func atrNormSeries(bars []models.Bar, closes []float64, period int) []float64 {
	n := len(bars)
	out := nanSlice(n)
	atr := ATRSeries(bars, period)
	for i := 0; i < n; i++ {
		if !math.IsNaN(atr[i]) && closes[i] > 0 {
			out[i] = atr[i] / closes[i]
		}
	}
	return out
}

func diSpreadSeries(plusDI, minusDI []float64) []float64 {
	n := len(plusDI)
	out := nanSlice(n)
	for i := 0; i < n; i++ {
		if !math.IsNaN(plusDI[i]) && !math.IsNaN(minusDI[i]) {
			out[i] = plusDI[i] - minusDI[i]
		}
	}
	return out
}
