package validate

import (
	"math"

	"github.com/alphalab-research/alphalab/models"
)

// alignPairs drops rows where either side is NaN and returns the surviving
// pairs in their original order.
func alignPairs(feature, target []float64) (xs, ys []float64) {
	for i := range feature {
		if i >= len(target) {
			break
		}
		if math.IsNaN(feature[i]) || math.IsNaN(target[i]) {
			continue
		}
		xs = append(xs, feature[i])
		ys = append(ys, target[i])
	}
	return xs, ys
}

// icStats computes the full-sample information coefficients of one signal
// against realized forward returns. The inputs must already be aligned.
func icStats(name string, xs, ys []float64) models.ICStats {
	return models.ICStats{
		Signal:   name,
		Pearson:  PearsonCorrelation(xs, ys),
		Spearman: SpearmanCorrelation(xs, ys),
		Kendall:  KendallTau(xs, ys),
		Obs:      len(xs),
	}
}

// windowICs slices one symbol's rows into non-overlapping windows and
// computes the Spearman IC inside each. Windows with fewer than minObs
// aligned pairs are dropped rather than reported as noise.
func windowICs(feature, target []float64, window, minObs int) []float64 {
	if window < 2 {
		return nil
	}
	var out []float64
	for start := 0; start < len(feature); start += window {
		end := start + window
		if end > len(feature) {
			end = len(feature)
		}
		fend := end
		if fend > len(target) {
			fend = len(target)
		}
		if start >= fend {
			break
		}
		xs, ys := alignPairs(feature[start:fend], target[start:fend])
		if len(xs) < minObs {
			continue
		}
		ic := SpearmanCorrelation(xs, ys)
		if !math.IsNaN(ic) {
			out = append(out, ic)
		}
	}
	return out
}

// summarizeICs condenses a per-window or per-timestamp IC series.
func summarizeICs(ics []float64) models.ICSummary {
	if len(ics) == 0 {
		return models.ICSummary{}
	}

	mean := Mean(ics)
	std := StdDev(ics)

	positive := 0
	for _, ic := range ics {
		if ic > 0 {
			positive++
		}
	}

	summary := models.ICSummary{
		Mean:    mean,
		HitRate: float64(positive) / float64(len(ics)),
		Periods: len(ics),
	}
	if !math.IsNaN(std) {
		summary.Std = std
		if std > 0 {
			summary.IR = mean / std
		}
	}
	return summary
}
