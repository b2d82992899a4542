package validate

import (
	"math"
	"sort"

	"github.com/alphalab-research/alphalab/models"
)

// seriesTurnover measures how fast one symbol's signal churns its implied
// position. Each observation is assigned to the top bucket (+1), bottom
// bucket (-1) or middle (0) against the full-sample quantile cuts, and the
// turnover at each lag step is half the absolute position change.
func seriesTurnover(feature []float64, quantiles, lag int) models.TurnoverReport {
	var clean []float64
	for _, v := range feature {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	n := len(clean)
	if n < quantiles || quantiles < 2 || lag < 1 || n <= lag {
		return models.TurnoverReport{}
	}

	lowCut, highCut := quantileCuts(clean, quantiles)

	pos := make([]float64, n)
	for i, v := range clean {
		switch {
		case v >= highCut:
			pos[i] = 1
		case v <= lowCut:
			pos[i] = -1
		}
	}

	var sum, max float64
	steps := 0
	for i := lag; i < n; i++ {
		t := math.Abs(pos[i]-pos[i-lag]) / 2
		sum += t
		if t > max {
			max = t
		}
		steps++
	}

	report := models.TurnoverReport{Max: max, Steps: steps}
	if steps > 0 {
		report.Mean = sum / float64(steps)
	}
	if ac := PearsonCorrelation(clean[lag:], clean[:n-lag]); !math.IsNaN(ac) {
		report.Autocorrelation = ac
	}
	return report
}

// quantileCuts returns the boundary values of the bottom and top buckets.
func quantileCuts(values []float64, quantiles int) (lowCut, highCut float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)

	lowIdx := n/quantiles - 1
	if lowIdx < 0 {
		lowIdx = 0
	}
	highIdx := n - n/quantiles
	if highIdx > n-1 {
		highIdx = n - 1
	}
	return sorted[lowIdx], sorted[highIdx]
}

// setTurnover is the fraction of the current long set that was replaced
// since the previous rebalance.
func setTurnover(prev, cur map[string]struct{}) float64 {
	if len(cur) == 0 {
		return 0
	}
	entered := 0
	for sym := range cur {
		if _, ok := prev[sym]; !ok {
			entered++
		}
	}
	return float64(entered) / float64(len(cur))
}

// panelTurnover aggregates top-bucket membership changes across a sequence
// of rebalance dates.
func panelTurnover(memberships []map[string]struct{}) models.TurnoverReport {
	if len(memberships) < 2 {
		return models.TurnoverReport{}
	}

	var sum, max float64
	steps := 0
	for i := 1; i < len(memberships); i++ {
		t := setTurnover(memberships[i-1], memberships[i])
		sum += t
		if t > max {
			max = t
		}
		steps++
	}
	return models.TurnoverReport{
		Mean:  sum / float64(steps),
		Max:   max,
		Steps: steps,
	}
}
