package features

import (
	"math"

	"github.com/alphalab-research/alphalab/models"
)

// DivergenceSeries flags price/RSI divergences. The value at index i is +1
// when a bullish divergence has been confirmed within the trailing lookback
// bars, -1 for a bearish one and 0 otherwise.
//
// A swing point needs strength bars on each side, so it only becomes visible
// strength bars after it forms. Index i therefore never reads past bar i.
func DivergenceSeries(bars []models.Bar, rsi []float64, strength, lookback int) []float64 {
	n := len(bars)
	out := make([]float64, n)
	if n < 2*strength+1 || len(rsi) != n {
		return out
	}

	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
	}

	priceHighSwings, _ := swingPoints(highs, strength)
	_, priceLowSwings := swingPoints(lows, strength)
	rsiHighSwings, rsiLowSwings := swingPoints(rsi, strength)

	for i := 2*strength + 1; i < n; i++ {
		lo := i - lookback
		bearish := divergenceAt(highs, rsi, visibleSwings(priceHighSwings, lo, i, strength), visibleSwings(rsiHighSwings, lo, i, strength), true)
		bullish := divergenceAt(lows, rsi, visibleSwings(priceLowSwings, lo, i, strength), visibleSwings(rsiLowSwings, lo, i, strength), false)

		switch {
		case bearish >= 0 && bearish > bullish:
			out[i] = -1
		case bullish >= 0 && bullish > bearish:
			out[i] = 1
		}
	}

	return out
}

// swingPoints returns indexes of local maxima and minima. A point counts when
// no value within strength bars on either side exceeds it (or undercuts it,
// for minima). NaN values never form swings and block confirmation.
func swingPoints(values []float64, strength int) (swingHighs, swingLows []int) {
	for i := strength; i < len(values)-strength; i++ {
		if math.IsNaN(values[i]) {
			continue
		}

		isSwingHigh := true
		isSwingLow := true
		for j := i - strength; j <= i+strength; j++ {
			if j == i {
				continue
			}
			if math.IsNaN(values[j]) {
				isSwingHigh = false
				isSwingLow = false
				break
			}
			if values[j] > values[i] {
				isSwingHigh = false
			}
			if values[j] < values[i] {
				isSwingLow = false
			}
		}

		if isSwingHigh {
			swingHighs = append(swingHighs, i)
		}
		if isSwingLow {
			swingLows = append(swingLows, i)
		}
	}
	return swingHighs, swingLows
}

// visibleSwings filters to swings already confirmed at bar i and no older
// than lo.
func visibleSwings(swings []int, lo, i, strength int) []int {
	var out []int
	for _, s := range swings {
		if s >= lo && s+strength <= i {
			out = append(out, s)
		}
	}
	return out
}

// divergenceAt compares the last two price swings against the nearest
// indicator swings. It returns the index of the later price swing when price
// and indicator disagree, or -1 when they agree.
func divergenceAt(prices, indicator []float64, priceSwings, indicatorSwings []int, high bool) int {
	if len(priceSwings) < 2 || len(indicatorSwings) < 2 {
		return -1
	}

	p2 := priceSwings[len(priceSwings)-1]
	p1 := priceSwings[len(priceSwings)-2]

	r1, r2 := closestSwings(p1, p2, indicatorSwings)
	if r1 < 0 || r2 < 0 {
		return -1
	}

	if high {
		// Regular: higher high in price, lower high in RSI.
		if prices[p2] > prices[p1] && indicator[r2] < indicator[r1] {
			return p2
		}
		// Hidden: lower high in price, higher high in RSI.
		if prices[p2] < prices[p1] && indicator[r2] > indicator[r1] {
			return p2
		}
		return -1
	}

	// Regular: lower low in price, higher low in RSI.
	if prices[p2] < prices[p1] && indicator[r2] > indicator[r1] {
		return p2
	}
	// Hidden: higher low in price, lower low in RSI.
	if prices[p2] > prices[p1] && indicator[r2] < indicator[r1] {
		return p2
	}
	return -1
}

func closestSwings(p1, p2 int, swings []int) (int, int) {
	closest1, closest2 := -1, -1
	minDist1, minDist2 := math.MaxInt32, math.MaxInt32

	for _, s := range swings {
		if d := absInt(s - p1); d < minDist1 {
			minDist1 = d
			closest1 = s
		}
		if d := absInt(s - p2); d < minDist2 {
			minDist2 = d
			closest2 = s
		}
	}

	// Only ordered pairs are comparable.
	if closest1 < closest2 {
		return closest1, closest2
	}
	return -1, -1
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
