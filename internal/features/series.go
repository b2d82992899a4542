package features

import (
	"math"

	"github.com/alphalab-research/alphalab/models"
)

// ReturnSeries computes the one-bar simple return.
func ReturnSeries(closes []float64) []float64 {
	n := len(closes)
	out := nanSlice(n)
	for i := 1; i < n; i++ {
		if closes[i-1] != 0 {
			out[i] = (closes[i] - closes[i-1]) / closes[i-1]
		}
	}
	return out
}

// LogReturnSeries computes the one-bar log return.
func LogReturnSeries(closes []float64) []float64 {
	n := len(closes)
	out := nanSlice(n)
	for i := 1; i < n; i++ {
		if closes[i-1] > 0 && closes[i] > 0 {
			out[i] = math.Log(closes[i] / closes[i-1])
		}
	}
	return out
}

// MomentumSeries computes the simple return over a trailing window.
func MomentumSeries(closes []float64, window int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	for i := window; i < n; i++ {
		if closes[i-window] != 0 {
			out[i] = (closes[i] - closes[i-window]) / closes[i-window]
		}
	}
	return out
}

// ForwardReturnSeries computes the realized simple return over the next
// horizon bars. The value at index i uses closes[i] and closes[i+horizon]
// only, so the last horizon rows stay NaN.
func ForwardReturnSeries(closes []float64, horizon int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	for i := 0; i+horizon < n; i++ {
		if closes[i] != 0 {
			out[i] = (closes[i+horizon] - closes[i]) / closes[i]
		}
	}
	return out
}

// ForwardLogReturnSeries is the log-return counterpart of ForwardReturnSeries.
func ForwardLogReturnSeries(closes []float64, horizon int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	for i := 0; i+horizon < n; i++ {
		if closes[i] > 0 && closes[i+horizon] > 0 {
			out[i] = math.Log(closes[i+horizon] / closes[i])
		}
	}
	return out
}

// VolRatioSeries compares a short ATR to a long ATR. Values above 1 mean
// volatility is expanding, values below 1 mean it is compressing.
func VolRatioSeries(bars []models.Bar, shortPeriod, longPeriod int) []float64 {
	n := len(bars)
	out := nanSlice(n)
	shortATR := ATRSeries(bars, shortPeriod)
	longATR := ATRSeries(bars, longPeriod)

	for i := 0; i < n; i++ {
		if !math.IsNaN(shortATR[i]) && !math.IsNaN(longATR[i]) && longATR[i] > 0 {
			out[i] = shortATR[i] / longATR[i]
		}
	}
	return out
}

// OBVDeltaSeries measures the change of on-balance volume over a trailing
// window, normalized by the total volume traded in that window so the value
// is comparable across symbols.
func OBVDeltaSeries(bars []models.Bar, window int) []float64 {
	n := len(bars)
	out := nanSlice(n)
	if n == 0 {
		return out
	}

	obv := OBVSeries(bars)
	var volSum float64
	for i := 0; i < n; i++ {
		volSum += bars[i].Volume
		if i > window {
			volSum -= bars[i-window-1].Volume
		}
		if i >= window && volSum > 0 {
			out[i] = (obv[i] - obv[i-window]) / volSum
		}
	}
	return out
}

// VolumeZScoreSeries computes the z-score of each bar's volume against the
// trailing window.
func VolumeZScoreSeries(bars []models.Bar, window int) []float64 {
	n := len(bars)
	out := nanSlice(n)
	vols := make([]float64, n)
	for i, b := range bars {
		vols[i] = b.Volume
	}

	for i := window; i < n; i++ {
		mean, sd := windowMeanStd(vols, i-window, i-1)
		if sd > 0 {
			out[i] = (vols[i] - mean) / sd
		}
	}
	return out
}

// VWAPDeviationSeries measures how far the close sits from the bar's
// volume-weighted average price.
func VWAPDeviationSeries(bars []models.Bar) []float64 {
	n := len(bars)
	out := nanSlice(n)
	for i, b := range bars {
		if b.VWAP > 0 {
			out[i] = (b.Close - b.VWAP) / b.VWAP
		}
	}
	return out
}

// RangePositionSeries places the close inside the trailing high/low range,
// from 0 at the low to 1 at the high.
func RangePositionSeries(bars []models.Bar, window int) []float64 {
	n := len(bars)
	out := nanSlice(n)
	if n < window || window < 1 {
		return out
	}

	for i := window - 1; i < n; i++ {
		var highest, lowest float64
		for j := i - window + 1; j <= i; j++ {
			if j == i-window+1 || bars[j].High > highest {
				highest = bars[j].High
			}
			if j == i-window+1 || bars[j].Low < lowest {
				lowest = bars[j].Low
			}
		}
		if highest > lowest {
			out[i] = (bars[i].Close - lowest) / (highest - lowest)
		} else {
			out[i] = 0.5
		}
	}
	return out
}

// windowMeanStd computes mean and population standard deviation over the
// inclusive index range [lo, hi], skipping NaNs.
func windowMeanStd(values []float64, lo, hi int) (float64, float64) {
	var sum float64
	count := 0
	for j := lo; j <= hi; j++ {
		if !math.IsNaN(values[j]) {
			sum += values[j]
			count++
		}
	}
	if count == 0 {
		return math.NaN(), math.NaN()
	}
	mean := sum / float64(count)

	var variance float64
	for j := lo; j <= hi; j++ {
		if !math.IsNaN(values[j]) {
			variance += math.Pow(values[j]-mean, 2)
		}
	}
	return mean, math.Sqrt(variance / float64(count))
}
