package features

import (
	"math"

	"github.com/alphalab-research/alphalab/models"
)

// Series-form indicator math. Every function returns one value per input row;
// rows that cannot be computed yet (warmup) hold NaN. A value at index i only
// ever reads bars [0..i].

// RSISeries computes Wilder's RSI.
func RSISeries(closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if n < period+1 {
		return out
	}

	var gains, losses float64
	// Calculate initial averages
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	out[period] = rsiFrom(avgGain, avgLoss)

	// Wilder smoothing for the rest of the data
	for i := period + 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFrom(avgGain, avgLoss)
	}

	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// EMASeries computes an exponential moving average seeded with the SMA of the
// first period values.
func EMASeries(values []float64, period int) []float64 {
	n := len(values)
	out := nanSlice(n)
	if n < period || period < 1 {
		return out
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema

	// Multiplier for weighting the EMA
	multiplier := 2.0 / float64(period+1)
	for i := period; i < n; i++ {
		ema = (values[i]-ema)*multiplier + ema
		out[i] = ema
	}

	return out
}

// SMASeries computes a simple rolling mean.
func SMASeries(values []float64, period int) []float64 {
	n := len(values)
	out := nanSlice(n)
	if n < period || period < 1 {
		return out
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += values[i]
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// MACDSeries returns the MACD line, its signal line and the histogram.
func MACDSeries(closes []float64, fastPeriod, slowPeriod, signalPeriod int) (macd, signal, hist []float64) {
	n := len(closes)
	macd = nanSlice(n)
	signal = nanSlice(n)
	hist = nanSlice(n)
	if n < slowPeriod {
		return macd, signal, hist
	}

	fast := EMASeries(closes, fastPeriod)
	slow := EMASeries(closes, slowPeriod)
	for i := slowPeriod - 1; i < n; i++ {
		macd[i] = fast[i] - slow[i]
	}

	// Signal line is an EMA over the valid part of the MACD line.
	valid := macd[slowPeriod-1:]
	sig := EMASeries(valid, signalPeriod)
	for i, v := range sig {
		signal[slowPeriod-1+i] = v
		if !math.IsNaN(v) {
			hist[slowPeriod-1+i] = valid[i] - v
		}
	}

	return macd, signal, hist
}

// BollingerSeries returns %B (position inside the bands) and the relative
// band width for period-window Bollinger bands at stdDev sigmas.
func BollingerSeries(closes []float64, period int, stdDev float64) (pctB, width []float64) {
	n := len(closes)
	pctB = nanSlice(n)
	width = nanSlice(n)
	if n < period || period < 1 {
		return pctB, width
	}

	for i := period - 1; i < n; i++ {
		var sum float64
		for j := i - period + 1; j <= i; j++ {
			sum += closes[j]
		}
		middle := sum / float64(period)

		var variance float64
		for j := i - period + 1; j <= i; j++ {
			variance += math.Pow(closes[j]-middle, 2)
		}
		sd := math.Sqrt(variance / float64(period))

		upper := middle + (sd * stdDev)
		lower := middle - (sd * stdDev)

		if upper > lower {
			pctB[i] = (closes[i] - lower) / (upper - lower)
		}
		if middle != 0 {
			width[i] = (upper - lower) / middle
		}
	}

	return pctB, width
}

// ATRSeries computes the average true range as a rolling mean of true ranges.
func ATRSeries(bars []models.Bar, period int) []float64 {
	n := len(bars)
	out := nanSlice(n)
	if n < period+1 {
		return out
	}

	tr := make([]float64, n) // tr[0] unused
	for i := 1; i < n; i++ {
		highLow := bars[i].High - bars[i].Low
		highPrevClose := math.Abs(bars[i].High - bars[i-1].Close)
		lowPrevClose := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i] = math.Max(highLow, math.Max(highPrevClose, lowPrevClose))
	}

	var sum float64
	for i := 1; i < n; i++ {
		sum += tr[i]
		if i > period {
			sum -= tr[i-period]
		}
		if i >= period {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// StochasticSeries returns %K and its dPeriod moving average %D.
func StochasticSeries(bars []models.Bar, kPeriod, dPeriod int) (k, d []float64) {
	n := len(bars)
	k = nanSlice(n)
	if n < kPeriod || kPeriod < 1 {
		return k, nanSlice(n)
	}

	for i := kPeriod - 1; i < n; i++ {
		var highest, lowest float64
		for j := i - kPeriod + 1; j <= i; j++ {
			if j == i-kPeriod+1 || bars[j].High > highest {
				highest = bars[j].High
			}
			if j == i-kPeriod+1 || bars[j].Low < lowest {
				lowest = bars[j].Low
			}
		}

		if highest-lowest > 0 {
			k[i] = ((bars[i].Close - lowest) / (highest - lowest)) * 100
		} else {
			k[i] = 50.0 // If no range, default to middle
		}
	}

	d = nanSlice(n)
	// %D starts once kPeriod+dPeriod-2 bars are available.
	var sum float64
	count := 0
	for i := kPeriod - 1; i < n; i++ {
		sum += k[i]
		count++
		if count > dPeriod {
			sum -= k[i-dPeriod]
			count = dPeriod
		}
		if count == dPeriod {
			d[i] = sum / float64(dPeriod)
		}
	}

	return k, d
}

// OBVSeries computes cumulative on-balance volume.
func OBVSeries(bars []models.Bar) []float64 {
	n := len(bars)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	obv := bars[0].Volume
	out[0] = obv
	for i := 1; i < n; i++ {
		if bars[i].Close > bars[i-1].Close {
			obv += bars[i].Volume
		} else if bars[i].Close < bars[i-1].Close {
			obv -= bars[i].Volume
		}
		// If price unchanged, OBV remains the same
		out[i] = obv
	}
	return out
}

// ADXSeries returns the ADX plus the +DI and -DI series.
func ADXSeries(bars []models.Bar, period int) (adx, plusDI, minusDI []float64) {
	n := len(bars)
	adx = nanSlice(n)
	plusDI = nanSlice(n)
	minusDI = nanSlice(n)
	if n < period+1 {
		return adx, plusDI, minusDI
	}

	// Directional movement and true range per bar transition; index j
	// describes the move into bar j+1.
	m := n - 1
	pDM := make([]float64, m)
	mDM := make([]float64, m)
	tr := make([]float64, m)
	for i := 1; i < n; i++ {
		upMove := bars[i].High - bars[i-1].High
		downMove := bars[i-1].Low - bars[i].Low

		if upMove > downMove && upMove > 0 {
			pDM[i-1] = upMove
		}
		if downMove > upMove && downMove > 0 {
			mDM[i-1] = downMove
		}

		tr1 := bars[i].High - bars[i].Low
		tr2 := math.Abs(bars[i].High - bars[i-1].Close)
		tr3 := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i-1] = math.Max(tr1, math.Max(tr2, tr3))
	}

	var smoothedPlusDM, smoothedMinusDM, smoothedTR float64
	for i := 0; i < period; i++ {
		smoothedPlusDM += pDM[i]
		smoothedMinusDM += mDM[i]
		smoothedTR += tr[i]
	}
	if smoothedTR == 0 {
		return adx, plusDI, minusDI
	}

	pDI := (smoothedPlusDM / smoothedTR) * 100
	mDI := (smoothedMinusDM / smoothedTR) * 100
	dx := dxFrom(pDI, mDI)
	currentADX := dx

	plusDI[period] = pDI
	minusDI[period] = mDI
	adx[period] = currentADX

	for j := period; j < m; j++ {
		smoothedPlusDM = smoothedPlusDM - (smoothedPlusDM / float64(period)) + pDM[j]
		smoothedMinusDM = smoothedMinusDM - (smoothedMinusDM / float64(period)) + mDM[j]
		smoothedTR = smoothedTR - (smoothedTR / float64(period)) + tr[j]
		if smoothedTR == 0 {
			continue
		}

		pDI = (smoothedPlusDM / smoothedTR) * 100
		mDI = (smoothedMinusDM / smoothedTR) * 100
		currentADX = ((float64(period-1) * currentADX) + dxFrom(pDI, mDI)) / float64(period)

		plusDI[j+1] = pDI
		minusDI[j+1] = mDI
		adx[j+1] = currentADX
	}

	return adx, plusDI, minusDI
}

func dxFrom(plusDI, minusDI float64) float64 {
	if plusDI+minusDI == 0 {
		return 0
	}
	return math.Abs(plusDI-minusDI) / (plusDI + minusDI) * 100
}
