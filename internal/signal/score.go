// Package signal derives a composite trading signal from the individual
// indicator columns of a feature frame. Each indicator votes bullish or
// bearish points and the score is the net vote, so it can be validated
// alongside the raw features it is built from.
package signal

import (
	"fmt"
	"math"

	"github.com/alphalab-research/alphalab/internal/features"
)

// ColumnName is the frame column the composite score is stored under.
const ColumnName = "composite_score"

const (
	rsiOversold     = 30
	rsiLow          = 40
	rsiHigh         = 60
	rsiOverbought   = 70
	stochOversold   = 20
	stochOverbought = 80
	adxTrendFloor   = 25
)

// Attach computes the composite score for every row of the frame and adds it
// as a new column. The frame must have been built with the same options.
func Attach(frame *features.Frame, opts features.Options) error {
	cols := map[string][]float64{}
	for _, name := range []string{
		fmt.Sprintf("rsi_%d", opts.RSIPeriod),
		fmt.Sprintf("macd_%d_%d", opts.MACDFast, opts.MACDSlow),
		fmt.Sprintf("macd_hist_%d_%d_%d", opts.MACDFast, opts.MACDSlow, opts.MACDSignal),
		fmt.Sprintf("bb_pctb_%d_%g", opts.BollingerPeriod, opts.BollingerStdDev),
		fmt.Sprintf("stoch_k_%d", opts.StochasticK),
		fmt.Sprintf("stoch_d_%d_%d", opts.StochasticK, opts.StochasticD),
		fmt.Sprintf("adx_%d", opts.ADXPeriod),
		fmt.Sprintf("di_spread_%d", opts.ADXPeriod),
		fmt.Sprintf("ema_gap_%d_%d", opts.EMAFast, opts.EMASlow),
		"rsi_div",
	} {
		col := frame.Column(name)
		if col == nil {
			return fmt.Errorf("frame is missing column %s", name)
		}
		cols[name] = col
	}

	rsi := cols[fmt.Sprintf("rsi_%d", opts.RSIPeriod)]
	macd := cols[fmt.Sprintf("macd_%d_%d", opts.MACDFast, opts.MACDSlow)]
	hist := cols[fmt.Sprintf("macd_hist_%d_%d_%d", opts.MACDFast, opts.MACDSlow, opts.MACDSignal)]
	pctB := cols[fmt.Sprintf("bb_pctb_%d_%g", opts.BollingerPeriod, opts.BollingerStdDev)]
	stochK := cols[fmt.Sprintf("stoch_k_%d", opts.StochasticK)]
	stochD := cols[fmt.Sprintf("stoch_d_%d_%d", opts.StochasticK, opts.StochasticD)]
	adx := cols[fmt.Sprintf("adx_%d", opts.ADXPeriod)]
	diSpread := cols[fmt.Sprintf("di_spread_%d", opts.ADXPeriod)]
	emaGap := cols[fmt.Sprintf("ema_gap_%d_%d", opts.EMAFast, opts.EMASlow)]
	rsiDiv := cols["rsi_div"]

	score := make([]float64, frame.Len())
	for i := range score {
		score[i] = scoreRow(rowInputs{
			rsi:      rsi[i],
			macd:     macd[i],
			macdHist: hist[i],
			pctB:     pctB[i],
			stochK:   stochK[i],
			stochD:   stochD[i],
			adx:      adx[i],
			diSpread: diSpread[i],
			emaGap:   emaGap[i],
			rsiDiv:   rsiDiv[i],
		})
	}

	return frame.AddColumn(ColumnName, score)
}

type rowInputs struct {
	rsi      float64
	macd     float64
	macdHist float64
	pctB     float64
	stochK   float64
	stochD   float64
	adx      float64
	diSpread float64
	emaGap   float64
	rsiDiv   float64
}

// scoreRow counts bullish and bearish votes for one row. Indicators still in
// warmup abstain; a row where everything abstains scores NaN.
func scoreRow(in rowInputs) float64 {
	bullish, bearish := 0, 0
	voted := false

	if !math.IsNaN(in.rsi) {
		voted = true
		switch {
		case in.rsi < rsiOversold:
			bullish += 2
		case in.rsi < rsiLow:
			bullish++
		case in.rsi > rsiOverbought:
			bearish += 2
		case in.rsi > rsiHigh:
			bearish++
		}
	}

	if !math.IsNaN(in.macd) && !math.IsNaN(in.macdHist) {
		voted = true
		if in.macdHist > 0 && in.macdHist > in.macd*0.1 {
			bullish++
			if in.macdHist > in.macd*0.2 && in.macd > 0 {
				bullish++
			}
		} else if in.macdHist < 0 && in.macdHist < in.macd*0.1 {
			bearish++
			if in.macdHist < in.macd*0.2 && in.macd < 0 {
				bearish++
			}
		}
	}

	if !math.IsNaN(in.pctB) {
		voted = true
		if in.pctB < 0 {
			bullish++
		} else if in.pctB > 1 {
			bearish++
		}
	}

	if !math.IsNaN(in.stochK) && !math.IsNaN(in.stochD) {
		voted = true
		if in.stochK < stochOversold && in.stochD < stochOversold && in.stochK > in.stochD {
			bullish++
		} else if in.stochK > stochOverbought && in.stochD > stochOverbought && in.stochK < in.stochD {
			bearish++
		}
	}

	if !math.IsNaN(in.adx) && !math.IsNaN(in.diSpread) {
		voted = true
		if in.adx > adxTrendFloor {
			if in.diSpread > 0 {
				bullish++
			} else {
				bearish++
			}
		}
	}

	if !math.IsNaN(in.emaGap) {
		voted = true
		if in.emaGap > 0 {
			bullish++
		} else if in.emaGap < 0 {
			bearish++
		}
	}

	if !math.IsNaN(in.rsiDiv) {
		voted = true
		if in.rsiDiv > 0 {
			bullish++
		} else if in.rsiDiv < 0 {
			bearish++
		}
	}

	if !voted {
		return math.NaN()
	}
	return float64(bullish - bearish)
}
