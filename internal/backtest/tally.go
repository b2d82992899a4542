package backtest

import (
	"math"
	"time"

	"github.com/alphalab-research/alphalab/models"
)

// tally accumulates per-period results into a BacktestResults the same way
// for both engines: compounding equity, tracking the high-water mark, win
// streaks and monthly buckets.
type tally struct {
	results models.BacktestResults

	equity        float64
	highWaterMark float64
	totalProfit   float64
	totalLoss     float64

	consecutiveWins   int
	consecutiveLosses int

	returns []float64
	turns   []float64
}

func newTally(signal, mode string, initialCapital float64) *tally {
	t := &tally{
		equity:        initialCapital,
		highWaterMark: initialCapital,
	}
	t.results.Signal = signal
	t.results.Mode = mode
	t.results.MonthlyReturns = map[string]float64{}
	t.results.EquityCurve = []float64{initialCapital}
	return t
}

// step books one period. exposed reports whether the book actually held a
// position; flat periods still advance the equity curve but do not count as
// wins or losses.
func (t *tally) step(at time.Time, net, turnover float64, exposed bool) {
	t.results.Periods++
	t.returns = append(t.returns, net)
	t.turns = append(t.turns, turnover)

	t.equity *= 1 + net
	if t.equity < 0 {
		// Costs on a losing period can overshoot; a cash book stops at zero.
		t.equity = 0
	}
	t.results.EquityCurve = append(t.results.EquityCurve, t.equity)
	if t.equity > t.highWaterMark {
		t.highWaterMark = t.equity
	} else if t.highWaterMark > 0 {
		dd := (t.highWaterMark - t.equity) / t.highWaterMark
		if dd > t.results.MaxDrawdown {
			t.results.MaxDrawdown = dd
		}
	}

	month := models.MonthKey(at)
	t.results.MonthlyReturns[month] = (1+t.results.MonthlyReturns[month])*(1+net) - 1

	if !exposed {
		return
	}
	switch {
	case net > 0:
		t.results.WinningPeriods++
		t.totalProfit += net
		t.consecutiveWins++
		t.consecutiveLosses = 0
		if t.consecutiveWins > t.results.MaxConsecutive.Wins {
			t.results.MaxConsecutive.Wins = t.consecutiveWins
		}
	case net < 0:
		t.results.LosingPeriods++
		t.totalLoss += -net
		t.consecutiveLosses++
		t.consecutiveWins = 0
		if t.consecutiveLosses > t.results.MaxConsecutive.Losses {
			t.results.MaxConsecutive.Losses = t.consecutiveLosses
		}
	}
}

// finalize computes the derived ratios. stepsPerYear is how many rebalance
// periods fit in a trading year at the configured interval and horizon.
func (t *tally) finalize(initialCapital, stepsPerYear float64) *models.BacktestResults {
	r := &t.results
	r.FinalEquity = t.equity
	if initialCapital > 0 {
		r.TotalReturn = t.equity/initialCapital - 1
	}

	exposed := r.WinningPeriods + r.LosingPeriods
	if exposed > 0 {
		r.WinRate = float64(r.WinningPeriods) / float64(exposed)
	}
	if t.totalLoss > 0 {
		r.ProfitFactor = t.totalProfit / t.totalLoss
	} else {
		r.ProfitFactor = t.totalProfit
	}

	if n := len(t.returns); n > 0 && stepsPerYear > 0 {
		r.AnnualizedReturn = math.Pow(1+r.TotalReturn, stepsPerYear/float64(n)) - 1

		mean := meanOf(t.returns)
		sd := stdOf(t.returns, mean)
		if sd > 0 {
			r.SharpeRatio = mean / sd * math.Sqrt(stepsPerYear)
		}
		r.MeanTurnover = meanOf(t.turns)
	}
	return r
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdOf(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)-1))
}
