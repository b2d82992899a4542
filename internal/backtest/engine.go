// Package backtest replays a validated signal as a simple portfolio. The
// series engine trades one symbol long/flat/short against fixed quantile
// cuts; the panel engine holds the cross-sectional top bucket against the
// bottom one. Neither models fills or borrowing costs beyond a flat
// per-turnover charge.
package backtest

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/alphalab-research/alphalab/internal/features"
	"github.com/alphalab-research/alphalab/models"
)

const (
	ModeSeries = "SERIES"
	ModePanel  = "PANEL"

	// The series engine derives its entry cuts from this opening fraction
	// of the data and only trades afterwards, so thresholds never peek
	// ahead.
	warmupFraction = 5
	warmupMinRows  = 100
)

// Params configures one backtest.
type Params struct {
	Signal         string
	Horizon        int
	Quantiles      int
	CostBps        float64
	InitialCapital float64
	Interval       string
	MinBreadth     int
}

// SymbolFrame pairs a symbol with its feature frame for the panel engine.
type SymbolFrame struct {
	Symbol string
	Frame  *features.Frame
}

func (p Params) validate() error {
	if p.Signal == "" {
		return fmt.Errorf("signal name is required")
	}
	if p.Horizon < 1 {
		return fmt.Errorf("horizon must be positive, got %d", p.Horizon)
	}
	if p.Quantiles < 2 {
		return fmt.Errorf("quantiles must be at least 2, got %d", p.Quantiles)
	}
	if p.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %v", p.InitialCapital)
	}
	return nil
}

func (p Params) costRate() float64 {
	return p.CostBps / 10000
}

func (p Params) stepsPerYear() float64 {
	return models.PeriodsPerYear(p.Interval) / float64(p.Horizon)
}

// RunSeries trades one symbol. The signal's bottom and top quantile cuts are
// fixed on the warmup span; afterwards each horizon-length step goes long at
// or above the top cut, short at or below the bottom cut, and flat between.
func RunSeries(frame *features.Frame, params Params) (*models.BacktestResults, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	sig := frame.Column(params.Signal)
	if sig == nil {
		return nil, fmt.Errorf("frame has no column %s", params.Signal)
	}
	target := frame.Column(features.TargetColumn(params.Horizon))
	if target == nil {
		return nil, fmt.Errorf("frame has no %s column", features.TargetColumn(params.Horizon))
	}

	n := frame.Len()
	warmup := n / warmupFraction
	if warmup < warmupMinRows {
		warmup = warmupMinRows
	}
	if warmup >= n {
		return nil, fmt.Errorf("need more than %d rows to trade, got %d", warmup, n)
	}

	var sample []float64
	for _, v := range sig[:warmup] {
		if !math.IsNaN(v) {
			sample = append(sample, v)
		}
	}
	if len(sample) < params.Quantiles {
		return nil, fmt.Errorf("signal %s has no usable warmup values", params.Signal)
	}
	lowCut, highCut := cuts(sample, params.Quantiles)

	t := newTally(params.Signal, ModeSeries, params.InitialCapital)
	cost := params.costRate()
	prevPos := 0.0

	for i := warmup; i < n; i += params.Horizon {
		pos := 0.0
		if v := sig[i]; !math.IsNaN(v) {
			switch {
			case v >= highCut:
				pos = 1
			case v <= lowCut:
				pos = -1
			}
		}

		fwd := target[i]
		if math.IsNaN(fwd) {
			fwd = 0
			pos = 0
		}

		turnover := math.Abs(pos-prevPos) / 2
		net := pos*fwd - cost*math.Abs(pos-prevPos)
		if pos != prevPos {
			t.results.Trades++
		}
		t.step(frame.Times[i], net, turnover, pos != 0)
		prevPos = pos
	}

	return t.finalize(params.InitialCapital, params.stepsPerYear()), nil
}

// RunPanel trades the cross-section: long the top signal bucket and short
// the bottom one, equal-weighted, rebalanced every horizon bars.
func RunPanel(inputs []SymbolFrame, params Params) (*models.BacktestResults, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if len(inputs) < 2 {
		return nil, fmt.Errorf("panel backtest needs at least 2 symbols, got %d", len(inputs))
	}
	minBreadth := params.MinBreadth
	if minBreadth < 2 {
		minBreadth = 2
	}

	groups, err := alignGroups(inputs, params.Signal, features.TargetColumn(params.Horizon))
	if err != nil {
		return nil, err
	}

	t := newTally(params.Signal, ModePanel, params.InitialCapital)
	cost := params.costRate()
	prevLong := map[string]struct{}{}
	prevShort := map[string]struct{}{}
	eligible := 0

	for _, g := range groups {
		if len(g.rows) < minBreadth {
			continue
		}
		if eligible%params.Horizon != 0 {
			eligible++
			continue
		}
		eligible++

		sort.Slice(g.rows, func(a, b int) bool {
			if g.rows[a].signal == g.rows[b].signal {
				return g.rows[a].symbol < g.rows[b].symbol
			}
			return g.rows[a].signal > g.rows[b].signal
		})
		take := len(g.rows) / params.Quantiles
		if take < 1 {
			take = 1
		}

		long := g.rows[:take]
		short := g.rows[len(g.rows)-take:]
		longSet := make(map[string]struct{}, take)
		shortSet := make(map[string]struct{}, take)
		var longRet, shortRet float64
		for _, r := range long {
			longSet[r.symbol] = struct{}{}
			longRet += r.target
		}
		for _, r := range short {
			shortSet[r.symbol] = struct{}{}
			shortRet += r.target
		}
		longRet /= float64(take)
		shortRet /= float64(take)

		turnLong := entering(prevLong, longSet)
		turnShort := entering(prevShort, shortSet)
		t.results.Trades += changed(prevLong, longSet) + changed(prevShort, shortSet)

		net := longRet - shortRet - cost*(turnLong+turnShort)
		t.step(g.at, net, (turnLong+turnShort)/2, true)

		prevLong = longSet
		prevShort = shortSet
	}

	if t.results.Periods == 0 {
		return nil, fmt.Errorf("no timestamps reached breadth %d", minBreadth)
	}
	return t.finalize(params.InitialCapital, params.stepsPerYear()), nil
}

type panelRow struct {
	symbol string
	signal float64
	target float64
}

type alignedGroup struct {
	at   time.Time
	rows []panelRow
}

// alignGroups merges every symbol's rows by exact timestamp, dropping rows
// where the signal or the realized forward return is missing.
func alignGroups(inputs []SymbolFrame, signalName, targetName string) ([]alignedGroup, error) {
	type stamped struct {
		at  int64
		row panelRow
	}

	var all []stamped
	for _, in := range inputs {
		sig := in.Frame.Column(signalName)
		target := in.Frame.Column(targetName)
		if sig == nil {
			return nil, fmt.Errorf("frame for %s has no column %s", in.Symbol, signalName)
		}
		if target == nil {
			return nil, fmt.Errorf("frame for %s has no %s column", in.Symbol, targetName)
		}
		for i, at := range in.Frame.Times {
			if math.IsNaN(sig[i]) || math.IsNaN(target[i]) {
				continue
			}
			all = append(all, stamped{
				at:  at.UnixNano(),
				row: panelRow{symbol: in.Symbol, signal: sig[i], target: target[i]},
			})
		}
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].at == all[b].at {
			return all[a].row.symbol < all[b].row.symbol
		}
		return all[a].at < all[b].at
	})

	var groups []alignedGroup
	for i := 0; i < len(all); {
		j := i
		for j < len(all) && all[j].at == all[i].at {
			j++
		}
		g := alignedGroup{at: time.Unix(0, all[i].at).UTC()}
		for k := i; k < j; k++ {
			g.rows = append(g.rows, all[k].row)
		}
		groups = append(groups, g)
		i = j
	}
	return groups, nil
}

// cuts returns the values bounding the bottom and top buckets of a sample.
func cuts(sample []float64, quantiles int) (low, high float64) {
	sorted := append([]float64(nil), sample...)
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

// entering is the fraction of the new set not present in the old one.
func entering(prev, cur map[string]struct{}) float64 {
	if len(cur) == 0 {
		return 0
	}
	n := 0
	for sym := range cur {
		if _, ok := prev[sym]; !ok {
			n++
		}
	}
	return float64(n) / float64(len(cur))
}

// changed counts symbols entering the set.
func changed(prev, cur map[string]struct{}) int {
	n := 0
	for sym := range cur {
		if _, ok := prev[sym]; !ok {
			n++
		}
	}
	return n
}
