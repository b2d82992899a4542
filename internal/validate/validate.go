// Package validate measures whether candidate signals actually predict
// forward returns. It computes full-sample information coefficients, their
// stability over time, quantile return ladders and turnover, and ranks the
// candidates into a persistable report.
package validate

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alphalab-research/alphalab/internal/features"
	"github.com/alphalab-research/alphalab/models"
)

// Params controls one validation run.
type Params struct {
	RunID           string
	Universe        string
	Interval        string
	Horizon         int
	Quantiles       int
	ICWindow        int
	MinObservations int
	MinBreadth      int
}

// Input is one symbol's feature frame plus its quality scan.
type Input struct {
	Symbol  string
	Frame   *features.Frame
	Quality models.DataQualityReport
}

type rowRef struct {
	input int
	row   int
}

type panelGroup struct {
	time time.Time
	refs []rowRef
}

// Run evaluates every candidate column of the input frames against the
// forward-return target and returns the ranked report. With enough breadth
// the IC stability and turnover are measured cross-sectionally per
// timestamp; otherwise they fall back to rolling windows per symbol.
func Run(params Params, inputs []Input) (*models.SignalReport, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs to validate")
	}
	if params.Horizon < 1 {
		return nil, fmt.Errorf("horizon must be positive, got %d", params.Horizon)
	}
	if params.Quantiles < 2 {
		return nil, fmt.Errorf("quantiles must be at least 2, got %d", params.Quantiles)
	}

	targetName := features.TargetColumn(params.Horizon)
	if !inputs[0].Frame.HasColumn(targetName) {
		return nil, fmt.Errorf("frames have no %s column", targetName)
	}
	candidates := features.Candidates(inputs[0].Frame)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("frames have no candidate columns")
	}

	panel := buildPanel(inputs)
	eligible := 0
	for _, g := range panel {
		if len(g.refs) >= params.MinBreadth {
			eligible++
		}
	}
	crossSection := params.MinBreadth > 1 && eligible >= params.MinObservations

	report := &models.SignalReport{
		RunID:        params.RunID,
		CreatedAt:    time.Now().UTC(),
		Universe:     params.Universe,
		Interval:     params.Interval,
		Horizon:      params.Horizon,
		CrossSection: crossSection,
	}
	if report.RunID == "" {
		report.RunID = uuid.NewString()
	}

	for _, in := range inputs {
		report.Symbols = append(report.Symbols, in.Symbol)
		report.Rows += in.Frame.Len()
		if in.Quality.Symbol != "" {
			report.Quality = append(report.Quality, in.Quality)
		}
		times := in.Frame.Times
		if len(times) == 0 {
			continue
		}
		if report.From.IsZero() || times[0].Before(report.From) {
			report.From = times[0]
		}
		if last := times[len(times)-1]; last.After(report.To) {
			report.To = last
		}
	}
	sort.Strings(report.Symbols)

	for _, name := range candidates {
		metrics := evaluateSignal(name, targetName, params, inputs, panel, crossSection)
		report.Signals = append(report.Signals, metrics)
	}
	rankSignals(report.Signals)

	return report, nil
}

// buildPanel groups every frame row by exact timestamp so cross-sectional
// metrics can walk the aligned universe in time order.
func buildPanel(inputs []Input) []panelGroup {
	type stamped struct {
		at  int64
		ref rowRef
	}
	var all []stamped
	for idx, in := range inputs {
		for row, t := range in.Frame.Times {
			all = append(all, stamped{at: t.UnixNano(), ref: rowRef{input: idx, row: row}})
		}
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].at == all[b].at {
			return all[a].ref.input < all[b].ref.input
		}
		return all[a].at < all[b].at
	})

	var panel []panelGroup
	for i := 0; i < len(all); {
		j := i
		for j < len(all) && all[j].at == all[i].at {
			j++
		}
		group := panelGroup{time: time.Unix(0, all[i].at).UTC()}
		for k := i; k < j; k++ {
			group.refs = append(group.refs, all[k].ref)
		}
		panel = append(panel, group)
		i = j
	}
	return panel
}

func evaluateSignal(name, targetName string, params Params, inputs []Input, panel []panelGroup, crossSection bool) models.SignalMetrics {
	metrics := models.SignalMetrics{Name: name}

	cols := make([][]float64, len(inputs))
	targets := make([][]float64, len(inputs))
	var xs, ys []float64
	for i, in := range inputs {
		cols[i] = in.Frame.Column(name)
		targets[i] = in.Frame.Column(targetName)
		if cols[i] == nil || targets[i] == nil {
			continue
		}
		fx, fy := alignPairs(cols[i], targets[i])
		xs = append(xs, fx...)
		ys = append(ys, fy...)
	}

	metrics.IC.Signal = name
	metrics.IC.Obs = len(xs)
	if len(xs) < params.MinObservations {
		metrics.Skipped = fmt.Sprintf("only %d aligned observations, need %d", len(xs), params.MinObservations)
		return metrics
	}

	ic := icStats(name, xs, ys)
	if math.IsNaN(ic.Spearman) {
		metrics.Skipped = "rank correlation undefined over the sample"
		return metrics
	}
	metrics.IC = sanitizeIC(ic)

	if crossSection {
		metrics.Rolling = summarizeICs(panelICs(name, cols, targets, panel, params.MinBreadth))
		metrics.Turnover = panelTurnover(panelMemberships(name, cols, inputs, panel, params))
	} else {
		var windows []float64
		minObs := params.MinObservations
		if minObs > params.ICWindow/2 {
			minObs = params.ICWindow / 2
		}
		if minObs < 3 {
			minObs = 3
		}
		for i := range inputs {
			if cols[i] == nil || targets[i] == nil {
				continue
			}
			windows = append(windows, windowICs(cols[i], targets[i], params.ICWindow, minObs)...)
		}
		metrics.Rolling = summarizeICs(windows)
		metrics.Turnover = aggregateTurnover(cols, params.Quantiles, params.Horizon)
	}
	metrics.Rolling = sanitizeSummary(metrics.Rolling)
	metrics.Turnover = sanitizeTurnover(metrics.Turnover)
	metrics.Quantiles = sanitizeQuantiles(quantileLadder(xs, ys, params.Quantiles))

	return metrics
}

// panelICs computes per-timestamp cross-sectional Spearman ICs, skipping
// timestamps with insufficient breadth.
func panelICs(name string, cols, targets [][]float64, panel []panelGroup, minBreadth int) []float64 {
	var out []float64
	xs := make([]float64, 0, 64)
	ys := make([]float64, 0, 64)
	for _, g := range panel {
		xs = xs[:0]
		ys = ys[:0]
		for _, ref := range g.refs {
			if cols[ref.input] == nil || targets[ref.input] == nil {
				continue
			}
			x := cols[ref.input][ref.row]
			y := targets[ref.input][ref.row]
			if math.IsNaN(x) || math.IsNaN(y) {
				continue
			}
			xs = append(xs, x)
			ys = append(ys, y)
		}
		if len(xs) < minBreadth {
			continue
		}
		if ic := SpearmanCorrelation(xs, ys); !math.IsNaN(ic) {
			out = append(out, ic)
		}
	}
	return out
}

// panelMemberships samples the top-bucket long set at every horizon-th
// timestamp with full breadth.
func panelMemberships(name string, cols [][]float64, inputs []Input, panel []panelGroup, params Params) []map[string]struct{} {
	type scored struct {
		symbol string
		value  float64
	}

	var memberships []map[string]struct{}
	eligible := 0
	for _, g := range panel {
		var row []scored
		for _, ref := range g.refs {
			if cols[ref.input] == nil {
				continue
			}
			v := cols[ref.input][ref.row]
			if math.IsNaN(v) {
				continue
			}
			row = append(row, scored{symbol: inputs[ref.input].Symbol, value: v})
		}
		if len(row) < params.MinBreadth {
			continue
		}
		if eligible%params.Horizon != 0 {
			eligible++
			continue
		}
		eligible++

		sort.Slice(row, func(a, b int) bool {
			if row[a].value == row[b].value {
				return row[a].symbol < row[b].symbol
			}
			return row[a].value > row[b].value
		})
		take := len(row) / params.Quantiles
		if take < 1 {
			take = 1
		}
		set := make(map[string]struct{}, take)
		for _, s := range row[:take] {
			set[s.symbol] = struct{}{}
		}
		memberships = append(memberships, set)
	}
	return memberships
}

// aggregateTurnover combines per-symbol turnover reports, weighting means by
// the number of measured steps.
func aggregateTurnover(cols [][]float64, quantiles, lag int) models.TurnoverReport {
	var agg models.TurnoverReport
	var meanSum, acSum float64
	for _, col := range cols {
		if col == nil {
			continue
		}
		r := seriesTurnover(col, quantiles, lag)
		if r.Steps == 0 {
			continue
		}
		meanSum += r.Mean * float64(r.Steps)
		acSum += r.Autocorrelation * float64(r.Steps)
		if r.Max > agg.Max {
			agg.Max = r.Max
		}
		agg.Steps += r.Steps
	}
	if agg.Steps > 0 {
		agg.Mean = meanSum / float64(agg.Steps)
		agg.Autocorrelation = acSum / float64(agg.Steps)
	}
	return agg
}

// rankSignals orders by |Spearman IC| descending with skipped signals last.
func rankSignals(signals []models.SignalMetrics) {
	sort.SliceStable(signals, func(a, b int) bool {
		sa, sb := signals[a], signals[b]
		if (sa.Skipped == "") != (sb.Skipped == "") {
			return sa.Skipped == ""
		}
		absA := math.Abs(sa.IC.Spearman)
		absB := math.Abs(sb.IC.Spearman)
		if absA == absB {
			return sa.Name < sb.Name
		}
		return absA > absB
	})
}

// Reports are persisted as JSON, which cannot carry NaN or Inf. Anything
// degenerate flattens to zero; signals that were entirely undefined carry a
// Skipped reason instead.
func sanitizeFloat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func sanitizeIC(ic models.ICStats) models.ICStats {
	ic.Pearson = sanitizeFloat(ic.Pearson)
	ic.Spearman = sanitizeFloat(ic.Spearman)
	ic.Kendall = sanitizeFloat(ic.Kendall)
	return ic
}

func sanitizeSummary(s models.ICSummary) models.ICSummary {
	s.Mean = sanitizeFloat(s.Mean)
	s.Std = sanitizeFloat(s.Std)
	s.IR = sanitizeFloat(s.IR)
	s.HitRate = sanitizeFloat(s.HitRate)
	return s
}

func sanitizeTurnover(t models.TurnoverReport) models.TurnoverReport {
	t.Mean = sanitizeFloat(t.Mean)
	t.Max = sanitizeFloat(t.Max)
	t.Autocorrelation = sanitizeFloat(t.Autocorrelation)
	return t
}

func sanitizeQuantiles(q models.QuantileReport) models.QuantileReport {
	q.Spread = sanitizeFloat(q.Spread)
	q.Monotonicity = sanitizeFloat(q.Monotonicity)
	for i := range q.Buckets {
		q.Buckets[i].MeanReturn = sanitizeFloat(q.Buckets[i].MeanReturn)
	}
	return q
}
