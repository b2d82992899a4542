package models

import (
	"time"
)

// Config holds the full environment configuration shared by the binaries.
type Config struct {
	PolygonAPIKey string
	DataDir       string
	RunsDir       string
	UniverseFile  string

	FetchFrom     string // YYYY-MM-DD inclusive
	FetchTo       string // YYYY-MM-DD inclusive
	FetchWorkers  int
	FetchAdjusted bool

	RequestsPerSec  int
	RequestTimeout  time.Duration
	MaxRetryElapsed time.Duration

	DatabaseURL    string
	TelegramToken  string
	TelegramChatID int64
	LogLevel       string

	Interval        string
	ForwardHorizon  int
	Quantiles       int
	ICWindow        int
	MinObservations int
	MinBreadth      int
	CostBps         float64
	InitialCapital  float64
	ServerAddr      string
}

// Bar represents a single aggregated price bar.
type Bar struct {
	Time   time.Time `json:"timestamp"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	VWAP   float64   `json:"vwap,omitempty"`
	Trades int64     `json:"trades,omitempty"`
}

// Series is one instrument's bar history, ascending in time with unique timestamps.
type Series struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// SymbolBar pairs a live bar with the instrument it belongs to.
type SymbolBar struct {
	Symbol string
	Bar    Bar
}

// QualityIssue is one sampled offender from a data-quality scan.
type QualityIssue struct {
	Time   time.Time `json:"time"`
	Detail string    `json:"detail"`
}

// DataQualityReport summarizes a quality scan over one series.
type DataQualityReport struct {
	Symbol         string                    `json:"symbol"`
	Rows           int                       `json:"rows"`
	First          time.Time                 `json:"first"`
	Last           time.Time                 `json:"last"`
	TimeGaps       int                       `json:"time_gaps"`
	DuplicateTimes int                       `json:"duplicate_times"`
	UnorderedTimes int                       `json:"unordered_times"`
	OHLCViolations int                       `json:"ohlc_violations"`
	PriceSpikes    int                       `json:"price_spikes"`
	VolumeSpikes   int                       `json:"volume_spikes"`
	ZeroVolumeRuns int                       `json:"zero_volume_runs"`
	Score          float64                   `json:"score"` // 0-100, higher is cleaner
	Samples        map[string][]QualityIssue `json:"samples,omitempty"`
}

// ICStats holds full-sample information coefficients for one signal.
type ICStats struct {
	Signal   string  `json:"signal"`
	Pearson  float64 `json:"pearson"`
	Spearman float64 `json:"spearman"`
	Kendall  float64 `json:"kendall"`
	Obs      int     `json:"obs"`
}

// ICSummary describes a per-window IC series.
type ICSummary struct {
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	IR      float64 `json:"ir"`       // Mean/Std
	HitRate float64 `json:"hit_rate"` // fraction of windows with IC > 0
	Periods int     `json:"periods"`
}

// QuantileBucket is the realized forward return of one signal-ranked bucket.
type QuantileBucket struct {
	Quantile   int     `json:"quantile"` // 1 = lowest signal values
	Count      int     `json:"count"`
	MeanReturn float64 `json:"mean_return"`
}

// QuantileReport holds the bucket ladder for one signal.
type QuantileReport struct {
	Buckets      []QuantileBucket `json:"buckets"`
	Spread       float64          `json:"spread"`       // top mean - bottom mean
	Monotonicity float64          `json:"monotonicity"` // fraction of adjacent pairs ordered with the spread
}

// TurnoverReport measures how quickly a signal's implied positions churn.
type TurnoverReport struct {
	Mean            float64 `json:"mean"`
	Max             float64 `json:"max"`
	Autocorrelation float64 `json:"autocorrelation"` // signal autocorrelation at the rebalance lag
	Steps           int     `json:"steps"`
}

// SignalMetrics bundles every validation measure for one candidate signal.
type SignalMetrics struct {
	Name      string         `json:"name"`
	IC        ICStats        `json:"ic"`
	Rolling   ICSummary      `json:"rolling"`
	Quantiles QuantileReport `json:"quantiles"`
	Turnover  TurnoverReport `json:"turnover"`
	Skipped   string         `json:"skipped,omitempty"` // reason the signal was excluded from ranking
}

// SignalReport is the persisted output of one research run.
type SignalReport struct {
	RunID        string              `json:"run_id"`
	CreatedAt    time.Time           `json:"created_at"`
	Universe     string              `json:"universe"`
	Symbols      []string            `json:"symbols"`
	Interval     string              `json:"interval"`
	Horizon      int                 `json:"horizon"` // forward-return horizon in bars
	From         time.Time           `json:"from"`
	To           time.Time           `json:"to"`
	Rows         int                 `json:"rows"`
	CrossSection bool                `json:"cross_section"`
	Quality      []DataQualityReport `json:"quality,omitempty"`
	Signals      []SignalMetrics     `json:"signals"` // ranked by |Spearman IC| descending
}

// RunSummary is the list view of a stored research run.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Universe  string    `json:"universe"`
	Interval  string    `json:"interval"`
	Symbols   int       `json:"symbols"`
	Signals   int       `json:"signals"`
}

// BacktestResults stores the outcome of replaying one signal as a portfolio.
type BacktestResults struct {
	RunID            string  `json:"run_id,omitempty"`
	Signal           string  `json:"signal"`
	Mode             string  `json:"mode"` // SERIES or PANEL
	Periods          int     `json:"periods"`
	Trades           int     `json:"trades"`
	WinningPeriods   int     `json:"winning_periods"`
	LosingPeriods    int     `json:"losing_periods"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	MeanTurnover     float64 `json:"mean_turnover"`
	FinalEquity      float64 `json:"final_equity"`
	MaxConsecutive   struct {
		Wins   int `json:"wins"`
		Losses int `json:"losses"`
	} `json:"max_consecutive"`
	EquityCurve    []float64          `json:"equity_curve,omitempty"`
	MonthlyReturns map[string]float64 `json:"monthly_returns"`
}
