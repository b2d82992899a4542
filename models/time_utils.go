package models

import "time"

// BarsPerDay returns how many bars one trading day contributes for an interval.
// Intraday intervals assume the 390-minute US equity session.
func BarsPerDay(interval string) int {
	barsPerDay := 0

	switch interval {
	case "1min":
		barsPerDay = 390
	case "5min":
		barsPerDay = 390 / 5
	case "15min":
		barsPerDay = 390 / 15
	case "30min":
		barsPerDay = 390 / 30
	case "1h":
		barsPerDay = 7
	case "1day":
		barsPerDay = 1
	default:
		barsPerDay = 390
	}

	return barsPerDay
}

// PeriodsPerYear converts an interval into the annualization factor used for
// Sharpe ratios and annualized returns (252 trading days).
func PeriodsPerYear(interval string) float64 {
	return float64(BarsPerDay(interval)) * 252
}

// IntervalDuration maps an interval name to its bar length.
func IntervalDuration(interval string) time.Duration {
	switch interval {
	case "1min":
		return time.Minute
	case "5min":
		return 5 * time.Minute
	case "15min":
		return 15 * time.Minute
	case "30min":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "1day":
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// MonthKey formats a timestamp as the YYYY-MM key used in monthly return maps.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
