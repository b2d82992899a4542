// Package quality scans raw bar series for the defects that poison research:
// clock problems, impossible OHLC rows, price and volume spikes, and dead
// volume stretches. Each series gets a 0-100 cleanliness score plus a small
// sample of offenders for eyeballing.
package quality

import (
	"fmt"
	"math"
	"time"

	"github.com/alphalab-research/alphalab/internal/features"
	"github.com/alphalab-research/alphalab/models"
)

const (
	// maxSamples caps the offenders kept per issue category.
	maxSamples = 5

	// A close-to-close move beyond this many ATRs counts as a spike.
	priceSpikeATRs = 3.0

	// Volume beyond this multiple of the trailing average counts as a spike.
	volumeSpikeRatio = 3.0
	volumeWindow     = 10

	atrWindow = 10

	// Timestamp gaps beyond this multiple of the bar interval are counted.
	// Session and weekend boundaries land here too, so gaps weigh lightly
	// in the score.
	gapMultiple = 3

	// Consecutive zero-volume bars needed before a dead stretch is flagged.
	zeroRunLength = 3
)

// Scan inspects one symbol's series and returns its quality report.
func Scan(series models.Series, interval time.Duration) models.DataQualityReport {
	report := models.DataQualityReport{
		Symbol:  series.Symbol,
		Rows:    len(series.Bars),
		Samples: map[string][]models.QualityIssue{},
	}
	bars := series.Bars
	if len(bars) == 0 {
		return report
	}

	report.First = bars[0].Time
	report.Last = bars[len(bars)-1].Time

	scanClock(bars, interval, &report)
	scanOHLC(bars, &report)
	scanPriceSpikes(bars, &report)
	scanVolume(bars, &report)

	report.Score = score(&report)
	if len(report.Samples) == 0 {
		report.Samples = nil
	}
	return report
}

func scanClock(bars []models.Bar, interval time.Duration, report *models.DataQualityReport) {
	maxGap := time.Duration(gapMultiple) * interval
	for i := 1; i < len(bars); i++ {
		delta := bars[i].Time.Sub(bars[i-1].Time)
		switch {
		case delta < 0:
			report.UnorderedTimes++
			sample(report, "unordered_times", bars[i].Time, fmt.Sprintf("timestamp precedes %s", bars[i-1].Time.Format(time.RFC3339)))
		case delta == 0:
			report.DuplicateTimes++
			sample(report, "duplicate_times", bars[i].Time, "duplicate timestamp")
		case interval > 0 && delta > maxGap:
			report.TimeGaps++
			sample(report, "time_gaps", bars[i].Time, fmt.Sprintf("gap of %s since previous bar", delta))
		}
	}
}

func scanOHLC(bars []models.Bar, report *models.DataQualityReport) {
	for _, b := range bars {
		detail := ""
		switch {
		case b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0:
			detail = "non-positive price"
		case b.High < b.Low:
			detail = fmt.Sprintf("high %.6g below low %.6g", b.High, b.Low)
		case b.Open > b.High || b.Open < b.Low:
			detail = fmt.Sprintf("open %.6g outside range", b.Open)
		case b.Close > b.High || b.Close < b.Low:
			detail = fmt.Sprintf("close %.6g outside range", b.Close)
		case b.Volume < 0:
			detail = "negative volume"
		}
		if detail != "" {
			report.OHLCViolations++
			sample(report, "ohlc_violations", b.Time, detail)
		}
	}
}

func scanPriceSpikes(bars []models.Bar, report *models.DataQualityReport) {
	atr := features.ATRSeries(bars, atrWindow)
	for i := 1; i < len(bars); i++ {
		if math.IsNaN(atr[i]) || atr[i] <= 0 {
			continue
		}
		move := math.Abs(bars[i].Close-bars[i-1].Close) / atr[i]
		if move > priceSpikeATRs {
			report.PriceSpikes++
			sample(report, "price_spikes", bars[i].Time, fmt.Sprintf("close moved %.1f times the normal range", move))
		}
	}
}

func scanVolume(bars []models.Bar, report *models.DataQualityReport) {
	var sum float64
	for i := 1; i < len(bars); i++ {
		sum += bars[i-1].Volume
		if i > volumeWindow {
			sum -= bars[i-volumeWindow-1].Volume
		}
		if i >= volumeWindow {
			avg := sum / volumeWindow
			if avg > 0 && bars[i].Volume/avg > volumeSpikeRatio {
				report.VolumeSpikes++
				sample(report, "volume_spikes", bars[i].Time, fmt.Sprintf("volume %.1f times the average", bars[i].Volume/avg))
			}
		}
	}

	run := 0
	for i, b := range bars {
		if b.Volume == 0 {
			run++
			if run == zeroRunLength {
				report.ZeroVolumeRuns++
				sample(report, "zero_volume_runs", bars[i].Time, fmt.Sprintf("at least %d consecutive zero-volume bars", zeroRunLength))
			}
			continue
		}
		run = 0
	}
}

// score folds the issue counts into a 0-100 cleanliness score. Structural
// defects weigh hardest; spikes and session gaps are often legitimate and
// weigh less.
func score(report *models.DataQualityReport) float64 {
	if report.Rows == 0 {
		return 0
	}
	penalty := float64(report.UnorderedTimes+report.DuplicateTimes+report.OHLCViolations) +
		0.25*float64(report.PriceSpikes+report.VolumeSpikes) +
		0.1*float64(report.TimeGaps) +
		0.5*float64(report.ZeroVolumeRuns)

	s := 100 * (1 - penalty/float64(report.Rows))
	if s < 0 {
		return 0
	}
	return s
}

func sample(report *models.DataQualityReport, category string, at time.Time, detail string) {
	if len(report.Samples[category]) >= maxSamples {
		return
	}
	report.Samples[category] = append(report.Samples[category], models.QualityIssue{Time: at, Detail: detail})
}
