package quality

import (
	"testing"
	"time"

	"github.com/alphalab-research/alphalab/models"
)

func cleanBars(n int) []models.Bar {
	base := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	price := 100.0
	for i := range bars {
		if i%2 == 0 {
			price += 0.1
		} else {
			price -= 0.1
		}
		bars[i] = models.Bar{
			Time:   base.Add(time.Duration(i) * time.Minute),
			Open:   price - 0.05,
			High:   price + 0.5,
			Low:    price - 0.5,
			Close:  price,
			Volume: 1000,
		}
	}
	return bars
}

func TestScanCleanSeries(t *testing.T) {
	report := Scan(models.Series{Symbol: "AAPL", Bars: cleanBars(60)}, time.Minute)

	if report.Score != 100 {
		t.Errorf("Score = %v, want 100 for a clean series", report.Score)
	}
	if report.TimeGaps != 0 || report.DuplicateTimes != 0 || report.UnorderedTimes != 0 ||
		report.OHLCViolations != 0 || report.PriceSpikes != 0 || report.VolumeSpikes != 0 ||
		report.ZeroVolumeRuns != 0 {
		t.Errorf("clean series produced issues: %+v", report)
	}
	if report.Samples != nil {
		t.Errorf("Samples = %v, want none", report.Samples)
	}
	if !report.First.Before(report.Last) {
		t.Errorf("First/Last = %v/%v, want ordered", report.First, report.Last)
	}
}

func TestScanClockIssues(t *testing.T) {
	bars := cleanBars(10)
	bars[3].Time = bars[2].Time                          // duplicate
	bars[5].Time = bars[4].Time.Add(-2 * time.Minute)    // unordered
	bars[8].Time = bars[7].Time.Add(240 * time.Minute)   // gap
	bars[9].Time = bars[8].Time.Add(time.Minute)

	report := Scan(models.Series{Symbol: "AAPL", Bars: bars}, time.Minute)

	if report.DuplicateTimes != 1 {
		t.Errorf("DuplicateTimes = %d, want 1", report.DuplicateTimes)
	}
	if report.UnorderedTimes != 1 {
		t.Errorf("UnorderedTimes = %d, want 1", report.UnorderedTimes)
	}
	if report.TimeGaps < 1 {
		t.Errorf("TimeGaps = %d, want at least 1", report.TimeGaps)
	}
	if report.Score >= 100 {
		t.Errorf("Score = %v, want below 100", report.Score)
	}
	if len(report.Samples["duplicate_times"]) != 1 {
		t.Errorf("duplicate samples = %v, want one entry", report.Samples["duplicate_times"])
	}
}

func TestScanOHLCViolations(t *testing.T) {
	bars := cleanBars(6)
	bars[1].High = bars[1].Low - 1
	bars[3].Close = bars[3].High + 5
	bars[4].Open = -1

	report := Scan(models.Series{Symbol: "AAPL", Bars: bars}, time.Minute)
	if report.OHLCViolations != 3 {
		t.Errorf("OHLCViolations = %d, want 3", report.OHLCViolations)
	}
}

func TestScanPriceSpike(t *testing.T) {
	bars := cleanBars(30)
	// Jump far outside the ~1.0 ATR regime, then stay there so only one
	// transition is flagged before the ATR window absorbs the new level.
	for i := 20; i < len(bars); i++ {
		bars[i].Open += 50
		bars[i].High += 50
		bars[i].Low += 50
		bars[i].Close += 50
	}

	report := Scan(models.Series{Symbol: "AAPL", Bars: bars}, time.Minute)
	if report.PriceSpikes < 1 {
		t.Errorf("PriceSpikes = %d, want at least 1", report.PriceSpikes)
	}
	if len(report.Samples["price_spikes"]) == 0 {
		t.Error("price spike left no sample")
	}
}

func TestScanVolumeSpike(t *testing.T) {
	bars := cleanBars(30)
	bars[20].Volume = 5000

	report := Scan(models.Series{Symbol: "AAPL", Bars: bars}, time.Minute)
	if report.VolumeSpikes != 1 {
		t.Errorf("VolumeSpikes = %d, want 1", report.VolumeSpikes)
	}
}

func TestScanZeroVolumeRuns(t *testing.T) {
	bars := cleanBars(20)
	for i := 5; i < 9; i++ {
		bars[i].Volume = 0
	}
	bars[14].Volume = 0 // isolated zero, below the run threshold

	report := Scan(models.Series{Symbol: "AAPL", Bars: bars}, time.Minute)
	if report.ZeroVolumeRuns != 1 {
		t.Errorf("ZeroVolumeRuns = %d, want 1", report.ZeroVolumeRuns)
	}
}

func TestScanEmptySeries(t *testing.T) {
	report := Scan(models.Series{Symbol: "AAPL"}, time.Minute)
	if report.Rows != 0 || report.Score != 0 {
		t.Errorf("empty series report = %+v, want zero rows and score", report)
	}
}
