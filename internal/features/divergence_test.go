package features

import (
	"testing"

	"github.com/alphalab-research/alphalab/models"
)

// divergenceFixture builds a price path with swing highs at bars 5 and 15
// (the second one higher) and hands back an RSI path whose matching swing
// highs decline, which is a regular bearish divergence confirmed at bar 17.
func divergenceFixture() ([]models.Bar, []float64) {
	highs := make([]float64, 25)
	rsi := make([]float64, 25)
	for i := range highs {
		switch {
		case i <= 5:
			highs[i] = 100 + 2*float64(i)
			rsi[i] = 50 + 5*float64(i)
		case i <= 10:
			highs[i] = 110 - 4*float64(i-5)
			rsi[i] = 75 - 7*float64(i-5)
		case i <= 15:
			highs[i] = 90 + 6*float64(i-10)
			rsi[i] = 40 + 5*float64(i-10)
		default:
			highs[i] = 120 - 5*float64(i-15)
			rsi[i] = 65 - 3*float64(i-15)
		}
	}

	bars := generateBars(25, func(i int) models.Bar {
		return models.Bar{High: highs[i], Low: highs[i] - 2, Close: highs[i] - 1}
	})
	return bars, rsi
}

func TestDivergenceSeriesBearish(t *testing.T) {
	bars, rsi := divergenceFixture()
	got := DivergenceSeries(bars, rsi, 2, 30)

	if got[12] != 0 {
		t.Errorf("DivergenceSeries()[12] = %v, want 0 with only one swing visible", got[12])
	}
	if got[16] != 0 {
		t.Errorf("DivergenceSeries()[16] = %v, want 0 before the swing is confirmed", got[16])
	}
	for i := 17; i < len(got); i++ {
		if got[i] != -1 {
			t.Errorf("DivergenceSeries()[%d] = %v, want -1 after bearish confirmation", i, got[i])
		}
	}
}

func TestDivergenceSeriesBullishMirror(t *testing.T) {
	bars, rsi := divergenceFixture()
	// Flip both paths: lower lows in price with higher lows in RSI.
	for i := range bars {
		bars[i].High = 240 - bars[i].High
		bars[i].Low = bars[i].High - 2
		bars[i].Close = bars[i].High - 1
		rsi[i] = 100 - rsi[i]
	}
	got := DivergenceSeries(bars, rsi, 2, 30)

	for i := 17; i < len(got); i++ {
		if got[i] != 1 {
			t.Errorf("DivergenceSeries()[%d] = %v, want +1 after bullish confirmation", i, got[i])
		}
	}
}

func TestDivergenceSeriesTooShort(t *testing.T) {
	bars := generateBars(4, func(i int) models.Bar {
		return models.Bar{High: 10, Low: 9, Close: 9.5}
	})
	got := DivergenceSeries(bars, []float64{50, 50, 50, 50}, 2, 30)
	for i, v := range got {
		if v != 0 {
			t.Errorf("DivergenceSeries()[%d] = %v, want 0 on short input", i, v)
		}
	}
}
