package features

import (
	"math"
	"testing"

	"github.com/alphalab-research/alphalab/models"
)

func TestRSISeries(t *testing.T) {
	closes := []float64{10, 11, 12, 11, 12}
	got := RSISeries(closes, 3)

	for i := 0; i < 3; i++ {
		if !math.IsNaN(got[i]) {
			t.Errorf("RSISeries()[%d] = %v, want NaN warmup", i, got[i])
		}
	}
	// avgGain = 2/3, avgLoss = 1/3 after the first window.
	if !almostEqual(got[3], 100-100/(1+2.0)) {
		t.Errorf("RSISeries()[3] = %v, want %v", got[3], 100-100/(1+2.0))
	}
	// Wilder update: avgGain = 7/9, avgLoss = 2/9.
	if !almostEqual(got[4], 100-100/(1+3.5)) {
		t.Errorf("RSISeries()[4] = %v, want %v", got[4], 100-100/(1+3.5))
	}
}

func TestRSISeriesAllGains(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6}
	got := RSISeries(closes, 3)
	for i := 3; i < len(got); i++ {
		if got[i] != 100 {
			t.Errorf("RSISeries()[%d] = %v, want 100 on monotonic gains", i, got[i])
		}
	}
}

func TestEMASeries(t *testing.T) {
	got := EMASeries([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{math.NaN(), math.NaN(), 2, 3, 4}
	for i := range want {
		if !sameFloat(got[i], want[i]) {
			t.Errorf("EMASeries()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSMASeries(t *testing.T) {
	got := SMASeries([]float64{1, 2, 3, 4}, 2)
	want := []float64{math.NaN(), 1.5, 2.5, 3.5}
	for i := range want {
		if !sameFloat(got[i], want[i]) {
			t.Errorf("SMASeries()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMACDSeries(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	macd, signal, hist := MACDSeries(closes, 2, 3, 2)

	if !math.IsNaN(macd[1]) {
		t.Errorf("macd[1] = %v, want NaN before the slow EMA exists", macd[1])
	}
	if !almostEqual(macd[2], 0.5) {
		t.Errorf("macd[2] = %v, want 0.5", macd[2])
	}
	if !math.IsNaN(signal[2]) {
		t.Errorf("signal[2] = %v, want NaN during signal warmup", signal[2])
	}
	if !almostEqual(signal[3], 0.5) {
		t.Errorf("signal[3] = %v, want 0.5", signal[3])
	}
	if !almostEqual(hist[4], 0) {
		t.Errorf("hist[4] = %v, want 0", hist[4])
	}
}

func TestBollingerSeries(t *testing.T) {
	pctB, width := BollingerSeries([]float64{1, 3}, 2, 1)

	if !math.IsNaN(pctB[0]) || !math.IsNaN(width[0]) {
		t.Error("BollingerSeries() produced values during warmup")
	}
	// mean 2, population sigma 1: bands at 1 and 3.
	if !almostEqual(pctB[1], 1) {
		t.Errorf("pctB[1] = %v, want 1", pctB[1])
	}
	if !almostEqual(width[1], 1) {
		t.Errorf("width[1] = %v, want 1", width[1])
	}
}

func TestATRSeries(t *testing.T) {
	bars := []models.Bar{
		{High: 10, Low: 8, Close: 9},
		{High: 14, Low: 9, Close: 13},
		{High: 13, Low: 11, Close: 12},
		{High: 16, Low: 12, Close: 15},
	}
	got := ATRSeries(bars, 2)

	if !math.IsNaN(got[1]) {
		t.Errorf("ATRSeries()[1] = %v, want NaN warmup", got[1])
	}
	if !almostEqual(got[2], 3.5) {
		t.Errorf("ATRSeries()[2] = %v, want 3.5", got[2])
	}
	if !almostEqual(got[3], 3) {
		t.Errorf("ATRSeries()[3] = %v, want 3", got[3])
	}
}

func TestStochasticSeries(t *testing.T) {
	closes := []float64{10, 12, 11, 13}
	bars := generateBars(4, func(i int) models.Bar {
		return models.Bar{High: closes[i] + 1, Low: closes[i] - 1, Close: closes[i]}
	})
	k, d := StochasticSeries(bars, 2, 2)

	wantK := []float64{math.NaN(), 75, 100.0 / 3, 75}
	for i := range wantK {
		if !sameFloat(k[i], wantK[i]) {
			t.Errorf("k[%d] = %v, want %v", i, k[i], wantK[i])
		}
	}
	if !almostEqual(d[2], (75+100.0/3)/2) {
		t.Errorf("d[2] = %v, want %v", d[2], (75+100.0/3)/2)
	}
}

func TestStochasticSeriesFlatRange(t *testing.T) {
	bars := generateBars(5, func(int) models.Bar {
		return models.Bar{High: 10, Low: 10, Close: 10}
	})
	k, _ := StochasticSeries(bars, 3, 2)
	for i := 2; i < len(k); i++ {
		if k[i] != 50 {
			t.Errorf("k[%d] = %v, want 50 on a flat range", i, k[i])
		}
	}
}

func TestOBVSeries(t *testing.T) {
	closes := []float64{10, 11, 10, 10}
	vols := []float64{100, 200, 300, 400}
	bars := generateBars(4, func(i int) models.Bar {
		return models.Bar{Close: closes[i], Volume: vols[i]}
	})
	got := OBVSeries(bars)
	want := []float64{100, 300, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("OBVSeries()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestADXSeriesUptrend(t *testing.T) {
	bars := generateBars(10, func(i int) models.Bar {
		return models.Bar{
			High:  100 + float64(i)*2,
			Low:   98 + float64(i)*2,
			Close: 99 + float64(i)*2,
		}
	})
	adx, plusDI, minusDI := ADXSeries(bars, 3)

	if !math.IsNaN(adx[2]) {
		t.Errorf("adx[2] = %v, want NaN warmup", adx[2])
	}
	if !almostEqual(plusDI[3], 200.0/3) {
		t.Errorf("plusDI[3] = %v, want %v", plusDI[3], 200.0/3)
	}
	if minusDI[3] != 0 {
		t.Errorf("minusDI[3] = %v, want 0 in a pure uptrend", minusDI[3])
	}
	for i := 3; i < 10; i++ {
		if !almostEqual(adx[i], 100) {
			t.Errorf("adx[%d] = %v, want 100 in a pure uptrend", i, adx[i])
		}
	}
}
