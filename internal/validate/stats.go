package validate

import (
	"math"
	"sort"
)

// kendallMaxObs caps the pairwise loop in KendallTau. Larger samples are
// thinned with an even stride first.
const kendallMaxObs = 5000

// Mean returns the arithmetic mean, or NaN for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample standard deviation, or NaN below two values.
func StdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return math.NaN()
	}
	mean := Mean(values)
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(n-1))
}

// PearsonCorrelation returns the linear correlation of two equal-length
// samples. Degenerate inputs (constant series) give NaN.
func PearsonCorrelation(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return math.NaN()
	}

	meanX := Mean(x)
	meanY := Mean(y)
	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varX*varY)
}

// SpearmanCorrelation is the Pearson correlation of the two samples' ranks.
// Ties receive their average rank.
func SpearmanCorrelation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return math.NaN()
	}
	return PearsonCorrelation(averageRanks(x), averageRanks(y))
}

// KendallTau computes the tau-b rank correlation with tie correction. The
// pairwise comparison is quadratic, so oversized samples are strided down to
// kendallMaxObs points first.
func KendallTau(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return math.NaN()
	}

	if n > kendallMaxObs {
		stride := (n + kendallMaxObs - 1) / kendallMaxObs
		var sx, sy []float64
		for i := 0; i < n; i += stride {
			sx = append(sx, x[i])
			sy = append(sy, y[i])
		}
		x, y = sx, sy
		n = len(x)
	}

	var concordant, discordant, tiesX, tiesY float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := x[i] - x[j]
			dy := y[i] - y[j]
			switch {
			case dx == 0 && dy == 0:
				// Joint ties drop out of tau-b entirely.
			case dx == 0:
				tiesX++
			case dy == 0:
				tiesY++
			case dx*dy > 0:
				concordant++
			default:
				discordant++
			}
		}
	}

	denom := math.Sqrt((concordant + discordant + tiesX) * (concordant + discordant + tiesY))
	if denom == 0 {
		return math.NaN()
	}
	return (concordant - discordant) / denom
}

// averageRanks assigns 1-based ranks, averaging runs of equal values.
func averageRanks(values []float64) []float64 {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return values[order[a]] < values[order[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[order[j+1]] == values[order[i]] {
			j++
		}
		// Average of 1-based positions i..j.
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}
	return ranks
}
