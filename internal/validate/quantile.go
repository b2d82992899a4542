package validate

import (
	"math"
	"sort"

	"github.com/alphalab-research/alphalab/models"
)

// quantileLadder buckets aligned pairs by signal rank and reports the mean
// realized forward return per bucket. Bucket 1 holds the lowest signal
// values. A real signal shows a monotone ladder and a wide top-bottom spread.
func quantileLadder(xs, ys []float64, quantiles int) models.QuantileReport {
	n := len(xs)
	if quantiles < 2 || n < quantiles {
		return models.QuantileReport{}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		if xs[order[a]] == xs[order[b]] {
			return order[a] < order[b]
		}
		return xs[order[a]] < xs[order[b]]
	})

	buckets := make([]models.QuantileBucket, quantiles)
	for q := 0; q < quantiles; q++ {
		lo := q * n / quantiles
		hi := (q + 1) * n / quantiles
		var sum float64
		for _, idx := range order[lo:hi] {
			sum += ys[idx]
		}
		count := hi - lo
		bucket := models.QuantileBucket{Quantile: q + 1, Count: count}
		if count > 0 {
			bucket.MeanReturn = sum / float64(count)
		}
		buckets[q] = bucket
	}

	spread := buckets[quantiles-1].MeanReturn - buckets[0].MeanReturn

	// Fraction of adjacent bucket pairs ordered the same way as the spread.
	ordered := 0
	for q := 1; q < quantiles; q++ {
		step := buckets[q].MeanReturn - buckets[q-1].MeanReturn
		if spread > 0 && step > 0 || spread < 0 && step < 0 {
			ordered++
		}
	}
	monotonicity := 0.0
	if spread != 0 {
		monotonicity = float64(ordered) / float64(quantiles-1)
	}

	if math.IsNaN(spread) {
		spread = 0
	}
	return models.QuantileReport{
		Buckets:      buckets,
		Spread:       spread,
		Monotonicity: monotonicity,
	}
}
