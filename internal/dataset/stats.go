package dataset

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stats is the descriptive summary of one numeric column. Fields that are
// undefined for the data (everything but Count on an all-null column, Std with
// fewer than two values) are nil and encode as JSON null.
type Stats struct {
	Count float64  `json:"count"`
	Mean  *float64 `json:"mean"`
	Std   *float64 `json:"std"`
	Min   *float64 `json:"min"`
	P25   *float64 `json:"25%"`
	P50   *float64 `json:"50%"`
	P75   *float64 `json:"75%"`
	Max   *float64 `json:"max"`
}

// Describe summarises a sample: count, mean, sample standard deviation
// (N-1 denominator), min, quartiles and max.
func Describe(values []float64) Stats {
	s := Stats{Count: float64(len(values))}
	if len(values) == 0 {
		return s
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	s.Mean = finite(stat.Mean(sorted, nil))
	if len(sorted) > 1 {
		s.Std = finite(stat.StdDev(sorted, nil))
	}
	s.Min = finite(sorted[0])
	s.P25 = finite(Quantile(sorted, 0.25))
	s.P50 = finite(Quantile(sorted, 0.50))
	s.P75 = finite(Quantile(sorted, 0.75))
	s.Max = finite(sorted[len(sorted)-1])
	return s
}

// Quantile returns the p-quantile of sorted data by linear interpolation
// between the closest order statistics at rank (n-1)p.
// sorted must be ascending and non-empty.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
