package gradecalc

import (
	"math"
	"sort"
)

// DistributionBucket is one letter grade's share of a score set.
type DistributionBucket struct {
	Letter string `json:"name"`
	Count  int    `json:"count"`
}

// Distribution buckets totals by letter grade, preserving the cutoff order
// so charts render A through F.
func Distribution(totals []float64) []DistributionBucket {
	counts := make(map[string]int, len(GradeLetters))
	for _, total := range totals {
		counts[ResolveGrade(total).Letter]++
	}
	buckets := make([]DistributionBucket, len(GradeLetters))
	for i, letter := range GradeLetters {
		buckets[i] = DistributionBucket{Letter: letter, Count: counts[letter]}
	}
	return buckets
}

// Statistics describes a score set.
type Statistics struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	SD     float64 `json:"sd"`
	Count  int     `json:"count"`
}

// ComputeStatistics returns mean, median, min, max and population standard
// deviation, all rounded to 2 decimals. An empty set yields zeros.
func ComputeStatistics(scores []float64) Statistics {
	n := len(scores)
	if n == 0 {
		return Statistics{}
	}

	sorted := make([]float64, n)
	copy(sorted, scores)
	sort.Float64s(sorted)

	sum := 0.0
	for _, s := range sorted {
		sum += s
	}
	mean := sum / float64(n)

	var median float64
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	variance := 0.0
	for _, s := range sorted {
		variance += (s - mean) * (s - mean)
	}
	variance /= float64(n)

	return Statistics{
		Mean:   Round2(mean),
		Median: Round2(median),
		Min:    sorted[0],
		Max:    sorted[n-1],
		SD:     Round2(math.Sqrt(variance)),
		Count:  n,
	}
}
