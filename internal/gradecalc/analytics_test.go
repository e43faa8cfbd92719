package gradecalc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistribution(t *testing.T) {
	totals := []float64{85, 82, 76, 71, 60, 40, 40}
	buckets := Distribution(totals)

	byLetter := map[string]int{}
	for _, b := range buckets {
		byLetter[b.Letter] = b.Count
	}
	assert.Equal(t, 2, byLetter["A"])
	assert.Equal(t, 1, byLetter["B+"])
	assert.Equal(t, 1, byLetter["B"])
	assert.Equal(t, 1, byLetter["C"])
	assert.Equal(t, 2, byLetter["F"])

	// Every letter appears even with zero count, in cutoff order.
	assert.Len(t, buckets, len(GradeLetters))
	assert.Equal(t, "A", buckets[0].Letter)
	assert.Equal(t, "F", buckets[len(buckets)-1].Letter)
	assert.Equal(t, 0, byLetter["D"])
}

func TestComputeStatistics(t *testing.T) {
	stats := ComputeStatistics([]float64{70, 80, 90, 100})
	assert.Equal(t, 85.0, stats.Mean)
	assert.Equal(t, 85.0, stats.Median)
	assert.Equal(t, 70.0, stats.Min)
	assert.Equal(t, 100.0, stats.Max)
	assert.Equal(t, 11.18, stats.SD)
	assert.Equal(t, 4, stats.Count)
}

func TestComputeStatisticsOddCount(t *testing.T) {
	stats := ComputeStatistics([]float64{50, 90, 70})
	assert.Equal(t, 70.0, stats.Median)
	assert.Equal(t, 70.0, stats.Mean)
}

func TestComputeStatisticsEmpty(t *testing.T) {
	stats := ComputeStatistics(nil)
	assert.Equal(t, Statistics{}, stats)
}
