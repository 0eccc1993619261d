package services

import (
	"math"
	"sort"
)

// DistributeQuestionCounts converts weights into integer counts summing
// exactly to numQuestions via largest-remainder apportionment: floor
// each weighted share, then hand out the remainder one by one to the
// entries with the largest fractional part. Naive rounding can over- or
// under-count; this never does.
func DistributeQuestionCounts(numQuestions int, weights []float64) []int {
	rawCounts := make([]float64, len(weights))
	floored := make([]int, len(weights))
	total := 0
	for i, w := range weights {
		rawCounts[i] = w * float64(numQuestions)
		floored[i] = int(math.Floor(rawCounts[i]))
		total += floored[i]
	}

	remainder := numQuestions - total

	type residual struct {
		index int
		frac  float64
	}
	residuals := make([]residual, len(weights))
	for i := range weights {
		residuals[i] = residual{index: i, frac: rawCounts[i] - float64(floored[i])}
	}
	sort.SliceStable(residuals, func(i, j int) bool {
		return residuals[i].frac > residuals[j].frac
	})

	for i := 0; i < remainder && i < len(residuals); i++ {
		floored[residuals[i].index]++
	}
	return floored
}
