package knn

import (
	"math"

	"knnvote/internal/dataset"
)

// Metric is Euclidean distance over a code-point-sum embedding of each
// string attribute.
//
// With ExcludeLastAttribute set the final attribute position never
// contributes, matching the legacy loop bound of size-2.
type Metric struct {
	ExcludeLastAttribute bool
}

// DefaultMetric reproduces the legacy behaviour.
func DefaultMetric() Metric {
	return Metric{ExcludeLastAttribute: true}
}

// Distance returns SentinelDistance when a and b differ in arity.
func (m Metric) Distance(a, b dataset.FeatureVector) float64 {
	if len(a) != len(b) {
		return SentinelDistance
	}
	limit := len(a)
	if m.ExcludeLastAttribute {
		limit--
	}
	var sum float64
	for i := 0; i < limit; i++ {
		d := float64(codePointSum(a[i]) - codePointSum(b[i]))
		sum += d * d
	}
	return math.Sqrt(sum)
}

func codePointSum(s string) int64 {
	var sum int64
	for _, r := range s {
		sum += int64(r)
	}
	return sum
}
