package knn

import (
	"cmp"
	"slices"
)

// DistanceEntry is the distance between training row Index and a query.
type DistanceEntry struct {
	Index int     `json:"index"`
	Value float64 `json:"distance"`
}

// compare ranks entries under o. Sentinel distances always sort last and
// ties fall back to the row index, so the ranking is a total order and
// independent of how the buffer was filled.
func (o Order) compare(a, b DistanceEntry) int {
	aSentinel, bSentinel := a.Value == SentinelDistance, b.Value == SentinelDistance
	if aSentinel != bSentinel {
		if aSentinel {
			return 1
		}
		return -1
	}
	var c int
	if o == FarthestFirst {
		c = cmp.Compare(b.Value, a.Value)
	} else {
		c = cmp.Compare(a.Value, b.Value)
	}
	if c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

// selectNeighbors sorts dists in place and returns the first k entries, or
// all of them when fewer than k exist.
func selectNeighbors(dists []DistanceEntry, k int, order Order) []DistanceEntry {
	slices.SortFunc(dists, order.compare)
	if k > len(dists) {
		k = len(dists)
	}
	if k < 0 {
		k = 0
	}
	return dists[:k]
}

// Vote reports whether strictly more neighbors are labeled true than false.
// Ties, including an empty neighbor set, vote false.
func Vote(neighbors []DistanceEntry, label func(index int) bool) bool {
	var trueCount, falseCount int
	for _, n := range neighbors {
		if label(n.Index) {
			trueCount++
		} else {
			falseCount++
		}
	}
	return trueCount > falseCount
}
