package knn

import (
	"context"

	"knnvote/internal/dataset"
)

func (c *Classifier) serialDistances(ctx context.Context, query dataset.FeatureVector) ([]DistanceEntry, error) {
	n := c.set.Len()
	dists := make([]DistanceEntry, n)
	for i := 0; i < n; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, cancellation(err)
			}
		}
		dists[i] = DistanceEntry{Index: i, Value: c.metric.Distance(c.set.Features(i), query)}
	}
	return dists, nil
}
