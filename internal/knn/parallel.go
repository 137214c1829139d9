package knn

import (
	"context"
	"errors"
	"fmt"
	"math"

	"knnvote/internal/dataset"
	pkgerrors "knnvote/pkg/errors"
)

// parallelDistances fills one shared buffer from the worker pool. Each chunk
// writes only its own index range, so the buffer needs no locking. The
// caller blocks until every submitted chunk has reported back, even when
// ctx ends early, so no worker touches the buffer or the training set after
// this returns.
func (c *Classifier) parallelDistances(ctx context.Context, query dataset.FeatureVector) ([]DistanceEntry, error) {
	n := c.set.Len()
	buf := make([]DistanceEntry, n)
	for i := range buf {
		buf[i] = DistanceEntry{Index: unsetIndex, Value: math.NaN()}
	}

	chunks := Partition(n, c.workers)
	// buffered so a worker never blocks reporting, even if we stop listening
	done := make(chan error, len(chunks))
	pending := 0
	var submitErr error
	for _, chunk := range chunks {
		if chunk.Len() == 0 {
			continue
		}
		task := c.chunkTask(ctx, chunk, query, buf, done)
		if err := c.pool.Submit(ctx, task); err != nil {
			submitErr = err
			break
		}
		pending++
	}

	err := awaitChunks(ctx, done, pending)
	if submitErr != nil {
		switch {
		case errors.Is(submitErr, pkgerrors.ErrInvalidState):
			return nil, submitErr
		case ctx.Err() != nil:
			return nil, cancellation(ctx.Err())
		default:
			return nil, submitErr
		}
	}
	if err != nil {
		return nil, err
	}

	// every chunk reported success, so each slot must hold its own index
	for i := range buf {
		if buf[i].Index != i {
			return nil, fmt.Errorf("%w: index %d", pkgerrors.ErrIncompleteDistances, i)
		}
	}
	return buf, nil
}

func (c *Classifier) chunkTask(ctx context.Context, chunk Chunk, query dataset.FeatureVector, buf []DistanceEntry, done chan<- error) func() {
	set, metric, hook, drop := c.set, c.metric, c.chunkHook, c.dropChunk
	return func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("worker %d rows [%d,%d): panic: %v", chunk.Worker, chunk.Start, chunk.End, r)
			}
			done <- err
		}()

		if hook != nil {
			hook(chunk)
		}
		if drop != nil && drop(chunk) {
			return
		}
		for i := chunk.Start; i < chunk.End; i++ {
			if (i-chunk.Start)%cancelCheckInterval == 0 {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = cancellation(ctxErr)
					return
				}
			}
			buf[i] = DistanceEntry{Index: i, Value: metric.Distance(set.Features(i), query)}
		}
	}
}

// awaitChunks is the completion barrier: it returns once pending reports
// have arrived. Cancellation is recorded when observed but draining
// continues, since workers notice ctx at their next check and report.
func awaitChunks(ctx context.Context, done <-chan error, pending int) error {
	var first error
	ctxDone := ctx.Done()
	for pending > 0 {
		select {
		case err := <-done:
			pending--
			if err != nil && first == nil {
				first = err
			}
		case <-ctxDone:
			ctxDone = nil
			if first == nil {
				first = cancellation(ctx.Err())
			}
		}
	}
	return first
}
