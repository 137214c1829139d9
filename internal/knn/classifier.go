package knn

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"knnvote/internal/dataset"
	"knnvote/internal/evaluate"
	pkgerrors "knnvote/pkg/errors"
	"knnvote/pkg/logger"
)

// Classifier predicts a boolean label by majority vote among the k training
// rows ranked first for a query. It owns the training set and a worker pool
// for the parallel strategy; both live until Close.
type Classifier struct {
	// mu is held shared by every prediction and exclusively by Close, so
	// teardown waits for in-flight predictions.
	mu     sync.RWMutex
	closed bool

	set     *dataset.TrainingSet
	pool    *WorkerPool
	k       int
	workers int
	order   Order
	metric  Metric
	log     *zap.SugaredLogger

	// chunkHook runs at the start of every parallel chunk. Tests use it to
	// force worker interleavings.
	chunkHook func(Chunk)
	// dropChunk makes a chunk return without writing its range when it
	// reports true. Tests use it to reach the coverage check.
	dropChunk func(Chunk) bool
}

type Option func(*Classifier)

// WithWorkers fixes the pool size. Zero means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *Classifier) { c.workers = n }
}

func WithOrder(o Order) Option {
	return func(c *Classifier) { c.order = o }
}

func WithExcludeLastAttribute(exclude bool) Option {
	return func(c *Classifier) { c.metric.ExcludeLastAttribute = exclude }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Classifier) { c.log = l }
}

// New builds a classifier over set and starts its worker pool.
func New(set *dataset.TrainingSet, k int, opts ...Option) (*Classifier, error) {
	if set == nil {
		return nil, fmt.Errorf("%w: nil training set", pkgerrors.ErrDataShape)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", pkgerrors.ErrInvalidK, k)
	}
	c := &Classifier{
		set:    set,
		k:      k,
		order:  DefaultOrder,
		metric: DefaultMetric(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := ParseOrder(string(c.order)); err != nil {
		return nil, err
	}
	if c.log == nil {
		c.log = logger.With("component", "knn")
	}

	pool, err := NewWorkerPool(c.workers, c.log)
	if err != nil {
		return nil, err
	}
	c.pool = pool
	c.workers = pool.Size()

	c.log.Infow("classifier ready",
		"rows", set.Len(),
		"k", k,
		"workers", c.workers,
		"order", c.order,
		"exclude_last_attribute", c.metric.ExcludeLastAttribute,
	)
	return c, nil
}

// NewFromLoader loads the training data from source and builds a classifier.
func NewFromLoader(ctx context.Context, loader dataset.Loader, source string, k int, opts ...Option) (*Classifier, error) {
	features, labels, err := loader.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	set, err := dataset.NewTrainingSet(features, labels)
	if err != nil {
		return nil, fmt.Errorf("training set %s: %w", source, err)
	}
	return New(set, k, opts...)
}

func (c *Classifier) K() int       { return c.k }
func (c *Classifier) Workers() int { return c.workers }
func (c *Classifier) Order() Order { return c.order }

// Closed reports whether Close has been called.
func (c *Classifier) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Len returns the training set size, or 0 after Close.
func (c *Classifier) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0
	}
	return c.set.Len()
}

// PredictSerial computes every distance on the calling goroutine.
func (c *Classifier) PredictSerial(ctx context.Context, query dataset.FeatureVector) (bool, error) {
	return c.Predict(ctx, Serial, query)
}

// PredictParallel spreads the distance computation over the worker pool.
// It returns the same answer as PredictSerial for the same inputs.
func (c *Classifier) PredictParallel(ctx context.Context, query dataset.FeatureVector) (bool, error) {
	return c.Predict(ctx, Parallel, query)
}

// Predict classifies query with the given strategy.
func (c *Classifier) Predict(ctx context.Context, strategy Strategy, query dataset.FeatureVector) (bool, error) {
	_, label, err := c.Classify(ctx, strategy, query)
	return label, err
}

// Classify returns the selected neighbors together with their vote, from a
// single pass over the training set.
func (c *Classifier) Classify(ctx context.Context, strategy Strategy, query dataset.FeatureVector) ([]DistanceEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	neighbors, err := c.neighbors(ctx, strategy, query)
	if err != nil {
		c.log.Errorw("prediction failed", "strategy", strategy, "error", err)
		return nil, false, err
	}
	return neighbors, Vote(neighbors, c.set.Label), nil
}

// Neighbors returns the selected neighbor set for query, in ranking order.
func (c *Classifier) Neighbors(ctx context.Context, strategy Strategy, query dataset.FeatureVector) ([]DistanceEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.neighbors(ctx, strategy, query)
}

// neighbors requires c.mu to be held.
func (c *Classifier) neighbors(ctx context.Context, strategy Strategy, query dataset.FeatureVector) ([]DistanceEntry, error) {
	if c.closed {
		return nil, pkgerrors.ErrInvalidState
	}
	var (
		dists []DistanceEntry
		err   error
	)
	switch strategy {
	case Serial:
		dists, err = c.serialDistances(ctx, query)
	case Parallel:
		dists, err = c.parallelDistances(ctx, query)
	default:
		err = fmt.Errorf("%w: %q", pkgerrors.ErrUnknownStrategy, strategy)
	}
	if err != nil {
		return nil, err
	}
	return selectNeighbors(dists, c.k, c.order), nil
}

// Predictor exposes the classifier as a plain function for evaluation.
func (c *Classifier) Predictor(strategy Strategy) evaluate.Predictor {
	return func(ctx context.Context, features dataset.FeatureVector) (bool, error) {
		return c.Predict(ctx, strategy, features)
	}
}

// Evaluate returns the fraction of test rows classified correctly.
func (c *Classifier) Evaluate(ctx context.Context, test []dataset.LabeledRow, strategy Strategy, opts ...evaluate.Option) (float64, error) {
	res, err := evaluate.Accuracy(ctx, test, c.Predictor(strategy), opts...)
	if err != nil {
		return 0, err
	}
	return res.Accuracy, nil
}

// Close waits for in-flight predictions, stops the worker pool and drops
// the training set. Later calls return nil; predictions fail with
// ErrInvalidState.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.pool.Close()
	c.set = nil
	c.log.Infow("classifier closed")
	return nil
}

func cancellation(err error) error {
	return fmt.Errorf("%w: %w", pkgerrors.ErrCancelled, err)
}
