package evaluate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"knnvote/internal/dataset"
	pkgerrors "knnvote/pkg/errors"
)

// Predictor classifies one feature vector. Implementations must be safe to
// call repeatedly and from several goroutines.
type Predictor func(ctx context.Context, features dataset.FeatureVector) (bool, error)

// ErrorPolicy decides what a failing row does to the whole evaluation.
type ErrorPolicy int

const (
	// AbortOnError stops at the first failing row and returns its error.
	AbortOnError ErrorPolicy = iota
	// CountAsMiss scores a failing row as incorrect and records its error.
	CountAsMiss
)

// RowError ties a prediction failure to its test row.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Result summarises one evaluation run.
type Result struct {
	Correct  int         `json:"correct"`
	Total    int         `json:"total"`
	Failed   int         `json:"failed"`
	Accuracy float64     `json:"accuracy"`
	Errors   []*RowError `json:"-"`
}

type options struct {
	concurrency int
	policy      ErrorPolicy
}

type Option func(*options)

// WithConcurrency evaluates up to n rows at once. Values below 2 evaluate
// rows sequentially in order.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

func WithErrorPolicy(p ErrorPolicy) Option {
	return func(o *options) { o.policy = p }
}

// Accuracy returns the fraction of rows whose prediction equals their label.
func Accuracy(ctx context.Context, rows []dataset.LabeledRow, predict Predictor, opts ...Option) (*Result, error) {
	if len(rows) == 0 {
		return nil, pkgerrors.ErrEmptyTestSet
	}
	o := options{concurrency: 1, policy: AbortOnError}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		mu  sync.Mutex
		res = &Result{Total: len(rows)}
	)
	score := func(ctx context.Context, i int) error {
		got, err := predict(ctx, rows[i].Features)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			rowErr := &RowError{Row: i, Err: err}
			if o.policy == AbortOnError {
				return rowErr
			}
			res.Failed++
			res.Errors = append(res.Errors, rowErr)
			return nil
		}
		if got == rows[i].Label {
			res.Correct++
		}
		return nil
	}

	if o.concurrency < 2 {
		for i := range rows {
			if err := score(ctx, i); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.concurrency)
		for i := range rows {
			i := i
			g.Go(func() error { return score(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		sort.Slice(res.Errors, func(a, b int) bool { return res.Errors[a].Row < res.Errors[b].Row })
	}

	res.Accuracy = float64(res.Correct) / float64(res.Total)
	return res, nil
}
