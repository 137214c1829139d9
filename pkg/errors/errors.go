package errors

import "errors"

var (
	// Data errors
	ErrDataShape         = errors.New("malformed data shape")
	ErrEmptyTestSet      = errors.New("test set is empty")
	ErrUnsupportedSource = errors.New("unsupported data source")

	// Classifier errors
	ErrInvalidState        = errors.New("classifier has been shut down")
	ErrCancelled           = errors.New("prediction cancelled")
	ErrInvalidK            = errors.New("k must be positive")
	ErrInvalidWorkers      = errors.New("worker count must be positive")
	ErrIncompleteDistances = errors.New("distance buffer has unset entries")
	ErrUnknownStrategy     = errors.New("unknown prediction strategy")
	ErrUnknownOrder        = errors.New("unknown neighbor ordering")
)
