package knn

import (
	"fmt"
	"math"

	pkgerrors "knnvote/pkg/errors"
)

// Order decides which end of the distance ranking supplies the neighbor set.
type Order string

// Strategy selects how the distance array is produced.
type Strategy string

const (
	// NearestFirst ranks ascending by distance (textbook k-NN).
	NearestFirst Order = "nearest_first"
	// FarthestFirst ranks descending by distance, the ordering of the legacy
	// implementation. Kept selectable so results can be compared.
	FarthestFirst Order = "farthest_first"

	DefaultOrder = NearestFirst
)

const (
	Serial   Strategy = "serial"
	Parallel Strategy = "parallel"
)

// SentinelDistance is assigned to pairs of rows that cannot be compared.
// Such rows rank behind every comparable row under either Order.
const SentinelDistance = math.MaxFloat64

// unsetIndex marks a result buffer slot no worker has written yet.
const unsetIndex = -1

// cancelCheckInterval is how many rows a worker processes between context checks.
const cancelCheckInterval = 64

func ParseOrder(s string) (Order, error) {
	switch o := Order(s); o {
	case NearestFirst, FarthestFirst:
		return o, nil
	case "":
		return DefaultOrder, nil
	default:
		return "", fmt.Errorf("%w: %q", pkgerrors.ErrUnknownOrder, s)
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case Serial, Parallel:
		return st, nil
	case "":
		return Parallel, nil
	default:
		return "", fmt.Errorf("%w: %q", pkgerrors.ErrUnknownStrategy, s)
	}
}
