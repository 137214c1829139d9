package cache

import (
	"encoding/hex"
	"slices"

	"github.com/twmb/murmur3"

	"knnvote/internal/dataset"
)

// fieldSeparator cannot appear in a valid UTF-8 attribute
const fieldSeparator = 0xff

type prediction struct {
	query dataset.FeatureVector
	label bool
}

// PredictionCache memoises classifier answers. Keys are murmur3 128-bit
// fingerprints of (strategy, query); the stored query is compared on hit so
// a fingerprint collision is a miss rather than a wrong answer.
type PredictionCache struct {
	lru *LRUCache[prediction]
}

// NewPredictionCache returns nil for a non-positive size. A nil cache
// misses on every lookup and ignores stores.
func NewPredictionCache(size int) *PredictionCache {
	if size <= 0 {
		return nil
	}
	return &PredictionCache{lru: NewLRUCache[prediction](size)}
}

func (c *PredictionCache) Get(strategy string, query dataset.FeatureVector) (bool, bool) {
	if c == nil {
		return false, false
	}
	p, ok := c.lru.Get(Fingerprint(strategy, query))
	if !ok || !slices.Equal(p.query, query) {
		return false, false
	}
	return p.label, true
}

func (c *PredictionCache) Put(strategy string, query dataset.FeatureVector, label bool) {
	if c == nil {
		return
	}
	c.lru.Set(Fingerprint(strategy, query), prediction{
		query: slices.Clone(query),
		label: label,
	})
}

func (c *PredictionCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Fingerprint hashes strategy and query attributes with murmur3.
func Fingerprint(strategy string, query dataset.FeatureVector) string {
	h := murmur3.New128()
	h.Write([]byte(strategy))
	for _, attr := range query {
		h.Write([]byte{fieldSeparator})
		h.Write([]byte(attr))
	}
	return hex.EncodeToString(h.Sum(nil))
}
