package knn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionRemainderGoesToLastWorker(t *testing.T) {
	chunks := Partition(10, 3)
	assert.Equal(t, []Chunk{
		{Worker: 0, Start: 0, End: 3},
		{Worker: 1, Start: 3, End: 6},
		{Worker: 2, Start: 6, End: 10},
	}, chunks)
}

func TestPartitionFewerRowsThanWorkers(t *testing.T) {
	chunks := Partition(3, 5)
	require.Len(t, chunks, 5)
	for _, c := range chunks[:4] {
		assert.Equal(t, 0, c.Len())
	}
	assert.Equal(t, Chunk{Worker: 4, Start: 0, End: 3}, chunks[4])
}

func TestPartitionCoverage(t *testing.T) {
	for n := 0; n <= 64; n++ {
		for w := 1; w <= 9; w++ {
			chunks := Partition(n, w)
			require.Len(t, chunks, w)

			owner := make([]int, n)
			for i := range owner {
				owner[i] = -1
			}
			next := 0
			for _, c := range chunks {
				assert.Equal(t, next, c.Start, "n=%d w=%d chunks must be contiguous", n, w)
				for i := c.Start; i < c.End; i++ {
					assert.Equal(t, -1, owner[i], "n=%d w=%d index %d assigned twice", n, w, i)
					owner[i] = c.Worker
				}
				next = c.End
			}
			assert.Equal(t, n, next, "n=%d w=%d", n, w)
			for i, o := range owner {
				assert.NotEqual(t, -1, o, "n=%d w=%d index %d unassigned", n, w, i)
			}
		}
	}
}

func TestPartitionInvalid(t *testing.T) {
	assert.Nil(t, Partition(10, 0))
	assert.Nil(t, Partition(-1, 2))
}
