package knn

// Chunk is a contiguous index range [Start, End) owned by one worker.
type Chunk struct {
	Worker int
	Start  int
	End    int
}

func (c Chunk) Len() int {
	return c.End - c.Start
}

// Partition splits [0, n) into w contiguous, non-overlapping chunks of
// n/w rows. The last chunk also takes the n%w remainder rows, so every
// index is owned by exactly one chunk.
func Partition(n, w int) []Chunk {
	if w <= 0 || n < 0 {
		return nil
	}
	size := n / w
	chunks := make([]Chunk, w)
	for i := range chunks {
		chunks[i] = Chunk{Worker: i, Start: i * size, End: (i + 1) * size}
	}
	chunks[w-1].End = n
	return chunks
}
