package services

// DefaultChunkSize is the number of rows scored in one database transaction.
const DefaultChunkSize = 1000

// SplitChunks partitions rows into consecutive chunks of at most size rows, in input order.
// Every chunk but the last holds exactly size rows. Chunks share rows' backing array but are
// capacity-capped, so appending to one never overwrites its neighbour. A non-positive size
// falls back to DefaultChunkSize.
func SplitChunks[T any](rows []T, size int) [][]T {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if len(rows) == 0 {
		return [][]T{}
	}
	chunks := make([][]T, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		chunks = append(chunks, rows[start:end:end])
	}
	return chunks
}
