package stream

// DefaultChunkSize is the number of code points per delta.
const DefaultChunkSize = 32

// Chunk splits s into windows of at most size code points. Multi-byte
// characters are never split. A size below one selects DefaultChunkSize.
func Chunk(s string, size int) []string {
	if s == "" {
		return nil
	}
	if size < 1 {
		size = DefaultChunkSize
	}

	var chunks []string
	start, n := 0, 0
	for i := range s {
		if n == size {
			chunks = append(chunks, s[start:i])
			start, n = i, 0
		}
		n++
	}
	return append(chunks, s[start:])
}
