package payload

import (
	"fmt"
	"io"
	"math/rand"
	"time"
)

// DefaultChunkSize is how many bytes a ChunkSource generates per pull unless told otherwise.
const DefaultChunkSize = 1024 * 1024

// ChunkSource lazily produces a fixed number of pseudo-random bytes. Only one chunk is held in
// memory at a time. It is consumed exactly once; use either Next or Read, not both.
type ChunkSource struct {
	size      int64
	remaining int64
	chunk     []byte
	pending   []byte
	rng       *rand.Rand
}

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// NewChunkSource panics if size is negative or chunkSize is not positive. Requests are validated
// long before a payload is built, so either is a programming error.
func NewChunkSource(size int64, chunkSize int) *ChunkSource {
	if size < 0 {
		panic(fmt.Sprintf("payload: negative size %d", size))
	}
	if chunkSize <= 0 {
		panic(fmt.Sprintf("payload: chunk size must be positive, got %d", chunkSize))
	}
	if int64(chunkSize) > size {
		chunkSize = int(size)
	}
	return &ChunkSource{
		size:      size,
		remaining: size,
		chunk:     make([]byte, 0, chunkSize),
		rng:       newRand(),
	}
}

// Next returns the next chunk, or nil once every byte has been produced. The returned slice is
// reused by the following call.
func (s *ChunkSource) Next() []byte {
	if s.remaining == 0 {
		return nil
	}
	n := min(int64(cap(s.chunk)), s.remaining)
	s.chunk = s.chunk[:n]
	s.rng.Read(s.chunk)
	s.remaining -= n
	return s.chunk
}

func (s *ChunkSource) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(s.pending) == 0 {
		s.pending = s.Next()
		if s.pending == nil {
			return 0, io.EOF
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Len is the total number of bytes the source produces.
func (s *ChunkSource) Len() int64 {
	return s.size
}

// Remaining is the number of bytes not yet handed to the caller.
func (s *ChunkSource) Remaining() int64 {
	return s.remaining + int64(len(s.pending))
}

// Buffer returns size pseudo-random bytes in a single allocation.
func Buffer(size int64) []byte {
	if size < 0 {
		panic(fmt.Sprintf("payload: negative size %d", size))
	}
	buf := make([]byte, size)
	newRand().Read(buf)
	return buf
}
