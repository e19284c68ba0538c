package transferstrategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name       string
		size       int64
		partSizeMB int
		streamed   bool
		want       Strategy
	}{
		{"4MiB buffer", 4 * MiB, 0, false, Strategy{Mode: SingleShot, ChunkSizeBytes: 4 * MiB}},
		{"just under threshold", MultipartThreshold - 1, 0, false, Strategy{Mode: SingleShot, ChunkSizeBytes: MultipartThreshold - 1}},
		{"5MiB buffer", 5 * MiB, 0, false, Strategy{Mode: Chunked, ChunkSizeBytes: 8 * MiB}},
		{"100MiB no hint", 100 * MiB, 0, false, Strategy{Mode: Chunked, ChunkSizeBytes: 10 * MiB}},
		{"1GiB clamps high", 1024 * MiB, 0, false, Strategy{Mode: Chunked, ChunkSizeBytes: 64 * MiB}},
		{"hint used verbatim", 100 * MiB, 16, false, Strategy{Mode: Chunked, ChunkSizeBytes: 16 * MiB}},
		{"small hint below clamp", 100 * MiB, 5, false, Strategy{Mode: Chunked, ChunkSizeBytes: 5 * MiB}},
		{"small streamed body", 1 * MiB, 0, true, Strategy{Mode: Chunked, ChunkSizeBytes: 8 * MiB}},
		{"hint ignored for single shot", 1 * MiB, 16, false, Strategy{Mode: SingleShot, ChunkSizeBytes: 1 * MiB}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.size, tt.partSizeMB, tt.streamed))
		})
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Equal(t, Select(100*MiB, 0, false), Select(100*MiB, 0, false))
	}
}

func TestPartCount(t *testing.T) {
	assert.Equal(t, int64(1), Select(1*MiB, 0, false).PartCount(1*MiB))
	assert.Equal(t, int64(10), Select(100*MiB, 0, false).PartCount(100*MiB))
	assert.Equal(t, int64(2), Strategy{Mode: Chunked, ChunkSizeBytes: 8 * MiB}.PartCount(9*MiB))
}
