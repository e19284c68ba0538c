package transferstrategy

const (
	MiB = 1024 * 1024

	// Objects smaller than this are sent in a single request.
	MultipartThreshold = 5 * MiB

	MinChunkSize = 8 * MiB
	MaxChunkSize = 64 * MiB
)

type Mode string

const (
	SingleShot Mode = "single-shot"
	Chunked    Mode = "chunked"
)

type Strategy struct {
	Mode           Mode
	ChunkSizeBytes int64
}

// Select decides how an object of sizeBytes is transferred. partSizeMB is the operator's part
// size hint in MiB, 0 for none. streamed reports whether the body comes from a chunk producer
// rather than a fixed buffer; streamed bodies are always chunked.
func Select(sizeBytes int64, partSizeMB int, streamed bool) Strategy {
	if sizeBytes < MultipartThreshold && !streamed {
		return Strategy{Mode: SingleShot, ChunkSizeBytes: sizeBytes}
	}
	return Strategy{Mode: Chunked, ChunkSizeBytes: ChunkSize(sizeBytes, partSizeMB)}
}

// ChunkSize is the hint verbatim when one is given, otherwise a tenth of the object bounded to
// [MinChunkSize, MaxChunkSize].
func ChunkSize(sizeBytes int64, partSizeMB int) int64 {
	if partSizeMB > 0 {
		return int64(partSizeMB) * MiB
	}
	return min(max(sizeBytes/10, MinChunkSize), MaxChunkSize)
}

// PartCount is the number of requests needed to move sizeBytes with this strategy.
func (s Strategy) PartCount(sizeBytes int64) int64 {
	if s.Mode == SingleShot || s.ChunkSizeBytes <= 0 || sizeBytes <= 0 {
		return 1
	}
	return (sizeBytes + s.ChunkSizeBytes - 1) / s.ChunkSizeBytes
}
