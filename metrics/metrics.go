package metrics

import (
	"math"
	"slices"
	"time"

	"github.com/Octogonapus/StorageRace/report"
)

const bytesPerMiB = 1024 * 1024

// Percentile returns the nearest-rank value at p (0-100) of an ascending slice, using
// index = floor(p/100 * (len-1)). An empty slice yields 0.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(p / 100 * float64(len(sorted)-1)))
	idx = min(max(idx, 0), len(sorted)-1)
	return sorted[idx]
}

// Throughput is MiB per second. A non-positive duration yields 0 rather than +Inf.
func Throughput(totalBytes int64, durationMs float64) float64 {
	if durationMs <= 0 {
		return 0
	}
	return (float64(totalBytes) / bytesPerMiB) / (durationMs / 1000)
}

// Compute aggregates one pass. samples are per-object latencies in milliseconds and are not
// modified.
func Compute(samples []float64, totalBytes int64, duration time.Duration) report.PassMetrics {
	if len(samples) == 0 {
		return report.PassMetrics{}
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	durationMs := Milliseconds(duration)
	return report.PassMetrics{
		TotalBytes:     totalBytes,
		DurationMs:     durationMs,
		ThroughputMBps: Throughput(totalBytes, durationMs),
		P50Ms:          Percentile(sorted, 50),
		P95Ms:          Percentile(sorted, 95),
		P99Ms:          Percentile(sorted, 99),
	}
}

// Milliseconds converts d to fractional milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
