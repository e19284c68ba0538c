package report

import "fmt"

type Operation string

const (
	Upload   Operation = "upload"
	Download Operation = "download"
)

type Measurement[T any] struct {
	Time  int64
	Value T
}

type DeviceMeasurement[T any] struct {
	DeviceName  string
	Measurement Measurement[T]
}

// Host resource usage sampled on the machine running the race.
type SystemMeasurements struct {
	CpuUsageUser   []Measurement[float64]
	CpuUsageSystem []Measurement[float64]
	CpuUsageIdle   []Measurement[float64]
	CpuUsageIowait []Measurement[float64]
	CpuUsageSteal  []Measurement[float64]

	MemUsedBytes  []Measurement[int]
	MemUsedPct    []Measurement[float64]
	MemAvailBytes []Measurement[int]
	MemAvailPct   []Measurement[float64]

	NetBytesSent   []DeviceMeasurement[int]
	NetBytesRecv   []DeviceMeasurement[int]
	NetPacketsSent []DeviceMeasurement[int]
	NetPacketsRecv []DeviceMeasurement[int]
}

// Throughput is in MiB/s. Latencies are in milliseconds.
type PassMetrics struct {
	TotalBytes     int64
	DurationMs     float64
	ThroughputMBps float64
	P50Ms          float64
	P95Ms          float64
	P99Ms          float64
}

type PassResult struct {
	Provider   string
	Operation  Operation
	Count      int
	Metrics    PassMetrics
	ObjectKeys []string
}

// The passes of a race are always ordered A-upload, B-upload, A-download, B-download.
type RaceResult struct {
	RaceID  string
	Request map[string]any
	Passes  [4]PassResult
}

func NewRaceResult(raceID string, request map[string]any, uploadA, uploadB, downloadA, downloadB PassResult) *RaceResult {
	return &RaceResult{
		RaceID:  raceID,
		Request: request,
		Passes:  [4]PassResult{uploadA, uploadB, downloadA, downloadB},
	}
}

func (r *RaceResult) Providers() (string, string) {
	return r.Passes[0].Provider, r.Passes[1].Provider
}

func (r *RaceResult) Pass(provider string, op Operation) (*PassResult, error) {
	for i := range r.Passes {
		if r.Passes[i].Provider == provider && r.Passes[i].Operation == op {
			return &r.Passes[i], nil
		}
	}
	return nil, fmt.Errorf("no %s pass for provider %s", op, provider)
}

// Winner returns the provider with the higher throughput for op. Ties go to provider A.
func (r *RaceResult) Winner(op Operation) string {
	a, b := r.Passes[0], r.Passes[1]
	if op == Download {
		a, b = r.Passes[2], r.Passes[3]
	}
	if b.Metrics.ThroughputMBps > a.Metrics.ThroughputMBps {
		return b.Provider
	}
	return a.Provider
}

type ProviderInfo struct {
	Name string
	Type string
}

// Report is what the CLI writes to disk after a race.
type Report struct {
	Providers          []ProviderInfo
	Race               *RaceResult
	Error              string // non-empty iff the race failed
	SystemMeasurements *SystemMeasurements
}
