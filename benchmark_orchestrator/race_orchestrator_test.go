package benchmarkorchestrator

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Octogonapus/StorageRace/benchmark"
	objectprovider "github.com/Octogonapus/StorageRace/object_provider"
	"github.com/Octogonapus/StorageRace/progress"
	"github.com/Octogonapus/StorageRace/report"
	transferstrategy "github.com/Octogonapus/StorageRace/transfer_strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mib = 1024 * 1024

var errBrokenBucket = errors.New("broken bucket")

type brokenUploads struct {
	objectprovider.ObjectProvider
}

func (b *brokenUploads) PutObject(context.Context, *objectprovider.ObjectSpec, io.Reader, transferstrategy.Strategy) error {
	return errBrokenBucket
}

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Notify(e progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []progress.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []progress.Kind{}
	for _, e := range r.events {
		if e.Kind.IsLifecycle() {
			out = append(out, e.Kind)
		}
	}
	return out
}

func TestRunRace(t *testing.T) {
	a := objectprovider.NewMemoryObjectProvider("alpha", nil)
	b := objectprovider.NewMemoryObjectProvider("beta", nil)
	rec := &recorder{}
	req := benchmark.BenchmarkRequest{ObjectSizeBytes: mib, ObjectCount: 4, Concurrency: 2, KeyPrefix: "race/"}

	result, err := RunRace(context.Background(), req, a, b, rec)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RaceID)
	nameA, nameB := result.Providers()
	assert.Equal(t, "alpha", nameA)
	assert.Equal(t, "beta", nameB)
	for _, p := range result.Passes {
		assert.Equal(t, 4, p.Count)
		assert.Len(t, p.ObjectKeys, 4)
		assert.Equal(t, int64(4*mib), p.Metrics.TotalBytes)
		assert.GreaterOrEqual(t, p.Metrics.P99Ms, p.Metrics.P50Ms)
	}
	assert.Equal(t, report.Upload, result.Passes[0].Operation)
	assert.Equal(t, "alpha", result.Passes[0].Provider)
	assert.Equal(t, report.Download, result.Passes[3].Operation)
	assert.Equal(t, "beta", result.Passes[3].Provider)

	// each provider downloads exactly the objects it uploaded
	downA, err := result.Pass("alpha", report.Download)
	require.NoError(t, err)
	assert.ElementsMatch(t, a.Keys(), downA.ObjectKeys)
	downB, err := result.Pass("beta", report.Download)
	require.NoError(t, err)
	assert.ElementsMatch(t, b.Keys(), downB.ObjectKeys)

	assert.Equal(t, []progress.Kind{progress.KindStart, progress.KindPhase, progress.KindDone}, rec.kinds())
	for _, e := range rec.events {
		assert.Equal(t, result.RaceID, e.RaceID)
	}
	last := rec.events[len(rec.events)-1]
	assert.Same(t, result, last.Result)
	assert.Equal(t, int64(mib), rec.events[0].Request["ObjectSizeBytes"])
}

func TestRunRaceUploadFailureSkipsDownloads(t *testing.T) {
	a := &brokenUploads{ObjectProvider: objectprovider.NewMemoryObjectProvider("alpha", nil)}
	b := objectprovider.NewMemoryObjectProvider("beta", nil)
	rec := &recorder{}
	req := benchmark.BenchmarkRequest{ObjectSizeBytes: 128, ObjectCount: 3, Concurrency: 3}

	result, err := RunRace(context.Background(), req, a, b, rec)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, errBrokenBucket)

	var passErr *benchmark.PassError
	require.ErrorAs(t, err, &passErr)
	assert.Equal(t, "alpha", passErr.Provider)

	// beta finished its upload but never started downloading
	assert.Len(t, b.Keys(), 3)
	assert.Empty(t, b.Reads())
	assert.Equal(t, []progress.Kind{progress.KindStart, progress.KindError}, rec.kinds())
}

func TestRunRaceRejectsInvalidRequests(t *testing.T) {
	a := objectprovider.NewMemoryObjectProvider("alpha", nil)
	b := objectprovider.NewMemoryObjectProvider("beta", nil)

	for name, tc := range map[string]struct {
		req  benchmark.BenchmarkRequest
		a, b objectprovider.ObjectProvider
	}{
		"zero count":     {req: benchmark.BenchmarkRequest{ObjectSizeBytes: 1, Concurrency: 1}, a: a, b: b},
		"zero size":      {req: benchmark.BenchmarkRequest{ObjectCount: 1, Concurrency: 1}, a: a, b: b},
		"same providers": {req: benchmark.BenchmarkRequest{ObjectSizeBytes: 1, ObjectCount: 1, Concurrency: 1}, a: a, b: a},
		"missing b":      {req: benchmark.BenchmarkRequest{ObjectSizeBytes: 1, ObjectCount: 1, Concurrency: 1}, a: a},
	} {
		t.Run(name, func(t *testing.T) {
			rec := &recorder{}
			_, err := RunRace(context.Background(), tc.req, tc.a, tc.b, rec)
			assert.ErrorIs(t, err, benchmark.ErrInvalidRequest)
			assert.Equal(t, []progress.Kind{progress.KindError}, rec.kinds())
		})
	}
	assert.Empty(t, a.Keys())
	assert.Empty(t, b.Keys())
}

func TestRunRaceCancelled(t *testing.T) {
	slow := &objectprovider.MemoryObjectProviderInput{Latency: 30 * time.Millisecond}
	a := objectprovider.NewMemoryObjectProvider("alpha", slow)
	b := objectprovider.NewMemoryObjectProvider("beta", slow)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	orchestrator := NewRaceOrchestrator(&RaceOrchestratorInput{
		ProviderA:        a,
		ProviderB:        b,
		ProgressInterval: time.Millisecond,
	})
	_, err := orchestrator.RunRace(ctx, benchmark.BenchmarkRequest{ObjectSizeBytes: 16, ObjectCount: 10, Concurrency: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, len(a.Keys()), 10)
	assert.Empty(t, a.Reads())
}
