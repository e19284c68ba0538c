package benchmark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Octogonapus/StorageRace/metrics"
	objectprovider "github.com/Octogonapus/StorageRace/object_provider"
	"github.com/Octogonapus/StorageRace/payload"
	"github.com/Octogonapus/StorageRace/progress"
	"github.com/Octogonapus/StorageRace/report"
	"github.com/Octogonapus/StorageRace/scheduler"
	transferstrategy "github.com/Octogonapus/StorageRace/transfer_strategy"
)

const DefaultPassTimeout = 30 * time.Minute

// Runs the upload and download passes of one provider.
type BenchmarkRunner interface {
	// Upload ObjectCount freshly generated objects. The returned specs feed Download.
	Upload(ctx context.Context) (*report.PassResult, []*objectprovider.ObjectSpec, error)

	// Read every object back, draining each body completely.
	Download(ctx context.Context, objects []*objectprovider.ObjectSpec) (*report.PassResult, error)
}

type BenchmarkRunnerInput struct {
	Provider objectprovider.ObjectProvider
	Request  BenchmarkRequest
	Reporter *progress.Reporter // may be nil

	// Upper bound for a whole pass. Cancelling the context given to Upload or Download only
	// stops new transfers from starting; transfers already running are bounded by this instead.
	PassTimeout time.Duration
}

type benchmarkRunner struct {
	input BenchmarkRunnerInput
}

// transferFunc moves one object and reports the bytes moved and how long the I/O took.
type transferFunc func(ctx context.Context, spec *objectprovider.ObjectSpec) (int64, time.Duration, error)

func NewBenchmarkRunner(input *BenchmarkRunnerInput) BenchmarkRunner {
	br := &benchmarkRunner{input: *input}
	if br.input.PassTimeout <= 0 {
		br.input.PassTimeout = DefaultPassTimeout
	}
	return br
}

func (br *benchmarkRunner) Upload(ctx context.Context) (*report.PassResult, []*objectprovider.ObjectSpec, error) {
	req := br.input.Request
	specs := NewObjectSpecs(req.KeyPrefix, req.ObjectCount, req.ObjectSizeBytes)
	res, err := br.run(ctx, report.Upload, specs, br.upload)
	if err != nil {
		return nil, nil, err
	}
	return res, specs, nil
}

func (br *benchmarkRunner) Download(ctx context.Context, objects []*objectprovider.ObjectSpec) (*report.PassResult, error) {
	return br.run(ctx, report.Download, objects, br.download)
}

// Single-shot bodies are generated before the clock starts. Chunked bodies are generated lazily
// while the provider reads them, so chunked latencies include PRNG time.
func (br *benchmarkRunner) upload(ctx context.Context, spec *objectprovider.ObjectSpec) (int64, time.Duration, error) {
	partSizeMB := br.input.Request.PartSizeMB
	strategy := transferstrategy.Select(spec.SizeBytes, partSizeMB, false)

	var body io.Reader
	if strategy.Mode == transferstrategy.SingleShot {
		body = bytes.NewReader(payload.Buffer(spec.SizeBytes))
	} else {
		body = payload.NewChunkSource(spec.SizeBytes, payload.DefaultChunkSize)
		strategy = transferstrategy.Select(spec.SizeBytes, partSizeMB, true)
	}

	tstart := time.Now()
	err := br.input.Provider.PutObject(ctx, spec, body, strategy)
	elapsed := time.Since(tstart)
	if err != nil {
		return 0, elapsed, err
	}
	return spec.SizeBytes, elapsed, nil
}

func (br *benchmarkRunner) download(ctx context.Context, spec *objectprovider.ObjectSpec) (int64, time.Duration, error) {
	tstart := time.Now()
	body, err := br.input.Provider.GetObject(ctx, spec.Key)
	if err != nil {
		return 0, time.Since(tstart), err
	}
	defer body.Close()

	// Reading the bytes is what is being measured, not just opening the object
	n, err := io.Copy(io.Discard, body)
	elapsed := time.Since(tstart)
	if err != nil {
		return n, elapsed, fmt.Errorf("reading object body failed: %w", err)
	}
	return n, elapsed, nil
}

func (br *benchmarkRunner) run(
	ctx context.Context,
	op report.Operation,
	specs []*objectprovider.ObjectSpec,
	transfer transferFunc,
) (*report.PassResult, error) {
	name := br.input.Provider.Name()
	total := len(specs)
	slog.Info("starting pass",
		slog.String("provider", name),
		slog.String("operation", string(op)),
		slog.Int("objects", total),
		slog.Int("concurrency", br.input.Request.Concurrency))

	ioCtx, cancelIO := context.WithTimeout(context.WithoutCancel(ctx), br.input.PassTimeout)
	defer cancelIO()
	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()
	stopOnTimeout := context.AfterFunc(ioCtx, stopDispatch)
	defer stopOnTimeout()

	var (
		latencies  = make([]float64, total)
		totalBytes atomic.Int64
		completed  atomic.Int64
		failed     atomic.Int64
	)
	tasks := make([]scheduler.Task, total)
	for i, spec := range specs {
		tasks[i] = func(context.Context) error {
			n, elapsed, err := transfer(ioCtx, spec)
			if err != nil {
				failed.Add(1)
				slog.Debug("transfer failed",
					slog.String("provider", name),
					slog.String("operation", string(op)),
					slog.String("key", spec.Key),
					slog.String("error", err.Error()))
				return &TransferError{Provider: name, Operation: op, Key: spec.Key, Err: err}
			}
			latencies[i] = metrics.Milliseconds(elapsed)
			totalBytes.Add(n)
			br.input.Reporter.Progress(name, op, int(completed.Add(1)), total)
			return nil
		}
	}

	tstart := time.Now()
	err := scheduler.Run(dispatchCtx, br.input.Request.Concurrency, tasks)
	elapsed := time.Since(tstart)
	if err != nil {
		if errors.Is(ioCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("pass timeout of %s exceeded: %w", br.input.PassTimeout, err)
		}
		passErr := &PassError{Provider: name, Operation: op, Failed: int(failed.Load()), Elapsed: elapsed, Err: err}
		slog.Error("pass failed", slog.String("provider", name), slog.String("operation", string(op)), slog.String("error", passErr.Error()))
		return nil, passErr
	}

	m := metrics.Compute(latencies, totalBytes.Load(), elapsed)
	slog.Info("finished pass",
		slog.String("provider", name),
		slog.String("operation", string(op)),
		slog.Int("objects", total),
		slog.Float64("throughputMBps", m.ThroughputMBps),
		slog.Float64("p50Ms", m.P50Ms),
		slog.Float64("p99Ms", m.P99Ms))

	return &report.PassResult{
		Provider:   name,
		Operation:  op,
		Count:      total,
		Metrics:    m,
		ObjectKeys: Keys(specs),
	}, nil
}
