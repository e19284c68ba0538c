package benchmarkorchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Octogonapus/StorageRace/benchmark"
	objectprovider "github.com/Octogonapus/StorageRace/object_provider"
	"github.com/Octogonapus/StorageRace/progress"
	"github.com/Octogonapus/StorageRace/report"
	"github.com/Octogonapus/StorageRace/scheduler"
	"github.com/Octogonapus/StorageRace/util"
	"github.com/google/uuid"
)

type raceOrchestrator struct {
	input *RaceOrchestratorInput
}

// The outcome of one provider's pass within a phase.
type passOutcome struct {
	result  *report.PassResult
	objects []*objectprovider.ObjectSpec
}

func NewRaceOrchestrator(input *RaceOrchestratorInput) RaceOrchestrator {
	return &raceOrchestrator{input: input}
}

func (o *raceOrchestrator) RunRace(ctx context.Context, req benchmark.BenchmarkRequest) (*report.RaceResult, error) {
	raceID := uuid.NewString()
	reporter := progress.NewReporter(o.input.Observer, o.input.ProgressInterval, raceID)

	err := o.check(&req)
	if err != nil {
		reporter.Error(err)
		return nil, err
	}

	reqMap := util.StructMap(req)
	nameA, nameB := o.input.ProviderA.Name(), o.input.ProviderB.Name()
	slog.Info("starting race",
		slog.String("raceID", raceID),
		slog.String("providerA", nameA),
		slog.String("providerB", nameB),
		slog.Any("request", reqMap))
	reporter.Start(reqMap, req.ObjectCount)

	runnerA := o.newRunner(o.input.ProviderA, req, reporter)
	runnerB := o.newRunner(o.input.ProviderB, req, reporter)

	var uploadA, uploadB passOutcome
	err = scheduler.Run(ctx, 2, []scheduler.Task{
		func(ctx context.Context) error {
			return upload(ctx, runnerA, &uploadA)
		},
		func(ctx context.Context) error {
			return upload(ctx, runnerB, &uploadB)
		},
	})
	if err != nil {
		err = fmt.Errorf("upload phase failed: %w", err)
		reporter.Error(err)
		return nil, err
	}

	reporter.PhaseChange(report.Download)

	var downloadA, downloadB passOutcome
	err = scheduler.Run(ctx, 2, []scheduler.Task{
		func(ctx context.Context) error {
			return download(ctx, runnerA, uploadA.objects, &downloadA)
		},
		func(ctx context.Context) error {
			return download(ctx, runnerB, uploadB.objects, &downloadB)
		},
	})
	if err != nil {
		err = fmt.Errorf("download phase failed: %w", err)
		reporter.Error(err)
		return nil, err
	}

	result := report.NewRaceResult(raceID, reqMap,
		*uploadA.result, *uploadB.result, *downloadA.result, *downloadB.result)
	slog.Info("finished race",
		slog.String("raceID", raceID),
		slog.String("uploadWinner", result.Winner(report.Upload)),
		slog.String("downloadWinner", result.Winner(report.Download)))
	reporter.Done(result)
	return result, nil
}

func (o *raceOrchestrator) check(req *benchmark.BenchmarkRequest) error {
	if o.input.ProviderA == nil || o.input.ProviderB == nil {
		return fmt.Errorf("%w: two providers are required", benchmark.ErrInvalidRequest)
	}
	if o.input.ProviderA.Name() == o.input.ProviderB.Name() {
		return fmt.Errorf("%w: providers must have distinct names, both are %q", benchmark.ErrInvalidRequest, o.input.ProviderA.Name())
	}
	return req.Validate()
}

func (o *raceOrchestrator) newRunner(p objectprovider.ObjectProvider, req benchmark.BenchmarkRequest, reporter *progress.Reporter) benchmark.BenchmarkRunner {
	return benchmark.NewBenchmarkRunner(&benchmark.BenchmarkRunnerInput{
		Provider:    p,
		Request:     req,
		Reporter:    reporter,
		PassTimeout: o.input.PassTimeout,
	})
}

func upload(ctx context.Context, runner benchmark.BenchmarkRunner, out *passOutcome) error {
	res, objects, err := runner.Upload(ctx)
	if err != nil {
		return err
	}
	out.result = res
	out.objects = objects
	return nil
}

func download(ctx context.Context, runner benchmark.BenchmarkRunner, objects []*objectprovider.ObjectSpec, out *passOutcome) error {
	res, err := runner.Download(ctx, objects)
	if err != nil {
		return err
	}
	out.result = res
	return nil
}
