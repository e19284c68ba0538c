package benchmarkorchestrator

import (
	"context"
	"time"

	"github.com/Octogonapus/StorageRace/benchmark"
	objectprovider "github.com/Octogonapus/StorageRace/object_provider"
	"github.com/Octogonapus/StorageRace/progress"
	"github.com/Octogonapus/StorageRace/report"
)

// Races two providers: both upload concurrently, then both download what they uploaded.
type RaceOrchestrator interface {
	// Run one race. On failure no partial result is returned and the observer receives an
	// error event.
	RunRace(ctx context.Context, req benchmark.BenchmarkRequest) (*report.RaceResult, error)
}

type RaceOrchestratorInput struct {
	ProviderA objectprovider.ObjectProvider
	ProviderB objectprovider.ObjectProvider
	Observer  progress.Observer // may be nil

	ProgressInterval time.Duration // progress.DefaultInterval by default
	PassTimeout      time.Duration // benchmark.DefaultPassTimeout by default
}

// RunRace runs a single race with default intervals and timeouts.
func RunRace(
	ctx context.Context,
	req benchmark.BenchmarkRequest,
	providerA objectprovider.ObjectProvider,
	providerB objectprovider.ObjectProvider,
	observer progress.Observer,
) (*report.RaceResult, error) {
	return NewRaceOrchestrator(&RaceOrchestratorInput{
		ProviderA: providerA,
		ProviderB: providerB,
		Observer:  observer,
	}).RunRace(ctx, req)
}
