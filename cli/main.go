package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"text/tabwriter"

	"github.com/Octogonapus/StorageRace/benchmark"
	benchmarkorchestrator "github.com/Octogonapus/StorageRace/benchmark_orchestrator"
	"github.com/Octogonapus/StorageRace/config"
	objectprovider "github.com/Octogonapus/StorageRace/object_provider"
	"github.com/Octogonapus/StorageRace/profile"
	"github.com/Octogonapus/StorageRace/progress"
	"github.com/Octogonapus/StorageRace/report"
	systemmonitor "github.com/Octogonapus/StorageRace/system_monitor"
	"github.com/Octogonapus/StorageRace/webapi"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// Used when no config file is given, so a race can be tried without any cloud credentials.
const defaultConfig = `
providers:
  - name: memory-a
    type: memory
  - name: memory-b
    type: memory
    options:
      latency: 1ms
`

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file. Without one, two in-memory providers are raced.")
	providerA := flag.String("provider-a", "", "Name of the first provider in the config. Defaults to the first configured provider.")
	providerB := flag.String("provider-b", "", "Name of the second provider in the config. Defaults to the second configured provider.")
	objectSize := flag.String("object-size", "", "Size of each object, e.g. 8MiB. Overrides the config.")
	objectCount := flag.Int("object-count", 0, "Number of objects each provider transfers per phase. Overrides the config.")
	concurrency := flag.Int("concurrency", 0, "Maximum number of in-flight transfers per provider. Overrides the config.")
	prefix := flag.String("prefix", "", "Prefix for every object key. Overrides the config.")
	partSizeMB := flag.Int("part-size-mb", 0, "Part size hint in MiB for chunked uploads. Overrides the config.")
	resultDir := flag.String("result-dir", "results", "Directory the report is written into.")
	monitor := flag.Bool("monitor", false, "Sample host CPU, memory and network usage during the race.")
	cleanup := flag.Bool("cleanup", false, "Delete every object the race created once it finishes.")
	serve := flag.Bool("serve", false, "Serve races over a websocket instead of running one.")
	quiet := flag.Bool("quiet", false, "Do not draw progress bars.")
	logLevel := flag.String("log-level", "info", "One of: debug, info, warn, error.")
	profiler := flag.String("profiler", "none", fmt.Sprintf("Profile this process during the race. Must be one of: %s.", profile.ExplainProfilers()))
	profileSaveDir := flag.String("profile-dir", ".", "Save profiling results into this directory.")
	flag.Parse()

	var level slog.Level
	err := level.UnmarshalText([]byte(*logLevel))
	if err != nil {
		panic(fmt.Errorf("invalid log-level: %w", err))
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	var cfg *config.Config
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.Parse([]byte(defaultConfig))
	}
	if err != nil {
		panic(err)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "object-size":
			size, err := humanize.ParseBytes(*objectSize)
			if err != nil {
				panic(fmt.Errorf("invalid object-size: %w", err))
			}
			cfg.Race.ObjectSizeBytes = int64(size)
		case "object-count":
			cfg.Race.ObjectCount = *objectCount
		case "concurrency":
			cfg.Race.Concurrency = *concurrency
		case "prefix":
			cfg.Race.KeyPrefix = *prefix
		case "part-size-mb":
			cfg.Race.PartSizeMB = *partSizeMB
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, infoA := newProvider(ctx, cfg, *providerA, 0)
	b, infoB := newProvider(ctx, cfg, *providerB, 1)

	if *serve {
		err = webapi.NewServer(&webapi.ServerInput{
			Addr:             cfg.Server.Addr,
			ProviderA:        a,
			ProviderB:        b,
			Defaults:         cfg.Request(),
			ProgressInterval: cfg.Race.ProgressInterval,
			PassTimeout:      cfg.Race.PassTimeout,
		}).Serve(ctx)
		if err != nil {
			panic(err)
		}
		return
	}

	var observer progress.Observer = progress.NewLogObserver()
	if !*quiet {
		observer = progress.Multi(observer, progress.NewBarObserver(os.Stderr))
	}

	var prof profile.Profiler
	if profile.ProfilerKind(*profiler) != profile.None {
		prof, err = profile.NewProfiler(profile.ProfilerKind(*profiler), *profileSaveDir)
		if err != nil {
			panic(err)
		}
		err = prof.Start()
		if err != nil {
			panic(err)
		}
	}

	var mon systemmonitor.SystemMonitor
	if *monitor {
		mon = systemmonitor.NewSystemMonitor(nil)
		mon.Start(ctx)
	}

	result, raceErr := benchmarkorchestrator.NewRaceOrchestrator(&benchmarkorchestrator.RaceOrchestratorInput{
		ProviderA:        a,
		ProviderB:        b,
		Observer:         observer,
		ProgressInterval: cfg.Race.ProgressInterval,
		PassTimeout:      cfg.Race.PassTimeout,
	}).RunRace(ctx, cfg.Request())

	rep := &report.Report{
		Providers: []report.ProviderInfo{infoA, infoB},
		Race:      result,
	}
	if prof != nil {
		profilePath, err := prof.Stop()
		if err != nil {
			slog.Error("failed to save profile", slog.String("error", err.Error()))
		} else {
			slog.Info("saved profile", slog.String("path", profilePath))
		}
	}
	if mon != nil {
		mon.Stop()
		rep.SystemMeasurements = mon.GetSystemMeasurements()
	}
	if raceErr != nil {
		rep.Error = raceErr.Error()
	}

	err = writeReport(*resultDir, rep)
	if err != nil {
		panic(err)
	}

	if raceErr != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stdout, "Race failed: %s\n", raceErr)
		var passErr *benchmark.PassError
		if errors.As(raceErr, &passErr) {
			fmt.Fprintf(os.Stdout, "%s %s: %d transfers failed after %s\n", passErr.Provider, passErr.Operation, passErr.Failed, passErr.Elapsed)
		}
		os.Exit(1)
	}

	printSummary(os.Stdout, result)

	if *cleanup {
		// The race context may already be cancelled.
		cleanupObjects(context.WithoutCancel(ctx), result, a, b)
	}
}

func newProvider(ctx context.Context, cfg *config.Config, name string, index int) (objectprovider.ObjectProvider, report.ProviderInfo) {
	var pc *config.ProviderConfig
	if name != "" {
		var err error
		pc, err = cfg.Provider(name)
		if err != nil {
			panic(err)
		}
	} else if index < len(cfg.Providers) {
		pc = &cfg.Providers[index]
	} else {
		panic(fmt.Errorf("provider %d was not given and the config only has %d providers", index+1, len(cfg.Providers)))
	}

	p, err := objectprovider.NewObjectProvider(ctx, pc.Type, pc.Name, pc.Options)
	if err != nil {
		panic(err)
	}
	return p, report.ProviderInfo{Name: pc.Name, Type: pc.Type}
}

func writeReport(dir string, rep *report.Report) error {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return err
	}
	bytes, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	return os.WriteFile(path.Join(dir, "report.json"), bytes, 0o644)
}

func printSummary(w io.Writer, result *report.RaceResult) {
	bold := color.New(color.Bold)
	winner := color.New(color.FgGreen, color.Bold)

	bold.Fprintf(w, "\nRace %s\n", result.RaceID)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tOPERATION\tOBJECTS\tBYTES\tDURATION\tMiB/s\tP50 ms\tP95 ms\tP99 ms")
	for _, p := range result.Passes {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.0f ms\t%.2f\t%.2f\t%.2f\t%.2f\n",
			p.Provider,
			p.Operation,
			p.Count,
			humanize.IBytes(uint64(p.Metrics.TotalBytes)),
			p.Metrics.DurationMs,
			p.Metrics.ThroughputMBps,
			p.Metrics.P50Ms,
			p.Metrics.P95Ms,
			p.Metrics.P99Ms)
	}
	_ = tw.Flush()

	for _, op := range []report.Operation{report.Upload, report.Download} {
		fmt.Fprintf(w, "Fastest %s: ", op)
		winner.Fprintln(w, result.Winner(op))
	}
}

func cleanupObjects(ctx context.Context, result *report.RaceResult, providers ...objectprovider.ObjectProvider) {
	for _, p := range providers {
		cleaner, ok := p.(objectprovider.Cleaner)
		if !ok {
			slog.Warn("provider does not support cleanup", slog.String("provider", p.Name()))
			continue
		}
		pass, err := result.Pass(p.Name(), report.Upload)
		if err != nil {
			slog.Error("no upload pass to clean up", slog.String("provider", p.Name()), slog.String("error", err.Error()))
			continue
		}
		err = cleaner.DeleteObjects(ctx, pass.ObjectKeys)
		if err != nil {
			slog.Error("failed to delete objects", slog.String("provider", p.Name()), slog.String("error", err.Error()))
			continue
		}
		slog.Info("deleted objects", slog.String("provider", p.Name()), slog.Int("count", len(pass.ObjectKeys)))
	}
}
