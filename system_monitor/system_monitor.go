package systemmonitor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Octogonapus/StorageRace/report"
)

const DefaultInterval = time.Second

// Samples CPU, memory and network usage of the local host while a race runs.
type SystemMonitor interface {
	// Start sampling in the background until ctx is done or Stop is called.
	Start(ctx context.Context)
	// Stop sampling and wait for the sampler to exit.
	Stop()
	// Only safe to call after Stop.
	GetSystemMeasurements() *report.SystemMeasurements
}

type SystemMonitorInput struct {
	Interval time.Duration // DefaultInterval by default
	ProcRoot string        // "/proc" by default
}

type systemMonitor struct {
	interval time.Duration
	procRoot string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	sm       *report.SystemMeasurements
}

func NewSystemMonitor(input *SystemMonitorInput) SystemMonitor {
	if input == nil {
		input = &SystemMonitorInput{}
	}
	mon := &systemMonitor{
		interval: input.Interval,
		procRoot: input.ProcRoot,
		sm:       &report.SystemMeasurements{},
	}
	if mon.interval <= 0 {
		mon.interval = DefaultInterval
	}
	if mon.procRoot == "" {
		mon.procRoot = "/proc"
	}
	return mon
}

func (mon *systemMonitor) Start(ctx context.Context) {
	ctx, mon.cancel = context.WithCancel(ctx)
	mon.wg.Add(1)
	go mon.runMonitor(ctx)
}

func (mon *systemMonitor) Stop() {
	if mon.cancel != nil {
		mon.cancel()
	}
	mon.wg.Wait()
}

func (mon *systemMonitor) GetSystemMeasurements() *report.SystemMeasurements {
	return mon.sm
}

var maxJitter = time.Second

func (mon *systemMonitor) runMonitor(ctx context.Context) {
	defer mon.wg.Done()
	ticker := time.NewTicker(mon.interval)
	defer ticker.Stop()

	var prevCPU *cpuTimeStat
	lastWakeTime := time.Now()
	for {
		now := time.Now()
		jitter := now.Sub(lastWakeTime) - mon.interval
		if jitter > maxJitter {
			slog.Warn("SystemMonitor: jitter exceeded maximum", slog.Duration("jitter", jitter), slog.Duration("maxJitter", maxJitter))
		}
		lastWakeTime = now

		currCPU := parseCPUTimeStat(mon.readProc("stat"))
		if prevCPU != nil && currCPU != nil {
			mon.appendCPUMetrics(now, currCPU, prevCPU)
		}
		prevCPU = currCPU

		mon.appendMemoryMetrics(now, mon.readProc("meminfo"))
		mon.appendNetworkMetrics(now, mon.readProc("net/dev"))

		select {
		case <-ctx.Done():
			slog.Debug("SystemMonitor: stopped")
			return
		case <-ticker.C:
		}
	}
}

func (mon *systemMonitor) readProc(name string) []byte {
	path := filepath.Join(mon.procRoot, name)
	buf, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("SystemMonitor: failed to read", slog.String("path", path), slog.String("error", err.Error()))
		return nil
	}
	return buf
}
