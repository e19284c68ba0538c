package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sort"
	"strings"
)

// Profiles this process while a race runs.
type Profiler interface {
	Start() error
	// Stop finishes the profile and returns the path it was written to.
	Stop() (string, error)
}

type ProfilerKind string

const (
	None ProfilerKind = "none"
	CPU  ProfilerKind = "cpu"
	Heap ProfilerKind = "heap"
)

type ProfilerFactory func(saveDir string) Profiler

var allProfilers map[ProfilerKind]ProfilerFactory

func RegisterProfiler(kind ProfilerKind, factory ProfilerFactory) {
	if allProfilers == nil {
		allProfilers = map[ProfilerKind]ProfilerFactory{
			None: func(string) Profiler { panic("Profiler kind none is reserved and can't be created") },
		}
	}
	allProfilers[kind] = factory
}

func init() {
	RegisterProfiler(CPU, func(saveDir string) Profiler { return &cpuProfiler{path: filepath.Join(saveDir, "cpu.pprof")} })
	RegisterProfiler(Heap, func(saveDir string) Profiler { return &heapProfiler{path: filepath.Join(saveDir, "heap.pprof")} })
}

func NewProfiler(kind ProfilerKind, saveDir string) (Profiler, error) {
	if kind == None {
		return nil, fmt.Errorf("Profiler kind none is reserved and can't be created")
	}

	factory, ok := allProfilers[kind]
	if !ok {
		return nil, fmt.Errorf("unknown profiler kind: %s", kind)
	}
	return factory(saveDir), nil
}

func ExplainProfilers() string {
	kinds := make([]string, 0, len(allProfilers))
	for kind := range allProfilers {
		kinds = append(kinds, "\""+string(kind)+"\"")
	}
	sort.Strings(kinds)
	return strings.Join(kinds, ", ")
}

type cpuProfiler struct {
	path string
	f    *os.File
}

func (p *cpuProfiler) Start() error {
	f, err := os.Create(p.path)
	if err != nil {
		return fmt.Errorf("failed to create cpu profile: %w", err)
	}
	err = pprof.StartCPUProfile(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to start cpu profile: %w", err)
	}
	p.f = f
	return nil
}

func (p *cpuProfiler) Stop() (string, error) {
	if p.f == nil {
		return "", fmt.Errorf("cpu profiler was not started")
	}
	pprof.StopCPUProfile()
	err := p.f.Close()
	p.f = nil
	return p.path, err
}

// Snapshots the heap when stopped.
type heapProfiler struct {
	path string
}

func (p *heapProfiler) Start() error {
	return nil
}

func (p *heapProfiler) Stop() (string, error) {
	f, err := os.Create(p.path)
	if err != nil {
		return "", fmt.Errorf("failed to create heap profile: %w", err)
	}
	defer f.Close()
	runtime.GC()
	err = pprof.WriteHeapProfile(f)
	if err != nil {
		return "", fmt.Errorf("failed to write heap profile: %w", err)
	}
	return p.path, nil
}
