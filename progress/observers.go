package progress

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/Octogonapus/StorageRace/report"
	"github.com/schollz/progressbar/v3"
)

// NewLogObserver logs lifecycle events at info level and progress at debug level.
func NewLogObserver() Observer {
	return ObserverFunc(func(e Event) {
		switch e.Kind {
		case KindStart:
			slog.Info("race started", slog.String("raceID", e.RaceID), slog.Any("request", e.Request))
		case KindPhase:
			slog.Info("race phase changed", slog.String("raceID", e.RaceID), slog.String("operation", string(e.Operation)))
		case KindProgress:
			slog.Debug("race progress",
				slog.String("raceID", e.RaceID),
				slog.String("provider", e.Provider),
				slog.String("operation", string(e.Operation)),
				slog.Int("completed", e.Completed),
				slog.Int("total", e.Total))
		case KindDone:
			slog.Info("race finished", slog.String("raceID", e.RaceID))
		case KindError:
			slog.Error("race failed", slog.String("raceID", e.RaceID), slog.String("error", e.Message))
		}
	})
}

// ChannelObserver forwards events to a buffered channel. Progress events are dropped when the
// buffer is full; lifecycle events wait for room.
type ChannelObserver struct {
	events  chan Event
	dropped atomic.Int64
}

func NewChannelObserver(buffer int) *ChannelObserver {
	return &ChannelObserver{events: make(chan Event, buffer)}
}

func (c *ChannelObserver) Notify(e Event) {
	if e.Kind.IsLifecycle() {
		c.events <- e
		return
	}
	select {
	case c.events <- e:
	default:
		c.dropped.Add(1)
	}
}

func (c *ChannelObserver) Events() <-chan Event {
	return c.events
}

func (c *ChannelObserver) Dropped() int64 {
	return c.dropped.Load()
}

// Close must only be called once no more events can be sent.
func (c *ChannelObserver) Close() {
	close(c.events)
}

// BarObserver draws one terminal progress bar per phase covering both providers.
type BarObserver struct {
	w         io.Writer
	bar       *progressbar.ProgressBar
	op        report.Operation
	perPass   int
	completed map[string]int
}

func NewBarObserver(w io.Writer) *BarObserver {
	return &BarObserver{w: w, completed: map[string]int{}}
}

func (b *BarObserver) Notify(e Event) {
	switch e.Kind {
	case KindStart:
		b.perPass = e.Total
		b.newBar(report.Upload)
	case KindPhase:
		b.finish()
		b.newBar(e.Operation)
	case KindProgress:
		if b.bar == nil || e.Operation != b.op {
			return
		}
		b.completed[e.Provider] = e.Completed
		sum := 0
		for _, n := range b.completed {
			sum += n
		}
		b.bar.Describe(b.describe())
		_ = b.bar.Set(sum)
	case KindDone, KindError:
		b.finish()
	}
}

func (b *BarObserver) newBar(op report.Operation) {
	b.op = op
	b.completed = map[string]int{}
	b.bar = progressbar.NewOptions(2*b.perPass,
		progressbar.OptionSetWriter(b.w),
		progressbar.OptionSetDescription(b.describe()),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
	)
}

func (b *BarObserver) describe() string {
	verb := "Uploading"
	if b.op == report.Download {
		verb = "Downloading"
	}
	providers := make([]string, 0, len(b.completed))
	for p := range b.completed {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	parts := make([]string, 0, len(providers))
	for _, p := range providers {
		parts = append(parts, fmt.Sprintf("%s %d/%d", p, b.completed[p], b.perPass))
	}
	if len(parts) == 0 {
		return verb + ":"
	}
	return fmt.Sprintf("%s (%s):", verb, strings.Join(parts, ", "))
}

func (b *BarObserver) finish() {
	if b.bar != nil {
		_ = b.bar.Finish()
		b.bar = nil
	}
}
