package progress

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Octogonapus/StorageRace/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Kind{}
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func TestReporterCoalescesBursts(t *testing.T) {
	rec := &recorder{}
	r := NewReporter(rec, 150*time.Millisecond, "race")

	start := time.Now()
	for i := 1; i <= 100; i++ {
		r.Progress("a", report.Upload, i, 100)
	}
	require.Less(t, time.Since(start), 150*time.Millisecond, "burst must fit in one interval for this test to be meaningful")
	r.Close()

	assert.Less(t, len(rec.events), 100)
	last := rec.events[len(rec.events)-1]
	assert.Equal(t, 100, last.Completed)
	assert.Equal(t, 100, last.Total)
	assert.Equal(t, "race", last.RaceID)
	assert.Equal(t, 100-len(rec.events), r.Dropped())
}

func TestReporterAlwaysDeliversLifecycle(t *testing.T) {
	rec := &recorder{}
	r := NewReporter(rec, time.Hour, "race")

	r.Start(map[string]any{"ObjectCount": 2}, 2)
	r.Progress("a", report.Upload, 1, 2)
	r.Progress("a", report.Upload, 1, 2)
	r.PhaseChange(report.Download)
	r.Progress("a", report.Download, 2, 2)
	r.Done(&report.RaceResult{RaceID: "race"})

	assert.Equal(t, []Kind{KindStart, KindProgress, KindPhase, KindProgress, KindDone}, rec.kinds())
}

func TestReporterErrorIsTerminal(t *testing.T) {
	rec := &recorder{}
	r := NewReporter(rec, time.Hour, "race")

	r.Start(nil, 1)
	r.Error(errors.New("boom"))
	r.Progress("a", report.Upload, 1, 1)
	r.Done(nil)

	assert.Equal(t, []Kind{KindStart, KindError}, rec.kinds())
	assert.Equal(t, "boom", rec.events[1].Message)
}

func TestSlowObserverDoesNotBlockProgress(t *testing.T) {
	release := make(chan struct{})
	rec := &recorder{}
	slow := ObserverFunc(func(e Event) {
		<-release
		rec.Notify(e)
	})
	r := NewReporter(slow, time.Millisecond, "race")

	start := time.Now()
	for i := 1; i <= 50; i++ {
		r.Progress("a", report.Upload, i, 50)
		time.Sleep(2 * time.Millisecond)
	}
	// the observer has not consumed a single event yet
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, rec.kinds())

	close(release)
	r.Close()
	kinds := rec.kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, 50, rec.events[len(rec.events)-1].Completed)
}

func TestReporterDeliversAgainAfterInterval(t *testing.T) {
	rec := &recorder{}
	r := NewReporter(rec, 20*time.Millisecond, "race")
	r.Progress("a", report.Upload, 1, 10)
	r.Progress("a", report.Upload, 2, 10)
	time.Sleep(40 * time.Millisecond)
	r.Progress("a", report.Upload, 3, 10)
	r.Close()
	assert.Len(t, rec.events, 2)
	assert.Equal(t, 3, rec.events[1].Completed)
}

func TestNilReporterIsSafe(t *testing.T) {
	var r *Reporter
	assert.NotPanics(t, func() {
		r.Progress("a", report.Upload, 1, 1)
		r.Done(nil)
		r.Close()
	})
}

func TestChannelObserver(t *testing.T) {
	c := NewChannelObserver(2)
	c.Notify(Event{Kind: KindStart})
	c.Notify(Event{Kind: KindProgress, Completed: 1, Total: 3})
	c.Notify(Event{Kind: KindProgress, Completed: 2, Total: 3})
	assert.Equal(t, int64(1), c.Dropped())

	go func() {
		c.Notify(Event{Kind: KindDone})
		c.Close()
	}()
	got := []Kind{}
	for e := range c.Events() {
		got = append(got, e.Kind)
	}
	assert.Equal(t, []Kind{KindStart, KindProgress, KindDone}, got)
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi(a, nil, b)
	m.Notify(Event{Kind: KindDone})
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestBarObserver(t *testing.T) {
	buf := &bytes.Buffer{}
	bar := NewBarObserver(buf)
	assert.NotPanics(t, func() {
		bar.Notify(Event{Kind: KindProgress, Provider: "a", Operation: report.Upload, Completed: 1, Total: 2})
		bar.Notify(Event{Kind: KindStart, Total: 2})
		bar.Notify(Event{Kind: KindProgress, Provider: "a", Operation: report.Upload, Completed: 2, Total: 2})
		bar.Notify(Event{Kind: KindProgress, Provider: "b", Operation: report.Upload, Completed: 2, Total: 2})
		bar.Notify(Event{Kind: KindPhase, Operation: report.Download})
		bar.Notify(Event{Kind: KindProgress, Provider: "a", Operation: report.Download, Completed: 1, Total: 2})
		bar.Notify(Event{Kind: KindDone})
	})
	assert.Contains(t, buf.String(), "Uploading")
}
