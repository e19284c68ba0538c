package progress

import (
	"sync"
	"time"

	"github.com/Octogonapus/StorageRace/report"
	"golang.org/x/time/rate"
)

const DefaultInterval = 150 * time.Millisecond

// How many accepted events may wait for a slow observer. Intermediate progress events are
// dropped once it is full.
const queueSize = 256

// Reporter relays race events to an observer. Lifecycle events and the final progress event of
// a pass are always delivered. Other progress events are delivered at most once per interval and
// dropped otherwise.
//
// Events are handed to the observer from a single goroutine owned by the Reporter, so a slow
// observer never runs on the caller's goroutine. Done and Error are terminal: they flush the
// queue before returning.
type Reporter struct {
	observer  Observer
	raceID    string
	queue     chan Event
	delivered chan struct{}

	mu      sync.Mutex
	limiter *rate.Limiter
	dropped int
	closed  bool
}

func NewReporter(observer Observer, minInterval time.Duration, raceID string) *Reporter {
	if minInterval <= 0 {
		minInterval = DefaultInterval
	}
	if observer == nil {
		observer = ObserverFunc(func(Event) {})
	}
	r := &Reporter{
		observer:  observer,
		raceID:    raceID,
		queue:     make(chan Event, queueSize),
		delivered: make(chan struct{}),
		limiter:   rate.NewLimiter(rate.Every(minInterval), 1),
	}
	go r.deliver()
	return r
}

func (r *Reporter) RaceID() string {
	return r.raceID
}

func (r *Reporter) Start(request map[string]any, total int) {
	r.emit(Event{Kind: KindStart, Request: request, Total: total})
}

func (r *Reporter) PhaseChange(op report.Operation) {
	r.emit(Event{Kind: KindPhase, Operation: op})
}

func (r *Reporter) Done(result *report.RaceResult) {
	r.emit(Event{Kind: KindDone, Result: result})
	r.Close()
}

func (r *Reporter) Error(err error) {
	r.emit(Event{Kind: KindError, Message: err.Error()})
	r.Close()
}

func (r *Reporter) Progress(provider string, op report.Operation, completed, total int) {
	r.emit(Event{
		Kind:      KindProgress,
		Provider:  provider,
		Operation: op,
		Completed: completed,
		Total:     total,
	})
}

// Dropped is how many progress events were coalesced away so far.
func (r *Reporter) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close waits until every accepted event reached the observer. Events emitted afterwards are
// ignored. Safe to call more than once.
func (r *Reporter) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.delivered
}

func (r *Reporter) deliver() {
	defer close(r.delivered)
	for e := range r.queue {
		r.observer.Notify(e)
	}
}

func (r *Reporter) emit(e Event) {
	if r == nil {
		return
	}
	e.RaceID = r.raceID
	e.Time = time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if e.Kind.IsLifecycle() || e.Completed == e.Total {
		r.queue <- e
		return
	}
	if !r.limiter.AllowN(e.Time, 1) {
		r.dropped++
		return
	}
	select {
	case r.queue <- e:
	default:
		r.dropped++
	}
}
