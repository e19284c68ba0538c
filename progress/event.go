package progress

import (
	"time"

	"github.com/Octogonapus/StorageRace/report"
)

type Kind string

const (
	KindStart    Kind = "start"
	KindPhase    Kind = "phase"
	KindProgress Kind = "progress"
	KindDone     Kind = "done"
	KindError    Kind = "error"
)

// IsLifecycle reports whether events of this kind bypass rate limiting.
func (k Kind) IsLifecycle() bool {
	return k != KindProgress
}

type Event struct {
	Kind      Kind               `json:"kind"`
	RaceID    string             `json:"raceId"`
	Time      time.Time          `json:"time"`
	Provider  string             `json:"provider,omitempty"`
	Operation report.Operation   `json:"operation,omitempty"`
	Completed int                `json:"completed,omitempty"`
	Total     int                `json:"total,omitempty"`
	Message   string             `json:"message,omitempty"`
	Request   map[string]any     `json:"request,omitempty"`
	Result    *report.RaceResult `json:"result,omitempty"`
}

// An Observer receives race events. Calls are serialized by the Reporter.
type Observer interface {
	Notify(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) {
	f(e)
}

type multiObserver []Observer

func (m multiObserver) Notify(e Event) {
	for _, o := range m {
		o.Notify(e)
	}
}

// Multi fans every event out to each non-nil observer in order.
func Multi(observers ...Observer) Observer {
	out := multiObserver{}
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}
