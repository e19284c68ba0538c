package webapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Octogonapus/StorageRace/benchmark"
	benchmarkorchestrator "github.com/Octogonapus/StorageRace/benchmark_orchestrator"
	objectprovider "github.com/Octogonapus/StorageRace/object_provider"
	"github.com/Octogonapus/StorageRace/progress"
	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
)

// How many progress events may queue up behind a slow client before they are dropped.
const eventBuffer = 64

const defaultWriteWait = 10 * time.Second

type ServerInput struct {
	Addr      string
	ProviderA objectprovider.ObjectProvider
	ProviderB objectprovider.ObjectProvider

	// Used for any query parameter the client leaves out.
	Defaults benchmark.BenchmarkRequest

	ProgressInterval time.Duration
	PassTimeout      time.Duration

	// How long a single event write may take before the client is considered gone.
	WriteWait time.Duration
}

// Server runs races on request and streams their events over a websocket. Only one race runs at
// a time.
type Server struct {
	input    *ServerInput
	upgrader websocket.Upgrader
	busy     atomic.Bool
}

func NewServer(input *ServerInput) *Server {
	if input.WriteWait <= 0 {
		input.WriteWait = defaultWriteWait
	}
	return &Server{input: input}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/race", s.serveRace)
	return mux
}

// Serve listens on the configured address until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{Addr: s.input.Addr, Handler: s.Handler()}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	slog.Info("serving races", slog.String("addr", s.input.Addr))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) serveRace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := s.parseRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !s.busy.CompareAndSwap(false, true) {
		http.Error(w, "A race is already running", http.StatusConflict)
		return
	}
	defer s.busy.Store(false)

	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go readLoop(c, cancel)

	observer := progress.NewChannelObserver(eventBuffer)
	go func() {
		defer observer.Close()
		_, _ = benchmarkorchestrator.NewRaceOrchestrator(&benchmarkorchestrator.RaceOrchestratorInput{
			ProviderA:        s.input.ProviderA,
			ProviderB:        s.input.ProviderB,
			Observer:         observer,
			ProgressInterval: s.input.ProgressInterval,
			PassTimeout:      s.input.PassTimeout,
		}).RunRace(ctx, req)
	}()

	// A client that stops reading makes a write time out. Keep draining after a failed write so
	// the race never blocks on a full channel.
	writeFailed := false
	for e := range observer.Events() {
		if writeFailed {
			continue
		}
		_ = c.SetWriteDeadline(time.Now().Add(s.input.WriteWait))
		err := c.WriteJSON(e)
		if err != nil {
			slog.Warn("failed to write race event, aborting race", slog.String("error", err.Error()))
			writeFailed = true
			cancel()
		}
	}
	if observer.Dropped() > 0 {
		slog.Debug("dropped progress events for slow client", slog.Int64("dropped", observer.Dropped()))
	}
	if !writeFailed {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(s.input.WriteWait))
	}
}

// readLoop discards client messages and cancels the race once the client goes away.
func readLoop(c *websocket.Conn, cancel context.CancelFunc) {
	for {
		if _, _, err := c.NextReader(); err != nil {
			cancel()
			return
		}
	}
}

func (s *Server) parseRequest(r *http.Request) (benchmark.BenchmarkRequest, error) {
	req := s.input.Defaults
	q := r.URL.Query()

	if v := q.Get("size"); v != "" {
		size, err := humanize.ParseBytes(v)
		if err != nil {
			return req, fmt.Errorf("invalid size: %w", err)
		}
		req.ObjectSizeBytes = int64(size)
	}
	for _, p := range []struct {
		name string
		out  *int
	}{
		{"count", &req.ObjectCount},
		{"concurrency", &req.Concurrency},
		{"partSizeMB", &req.PartSizeMB},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid %s: %w", p.name, err)
		}
		*p.out = n
	}
	if q.Has("prefix") {
		req.KeyPrefix = q.Get("prefix")
	}
	return req, req.Validate()
}
