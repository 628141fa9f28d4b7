package loopsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loopsmith/loopsync/config"
	"github.com/loopsmith/loopsync/session"
	"github.com/loopsmith/loopsync/store"
	"github.com/loopsmith/loopsync/transport"
)

const (
	persistListener = "store"
	statsInterval   = 60 * time.Second
)

// Engine is the daemon orchestrator. It wires the MQTT bridge, the
// session machine, and the store together and manages their lifecycle.
type Engine struct {
	cfg config.Config

	machine *session.Machine
	store   *store.Store
	bridge  *transport.Bridge

	started time.Time
	mu      sync.Mutex
	wg      sync.WaitGroup
	running bool
	cancel  context.CancelFunc

	persisted   uint64
	persistErrs uint64
}

// New wires an engine from a validated configuration. Nothing touches
// the network until Run.
func New(cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e := &Engine{
		cfg:     cfg,
		machine: session.New(session.Config{Project: cfg.Project}),
		store:   st,
	}

	bridge, err := transport.New(transport.Config{
		BrokerURL:   cfg.Transport.BrokerURL,
		ClientID:    cfg.Transport.ClientID,
		TopicPrefix: cfg.Transport.TopicPrefix,
		Username:    cfg.Transport.Username,
		Password:    cfg.Transport.Password,
		Reconnect: transport.ReconnectConfig{
			MaxRetries:    cfg.Transport.MaxRetries,
			RetryDelay:    cfg.Transport.RetryDelay(),
			MaxRetryDelay: cfg.Transport.MaxRetryDelay(),
		},
	}, e.machine, transport.Callbacks{
		Status:   e.statusReport,
		Shutdown: e.stopFromCommand,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.bridge = bridge

	slog.Info("engine: configured",
		"project", cfg.Project,
		"broker", cfg.Transport.BrokerURL,
		"database", cfg.DatabasePath,
	)
	return e, nil
}

// NewFromFile loads the configuration file at path and wires an engine
// from it.
func NewFromFile(path string) (*Engine, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// Run starts the engine and blocks until ctx is cancelled, a shutdown
// command arrives over the broker, or the reconnect budget is
// exhausted.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine: already running")
	}
	e.running = true
	e.started = time.Now()
	e.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	// The store listener attaches before the broker connection so the
	// first finalized recording cannot slip past persistence.
	recs, err := e.machine.Subscribe(persistListener)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	e.wg.Add(2)
	go e.persistRecordings(recs)
	go e.logStats(ctx)

	slog.Info("engine: running", "project", e.cfg.Project)
	return e.bridge.Run(ctx)
}

// Shutdown tears the engine down in order: close the machine so the
// persistence worker drains, wait for workers within ctx, then close
// the store. A never-run engine only releases the store.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return e.store.Close()
	}
	e.mu.Unlock()

	slog.Info("engine: shutting down")

	e.machine.Close()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("engine: shutdown timed out waiting for workers")
	}

	if err := e.store.Close(); err != nil {
		slog.Error("engine: store close", "error", err)
	}

	e.mu.Lock()
	uptime := time.Since(e.started)
	e.running = false
	e.mu.Unlock()

	slog.Info("engine: stopped",
		"uptime", uptime,
		"recordings_persisted", atomic.LoadUint64(&e.persisted),
	)
	return nil
}

// ShutdownTimeout returns the configured graceful shutdown budget.
func (e *Engine) ShutdownTimeout() time.Duration {
	return e.cfg.ShutdownTimeout()
}

// statusReport answers a status command with the bridge's health
// picture plus the fields only the engine knows.
func (e *Engine) statusReport() transport.StatusReport {
	st := e.bridge.Status()
	st.Project = e.cfg.Project
	return st
}

// stopFromCommand cancels the run context after the bridge has
// acknowledged a shutdown command.
func (e *Engine) stopFromCommand() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		slog.Info("engine: stop requested over the command topic")
		cancel()
	}
}

func (e *Engine) persistRecordings(recs <-chan session.FinalizedRecording) {
	defer e.wg.Done()
	for rec := range recs {
		if err := e.store.SaveRecording(rec); err != nil {
			atomic.AddUint64(&e.persistErrs, 1)
			slog.Error("engine: persist recording", "id", rec.ID, "error", err)
			continue
		}
		atomic.AddUint64(&e.persisted, 1)
		slog.Info("engine: recording persisted",
			"id", rec.ID,
			"project", rec.Project,
			"duration_s", rec.DurationS,
			"takes_recorded", rec.Loop.TakesRecorded,
		)
	}
}

func (e *Engine) logStats(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := e.machine.Stats()
			slog.Info("engine: stats",
				"state", e.machine.State().String(),
				"connected", e.bridge.Connected(),
				"events", st.Events,
				"finalized", st.Finalized,
				"dropped_stale", st.DroppedStale,
				"persisted", atomic.LoadUint64(&e.persisted),
				"persist_errors", atomic.LoadUint64(&e.persistErrs),
			)
		}
	}
}
