package loopsync

import (
	"context"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loopsmith/loopsync/config"
	"github.com/loopsmith/loopsync/session"
)

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Project = "garage"
	cfg.DatabasePath = ":memory:"
	return cfg
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Shutdown(context.Background()) })
	return e
}

func engineSnap(at time.Time, record bool, songBeats float64) session.TransportSnapshot {
	return session.TransportSnapshot{
		RecordMode:      record,
		SongTimeBeats:   songBeats,
		BPM:             120,
		TSNum:           4,
		TSDen:           4,
		LoopLengthBeats: 8,
		At:              at,
	}
}

func TestNewWiresComponents(t *testing.T) {
	e := newTestEngine(t)
	if e.machine == nil || e.bridge == nil || e.store == nil {
		t.Fatal("engine is missing a component")
	}
	if e.bridge.Connected() {
		t.Error("bridge connected before Run")
	}
	if got := e.ShutdownTimeout(); got != 5*time.Second {
		t.Errorf("shutdown timeout = %v", got)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Transport.BrokerURL = ""
	if _, err := New(cfg); err == nil {
		t.Fatal("empty broker URL accepted")
	}
}

func TestPersistWorkerStoresFinalizedRecording(t *testing.T) {
	e := newTestEngine(t)

	// Attach the worker the way Run does, without a broker.
	recs, err := e.machine.Subscribe(persistListener)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	e.wg.Add(1)
	go e.persistRecordings(recs)

	start := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	if err := e.machine.HandleSnapshot(engineSnap(start, true, 0)); err != nil {
		t.Fatalf("record on: %v", err)
	}
	stop := start.Add(10500 * time.Millisecond)
	if err := e.machine.HandleSnapshot(engineSnap(stop, false, 21)); err != nil {
		t.Fatalf("record off: %v", err)
	}

	e.machine.Close()
	e.wg.Wait()

	rec, err := e.store.LatestRecording("garage")
	if err != nil {
		t.Fatalf("LatestRecording: %v", err)
	}
	if rec == nil {
		t.Fatal("recording not persisted")
	}
	if rec.Project != "garage" {
		t.Errorf("project = %q", rec.Project)
	}
	if math.Abs(rec.DurationS-10.5) > 1e-9 {
		t.Errorf("duration = %f", rec.DurationS)
	}
	if !rec.Loop.TakesRecorded || !rec.Loop.MultipleTakes {
		t.Errorf("loop = %+v, want multiple completed takes", rec.Loop)
	}
	if got := atomic.LoadUint64(&e.persisted); got != 1 {
		t.Errorf("persisted counter = %d", got)
	}
}

func TestRunFailsWhenBrokerUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.Transport.BrokerURL = "tcp://127.0.0.1:1"
	cfg.Transport.MaxRetries = 0
	cfg.Transport.RetryDelayS = 0.001
	cfg.Transport.MaxRetryDelayS = 0.001

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = e.Run(ctx)
	if err == nil {
		t.Fatal("Run succeeded with no broker listening")
	}
	if !strings.Contains(err.Error(), "giving up") {
		t.Errorf("err = %v, want retry budget exhaustion", err)
	}

	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestShutdownWithoutRunReleasesStore(t *testing.T) {
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

func TestStopFromCommandBeforeRunIsSafe(t *testing.T) {
	e := newTestEngine(t)
	e.stopFromCommand()
}
