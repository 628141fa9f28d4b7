package session

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// defaultListenerBuffer is the per-listener channel capacity. Finalized
// recordings arrive at human pace; a handful of slack absorbs a slow
// persistence listener.
const defaultListenerBuffer = 8

// Config tunes a Machine.
type Config struct {
	// Project tags every finalized recording.
	Project string

	// ListenerBuffer is the per-listener channel capacity; zero selects
	// the default.
	ListenerBuffer int
}

// MachineStats is a point-in-time counter snapshot.
type MachineStats struct {
	Events       uint64
	Finalized    uint64
	DroppedStale uint64
	Listeners    int
}

// Machine owns the transition state. Single-writer: HandleSnapshot and
// HandleGap must be called from one goroutine (the one receiving
// transport events); reads and listener management are safe from any.
type Machine struct {
	project string
	buffer  int

	mu sync.Mutex
	st MachineState

	fan    *fanout
	closed atomic.Bool

	events       uint64
	finalized    uint64
	droppedStale uint64
}

// New returns an idle Machine.
func New(cfg Config) *Machine {
	buffer := cfg.ListenerBuffer
	if buffer <= 0 {
		buffer = defaultListenerBuffer
	}
	return &Machine{
		project: cfg.Project,
		buffer:  buffer,
		fan:     newFanout(),
	}
}

// HandleSnapshot validates and applies one transport snapshot. A
// finalized recording, if the snapshot closed a window, is assigned an
// id and fanned out to listeners before this returns.
func (m *Machine) HandleSnapshot(snap TransportSnapshot) error {
	if m.closed.Load() {
		return ErrMachineClosed
	}
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("session: rejecting snapshot: %w", err)
	}
	m.apply(SnapshotEvent(snap))
	return nil
}

// HandleGap marks a transport connection loss at the given instant.
func (m *Machine) HandleGap(at time.Time) {
	if m.closed.Load() {
		return
	}
	m.apply(GapEvent(at))
}

func (m *Machine) apply(ev Event) {
	m.mu.Lock()
	next, fin, stale := Apply(m.st, ev)
	m.st = next
	m.mu.Unlock()

	atomic.AddUint64(&m.events, 1)
	if stale {
		atomic.AddUint64(&m.droppedStale, 1)
		slog.Warn("session: dropped stale snapshot after gap")
		return
	}
	if fin == nil {
		return
	}

	fin.ID = uuid.NewString()
	fin.Project = m.project
	atomic.AddUint64(&m.finalized, 1)

	slog.Info("session: recording finalized",
		"id", fin.ID,
		"project", fin.Project,
		"duration_s", fin.DurationS,
		"takes_recorded", fin.Loop.TakesRecorded,
		"multiple_takes", fin.Loop.MultipleTakes,
		"zero_duration", fin.ZeroDuration,
	)
	m.fan.publish(*fin)
}

// Subscribe registers a listener and returns its receive channel. The
// channel closes on Unsubscribe or Close.
func (m *Machine) Subscribe(id string) (<-chan FinalizedRecording, error) {
	if m.closed.Load() {
		return nil, ErrMachineClosed
	}
	return m.fan.subscribe(id, m.buffer)
}

// Unsubscribe removes a listener and closes its channel.
func (m *Machine) Unsubscribe(id string) error {
	return m.fan.unsubscribe(id)
}

// ListenerStats returns delivery counters for one listener.
func (m *Machine) ListenerStats(id string) (ListenerStats, error) {
	return m.fan.stats(id)
}

// State returns the current phase.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Phase
}

// InProgress returns a copy of the armed start snapshot while a
// recording is open.
func (m *Machine) InProgress() (TransportSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.Phase != StateRecording || m.st.StartSnap == nil {
		return TransportSnapshot{}, false
	}
	return *m.st.StartSnap, true
}

// Stats returns a counter snapshot.
func (m *Machine) Stats() MachineStats {
	return MachineStats{
		Events:       atomic.LoadUint64(&m.events),
		Finalized:    atomic.LoadUint64(&m.finalized),
		DroppedStale: atomic.LoadUint64(&m.droppedStale),
		Listeners:    m.fan.count(),
	}
}

// Close shuts the machine down and closes every listener channel.
// Idempotent.
func (m *Machine) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	m.fan.close()
	slog.Debug("session: machine closed")
}
