package session

import "time"

// State is the recording phase.
type State int

const (
	// StateIdle means no capture is in progress.
	StateIdle State = iota
	// StateAwaitingCountIn means record mode is on but the transport
	// still reports pre-roll; the start snapshot is deferred.
	StateAwaitingCountIn
	// StateRecording means a capture window is open.
	StateRecording
)

// String returns the phase name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCountIn:
		return "awaiting_count_in"
	case StateRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// MachineState is the complete state of the transition function.
// Values are plain data so tests can construct any point in the space.
type MachineState struct {
	Phase State

	// StartSnap is the transport snapshot frozen at record start; nil
	// outside a recording.
	StartSnap *TransportSnapshot

	// StaleBefore, when set, rejects snapshots older than this instant.
	// Armed by a gap event, cleared by the first fresh snapshot.
	StaleBefore *time.Time
}

// FinalizedRecording is the immutable record emitted when a capture
// window closes. Handed to listeners by value.
type FinalizedRecording struct {
	ID           string            `json:"id"`
	Project      string            `json:"project,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	StoppedAt    time.Time         `json:"stopped_at"`
	DurationS    float64           `json:"duration_s"`
	Snapshot     TransportSnapshot `json:"snapshot"`
	Loop         LoopTakeBounds    `json:"loop"`
	ZeroDuration bool              `json:"zero_duration,omitempty"`
}

// Apply is the pure transition function: one event in, the next state
// and an optional finalized recording out. staleDropped reports that
// the event was a pre-gap snapshot and was ignored.
//
// Transitions:
//
//	Idle            --record on, no count-in-->  Recording (snapshot now)
//	Idle            --record on, counting  -->  AwaitingCountIn
//	AwaitingCountIn --count-in clears      -->  Recording (snapshot now)
//	AwaitingCountIn --record off           -->  Idle (nothing captured)
//	Recording       --record off           -->  Idle + FinalizedRecording
//
// A stop with no armed start snapshot snapshots both bounds at the stop
// instant and emits a zero-duration recording.
func Apply(st MachineState, ev Event) (MachineState, *FinalizedRecording, bool) {
	if ev.Snapshot == nil {
		if !ev.GapAt.IsZero() {
			at := ev.GapAt
			st.StaleBefore = &at
		}
		return st, nil, false
	}
	snap := *ev.Snapshot

	if st.StaleBefore != nil {
		if snap.At.Before(*st.StaleBefore) {
			return st, nil, true
		}
		st.StaleBefore = nil
	}

	switch st.Phase {
	case StateIdle:
		if snap.RecordMode {
			if snap.IsCountingIn {
				st.Phase = StateAwaitingCountIn
			} else {
				st.Phase = StateRecording
				st.StartSnap = &snap
			}
		}
		return st, nil, false

	case StateAwaitingCountIn:
		switch {
		case !snap.RecordMode:
			// Stopped during count-in: nothing was captured.
			st.Phase = StateIdle
		case !snap.IsCountingIn:
			st.Phase = StateRecording
			st.StartSnap = &snap
		}
		return st, nil, false

	case StateRecording:
		if snap.RecordMode {
			return st, nil, false
		}
		fin := finalize(st.StartSnap, snap)
		st.Phase = StateIdle
		st.StartSnap = nil
		return st, &fin, false
	}
	return st, nil, false
}

// finalize freezes the window and computes the loop take bounds from
// the start-time snapshot, which is trusted for the whole window.
func finalize(start *TransportSnapshot, stop TransportSnapshot) FinalizedRecording {
	if start == nil {
		// Transport desync: the stop arrived with no start on record.
		start = &stop
	}

	windowS := stop.At.Sub(start.At).Seconds()
	if windowS < 0 {
		windowS = 0
	}

	return FinalizedRecording{
		StartedAt: start.At,
		StoppedAt: stop.At,
		DurationS: windowS,
		Snapshot:  *start,
		Loop: ComputeLoopTakeBounds(
			windowS,
			start.SongTimeBeats,
			start.BPM,
			start.LoopStartBeats,
			start.LoopLengthBeats,
		),
		ZeroDuration: windowS == 0,
	}
}
