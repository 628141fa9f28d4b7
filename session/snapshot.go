package session

import (
	"fmt"
	"time"
)

// TransportSnapshot is a typed, point-in-time read of the live
// transport. It is validated once at the boundary; the core never
// reaches into transport state mid-algorithm. Field tags follow the
// bridge wire names.
type TransportSnapshot struct {
	RecordMode      bool      `json:"record_mode"`
	IsCountingIn    bool      `json:"is_counting_in"`
	SongTimeBeats   float64   `json:"current_song_time"`
	BPM             float64   `json:"tempo"`
	TSNum           int       `json:"time_signature_numerator"`
	TSDen           int       `json:"time_signature_denominator"`
	LoopStartBeats  float64   `json:"loop_start"`
	LoopLengthBeats float64   `json:"loop_length"`
	ArmedTracks     []string  `json:"armed_tracks,omitempty"`
	At              time.Time `json:"at"`
}

// Validate rejects snapshots the core cannot trust. A zero loop length
// is allowed (no loop configured); the loop math degrades to "no takes"
// for it.
func (s TransportSnapshot) Validate() error {
	if s.At.IsZero() {
		return fmt.Errorf("session: snapshot has no wall-clock time")
	}
	if s.BPM <= 0 {
		return fmt.Errorf("session: snapshot tempo %f must be positive", s.BPM)
	}
	if s.TSNum < 1 {
		return fmt.Errorf("session: time signature numerator %d", s.TSNum)
	}
	switch s.TSDen {
	case 1, 2, 4, 8, 16, 32:
	default:
		return fmt.Errorf("session: time signature denominator %d", s.TSDen)
	}
	if s.LoopLengthBeats < 0 {
		return fmt.Errorf("session: negative loop length %f", s.LoopLengthBeats)
	}
	return nil
}

// Event drives the transition function: either a fresh transport
// snapshot, or a gap marker recording when connectivity was lost.
type Event struct {
	Snapshot *TransportSnapshot
	GapAt    time.Time
}

// SnapshotEvent wraps a validated snapshot.
func SnapshotEvent(s TransportSnapshot) Event {
	return Event{Snapshot: &s}
}

// GapEvent marks a transport connection loss detected at the given
// instant. Snapshots older than it will be dropped as stale.
func GapEvent(at time.Time) Event {
	return Event{GapAt: at}
}
