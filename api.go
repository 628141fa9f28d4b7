package loopsync

import "github.com/loopsmith/loopsync/session"

// Re-exports of the session contract, the stable surface embedders
// program against.

// TransportSnapshot is a typed, point-in-time read of the live
// transport.
type TransportSnapshot = session.TransportSnapshot

// FinalizedRecording describes one completed record window.
type FinalizedRecording = session.FinalizedRecording

// LoopTakeBounds locates the usable takes inside a record window.
type LoopTakeBounds = session.LoopTakeBounds

// State is a phase of the recording state machine.
type State = session.State

const (
	StateIdle            = session.StateIdle
	StateAwaitingCountIn = session.StateAwaitingCountIn
	StateRecording       = session.StateRecording
)

var (
	ErrMachineClosed    = session.ErrMachineClosed
	ErrListenerExists   = session.ErrListenerExists
	ErrListenerNotFound = session.ErrListenerNotFound
)
