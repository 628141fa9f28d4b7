// Package session tracks live record on/off transitions and derives the
// last fully completed loop take of each capture window.
//
// # Model
//
// The transition core is a pure function:
//
//	next, finalized := session.Apply(state, event)
//
// Events are typed transport snapshots (record_mode, is_counting_in,
// musical position, tempo, time signature, loop region, armed tracks,
// wall clock) validated once at the boundary, or gap markers injected
// when the transport connection drops. Apply never touches a clock, a
// socket, or a global: everything it needs arrives in the event, which
// keeps every transition testable without a live transport.
//
// The Machine wraps Apply with the single-writer discipline: all
// mutation happens on the goroutine delivering transport events, and
// completed recordings are fanned out to listeners by value, so
// listener code runs in parallel without locking.
//
// # States
//
//	Idle -> AwaitingCountIn -> Recording -> Idle
//	Idle -> Recording -> Idle
//
// Record start snapshots the transport (deferred past any count-in);
// record stop freezes the window, computes the loop take bounds, and
// emits an immutable FinalizedRecording. If a stop arrives with no
// armed start snapshot, both bounds snapshot at that instant and a
// zero-duration recording is emitted instead of failing.
//
// # Loop take bounds
//
// Given the window and the loop region fixed at start, the machine
// computes where the last fully completed loop cycle sits inside the
// window, in modular beat arithmetic. A recording exactly one loop long
// reports no take: the boundary comparison is deliberately
// conservative. Tempo and loop region are trusted as constant for the
// whole window; a mid-recording tempo change is a known limitation and
// yields bounds computed at the start tempo.
//
// # Stale transport state
//
// After a connection gap, snapshots older than the gap instant are
// dropped rather than applied: a retained broker message from before
// the outage must never silently resume a recording.
package session
