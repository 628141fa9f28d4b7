// Package loopsync synchronizes multi-camera footage against a looper
// session. It has two halves that meet in the SQLite store:
//
// The live half runs inside the daemon. An MQTT bridge (transport)
// receives transport snapshots from the looper, a pure state machine
// (session) turns record-mode edges into finalized recordings, and the
// Engine persists every finalized recording and republishes it to the
// broker.
//
// The offline half runs from the CLI. Reference cue waveforms (cue) are
// matched against decoded camera audio (media, detect), matched hits
// are paired into take segments (segment), and the planner (plan)
// aligns all takes on a shared timeline and emits a bar-quantized cut
// list.
//
// # Engine
//
// The Engine owns the live wiring:
//
//	broker --> transport.Bridge --> session.Machine --> store.Store
//	                                        |
//	                                        +--> broker (recording topic)
//
// Run connects under reconnect supervision and blocks until the
// context ends or the retry budget is exhausted. Shutdown drains the
// persistence worker before closing the store, so a recording
// finalized during teardown still reaches disk.
package loopsync
