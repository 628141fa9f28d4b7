// Package transport connects the session machine to a DAW-side bridge
// over MQTT.
//
// The bridge publishes JSON on topics under a common prefix:
//
//	<prefix>/state      transport snapshots, pushed on every change
//	<prefix>/command    status and shutdown requests
//	<prefix>/response   command replies
//	<prefix>/recording  finalized recordings, published by this package
//
// State payloads carry the bridge wire names (record_mode,
// is_counting_in, current_song_time, tempo, ...). Arrival order is
// occurrence order; payloads without a timestamp are stamped on
// arrival.
//
// Connection loss is never papered over: the paho auto-reconnect stays
// off, the supervision loop here owns retries with capped exponential
// backoff, and every loss injects a gap marker so the machine refuses
// stale queued snapshots. When retries are exhausted the error surfaces
// to the caller; a longer-lived monitor belongs above this package.
package transport
