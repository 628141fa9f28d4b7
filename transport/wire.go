package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/loopsmith/loopsync/session"
)

// ParseState decodes one bridge state payload into a validated
// snapshot. Payloads without their own timestamp are stamped with the
// arrival time, since arrival order is occurrence order.
func ParseState(raw []byte, arrival time.Time) (session.TransportSnapshot, error) {
	var snap session.TransportSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("transport: state payload: %w", err)
	}
	if snap.At.IsZero() {
		snap.At = arrival
	}
	if err := snap.Validate(); err != nil {
		return snap, fmt.Errorf("transport: state payload: %w", err)
	}
	return snap, nil
}

// Command is a request on the command topic.
type Command struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}

// Command actions the bridge understands.
const (
	ActionStatus   = "status"
	ActionShutdown = "shutdown"
)

// Response answers one command on the response topic.
type Response struct {
	ID     string        `json:"id,omitempty"`
	OK     bool          `json:"ok"`
	Status *StatusReport `json:"status,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// StatusReport is the live health picture handed out on request.
type StatusReport struct {
	Project           string  `json:"project,omitempty"`
	State             string  `json:"state"`
	Connected         bool    `json:"connected"`
	Events            uint64  `json:"events"`
	Finalized         uint64  `json:"finalized"`
	DroppedStale      uint64  `json:"dropped_stale"`
	StatesSeen        uint64  `json:"states_seen"`
	BadPayloads       uint64  `json:"bad_payloads"`
	ReconnectAttempts uint32  `json:"reconnect_attempts"`
	UptimeS           float64 `json:"uptime_s,omitempty"`
}
