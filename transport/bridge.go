package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/loopsmith/loopsync/session"
)

const (
	defaultTopicPrefix = "loopsync"
	defaultClientID    = "loopsync-bridge"

	connectTimeout  = 10 * time.Second
	publishTimeout  = 5 * time.Second
	quiesceMillis   = 250
	publishListener = "transport-publish"

	// State updates and recordings must survive a flaky link, and
	// duplicates are harmless: redelivered snapshots are state-machine
	// no-ops and recording saves upsert by id.
	qosAtLeastOnce = 1
)

// Callbacks let the bridge reach its host process without owning it.
// Both fields are optional.
type Callbacks struct {
	// Status fills the reply to a status command; when nil the bridge
	// answers with its own report.
	Status func() StatusReport
	// Shutdown runs after a shutdown command has been acknowledged.
	Shutdown func()
}

// Config locates the broker and names the topic namespace.
type Config struct {
	// BrokerURL is a paho broker URL, e.g. "tcp://127.0.0.1:1883".
	BrokerURL string
	ClientID  string
	// TopicPrefix namespaces the bridge topics; "loopsync" by default.
	TopicPrefix string
	Username    string
	Password    string
	Reconnect   ReconnectConfig
}

func (c Config) withDefaults() Config {
	if c.ClientID == "" {
		c.ClientID = defaultClientID
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = defaultTopicPrefix
	}
	if c.Reconnect.MaxRetries == 0 && c.Reconnect.RetryDelay == 0 {
		c.Reconnect = DefaultReconnectConfig()
	}
	return c
}

// Topics are the resolved topic names under one prefix.
type Topics struct {
	State     string
	Command   string
	Response  string
	Recording string
}

func topicsFor(prefix string) Topics {
	return Topics{
		State:     prefix + "/state",
		Command:   prefix + "/command",
		Response:  prefix + "/response",
		Recording: prefix + "/recording",
	}
}

// Bridge is the MQTT adapter feeding one session machine. Create with
// New, start with Run.
type Bridge struct {
	cfg     Config
	topics  Topics
	machine *session.Machine
	cb      Callbacks

	client mqtt.Client
	lost   chan error

	started     time.Time
	statesSeen  uint64
	badPayloads uint64
	attempts    uint32
}

// New builds a bridge. Nothing touches the network until Run.
func New(cfg Config, machine *session.Machine, cb Callbacks) (*Bridge, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("transport: broker url is required")
	}
	if machine == nil {
		return nil, fmt.Errorf("transport: session machine is required")
	}
	cfg = cfg.withDefaults()

	b := &Bridge{
		cfg:     cfg,
		topics:  topicsFor(cfg.TopicPrefix),
		machine: machine,
		cb:      cb,
		lost:    make(chan error, 1),
		started: time.Now(),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectTimeout(connectTimeout).
		SetOrderMatters(true).
		SetConnectionLostHandler(b.onConnectionLost)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	b.client = mqtt.NewClient(opts)
	return b, nil
}

// Run connects under supervision, forwards finalized recordings to the
// broker, and reconnects on loss. It returns nil when ctx ends, or the
// terminal error once the retry budget is exhausted.
func (b *Bridge) Run(ctx context.Context) error {
	if err := RunWithReconnect(ctx, b.connect, b.cfg.Reconnect, &b.attempts); err != nil {
		return err
	}

	recs, err := b.machine.Subscribe(publishListener)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	defer b.machine.Unsubscribe(publishListener)

	for {
		select {
		case <-ctx.Done():
			b.disconnect()
			return nil

		case rec, ok := <-recs:
			if !ok {
				b.disconnect()
				return nil
			}
			b.publishRecording(rec)

		case lossErr := <-b.lost:
			// Anything the broker still has queued from before the
			// loss must not leak into a fresh session.
			b.machine.HandleGap(time.Now())
			slog.Warn("transport: connection lost",
				"error", lossErr,
				"category", Classify(lossErr).String(),
			)
			if err := RunWithReconnect(ctx, b.connect, b.cfg.Reconnect, &b.attempts); err != nil {
				b.disconnect()
				return err
			}
		}
	}
}

// Connected reports whether the client currently holds a broker
// connection.
func (b *Bridge) Connected() bool {
	return b.client != nil && b.client.IsConnected()
}

// Status is the bridge's own health report.
func (b *Bridge) Status() StatusReport {
	stats := b.machine.Stats()
	return StatusReport{
		State:             b.machine.State().String(),
		Connected:         b.Connected(),
		Events:            stats.Events,
		Finalized:         stats.Finalized,
		DroppedStale:      stats.DroppedStale,
		StatesSeen:        atomic.LoadUint64(&b.statesSeen),
		BadPayloads:       atomic.LoadUint64(&b.badPayloads),
		ReconnectAttempts: atomic.LoadUint32(&b.attempts),
		UptimeS:           time.Since(b.started).Seconds(),
	}
}

func (b *Bridge) connect(_ context.Context) error {
	token := b.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("transport: connect timed out after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("transport: connect: %w", err)
	}
	if err := b.subscribe(); err != nil {
		b.client.Disconnect(quiesceMillis)
		return err
	}
	slog.Info("transport: bridge online",
		"broker", b.cfg.BrokerURL,
		"prefix", b.cfg.TopicPrefix,
	)
	return nil
}

func (b *Bridge) subscribe() error {
	for topic, handler := range map[string]mqtt.MessageHandler{
		b.topics.State:   b.onState,
		b.topics.Command: b.onCommand,
	} {
		token := b.client.Subscribe(topic, qosAtLeastOnce, handler)
		if !token.WaitTimeout(connectTimeout) {
			return fmt.Errorf("transport: subscribe %s timed out", topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("transport: subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func (b *Bridge) onConnectionLost(_ mqtt.Client, err error) {
	select {
	case b.lost <- err:
	default:
	}
}

func (b *Bridge) onState(_ mqtt.Client, msg mqtt.Message) {
	snap, err := ParseState(msg.Payload(), time.Now())
	if err != nil {
		atomic.AddUint64(&b.badPayloads, 1)
		slog.Warn("transport: dropping state payload", "error", err)
		return
	}
	atomic.AddUint64(&b.statesSeen, 1)

	if err := b.machine.HandleSnapshot(snap); err != nil {
		atomic.AddUint64(&b.badPayloads, 1)
		slog.Warn("transport: machine rejected snapshot", "error", err)
	}
}

func (b *Bridge) onCommand(_ mqtt.Client, msg mqtt.Message) {
	resp, shutdown := b.handleCommand(msg.Payload())
	b.publishJSON(b.topics.Response, resp)
	if shutdown && b.cb.Shutdown != nil {
		b.cb.Shutdown()
	}
}

// handleCommand is the pure half of command dispatch: payload in,
// response plus shutdown flag out.
func (b *Bridge) handleCommand(raw []byte) (Response, bool) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Response{Error: fmt.Sprintf("bad command payload: %v", err)}, false
	}

	switch cmd.Action {
	case ActionStatus:
		var st StatusReport
		if b.cb.Status != nil {
			st = b.cb.Status()
		} else {
			st = b.Status()
		}
		return Response{ID: cmd.ID, OK: true, Status: &st}, false

	case ActionShutdown:
		slog.Info("transport: shutdown requested over bridge")
		return Response{ID: cmd.ID, OK: true}, true

	default:
		return Response{ID: cmd.ID, Error: fmt.Sprintf("unknown action %q", cmd.Action)}, false
	}
}

func (b *Bridge) publishRecording(rec session.FinalizedRecording) {
	b.publishJSON(b.topics.Recording, rec)
	slog.Info("transport: recording published",
		"id", rec.ID,
		"duration_s", rec.DurationS,
	)
}

func (b *Bridge) publishJSON(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("transport: encode publish", "topic", topic, "error", err)
		return
	}
	token := b.client.Publish(topic, qosAtLeastOnce, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		slog.Warn("transport: publish timed out", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		slog.Warn("transport: publish failed",
			"topic", topic,
			"error", err,
			"category", Classify(err).String(),
		)
	}
}

func (b *Bridge) disconnect() {
	if b.client.IsConnected() {
		b.client.Disconnect(quiesceMillis)
		slog.Debug("transport: disconnected")
	}
}
