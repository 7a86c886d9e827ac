package nats

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smazurov/paws/internal/events"
)

// Bridge forwards rig events from the event bus to NATS subjects.
type Bridge struct {
	url      string
	device   string
	eventBus *events.Bus
	conn     *nats.Conn
	unsubs   []func()
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewBridge creates a new EventBus-to-NATS bridge.
func NewBridge(url, device string, eventBus *events.Bus, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		url:      url,
		device:   device,
		eventBus: eventBus,
		logger:   logger.With("component", "nats-bridge"),
	}
}

// Start connects to NATS and subscribes to the event bus.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := nats.Connect(b.url,
		nats.Name("paws-bridge-"+b.device),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("NATS bridge disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			b.logger.Info("NATS bridge reconnected")
		}),
	)
	if err != nil {
		return err
	}
	b.conn = conn

	b.unsubs = append(b.unsubs,
		b.eventBus.Subscribe(func(e events.ModeChangedEvent) {
			b.publish(EventKindMode, e)
		}),
		b.eventBus.Subscribe(func(e events.StateChangedEvent) {
			b.publish(EventKindState, e)
		}),
		b.eventBus.Subscribe(func(e events.TransitionEvent) {
			b.publish(EventKindTransition, e)
		}),
		b.eventBus.Subscribe(func(e events.SchedulerFaultEvent) {
			b.publish(EventKindFault, e)
		}),
	)

	b.logger.Info("NATS bridge connected", "url", b.url)
	return nil
}

func (b *Bridge) publish(kind string, e events.Event) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return
	}

	data, err := json.Marshal(e)
	if err != nil {
		b.logger.Warn("Failed to marshal event", "kind", kind, "error", err)
		return
	}
	subject := SubjectEvents(b.device, kind)
	if err := conn.Publish(subject, data); err != nil {
		b.logger.Warn("Failed to publish event", "subject", subject, "error", err)
		return
	}
	b.logger.Debug("Published event", "subject", subject)
}

// Stop unsubscribes from the bus and closes the connection.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	b.logger.Info("NATS bridge stopped")
}

// IsConnected returns true if the bridge is connected to NATS.
func (b *Bridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && b.conn.IsConnected()
}
