package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smazurov/paws/internal/component"
	"github.com/smazurov/paws/internal/driver"
	"github.com/smazurov/paws/internal/rigerr"
)

// Controller drives a rig from NATS subjects.
// Gracefully degrades when NATS is unavailable: the rig keeps running without remote control.
type Controller struct {
	component.Identity
	url    string
	device string
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *nats.Conn
	subs      []*nats.Subscription
	driver    *driver.Driver
	connected bool
}

// NewController creates a controller for device that connects to url on Init.
func NewController(url, device string, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		Identity: component.NewIdentity("nats"),
		url:      url,
		device:   device,
		logger:   logger.With("component", "nats-controller", "device", device),
	}
}

// Init implements driver.Controller. A failed connection is logged, not returned.
func (c *Controller) Init(ctx context.Context, d *driver.Driver) error {
	c.mu.Lock()
	c.driver = d
	c.mu.Unlock()

	if err := c.Connect(); err != nil {
		return nil
	}
	go func() {
		<-ctx.Done()
		c.Close()
	}()
	return nil
}

// Connect establishes the connection and subscribes to the command subjects.
func (c *Controller) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts := []nats.Option{
		nats.Name("paws-" + c.device),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setConnected(false)
			if err != nil {
				c.logger.Warn("NATS disconnected", "error", err)
			} else {
				c.logger.Debug("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.setConnected(true)
			c.logger.Info("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(c.url, opts...)
	if err != nil {
		c.logger.Warn("Failed to connect to NATS, running without remote control", "error", err)
		return err
	}
	c.conn = conn
	c.connected = true

	handlers := map[string]nats.MsgHandler{
		SubjectModeSet(c.device):      c.handleModeSet,
		SubjectModeGet(c.device):      c.handleModeGet,
		SubjectStateSet(c.device):     c.handleStateSet,
		SubjectStateGet(c.device):     c.handleStateGet,
		SubjectDraw(c.device):         c.handleDraw,
		SubjectDrawFragment(c.device): c.handleDrawFragment,
	}
	for subject, handler := range handlers {
		sub, err := conn.Subscribe(subject, handler)
		if err != nil {
			c.closeLocked()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		c.subs = append(c.subs, sub)
	}
	if err := conn.Flush(); err != nil {
		c.closeLocked()
		return fmt.Errorf("flush subscriptions: %w", err)
	}

	c.logger.Info("Connected to NATS", "url", c.url)
	return nil
}

func (c *Controller) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Controller) rig() *driver.Driver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.driver
}

func (c *Controller) handleModeSet(msg *nats.Msg) {
	d := c.rig()
	cmd, err := UnmarshalCommand(msg.Data)
	if err != nil {
		c.respond(msg, ReplyMessage{Current: d.ModeName(), Error: err.Error()})
		return
	}

	reply := ReplyMessage{}
	changed, err := d.SetMode(context.Background(), cmd.Name)
	if err != nil {
		c.logger.Error("Mode switch failed", "mode", cmd.Name, "error", err)
		reply.Error = err.Error()
	} else if !changed && !slices.Contains(d.ModeNames(), cmd.Name) {
		reply.Error = rigerr.ErrUnknownMode.Error()
	}
	reply.Changed = changed
	reply.Current = d.ModeName()
	reply.Available = d.ModeNames()
	c.respond(msg, reply)
}

func (c *Controller) handleModeGet(msg *nats.Msg) {
	d := c.rig()
	c.respond(msg, ReplyMessage{Current: d.ModeName(), Available: d.ModeNames()})
}

func (c *Controller) handleStateSet(msg *nats.Msg) {
	sm, ok := c.rig().ActiveStateMachine()
	if !ok {
		c.respond(msg, ReplyMessage{Error: "active mode has no states"})
		return
	}
	cmd, err := UnmarshalCommand(msg.Data)
	if err != nil {
		c.respond(msg, ReplyMessage{Current: sm.CurrentState(), Error: err.Error()})
		return
	}

	reply := ReplyMessage{}
	changed, err := sm.SetState(context.Background(), cmd.Name)
	if err != nil {
		c.logger.Error("State switch failed", "state", cmd.Name, "error", err)
		reply.Error = err.Error()
	} else if !changed {
		reply.Error = rigerr.ErrUnknownState.Error()
	}
	reply.Changed = changed
	reply.Current = sm.CurrentState()
	reply.Available = sm.ListStateNames()
	c.respond(msg, reply)
}

func (c *Controller) handleStateGet(msg *nats.Msg) {
	sm, ok := c.rig().ActiveStateMachine()
	if !ok {
		c.respond(msg, ReplyMessage{Error: "active mode has no states"})
		return
	}
	c.respond(msg, ReplyMessage{Current: sm.CurrentState(), Available: sm.ListStateNames()})
}

func (c *Controller) handleDraw(msg *nats.Msg) {
	target, ok := c.rig().ActiveBufferTarget()
	if !ok {
		c.respond(msg, ReplyMessage{Error: "active mode does not accept frames"})
		return
	}
	changed, err := target.Update(context.Background(), msg.Data)
	reply := ReplyMessage{Changed: changed, Current: target.Name()}
	if err != nil {
		c.logger.Warn("Draw failed", "mode", target.Name(), "error", err)
		reply.Error = err.Error()
	}
	c.respond(msg, reply)
}

func (c *Controller) handleDrawFragment(msg *nats.Msg) {
	target, ok := c.rig().ActiveBufferTarget()
	if !ok {
		return
	}
	changed, err := target.PotentialUpdate(context.Background(), msg.Data)
	reply := ReplyMessage{Changed: changed, Current: target.Name()}
	if err != nil {
		// Overflows are reported by the drawer itself.
		if !errors.Is(err, rigerr.ErrOverflow) {
			c.logger.Warn("Fragment draw failed", "mode", target.Name(), "error", err)
		}
		reply.Error = err.Error()
	}
	c.respond(msg, reply)
}

// respond answers request-style messages. Fire-and-forget publishes have no reply subject.
func (c *Controller) respond(msg *nats.Msg, reply ReplyMessage) {
	if msg.Reply == "" {
		return
	}
	data, err := reply.Marshal()
	if err != nil {
		c.logger.Warn("Failed to marshal reply", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		c.logger.Warn("Failed to send reply", "subject", msg.Subject, "error", err)
	}
}

// IsConnected returns true if connected to NATS.
func (c *Controller) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.conn != nil
}

// Close unsubscribes and closes the NATS connection.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	c.logger.Debug("NATS controller closed")
}

func (c *Controller) closeLocked() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}
