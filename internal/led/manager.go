package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/paws/internal/events"
)

// Manager shows rig health on the status LED: solid while a mode renders normally,
// blinking before the first mode or while the active mode's loop has faulted.
type Manager struct {
	controller  Controller
	statusLED   string
	eventBus    *events.Bus
	unsubscribe []func()
	logger      *slog.Logger

	mu      sync.Mutex
	current string
	faulted map[string]bool
}

// NewManager creates a manager driving statusLED through controller.
func NewManager(controller Controller, statusLED string, eventBus *events.Bus, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		controller: controller,
		statusLED:  statusLED,
		eventBus:   eventBus,
		logger:     logger,
		faulted:    make(map[string]bool),
	}
}

// Start subscribes to rig events and shows the initial status.
func (m *Manager) Start() {
	m.unsubscribe = []func(){
		m.eventBus.Subscribe(m.handleModeChanged),
		m.eventBus.Subscribe(m.handleFault),
	}
	m.update()
	m.logger.Info("LED manager started", "status_led", m.statusLED)
}

// Stop unsubscribes from events.
func (m *Manager) Stop() {
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
	m.logger.Info("LED manager stopped")
}

func (m *Manager) handleModeChanged(e events.ModeChangedEvent) {
	m.mu.Lock()
	m.current = e.Current
	// The previous loop is gone and the current one was restarted.
	delete(m.faulted, e.Previous)
	delete(m.faulted, e.Current)
	m.mu.Unlock()

	m.logger.Debug("Mode changed", "mode", e.Current)
	m.update()
}

func (m *Manager) handleFault(e events.SchedulerFaultEvent) {
	m.mu.Lock()
	m.faulted[e.Loop] = true
	m.mu.Unlock()

	m.logger.Debug("Animation loop faulted", "loop", e.Loop, "error", e.Error)
	m.update()
}

// Pattern returns the pattern the status LED should show.
func (m *Manager) Pattern() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == "" || m.faulted[m.current] {
		return PatternBlink
	}
	return PatternSolid
}

func (m *Manager) update() {
	if m.statusLED == "" {
		return
	}
	pattern := m.Pattern()
	if err := m.controller.Set(m.statusLED, true, pattern); err != nil {
		m.logger.Warn("Failed to set status LED", "pattern", pattern, "error", err)
	}
}

// Controller returns the underlying LED controller for direct API access.
func (m *Manager) Controller() Controller {
	return m.controller
}
