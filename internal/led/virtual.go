package led

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// VirtualStatusLED is the only LED of the virtual controller.
const VirtualStatusLED = "status"

// LEDState is the last state set on an LED.
type LEDState struct {
	Enabled bool
	Pattern string
}

// virtual stands in for boards without a usable LED. It keeps the requested state and
// logs changes, so the status the LED would show still appears in the logs.
type virtual struct {
	logger *slog.Logger
	mu     sync.Mutex
	state  LEDState
}

func newVirtual(logger *slog.Logger) *virtual {
	return &virtual{logger: logger}
}

func (v *virtual) Set(ledType string, enabled bool, pattern string) error {
	if ledType != VirtualStatusLED {
		return fmt.Errorf("unknown LED %q", ledType)
	}
	if pattern != "" && !slices.Contains(v.Patterns(), pattern) {
		return fmt.Errorf("unsupported pattern %q", pattern)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	next := LEDState{Enabled: enabled, Pattern: pattern}
	if pattern == "" {
		next.Pattern = v.state.Pattern
	}
	if next != v.state {
		v.logger.Debug("Virtual status LED", "enabled", next.Enabled, "pattern", next.Pattern)
	}
	v.state = next
	return nil
}

func (v *virtual) State() LEDState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *virtual) Available() []string {
	return []string{VirtualStatusLED}
}

func (v *virtual) Patterns() []string {
	return []string{PatternSolid, PatternBlink}
}
