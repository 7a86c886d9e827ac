// Package led drives the board status LED of the controller the rig runs on.
package led

// Controller abstracts LED hardware control across different SBC boards.
type Controller interface {
	// Set switches an LED on or off. pattern is one of Patterns, or empty to keep the
	// current trigger.
	Set(ledType string, enabled bool, pattern string) error

	// Available returns the LED types supported by this controller, sorted.
	Available() []string

	// Patterns returns the patterns supported by this controller.
	Patterns() []string
}

// Status patterns used by the Manager.
const (
	PatternSolid = "solid"
	PatternBlink = "blink"
)
