package led

import (
	"log/slog"
	"os"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// Board is the detected LED hardware and the LED used for rig status.
type Board struct {
	Model      string
	Controller Controller
	StatusLED  string
}

type boardLEDs struct {
	match  string
	status string
	leds   map[string]string
}

var knownBoards = []boardLEDs{
	{match: "Raspberry Pi", status: "act", leds: map[string]string{"act": "ACT", "pwr": "PWR"}},
	{match: "Orange Pi", status: "green", leds: map[string]string{"blue": "blue_led", "green": "green_led"}},
	{match: "NanoPC-T6", status: "system", leds: map[string]string{"user": "usr_led", "system": "sys_led"}},
}

// Detect returns the LED controller for the board the rig runs on.
// Unknown boards get a virtual controller whose status LED only logs.
func Detect(logger *slog.Logger) Board {
	if logger == nil {
		logger = slog.Default()
	}
	return detect(detectBoard(), "", logger)
}

func detect(model, root string, logger *slog.Logger) Board {
	for _, b := range knownBoards {
		if strings.Contains(model, b.match) {
			logger.Info("Using sysfs LED controller", "board_model", model, "status_led", b.status)
			return Board{Model: model, Controller: newSysfs(root, b.leds), StatusLED: b.status}
		}
	}
	logger.Info("No LED support detected, using virtual status LED", "board_model", model)
	return Board{Model: model, Controller: newVirtual(logger), StatusLED: VirtualStatusLED}
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	// Device tree strings are NUL terminated.
	return strings.TrimRight(string(data), "\x00")
}
