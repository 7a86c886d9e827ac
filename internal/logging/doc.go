// Package logging provides structured logging with per-module log levels.
//
// Records go to stdout when it is connected, to the systemd journal when journald is
// running, and always to an in-memory ring buffer that backs the log stream endpoint.
//
// # Usage
//
// Initialize once at startup, then fetch a logger per module:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"states": "debug"},
//	})
//
//	logger := logging.GetLogger("driver")
//	logger.Info("Mode changed", "from", prev, "to", next)
//
// Loggers may be fetched before Initialize; they start at info and follow the
// configuration once it is applied. UpdateLevels changes levels at runtime, which the
// config watcher uses when the [logging] table of the config file is edited.
//
// # Modules
//
//	driver       mode switching and startup
//	scheduler    animation loops
//	states       state handlers; debug shows activation and transition lifecycle
//	drawer       pixel and stream drawers
//	sinks        hardware interfaces
//	api, nats    controllers
//	rig          rig file loading
//	led          status LED
//
// # Viewing Logs
//
//	journalctl -t paws -f
//	journalctl -t paws MODULE=states
//	journalctl -t paws -p warning
//
// # Configuration
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	states = "debug"
//	api = "warn"
package logging
