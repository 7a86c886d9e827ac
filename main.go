package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/paws/cmd"
	"github.com/smazurov/paws/internal/api"
	"github.com/smazurov/paws/internal/config"
	"github.com/smazurov/paws/internal/controller/random"
	"github.com/smazurov/paws/internal/driver"
	"github.com/smazurov/paws/internal/events"
	"github.com/smazurov/paws/internal/gif"
	"github.com/smazurov/paws/internal/led"
	"github.com/smazurov/paws/internal/logging"
	"github.com/smazurov/paws/internal/metrics/collectors"
	"github.com/smazurov/paws/internal/metrics/exporters"
	"github.com/smazurov/paws/internal/mode"
	"github.com/smazurov/paws/internal/nats"
	"github.com/smazurov/paws/internal/rig"
	"github.com/smazurov/paws/internal/systemd"
	"github.com/smazurov/paws/internal/telemetry"
	"github.com/smazurov/paws/internal/updater"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Address the API listens on, empty disables it" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Rig settings
	RigFile      string `help:"Rig definition file" default:"rig.toml" toml:"rig.file" env:"RIG_FILE"`
	RigDevice    string `help:"Device name, overrides the rig file" toml:"rig.device" env:"RIG_DEVICE"`
	RigGifCache  int    `help:"Number of decoded GIFs kept in memory" default:"64" toml:"rig.gif_cache" env:"RIG_GIF_CACHE"`
	RigStartMode string `help:"Mode to start in, overrides the rig default" toml:"rig.start_mode" env:"RIG_START_MODE"`

	// NATS settings
	NatsEnabled  bool   `help:"Enable NATS control and event publishing" default:"false" toml:"nats.enabled" env:"NATS_ENABLED"`
	NatsURL      string `help:"NATS server URL" default:"nats://127.0.0.1:4222" toml:"nats.url" env:"NATS_URL"`
	NatsEmbedded bool   `help:"Run an embedded NATS server" default:"false" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NatsPort     int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`

	// Controller settings
	ControllersRandom bool `help:"Switch to a random mode every few seconds" default:"false" toml:"controllers.random" env:"CONTROLLERS_RANDOM"`

	// Observability settings
	MetricsPrometheusEnabled bool `help:"Serve Prometheus metrics at /metrics" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`
	MetricsIntervalMs        int  `help:"Default sample period of the FPS stream in milliseconds" default:"1000" toml:"metrics.interval_ms" env:"METRICS_INTERVAL_MS"`
	TelemetryIntervalMs      int  `help:"System telemetry sample period in milliseconds" default:"10000" toml:"telemetry.interval_ms" env:"TELEMETRY_INTERVAL_MS"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Features settings
	FeaturesStatusLED bool `help:"Show rig status on the board LED" default:"false" toml:"features.status_led" env:"FEATURES_STATUS_LED"`

	// Update settings
	UpdateEnabled    bool   `help:"Enable self-update from GitHub releases" default:"false" toml:"update.enabled" env:"UPDATE_ENABLED"`
	UpdateRepository string `help:"GitHub repository to update from" default:"smazurov/paws" toml:"update.repository" env:"UPDATE_REPOSITORY"`
	UpdatePrerelease bool   `help:"Include prereleases" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`

	// Logging settings
	LoggingLevel       string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat      string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingDriver      string `help:"Driver logging level" default:"info" toml:"logging.modules.driver" env:"LOGGING_DRIVER"`
	LoggingScheduler   string `help:"Animation scheduler logging level" default:"info" toml:"logging.modules.scheduler" env:"LOGGING_SCHEDULER"`
	LoggingStates      string `help:"State handler logging level" default:"info" toml:"logging.modules.states" env:"LOGGING_STATES"`
	LoggingDrawer      string `help:"Drawer logging level" default:"info" toml:"logging.modules.drawer" env:"LOGGING_DRAWER"`
	LoggingSinks       string `help:"Interface logging level" default:"info" toml:"logging.modules.sinks" env:"LOGGING_SINKS"`
	LoggingAPI         string `help:"API logging level" default:"info" toml:"logging.modules.api" env:"LOGGING_API"`
	LoggingNats        string `help:"NATS logging level" default:"info" toml:"logging.modules.nats" env:"LOGGING_NATS"`
	LoggingControllers string `help:"Controller logging level" default:"info" toml:"logging.modules.controllers" env:"LOGGING_CONTROLLERS"`
	LoggingUpdater     string `help:"Updater logging level" default:"info" toml:"logging.modules.updater" env:"LOGGING_UPDATER"`
}

func (o *Options) loggingConfig() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"driver":      o.LoggingDriver,
			"scheduler":   o.LoggingScheduler,
			"states":      o.LoggingStates,
			"drawer":      o.LoggingDrawer,
			"sinks":       o.LoggingSinks,
			"api":         o.LoggingAPI,
			"nats":        o.LoggingNats,
			"controllers": o.LoggingControllers,
			"updater":     o.LoggingUpdater,
		},
	}
}

// mergeLogging overlays the levels of a reloaded config file on the process options.
func mergeLogging(base, reloaded logging.Config) logging.Config {
	merged := logging.Config{
		Level:   reloaded.Level,
		Format:  base.Format,
		Modules: make(map[string]string, len(base.Modules)+len(reloaded.Modules)),
	}
	for module, level := range base.Modules {
		merged.Modules[module] = level
	}
	for module, level := range reloaded.Modules {
		merged.Modules[module] = level
	}
	return merged
}

// largestFrame returns the biggest buffer any registered drawer accepts.
func largestFrame(d *driver.Driver) int {
	largest := 0
	for _, m := range d.Modes() {
		if target, ok := mode.AsBufferTarget(m); ok {
			largest = max(largest, target.BufferSize())
		}
	}
	return largest
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// newUpdater returns nil when the binary cannot be replaced in place.
func newUpdater(opts *Options, logger *slog.Logger) *updater.Updater {
	u, err := updater.New(updater.Options{
		Repository: opts.UpdateRepository,
		Prerelease: opts.UpdatePrerelease,
	})
	if err != nil {
		logger.Warn("Self-update unavailable", "error", err)
		return nil
	}
	if err := u.Writable(); err != nil {
		logger.Warn("Self-update disabled", "error", err)
		return nil
	}
	return u
}

func main() {
	var cli humacli.CLI

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root().PersistentFlags()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		baseLogging := opts.loggingConfig()
		logging.Initialize(baseLogging)
		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        entry.Seq,
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		// Build the rig from its definition file
		rigFile, err := rig.Load(opts.RigFile)
		if err != nil {
			logger.Error("Failed to load rig", "file", opts.RigFile, "error", err)
			os.Exit(1)
		}
		if opts.RigDevice != "" {
			rigFile.Device = opts.RigDevice
		}
		if rigFile.Device == "" {
			rigFile.Device, _ = os.Hostname()
		}
		if opts.RigStartMode != "" {
			rigFile.DefaultMode = opts.RigStartMode
		}

		gifCache, err := gif.NewCache(max(opts.RigGifCache, 1))
		if err != nil {
			logger.Error("Failed to create GIF cache", "error", err)
			os.Exit(1)
		}
		built, err := rig.Build(rigFile, rig.Env{
			Bus:     eventBus,
			Gifs:    gifCache,
			BaseDir: filepath.Dir(opts.RigFile),
		})
		if err != nil {
			logger.Error("Failed to build rig", "file", opts.RigFile, "error", err)
			os.Exit(1)
		}

		d := driver.New(
			driver.WithLogger(logging.GetLogger("driver")),
			driver.WithEventBus(eventBus),
		)
		if applyErr := built.Apply(d); applyErr != nil {
			logger.Error("Failed to register rig", "error", applyErr)
			os.Exit(1)
		}
		device := built.Device

		// Telemetry is best effort; the rig runs without it.
		telemetryReader, err := telemetry.NewReader("", "")
		var systemCollector *collectors.SystemCollector
		if err != nil {
			logger.Warn("Telemetry unavailable", "error", err)
			telemetryReader = nil
		} else {
			systemCollector = collectors.NewSystemCollector(telemetryReader, millis(opts.TelemetryIntervalMs))
		}

		// Initialize the status LED if enabled
		var ledManager *led.Manager
		var ledController led.Controller
		if opts.FeaturesStatusLED {
			logger.Info("Status LED enabled, initializing")
			board := led.Detect(logging.GetLogger("led"))
			ledController = board.Controller
			ledManager = led.NewManager(board.Controller, board.StatusLED, eventBus, logging.GetLogger("led"))
		}

		// NATS control plane
		var natsServer *nats.Server
		var natsBridge *nats.Bridge
		natsURL := opts.NatsURL
		if opts.NatsEmbedded {
			natsServer = nats.NewServer(nats.ServerOptions{
				Port:     opts.NatsPort,
				Name:     "paws-" + device,
				MaxFrame: largestFrame(d),
				Logger:   logging.GetLogger("nats"),
			})
			natsURL = natsServer.ClientURL()
		}
		if opts.NatsEnabled {
			d.AddControllers(nats.NewController(natsURL, device, logging.GetLogger("nats")))
			natsBridge = nats.NewBridge(natsURL, device, eventBus, logging.GetLogger("nats"))
		}

		if opts.ControllersRandom {
			d.AddControllers(random.New("random", random.WithLogger(logging.GetLogger("controllers"))))
		}

		apiOpts := &api.Options{
			Addr:            opts.Port,
			AuthUsername:    opts.AuthUsername,
			AuthPassword:    opts.AuthPassword,
			Device:          device,
			Driver:          d,
			EventBus:        eventBus,
			Telemetry:       telemetryReader,
			LEDController:   ledController,
			MetricsInterval: millis(opts.MetricsIntervalMs),
		}
		if opts.MetricsPrometheusEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}
		if opts.UpdateEnabled {
			apiOpts.Updater = newUpdater(opts, logger)
		}
		d.AddControllers(api.NewServer(apiOpts))

		// Live logging level changes from the config file
		watcher := config.NewConfigWatcher(opts.Config, config.LoadLoggingConfig, logger)
		watcher.OnReload(func(reloaded logging.Config) {
			logging.UpdateLevels(mergeLogging(baseLogging, reloaded))
			logger.Info("Logging levels reloaded", "level", reloaded.Level)
		})

		notifier := systemd.NewNotifier(logger)
		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if natsServer != nil {
				if startErr := natsServer.Start(); startErr != nil {
					logger.Error("Failed to start embedded NATS server", "error", startErr)
					os.Exit(1)
				}
			}
			if natsBridge != nil {
				if startErr := natsBridge.Start(); startErr != nil {
					logger.Warn("NATS bridge unavailable, events stay local", "error", startErr)
				}
			}
			if systemCollector != nil {
				systemCollector.Start(ctx)
			}
			if ledManager != nil {
				ledManager.Start()
			}
			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Config watcher unavailable", "config", opts.Config, "error", startErr)
			}

			logger.Info("Starting rig", "device", device, "rig", opts.RigFile, "port", opts.Port)
			if startErr := d.Start(ctx); startErr != nil {
				logger.Error("Failed to start rig", "error", startErr)
				os.Exit(1)
			}
			notifier.Ready("device " + device + ", mode " + d.ModeName())
			go notifier.Watchdog(ctx)
			<-ctx.Done()
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down rig")
			notifier.Stopping()
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if stopErr := d.Shutdown(shutdownCtx); stopErr != nil {
				logger.Error("Error shutting down rig", "error", stopErr)
			}

			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Debug("Error stopping config watcher", "error", stopErr)
			}
			if systemCollector != nil {
				systemCollector.Stop()
			}
			if ledManager != nil {
				ledManager.Stop()
			}
			if natsBridge != nil {
				natsBridge.Stop()
			}
			if natsServer != nil {
				natsServer.Stop()
			}
		})
	})

	cli.Root().Use = "paws"
	cli.Root().Short = "LED and animatronic rig driver"
	cli.Root().AddCommand(cmd.CreateValidateCmd())
	cli.Root().AddCommand(cmd.CreateGifCmd())
	cli.Root().AddCommand(cmd.CreateUpdateCmd())

	// Run the CLI
	cli.Run()
}
