// Package collectors samples host figures into the Prometheus instruments.
package collectors

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/smazurov/paws/internal/logging"
	"github.com/smazurov/paws/internal/metrics"
	"github.com/smazurov/paws/internal/telemetry"
)

// SnapshotReader is satisfied by telemetry.Reader.
type SnapshotReader interface {
	Read() telemetry.Snapshot
}

// SystemCollector periodically copies a telemetry snapshot into the system gauges.
type SystemCollector struct {
	reader   SnapshotReader
	logger   *slog.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSystemCollector creates a collector sampling every interval. Zero uses 10s.
func NewSystemCollector(reader SnapshotReader, interval time.Duration) *SystemCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &SystemCollector{
		reader:   reader,
		logger:   logging.GetLogger("telemetry"),
		interval: interval,
	}
}

// Start begins collecting until ctx is done or Stop is called.
func (c *SystemCollector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)
}

// Stop stops the collector and waits for the last sample.
func (c *SystemCollector) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *SystemCollector) run(ctx context.Context) {
	defer close(c.done)
	c.logger.Debug("Starting system metrics collection", "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Collect()
		}
	}
}

// Collect takes one sample. The temperature gauge is only set when a thermal zone was read.
func (c *SystemCollector) Collect() {
	snap := c.reader.Read()

	metrics.SetUptime(snap.Uptime.Seconds())
	metrics.SetLoad(snap.Load1, snap.Load5, snap.Load15)
	if snap.ThermalZone != "" {
		metrics.SetCPUTemperature(snap.ThermalZone, snap.CPUTemperature)
	}
	if len(snap.Errors) > 0 {
		c.logger.Debug("Partial telemetry sample", "errors", strings.Join(snap.Errors, "; "))
	}
}
