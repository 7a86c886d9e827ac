package collectors

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smazurov/paws/internal/telemetry"
)

type fakeReader struct {
	snap  telemetry.Snapshot
	reads atomic.Int32
}

func (f *fakeReader) Read() telemetry.Snapshot {
	f.reads.Add(1)
	return f.snap
}

const systemMetrics = `
# HELP paws_system_cpu_temperature_celsius Temperature of the CPU thermal zone
# TYPE paws_system_cpu_temperature_celsius gauge
paws_system_cpu_temperature_celsius{zone="cpu-thermal"} 48.5
# HELP paws_system_load_average Host load average
# TYPE paws_system_load_average gauge
paws_system_load_average{window="15m"} 0.25
paws_system_load_average{window="1m"} 1.5
paws_system_load_average{window="5m"} 0.75
# HELP paws_system_uptime_seconds Time since the host booted
# TYPE paws_system_uptime_seconds gauge
paws_system_uptime_seconds 3600
`

func TestCollectSetsGauges(t *testing.T) {
	reader := &fakeReader{snap: telemetry.Snapshot{
		Uptime:         time.Hour,
		Load1:          1.5,
		Load5:          0.75,
		Load15:         0.25,
		CPUTemperature: 48.5,
		ThermalZone:    "cpu-thermal",
	}}
	NewSystemCollector(reader, time.Minute).Collect()

	err := testutil.GatherAndCompare(prometheus.DefaultGatherer, strings.NewReader(systemMetrics),
		"paws_system_uptime_seconds", "paws_system_load_average", "paws_system_cpu_temperature_celsius")
	if err != nil {
		t.Error(err)
	}
}

func TestStartSamplesImmediatelyAndStops(t *testing.T) {
	reader := &fakeReader{}
	c := NewSystemCollector(reader, time.Hour)
	c.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for reader.reads.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()

	if reader.reads.Load() != 1 {
		t.Errorf("reads = %d, want 1", reader.reads.Load())
	}
	c.Stop()
}
