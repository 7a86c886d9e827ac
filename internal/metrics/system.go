package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	systemUptime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "system",
		Name:      "uptime_seconds",
		Help:      "Time since the host booted",
	})

	systemLoad = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "system",
		Name:      "load_average",
		Help:      "Host load average",
	}, []string{"window"})

	systemCPUTemperature = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "system",
		Name:      "cpu_temperature_celsius",
		Help:      "Temperature of the CPU thermal zone",
	}, []string{"zone"})
)

// SetUptime records the host uptime.
func SetUptime(seconds float64) {
	systemUptime.Set(seconds)
}

// SetLoad records the 1, 5 and 15 minute load averages.
func SetLoad(load1, load5, load15 float64) {
	systemLoad.WithLabelValues("1m").Set(load1)
	systemLoad.WithLabelValues("5m").Set(load5)
	systemLoad.WithLabelValues("15m").Set(load15)
}

// SetCPUTemperature records the temperature of zone.
func SetCPUTemperature(zone string, celsius float64) {
	systemCPUTemperature.WithLabelValues(zone).Set(celsius)
}
