// Package metrics provides Prometheus metrics for the animation loops, modes and sinks.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "paws"

var (
	schedulerFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "frames_total",
		Help:      "Animation frames executed",
	}, []string{"loop"})

	schedulerFrameDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "frame_duration_seconds",
		Help:      "Time spent inside a frame callback, including sink fan-out",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.04, 0.08, 0.16},
	}, []string{"loop"})

	schedulerFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "fps",
		Help:      "Measured frame rate over the last second",
	}, []string{"loop"})

	modeSwitches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "driver",
		Name:      "mode_switches_total",
		Help:      "Successful mode switches",
	})

	activeMode = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "driver",
		Name:      "active_mode",
		Help:      "1 for the active mode, 0 otherwise",
	}, []string{"mode"})

	stateChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "states",
		Name:      "changes_total",
		Help:      "State activations by target state",
	}, []string{"handler", "state"})

	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "states",
		Name:      "transitions_total",
		Help:      "Timed transitions started",
	}, []string{"handler", "transition"})

	drawerCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "drawer",
		Name:      "commits_total",
		Help:      "Buffers committed by a drawer",
	}, []string{"mode"})

	drawerOverflows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "drawer",
		Name:      "overflows_total",
		Help:      "Fragment reassembly overflows",
	}, []string{"mode"})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Events dropped because a stream subscriber fell behind",
	}, []string{"event"})

	sinkSupplyErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sink",
		Name:      "supply_errors_total",
		Help:      "Failed buffer supplies",
	}, []string{"sink"})

	sinkSupplyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sink",
		Name:      "supply_duration_seconds",
		Help:      "Time taken by a sink to accept a buffer",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	}, []string{"sink"})

	// Local cache for the API telemetry endpoint.
	fpsCache   = make(map[string]float64)
	fpsCacheMu sync.RWMutex
)

// ObserveFrame records one executed frame for a loop.
func ObserveFrame(loop string, took time.Duration) {
	schedulerFrames.WithLabelValues(loop).Inc()
	schedulerFrameDuration.WithLabelValues(loop).Observe(took.Seconds())
}

// SetFPS records the measured frame rate for a loop.
func SetFPS(loop string, fps float64) {
	schedulerFPS.WithLabelValues(loop).Set(fps)

	fpsCacheMu.Lock()
	fpsCache[loop] = fps
	fpsCacheMu.Unlock()
}

// GetFPS returns the last measured frame rate per loop.
func GetFPS() map[string]float64 {
	fpsCacheMu.RLock()
	defer fpsCacheMu.RUnlock()

	out := make(map[string]float64, len(fpsCache))
	for k, v := range fpsCache {
		out[k] = v
	}
	return out
}

// DeleteFPS drops the frame rate series for a loop that stopped.
func DeleteFPS(loop string) {
	schedulerFPS.DeleteLabelValues(loop)

	fpsCacheMu.Lock()
	delete(fpsCache, loop)
	fpsCacheMu.Unlock()
}

// RecordModeSwitch marks next as the only active mode.
func RecordModeSwitch(prev, next string) {
	modeSwitches.Inc()
	if prev != "" {
		activeMode.WithLabelValues(prev).Set(0)
	}
	activeMode.WithLabelValues(next).Set(1)
}

// RecordStateChange counts a state activation.
func RecordStateChange(handler, state string) {
	stateChanges.WithLabelValues(handler, state).Inc()
}

// RecordTransition counts a timed transition start.
func RecordTransition(handler, transition string) {
	transitions.WithLabelValues(handler, transition).Inc()
}

// RecordCommit counts a committed drawer buffer.
func RecordCommit(mode string) {
	drawerCommits.WithLabelValues(mode).Inc()
}

// RecordOverflow counts a fragment overflow.
func RecordOverflow(mode string) {
	drawerOverflows.WithLabelValues(mode).Inc()
}

// ObserveSupply records the outcome of one sink supply call.
func ObserveSupply(sink string, took time.Duration, err error) {
	sinkSupplyDuration.WithLabelValues(sink).Observe(took.Seconds())
	if err != nil {
		sinkSupplyErrors.WithLabelValues(sink).Inc()
	}
}

// RecordDroppedEvent counts an event a slow subscriber missed.
func RecordDroppedEvent(event string) {
	eventsDropped.WithLabelValues(event).Inc()
}
