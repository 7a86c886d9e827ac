package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/paws/internal/api/models"
	"github.com/smazurov/paws/internal/events"
	"github.com/smazurov/paws/internal/metrics"
)

const defaultMetricsInterval = time.Second

// MetricsStreamInput sets the FPS sample period.
type MetricsStreamInput struct {
	IntervalMs int `query:"interval_ms" minimum:"100" maximum:"60000" example:"1000" doc:"Sample period in milliseconds"`
}

// registerMetricsRoutes registers the frame rate SSE endpoint.
func (s *Server) registerMetricsRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "metrics-stream",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Frame Rate Stream",
		Description: "Measured frame rate of every running animation loop, sampled periodically",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"fps": models.FPSEvent{},
	}, func(ctx context.Context, input *MetricsStreamInput, send sse.Sender) {
		interval := s.options.MetricsInterval
		if input.IntervalMs > 0 {
			interval = time.Duration(input.IntervalMs) * time.Millisecond
		}
		if interval <= 0 {
			interval = defaultMetricsInterval
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if err := send.Data(models.FPSEvent{
				Loops:     metrics.GetFPS(),
				Timestamp: events.Now(),
			}); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
}
