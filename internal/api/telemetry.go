package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/paws/internal/api/models"
	"github.com/smazurov/paws/internal/metrics"
)

func (s *Server) registerTelemetryRoutes() {
	if s.options.Telemetry == nil {
		s.logger.Debug("Telemetry reader not available, skipping telemetry routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-telemetry",
		Method:      http.MethodGet,
		Path:        "/api/telemetry",
		Summary:     "Telemetry",
		Description: "Host uptime, load, CPU temperature and addresses alongside the rig state",
		Tags:        []string{"system"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.TelemetryResponse, error) {
		snap := s.options.Telemetry.Read()
		data := models.TelemetryData{
			Snapshot:      snap,
			UptimeSeconds: snap.Uptime.Seconds(),
			Mode:          s.driver.ModeName(),
			FPS:           metrics.GetFPS(),
		}
		if sm, ok := s.driver.ActiveStateMachine(); ok {
			data.State = sm.CurrentState()
		}
		return &models.TelemetryResponse{Body: data}, nil
	})
}
