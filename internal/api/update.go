package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/paws/internal/api/models"
	"github.com/smazurov/paws/internal/updater"
)

func (s *Server) registerUpdateRoutes() {
	u := s.options.Updater
	if u == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "check-update",
		Method:      http.MethodGet,
		Path:        "/api/update/check",
		Summary:     "Check for Update",
		Description: "Ask the release source whether a newer version exists",
		Tags:        []string{"update"},
		Errors:      []int{401, 404, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateCheckResponse, error) {
		rel, err := u.Check(ctx)
		if err != nil {
			return nil, updateError(err)
		}
		st := u.Status()
		return &models.UpdateCheckResponse{
			Body: models.UpdateCheckData{
				CurrentVersion:  st.CurrentVersion,
				LatestVersion:   rel.Version,
				ReleaseNotes:    rel.Notes,
				ReleaseURL:      rel.URL,
				PublishedAt:     rel.PublishedAt,
				AssetSize:       rel.Size,
				UpdateAvailable: rel.Newer,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-update-status",
		Method:      http.MethodGet,
		Path:        "/api/update/status",
		Summary:     "Update Status",
		Tags:        []string{"update"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.UpdateStatusResponse, error) {
		return &models.UpdateStatusResponse{Body: u.Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "apply-update",
		Method:      http.MethodPost,
		Path:        "/api/update/apply",
		Summary:     "Apply Update",
		Description: "Install the latest release over the running binary and restart",
		Tags:        []string{"update"},
		Errors:      []int{400, 401, 404, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateMessageResponse, error) {
		if err := u.Apply(ctx); err != nil {
			return nil, updateError(err)
		}
		resp := &models.UpdateMessageResponse{}
		resp.Body.Message = "Update applied, restarting"
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "rollback-update",
		Method:      http.MethodPost,
		Path:        "/api/update/rollback",
		Summary:     "Roll Back Update",
		Description: "Restore the binary replaced by the last update and restart",
		Tags:        []string{"update"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateMessageResponse, error) {
		if err := u.Rollback(ctx); err != nil {
			return nil, updateError(err)
		}
		resp := &models.UpdateMessageResponse{}
		resp.Body.Message = "Rolled back, restarting"
		return resp, nil
	})
}

func updateError(err error) error {
	switch {
	case errors.Is(err, updater.ErrBusy):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, updater.ErrNoUpdate):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, updater.ErrNoRelease), errors.Is(err, updater.ErrNoBackup):
		return huma.Error404NotFound(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
