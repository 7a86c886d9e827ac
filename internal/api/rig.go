package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/paws/internal/api/models"
	"github.com/smazurov/paws/internal/mode"
	"github.com/smazurov/paws/internal/rigerr"
)

// rigError maps rig errors onto HTTP status codes.
func rigError(msg string, err error) error {
	switch {
	case errors.Is(err, rigerr.ErrSizeMismatch), errors.Is(err, rigerr.ErrOverflow):
		return huma.Error422UnprocessableEntity(msg, err)
	case errors.Is(err, rigerr.ErrUnknownMode), errors.Is(err, rigerr.ErrUnknownState):
		return huma.Error404NotFound(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}

func (s *Server) modesData(changed bool) models.ModesData {
	current := s.driver.ModeName()
	all := s.driver.Modes()
	data := models.ModesData{
		Current: current,
		Changed: changed,
		Modes:   make([]models.ModeInfo, 0, len(all)),
	}
	for _, m := range all {
		info := models.ModeInfo{Name: m.Name(), Active: m.Name() == current}
		if bt, ok := mode.AsBufferTarget(m); ok {
			info.Kind = bt.Kind()
		}
		_, info.States = mode.AsStateMachine(m)
		data.Modes = append(data.Modes, info)
	}
	return data
}

func (s *Server) registerModeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-modes",
		Method:      http.MethodGet,
		Path:        "/api/modes",
		Summary:     "List Modes",
		Description: "List registered modes and the active one",
		Tags:        []string{"modes"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.ModesResponse, error) {
		return &models.ModesResponse{Body: s.modesData(false)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-mode",
		Method:      http.MethodPut,
		Path:        "/api/modes",
		Summary:     "Set Mode",
		Description: "Activate a mode. Setting the active mode again is a no-op.",
		Tags:        []string{"modes"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SetModeRequest) (*models.ModesResponse, error) {
		name := input.Body.Name
		changed, err := s.driver.SetMode(ctx, name)
		if err != nil {
			s.logger.Error("Mode switch failed", "mode", name, "error", err)
			return nil, rigError("Mode activation failed", err)
		}
		if !changed && !slices.Contains(s.driver.ModeNames(), name) {
			return nil, huma.Error404NotFound(fmt.Sprintf("Unknown mode %q", name), rigerr.ErrUnknownMode)
		}
		return &models.ModesResponse{Body: s.modesData(changed)}, nil
	})
}

// stateMachine resolves the handler a state request addresses: the named mode, else
// the active mode, else the first registered state handler.
func (s *Server) stateMachine(name string) (mode.StateMachine, error) {
	modes := s.driver.Modes()
	if name != "" {
		for _, m := range modes {
			if m.Name() != name {
				continue
			}
			if sm, ok := mode.AsStateMachine(m); ok {
				return sm, nil
			}
			return nil, huma.Error400BadRequest(fmt.Sprintf("Mode %q has no states", name))
		}
		return nil, huma.Error404NotFound(fmt.Sprintf("Unknown mode %q", name), rigerr.ErrUnknownMode)
	}

	if sm, ok := s.driver.ActiveStateMachine(); ok {
		return sm, nil
	}
	for _, m := range modes {
		if sm, ok := mode.AsStateMachine(m); ok {
			return sm, nil
		}
	}
	return nil, huma.Error404NotFound("No state handler registered")
}

func (s *Server) statesData(sm mode.StateMachine, changed bool) models.StatesData {
	names := sm.ListStateNames()
	return models.StatesData{
		Handler:    sm.Name(),
		Active:     s.driver.ModeName() == sm.Name(),
		Current:    sm.CurrentState(),
		Changed:    changed,
		States:     names,
		StatesList: strings.Join(names, ","),
	}
}

func (s *Server) registerStateRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-states",
		Method:      http.MethodGet,
		Path:        "/api/states",
		Summary:     "List States",
		Description: "List the states of a state handler and the current one",
		Tags:        []string{"states"},
		Errors:      []int{400, 401, 404},
		Security:    withAuth(),
	}, func(_ context.Context, input *models.StatesQuery) (*models.StatesResponse, error) {
		sm, err := s.stateMachine(input.Handler)
		if err != nil {
			return nil, err
		}
		return &models.StatesResponse{Body: s.statesData(sm, false)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-state",
		Method:      http.MethodPut,
		Path:        "/api/states",
		Summary:     "Set State",
		Description: "Activate a state. Transition states configured between the current and the requested state play first.",
		Tags:        []string{"states"},
		Errors:      []int{400, 401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SetStateRequest) (*models.StatesResponse, error) {
		sm, err := s.stateMachine(input.Handler)
		if err != nil {
			return nil, err
		}
		name := input.Body.Name
		changed, err := sm.SetState(ctx, name)
		if err != nil {
			s.logger.Error("State switch failed", "handler", sm.Name(), "state", name, "error", err)
			return nil, rigError("State activation failed", err)
		}
		if !changed {
			return nil, huma.Error404NotFound(fmt.Sprintf("Unknown state %q", name), rigerr.ErrUnknownState)
		}
		return &models.StatesResponse{Body: s.statesData(sm, changed)}, nil
	})
}

func (s *Server) registerDrawRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-draw-target",
		Method:      http.MethodGet,
		Path:        "/api/draw",
		Summary:     "Draw Target",
		Description: "Report whether the active mode accepts pixel frames or streamed fragments",
		Tags:        []string{"draw"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.DrawTargetResponse, error) {
		data := models.DrawTargetData{Mode: s.driver.ModeName()}
		if target, ok := s.driver.ActiveBufferTarget(); ok {
			data.PixelEnabled = target.Kind() == mode.KindPixel
			data.StreamEnabled = target.Kind() == mode.KindStream
			data.Size = target.BufferSize()
		}
		return &models.DrawTargetResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "draw-frame",
		Method:      http.MethodPost,
		Path:        "/api/draw",
		Summary:     "Draw Frame",
		Description: "Replace the whole frame of the active drawer. The body is packed RGB and must match the frame size exactly.",
		Tags:        []string{"draw"},
		Errors:      []int{401, 409, 422, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.DrawRequest) (*models.DrawResponse, error) {
		target, ok := s.driver.ActiveBufferTarget()
		if !ok {
			return nil, huma.Error409Conflict("Active mode does not accept frames")
		}
		delivered, err := target.Update(ctx, input.RawBody)
		if err != nil {
			s.logger.Warn("Draw failed", "mode", target.Name(), "error", err)
			return nil, rigError("Draw failed", err)
		}
		return &models.DrawResponse{Body: drawData(target, delivered, len(input.RawBody))}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "draw-fragment",
		Method:      http.MethodPost,
		Path:        "/api/draw/fragment",
		Summary:     "Draw Fragment",
		Description: "Append a fragment to the frame being assembled. An empty body restarts the frame. The frame is committed once complete.",
		Tags:        []string{"draw"},
		Errors:      []int{401, 409, 422, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.DrawRequest) (*models.DrawResponse, error) {
		target, ok := s.driver.ActiveBufferTarget()
		if !ok {
			return nil, huma.Error409Conflict("Active mode does not accept frames")
		}
		delivered, err := target.PotentialUpdate(ctx, input.RawBody)
		if err != nil {
			// Overflows are reported by the drawer itself.
			if !errors.Is(err, rigerr.ErrOverflow) {
				s.logger.Warn("Fragment draw failed", "mode", target.Name(), "error", err)
			}
			return nil, rigError("Fragment rejected", err)
		}
		return &models.DrawResponse{Body: drawData(target, delivered, len(input.RawBody))}, nil
	})
}

func drawData(target mode.BufferTarget, delivered bool, received int) models.DrawData {
	return models.DrawData{
		Mode:      target.Name(),
		Kind:      target.Kind(),
		Delivered: delivered,
		Size:      target.BufferSize(),
		Received:  received,
	}
}
