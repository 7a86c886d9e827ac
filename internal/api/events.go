package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/paws/internal/events"
	"github.com/smazurov/paws/internal/mode"
)

// registerSSERoutes registers the rig event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time mode, state, transition, frame and fault events. The first message is the current mode.",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"mode-changed":      events.ModeChangedEvent{},
		"state-changed":     events.StateChangedEvent{},
		"transition":        events.TransitionEvent{},
		"frame-committed":   events.FrameCommittedEvent{},
		"fragment-overflow": events.FragmentOverflowEvent{},
		"scheduler-fault":   events.SchedulerFaultEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.ModeChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.TransitionEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FrameCommittedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FragmentOverflowEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SchedulerFaultEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(s.currentModeEvent()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

// currentModeEvent describes the active mode as if it had just been switched to.
func (s *Server) currentModeEvent() events.ModeChangedEvent {
	ev := events.ModeChangedEvent{
		Current:   s.driver.ModeName(),
		Timestamp: events.Now(),
	}
	if bt, ok := mode.AsBufferTarget(s.driver.Mode()); ok {
		ev.Kind = bt.Kind()
	}
	return ev
}
