package events

// Event type constants for kelindar/event.
const (
	TypeModeChanged uint32 = iota + 1
	TypeStateChanged
	TypeTransition
	TypeFrameCommitted
	TypeFragmentOverflow
	TypeSchedulerFault
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ModeChangedEvent is published after the driver installs a new active mode.
type ModeChangedEvent struct {
	Previous  string `json:"previous" example:"States" doc:"Mode that was active before, empty on first activation"`
	Current   string `json:"current" example:"PixelDrawer" doc:"Mode that is now active"`
	Kind      string `json:"kind,omitempty" example:"pixel" doc:"Buffer target kind of the new mode, if any"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ModeChangedEvent.
func (e ModeChangedEvent) Type() uint32 { return TypeModeChanged }

// StateChangedEvent is published after a state handler activates a state.
type StateChangedEvent struct {
	Handler   string `json:"handler" example:"States" doc:"State handler mode name"`
	Previous  string `json:"previous" example:"idle" doc:"Previously active state"`
	Current   string `json:"current" example:"blink" doc:"Newly active state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StateChangedEvent.
func (e StateChangedEvent) Type() uint32 { return TypeStateChanged }

// Transition phases.
const (
	PhaseStarted = "started"
	PhaseEnded   = "ended"
)

// TransitionEvent reports the start or end of a timed transition state.
type TransitionEvent struct {
	Handler   string `json:"handler" example:"States" doc:"State handler mode name"`
	From      string `json:"from" example:"idle" doc:"State the handler left"`
	To        string `json:"to" example:"happy" doc:"State the transition leads into"`
	Via       string `json:"via" example:"idle-to-happy" doc:"Transition state being rendered"`
	Phase     string `json:"phase" example:"started" doc:"started or ended"`
	LengthMs  int64  `json:"length_ms,omitempty" example:"500" doc:"Transition length in milliseconds"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TransitionEvent.
func (e TransitionEvent) Type() uint32 { return TypeTransition }

// FrameCommittedEvent is published when a drawer commits a complete frame.
type FrameCommittedEvent struct {
	Mode      string `json:"mode" example:"PixelDrawer" doc:"Drawer mode name"`
	Kind      string `json:"kind" example:"pixel" doc:"pixel or stream"`
	Size      int    `json:"size" example:"1152" doc:"Frame size in bytes"`
	Delivered bool   `json:"delivered" doc:"Whether the frame was sent to the interfaces"`
	Data      []byte `json:"-"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FrameCommittedEvent.
func (e FrameCommittedEvent) Type() uint32 { return TypeFrameCommitted }

// FragmentOverflowEvent is published once per fragment reassembly overflow.
type FragmentOverflowEvent struct {
	Mode      string `json:"mode" example:"StreamDrawer" doc:"Drawer mode name"`
	Received  int    `json:"received" example:"10" doc:"Bytes accumulated including the rejected fragment"`
	Expected  int    `json:"expected" example:"9" doc:"Bytes needed to commit"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FragmentOverflowEvent.
func (e FragmentOverflowEvent) Type() uint32 { return TypeFragmentOverflow }

// SchedulerFaultEvent is published when an animation loop halts on a frame error.
type SchedulerFaultEvent struct {
	Loop      string `json:"loop" example:"States" doc:"Animation loop name"`
	Error     string `json:"error" doc:"Error that halted the loop"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SchedulerFaultEvent.
func (e SchedulerFaultEvent) Type() uint32 { return TypeSchedulerFault }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"driver" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
