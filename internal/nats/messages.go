package nats

import (
	"encoding/json"
	"fmt"
)

// SubjectPrefix is the root of every rig subject.
const SubjectPrefix = "paws"

// SubjectModeSet returns the request subject that switches the active mode.
func SubjectModeSet(device string) string {
	return fmt.Sprintf("%s.%s.mode.set", SubjectPrefix, device)
}

// SubjectModeGet returns the request subject that reports the active mode and the mode list.
func SubjectModeGet(device string) string {
	return fmt.Sprintf("%s.%s.mode.get", SubjectPrefix, device)
}

// SubjectStateSet returns the request subject that switches the state of the active mode.
func SubjectStateSet(device string) string {
	return fmt.Sprintf("%s.%s.state.set", SubjectPrefix, device)
}

// SubjectStateGet returns the request subject that reports states of the active mode.
func SubjectStateGet(device string) string {
	return fmt.Sprintf("%s.%s.state.get", SubjectPrefix, device)
}

// SubjectDraw returns the subject carrying whole raw frames.
func SubjectDraw(device string) string {
	return fmt.Sprintf("%s.%s.draw", SubjectPrefix, device)
}

// SubjectDrawFragment returns the subject carrying frame fragments.
func SubjectDrawFragment(device string) string {
	return fmt.Sprintf("%s.%s.draw.fragment", SubjectPrefix, device)
}

// SubjectEvents returns the subject a rig event of the given kind is published on.
func SubjectEvents(device, kind string) string {
	return fmt.Sprintf("%s.%s.events.%s", SubjectPrefix, device, kind)
}

// Event kinds used in SubjectEvents.
const (
	EventKindMode       = "mode"
	EventKindState      = "state"
	EventKindTransition = "transition"
	EventKindFault      = "fault"
)

// CommandMessage asks the rig to switch to a named mode or state.
type CommandMessage struct {
	Name string `json:"name"`
}

// Marshal serializes the message to JSON.
func (m CommandMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ReplyMessage answers a command or query request.
type ReplyMessage struct {
	Changed   bool     `json:"changed"`
	Current   string   `json:"current"`
	Available []string `json:"available,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Marshal serializes the message to JSON.
func (m ReplyMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalCommand deserializes a CommandMessage from JSON.
// A bare, non-JSON payload is taken as the name itself.
func UnmarshalCommand(data []byte) (CommandMessage, error) {
	var m CommandMessage
	if len(data) > 0 && data[0] != '{' {
		m.Name = string(data)
		return m, nil
	}
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalReply deserializes a ReplyMessage from JSON.
func UnmarshalReply(data []byte) (ReplyMessage, error) {
	var m ReplyMessage
	err := json.Unmarshal(data, &m)
	return m, err
}
