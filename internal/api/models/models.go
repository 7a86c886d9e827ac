// Package models holds the request and response bodies of the HTTP API.
package models

import (
	"time"

	"github.com/smazurov/paws/internal/telemetry"
	"github.com/smazurov/paws/internal/updater"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.21.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Mode models
type ModeInfo struct {
	Name   string `json:"name" example:"PixelDrawer" doc:"Mode name"`
	Kind   string `json:"kind,omitempty" example:"pixel" doc:"Buffer target kind, empty for modes that do not accept frames"`
	States bool   `json:"states" example:"false" doc:"Whether the mode sequences named states"`
	Active bool   `json:"active" example:"true" doc:"Whether the mode is currently active"`
}

type ModesData struct {
	Current string     `json:"current" example:"States" doc:"Active mode, empty before start"`
	Changed bool       `json:"changed" example:"true" doc:"Whether the request switched modes"`
	Modes   []ModeInfo `json:"modes" doc:"Registered modes in registration order"`
}

type ModesResponse struct {
	Body ModesData
}

type SetModeRequest struct {
	Body struct {
		Name string `json:"name" minLength:"1" example:"PixelDrawer" doc:"Mode to activate"`
	}
}

// State models
type StatesData struct {
	Handler    string   `json:"handler" example:"States" doc:"State handler mode"`
	Active     bool     `json:"active" example:"true" doc:"Whether the handler is the active mode"`
	Current    string   `json:"current" example:"idle" doc:"Current state"`
	Changed    bool     `json:"changed" example:"false" doc:"Whether the request switched states"`
	States     []string `json:"states" doc:"Registered state names in insertion order"`
	StatesList string   `json:"states_list" example:"idle,happy,sleep" doc:"Comma-joined state names"`
}

type StatesResponse struct {
	Body StatesData
}

type StatesQuery struct {
	Handler string `query:"handler" example:"States" doc:"State handler mode; defaults to the active mode, then the first state handler"`
}

type SetStateRequest struct {
	Handler string `query:"handler" example:"States" doc:"State handler mode; defaults to the active mode, then the first state handler"`
	Body    struct {
		Name string `json:"name" minLength:"1" example:"happy" doc:"State to activate"`
	}
}

// Draw models
type DrawRequest struct {
	RawBody []byte `contentType:"application/octet-stream"`
}

type DrawData struct {
	Mode      string `json:"mode" example:"PixelDrawer" doc:"Mode that received the buffer"`
	Kind      string `json:"kind" example:"pixel" doc:"pixel or stream"`
	Delivered bool   `json:"delivered" example:"true" doc:"Whether a complete frame was sent to the interfaces"`
	Size      int    `json:"size" example:"1152" doc:"Full frame size in bytes"`
	Received  int    `json:"received" example:"20" doc:"Bytes in this request"`
}

type DrawResponse struct {
	Body DrawData
}

type DrawTargetData struct {
	PixelEnabled  bool   `json:"pixel_enabled" example:"true" doc:"Whether the active mode accepts whole pixel frames"`
	StreamEnabled bool   `json:"stream_enabled" example:"false" doc:"Whether the active mode accepts streamed fragments"`
	Mode          string `json:"mode" example:"PixelDrawer" doc:"Active mode"`
	Size          int    `json:"size,omitempty" example:"1152" doc:"Frame size of the active buffer target"`
}

type DrawTargetResponse struct {
	Body DrawTargetData
}

// Telemetry models
type TelemetryData struct {
	telemetry.Snapshot
	UptimeSeconds float64            `json:"uptime_seconds" example:"3600.5" doc:"Host uptime in seconds"`
	Mode          string             `json:"mode" example:"States" doc:"Active mode"`
	State         string             `json:"state,omitempty" example:"idle" doc:"Current state of the active state handler"`
	FPS           map[string]float64 `json:"fps" doc:"Measured frame rate per animation loop"`
}

type TelemetryResponse struct {
	Body TelemetryData
}

// Metrics stream models
type FPSEvent struct {
	Loops     map[string]float64 `json:"loops" doc:"Measured frame rate per animation loop"`
	Timestamp string             `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Sample timestamp"`
}

// LED models
type LEDRequest struct {
	Body struct {
		Type    string  `json:"type" example:"act" doc:"LED type (board-specific)"`
		Enabled bool    `json:"enabled" example:"true" doc:"Whether the LED should be on or off"`
		Pattern *string `json:"pattern,omitempty" example:"solid" doc:"Optional LED pattern (solid, blink, heartbeat)"`
	}
}

type LEDCapabilitiesData struct {
	AvailableTypes    []string `json:"available_types" doc:"List of available LED types on this board"`
	AvailablePatterns []string `json:"available_patterns" doc:"List of available LED patterns on this board"`
}

type LEDCapabilitiesResponse struct {
	Body LEDCapabilitiesData
}

// Update models
type UpdateCheckData struct {
	CurrentVersion  string    `json:"current_version" example:"1.0.0" doc:"Running version"`
	LatestVersion   string    `json:"latest_version" example:"1.1.0" doc:"Latest published version"`
	ReleaseNotes    string    `json:"release_notes,omitempty" doc:"Release notes of the latest version"`
	ReleaseURL      string    `json:"release_url,omitempty" doc:"Release page"`
	PublishedAt     time.Time `json:"published_at,omitempty" doc:"Publication time"`
	AssetSize       int       `json:"asset_size,omitempty" doc:"Download size in bytes"`
	UpdateAvailable bool      `json:"update_available" example:"true" doc:"Whether the latest version is newer"`
}

type UpdateCheckResponse struct {
	Body UpdateCheckData
}

type UpdateStatusResponse struct {
	Body updater.Status
}

type UpdateMessageResponse struct {
	Body struct {
		Message string `json:"message" example:"Update applied, restarting" doc:"Status message"`
	}
}
