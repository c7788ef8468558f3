package models

import (
	"encoding/json"
	"time"
)

// Evidence file names inside an event directory
const (
	DescriptorFileName   = "data.json"
	ThermalImageFileName = "thermal_image.jpg"
	NormalImageFileName  = "normal_image.jpg"
)

// PTZPosition is the mechanical position of the camera head in degrees
type PTZPosition struct {
	PanDegrees  float64  `json:"pan_degrees"`
	TiltDegrees float64  `json:"tilt_degrees"`
	Zoom        *float64 `json:"zoom,omitempty"`
}

// AlarmConfig is the alarm configuration active when an event was created
type AlarmConfig struct {
	SetTemperatureCelsius float64 `json:"set_temperature_celsius"`
	CooldownSeconds       float64 `json:"cooldown_seconds"`
}

// FileManifest lists the files written for an event. A nil image entry means
// the corresponding capture step failed.
type FileManifest struct {
	ThermalImage *string `json:"thermal_image"`
	NormalImage  *string `json:"normal_image"`
	EventData    string  `json:"event_data"`
}

// EventBundle is the JSON descriptor of a persisted thermal anomaly event
type EventBundle struct {
	EventID                 string          `json:"event_id"`
	Timestamp               time.Time       `json:"timestamp_utc"`
	TriggeringThermalData   json.RawMessage `json:"triggering_thermal_data"`
	MaxTemperatureCelsius   *float64        `json:"max_temperature_celsius"`
	Hotspot                 *Point          `json:"hotspot"`
	PTZPosition             *PTZPosition    `json:"ptz_position_at_event"`
	AlarmTemperatureCelsius float64         `json:"alarm_temperature_celsius"`
	AlarmConfig             AlarmConfig     `json:"alarm_config"`
	Files                   FileManifest    `json:"files"`

	// Folder is the directory name under the events root, not persisted
	Folder string `json:"-"`
}

// ShortID is the event id prefix used in folder names.
func (b *EventBundle) ShortID() string {
	if len(b.EventID) < 8 {
		return b.EventID
	}
	return b.EventID[:8]
}

// Summary builds the notification payload for this bundle.
func (b *EventBundle) Summary(workerID string) EventSummary {
	return EventSummary{
		WorkerID:                workerID,
		EventID:                 b.EventID,
		Timestamp:               b.Timestamp,
		Folder:                  b.Folder,
		MaxTemperatureCelsius:   b.MaxTemperatureCelsius,
		AlarmTemperatureCelsius: b.AlarmTemperatureCelsius,
		Hotspot:                 b.Hotspot,
		PTZPosition:             b.PTZPosition,
		HasThermalImage:         b.Files.ThermalImage != nil,
		HasNormalImage:          b.Files.NormalImage != nil,
	}
}

// EventSummary is the compact event announcement sent to notification sinks
type EventSummary struct {
	WorkerID                string       `json:"worker_id"`
	EventID                 string       `json:"event_id"`
	Timestamp               time.Time    `json:"timestamp_utc"`
	Folder                  string       `json:"folder"`
	MaxTemperatureCelsius   *float64     `json:"max_temperature_celsius"`
	AlarmTemperatureCelsius float64      `json:"alarm_temperature_celsius"`
	Hotspot                 *Point       `json:"hotspot,omitempty"`
	PTZPosition             *PTZPosition `json:"ptz_position,omitempty"`
	HasThermalImage         bool         `json:"has_thermal_image"`
	HasNormalImage          bool         `json:"has_normal_image"`
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
