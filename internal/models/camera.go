package models

import (
	"time"
)

// StreamName identifies one of the camera's video channels
type StreamName string

const (
	StreamThermal StreamName = "thermal"
	StreamNormal  StreamName = "normal"
)

// String returns the string representation of StreamName
func (s StreamName) String() string {
	return string(s)
}

// IsValid checks if the stream name is known
func (s StreamName) IsValid() bool {
	switch s {
	case StreamThermal, StreamNormal:
		return true
	default:
		return false
	}
}

// ListenerState is the connection state of the thermometry listener
type ListenerState string

const (
	ListenerConnecting   ListenerState = "connecting"
	ListenerStreaming    ListenerState = "streaming"
	ListenerDisconnected ListenerState = "disconnected"
	ListenerStopped      ListenerState = "stopped"
)

// StreamStats reports the live preview task of a video stream
type StreamStats struct {
	Name          StreamName `json:"name"`
	Running       bool       `json:"running"`
	FrameCount    int64      `json:"frame_count"`
	ErrorCount    int64      `json:"error_count"`
	LastFrameTime time.Time  `json:"last_frame_time"`
	Width         int        `json:"width"`
	Height        int        `json:"height"`
}

// GateStatus is a snapshot of the event cooldown state
type GateStatus struct {
	LastEventTime time.Time `json:"last_event_time"`
	Processing    bool      `json:"processing"`
}

// ListenerStatus reports the thermometry listener loop
type ListenerStatus struct {
	State               ListenerState `json:"state"`
	LastError           string        `json:"last_error,omitempty"`
	ConnectedAt         time.Time     `json:"connected_at"`
	Sessions            int           `json:"sessions"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	BlocksDecoded       int64         `json:"blocks_decoded"`
	BlocksDiscarded     int64         `json:"blocks_discarded"`
	LastMaxTemperature  *float64      `json:"last_max_temperature_celsius,omitempty"`
	LastReadingAt       time.Time     `json:"last_reading_at"`
}
