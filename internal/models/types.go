package models

import (
	"time"

	"DROWSY_DETECTOR/go-backend/internal/drowsiness"
)

// StatusEvent is pushed to websocket clients and MQTT whenever the status
// label or the alarm state changes.
type StatusEvent struct {
	Status      string              `json:"status"`
	Color       drowsiness.Color    `json:"color"`
	AlarmOn     bool                `json:"alarm_on"`
	Detection   bool                `json:"detection_active"`
	Counters    drowsiness.Counters `json:"counters"`
	LeftEye     string              `json:"left_eye,omitempty"`
	RightEye    string              `json:"right_eye,omitempty"`
	FrameNumber int64               `json:"frame_number"`
	Timestamp   int64               `json:"timestamp"`
}

// StatusSnapshot is the current monitor state.
type StatusSnapshot struct {
	Status      string              `json:"status"`
	Color       drowsiness.Color    `json:"color"`
	AlarmOn     bool                `json:"alarm_on"`
	Detection   bool                `json:"detection_active"`
	Counters    drowsiness.Counters `json:"counters"`
	ClosedSince *time.Time          `json:"closed_since,omitempty"`
	Viewers     int                 `json:"viewers"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
	Code      string `json:"code,omitempty"`
}

type HealthStatus struct {
	Status          string        `json:"status"`
	GoBackend       string        `json:"go_backend"`
	LandmarkService bool          `json:"landmark_service"`
	ActiveClients   int           `json:"active_clients"`
	Uptime          time.Duration `json:"uptime"`
	Version         string        `json:"version,omitempty"`
}

type MetricsResponse struct {
	TotalFrames      int64   `json:"total_frames"`
	TotalErrors      int64   `json:"total_errors"`
	FacelessFrames   int64   `json:"faceless_frames"`
	AlarmActivations int64   `json:"alarm_activations"`
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
	Viewers          int     `json:"viewers"`
	WebSocketClients int64   `json:"websocket_clients"`
	UptimeSec        int     `json:"system_uptime_sec"`
	Timestamp        string  `json:"timestamp"`
}
