package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"thermal-worker-go/internal/models"
)

const noEventsYet = "No events yet."

// GateStatusProvider reports the event cooldown state
type GateStatusProvider interface {
	Status() models.GateStatus
}

// ListenerStatusProvider reports the thermometry listener state
type ListenerStatusProvider interface {
	Status() models.ListenerStatus
}

type HealthHandler struct {
	WorkerID string
	Version  string
	gate     GateStatusProvider
	listener ListenerStatusProvider
}

func NewHealthHandler(workerID, version string, gate GateStatusProvider, listener ListenerStatusProvider) *HealthHandler {
	return &HealthHandler{WorkerID: workerID, Version: version, gate: gate, listener: listener}
}

type HealthResponse struct {
	Status   string                `json:"status" example:"healthy"`
	WorkerID string                `json:"worker_id" example:"thermal-1"`
	Version  string                `json:"version" example:"1.0.0"`
	Listener models.ListenerStatus `json:"listener"`
	Gate     models.GateStatus     `json:"gate"`
}

type LivenessResponse struct {
	ServiceStatus              string               `json:"service_status" example:"running"`
	LastEventTimestamp         string               `json:"last_event_timestamp" example:"2024-06-01T12:00:00Z"`
	IsCurrentlyProcessingEvent bool                 `json:"is_currently_processing_event"`
	ListenerState              models.ListenerState `json:"listener_state" example:"streaming"`
	APIDocs                    string               `json:"api_docs" example:"/docs/index.html"`
}

// @Summary Service status
// @Description Liveness with the last event time and whether a capture is in progress
// @Tags health
// @Produce json
// @Success 200 {object} LivenessResponse
// @Router / [get]
func (h *HealthHandler) Liveness(c *gin.Context) {
	gate := h.gate.Status()

	lastEvent := noEventsYet
	if !gate.LastEventTime.IsZero() {
		lastEvent = gate.LastEventTime.UTC().Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, LivenessResponse{
		ServiceStatus:              "running",
		LastEventTimestamp:         lastEvent,
		IsCurrentlyProcessingEvent: gate.Processing,
		ListenerState:              h.listener.Status().State,
		APIDocs:                    "/docs/index.html",
	})
}

// @Summary Health check
// @Description Healthy while the thermometry listener is streaming or reconnecting
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	listener := h.listener.Status()

	status, code := "healthy", http.StatusOK
	switch listener.State {
	case models.ListenerStopped:
		status, code = "unhealthy", http.StatusServiceUnavailable
	case models.ListenerDisconnected, models.ListenerConnecting:
		status = "degraded"
	}

	c.JSON(code, HealthResponse{
		Status:   status,
		WorkerID: h.WorkerID,
		Version:  h.Version,
		Listener: listener,
		Gate:     h.gate.Status(),
	})
}
