package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"thermal-worker-go/internal/models"
)

// StreamStatsProvider reports a live preview task
type StreamStatsProvider interface {
	Stats() models.StreamStats
}

// SystemHandler handles system-related endpoints
type SystemHandler struct {
	WorkerID  string
	startedAt time.Time
	streams   []StreamStatsProvider
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(workerID string, streams ...StreamStatsProvider) *SystemHandler {
	return &SystemHandler{
		WorkerID:  workerID,
		startedAt: time.Now(),
		streams:   streams,
	}
}

// @Summary Get system stats
// @Description Get process statistics and live preview counters
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /system/stats [get]
func (h *SystemHandler) GetStats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	streams := make([]models.StreamStats, 0, len(h.streams))
	for _, s := range h.streams {
		streams = append(streams, s.Stats())
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats": gin.H{
			"worker_id":      h.WorkerID,
			"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
			"memory_mb":      m.Alloc / 1024 / 1024,
			"cpu_cores":      runtime.NumCPU(),
			"goroutines":     runtime.NumGoroutine(),
			"go_version":     runtime.Version(),
			"streams":        streams,
		},
		"timestamp": time.Now().Unix(),
	})
}
