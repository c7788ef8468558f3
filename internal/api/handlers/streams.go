package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"thermal-worker-go/internal/models"
	"thermal-worker-go/internal/services/publisher/mjpeg"
)

// FrameSource returns the latest live frame of a stream as JPEG
type FrameSource interface {
	LatestJPEG() ([]byte, time.Time, error)
}

type StreamsHandler struct {
	sources       map[models.StreamName]FrameSource
	mjpegInterval time.Duration
}

func NewStreamsHandler(sources map[models.StreamName]FrameSource, mjpegInterval time.Duration) *StreamsHandler {
	return &StreamsHandler{sources: sources, mjpegInterval: mjpegInterval}
}

func (h *StreamsHandler) source(c *gin.Context) (models.StreamName, FrameSource, bool) {
	name := models.StreamName(c.Param("name"))
	if !name.IsValid() {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown stream"})
		return name, nil, false
	}
	source, ok := h.sources[name]
	if !ok || source == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live preview disabled"})
		return name, nil, false
	}
	return name, source, true
}

// @Summary Latest frame
// @Description Latest live preview frame of the thermal or normal stream
// @Tags streams
// @Produce image/jpeg
// @Param name path string true "Stream name (thermal or normal)"
// @Success 200 {file} file
// @Failure 404 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /streams/{name}/frame [get]
func (h *StreamsHandler) GetLatestFrame(c *gin.Context) {
	_, source, ok := h.source(c)
	if !ok {
		return
	}

	data, ts, err := source.LatestJPEG()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Header("X-Frame-Timestamp", ts.UTC().Format(time.RFC3339Nano))
	c.Data(http.StatusOK, "image/jpeg", data)
}

// @Summary Live MJPEG
// @Description Live preview of the thermal or normal stream as multipart/x-mixed-replace
// @Tags streams
// @Produce multipart/x-mixed-replace
// @Param name path string true "Stream name (thermal or normal)"
// @Success 200 {file} file
// @Failure 404 {object} map[string]string
// @Router /streams/{name}/mjpeg [get]
func (h *StreamsHandler) StreamMJPEG(c *gin.Context) {
	name, source, ok := h.source(c)
	if !ok {
		return
	}
	mjpeg.NewPublisher(name.String(), source, h.mjpegInterval).StreamMJPEGHTTP(c.Writer, c.Request)
}
