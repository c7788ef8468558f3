package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"thermal-worker-go/internal/logging"
	"thermal-worker-go/internal/models"
	"thermal-worker-go/internal/services/isapi"
)

// PTZController moves the camera head
type PTZController interface {
	PTZPosition(ctx context.Context) (*models.PTZPosition, error)
	GotoPosition(ctx context.Context, target models.PTZPosition) error
}

type PTZHandler struct {
	ptz PTZController
}

func NewPTZHandler(ptz PTZController) *PTZHandler {
	return &PTZHandler{ptz: ptz}
}

type GotoRequest struct {
	Pan  *float64 `json:"pan" binding:"required" example:"120.5"`
	Tilt *float64 `json:"tilt" binding:"required" example:"10"`
	Zoom *float64 `json:"zoom,omitempty" example:"1"`
}

// @Summary PTZ position
// @Description Current pan, tilt and zoom of the camera head
// @Tags ptz
// @Produce json
// @Success 200 {object} models.PTZPosition
// @Failure 502 {object} map[string]string
// @Router /ptz/position [get]
func (h *PTZHandler) GetPosition(c *gin.Context) {
	position, err := h.ptz.PTZPosition(c.Request.Context())
	if err != nil {
		logging.Warn(c).Err(err).Msg("PTZ status request failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, position)
}

// @Summary Move PTZ
// @Description Move the camera head to an absolute position
// @Tags ptz
// @Accept json
// @Produce json
// @Param request body GotoRequest true "Target position"
// @Success 200 {object} models.PTZPosition
// @Failure 400 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /ptz/goto [post]
func (h *PTZHandler) Goto(c *gin.Context) {
	var req GotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target := models.PTZPosition{PanDegrees: *req.Pan, TiltDegrees: *req.Tilt, Zoom: req.Zoom}
	if err := h.ptz.GotoPosition(c.Request.Context(), target); err != nil {
		if errors.Is(err, isapi.ErrInvalidPosition) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logging.Warn(c).Err(err).Msg("PTZ move failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	logging.Info(c).Float64("pan", target.PanDegrees).Float64("tilt", target.TiltDegrees).Msg("PTZ moved")
	c.JSON(http.StatusOK, target)
}
