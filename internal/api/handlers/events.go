package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"thermal-worker-go/internal/logging"
	"thermal-worker-go/internal/models"
	"thermal-worker-go/internal/services/evidence"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// EventStore is the read side of the evidence store
type EventStore interface {
	List() ([]*models.EventBundle, error)
	Get(eventID string) (*models.EventBundle, error)
	FilePath(eventID, name string) (string, error)
}

// EventsHandler serves persisted evidence bundles
type EventsHandler struct {
	store EventStore
}

func NewEventsHandler(store EventStore) *EventsHandler {
	return &EventsHandler{store: store}
}

type EventListResponse struct {
	Events []*models.EventBundle `json:"events"`
	Count  int                   `json:"count"`
}

// @Summary List events
// @Description List persisted thermal events, newest first
// @Tags events
// @Produce json
// @Param limit query int false "Maximum number of events"
// @Success 200 {object} EventListResponse
// @Router /events [get]
func (h *EventsHandler) ListEvents(c *gin.Context) {
	events, err := h.store.List()
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to list events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}

	var limit int
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	if events == nil {
		events = []*models.EventBundle{}
	}

	c.JSON(http.StatusOK, EventListResponse{Events: events, Count: len(events)})
}

// @Summary Get event
// @Description Get the descriptor of one event
// @Tags events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} models.EventBundle
// @Failure 404 {object} map[string]string
// @Router /events/{id} [get]
func (h *EventsHandler) GetEvent(c *gin.Context) {
	logging.SetEventID(c, c.Param("id"))
	bundle, err := h.store.Get(c.Param("id"))
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

// @Summary Get event file
// @Description Download data.json, thermal_image.jpg or normal_image.jpg of an event
// @Tags events
// @Produce octet-stream
// @Param id path string true "Event ID"
// @Param name path string true "File name"
// @Success 200 {file} file
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /events/{id}/files/{name} [get]
func (h *EventsHandler) GetEventFile(c *gin.Context) {
	logging.SetEventID(c, c.Param("id"))
	path, err := h.store.FilePath(c.Param("id"), c.Param("name"))
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.File(path)
}

// @Summary Export events
// @Description Export all events as an xlsx report
// @Tags events
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Router /export/events.xlsx [get]
func (h *EventsHandler) ExportEvents(c *gin.Context) {
	events, err := h.store.List()
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to list events for export")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}

	data, err := EventsWorkbook(events)
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to build events workbook")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
		return
	}

	filename := fmt.Sprintf("thermal-events-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *EventsHandler) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, evidence.ErrInvalidFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, evidence.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logging.Error(c).Err(err).Msg("Evidence store error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "evidence store error"})
	}
}

// EventsWorkbook renders events as a single sheet report.
func EventsWorkbook(events []*models.EventBundle) ([]byte, error) {
	const sheet = "Events"

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{
		"Event ID", "Timestamp (UTC)", "Max Temperature (C)", "Alarm Temperature (C)",
		"Pan", "Tilt", "Zoom", "Thermal Image", "Normal Image", "Folder",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
	}

	for i, event := range events {
		row := i + 2
		values := []interface{}{
			event.EventID,
			event.Timestamp.UTC().Format(time.RFC3339),
			optionalFloat(event.MaxTemperatureCelsius),
			event.AlarmTemperatureCelsius,
			nil, nil, nil,
			optionalString(event.Files.ThermalImage),
			optionalString(event.Files.NormalImage),
			event.Folder,
		}
		if ptz := event.PTZPosition; ptz != nil {
			values[4] = ptz.PanDegrees
			values[5] = ptz.TiltDegrees
			values[6] = optionalFloat(ptz.Zoom)
		}
		for col, value := range values {
			if value == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func optionalFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func optionalString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
