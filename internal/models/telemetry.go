package models

import (
	"encoding/json"
	"time"
)

// TelemetrySource identifies the payload format a record was decoded from
type TelemetrySource string

const (
	TelemetrySourceJSON TelemetrySource = "json"
	TelemetrySourceXML  TelemetrySource = "xml"
)

// TelemetryRecord is one decoded block of the real-time thermometry stream.
//
// Every nested field is optional: the camera omits sections depending on the
// rule type, so all access goes through the accessor methods below, which
// stop at the first missing link.
type TelemetryRecord struct {
	UploadList *ThermometryUploadList `json:"ThermometryUploadList,omitempty"`

	Source     TelemetrySource `json:"-"`
	ReceivedAt time.Time       `json:"-"`
	Raw        json.RawMessage `json:"-"`
}

// ThermometryUploadList wraps the per-rule measurements
type ThermometryUploadList struct {
	ThermometryUpload []ThermometryUpload `json:"ThermometryUpload,omitempty"`
}

// ThermometryUpload is the measurement of a single thermometry rule
type ThermometryUpload struct {
	RelativeTime        *int64               `json:"relativeTime,omitempty"`
	AbsoluteTime        *int64               `json:"absoluteTime,omitempty"`
	RuleName            *string              `json:"ruleName,omitempty"`
	RuleID              *int                 `json:"ruleID,omitempty"`
	RuleCalibType       *int                 `json:"ruleCalibType,omitempty"`
	PresetNo            *int                 `json:"presetNo,omitempty"`
	LinePolygonThermCfg *LinePolygonThermCfg `json:"LinePolygonThermCfg,omitempty"`
	HighestPoint        *ThermalPoint        `json:"HighestPoint,omitempty"`
	LowestPoint         *ThermalPoint        `json:"LowestPoint,omitempty"`

	// Raw keeps the entry exactly as the camera sent it
	Raw json.RawMessage `json:"-"`
}

// LinePolygonThermCfg holds the temperatures measured inside a rule region (°C)
type LinePolygonThermCfg struct {
	MaxTemperature     *float64 `json:"MaxTemperature,omitempty"`
	MinTemperature     *float64 `json:"MinTemperature,omitempty"`
	AverageTemperature *float64 `json:"AverageTemperature,omitempty"`
	TemperatureDiff    *float64 `json:"TemperatureDiff,omitempty"`
}

// ThermalPoint is a normalized (0..1) coordinate on the thermal image
type ThermalPoint struct {
	PositionX *float64 `json:"positionX,omitempty"`
	PositionY *float64 `json:"positionY,omitempty"`
}

// Point is a resolved ThermalPoint
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PrimaryUpload returns the first rule measurement.
func (r *TelemetryRecord) PrimaryUpload() (*ThermometryUpload, bool) {
	if r == nil || r.UploadList == nil || len(r.UploadList.ThermometryUpload) == 0 {
		return nil, false
	}
	return &r.UploadList.ThermometryUpload[0], true
}

func (r *TelemetryRecord) thermCfg() (*LinePolygonThermCfg, bool) {
	upload, ok := r.PrimaryUpload()
	if !ok || upload.LinePolygonThermCfg == nil {
		return nil, false
	}
	return upload.LinePolygonThermCfg, true
}

// MaxTemperature walks ThermometryUploadList.ThermometryUpload[0].LinePolygonThermCfg.MaxTemperature.
func (r *TelemetryRecord) MaxTemperature() (float64, bool) {
	cfg, ok := r.thermCfg()
	if !ok || cfg.MaxTemperature == nil {
		return 0, false
	}
	return *cfg.MaxTemperature, true
}

func (r *TelemetryRecord) MinTemperature() (float64, bool) {
	cfg, ok := r.thermCfg()
	if !ok || cfg.MinTemperature == nil {
		return 0, false
	}
	return *cfg.MinTemperature, true
}

func (r *TelemetryRecord) AverageTemperature() (float64, bool) {
	cfg, ok := r.thermCfg()
	if !ok || cfg.AverageTemperature == nil {
		return 0, false
	}
	return *cfg.AverageTemperature, true
}

// Hotspot returns the coordinate of the hottest pixel of the primary rule.
func (r *TelemetryRecord) Hotspot() (Point, bool) {
	upload, ok := r.PrimaryUpload()
	if !ok {
		return Point{}, false
	}
	return upload.HighestPoint.resolve()
}

// Coldspot returns the coordinate of the coldest pixel of the primary rule.
func (r *TelemetryRecord) Coldspot() (Point, bool) {
	upload, ok := r.PrimaryUpload()
	if !ok {
		return Point{}, false
	}
	return upload.LowestPoint.resolve()
}

func (p *ThermalPoint) resolve() (Point, bool) {
	if p == nil || p.PositionX == nil || p.PositionY == nil {
		return Point{}, false
	}
	return Point{X: *p.PositionX, Y: *p.PositionY}, true
}

// TriggeringData is the payload persisted as evidence: the primary rule entry
// as received, or the whole record when no entry is available.
func (r *TelemetryRecord) TriggeringData() json.RawMessage {
	if r == nil {
		return nil
	}
	if upload, ok := r.PrimaryUpload(); ok && len(upload.Raw) > 0 {
		return upload.Raw
	}
	return r.Raw
}

// UnmarshalJSON keeps a copy of the raw entry alongside the typed fields.
func (u *ThermometryUpload) UnmarshalJSON(data []byte) error {
	type alias ThermometryUpload
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*u = ThermometryUpload(a)
	u.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Float64 returns a pointer to v, for building records by hand
func Float64(v float64) *float64 {
	return &v
}
