package telemetry

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"thermal-worker-go/internal/models"
)

var (
	// ErrNotTelemetry is returned for sections that carry no telemetry payload
	ErrNotTelemetry = errors.New("block carries no telemetry payload")
	// ErrMalformed is returned for truncated or invalid payloads
	ErrMalformed = errors.New("malformed telemetry payload")
)

// Decode converts a parsed block into a TelemetryRecord.
func Decode(block Block) (*models.TelemetryRecord, error) {
	switch block.Kind {
	case BlockJSON:
		return decodeJSON(block.Body)
	case BlockXML:
		return decodeXML(block.Body)
	default:
		return nil, ErrNotTelemetry
	}
}

// decodeJSON decodes the first complete JSON value of body. A value cut
// short by the end of the section is reported as malformed instead of
// being guessed from bracket positions.
func decodeJSON(body []byte) (*models.TelemetryRecord, error) {
	start := bytes.IndexByte(body, '{')
	if start < 0 {
		return nil, fmt.Errorf("%w: no JSON object", ErrMalformed)
	}

	dec := json.NewDecoder(bytes.NewReader(body[start:]))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	record := &models.TelemetryRecord{}
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	record.Source = models.TelemetrySourceJSON
	record.ReceivedAt = time.Now()
	record.Raw = append([]byte(nil), raw...)
	return record, nil
}

// decodeXML normalizes an EventNotificationAlert into the JSON record shape.
// Fields are matched by local name at any depth, ignoring namespaces.
func decodeXML(body []byte) (*models.TelemetryRecord, error) {
	start := bytes.IndexByte(body, '<')
	if start < 0 {
		return nil, fmt.Errorf("%w: no XML document", ErrMalformed)
	}

	fields, err := ScanXMLFields(bytes.NewReader(body[start:]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	cfg := &models.LinePolygonThermCfg{
		MaxTemperature:     fields.Float("highestTemperature"),
		MinTemperature:     fields.Float("lowestTemperature"),
		AverageTemperature: fields.Float("averageTemperature"),
	}
	upload := models.ThermometryUpload{}
	if cfg.MaxTemperature != nil || cfg.MinTemperature != nil || cfg.AverageTemperature != nil {
		upload.LinePolygonThermCfg = cfg
	}
	if x, y := fields.Float("MaxTemperaturePoint/positionX"), fields.Float("MaxTemperaturePoint/positionY"); x != nil && y != nil {
		upload.HighestPoint = &models.ThermalPoint{PositionX: x, PositionY: y}
	}
	if x, y := fields.Float("MinTemperaturePoint/positionX"), fields.Float("MinTemperaturePoint/positionY"); x != nil && y != nil {
		upload.LowestPoint = &models.ThermalPoint{PositionX: x, PositionY: y}
	}
	if name, ok := fields["ruleName"]; ok {
		upload.RuleName = &name
	}

	record := &models.TelemetryRecord{
		Source:     models.TelemetrySourceXML,
		ReceivedAt: time.Now(),
	}
	if upload.LinePolygonThermCfg != nil || upload.HighestPoint != nil {
		raw, err := json.Marshal(upload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		upload.Raw = raw
		record.UploadList = &models.ThermometryUploadList{ThermometryUpload: []models.ThermometryUpload{upload}}
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	record.Raw = raw
	return record, nil
}

// XMLFields maps element local names to their text. Elements nested in a
// parent are also stored as "Parent/child".
type XMLFields map[string]string

// Float parses the named field, returning nil when absent or not a number.
func (f XMLFields) Float(name string) *float64 {
	v, ok := f[name]
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil
	}
	return &parsed
}

// ScanXMLFields collects the text of every leaf element of an XML document.
// The first occurrence of a name wins.
func ScanXMLFields(r io.Reader) (XMLFields, error) {
	dec := xml.NewDecoder(r)
	fields := XMLFields{}
	var path []string
	var text strings.Builder

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			path = append(path, t.Name.Local)
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if len(path) == 0 {
				continue
			}
			name := path[len(path)-1]
			value := strings.TrimSpace(text.String())
			if value != "" {
				if _, seen := fields[name]; !seen {
					fields[name] = value
				}
				if len(path) > 1 {
					qualified := path[len(path)-2] + "/" + name
					if _, seen := fields[qualified]; !seen {
						fields[qualified] = value
					}
				}
			}
			path = path[:len(path)-1]
			text.Reset()
		}
	}

	if len(path) != 0 {
		return nil, io.ErrUnexpectedEOF
	}
	return fields, nil
}
