package telemetry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thermal-worker-go/internal/models"
)

func TestDecodeJSONRecord(t *testing.T) {
	body := `{"ThermometryUploadList":{"ThermometryUpload":[{"ruleID":1,"ruleName":"roof","LinePolygonThermCfg":{"MaxTemperature":76.2,"MinTemperature":21.0,"AverageTemperature":30.5},"HighestPoint":{"positionX":0.41,"positionY":0.62}}]}}`

	record, err := Decode(Block{Kind: BlockJSON, Body: []byte(body)})
	require.NoError(t, err)

	max, ok := record.MaxTemperature()
	require.True(t, ok)
	assert.InDelta(t, 76.2, max, 1e-9)

	avg, ok := record.AverageTemperature()
	require.True(t, ok)
	assert.InDelta(t, 30.5, avg, 1e-9)

	hotspot, ok := record.Hotspot()
	require.True(t, ok)
	assert.Equal(t, models.Point{X: 0.41, Y: 0.62}, hotspot)

	_, ok = record.Coldspot()
	assert.False(t, ok)

	assert.Equal(t, models.TelemetrySourceJSON, record.Source)
	assert.JSONEq(t, body, string(record.Raw))
	assert.JSONEq(t,
		`{"ruleID":1,"ruleName":"roof","LinePolygonThermCfg":{"MaxTemperature":76.2,"MinTemperature":21.0,"AverageTemperature":30.5},"HighestPoint":{"positionX":0.41,"positionY":0.62}}`,
		string(record.TriggeringData()))
}

func TestDecodeJSONSkipsLeadingNoise(t *testing.T) {
	record, err := Decode(Block{Kind: BlockJSON, Body: []byte("Content-Length: 80\r\n{\"ThermometryUploadList\":{}}\r\ntrailing")})
	require.NoError(t, err)

	_, ok := record.MaxTemperature()
	assert.False(t, ok)
	assert.JSONEq(t, `{"ThermometryUploadList":{}}`, string(record.TriggeringData()))
}

func TestDecodeMissingFieldsAreAbsent(t *testing.T) {
	cases := map[string]string{
		"empty object":  `{}`,
		"empty list":    `{"ThermometryUploadList":{"ThermometryUpload":[]}}`,
		"no therm cfg":  `{"ThermometryUploadList":{"ThermometryUpload":[{"ruleID":1}]}}`,
		"no max":        `{"ThermometryUploadList":{"ThermometryUpload":[{"LinePolygonThermCfg":{"MinTemperature":10}}]}}`,
		"unrelated doc": `{"EventNotificationAlert":{"eventType":"heartbeat"}}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			record, err := Decode(Block{Kind: BlockJSON, Body: []byte(body)})
			require.NoError(t, err)
			_, ok := record.MaxTemperature()
			assert.False(t, ok)
		})
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	cases := []string{
		`{"ThermometryUploadList":{"ThermometryUpload":[{"LinePolygonThermCfg":{"MaxTemperature":76.2`,
		`{"a": [1, 2`,
		`no json here`,
		`{"ThermometryUploadList":{"ThermometryUpload":[{"LinePolygonThermCfg":{"MaxTemperature":"hot"}}]}}`,
	}

	for _, body := range cases {
		_, err := Decode(Block{Kind: BlockJSON, Body: []byte(body)})
		assert.ErrorIs(t, err, ErrMalformed, body)
	}
}

func TestDecodeIgnoresOtherBlocks(t *testing.T) {
	_, err := Decode(Block{Kind: BlockOther, Body: []byte("heartbeat")})
	assert.ErrorIs(t, err, ErrNotTelemetry)
}

func TestDecodeXMLAlert(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<EventNotificationAlert version="2.0" xmlns="http://www.isapi.org/ver20/XMLSchema">
  <ipAddress>192.168.1.64</ipAddress>
  <eventType>TMA</eventType>
  <eventState>active</eventState>
  <TDA>
    <ruleName>roof</ruleName>
    <highestTemperature>81.5</highestTemperature>
    <lowestTemperature>19.0</lowestTemperature>
    <averageTemperature>33.1</averageTemperature>
    <MaxTemperaturePoint>
      <positionX>0.25</positionX>
      <positionY>0.75</positionY>
    </MaxTemperaturePoint>
  </TDA>
</EventNotificationAlert>`

	record, err := Decode(Block{Kind: BlockXML, Body: []byte(body)})
	require.NoError(t, err)

	assert.Equal(t, models.TelemetrySourceXML, record.Source)

	max, ok := record.MaxTemperature()
	require.True(t, ok)
	assert.InDelta(t, 81.5, max, 1e-9)

	min, ok := record.MinTemperature()
	require.True(t, ok)
	assert.InDelta(t, 19.0, min, 1e-9)

	hotspot, ok := record.Hotspot()
	require.True(t, ok)
	assert.Equal(t, models.Point{X: 0.25, Y: 0.75}, hotspot)

	upload, ok := record.PrimaryUpload()
	require.True(t, ok)
	require.NotNil(t, upload.RuleName)
	assert.Equal(t, "roof", *upload.RuleName)

	assert.Contains(t, string(record.TriggeringData()), `"MaxTemperature":81.5`)
}

func TestDecodeXMLWithoutTemperatures(t *testing.T) {
	record, err := Decode(Block{Kind: BlockXML, Body: []byte(`<EventNotificationAlert><eventType>videoloss</eventType></EventNotificationAlert>`)})
	require.NoError(t, err)

	_, ok := record.MaxTemperature()
	assert.False(t, ok)
	assert.NotEmpty(t, record.TriggeringData())
}

func TestDecodeTruncatedXML(t *testing.T) {
	_, err := Decode(Block{Kind: BlockXML, Body: []byte(`<EventNotificationAlert><TDA><highestTemperature>81`)})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestScanXMLFields(t *testing.T) {
	fields, err := ScanXMLFields(strings.NewReader(`<PTZStatus><AbsoluteHigh><elevation>-45</elevation><azimuth>1800</azimuth><absoluteZoom>10</absoluteZoom></AbsoluteHigh></PTZStatus>`))
	require.NoError(t, err)

	assert.Equal(t, "1800", fields["azimuth"])
	assert.Equal(t, "-45", fields["AbsoluteHigh/elevation"])
	require.NotNil(t, fields.Float("azimuth"))
	assert.InDelta(t, 1800.0, *fields.Float("azimuth"), 1e-9)
	assert.Nil(t, fields.Float("missing"))
}
