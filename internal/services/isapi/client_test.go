package isapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thermal-worker-go/internal/config"
	"thermal-worker-go/internal/models"
)

const thermometryPath = "/ISAPI/Thermal/channels/2/thermometry/realTimethermometry/rules"

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		WorkerID:             "test",
		CameraUser:           "admin",
		CameraPass:           "secret",
		ISAPIBaseURL:         baseURL,
		ISAPIThermometryPath: thermometryPath + "?format=json",
		ISAPIPTZChannel:      1,
		ISAPITimeout:         2 * time.Second,
		StreamBoundary:       "boundary",
		StreamConnectTimeout: time.Second,
		StreamReadTimeout:    time.Second,
	}
}

func TestOpenThermometryStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, thermometryPath, r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", `multipart/mixed; boundary="MIME_boundary"`)
		_, _ = io.WriteString(w, "--MIME_boundary\r\nContent-Type: application/json\r\n\r\n{}\r\n")
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	stream, err := client.OpenThermometryStream(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, "MIME_boundary", stream.Boundary)
	body, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Contains(t, string(body), "{}")
}

func TestOpenThermometryStreamDefaultsBoundary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, "{}")
	}))
	defer srv.Close()

	stream, err := NewClient(testConfig(srv.URL)).OpenThermometryStream(context.Background())
	require.NoError(t, err)
	defer stream.Close()
	assert.Equal(t, "boundary", stream.Boundary)
}

func TestOpenThermometryStreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL)).OpenThermometryStream(context.Background())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestOpenThermometryStreamTransportError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = NewClient(testConfig("http://" + addr)).OpenThermometryStream(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestStreamReadTimesOutWhenIdle(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/mixed; boundary=boundary")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(srv.URL)
	cfg.StreamReadTimeout = 100 * time.Millisecond

	stream, err := NewClient(cfg).OpenThermometryStream(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	_, err = io.ReadAll(stream)
	require.Error(t, err)
	var netErr net.Error
	require.True(t, errors.As(err, &netErr))
	assert.True(t, netErr.Timeout())
}

func TestPTZPosition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ISAPI/PTZCtrl/channels/1/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<PTZStatus version="2.0" xmlns="http://www.hikvision.com/ver20/XMLSchema">
  <AbsoluteHigh>
    <elevation>-125</elevation>
    <azimuth>1805</azimuth>
    <absoluteZoom>10</absoluteZoom>
  </AbsoluteHigh>
</PTZStatus>`)
	}))
	defer srv.Close()

	pos, err := NewClient(testConfig(srv.URL)).PTZPosition(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 180.5, pos.PanDegrees, 1e-9)
	assert.InDelta(t, -12.5, pos.TiltDegrees, 1e-9)
	require.NotNil(t, pos.Zoom)
	assert.InDelta(t, 1.0, *pos.Zoom, 1e-9)
}

func TestPTZPositionMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<PTZStatus><AbsoluteHigh><azimuth>10</azimuth></AbsoluteHigh></PTZStatus>`)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL)).PTZPosition(context.Background())
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestPTZPositionStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL)).PTZPosition(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.Code)
}

func TestGotoPosition(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/ISAPI/PTZCtrl/channels/1/absolute", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = io.WriteString(w, `<ResponseStatus><statusCode>1</statusCode></ResponseStatus>`)
	}))
	defer srv.Close()

	err := NewClient(testConfig(srv.URL)).GotoPosition(context.Background(), models.PTZPosition{
		PanDegrees:  -90,
		TiltDegrees: 15.25,
		Zoom:        models.Float64(2),
	})
	require.NoError(t, err)

	assert.Equal(t,
		`<PTZData><AbsoluteHigh><elevation>153</elevation><azimuth>2700</azimuth><absoluteZoom>20</absoluteZoom></AbsoluteHigh></PTZData>`,
		gotBody)
}

func TestGotoPositionRejectsOutOfRange(t *testing.T) {
	client := NewClient(testConfig("http://127.0.0.1:1"))

	err := client.GotoPosition(context.Background(), models.PTZPosition{PanDegrees: 10, TiltDegrees: 95})
	assert.ErrorIs(t, err, ErrInvalidPosition)

	err = client.GotoPosition(context.Background(), models.PTZPosition{PanDegrees: 10, Zoom: models.Float64(0.5)})
	assert.ErrorIs(t, err, ErrInvalidPosition)
}
