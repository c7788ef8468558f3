package isapi

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"thermal-worker-go/internal/config"
	"thermal-worker-go/internal/logging"
	"thermal-worker-go/internal/metrics"
	"thermal-worker-go/internal/models"
	"thermal-worker-go/internal/services/telemetry"
)

var (
	// ErrTransport wraps connection level failures (dial, TLS, read timeouts)
	ErrTransport = errors.New("isapi transport error")
	// ErrInvalidResponse is returned when a response body lacks required fields
	ErrInvalidResponse = errors.New("isapi invalid response")
	// ErrInvalidPosition is returned for PTZ targets outside the mechanical range
	ErrInvalidPosition = errors.New("isapi invalid ptz position")
)

// StatusError is returned when the camera answers with a non-200 status.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("isapi: unexpected status %d %s", e.Code, e.Status)
}

// Stream is an open real-time thermometry response. Callers must Close it.
type Stream struct {
	Body        io.ReadCloser
	ContentType string
	Boundary    string
}

func (s *Stream) Read(p []byte) (int, error) {
	return s.Body.Read(p)
}

func (s *Stream) Close() error {
	return s.Body.Close()
}

// Client talks to the camera's ISAPI endpoints with HTTP Digest auth.
//
// The stream and control paths use separate resty clients: the stream has
// no overall timeout and relies on dial and per-read deadlines, while
// control calls are bounded by ISAPITimeout.
type Client struct {
	cfg     *config.Config
	stream  *resty.Client
	control *resty.Client
	logger  zerolog.Logger

	// resty's digest auth swaps the client transport around each request,
	// so control calls must not overlap.
	controlMu sync.Mutex
}

// NewClient creates an ISAPI client for the configured camera.
func NewClient(cfg *config.Config) *Client {
	transport := newStreamTransport(cfg.StreamConnectTimeout, cfg.StreamReadTimeout)

	// Digest auth wraps the current transport, so it is set last.
	stream := resty.New().
		SetTransport(transport).
		SetHeader("Accept", "multipart/mixed, application/json, application/xml").
		SetDigestAuth(cfg.CameraUser, cfg.CameraPass)

	control := resty.New().
		SetBaseURL(cfg.ISAPIBaseURL).
		SetTimeout(cfg.ISAPITimeout).
		SetHeader("Accept", "application/xml").
		SetDigestAuth(cfg.CameraUser, cfg.CameraPass)

	return &Client{
		cfg:     cfg,
		stream:  stream,
		control: control,
		logger:  logging.NewServiceLogger(cfg, "isapi"),
	}
}

// OpenThermometryStream opens the long-lived real-time thermometry stream.
func (c *Client) OpenThermometryStream(ctx context.Context) (*Stream, error) {
	start := time.Now()
	url := c.cfg.ThermometryURL()

	resp, err := c.stream.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		metrics.ObserveISAPI("thermometry_stream", metrics.ResultError, time.Since(start))
		return nil, fmt.Errorf("%w: open %s: %v", ErrTransport, url, err)
	}

	body := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		if body != nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
			body.Close()
		}
		metrics.ObserveISAPI("thermometry_stream", metrics.ResultStatus, time.Since(start))
		return nil, &StatusError{Code: resp.StatusCode(), Status: http.StatusText(resp.StatusCode())}
	}
	metrics.ObserveISAPI("thermometry_stream", metrics.ResultSuccess, time.Since(start))

	contentType := resp.Header().Get("Content-Type")
	boundary := telemetry.BoundaryFromContentType(contentType, c.cfg.StreamBoundary)

	c.logger.Info().
		Str("url", url).
		Str("content_type", contentType).
		Str("boundary", boundary).
		Msg("Thermometry stream opened")

	return &Stream{
		Body:        body,
		ContentType: contentType,
		Boundary:    boundary,
	}, nil
}

// PTZPosition reads the absolute pan/tilt/zoom of the camera head. The camera
// reports tenths of a degree.
func (c *Client) PTZPosition(ctx context.Context) (*models.PTZPosition, error) {
	start := time.Now()
	path := fmt.Sprintf("/ISAPI/PTZCtrl/channels/%d/status", c.cfg.ISAPIPTZChannel)

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		metrics.ObserveISAPI("ptz_status", resultOf(err), time.Since(start))
		return nil, err
	}

	fields, err := telemetry.ScanXMLFields(bytes.NewReader(body))
	if err != nil {
		metrics.ObserveISAPI("ptz_status", metrics.ResultError, time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	azimuth, elevation := fields.Float("azimuth"), fields.Float("elevation")
	if azimuth == nil || elevation == nil {
		metrics.ObserveISAPI("ptz_status", metrics.ResultError, time.Since(start))
		return nil, fmt.Errorf("%w: azimuth or elevation missing", ErrInvalidResponse)
	}

	position := &models.PTZPosition{
		PanDegrees:  *azimuth / 10,
		TiltDegrees: *elevation / 10,
	}
	if zoom := fields.Float("absoluteZoom"); zoom != nil {
		z := *zoom / 10
		position.Zoom = &z
	}

	metrics.ObserveISAPI("ptz_status", metrics.ResultSuccess, time.Since(start))
	return position, nil
}

type absoluteHigh struct {
	Elevation    int  `xml:"elevation"`
	Azimuth      int  `xml:"azimuth"`
	AbsoluteZoom *int `xml:"absoluteZoom,omitempty"`
}

type ptzData struct {
	XMLName      xml.Name     `xml:"PTZData"`
	AbsoluteHigh absoluteHigh `xml:"AbsoluteHigh"`
}

// GotoPosition moves the camera head to an absolute position. Pan wraps into
// [0, 360); tilt must be within [-90, 90].
func (c *Client) GotoPosition(ctx context.Context, target models.PTZPosition) error {
	if math.IsNaN(target.PanDegrees) || math.IsNaN(target.TiltDegrees) {
		return fmt.Errorf("%w: NaN coordinate", ErrInvalidPosition)
	}
	if target.TiltDegrees < -90 || target.TiltDegrees > 90 {
		return fmt.Errorf("%w: tilt %.1f outside [-90, 90]", ErrInvalidPosition, target.TiltDegrees)
	}
	pan := math.Mod(target.PanDegrees, 360)
	if pan < 0 {
		pan += 360
	}

	data := ptzData{AbsoluteHigh: absoluteHigh{
		Elevation: int(math.Round(target.TiltDegrees * 10)),
		Azimuth:   int(math.Round(pan*10)) % 3600,
	}}
	if target.Zoom != nil {
		if *target.Zoom < 1 {
			return fmt.Errorf("%w: zoom %.1f below 1", ErrInvalidPosition, *target.Zoom)
		}
		z := int(math.Round(*target.Zoom * 10))
		data.AbsoluteHigh.AbsoluteZoom = &z
	}

	payload, err := xml.Marshal(data)
	if err != nil {
		return err
	}

	start := time.Now()
	path := fmt.Sprintf("/ISAPI/PTZCtrl/channels/%d/absolute", c.cfg.ISAPIPTZChannel)
	_, err = c.do(ctx, http.MethodPut, path, payload)
	metrics.ObserveISAPI("ptz_goto", resultOf(err), time.Since(start))
	if err != nil {
		return err
	}

	c.logger.Info().
		Float64("pan_degrees", pan).
		Float64("tilt_degrees", target.TiltDegrees).
		Msg("PTZ moved to absolute position")
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	c.controlMu.Lock()
	defer c.controlMu.Unlock()

	req := c.control.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/xml").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode(), Status: http.StatusText(resp.StatusCode())}
	}
	return resp.Body(), nil
}

func resultOf(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.As(err, &statusErr):
		return metrics.ResultStatus
	default:
		return metrics.ResultError
	}
}

// newStreamTransport separates the connect timeout from the idle read
// timeout: the dialer fails fast on an unreachable camera, while each read
// on an established connection may wait up to readTimeout for the next
// block.
func newStreamTransport(connectTimeout, readTimeout time.Duration) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			if readTimeout <= 0 {
				return conn, nil
			}
			return &idleTimeoutConn{Conn: conn, timeout: readTimeout}, nil
		},
		ResponseHeaderTimeout: readTimeout,
		MaxIdleConns:          2,
		IdleConnTimeout:       90 * time.Second,
		DisableCompression:    true,
	}
}

type idleTimeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (c *idleTimeoutConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}
