package isapi

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thermal-worker-go/internal/models"
)

const (
	digestRealm = "IP Camera(D1234)"
	digestNonce = "4e6a4d354e4459784d7a45364f4463324e5463794f413d3d"
)

func md5Hex(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

func parseDigestAuthorization(header string) (map[string]string, bool) {
	rest, ok := strings.CutPrefix(header, "Digest ")
	if !ok {
		return nil, false
	}
	params := make(map[string]string)
	for _, field := range strings.Split(rest, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok {
			continue
		}
		params[key] = strings.Trim(value, `"`)
	}
	return params, true
}

// digestCamera answers every request with a Digest challenge until the
// Authorization header carries a valid response for user and pass.
type digestCamera struct {
	user, pass string
	next       http.Handler
	challenges atomic.Int32
	authorized atomic.Int32
}

func (d *digestCamera) valid(r *http.Request) bool {
	params, ok := parseDigestAuthorization(r.Header.Get("Authorization"))
	if !ok {
		return false
	}
	if params["username"] != d.user || params["realm"] != digestRealm || params["nonce"] != digestNonce {
		return false
	}
	if params["uri"] != r.URL.RequestURI() || params["qop"] != "auth" {
		return false
	}
	ha1 := md5Hex(d.user + ":" + digestRealm + ":" + d.pass)
	ha2 := md5Hex(r.Method + ":" + params["uri"])
	want := md5Hex(strings.Join([]string{ha1, params["nonce"], params["nc"], params["cnonce"], params["qop"], ha2}, ":"))
	return params["response"] == want
}

func (d *digestCamera) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !d.valid(r) {
		d.challenges.Add(1)
		w.Header().Set("WWW-Authenticate",
			fmt.Sprintf(`Digest qop="auth", realm="%s", nonce="%s", stale="FALSE", algorithm=MD5`, digestRealm, digestNonce))
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	d.authorized.Add(1)
	d.next.ServeHTTP(w, r)
}

func newDigestCamera(t *testing.T, next http.HandlerFunc) (*digestCamera, *httptest.Server) {
	t.Helper()
	camera := &digestCamera{user: "admin", pass: "secret", next: next}
	srv := httptest.NewServer(camera)
	t.Cleanup(srv.Close)
	return camera, srv
}

func TestOpenThermometryStreamDigestAuth(t *testing.T) {
	camera, srv := newDigestCamera(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/mixed; boundary=boundary")
		_, _ = io.WriteString(w, "--boundary\r\nContent-Type: application/json\r\n\r\n{}\r\n")
	})

	stream, err := NewClient(testConfig(srv.URL)).OpenThermometryStream(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	body, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Contains(t, string(body), "{}")
	assert.Equal(t, int32(1), camera.challenges.Load())
	assert.Equal(t, int32(1), camera.authorized.Load())
}

func TestDigestStreamKeepsReadTimeout(t *testing.T) {
	release := make(chan struct{})
	_, srv := newDigestCamera(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/mixed; boundary=boundary")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-release
	})
	defer close(release)

	cfg := testConfig(srv.URL)
	cfg.StreamReadTimeout = 100 * time.Millisecond

	stream, err := NewClient(cfg).OpenThermometryStream(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	_, err = io.ReadAll(stream)
	var netErr net.Error
	require.True(t, errors.As(err, &netErr))
	assert.True(t, netErr.Timeout())
}

func TestOpenThermometryStreamWrongPassword(t *testing.T) {
	camera, srv := newDigestCamera(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without valid credentials")
	})

	cfg := testConfig(srv.URL)
	cfg.CameraPass = "wrong"

	_, err := NewClient(cfg).OpenThermometryStream(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.Equal(t, int32(2), camera.challenges.Load())
}

func TestPTZDigestAuth(t *testing.T) {
	var gotBody atomic.Value
	camera, srv := newDigestCamera(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `<PTZStatus><AbsoluteHigh><elevation>50</elevation><azimuth>900</azimuth></AbsoluteHigh></PTZStatus>`)
		case http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			gotBody.Store(string(b))
			_, _ = io.WriteString(w, `<ResponseStatus><statusCode>1</statusCode></ResponseStatus>`)
		}
	})
	client := NewClient(testConfig(srv.URL))

	pos, err := client.PTZPosition(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 90.0, pos.PanDegrees, 1e-9)
	assert.InDelta(t, 5.0, pos.TiltDegrees, 1e-9)

	err = client.GotoPosition(context.Background(), models.PTZPosition{PanDegrees: 10, TiltDegrees: 5})
	require.NoError(t, err)
	assert.Contains(t, gotBody.Load(), "<azimuth>100</azimuth>")

	assert.Equal(t, int32(2), camera.challenges.Load())
	assert.Equal(t, int32(2), camera.authorized.Load())
}

func TestPTZDigestAuthConcurrentCalls(t *testing.T) {
	camera, srv := newDigestCamera(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<PTZStatus><AbsoluteHigh><elevation>0</elevation><azimuth>450</azimuth></AbsoluteHigh></PTZStatus>`)
	})
	client := NewClient(testConfig(srv.URL))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pos, err := client.PTZPosition(context.Background())
			if assert.NoError(t, err) {
				assert.InDelta(t, 45.0, pos.PanDegrees, 1e-9)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(8), camera.authorized.Load())
}
