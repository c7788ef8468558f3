package mjpeg

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu    sync.Mutex
	frame []byte
	ts    time.Time
}

func (s *fakeSource) set(frame []byte, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame, s.ts = frame, ts
}

func (s *fakeSource) LatestJPEG() ([]byte, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, time.Time{}, errors.New("no frame available")
	}
	return s.frame, s.ts, nil
}

func TestStreamPushesNewFrames(t *testing.T) {
	source := &fakeSource{}
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	source.set([]byte("frame-1"), t0)

	publisher := NewPublisher("thermal", source, 5*time.Millisecond)
	srv := httptest.NewServer(http.HandlerFunc(publisher.StreamMJPEGHTTP))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/x-mixed-replace", mediaType)

	reader := multipart.NewReader(resp.Body, params["boundary"])
	readPart := func() string {
		part, err := reader.NextPart()
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))
		// The part only ends at the next boundary, so read exactly
		// Content-Length bytes instead of waiting for it.
		size, err := strconv.Atoi(part.Header.Get("Content-Length"))
		require.NoError(t, err)
		data := make([]byte, size)
		_, err = io.ReadFull(part, data)
		require.NoError(t, err)
		return string(data)
	}

	assert.Equal(t, "frame-1", readPart())

	source.set([]byte("frame-2"), t0.Add(time.Second))
	assert.Equal(t, "frame-2", readPart())
}

func TestStreamWaitsForFirstFrame(t *testing.T) {
	source := &fakeSource{}
	publisher := NewPublisher("normal", source, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	publisher.StreamMJPEGHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}
