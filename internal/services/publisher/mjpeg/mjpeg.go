// Package mjpeg serves live preview frames as a multipart/x-mixed-replace
// stream.
package mjpeg

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const boundary = "frame"

// FrameSource returns the latest JPEG frame and its capture time
type FrameSource interface {
	LatestJPEG() ([]byte, time.Time, error)
}

type Publisher struct {
	stream   string
	source   FrameSource
	interval time.Duration
}

// NewPublisher polls source every interval and pushes frames it has not sent
// yet. A frame is also repeated every keepalive period when the source stalls.
func NewPublisher(stream string, source FrameSource, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Publisher{stream: stream, source: source, interval: interval}
}

func (p *Publisher) StreamMJPEGHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	writePart := func(jpeg []byte) bool {
		if _, err := io.WriteString(w, "--"+boundary+"\r\n"); err != nil {
			return false
		}
		if _, err := io.WriteString(w, "Content-Type: image/jpeg\r\n"); err != nil {
			return false
		}
		if _, err := io.WriteString(w, fmt.Sprintf("Content-Length: %d\r\n\r\n", len(jpeg))); err != nil {
			return false
		}
		if _, err := w.Write(jpeg); err != nil {
			return false
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	log.Debug().Str("stream", p.stream).Str("remote", r.RemoteAddr).Msg("MJPEG client connected")
	defer log.Debug().Str("stream", p.stream).Str("remote", r.RemoteAddr).Msg("MJPEG client disconnected")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	keepalive := time.NewTicker(2 * time.Second)
	defer keepalive.Stop()

	var lastSent time.Time
	send := func(force bool) bool {
		jpeg, ts, err := p.source.LatestJPEG()
		if err != nil || len(jpeg) == 0 {
			return true
		}
		if !force && !ts.After(lastSent) {
			return true
		}
		if !writePart(jpeg) {
			return false
		}
		lastSent = ts
		return true
	}

	if !send(true) {
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !send(false) {
				return
			}
		case <-keepalive.C:
			if !send(true) {
				return
			}
		}
	}
}
