package streamcapture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"thermal-worker-go/internal/config"
	"thermal-worker-go/internal/helpers"
	"thermal-worker-go/internal/logging"
	"thermal-worker-go/internal/metrics"
	"thermal-worker-go/internal/models"
)

const maxConsecutiveErrors = 10

var (
	// ErrNoFrame is returned when the live preview has not produced a frame yet
	ErrNoFrame = errors.New("no frame available")
	// ErrSnapshotTimeout is returned when a dedicated capture exceeds SnapshotTimeout
	ErrSnapshotTimeout = errors.New("snapshot timed out")

	ffmpegOnce sync.Once
)

// videoCapture is the part of gocv.VideoCapture the capture loops use.
type videoCapture interface {
	IsOpened() bool
	Read(m *gocv.Mat) bool
	Set(prop gocv.VideoCaptureProperties, param float64)
	Get(prop gocv.VideoCaptureProperties) float64
	Close() error
}

func openFFmpeg(url string) (videoCapture, error) {
	return gocv.OpenVideoCaptureWithAPI(url, gocv.VideoCaptureFFmpeg)
}

// Service owns one RTSP stream: a live preview loop that keeps the most
// recent frame in a single-slot mailbox, and still captures for evidence.
type Service struct {
	cfg    *config.Config
	name   models.StreamName
	url    string
	logger zerolog.Logger
	open   func(url string) (videoCapture, error)

	// mailbox
	mu        sync.Mutex
	frame     gocv.Mat
	hasFrame  bool
	frameTime time.Time
	stats     models.StreamStats

	// one dedicated capture at a time per stream
	snapshotMu sync.Mutex
}

// NewService creates a new stream capture service
func NewService(cfg *config.Config, name models.StreamName, url string) *Service {
	return &Service{
		cfg:    cfg,
		name:   name,
		url:    url,
		logger: logging.WithStream(logging.NewServiceLogger(cfg, "streamcapture"), name.String()),
		stats:  models.StreamStats{Name: name},
		open:   openFFmpeg,
	}
}

func (s *Service) Name() models.StreamName {
	return s.name
}

// Start runs the live preview loop until ctx is cancelled. Read failures
// reopen the stream with jittered exponential backoff; panics restart the
// loop after PanicRestartDelay.
func (s *Service) Start(ctx context.Context) {
	s.setRunning(true)
	defer s.setRunning(false)

	attempt := 0
	for {
		frames, err := s.safeRun(ctx)
		if ctx.Err() != nil {
			s.logger.Info().Msg("Live preview stopped")
			return
		}
		if frames > 0 {
			attempt = 0
		}

		var delay time.Duration
		var panicErr *panicError
		if errors.As(err, &panicErr) {
			delay = s.cfg.PanicRestartDelay
		} else {
			delay = helpers.CalculateBackoffDelay(attempt, s.cfg.VideoBackoffMin, s.cfg.VideoBackoffMax, s.cfg.VideoBackoffJitter)
			attempt++
		}

		s.logger.Warn().Err(err).Dur("retry_in", delay).Msg("Live preview interrupted, reopening stream")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("live preview panicked: %v", e.value)
}

func (s *Service) safeRun(ctx context.Context) (frames int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("Recovered from panic in live preview loop")
			err = &panicError{value: r}
		}
	}()
	return s.run(ctx)
}

// run reads frames until the stream fails or ctx is cancelled.
func (s *Service) run(ctx context.Context) (int64, error) {
	configureFFmpegOptions(s.logger)

	cap, err := s.open(s.url)
	if err != nil {
		return 0, fmt.Errorf("failed to open RTSP stream: %w", err)
	}
	defer cap.Close()

	if !cap.IsOpened() {
		return 0, fmt.Errorf("video capture is not opened for stream %s", s.name)
	}
	cap.Set(gocv.VideoCaptureBufferSize, 1)

	s.logger.Info().
		Float64("fps", cap.Get(gocv.VideoCaptureFPS)).
		Float64("width", cap.Get(gocv.VideoCaptureFrameWidth)).
		Float64("height", cap.Get(gocv.VideoCaptureFrameHeight)).
		Msg("VideoCapture opened for live preview")

	// The capture is only closed by this goroutine once Read has returned.
	// A blocked read is bounded by the FFmpeg rw_timeout.
	img := gocv.NewMat()
	defer img.Close()

	var frames int64
	consecutiveErrors := 0
	for {
		if ctx.Err() != nil {
			return frames, nil
		}

		if ok := cap.Read(&img); !ok || img.Empty() {
			consecutiveErrors++
			metrics.IncFrame(s.name.String(), metrics.ResultError)
			s.recordError()
			if consecutiveErrors >= maxConsecutiveErrors {
				return frames, fmt.Errorf("too many consecutive read errors (%d)", consecutiveErrors)
			}

			// Progressive delay based on error count
			delay := time.Duration(consecutiveErrors*50) * time.Millisecond
			select {
			case <-ctx.Done():
				return frames, nil
			case <-time.After(delay):
			}
			continue
		}

		consecutiveErrors = 0
		frames++
		metrics.IncFrame(s.name.String(), metrics.ResultSuccess)
		s.publish(img)
	}
}

// publish replaces the mailbox frame, releasing the previous one.
func (s *Service) publish(img gocv.Mat) {
	frame := img.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasFrame {
		s.frame.Close()
	}
	s.frame = frame
	s.hasFrame = true
	s.frameTime = time.Now()
	s.stats.FrameCount++
	s.stats.LastFrameTime = s.frameTime
	s.stats.Width = frame.Cols()
	s.stats.Height = frame.Rows()
}

// latest clones the mailbox frame if it is not older than maxAge (0 means
// any age). The caller owns the returned Mat.
func (s *Service) latest(maxAge time.Duration) (gocv.Mat, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasFrame {
		return gocv.Mat{}, time.Time{}, false
	}
	if maxAge > 0 && time.Since(s.frameTime) > maxAge {
		return gocv.Mat{}, time.Time{}, false
	}
	return s.frame.Clone(), s.frameTime, true
}

// LatestJPEG encodes the most recent live frame.
func (s *Service) LatestJPEG() ([]byte, time.Time, error) {
	frame, ts, ok := s.latest(0)
	if !ok {
		return nil, time.Time{}, ErrNoFrame
	}
	defer frame.Close()

	data, err := encodeJPEG(frame, s.cfg.ImageQuality)
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, ts, nil
}

// Snapshot returns one JPEG still. A live frame is used when it is fresher
// than FrameStaleThreshold; otherwise a dedicated capture is opened, the
// first warmup frames are discarded and the next one is encoded.
func (s *Service) Snapshot(ctx context.Context) ([]byte, error) {
	if frame, _, ok := s.latest(s.cfg.FrameStaleThreshold); ok {
		defer frame.Close()
		return encodeJPEG(frame, s.cfg.ImageQuality)
	}
	return s.captureStill(ctx)
}

type stillResult struct {
	data []byte
	err  error
}

func (s *Service) captureStill(ctx context.Context) ([]byte, error) {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()

	timeout := s.cfg.SnapshotTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The capture goroutine owns the VideoCapture and closes it itself, so a
	// timed out read never races with Close.
	result := make(chan stillResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- stillResult{err: fmt.Errorf("snapshot panicked: %v", r)}
			}
		}()
		data, err := s.readStill(ctx)
		result <- stillResult{data: data, err: err}
	}()

	select {
	case res := <-result:
		return res.data, res.err
	case <-ctx.Done():
		s.logger.Warn().Dur("timeout", timeout).Msg("Snapshot capture timed out")
		return nil, fmt.Errorf("%w after %s", ErrSnapshotTimeout, timeout)
	}
}

func (s *Service) readStill(ctx context.Context) ([]byte, error) {
	configureFFmpegOptions(s.logger)

	cap, err := s.open(s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to open RTSP stream: %w", err)
	}
	defer cap.Close()
	if !cap.IsOpened() {
		return nil, fmt.Errorf("video capture is not opened for stream %s", s.name)
	}

	img := gocv.NewMat()
	defer img.Close()

	// Keyframes settle after a few frames, the last read one is kept.
	warmup := s.cfg.SnapshotWarmupFrames
	if warmup < 1 {
		warmup = 1
	}
	got := false
	for i := 0; i < warmup; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if cap.Read(&img) && !img.Empty() {
			got = true
		}
	}
	if !got {
		return nil, fmt.Errorf("no frame read from stream %s", s.name)
	}

	return encodeJPEG(img, s.cfg.ImageQuality)
}

// Stats returns the live preview counters.
func (s *Service) Stats() models.StreamStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close releases the mailbox frame.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasFrame {
		s.frame.Close()
		s.hasFrame = false
	}
}

func (s *Service) setRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Running = running
}

func (s *Service) recordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ErrorCount++
}

func encodeJPEG(img gocv.Mat, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = 95
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	defer buf.Close()

	data := append([]byte(nil), buf.GetBytes()...)
	if !helpers.IsJPEGData(data) {
		return nil, errors.New("encoder produced invalid JPEG data")
	}
	return data, nil
}

// configureFFmpegOptions sets the FFmpeg capture options OpenCV reads from
// the environment. It is process wide, so it is applied once.
func configureFFmpegOptions(logger zerolog.Logger) {
	ffmpegOnce.Do(func() {
		if existing := os.Getenv("OPENCV_FFMPEG_CAPTURE_OPTIONS"); existing != "" {
			logger.Info().Str("ffmpeg_options", existing).Msg("Using FFmpeg options from environment")
			return
		}

		ffmpegOptions := map[string]string{
			"rtsp_transport":      "tcp",     // Use TCP for more reliable connection
			"stimeout":            "5000000", // 5s timeout
			"rw_timeout":          "5000000", // 5s read/write timeout
			"max_delay":           "500000",
			"fflags":              "nobuffer",
			"flags":               "low_delay",
			"allowed_media_types": "video",
		}

		keys := make([]string, 0, len(ffmpegOptions))
		for key := range ffmpegOptions {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		options := make([]string, 0, len(keys))
		for _, key := range keys {
			options = append(options, key+";"+ffmpegOptions[key])
		}
		ffmpegOptsStr := strings.Join(options, "|")

		os.Setenv("OPENCV_FFMPEG_CAPTURE_OPTIONS", ffmpegOptsStr)
		logger.Info().Str("ffmpeg_options", ffmpegOptsStr).Msg("FFmpeg options configured for OpenCV")
	})
}
