package anomaly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"thermal-worker-go/internal/config"
	"thermal-worker-go/internal/logging"
	"thermal-worker-go/internal/metrics"
	"thermal-worker-go/internal/models"
	"thermal-worker-go/internal/services/isapi"
	"thermal-worker-go/internal/services/telemetry"
)

var (
	// ErrStreamClosed is reported when the camera ends the stream cleanly
	ErrStreamClosed = errors.New("thermometry stream closed by camera")
	// ErrRetriesExhausted is returned by Run when MaxReconnectAttempts
	// consecutive connection attempts failed
	ErrRetriesExhausted = errors.New("thermometry stream reconnect attempts exhausted")
)

// StreamOpener opens the real-time thermometry stream
type StreamOpener interface {
	OpenThermometryStream(ctx context.Context) (*isapi.Stream, error)
}

// Listener keeps the thermometry stream open, evaluates every decoded record
// and dispatches evidence captures when the gate allows.
//
// State machine: connecting -> streaming -> disconnected -> connecting ...
// until the context is cancelled.
type Listener struct {
	cfg       *config.Config
	opener    StreamOpener
	evaluator *Evaluator
	gate      *CooldownGate
	capturer  *Capturer
	logger    zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.RWMutex
	status models.ListenerStatus

	captures sync.WaitGroup
}

func NewListener(cfg *config.Config, opener StreamOpener, evaluator *Evaluator, gate *CooldownGate, capturer *Capturer) *Listener {
	return &Listener{
		cfg:       cfg,
		opener:    opener,
		evaluator: evaluator,
		gate:      gate,
		capturer:  capturer,
		logger:    logging.NewServiceLogger(cfg, "listener"),
		now:       time.Now,
		sleep:     sleepContext,
		status:    models.ListenerStatus{State: models.ListenerStopped},
	}
}

// Run loops until ctx is cancelled. It returns nil on cancellation and
// ErrRetriesExhausted only when a reconnect ceiling is configured.
func (l *Listener) Run(ctx context.Context) error {
	defer l.setState(models.ListenerStopped, nil)

	l.logger.Info().
		Str("url", l.cfg.ThermometryURL()).
		Float64("alarm_temperature", l.evaluator.Threshold()).
		Dur("cooldown", l.gate.Cooldown()).
		Msg("Starting thermometry listener")

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		l.setState(models.ListenerConnecting, nil)
		opened, err := l.safeSession(ctx)
		if ctx.Err() != nil {
			l.logger.Info().Msg("Thermometry listener stopped")
			return nil
		}

		if opened {
			failures = 0
		} else {
			failures++
		}
		l.mu.Lock()
		l.status.ConsecutiveFailures = failures
		l.mu.Unlock()
		metrics.SetConsecutiveFailures(failures)

		if limit := l.cfg.MaxReconnectAttempts; limit > 0 && failures >= limit {
			l.setState(models.ListenerDisconnected, err)
			l.logger.Error().Err(err).Int("attempts", failures).Msg("Giving up on thermometry stream")
			return fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
		}

		delay := l.backoff(err)
		l.setState(models.ListenerDisconnected, err)
		l.logger.Warn().
			Err(err).
			Bool("was_streaming", opened).
			Int("consecutive_failures", failures).
			Dur("retry_in", delay).
			Msg("Thermometry stream disconnected")

		if err := l.sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

// Wait blocks until every dispatched capture has finished.
func (l *Listener) Wait() {
	l.captures.Wait()
}

// Status returns a snapshot of the listener state.
func (l *Listener) Status() models.ListenerStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// Process evaluates one record and dispatches a capture on breach when the
// gate allows it. It never blocks on the capture and reports whether one
// was started.
func (l *Listener) Process(ctx context.Context, record *models.TelemetryRecord) bool {
	eval := l.evaluator.Evaluate(record)
	if eval.HasReading {
		metrics.ObserveMaxTemperature(eval.MaxTemperature)
		reading := eval.MaxTemperature
		l.mu.Lock()
		l.status.LastMaxTemperature = &reading
		l.status.LastReadingAt = l.now()
		l.mu.Unlock()
	}
	if !eval.Breach {
		return false
	}

	metrics.IncBreach()
	if !l.gate.TryAcquire(l.now()) {
		l.logger.Debug().
			Float64("max_temperature", eval.MaxTemperature).
			Msg("Breach suppressed by cooldown gate")
		return false
	}

	l.logger.Warn().
		Float64("max_temperature", eval.MaxTemperature).
		Float64("threshold", eval.Threshold).
		Msg("Temperature threshold breached, capturing evidence")

	// Captures run to completion even when the listener is stopped.
	captureCtx := context.WithoutCancel(ctx)
	l.captures.Add(1)
	go func() {
		defer l.captures.Done()
		l.capturer.Run(captureCtx, record)
	}()
	return true
}

func (l *Listener) safeSession(ctx context.Context) (opened bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("Thermometry session panicked")
			err = fmt.Errorf("thermometry session panicked: %v", r)
		}
	}()
	return l.session(ctx)
}

func (l *Listener) session(ctx context.Context) (bool, error) {
	stream, err := l.opener.OpenThermometryStream(ctx)
	if err != nil {
		var statusErr *isapi.StatusError
		if errors.As(err, &statusErr) {
			metrics.IncStreamConnection(metrics.ResultStatus)
		} else {
			metrics.IncStreamConnection(metrics.ResultError)
		}
		return false, err
	}
	defer stream.Close()
	metrics.IncStreamConnection(metrics.ResultSuccess)

	// A blocked read only returns once the body is closed.
	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer stop()

	l.mu.Lock()
	l.status.Sessions++
	l.status.ConnectedAt = l.now()
	l.mu.Unlock()
	l.setState(models.ListenerStreaming, nil)
	l.logger.Info().Str("boundary", stream.Boundary).Msg("Listening for thermometry data")

	parser := telemetry.NewParser(stream.Boundary, l.cfg.StreamMaxBlockSize)
	overflows := 0
	for block, err := range parser.Blocks(stream, l.cfg.StreamChunkSize) {
		if err != nil {
			return true, err
		}
		l.handleBlock(ctx, block)

		if n := parser.Overflows(); n > overflows {
			overflows = n
			l.logger.Warn().Int("max_block_size", l.cfg.StreamMaxBlockSize).Msg("Discarded oversized stream section")
		}
	}
	return true, ErrStreamClosed
}

func (l *Listener) handleBlock(ctx context.Context, block telemetry.Block) {
	record, err := telemetry.Decode(block)
	switch {
	case errors.Is(err, telemetry.ErrNotTelemetry):
		metrics.IncStreamBlock(string(block.Kind), metrics.ResultIgnored)
		return
	case err != nil:
		metrics.IncStreamBlock(string(block.Kind), metrics.ResultMalformed)
		l.mu.Lock()
		l.status.BlocksDiscarded++
		l.mu.Unlock()
		l.logger.Debug().Err(err).Int("size", len(block.Body)).Msg("Discarding malformed thermometry block")
		return
	}

	metrics.IncStreamBlock(string(block.Kind), metrics.ResultSuccess)
	l.mu.Lock()
	l.status.BlocksDecoded++
	l.mu.Unlock()

	l.Process(ctx, record)
}

// backoff picks the reconnect delay: network and HTTP status failures retry
// after ReconnectInterval, anything else after UnexpectedErrorBackoff.
func (l *Listener) backoff(err error) time.Duration {
	var statusErr *isapi.StatusError
	var netErr net.Error
	switch {
	case errors.As(err, &statusErr),
		errors.Is(err, isapi.ErrTransport),
		errors.Is(err, ErrStreamClosed),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.As(err, &netErr):
		return l.cfg.ReconnectInterval
	default:
		return l.cfg.UnexpectedErrorBackoff
	}
}

func (l *Listener) setState(state models.ListenerState, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.State = state
	if err != nil {
		l.status.LastError = err.Error()
	} else if state == models.ListenerStreaming {
		l.status.LastError = ""
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
