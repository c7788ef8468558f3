package anomaly

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"thermal-worker-go/internal/config"
	"thermal-worker-go/internal/logging"
	"thermal-worker-go/internal/metrics"
	"thermal-worker-go/internal/models"
)

// Capture step names used in logs and metrics
const (
	StepPTZPosition   = "ptz_position"
	StepThermalImage  = "thermal_image"
	StepNormalImage   = "normal_image"
	StepWriteEvidence = "write_evidence"
	StepNotify        = "notify"
)

var errNoSource = errors.New("source not configured")

// PositionReader reads the current PTZ position of the camera head
type PositionReader interface {
	PTZPosition(ctx context.Context) (*models.PTZPosition, error)
}

// SnapshotSource returns one JPEG encoded still frame
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

// BundleWriter persists an event descriptor and its images. It fills in
// bundle.Folder and bundle.Files.
type BundleWriter interface {
	Write(bundle *models.EventBundle, thermal, normal []byte) error
}

// Notifier announces a persisted event
type Notifier interface {
	Notify(ctx context.Context, summary models.EventSummary) error
}

// CapturerDeps are the collaborators of a Capturer. PTZ, Thermal, Normal and
// Notifier may be nil.
type CapturerDeps struct {
	PTZ      PositionReader
	Thermal  SnapshotSource
	Normal   SnapshotSource
	Store    BundleWriter
	Notifier Notifier
}

// Capturer builds and persists the evidence bundle for a breach. Every step
// may fail on its own without aborting the others, and the gate is always
// released when a capture ends.
type Capturer struct {
	workerID  string
	threshold float64
	gate      *CooldownGate
	deps      CapturerDeps
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string
}

func NewCapturer(cfg *config.Config, gate *CooldownGate, deps CapturerDeps) *Capturer {
	return &Capturer{
		workerID:  cfg.WorkerID,
		threshold: cfg.AlarmTemperature,
		gate:      gate,
		deps:      deps,
		logger:    logging.NewServiceLogger(cfg, "capturer"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Run captures evidence for record, then announces it. The caller must hold
// the gate.
func (c *Capturer) Run(ctx context.Context, record *models.TelemetryRecord) {
	bundle, err := c.Capture(ctx, record)
	if err != nil {
		return
	}
	c.notify(ctx, bundle)
}

// Capture performs, in order, the PTZ read, the thermal snapshot, the
// visible snapshot and the evidence write. It releases the gate with the
// completion time once the descriptor is persisted, or aborts it otherwise.
func (c *Capturer) Capture(ctx context.Context, record *models.TelemetryRecord) (bundle *models.EventBundle, err error) {
	start := c.now()
	eventID := c.newID()
	logger := logging.WithEvent(c.logger, eventID)
	persisted := false

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Evidence capture panicked")
			metrics.ObserveEvent(metrics.ResultPanic, c.now().Sub(start))
			bundle, err = nil, fmt.Errorf("evidence capture panicked: %v", r)
		}
		if persisted {
			c.gate.Release(c.now())
		} else {
			c.gate.Abort()
		}
	}()

	bundle = &models.EventBundle{
		EventID:                 eventID,
		Timestamp:               start.UTC(),
		TriggeringThermalData:   record.TriggeringData(),
		AlarmTemperatureCelsius: c.threshold,
		AlarmConfig: models.AlarmConfig{
			SetTemperatureCelsius: c.threshold,
			CooldownSeconds:       c.gate.Cooldown().Seconds(),
		},
	}
	if reading, ok := record.MaxTemperature(); ok {
		bundle.MaxTemperatureCelsius = &reading
	}
	if hotspot, ok := record.Hotspot(); ok {
		bundle.Hotspot = &hotspot
	}

	logger.Info().
		Interface("max_temperature", bundle.MaxTemperatureCelsius).
		Float64("threshold", c.threshold).
		Msg("Capturing evidence")

	failed := 0

	position, ok := safeStep(ctx, logger, StepPTZPosition, func(ctx context.Context) (*models.PTZPosition, error) {
		if c.deps.PTZ == nil {
			return nil, errNoSource
		}
		return c.deps.PTZ.PTZPosition(ctx)
	})
	if ok {
		bundle.PTZPosition = position
	} else {
		failed++
	}

	thermal, ok := safeStep(ctx, logger, StepThermalImage, snapshotStep(c.deps.Thermal))
	if !ok {
		failed++
	}
	normal, ok := safeStep(ctx, logger, StepNormalImage, snapshotStep(c.deps.Normal))
	if !ok {
		failed++
	}

	if err := c.deps.Store.Write(bundle, thermal, normal); err != nil {
		metrics.IncCaptureFailure(StepWriteEvidence)
		metrics.ObserveEvent(metrics.ResultError, c.now().Sub(start))
		logger.Error().Err(err).Msg("Failed to persist evidence bundle")
		return nil, fmt.Errorf("persist event %s: %w", eventID, err)
	}
	persisted = true

	result := metrics.ResultSuccess
	if failed > 0 {
		result = metrics.ResultPartial
	}
	elapsed := c.now().Sub(start)
	metrics.ObserveEvent(result, elapsed)

	logger.Info().
		Str("folder", bundle.Folder).
		Bool("thermal_image", bundle.Files.ThermalImage != nil).
		Bool("normal_image", bundle.Files.NormalImage != nil).
		Bool("ptz_position", bundle.PTZPosition != nil).
		Dur("elapsed", elapsed).
		Msg("Evidence bundle saved")

	return bundle, nil
}

func (c *Capturer) notify(ctx context.Context, bundle *models.EventBundle) {
	if c.deps.Notifier == nil {
		return
	}
	summary := bundle.Summary(c.workerID)
	logger := logging.WithEvent(c.logger, bundle.EventID)
	_, _ = safeStep(ctx, logger, StepNotify, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.deps.Notifier.Notify(ctx, summary)
	})
}

func snapshotStep(src SnapshotSource) func(context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		if src == nil {
			return nil, errNoSource
		}
		frame, err := src.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		if len(frame) == 0 {
			return nil, errors.New("empty snapshot")
		}
		return frame, nil
	}
}

// safeStep runs one capture step, turning errors and panics into a failed
// result.
func safeStep[T any](ctx context.Context, logger zerolog.Logger, step string, fn func(context.Context) (T, error)) (result T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("step", step).Interface("panic", r).Msg("Capture step panicked")
			metrics.IncCaptureFailure(step)
			var zero T
			result, ok = zero, false
		}
	}()

	v, err := fn(ctx)
	if err != nil {
		logger.Warn().Err(err).Str("step", step).Msg("Capture step failed")
		metrics.IncCaptureFailure(step)
		return result, false
	}
	return v, true
}
