package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"thermal-worker-go/internal/api"
	"thermal-worker-go/internal/api/handlers"
	"thermal-worker-go/internal/config"
	"thermal-worker-go/internal/models"
	"thermal-worker-go/internal/services/anomaly"
	"thermal-worker-go/internal/services/evidence"
	"thermal-worker-go/internal/services/isapi"
	"thermal-worker-go/internal/services/messaging"
	"thermal-worker-go/internal/services/notify"
	"thermal-worker-go/internal/services/streamcapture"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config   *config.Config
	ISAPI    *isapi.Client
	Store    *evidence.Store
	Gate     *anomaly.CooldownGate
	Capturer *anomaly.Capturer
	Listener *anomaly.Listener
	Notifier *notify.Multi
	Thermal  *streamcapture.Service
	Normal   *streamcapture.Service

	wg sync.WaitGroup
}

// NewServiceContainer creates a new service container. Notification sinks
// that cannot connect are logged and skipped.
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	store, err := evidence.NewStore(cfg)
	if err != nil {
		return nil, err
	}

	sc := &ServiceContainer{
		Config:   cfg,
		ISAPI:    isapi.NewClient(cfg),
		Store:    store,
		Gate:     anomaly.NewCooldownGate(cfg.EventCooldown),
		Notifier: newNotifier(cfg),
		Thermal:  streamcapture.NewService(cfg, models.StreamThermal, cfg.RTSPURLThermal),
		Normal:   streamcapture.NewService(cfg, models.StreamNormal, cfg.RTSPURLNormal),
	}

	sc.Capturer = anomaly.NewCapturer(cfg, sc.Gate, anomaly.CapturerDeps{
		PTZ:      sc.ISAPI,
		Thermal:  sc.Thermal,
		Normal:   sc.Normal,
		Store:    store,
		Notifier: sc.Notifier,
	})
	sc.Listener = anomaly.NewListener(cfg, sc.ISAPI, anomaly.NewEvaluator(cfg.AlarmTemperature), sc.Gate, sc.Capturer)

	return sc, nil
}

func newNotifier(cfg *config.Config) *notify.Multi {
	multi := notify.NewMulti()

	if cfg.NatsEnabled {
		if svc, err := messaging.NewService(cfg); err != nil {
			log.Warn().Err(err).Str("url", cfg.NatsURL).Msg("NATS unavailable, event notifications over NATS disabled")
		} else {
			multi.Add(notify.NewNATSSink(svc, cfg.EventsSubject))
		}
	}

	if cfg.MQTTEnabled {
		if sink, err := notify.NewMQTTSink(cfg); err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTTBroker).Msg("MQTT unavailable, event notifications over MQTT disabled")
		} else {
			multi.Add(sink)
		}
	}

	if cfg.RedisEnabled {
		sink := notify.NewRedisSink(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ISAPITimeout)
		if err := sink.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis not reachable yet, events will be indexed once it is")
		}
		cancel()
		multi.Add(sink)
	}

	log.Info().Int("sinks", multi.Len()).Msg("Event notifiers configured")
	return multi
}

// APIDeps exposes the container's services to the HTTP API.
func (sc *ServiceContainer) APIDeps() api.Deps {
	return api.Deps{
		Gate:     sc.Gate,
		Listener: sc.Listener,
		Events:   sc.Store,
		Frames: map[models.StreamName]handlers.FrameSource{
			models.StreamThermal: sc.Thermal,
			models.StreamNormal:  sc.Normal,
		},
		Streams: []handlers.StreamStatsProvider{sc.Thermal, sc.Normal},
		PTZ:     sc.ISAPI,
	}
}

// Start launches the live preview tasks and the thermometry listener. The
// returned channel yields the listener's exit error.
func (sc *ServiceContainer) Start(ctx context.Context) <-chan error {
	if sc.Config.LivePreviewEnabled {
		for _, stream := range []*streamcapture.Service{sc.Thermal, sc.Normal} {
			sc.wg.Add(1)
			go func() {
				defer sc.wg.Done()
				stream.Start(ctx)
			}()
		}
	}

	done := make(chan error, 1)
	sc.wg.Add(1)
	go func() {
		defer sc.wg.Done()
		err := sc.Listener.Run(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Thermometry listener stopped")
		}
		done <- err
	}()
	return done
}

// Shutdown waits for background tasks and in-flight captures, then closes
// the notifiers. ctx bounds the wait.
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		sc.wg.Wait()
		sc.Listener.Wait()
		close(finished)
	}()

	var errs []error
	select {
	case <-finished:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for background tasks: %w", ctx.Err()))
	}

	sc.Thermal.Close()
	sc.Normal.Close()
	if err := sc.Notifier.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
