package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"thermal-worker-go/internal/config"
)

func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("worker_id", cfg.WorkerID).Str("service", service).Logger()
}

func WithStream(base zerolog.Logger, stream string) zerolog.Logger {
	return base.With().Str("stream", stream).Logger()
}

func WithEvent(base zerolog.Logger, eventID string) zerolog.Logger {
	return base.With().Str("event_id", eventID).Logger()
}
