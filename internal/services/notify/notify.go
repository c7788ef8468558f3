// Package notify announces persisted thermal events to external sinks.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"thermal-worker-go/internal/metrics"
	"thermal-worker-go/internal/models"
)

// Sink is one notification destination.
type Sink interface {
	Name() string
	Notify(ctx context.Context, summary models.EventSummary) error
	Close() error
}

// Multi fans a summary out to every sink. A failing sink does not stop the
// others; all failures are joined into the returned error.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Add(sink Sink) {
	m.sinks = append(m.sinks, sink)
}

func (m *Multi) Len() int {
	return len(m.sinks)
}

func (m *Multi) Notify(ctx context.Context, summary models.EventSummary) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Notify(ctx, summary); err != nil {
			metrics.IncNotification(sink.Name(), metrics.ResultError)
			log.Warn().Err(err).Str("sink", sink.Name()).Str("event_id", summary.EventID).Msg("Event notification failed")
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		metrics.IncNotification(sink.Name(), metrics.ResultSuccess)
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *Multi) Close() error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}
