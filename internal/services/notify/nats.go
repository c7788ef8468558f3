package notify

import (
	"context"
	"errors"
	"time"

	"thermal-worker-go/internal/models"
)

const closeFlushTimeout = 2 * time.Second

// Publisher is the subset of messaging.Service used for notifications.
type Publisher interface {
	Publish(subject string, data interface{}) error
	Flush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// NATSSink publishes event summaries on a NATS subject.
type NATSSink struct {
	publisher Publisher
	subject   string
}

func NewNATSSink(publisher Publisher, subject string) *NATSSink {
	return &NATSSink{publisher: publisher, subject: subject}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Notify(_ context.Context, summary models.EventSummary) error {
	return s.publisher.Publish(s.subject, summary)
}

// Close waits for pending summaries to reach the server, then drains the
// connection.
func (s *NATSSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeFlushTimeout)
	defer cancel()
	return errors.Join(s.publisher.Flush(ctx), s.publisher.Shutdown(ctx))
}
