package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thermal-worker-go/internal/models"
)

func testSummary(id string) models.EventSummary {
	temp := 76.2
	return models.EventSummary{
		WorkerID:                "thermal-1",
		EventID:                 id,
		Timestamp:               time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		MaxTemperatureCelsius:   &temp,
		AlarmTemperatureCelsius: 75,
		HasThermalImage:         true,
	}
}

type fakeSink struct {
	name   string
	err    error
	seen   []models.EventSummary
	closed bool
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Notify(_ context.Context, summary models.EventSummary) error {
	s.seen = append(s.seen, summary)
	return s.err
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

func TestMultiDeliversToAllSinks(t *testing.T) {
	broken := &fakeSink{name: "broken", err: errors.New("unreachable")}
	healthy := &fakeSink{name: "healthy"}
	multi := NewMulti(broken, healthy)

	err := multi.Notify(context.Background(), testSummary("e1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: unreachable")
	assert.Len(t, broken.seen, 1)
	assert.Len(t, healthy.seen, 1)

	require.NoError(t, multi.Close())
	assert.True(t, broken.closed)
	assert.True(t, healthy.closed)
}

func TestMultiWithoutSinks(t *testing.T) {
	multi := NewMulti()
	assert.NoError(t, multi.Notify(context.Background(), testSummary("e1")))
	assert.Zero(t, multi.Len())
}

type fakePublisher struct {
	subject  string
	data     interface{}
	err      error
	flushErr error
	calls    []string
}

func (p *fakePublisher) Publish(subject string, data interface{}) error {
	p.subject = subject
	p.data = data
	return p.err
}

func (p *fakePublisher) Flush(context.Context) error {
	p.calls = append(p.calls, "flush")
	return p.flushErr
}

func (p *fakePublisher) Shutdown(context.Context) error {
	p.calls = append(p.calls, "shutdown")
	return nil
}

func TestNATSSinkPublishesSummary(t *testing.T) {
	publisher := &fakePublisher{}
	sink := NewNATSSink(publisher, "thermal.events")

	require.NoError(t, sink.Notify(context.Background(), testSummary("e1")))
	assert.Equal(t, "thermal.events", publisher.subject)
	assert.Equal(t, "e1", publisher.data.(models.EventSummary).EventID)
}

func TestNATSSinkCloseFlushesBeforeDrain(t *testing.T) {
	publisher := &fakePublisher{}
	require.NoError(t, NewNATSSink(publisher, "thermal.events").Close())
	assert.Equal(t, []string{"flush", "shutdown"}, publisher.calls)

	publisher = &fakePublisher{flushErr: errors.New("nats: flush timeout")}
	err := NewNATSSink(publisher, "thermal.events").Close()
	assert.ErrorContains(t, err, "flush timeout")
	assert.Equal(t, []string{"flush", "shutdown"}, publisher.calls, "drains even when flush fails")
}

type fakeToken struct {
	err      error
	timedOut bool
}

func (t *fakeToken) Wait() bool                     { return !t.timedOut }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timedOut }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeMQTTClient struct {
	mqtt.Client
	token        *fakeToken
	topic        string
	qos          byte
	payload      []byte
	disconnected bool
}

func (c *fakeMQTTClient) Connect() mqtt.Token {
	return c.token
}

func (c *fakeMQTTClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.topic = topic
	c.qos = qos
	c.payload = payload.([]byte)
	return c.token
}

func (c *fakeMQTTClient) Disconnect(uint) {
	c.disconnected = true
}

func TestMQTTSinkPublishesJSON(t *testing.T) {
	client := &fakeMQTTClient{token: &fakeToken{}}
	sink := newMQTTSink(client, "thermal/events", 1)

	require.NoError(t, sink.Notify(context.Background(), testSummary("e1")))
	assert.Equal(t, "thermal/events", client.topic)
	assert.Equal(t, byte(1), client.qos)

	var decoded models.EventSummary
	require.NoError(t, json.Unmarshal(client.payload, &decoded))
	assert.Equal(t, "e1", decoded.EventID)
	assert.True(t, decoded.HasThermalImage)
}

func TestMQTTSinkErrors(t *testing.T) {
	timedOut := newMQTTSink(&fakeMQTTClient{token: &fakeToken{timedOut: true}}, "t", 5)
	assert.Equal(t, byte(1), timedOut.qos, "invalid qos falls back to 1")
	assert.ErrorIs(t, timedOut.Notify(context.Background(), testSummary("e1")), errMQTTTimeout)

	rejected := newMQTTSink(&fakeMQTTClient{token: &fakeToken{err: errors.New("not authorized")}}, "t", 0)
	assert.EqualError(t, rejected.Notify(context.Background(), testSummary("e1")), "not authorized")
}

func TestConnectMQTT(t *testing.T) {
	pending := &fakeMQTTClient{token: &fakeToken{timedOut: true}}
	assert.ErrorIs(t, connectMQTT(pending, time.Millisecond), errMQTTTimeout)
	assert.True(t, pending.disconnected, "client still connecting is stopped")

	refused := &fakeMQTTClient{token: &fakeToken{err: errors.New("connection refused")}}
	assert.EqualError(t, connectMQTT(refused, time.Second), "connection refused")
	assert.False(t, refused.disconnected)

	ok := &fakeMQTTClient{token: &fakeToken{}}
	assert.NoError(t, connectMQTT(ok, time.Second))
	assert.False(t, ok.disconnected)
}

func setupTestRedis(t *testing.T, maxEvents int) (*miniredis.Miniredis, *RedisSink) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sink := newRedisSink(client, "thermal", maxEvents)
	t.Cleanup(func() { _ = sink.Close() })
	return mr, sink
}

func TestRedisSinkIndexesEvents(t *testing.T) {
	mr, sink := setupTestRedis(t, 2)
	ctx := context.Background()
	require.NoError(t, sink.Ping(ctx))

	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, sink.Notify(ctx, testSummary(id)))
	}

	last, err := mr.Get("thermal:last_event")
	require.NoError(t, err)
	var summary models.EventSummary
	require.NoError(t, json.Unmarshal([]byte(last), &summary))
	assert.Equal(t, "e3", summary.EventID)

	indexed, err := mr.List("thermal:events")
	require.NoError(t, err)
	require.Len(t, indexed, 2, "index is trimmed to maxEvents")
	var newest models.EventSummary
	require.NoError(t, json.Unmarshal([]byte(indexed[0]), &newest))
	assert.Equal(t, "e3", newest.EventID)
}

func TestRedisSinkUnavailable(t *testing.T) {
	mr, sink := setupTestRedis(t, 10)
	mr.Close()

	err := sink.Notify(context.Background(), testSummary("e1"))
	assert.Error(t, err)
}
