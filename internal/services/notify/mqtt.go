package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"thermal-worker-go/internal/config"
	"thermal-worker-go/internal/models"
)

const (
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 2 * time.Second
)

var errMQTTTimeout = errors.New("mqtt operation timed out")

// MQTTSink publishes event summaries to an MQTT topic.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// NewMQTTSink connects to the configured broker. The client reconnects on
// its own after the initial connection succeeds.
func NewMQTTSink(cfg *config.Config) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", cfg.MQTTBroker).Msg("MQTT connection established")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", cfg.MQTTBroker).Msg("MQTT connection lost, will auto-reconnect")
	}

	client := mqtt.NewClient(opts)
	if err := connectMQTT(client, mqttConnectTimeout); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.MQTTBroker, err)
	}

	return newMQTTSink(client, cfg.MQTTTopic, cfg.MQTTQoS), nil
}

// connectMQTT waits up to timeout for the first connection. A client that is
// still connecting when the wait expires is stopped so it does not keep
// dialing in the background.
func connectMQTT(client mqtt.Client, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return errMQTTTimeout
	}
	return token.Error()
}

func newMQTTSink(client mqtt.Client, topic string, qos int) *MQTTSink {
	if qos < 0 || qos > 2 {
		qos = 1
	}
	return &MQTTSink{client: client, topic: topic, qos: byte(qos)}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Notify(_ context.Context, summary models.EventSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	token := s.client.Publish(s.topic, s.qos, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return errMQTTTimeout
	}
	return token.Error()
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
