package bridge

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTTConfig describes the broker connection used as host channel
type MQTTConfig struct {
	Broker         string // host:port
	ClientID       string
	Topic          string // per-frame results
	ControlTopic   string // host commands
	QoS            byte
	PublishTimeout time.Duration
}

// DialMQTT connects to the broker with automatic reconnection
func DialMQTT(cfg MQTTConfig) (mqtt.Client, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "facebridge-" + uuid.NewString()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		slog.Info("mqtt connection established", "broker", cfg.Broker, "client_id", clientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		slog.Warn("mqtt connection lost, will auto-reconnect", "error", err, "broker", cfg.Broker)
	}

	client := mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", cfg.Broker)

	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	return client, nil
}

// MQTTChannel publishes host messages to a single topic
type MQTTChannel struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
}

// NewMQTTChannel creates a channel publishing on topic
func NewMQTTChannel(client mqtt.Client, topic string, qos byte, timeout time.Duration) *MQTTChannel {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &MQTTChannel{client: client, topic: topic, qos: qos, timeout: timeout}
}

// Post publishes payload, waiting at most the publish timeout
func (c *MQTTChannel) Post(payload []byte) error {
	if !c.client.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(c.topic, c.qos, false, payload)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	slog.Debug("host message published", "topic", c.topic, "size", len(payload))
	return nil
}

// Close disconnects from the broker
func (c *MQTTChannel) Close() error {
	if c.client.IsConnected() {
		c.client.Disconnect(250) // 250ms grace period
		slog.Info("mqtt disconnected")
	}
	return nil
}
