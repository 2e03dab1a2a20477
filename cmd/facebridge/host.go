package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dudu/facebridge/internal/bridge"
)

// host owns the channel results are posted on and, for MQTT, the
// control subscription
type host struct {
	bridge  *bridge.Bridge
	client  mqtt.Client
	channel *bridge.MQTTChannel
	control *bridge.Control
	log     *slog.Logger
}

func newHost(o Options, log *slog.Logger) (*host, error) {
	h := &host{log: log}

	switch o.Host {
	case hostStdout:
		h.bridge = bridge.New(bridge.NewWriterChannel(os.Stdout), log)
	case hostNone:
		h.bridge = bridge.New(nil, log)
	case hostMQTT:
		if o.MQTTQoS < 0 || o.MQTTQoS > 2 {
			return nil, fmt.Errorf("invalid mqtt qos %d", o.MQTTQoS)
		}
		client, err := bridge.DialMQTT(bridge.MQTTConfig{
			Broker:       o.MQTTBroker,
			Topic:        o.MQTTTopic,
			ControlTopic: o.MQTTControlTopic,
			QoS:          byte(o.MQTTQoS),
		})
		if err != nil {
			return nil, err
		}
		h.client = client
		h.channel = bridge.NewMQTTChannel(client, o.MQTTTopic, byte(o.MQTTQoS), 2*time.Second)
		h.bridge = bridge.New(h.channel, log)
	default:
		return nil, fmt.Errorf("unknown host channel %q", o.Host)
	}

	log.Info("host channel ready", "host", o.Host, "attached", h.bridge.Attached())
	return h, nil
}

// listen subscribes to host commands. Only the MQTT host has a
// return path, so other hosts ignore it.
func (h *host) listen(topic string, handlers bridge.ControlHandlers) error {
	if h.client == nil || topic == "" {
		return nil
	}
	h.control = bridge.NewControl(h.client, topic, 1, handlers)
	return h.control.Start()
}

func (h *host) close() {
	if h.control != nil {
		h.control.Stop()
	}
	if h.channel != nil {
		if err := h.channel.Close(); err != nil {
			h.log.Warn("failed to close host channel", "error", err)
		}
	}
}
