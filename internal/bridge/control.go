package bridge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Command is a host control message
type Command struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params,omitempty"`
}

// Host command names
const (
	CommandResize = "resize"
	CommandStop   = "stop"
)

// ControlHandlers receive decoded host commands
type ControlHandlers struct {
	OnResize func(width, height int)
	OnStop   func()
}

// Control subscribes to host commands on an MQTT topic
type Control struct {
	client   mqtt.Client
	topic    string
	qos      byte
	handlers ControlHandlers
}

// NewControl creates a control subscription
func NewControl(client mqtt.Client, topic string, qos byte, handlers ControlHandlers) *Control {
	return &Control{client: client, topic: topic, qos: qos, handlers: handlers}
}

// Start subscribes to the control topic
func (c *Control) Start() error {
	slog.Info("subscribing to host commands", "topic", c.topic, "qos", c.qos)

	token := c.client.Subscribe(c.topic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
		if err := c.Handle(msg.Payload()); err != nil {
			slog.Warn("host command rejected", "error", err)
		}
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control subscription failed: %w", err)
	}
	return nil
}

// Stop unsubscribes from the control topic
func (c *Control) Stop() {
	if c.client.IsConnected() {
		c.client.Unsubscribe(c.topic).WaitTimeout(time.Second)
	}
}

// Handle decodes and dispatches one command payload
func (c *Control) Handle(payload []byte) error {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("invalid command JSON: %w", err)
	}

	slog.Info("host command received", "command", cmd.Command)

	switch cmd.Command {
	case CommandResize:
		width, okW := intParam(cmd.Params, "width")
		height, okH := intParam(cmd.Params, "height")
		if !okW || !okH || width <= 0 || height <= 0 {
			return fmt.Errorf("resize needs positive width and height")
		}
		if c.handlers.OnResize != nil {
			c.handlers.OnResize(width, height)
		}
	case CommandStop:
		if c.handlers.OnStop != nil {
			c.handlers.OnStop()
		}
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
	return nil
}

func intParam(params map[string]any, key string) (int, bool) {
	v, ok := params[key].(float64)
	if !ok {
		return 0, false
	}
	return int(v), true
}
