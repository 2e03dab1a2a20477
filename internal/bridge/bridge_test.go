package bridge

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingChannel struct {
	posts [][]byte
	err   error
	panic bool
}

func (c *recordingChannel) Post(p []byte) error {
	if c.panic {
		panic("boom")
	}
	c.posts = append(c.posts, p)
	return c.err
}

func TestSendWithoutChannelIsNoop(t *testing.T) {
	b := New(nil, quiet)
	b.Send([]int{1})

	if b.Attached() {
		t.Error("Attached() = true")
	}
	if s := b.Stats(); s.Dropped != 1 || s.Sent != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestSendSerializes(t *testing.T) {
	ch := &recordingChannel{}
	b := New(ch, quiet)

	b.Send(map[string]string{"error": "x"})

	if len(ch.posts) != 1 || string(ch.posts[0]) != `{"error":"x"}` {
		t.Fatalf("posts = %q", ch.posts)
	}
	if s := b.Stats(); s.Sent != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestSendSwallowsFailures(t *testing.T) {
	tests := []struct {
		name    string
		ch      *recordingChannel
		payload any
	}{
		{"unserializable", &recordingChannel{}, math.Inf(1)},
		{"transport error", &recordingChannel{err: errors.New("closed")}, 1},
		{"channel panic", &recordingChannel{panic: true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(tt.ch, quiet)
			b.Send(tt.payload)
			if s := b.Stats(); s.Failed != 1 || s.Sent != 0 {
				t.Errorf("stats = %+v", s)
			}
		})
	}
}

func TestWriterChannel(t *testing.T) {
	var buf bytes.Buffer
	ch := NewWriterChannel(&buf)

	if err := ch.Post([]byte(`[]`)); err != nil {
		t.Fatal(err)
	}
	if err := ch.Post([]byte(`{"error":"e"}`)); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "[]\n{\"error\":\"e\"}\n" {
		t.Errorf("output = %q", got)
	}
}

// fakeToken completes immediately with err
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
func (t *fakeToken) Error() error { return t.err }

// fakeClient implements the parts of mqtt.Client the bridge uses
type fakeClient struct {
	mqtt.Client
	connected  bool
	published  []string
	topics     []string
	publishErr error
	handler    mqtt.MessageHandler
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.topics = append(c.topics, topic)
	c.published = append(c.published, string(payload.([]byte)))
	return &fakeToken{err: c.publishErr}
}

func (c *fakeClient) Subscribe(topic string, qos byte, cb mqtt.MessageHandler) mqtt.Token {
	c.handler = cb
	return &fakeToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token { return &fakeToken{} }

func (c *fakeClient) Disconnect(quiesce uint) { c.connected = false }

type fakeMessage struct {
	mqtt.Message
	payload []byte
}

func (m *fakeMessage) Payload() []byte { return m.payload }

func TestMQTTChannel(t *testing.T) {
	client := &fakeClient{connected: true}
	ch := NewMQTTChannel(client, "facebridge/results", 0, time.Second)

	if err := ch.Post([]byte(`[]`)); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if len(client.published) != 1 || client.topics[0] != "facebridge/results" {
		t.Errorf("published = %v on %v", client.published, client.topics)
	}

	client.publishErr = errors.New("denied")
	if err := ch.Post([]byte(`[]`)); err == nil {
		t.Error("expected publish error")
	}

	ch.Close()
	if err := ch.Post([]byte(`[]`)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}

func TestControlCommands(t *testing.T) {
	var gotW, gotH, stops int
	client := &fakeClient{connected: true}
	ctl := NewControl(client, "facebridge/control", 1, ControlHandlers{
		OnResize: func(w, h int) { gotW, gotH = w, h },
		OnStop:   func() { stops++ },
	})
	if err := ctl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	client.handler(client, &fakeMessage{payload: []byte(`{"command":"resize","params":{"width":1024,"height":768}}`)})
	if gotW != 1024 || gotH != 768 {
		t.Errorf("resize = %dx%d", gotW, gotH)
	}

	if err := ctl.Handle([]byte(`{"command":"stop"}`)); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stops != 1 {
		t.Errorf("stops = %d", stops)
	}

	for _, bad := range []string{
		`not json`,
		`{"command":"resize","params":{"width":0,"height":10}}`,
		`{"command":"resize"}`,
		`{"command":"dance"}`,
	} {
		if err := ctl.Handle([]byte(bad)); err == nil {
			t.Errorf("Handle(%s) accepted", bad)
		}
	}
}
