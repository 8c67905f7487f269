package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-panel/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-panel-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

var testTopics = Topics{DeviceID: "raspi-eg"}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Sensors", testTopics.Sensors(), "raspi-eg/sensors"},
		{"Display", testTopics.Display(), "raspi-eg/display"},
		{"DisplaySet", testTopics.DisplaySet(), "raspi-eg/display/set"},
		{"Brightness", testTopics.Brightness(), "raspi-eg/display/brightness"},
		{"BrightnessSet", testTopics.BrightnessSet(), "raspi-eg/display/brightness/set"},
		{"LED", testTopics.LED(), "raspi-eg/led"},
		{"LEDSet", testTopics.LEDSet(), "raspi-eg/led/set"},
		{"LEDColor", testTopics.LEDColor(), "raspi-eg/led/color"},
		{"LEDColorSet", testTopics.LEDColorSet(), "raspi-eg/led/color/set"},
		{"Availability", testTopics.Availability(), "raspi-eg/availability"},
		{"DiscoveryConfig", testTopics.DiscoveryConfig(), "homeassistant/device/raspi-eg/config"},
		{"HAStatus", testTopics.HAStatus(), "homeassistant/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestCommandTopics(t *testing.T) {
	got := testTopics.CommandTopics()
	if len(got) != 4 {
		t.Fatalf("CommandTopics() len = %d, want 4", len(got))
	}
	for _, topic := range got {
		if !strings.HasPrefix(topic, "raspi-eg/") || !strings.HasSuffix(topic, "/set") {
			t.Errorf("CommandTopics() contains %q, want raspi-eg/.../set", topic)
		}
	}
}

func TestBuildClientOptions(t *testing.T) {
	t.Run("plain tcp with auth", func(t *testing.T) {
		cfg := testConfig()
		cfg.Auth = config.MQTTAuthConfig{Username: "panel", Password: "secret"}

		opts := buildClientOptions(cfg)

		if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
			t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
		}
		if opts.ClientID != "graylogic-panel-test" {
			t.Errorf("ClientID = %q", opts.ClientID)
		}
		if opts.Username != "panel" || opts.Password != "secret" {
			t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
		}
		if !opts.CleanSession || !opts.AutoReconnect || !opts.ConnectRetry {
			t.Error("expected clean session with auto-reconnect and connect retry")
		}
		if opts.ConnectRetryInterval != time.Second || opts.MaxReconnectInterval != 5*time.Second {
			t.Errorf("retry intervals = %v/%v", opts.ConnectRetryInterval, opts.MaxReconnectInterval)
		}
	})

	t.Run("tls", func(t *testing.T) {
		cfg := testConfig()
		cfg.Broker.TLS = true
		cfg.Broker.Port = 8883

		opts := buildClientOptions(cfg)

		if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
			t.Errorf("Servers[0] = %v, want ssl://127.0.0.1:8883", opts.Servers[0])
		}
		if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tls.VersionTLS12 {
			t.Error("TLS 1.2 minimum not configured")
		}
		if opts.Username != "" {
			t.Error("anonymous config should not set a username")
		}
	})
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, testTopics)

	if !opts.WillEnabled {
		t.Fatal("last will not enabled")
	}
	if opts.WillTopic != "raspi-eg/availability" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if string(opts.WillPayload) != PayloadOffline {
		t.Errorf("WillPayload = %q, want %q", opts.WillPayload, PayloadOffline)
	}
	if !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will retained=%v qos=%d, want retained qos 1", opts.WillRetained, opts.WillQos)
	}
}

func TestPublishValidation(t *testing.T) {
	c := newClient(testConfig(), testTopics)

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("ON"), 1, ErrInvalidTopic},
		{"invalid qos", "raspi-eg/display", []byte("ON"), 3, ErrInvalidQoS},
		{"payload too large", "raspi-eg/display", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "raspi-eg/display", []byte("ON"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}

	if err := c.Publish(testTopics.DiscoveryConfig(), []byte("{}"), c.QoS(), true); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish(retained) error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := newClient(testConfig(), testTopics)
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v", err)
	}
	if err := c.Subscribe("raspi-eg/display/set", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v", err)
	}
	if err := c.Subscribe("raspi-eg/display/set", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v", err)
	}
	if err := c.Subscribe("raspi-eg/display/set", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v", err)
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty) error = %v", err)
	}
	if c.SubscriptionCount() != 0 || c.HasSubscription("raspi-eg/display/set") {
		t.Error("failed subscribe must not be tracked")
	}
}

func TestHealthCheck(t *testing.T) {
	c := newClient(testConfig(), testTopics)

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestCloseUnconnected(t *testing.T) {
	var zero Client
	if err := zero.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}

	c := newClient(testConfig(), testTopics)
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() after Close() = true")
	}
}

func TestConnectionCallbacks(t *testing.T) {
	c := newClient(testConfig(), testTopics)

	var connects, disconnects int
	var lostErr error
	c.SetOnConnect(func() { connects++ })
	c.SetOnDisconnect(func(err error) {
		disconnects++
		lostErr = err
	})

	c.handleConnect()
	cause := errors.New("network down")
	c.handleDisconnect(cause)

	if connects != 1 || disconnects != 1 {
		t.Errorf("callbacks connect=%d disconnect=%d, want 1/1", connects, disconnects)
	}
	if !errors.Is(lostErr, cause) {
		t.Errorf("disconnect error = %v, want %v", lostErr, cause)
	}
	if c.IsConnected() {
		t.Error("IsConnected() after disconnect = true")
	}
}

func TestWrapHandler(t *testing.T) {
	c := newClient(testConfig(), testTopics)
	logger := &recordingLogger{}
	c.SetLogger(logger)

	var got string
	ok := c.wrapHandler(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	})
	ok(nil, fakeMessage{topic: "raspi-eg/display/set", payload: []byte("ON")})
	if got != "raspi-eg/display/set=ON" {
		t.Errorf("handler saw %q", got)
	}

	failing := c.wrapHandler(func(string, []byte) error { return errors.New("rejected") })
	failing(nil, fakeMessage{topic: "raspi-eg/led/set"})

	panicking := c.wrapHandler(func(string, []byte) error { panic("boom") })
	panicking(nil, fakeMessage{topic: "raspi-eg/led/color/set"})

	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one handler error", logger.warns)
	}
	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one recovered panic", logger.errors)
	}
}
