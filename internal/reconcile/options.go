package reconcile

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-panel/internal/device"
	"github.com/nerrad567/gray-logic-panel/internal/hardware"
	"github.com/nerrad567/gray-logic-panel/internal/infrastructure/mqtt"
)

// Defaults applied by New for zero option values.
const (
	DefaultTickInterval        = time.Second
	DefaultSensorIntervalTicks = 60
	DefaultAnnounceMinInterval = 5 * time.Second

	commandQueueSize = 64
	motionQueueSize  = 16
)

// Publisher sends one MQTT message. Implemented by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// HistoryRecorder stores published entity states.
// Implemented by *device.SQLiteStateHistoryRepository.
type HistoryRecorder interface {
	RecordStateChange(ctx context.Context, entry device.StateHistoryEntry) error
}

// Telemetry receives every published sample and entity state.
// Implemented by *influxdb.Client.
type Telemetry interface {
	WriteSensorSample(deviceID string, temperatureC float64, motion *bool, ts time.Time)
	WriteEntityState(deviceID, entity string, fields map[string]any, ts time.Time)
}

// Logger defines the logging interface for the loop.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Loop. Model, Thermometer, Publisher, Topics and
// Discovery are required.
type Options struct {
	Model       *device.Model
	Thermometer hardware.Thermometer

	// Motion is optional. When set, sensor payloads carry the motion field.
	Motion hardware.MotionSensor

	Publisher Publisher
	Topics    mqtt.Topics
	QoS       byte

	// Discovery is the encoded discovery document, published retained on
	// every announce.
	Discovery []byte

	TickInterval        time.Duration
	SensorIntervalTicks int
	AnnounceMinInterval time.Duration

	History   HistoryRecorder
	Telemetry Telemetry
	Logger    Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (o *Options) applyDefaults() {
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.SensorIntervalTicks <= 0 {
		o.SensorIntervalTicks = DefaultSensorIntervalTicks
	}
	if o.AnnounceMinInterval <= 0 {
		o.AnnounceMinInterval = DefaultAnnounceMinInterval
	}
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}
