package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-panel/internal/actuation"
	"github.com/nerrad567/gray-logic-panel/internal/device"
	"github.com/nerrad567/gray-logic-panel/internal/hardware"
	"github.com/nerrad567/gray-logic-panel/internal/infrastructure/mqtt"
)

const testMaxBrightness = 255

var testTopics = mqtt.Topics{DeviceID: "raspi-eg"}

type message struct {
	topic    string
	payload  string
	retained bool
}

// recordingPublisher keeps every successful publish.
type recordingPublisher struct {
	mu   sync.Mutex
	msgs []message
	fail error
}

func (p *recordingPublisher) Publish(topic string, payload []byte, _ byte, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.msgs = append(p.msgs, message{topic: topic, payload: string(payload), retained: retained})
	return nil
}

func (p *recordingPublisher) setFail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

// take returns and clears the recorded messages.
func (p *recordingPublisher) take() []message {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := p.msgs
	p.msgs = nil
	return msgs
}

func (p *recordingPublisher) payloads(topic string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.msgs {
		if m.topic == topic {
			out = append(out, m.payload)
		}
	}
	return out
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) RecordStateChange(ctx context.Context, entry device.StateHistoryEntry) error {
	return m.Called(ctx, entry).Error(0)
}

type telemetryCall struct {
	entity string
	fields map[string]any
}

type recordingTelemetry struct {
	samples  []*bool
	entities []telemetryCall
}

func (r *recordingTelemetry) WriteSensorSample(_ string, _ float64, motion *bool, _ time.Time) {
	r.samples = append(r.samples, motion)
}

func (r *recordingTelemetry) WriteEntityState(_, entity string, fields map[string]any, _ time.Time) {
	r.entities = append(r.entities, telemetryCall{entity: entity, fields: fields})
}

type fixture struct {
	loop *Loop
	sim  *hardware.Simulated
	pub  *recordingPublisher
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	sim := hardware.NewSimulated(testMaxBrightness)
	model := device.NewModel(sim, sim, actuation.NewSupervisor(sim), testMaxBrightness)
	require.NoError(t, model.Refresh())
	require.NoError(t, model.RefreshLED())

	pub := &recordingPublisher{}
	opts := Options{
		Model:       model,
		Thermometer: sim,
		Motion:      sim,
		Publisher:   pub,
		Topics:      testTopics,
		QoS:         1,
		Discovery:   []byte(`{"dev":{"ids":"raspi-eg"}}`),
	}
	for _, m := range mutate {
		m(&opts)
	}

	l, err := New(opts)
	require.NoError(t, err)
	return &fixture{loop: l, sim: sim, pub: pub}
}

// start performs the startup announce and discards its messages.
func (f *fixture) start(t *testing.T) {
	t.Helper()
	f.loop.announce(context.Background(), device.StateHistorySourceStartup)
	f.pub.take()
}

// command delivers a message through the public entry point and
// processes everything queued.
func (f *fixture) command(t *testing.T, topic, payload string) {
	t.Helper()
	require.NoError(t, f.loop.HandleMessage(topic, []byte(payload)))
	for len(f.loop.commands) > 0 {
		f.loop.handleCommand(context.Background(), <-f.loop.commands)
	}
}

func (f *fixture) ticks(n int) {
	for range n {
		f.loop.tick(context.Background())
	}
}

func TestNew_RequiresOptions(t *testing.T) {
	sim := hardware.NewSimulated(testMaxBrightness)
	model := device.NewModel(sim, nil, nil, testMaxBrightness)
	full := Options{
		Model:       model,
		Thermometer: sim,
		Publisher:   &recordingPublisher{},
		Topics:      testTopics,
		Discovery:   []byte("{}"),
	}

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"model", func(o *Options) { o.Model = nil }},
		{"thermometer", func(o *Options) { o.Thermometer = nil }},
		{"publisher", func(o *Options) { o.Publisher = nil }},
		{"device id", func(o *Options) { o.Topics = mqtt.Topics{} }},
		{"discovery", func(o *Options) { o.Discovery = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := full
			tt.mutate(&opts)
			_, err := New(opts)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}

	l, err := New(full)
	require.NoError(t, err)
	assert.Equal(t, DefaultTickInterval, l.opts.TickInterval)
	assert.Equal(t, DefaultSensorIntervalTicks, l.opts.SensorIntervalTicks)
	assert.Equal(t, DefaultAnnounceMinInterval, l.opts.AnnounceMinInterval)
}

func TestAnnounce_PublishesDiscoveryAndFullState(t *testing.T) {
	f := newFixture(t)

	f.loop.announce(context.Background(), device.StateHistorySourceStartup)
	msgs := f.pub.take()

	require.Len(t, msgs, 6)
	assert.Equal(t, message{"homeassistant/device/raspi-eg/config", `{"dev":{"ids":"raspi-eg"}}`, true}, msgs[0])
	assert.Equal(t, message{"raspi-eg/display", "ON", false}, msgs[1])
	assert.Equal(t, message{"raspi-eg/display/brightness", "255", false}, msgs[2])
	assert.Equal(t, message{"raspi-eg/led", "OFF", false}, msgs[3])
	assert.Equal(t, message{"raspi-eg/led/color", "255,255,255", false}, msgs[4])
	assert.Equal(t, "raspi-eg/sensors", msgs[5].topic)
	assert.JSONEq(t, `{"temperature_cpu":45,"motion":"OFF"}`, msgs[5].payload)
}

func TestAnnounce_WithoutLEDOrMotion(t *testing.T) {
	sim := hardware.NewSimulated(testMaxBrightness)
	model := device.NewModel(sim, nil, actuation.NewSupervisor(sim), testMaxBrightness)
	require.NoError(t, model.Refresh())
	pub := &recordingPublisher{}

	l, err := New(Options{
		Model:       model,
		Thermometer: sim,
		Publisher:   pub,
		Topics:      testTopics,
		Discovery:   []byte("{}"),
	})
	require.NoError(t, err)

	l.announce(context.Background(), device.StateHistorySourceStartup)

	assert.Empty(t, pub.payloads("raspi-eg/led"))
	assert.Empty(t, pub.payloads("raspi-eg/led/color"))
	sensors := pub.payloads("raspi-eg/sensors")
	require.Len(t, sensors, 1)
	assert.JSONEq(t, `{"temperature_cpu":45}`, sensors[0])
}

func TestTick_PollPublishesOutOfBandChange(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	// A change made outside the bridge, e.g. a hardware button.
	f.sim.SetBrightness(77)
	f.ticks(1)

	assert.Equal(t, []message{
		{"raspi-eg/display", "ON", false},
		{"raspi-eg/display/brightness", "77", false},
	}, f.pub.take())

	f.ticks(1)
	assert.Empty(t, f.pub.take(), "unchanged hardware must not republish")

	f.sim.SetDisplayPower(false)
	f.ticks(1)
	assert.Equal(t, []string{"OFF"}, f.pub.payloads("raspi-eg/display"))
}

func TestTick_FirstPollPublishesWithoutAnnounce(t *testing.T) {
	f := newFixture(t)

	f.ticks(1)

	assert.Equal(t, []string{"ON"}, f.pub.payloads("raspi-eg/display"))
	assert.Equal(t, []string{"255"}, f.pub.payloads("raspi-eg/display/brightness"))
}

func TestTick_SensorCadence(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.ticks(59)
	assert.Empty(t, f.pub.payloads("raspi-eg/sensors"))

	f.ticks(1)
	assert.Len(t, f.pub.payloads("raspi-eg/sensors"), 1)

	f.ticks(60)
	assert.Len(t, f.pub.payloads("raspi-eg/sensors"), 2)
}

func TestMotion_PublishesImmediatelyWithoutResettingCadence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.start(t)

	f.ticks(5)
	f.loop.handleMotion(ctx, hardware.MotionEvent{Edge: hardware.EdgeRising, Timestamp: time.Now()})

	sensors := f.pub.payloads("raspi-eg/sensors")
	require.Len(t, sensors, 1)
	assert.JSONEq(t, `{"temperature_cpu":45,"motion":"ON"}`, sensors[0])
	f.pub.take()

	// The periodic publish still lands on tick 60, not 65.
	f.ticks(54)
	assert.Empty(t, f.pub.payloads("raspi-eg/sensors"))
	f.ticks(1)
	sensors = f.pub.payloads("raspi-eg/sensors")
	require.Len(t, sensors, 1)
	assert.JSONEq(t, `{"temperature_cpu":45,"motion":"ON"}`, sensors[0])
	f.pub.take()

	// Falling edges publish too.
	f.loop.handleMotion(ctx, hardware.MotionEvent{Edge: hardware.EdgeFalling, Timestamp: time.Now()})
	sensors = f.pub.payloads("raspi-eg/sensors")
	require.Len(t, sensors, 1)
	assert.JSONEq(t, `{"temperature_cpu":45,"motion":"OFF"}`, sensors[0])
	assert.False(t, f.loop.Snapshot().State.MotionActive)
}

func TestCommand_BrightnessScenario(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.command(t, testTopics.BrightnessSet(), "128")
	assert.Equal(t, []string{"128"}, f.pub.payloads("raspi-eg/display/brightness"))
	f.pub.take()

	f.command(t, testTopics.BrightnessSet(), "400")
	assert.Empty(t, f.pub.take(), "rejected command must not publish")

	assert.Equal(t, 128, f.loop.model.State().DisplayBrightness)
	hw, err := f.sim.ReadBrightness()
	require.NoError(t, err)
	assert.Equal(t, 128, hw)

	// The poll sees no divergence after the rejection.
	f.ticks(1)
	assert.Empty(t, f.pub.take())
}

func TestCommand_EchoesUnchangedValue(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.command(t, testTopics.BrightnessSet(), "255")

	assert.Equal(t, []message{
		{"raspi-eg/display", "ON", false},
		{"raspi-eg/display/brightness", "255", false},
	}, f.pub.take())
}

func TestCommand_BrightnessDoesNotTurnDisplayOn(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.command(t, testTopics.DisplaySet(), "OFF")
	f.pub.take()
	f.command(t, testTopics.BrightnessSet(), "10")

	assert.Equal(t, []string{"OFF"}, f.pub.payloads("raspi-eg/display"))
	assert.Equal(t, []string{"10"}, f.pub.payloads("raspi-eg/display/brightness"))
	assert.Zero(t, f.sim.OnCalls())
}

func TestCommand_InvalidPayloadsAreRejected(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.command(t, testTopics.DisplaySet(), "TOGGLE")
	f.command(t, testTopics.DisplaySet(), "on")
	f.command(t, testTopics.BrightnessSet(), "-1")
	f.command(t, testTopics.BrightnessSet(), "bright")
	f.command(t, testTopics.LEDSet(), "")
	f.command(t, testTopics.LEDColorSet(), "255,0")
	f.command(t, testTopics.LEDColorSet(), "300,0,0")

	assert.Empty(t, f.pub.take())
	assert.Zero(t, f.sim.OffCalls())
	assert.True(t, f.loop.model.State().DisplayOn)
}

func TestCommand_DisplayOffOffOn(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.command(t, testTopics.DisplaySet(), "OFF")
	f.command(t, testTopics.DisplaySet(), "OFF")
	f.command(t, testTopics.DisplaySet(), "ON")

	assert.Equal(t, []string{"OFF", "OFF", "ON"}, f.pub.payloads("raspi-eg/display"))

	procs := f.sim.OffProcesses()
	require.Len(t, procs, 2)
	for i, p := range procs {
		assert.Equal(t, 1, p.Terminations(), "off process %d", i)
		assert.False(t, p.IsRunning(), "off process %d", i)
	}
	assert.Equal(t, 1, f.sim.OnCalls())
}

func TestCommand_LEDColorWhileOff(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.command(t, testTopics.LEDColorSet(), "255,0,0")
	assert.Equal(t, []message{
		{"raspi-eg/led", "OFF", false},
		{"raspi-eg/led/color", "255,0,0", false},
	}, f.pub.take())

	f.command(t, testTopics.LEDSet(), "ON")
	assert.Equal(t, []message{
		{"raspi-eg/led", "ON", false},
		{"raspi-eg/led/color", "255,0,0", false},
	}, f.pub.take())

	// Repeated ON keeps the color.
	f.command(t, testTopics.LEDSet(), "ON")
	assert.Equal(t, []string{"255,0,0"}, f.pub.payloads("raspi-eg/led/color"))
}

func TestCommand_HardwareFailureSkipsStep(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.sim.FailWrites(hardware.ErrWrite)
	f.command(t, testTopics.BrightnessSet(), "10")
	assert.Empty(t, f.pub.take())

	f.sim.FailWrites(nil)
	f.command(t, testTopics.BrightnessSet(), "10")
	assert.Equal(t, []string{"10"}, f.pub.payloads("raspi-eg/display/brightness"))
}

func TestCommand_PowerTransitionFailure(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.sim.FailOff(errors.New("wlopm: not found"))
	f.command(t, testTopics.DisplaySet(), "OFF")

	assert.Empty(t, f.pub.take())
	assert.True(t, f.loop.model.State().DisplayOn)
}

func TestTick_HardwareReadFailureKeepsLoopAlive(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.SensorIntervalTicks = 1 })
	f.start(t)

	f.sim.FailReads(hardware.ErrRead)
	f.ticks(3)
	assert.Empty(t, f.pub.take())

	f.sim.FailReads(nil)
	f.sim.SetBrightness(3)
	f.ticks(1)
	assert.Len(t, f.pub.payloads("raspi-eg/sensors"), 1)
	assert.Equal(t, []string{"3"}, f.pub.payloads("raspi-eg/display/brightness"))
}

func TestTick_PublishFailureRetriedOnNextPoll(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.pub.setFail(errors.New("broker gone"))
	f.sim.SetBrightness(12)
	f.ticks(1)

	f.pub.setFail(nil)
	f.ticks(1)
	assert.Equal(t, []string{"12"}, f.pub.payloads("raspi-eg/display/brightness"))
}

func TestHandleMessage(t *testing.T) {
	f := newFixture(t)

	t.Run("birth requests announce", func(t *testing.T) {
		require.NoError(t, f.loop.HandleMessage("homeassistant/status", []byte("online")))
		require.NoError(t, f.loop.HandleMessage("homeassistant/status", []byte("online")))
		assert.Len(t, f.loop.announceCh, 1, "requests coalesce")
		<-f.loop.announceCh

		require.NoError(t, f.loop.HandleMessage("homeassistant/status", []byte("offline")))
		assert.Empty(t, f.loop.announceCh)
	})

	t.Run("unknown topic", func(t *testing.T) {
		err := f.loop.HandleMessage("raspi-eg/speaker/set", []byte("ON"))
		assert.ErrorIs(t, err, ErrUnknownTopic)
	})

	t.Run("payload is copied", func(t *testing.T) {
		buf := []byte("ON")
		require.NoError(t, f.loop.HandleMessage(testTopics.LEDSet(), buf))
		buf[0] = 'X'
		cmd := <-f.loop.commands
		assert.Equal(t, "ON", string(cmd.payload))
		assert.Len(t, cmd.id, 36)
	})

	t.Run("full queue drops", func(t *testing.T) {
		for range commandQueueSize {
			require.NoError(t, f.loop.HandleMessage(testTopics.DisplaySet(), []byte("ON")))
		}
		err := f.loop.HandleMessage(testTopics.DisplaySet(), []byte("ON"))
		assert.ErrorIs(t, err, ErrQueueFull)
	})
}

func TestHandleMotion_NeverBlocks(t *testing.T) {
	f := newFixture(t)

	for range motionQueueSize + 4 {
		f.loop.HandleMotion(hardware.MotionEvent{Edge: hardware.EdgeRising, Timestamp: time.Now()})
	}
	assert.Len(t, f.loop.motion, motionQueueSize)
}

func TestAnnounceRequest_Throttled(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.AnnounceMinInterval = time.Hour })
	ctx := context.Background()

	f.loop.handleAnnounceRequest(ctx)
	assert.Len(t, f.pub.payloads("homeassistant/device/raspi-eg/config"), 1)

	f.loop.handleAnnounceRequest(ctx)
	assert.Len(t, f.pub.payloads("homeassistant/device/raspi-eg/config"), 1)
}

func TestHistoryAndTelemetry(t *testing.T) {
	history := &mockHistory{}
	telemetry := &recordingTelemetry{}
	f := newFixture(t, func(o *Options) {
		o.History = history
		o.Telemetry = telemetry
	})

	history.On("RecordStateChange", mock.Anything, mock.MatchedBy(func(e device.StateHistoryEntry) bool {
		return e.Source == device.StateHistorySourceStartup
	})).Return(nil).Twice()
	history.On("RecordStateChange", mock.Anything, mock.MatchedBy(func(e device.StateHistoryEntry) bool {
		return e.Entity == device.EntityDisplay &&
			e.Source == device.StateHistorySourceCommand &&
			e.CommandID != "" &&
			e.State.DisplayBrightness == 64
	})).Return(errors.New("disk full")).Once()

	f.start(t)
	f.command(t, testTopics.BrightnessSet(), "64")

	history.AssertExpectations(t)

	// The failed history write does not stop the echo.
	assert.Equal(t, []string{"64"}, f.pub.payloads("raspi-eg/display/brightness"))

	require.Len(t, telemetry.samples, 1)
	require.NotNil(t, telemetry.samples[0])
	assert.False(t, *telemetry.samples[0])

	require.Len(t, telemetry.entities, 3)
	last := telemetry.entities[2]
	assert.Equal(t, "display", last.entity)
	assert.Equal(t, int64(64), last.fields["brightness"])
	assert.Equal(t, true, last.fields["on"])
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)

	snap := f.loop.Snapshot()
	assert.Equal(t, testMaxBrightness, snap.MaxBrightness)
	assert.Nil(t, snap.LastSample)

	f.start(t)
	f.command(t, testTopics.BrightnessSet(), "128")

	snap = f.loop.Snapshot()
	assert.Equal(t, 128, snap.State.DisplayBrightness)
	require.NotNil(t, snap.LastSample)
	assert.InDelta(t, 45.0, snap.LastSample.CPUTemperatureC, 0.001)
	assert.True(t, snap.LastSample.HasMotion)
}

func TestRun(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.TickInterval = 5 * time.Millisecond })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.loop.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(f.pub.payloads("homeassistant/device/raspi-eg/config")) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.loop.HandleMessage(testTopics.BrightnessSet(), []byte("100")))
	f.sim.TriggerMotion(true)
	f.loop.HandleMotion(hardware.MotionEvent{Edge: hardware.EdgeRising, Timestamp: time.Now()})

	require.Eventually(t, func() bool {
		return f.loop.Snapshot().State.DisplayBrightness == 100 && f.loop.Snapshot().State.MotionActive
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
