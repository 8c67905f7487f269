package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/nerrad567/gray-logic-panel/internal/device"
	"github.com/nerrad567/gray-logic-panel/internal/hardware"
	"github.com/nerrad567/gray-logic-panel/internal/hass"
)

// Snapshot is a read-only copy of the loop's view of the panel, safe to
// hand to other goroutines.
type Snapshot struct {
	State         device.State         `json:"state"`
	MaxBrightness int                  `json:"max_brightness"`
	LastSample    *device.SensorSample `json:"last_sample,omitempty"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

type command struct {
	topic   string
	payload []byte
	id      string
}

// Loop is the single writer of the device model. Timer ticks, remote
// commands, motion edges and announce requests all funnel into Run, which
// handles them one at a time.
//
// HandleMessage, HandleMotion, RequestAnnounce and Snapshot are safe to
// call from any goroutine. Everything else runs on the Run goroutine.
type Loop struct {
	opts  Options
	model *device.Model
	log   Logger

	commands   chan command
	motion     chan hardware.MotionEvent
	announceCh chan struct{}
	limiter    *rate.Limiter

	// Owned by Run.
	ticks            int
	published        device.State
	displayPublished bool
	lastSample       *device.SensorSample

	snapshot atomic.Pointer[Snapshot]
}

// New creates a loop. The model must already hold an initial hardware
// reading.
func New(opts Options) (*Loop, error) {
	switch {
	case opts.Model == nil:
		return nil, fmt.Errorf("%w: model is required", ErrInvalidOptions)
	case opts.Thermometer == nil:
		return nil, fmt.Errorf("%w: thermometer is required", ErrInvalidOptions)
	case opts.Publisher == nil:
		return nil, fmt.Errorf("%w: publisher is required", ErrInvalidOptions)
	case opts.Topics.DeviceID == "":
		return nil, fmt.Errorf("%w: device id is required", ErrInvalidOptions)
	case len(opts.Discovery) == 0:
		return nil, fmt.Errorf("%w: discovery document is required", ErrInvalidOptions)
	}
	opts.applyDefaults()

	l := &Loop{
		opts:       opts,
		model:      opts.Model,
		log:        opts.Logger,
		commands:   make(chan command, commandQueueSize),
		motion:     make(chan hardware.MotionEvent, motionQueueSize),
		announceCh: make(chan struct{}, 1),
		limiter:    rate.NewLimiter(rate.Every(opts.AnnounceMinInterval), 1),
	}
	l.storeSnapshot()
	return l, nil
}

// Run announces the panel, then processes events until ctx is cancelled.
//
// The tick timer is re-armed after each tick's work, so slow hardware I/O
// stretches the period instead of causing ticks to pile up.
func (l *Loop) Run(ctx context.Context) error {
	// The startup announce uses the first token, so the connect callback
	// that fired just before Run does not announce twice.
	l.limiter.Allow()
	l.syncMotion()
	l.announce(ctx, device.StateHistorySourceStartup)

	timer := time.NewTimer(l.opts.TickInterval)
	defer timer.Stop()

	l.log.Info("reconciliation loop started",
		"tick_interval", l.opts.TickInterval,
		"sensor_interval_ticks", l.opts.SensorIntervalTicks,
	)

	for {
		select {
		case <-ctx.Done():
			l.log.Info("reconciliation loop stopped")
			return nil

		case <-timer.C:
			l.tick(ctx)
			timer.Reset(l.opts.TickInterval)

		case cmd := <-l.commands:
			l.handleCommand(ctx, cmd)

		case evt := <-l.motion:
			l.handleMotion(ctx, evt)

		case <-l.announceCh:
			l.handleAnnounceRequest(ctx)
		}
	}
}

// HandleMessage accepts a message from the bus. Command payloads are
// queued for Run; a Home Assistant birth message requests an announce.
// It never blocks.
func (l *Loop) HandleMessage(topic string, payload []byte) error {
	if topic == l.opts.Topics.HAStatus() {
		if hass.IsBirth(payload) {
			l.RequestAnnounce()
		}
		return nil
	}
	if !l.isCommandTopic(topic) {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	cmd := command{
		topic:   topic,
		payload: bytes.Clone(payload),
		id:      device.GenerateCommandID(),
	}
	select {
	case l.commands <- cmd:
		return nil
	default:
		return fmt.Errorf("%w: dropped command on %s", ErrQueueFull, topic)
	}
}

// HandleMotion queues a motion edge. It never blocks; edges arriving
// while the queue is full are dropped and logged.
func (l *Loop) HandleMotion(evt hardware.MotionEvent) {
	select {
	case l.motion <- evt:
	default:
		l.log.Warn("motion edge dropped", "error", ErrQueueFull, "active", evt.Active())
	}
}

// RequestAnnounce asks Run to republish discovery and full state.
// Requests coalesce and are rate limited.
func (l *Loop) RequestAnnounce() {
	select {
	case l.announceCh <- struct{}{}:
	default:
	}
}

// Snapshot returns the most recent published view of the panel.
func (l *Loop) Snapshot() Snapshot {
	return *l.snapshot.Load()
}

func (l *Loop) isCommandTopic(topic string) bool {
	for _, t := range l.opts.Topics.CommandTopics() {
		if topic == t {
			return true
		}
	}
	return false
}

// tick advances the sensor counter and polls the display.
func (l *Loop) tick(ctx context.Context) {
	l.ticks++
	if l.ticks >= l.opts.SensorIntervalTicks {
		l.ticks = 0
		l.publishSensors()
	}
	l.pollDisplay(ctx)
	l.storeSnapshot()
}

// pollDisplay re-reads the backlight and publishes when it differs from
// what was last published, catching changes not made through commands.
func (l *Loop) pollDisplay(ctx context.Context) {
	if err := l.model.Refresh(); err != nil {
		l.log.Error("polling display failed", "error", err)
		return
	}
	if l.displayPublished && !l.model.State().DisplayDiverged(l.published) {
		return
	}
	l.publishDisplay(ctx, device.StateHistorySourcePoll, "")
}

func (l *Loop) handleMotion(ctx context.Context, evt hardware.MotionEvent) {
	active := evt.Active()
	l.model.SetMotion(active, evt.Timestamp)
	l.log.Debug("motion edge", "active", active)

	// The sensor counter is left alone: the periodic publish keeps its cadence.
	l.publishSensors()
	l.record(ctx, device.EntitySensors, device.StateHistorySourceMotion, "")
	l.storeSnapshot()
}

func (l *Loop) handleCommand(ctx context.Context, cmd command) {
	entity, update, err := l.parseCommand(cmd)
	if err != nil {
		l.log.Warn("command rejected",
			"command_id", cmd.id,
			"topic", cmd.topic,
			"error", err,
		)
		return
	}

	// Commands act on the freshest hardware state.
	refresh := l.model.Refresh
	if entity == device.EntityLED {
		refresh = l.model.RefreshLED
	}
	if err := refresh(); err != nil {
		l.log.Error("refreshing state before command failed",
			"command_id", cmd.id,
			"entity", entity,
			"error", err,
		)
		return
	}

	if err := l.model.Apply(ctx, update); err != nil {
		if errors.Is(err, device.ErrValidation) {
			l.log.Warn("command rejected",
				"command_id", cmd.id,
				"topic", cmd.topic,
				"error", err,
			)
			return
		}
		l.log.Error("applying command failed",
			"command_id", cmd.id,
			"topic", cmd.topic,
			"error", err,
		)
		return
	}

	l.log.Info("command applied",
		"command_id", cmd.id,
		"topic", cmd.topic,
		"payload", string(cmd.payload),
	)

	// Always echo, even when nothing changed: the echo is the acknowledgment.
	switch entity {
	case device.EntityDisplay:
		l.publishDisplay(ctx, device.StateHistorySourceCommand, cmd.id)
	case device.EntityLED:
		l.publishLED(ctx, device.StateHistorySourceCommand, cmd.id)
	}
	l.storeSnapshot()
}

func (l *Loop) parseCommand(cmd command) (device.Entity, device.Update, error) {
	t := l.opts.Topics

	switch cmd.topic {
	case t.DisplaySet():
		on, err := device.ParsePower(cmd.payload)
		return device.EntityDisplay, device.Update{DisplayOn: &on}, err

	case t.BrightnessSet():
		v, err := device.ParseBrightness(cmd.payload, l.model.MaxBrightness())
		return device.EntityDisplay, device.Update{Brightness: &v}, err

	case t.LEDSet():
		on, err := device.ParsePower(cmd.payload)
		return device.EntityLED, device.Update{LEDOn: &on}, err

	case t.LEDColorSet():
		c, err := device.ParseColor(cmd.payload)
		return device.EntityLED, device.Update{LEDColor: &c}, err

	default:
		return "", device.Update{}, fmt.Errorf("%w: %s", ErrUnknownTopic, cmd.topic)
	}
}

func (l *Loop) handleAnnounceRequest(ctx context.Context) {
	if !l.limiter.Allow() {
		l.log.Debug("announce throttled")
		return
	}
	l.announce(ctx, device.StateHistorySourceAnnounce)
}

// announce publishes the retained discovery document followed by every
// entity's state, so a freshly started Home Assistant sees current values.
func (l *Loop) announce(ctx context.Context, source string) {
	if err := l.opts.Publisher.Publish(l.opts.Topics.DiscoveryConfig(), l.opts.Discovery, l.opts.QoS, true); err != nil {
		l.log.Error("publishing discovery document failed", "error", err)
	} else {
		l.log.Info("discovery document published", "topic", l.opts.Topics.DiscoveryConfig())
	}

	if err := l.model.Refresh(); err != nil {
		l.log.Error("refreshing display failed", "error", err)
	} else {
		l.publishDisplay(ctx, source, "")
	}

	if l.model.HasLED() {
		if err := l.model.RefreshLED(); err != nil {
			l.log.Error("refreshing led failed", "error", err)
		} else {
			l.publishLED(ctx, source, "")
		}
	}

	l.publishSensors()
	l.storeSnapshot()
}

// syncMotion seeds the model with the current motion level.
func (l *Loop) syncMotion() {
	if l.opts.Motion == nil {
		return
	}
	active, err := l.opts.Motion.Active()
	if err != nil {
		l.log.Warn("reading motion level failed", "error", err)
		return
	}
	l.model.SetMotion(active, l.opts.Now())
}
