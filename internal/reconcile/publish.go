package reconcile

import (
	"context"

	"github.com/nerrad567/gray-logic-panel/internal/device"
	"github.com/nerrad567/gray-logic-panel/internal/hass"
)

// publish sends an unretained state payload.
func (l *Loop) publish(topic, payload string) error {
	return l.opts.Publisher.Publish(topic, []byte(payload), l.opts.QoS, false)
}

// publishDisplay publishes display power and brightness. The published
// copy is only updated once both succeed, so a failed publish is retried
// on the next poll.
func (l *Loop) publishDisplay(ctx context.Context, source, commandID string) {
	st := l.model.State()
	t := l.opts.Topics

	if err := l.publish(t.Display(), device.FormatPower(st.DisplayOn)); err != nil {
		l.log.Error("publishing display state failed", "error", err)
		return
	}
	if err := l.publish(t.Brightness(), device.FormatBrightness(st.DisplayBrightness)); err != nil {
		l.log.Error("publishing display brightness failed", "error", err)
		return
	}

	l.published.DisplayOn = st.DisplayOn
	l.published.DisplayBrightness = st.DisplayBrightness
	l.displayPublished = true

	l.log.Debug("display state published",
		"on", st.DisplayOn,
		"brightness", st.DisplayBrightness,
		"source", source,
	)
	l.record(ctx, device.EntityDisplay, source, commandID)
	if l.opts.Telemetry != nil {
		l.opts.Telemetry.WriteEntityState(t.DeviceID, string(device.EntityDisplay), map[string]any{
			"on":         st.DisplayOn,
			"brightness": int64(st.DisplayBrightness),
		}, l.opts.Now())
	}
}

// publishLED publishes LED power and the color read back from the driver.
func (l *Loop) publishLED(ctx context.Context, source, commandID string) {
	st := l.model.State()
	t := l.opts.Topics

	if err := l.publish(t.LED(), device.FormatPower(st.LEDOn)); err != nil {
		l.log.Error("publishing led state failed", "error", err)
		return
	}
	if err := l.publish(t.LEDColor(), st.LEDColor.String()); err != nil {
		l.log.Error("publishing led color failed", "error", err)
		return
	}

	l.published.LEDOn = st.LEDOn
	l.published.LEDColor = st.LEDColor

	l.log.Debug("led state published",
		"on", st.LEDOn,
		"color", st.LEDColor.String(),
		"source", source,
	)
	l.record(ctx, device.EntityLED, source, commandID)
	if l.opts.Telemetry != nil {
		l.opts.Telemetry.WriteEntityState(t.DeviceID, string(device.EntityLED), map[string]any{
			"on": st.LEDOn,
			"r":  int64(st.LEDColor.R),
			"g":  int64(st.LEDColor.G),
			"b":  int64(st.LEDColor.B),
		}, l.opts.Now())
	}
}

// publishSensors samples the CPU temperature and publishes it together
// with the model's motion level. A failed temperature read skips the publish.
func (l *Loop) publishSensors() {
	temp, err := l.opts.Thermometer.ReadCPUTemperature()
	if err != nil {
		l.log.Error("reading cpu temperature failed", "error", err)
		return
	}

	st := l.model.State()
	sample := device.SensorSample{
		CPUTemperatureC: temp,
		MotionActive:    st.MotionActive,
		HasMotion:       l.opts.Motion != nil,
		SampledAt:       l.opts.Now(),
	}

	payload, err := hass.EncodeSensors(sample)
	if err != nil {
		l.log.Error("encoding sensor payload failed", "error", err)
		return
	}
	if err := l.opts.Publisher.Publish(l.opts.Topics.Sensors(), payload, l.opts.QoS, false); err != nil {
		l.log.Error("publishing sensors failed", "error", err)
		return
	}

	l.lastSample = &sample
	l.published.MotionActive = sample.MotionActive

	if l.opts.Telemetry != nil {
		var motion *bool
		if sample.HasMotion {
			motion = &sample.MotionActive
		}
		l.opts.Telemetry.WriteSensorSample(l.opts.Topics.DeviceID, temp, motion, sample.SampledAt)
	}
}

// record stores the current state for entity in the history, if configured.
func (l *Loop) record(ctx context.Context, entity device.Entity, source, commandID string) {
	if l.opts.History == nil {
		return
	}
	err := l.opts.History.RecordStateChange(ctx, device.StateHistoryEntry{
		Entity:    entity,
		State:     l.model.State(),
		Source:    source,
		CommandID: commandID,
	})
	if err != nil {
		l.log.Warn("recording state history failed",
			"entity", entity,
			"error", err,
		)
	}
}

func (l *Loop) storeSnapshot() {
	l.snapshot.Store(&Snapshot{
		State:         l.model.State(),
		MaxBrightness: l.model.MaxBrightness(),
		LastSample:    l.lastSample,
		UpdatedAt:     l.opts.Now(),
	})
}
