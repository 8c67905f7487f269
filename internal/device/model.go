package device

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-panel/internal/hardware"
)

// PowerSwitch turns the display on and off. Off may complete
// asynchronously; Pending reports an unfinished off transition.
type PowerSwitch interface {
	On(ctx context.Context) error
	Off(ctx context.Context) error
	Pending() bool
}

// Model is the authoritative in-memory panel state.
//
// Model is not safe for concurrent use: exactly one goroutine (the
// reconciliation loop) owns it. Readers on other goroutines must use a
// published copy of State.
type Model struct {
	backlight     hardware.Backlight
	led           hardware.LED
	power         PowerSwitch
	maxBrightness int

	state State
}

// NewModel creates a model. maxBrightness is read once by the caller and
// never changes.
func NewModel(backlight hardware.Backlight, led hardware.LED, power PowerSwitch, maxBrightness int) *Model {
	return &Model{
		backlight:     backlight,
		led:           led,
		power:         power,
		maxBrightness: maxBrightness,
	}
}

// State returns a copy of the current state.
func (m *Model) State() State {
	return m.state
}

// MaxBrightness returns the immutable brightness ceiling.
func (m *Model) MaxBrightness() int {
	return m.maxBrightness
}

// HasLED reports whether an LED accessor is configured.
func (m *Model) HasLED() bool {
	return m.led != nil
}

// Diverged reports whether the model differs from candidate in any tracked field.
func (m *Model) Diverged(candidate State) bool {
	return m.state.Diverged(candidate)
}

// Refresh re-reads display power and brightness from hardware.
//
// While an off transition is still running the commanded power is kept,
// since the backlight register only drops once the transition finishes.
// On error the model is left unchanged.
func (m *Model) Refresh() error {
	on, err := m.backlight.ReadPower()
	if err != nil {
		return fmt.Errorf("%w: reading display power: %w", ErrHardwareIO, err)
	}
	brightness, err := m.backlight.ReadBrightness()
	if err != nil {
		return fmt.Errorf("%w: reading display brightness: %w", ErrHardwareIO, err)
	}

	if m.power == nil || !m.power.Pending() {
		m.state.DisplayOn = on
	}
	m.state.DisplayBrightness = brightness
	return nil
}

// RefreshLED re-reads LED power and color from hardware.
// It is a no-op without an LED.
func (m *Model) RefreshLED() error {
	if m.led == nil {
		return nil
	}
	active, err := m.led.ReadActive()
	if err != nil {
		return fmt.Errorf("%w: reading led power: %w", ErrHardwareIO, err)
	}
	color, err := m.led.ReadColor()
	if err != nil {
		return fmt.Errorf("%w: reading led color: %w", ErrHardwareIO, err)
	}
	m.state.LEDOn = active
	m.state.LEDColor = color
	return nil
}

// SetMotion records the level implied by a motion edge.
func (m *Model) SetMotion(active bool, at time.Time) {
	m.state.MotionActive = active
	m.state.MotionAt = at
}

// Validate checks u without touching hardware.
func (m *Model) Validate(u Update) error {
	if u.IsEmpty() {
		return newValidationError("update", "", "nothing to change")
	}
	if u.Brightness != nil {
		if err := ValidateBrightness(*u.Brightness, m.maxBrightness); err != nil {
			return err
		}
	}
	if u.DisplayOn != nil && m.power == nil {
		return newValidationError("display", "", "no power switch configured")
	}
	if u.TouchesLED() && m.led == nil {
		return newValidationError("led", "", "no led configured")
	}
	return nil
}

// Apply validates u in full, then writes it to hardware in a fixed order:
// display power, brightness, LED power, LED color. Touched entities are
// read back afterwards so the model reflects what the hardware stored.
//
// A validation failure writes nothing. A write failure stops at the
// failing step; earlier steps are not rolled back.
//
// Brightness is written independently of display power: setting it never
// turns the display on.
func (m *Model) Apply(ctx context.Context, u Update) error {
	if err := m.Validate(u); err != nil {
		return err
	}

	if u.DisplayOn != nil {
		if err := m.applyPower(ctx, *u.DisplayOn); err != nil {
			return err
		}
	}

	if u.Brightness != nil {
		if err := m.backlight.WriteBrightness(*u.Brightness); err != nil {
			return fmt.Errorf("%w: writing display brightness: %w", ErrHardwareIO, err)
		}
	}

	if u.LEDOn != nil {
		if err := m.applyLEDPower(*u.LEDOn); err != nil {
			return err
		}
	}

	if u.LEDColor != nil {
		if err := m.led.SetColor(*u.LEDColor); err != nil {
			return fmt.Errorf("%w: writing led color: %w", ErrHardwareIO, err)
		}
	}

	if u.TouchesDisplay() {
		if err := m.Refresh(); err != nil {
			return err
		}
	}
	if u.TouchesLED() {
		if err := m.RefreshLED(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) applyPower(ctx context.Context, on bool) error {
	var err error
	if on {
		err = m.power.On(ctx)
	} else {
		err = m.power.Off(ctx)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPowerTransition, err)
	}
	m.state.DisplayOn = on
	return nil
}

// applyLEDPower only activates an inactive LED, since activation may reset
// the color on some drivers. Deactivation is unconditional.
func (m *Model) applyLEDPower(on bool) error {
	if on {
		active, err := m.led.ReadActive()
		if err != nil {
			return fmt.Errorf("%w: reading led power: %w", ErrHardwareIO, err)
		}
		if active {
			return nil
		}
	}
	if err := m.led.SetActive(on); err != nil {
		return fmt.Errorf("%w: writing led power: %w", ErrHardwareIO, err)
	}
	return nil
}
