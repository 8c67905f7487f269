package device

import (
	"time"

	"github.com/nerrad567/gray-logic-panel/internal/hardware"
)

// Entity names one group of topics exposed to Home Assistant.
type Entity string

const (
	EntityDisplay Entity = "display"
	EntityLED     Entity = "led"
	EntitySensors Entity = "sensors"
)

// ParseEntity converts a string to an Entity.
func ParseEntity(s string) (Entity, bool) {
	switch e := Entity(s); e {
	case EntityDisplay, EntityLED, EntitySensors:
		return e, true
	default:
		return "", false
	}
}

// State is a snapshot of every observable panel property.
type State struct {
	DisplayOn         bool         `json:"display_on"`
	DisplayBrightness int          `json:"display_brightness"`
	LEDOn             bool         `json:"led_on"`
	LEDColor          hardware.RGB `json:"led_color"`

	// MotionActive is the level implied by the last motion edge.
	MotionActive bool      `json:"motion_active"`
	MotionAt     time.Time `json:"motion_at,omitzero"`
}

// Diverged reports whether any tracked field differs from other.
// MotionAt is bookkeeping and not compared.
func (s State) Diverged(other State) bool {
	return s.DisplayDiverged(other) ||
		s.LEDDiverged(other) ||
		s.MotionActive != other.MotionActive
}

// DisplayDiverged reports whether display power or brightness differ.
func (s State) DisplayDiverged(other State) bool {
	return s.DisplayOn != other.DisplayOn || s.DisplayBrightness != other.DisplayBrightness
}

// LEDDiverged reports whether LED power or color differ.
func (s State) LEDDiverged(other State) bool {
	return s.LEDOn != other.LEDOn || s.LEDColor != other.LEDColor
}

// SensorSample is one periodic or motion-triggered sensor reading.
type SensorSample struct {
	CPUTemperatureC float64 `json:"temperature_cpu"`
	MotionActive    bool    `json:"motion_active"`

	// HasMotion is false when no motion sensor is configured, in which
	// case MotionActive carries no information.
	HasMotion bool `json:"has_motion"`

	SampledAt time.Time `json:"sampled_at"`
}

// Update is a validated-then-applied change to one or more properties.
// Nil fields are left untouched.
type Update struct {
	DisplayOn  *bool
	Brightness *int
	LEDOn      *bool
	LEDColor   *hardware.RGB
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.DisplayOn == nil && u.Brightness == nil && u.LEDOn == nil && u.LEDColor == nil
}

// TouchesDisplay reports whether the update writes display power or brightness.
func (u Update) TouchesDisplay() bool {
	return u.DisplayOn != nil || u.Brightness != nil
}

// TouchesLED reports whether the update writes LED power or color.
func (u Update) TouchesLED() bool {
	return u.LEDOn != nil || u.LEDColor != nil
}
