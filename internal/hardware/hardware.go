package hardware

import (
	"context"
	"fmt"
	"time"
)

// RGB is an LED color with 8-bit channels.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// String formats the color in the "R,G,B" wire form.
func (c RGB) String() string {
	return fmt.Sprintf("%d,%d,%d", c.R, c.G, c.B)
}

// Edge is the direction of a GPIO transition.
type Edge int

const (
	// EdgeRising means the input became active.
	EdgeRising Edge = iota + 1

	// EdgeFalling means the input became inactive.
	EdgeFalling
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	default:
		return "unknown"
	}
}

// MotionEvent is a single edge observed on the motion input.
type MotionEvent struct {
	Edge      Edge
	Timestamp time.Time
}

// Active reports whether the edge signals motion.
func (e MotionEvent) Active() bool {
	return e.Edge == EdgeRising
}

// Thermometer reads the SoC temperature.
type Thermometer interface {
	// ReadCPUTemperature returns degrees Celsius rounded to two decimals.
	ReadCPUTemperature() (float64, error)
}

// Backlight exposes the panel backlight registers.
type Backlight interface {
	// ReadPower reports whether the backlight is powered. The underlying
	// register reads 0 when the panel is on.
	ReadPower() (bool, error)

	// ReadMaxBrightness returns the hardware brightness ceiling.
	ReadMaxBrightness() (int, error)

	ReadBrightness() (int, error)
	WriteBrightness(value int) error
}

// LED exposes a multicolor status LED.
type LED interface {
	SetActive(active bool) error
	SetColor(color RGB) error
	ReadActive() (bool, error)

	// ReadColor returns the color the driver actually stored, which may
	// differ from the last SetColor after driver-side clamping.
	ReadColor() (RGB, error)
}

// MotionSensor delivers edges from a PIR sensor.
type MotionSensor interface {
	// Start begins edge delivery. The handler runs on a goroutine owned
	// by the sensor and must not block.
	Start(handler func(MotionEvent)) error

	// Active reads the current input level.
	Active() (bool, error)

	Close() error
}

// Process is a running subprocess whose whole tree can be killed.
type Process interface {
	IsRunning() bool
	TerminateTree() error
}

// DisplayDriver switches the panel output on and off.
type DisplayDriver interface {
	// RunOn turns the display on and returns once the command has finished.
	RunOn(ctx context.Context) error

	// StartOff launches the off transition and returns without waiting.
	StartOff(ctx context.Context) (Process, error)
}
