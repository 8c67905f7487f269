package hardware

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Backlight and LED class attribute names.
const (
	attrBLPower          = "bl_power"
	attrMaxBrightness    = "max_brightness"
	attrActualBrightness = "actual_brightness"
	attrBrightness       = "brightness"
	attrMultiIntensity   = "multi_intensity"
)

// maxChannel is the top of the 8-bit color range exposed to callers.
const maxChannel = 255

// readInts reads whitespace-separated integers from a sysfs attribute.
func readInts(path string) ([]int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}

	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s: empty", ErrMalformed, path)
	}

	values := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %q", ErrMalformed, path, f)
		}
		values[i] = v
	}
	return values, nil
}

func readInt(path string) (int, error) {
	values, err := readInts(path)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// writeAttr writes a value to an existing sysfs attribute without creating it.
func writeAttr(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0) //nolint:gosec // Path comes from operator config
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	if _, err := f.WriteString(value); err != nil {
		f.Close()
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	return nil
}

// =============================================================================
// Thermal zone
// =============================================================================

// SysfsThermometer reads a thermal zone temperature in millidegrees Celsius.
type SysfsThermometer struct {
	Path string
}

// ReadCPUTemperature implements Thermometer.
func (t SysfsThermometer) ReadCPUTemperature() (float64, error) {
	milli, err := readInt(t.Path)
	if err != nil {
		return 0, err
	}
	return math.Round(float64(milli)/10) / 100, nil
}

// =============================================================================
// Backlight class
// =============================================================================

// SysfsBacklight drives a /sys/class/backlight device.
type SysfsBacklight struct {
	Dir string
}

// ReadPower implements Backlight. bl_power reads 0 when the panel is on.
func (b SysfsBacklight) ReadPower() (bool, error) {
	v, err := readInt(filepath.Join(b.Dir, attrBLPower))
	if err != nil {
		return false, err
	}
	return v == 0, nil
}

// ReadMaxBrightness implements Backlight.
func (b SysfsBacklight) ReadMaxBrightness() (int, error) {
	return readInt(filepath.Join(b.Dir, attrMaxBrightness))
}

// ReadBrightness implements Backlight using actual_brightness, which
// reflects the value the driver applied.
func (b SysfsBacklight) ReadBrightness() (int, error) {
	return readInt(filepath.Join(b.Dir, attrActualBrightness))
}

// WriteBrightness implements Backlight.
func (b SysfsBacklight) WriteBrightness(value int) error {
	return writeAttr(filepath.Join(b.Dir, attrBrightness), strconv.Itoa(value))
}

// =============================================================================
// Multicolor LED class
// =============================================================================

// SysfsLED drives a /sys/class/leds multicolor LED with red, green and blue
// channels in that index order.
//
// The LED is active while brightness is non-zero. Color is held in
// multi_intensity independently of brightness, so a color written while the
// LED is off takes effect on the next activation.
type SysfsLED struct {
	Dir string
}

// SetActive implements LED.
func (l SysfsLED) SetActive(active bool) error {
	value := 0
	if active {
		maxBrightness, err := readInt(filepath.Join(l.Dir, attrMaxBrightness))
		if err != nil {
			return err
		}
		value = maxBrightness
	}
	return writeAttr(filepath.Join(l.Dir, attrBrightness), strconv.Itoa(value))
}

// ReadActive implements LED.
func (l SysfsLED) ReadActive() (bool, error) {
	v, err := readInt(filepath.Join(l.Dir, attrBrightness))
	if err != nil {
		return false, err
	}
	return v > 0, nil
}

// SetColor implements LED, scaling 8-bit channels to the driver range.
func (l SysfsLED) SetColor(color RGB) error {
	maxBrightness, err := readInt(filepath.Join(l.Dir, attrMaxBrightness))
	if err != nil {
		return err
	}
	value := fmt.Sprintf("%d %d %d",
		scaleToDriver(color.R, maxBrightness),
		scaleToDriver(color.G, maxBrightness),
		scaleToDriver(color.B, maxBrightness),
	)
	return writeAttr(filepath.Join(l.Dir, attrMultiIntensity), value)
}

// ReadColor implements LED, scaling the stored intensities back to 8 bits.
func (l SysfsLED) ReadColor() (RGB, error) {
	maxBrightness, err := readInt(filepath.Join(l.Dir, attrMaxBrightness))
	if err != nil {
		return RGB{}, err
	}
	path := filepath.Join(l.Dir, attrMultiIntensity)
	values, err := readInts(path)
	if err != nil {
		return RGB{}, err
	}
	if len(values) < 3 {
		return RGB{}, fmt.Errorf("%w: %s: want 3 channels, got %d", ErrMalformed, path, len(values))
	}
	return RGB{
		R: scaleFromDriver(values[0], maxBrightness),
		G: scaleFromDriver(values[1], maxBrightness),
		B: scaleFromDriver(values[2], maxBrightness),
	}, nil
}

// scaleToDriver maps [0,255] onto [0,maxBrightness] with rounding.
func scaleToDriver(v uint8, maxBrightness int) int {
	if maxBrightness <= 0 {
		return 0
	}
	return (int(v)*maxBrightness + maxChannel/2) / maxChannel
}

// scaleFromDriver maps [0,maxBrightness] back onto [0,255], clamping
// out-of-range register values.
func scaleFromDriver(v, maxBrightness int) uint8 {
	if maxBrightness <= 0 || v <= 0 {
		return 0
	}
	scaled := (v*maxChannel + maxBrightness/2) / maxBrightness
	if scaled > maxChannel {
		scaled = maxChannel
	}
	return uint8(scaled) //nolint:gosec // Clamped above
}
