package device

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-panel/internal/hardware"
)

// Wire payloads for power topics.
const (
	PayloadOn  = "ON"
	PayloadOff = "OFF"
)

// maxPayloadLength bounds command payloads before any parsing.
const maxPayloadLength = 32

// ParsePower parses an exact "ON" or "OFF" payload.
func ParsePower(payload []byte) (bool, error) {
	switch string(payload) {
	case PayloadOn:
		return true, nil
	case PayloadOff:
		return false, nil
	default:
		return false, newValidationError("power", truncate(payload), `must be "ON" or "OFF"`)
	}
}

// FormatPower renders a power state as "ON" or "OFF".
func FormatPower(on bool) string {
	if on {
		return PayloadOn
	}
	return PayloadOff
}

// ParseBrightness parses a decimal brightness in [0, maxBrightness].
// Surrounding whitespace is ignored.
func ParseBrightness(payload []byte, maxBrightness int) (int, error) {
	raw := strings.TrimSpace(string(payload))
	if len(raw) > maxPayloadLength {
		return 0, newValidationError("brightness", truncate(payload), "payload too long")
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, newValidationError("brightness", raw, "not an integer")
	}
	if err := ValidateBrightness(v, maxBrightness); err != nil {
		return 0, err
	}
	return v, nil
}

// ValidateBrightness checks 0 <= v <= maxBrightness.
func ValidateBrightness(v, maxBrightness int) error {
	if v < 0 || v > maxBrightness {
		return newValidationError("brightness", strconv.Itoa(v),
			"must be between 0 and "+strconv.Itoa(maxBrightness))
	}
	return nil
}

// FormatBrightness renders brightness as a decimal string.
func FormatBrightness(v int) string {
	return strconv.Itoa(v)
}

// ParseColor parses an "R,G,B" payload with each channel in [0, 255].
// Whitespace around each channel is ignored.
func ParseColor(payload []byte) (hardware.RGB, error) {
	raw := string(payload)
	if len(raw) > maxPayloadLength {
		return hardware.RGB{}, newValidationError("color", truncate(payload), "payload too long")
	}

	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return hardware.RGB{}, newValidationError("color", raw, `must be "R,G,B"`)
	}

	var channels [3]uint8
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return hardware.RGB{}, newValidationError("color", raw, "channel is not an integer")
		}
		if v < 0 || v > 255 {
			return hardware.RGB{}, newValidationError("color", raw, "channel must be between 0 and 255")
		}
		channels[i] = uint8(v) //nolint:gosec // Range checked above
	}

	return hardware.RGB{R: channels[0], G: channels[1], B: channels[2]}, nil
}

// GenerateCommandID returns a fresh identifier used to correlate one
// remote command across log lines and history rows.
func GenerateCommandID() string {
	return uuid.New().String()
}

func truncate(payload []byte) string {
	if len(payload) > maxPayloadLength {
		return string(payload[:maxPayloadLength]) + "..."
	}
	return string(payload)
}
