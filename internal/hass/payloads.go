package hass

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-panel/internal/device"
)

// BirthOnline is the payload Home Assistant publishes on
// homeassistant/status after it (re)starts.
const BirthOnline = "online"

type sensorPayload struct {
	TemperatureCPU float64 `json:"temperature_cpu"`
	Motion         string  `json:"motion,omitempty"`
}

// EncodeSensors renders a sample as the D/sensors payload. The motion field
// is only present when a motion sensor is configured.
func EncodeSensors(sample device.SensorSample) ([]byte, error) {
	p := sensorPayload{TemperatureCPU: sample.CPUTemperatureC}
	if sample.HasMotion {
		p.Motion = device.FormatPower(sample.MotionActive)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding sensor payload: %w", err)
	}
	return data, nil
}

// IsBirth reports whether payload announces a Home Assistant restart.
func IsBirth(payload []byte) bool {
	return string(payload) == BirthOnline
}
