package hass

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-panel/internal/device"
	"github.com/nerrad567/gray-logic-panel/internal/infrastructure/mqtt"
)

// Component platforms used by the panel.
const (
	PlatformSensor       = "sensor"
	PlatformBinarySensor = "binary_sensor"
	PlatformLight        = "light"
)

// Component keys inside the "cmps" map.
const (
	ComponentTemperature = "temperature_cpu"
	ComponentMotion      = "motion"
	ComponentDisplay     = "display"
	ComponentLED         = "led"
)

// DeviceInfo identifies the panel in the discovery document.
type DeviceInfo struct {
	ID             string
	Name           string
	UniqueIDPrefix string
	Origin         string
	Manufacturer   string
	Model          string
}

// Features selects the optional components.
type Features struct {
	Motion bool
	LED    bool
}

// Discovery is a device-based discovery document. One retained message on
// homeassistant/device/<id>/config declares every component.
type Discovery struct {
	Device            Device               `json:"dev"`
	Origin            Origin               `json:"o"`
	Components        map[string]Component `json:"cmps"`
	AvailabilityTopic string               `json:"availability_topic,omitempty"`
}

// Device is the "dev" block.
type Device struct {
	IDs          string `json:"ids"`
	Name         string `json:"name"`
	Manufacturer string `json:"mf,omitempty"`
	Model        string `json:"mdl,omitempty"`
}

// Origin is the "o" block naming the software that published the document.
type Origin struct {
	Name string `json:"name"`
}

// Component is one entry of "cmps". Only the fields relevant to the
// component's platform are set.
type Component struct {
	Name     string `json:"name"`
	Platform string `json:"p"`
	UniqueID string `json:"unique_id"`

	DeviceClass       string `json:"device_class,omitempty"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	ValueTemplate     string `json:"value_template,omitempty"`

	StateTopic   string `json:"state_topic"`
	CommandTopic string `json:"command_topic,omitempty"`

	BrightnessStateTopic   string `json:"brightness_state_topic,omitempty"`
	BrightnessCommandTopic string `json:"brightness_command_topic,omitempty"`
	BrightnessScale        int    `json:"brightness_scale,omitempty"`

	RGBStateTopic   string `json:"rgb_state_topic,omitempty"`
	RGBCommandTopic string `json:"rgb_command_topic,omitempty"`

	PayloadOn  string `json:"payload_on,omitempty"`
	PayloadOff string `json:"payload_off,omitempty"`
}

// BuildDiscovery assembles the discovery document for the panel.
//
// The display light always carries brightness_scale = maxBrightness so Home
// Assistant sends raw register values on the brightness command topic.
func BuildDiscovery(info DeviceInfo, topics mqtt.Topics, maxBrightness int, features Features) Discovery {
	uid := func(suffix string) string {
		return fmt.Sprintf("%s-%s", info.UniqueIDPrefix, suffix)
	}

	cmps := map[string]Component{
		ComponentTemperature: {
			Name:              "CPU Temperature",
			Platform:          PlatformSensor,
			UniqueID:          uid("temp-cpu"),
			DeviceClass:       "temperature",
			UnitOfMeasurement: "°C",
			ValueTemplate:     "{{ value_json.temperature_cpu}}",
			StateTopic:        topics.Sensors(),
		},
		ComponentDisplay: {
			Name:                   "Display",
			Platform:               PlatformLight,
			UniqueID:               uid("brightness-display"),
			StateTopic:             topics.Display(),
			CommandTopic:           topics.DisplaySet(),
			BrightnessStateTopic:   topics.Brightness(),
			BrightnessCommandTopic: topics.BrightnessSet(),
			BrightnessScale:        maxBrightness,
			PayloadOn:              device.PayloadOn,
			PayloadOff:             device.PayloadOff,
		},
	}

	if features.Motion {
		cmps[ComponentMotion] = Component{
			Name:          "Motion",
			Platform:      PlatformBinarySensor,
			UniqueID:      uid("motion"),
			DeviceClass:   "motion",
			ValueTemplate: "{{ value_json.motion }}",
			StateTopic:    topics.Sensors(),
			PayloadOn:     device.PayloadOn,
			PayloadOff:    device.PayloadOff,
		}
	}

	if features.LED {
		cmps[ComponentLED] = Component{
			Name:            "Status LED",
			Platform:        PlatformLight,
			UniqueID:        uid("led"),
			StateTopic:      topics.LED(),
			CommandTopic:    topics.LEDSet(),
			RGBStateTopic:   topics.LEDColor(),
			RGBCommandTopic: topics.LEDColorSet(),
			PayloadOn:       device.PayloadOn,
			PayloadOff:      device.PayloadOff,
		}
	}

	return Discovery{
		Device: Device{
			IDs:          info.ID,
			Name:         info.Name,
			Manufacturer: info.Manufacturer,
			Model:        info.Model,
		},
		Origin:            Origin{Name: info.Origin},
		Components:        cmps,
		AvailabilityTopic: topics.Availability(),
	}
}

// Encode renders the document as JSON.
func (d Discovery) Encode() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding discovery document: %w", err)
	}
	return data, nil
}
