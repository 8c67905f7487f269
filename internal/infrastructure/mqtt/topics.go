package mqtt

import "fmt"

// Home Assistant topic roots.
const (
	// DiscoveryPrefix is the default Home Assistant discovery prefix.
	DiscoveryPrefix = "homeassistant"

	// TopicHAStatus carries Home Assistant's birth ("online") and last
	// will ("offline") messages.
	TopicHAStatus = DiscoveryPrefix + "/status"
)

// Availability payloads published on Topics.Availability.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Topics builds the MQTT topics for one panel. Every entity topic is
// rooted at the device ID:
//
//	topics := mqtt.Topics{DeviceID: "raspi-eg"}
//	topics.BrightnessSet() // "raspi-eg/display/brightness/set"
type Topics struct {
	DeviceID string
}

// Sensors returns the sensor sample topic.
//
// Example: raspi-eg/sensors
func (t Topics) Sensors() string {
	return fmt.Sprintf("%s/sensors", t.DeviceID)
}

// Display returns the display power state topic.
//
// Example: raspi-eg/display
func (t Topics) Display() string {
	return fmt.Sprintf("%s/display", t.DeviceID)
}

// DisplaySet returns the display power command topic.
func (t Topics) DisplaySet() string {
	return t.Display() + "/set"
}

// Brightness returns the display brightness state topic.
//
// Example: raspi-eg/display/brightness
func (t Topics) Brightness() string {
	return t.Display() + "/brightness"
}

// BrightnessSet returns the display brightness command topic.
func (t Topics) BrightnessSet() string {
	return t.Brightness() + "/set"
}

// LED returns the status LED power state topic.
//
// Example: raspi-eg/led
func (t Topics) LED() string {
	return fmt.Sprintf("%s/led", t.DeviceID)
}

// LEDSet returns the status LED power command topic.
func (t Topics) LEDSet() string {
	return t.LED() + "/set"
}

// LEDColor returns the status LED color state topic.
//
// Example: raspi-eg/led/color
func (t Topics) LEDColor() string {
	return t.LED() + "/color"
}

// LEDColorSet returns the status LED color command topic.
func (t Topics) LEDColorSet() string {
	return t.LEDColor() + "/set"
}

// Availability returns the retained online/offline topic, also used as
// the last will.
//
// Example: raspi-eg/availability
func (t Topics) Availability() string {
	return fmt.Sprintf("%s/availability", t.DeviceID)
}

// DiscoveryConfig returns the retained device discovery topic.
//
// Example: homeassistant/device/raspi-eg/config
func (t Topics) DiscoveryConfig() string {
	return fmt.Sprintf("%s/device/%s/config", DiscoveryPrefix, t.DeviceID)
}

// HAStatus returns Home Assistant's status topic.
func (Topics) HAStatus() string {
	return TopicHAStatus
}

// CommandTopics returns every topic the panel subscribes to for commands.
func (t Topics) CommandTopics() []string {
	return []string{
		t.DisplaySet(),
		t.BrightnessSet(),
		t.LEDSet(),
		t.LEDColorSet(),
	}
}
