// Package device holds the panel's domain model: the observable state of
// the display, status LED and sensors, and the rules for changing it.
//
// The Model is owned by a single goroutine. Commands arrive as Update
// values, are validated as a whole, and only then written to hardware in a
// fixed order (display power, brightness, LED power, LED color). Payload
// parsing for the MQTT wire format lives in validation.go.
//
// Published states can be recorded through a StateHistoryRepository; the
// SQLite implementation stores each snapshot as JSON.
package device
