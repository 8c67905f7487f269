package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementSensors     = "panel_sensors"
	MeasurementEntityState = "panel_entity_state"
)

// WriteSensorSample records one sensor publish. motion is nil when the
// panel has no motion sensor.
//
// Example:
//
//	client.WriteSensorSample("raspi-eg", 47.23, &active, time.Now())
func (c *Client) WriteSensorSample(deviceID string, temperatureC float64, motion *bool, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(sensorPoint(deviceID, temperatureC, motion, ts))
}

// WriteEntityState records the published state of one entity, tagged by
// entity name. Fields are entity specific, e.g. on/brightness for the
// display or on/r/g/b for the LED.
func (c *Client) WriteEntityState(deviceID, entity string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(entityPoint(deviceID, entity, fields, ts))
}

func sensorPoint(deviceID string, temperatureC float64, motion *bool, ts time.Time) *write.Point {
	fields := map[string]any{
		"temperature_cpu": temperatureC,
	}
	if motion != nil {
		fields["motion"] = *motion
	}
	return write.NewPoint(
		MeasurementSensors,
		map[string]string{"device_id": deviceID},
		fields,
		ts,
	)
}

func entityPoint(deviceID, entity string, fields map[string]any, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementEntityState,
		map[string]string{
			"device_id": deviceID,
			"entity":    entity,
		},
		fields,
		ts,
	)
}
