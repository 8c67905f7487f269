// Package influxdb records panel telemetry in InfluxDB v2.
//
// Two measurements are written, both tagged with device_id:
//   - panel_sensors: temperature_cpu and, when fitted, motion
//   - panel_entity_state: published entity state, tagged by entity
//
// Writes are batched and non-blocking (batch_size, flush_interval in
// config.yaml); asynchronous failures are delivered to SetOnError.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSensorSample("raspi-eg", 47.2, nil, time.Now())
package influxdb
