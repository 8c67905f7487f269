// Package reconcile runs the loop that keeps the panel hardware, the
// in-memory device model and Home Assistant in agreement.
//
// Three inputs feed one goroutine:
//   - a tick timer (default 1s): the display is polled on every tick and
//     published when it diverges from the last published value; sensors
//     are published every SensorIntervalTicks ticks
//   - remote commands from MQTT: validated, applied, then echoed
//   - motion edges: published as a sensor sample immediately, without
//     disturbing the periodic sensor cadence
//
// Announce requests (Home Assistant birth, broker reconnect) republish the
// discovery document and every entity, rate limited by
// AnnounceMinInterval.
package reconcile
