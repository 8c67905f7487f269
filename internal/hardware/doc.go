// Package hardware provides accessors for the panel's physical devices.
//
// Each device is described by a narrow interface (Thermometer, Backlight,
// LED, MotionSensor, DisplayDriver) with two families of implementations:
//
//   - sysfs, GPIO character device and external commands, for the real panel
//   - Simulated, an in-memory stand-in for development machines and tests
//
// Every accessor call is synchronous and may fail; callers decide whether a
// failure aborts the current operation.
package hardware
