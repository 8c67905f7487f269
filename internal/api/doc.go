// Package api implements the read-only HTTP status API for the panel bridge.
//
// This package provides:
//   - A health endpoint reporting version and broker connectivity
//   - The reconciliation loop's current snapshot of the panel
//   - Recent published state history from the local database
//   - Middleware stack (request ID, logging, recovery)
//
// # Architecture
//
// The API never changes panel state. All control flows through MQTT
// commands handled by the reconciliation loop; the API only reads the
// loop's atomically published snapshot and the history repository.
//
// # Graceful Degradation
//
// History is optional. Without a database the history endpoint answers
// 503 while health and state keep working.
package api
