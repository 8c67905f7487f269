package device

import (
	"context"
	"time"
)

// State history source values.
const (
	StateHistorySourceStartup = "startup"
	StateHistorySourcePoll    = "poll"
	StateHistorySourceCommand = "command"
	StateHistorySourceMotion  = "motion"

	// StateHistorySourceAnnounce marks republishes after a Home Assistant
	// restart or broker reconnect.
	StateHistorySourceAnnounce = "announce"
)

// StateHistoryEntry represents one published entity state.
//
// Each entry stores a full snapshot of the panel state at the time the
// entity was published. This provides a local audit trail even when the
// time-series database is unavailable.
type StateHistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// Entity is the entity whose state was published.
	Entity Entity `json:"entity"`

	// State is the snapshot at publish time.
	State State `json:"state"`

	// Source identifies what triggered the publish (startup, poll, command, motion, announce).
	Source string `json:"source"`

	// CommandID correlates command-triggered entries with log lines.
	CommandID string `json:"command_id,omitempty"`

	// CreatedAt is the timestamp of the record (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// StateHistoryRepository stores and retrieves published state history.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordStateChange records a published entity state.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - entry: Entity, State, Source and optional CommandID; ID and
	//     CreatedAt are assigned by the repository
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordStateChange(ctx context.Context, entry StateHistoryEntry) error

	// GetHistory returns recent history for an entity.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - entity: Entity to query
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	//
	// Returns:
	//   - []StateHistoryEntry: Ordered newest-first history entries (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	GetHistory(ctx context.Context, entity Entity, limit int) ([]StateHistoryEntry, error)
}
