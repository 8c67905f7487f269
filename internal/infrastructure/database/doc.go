// Package database provides the SQLite store used for the panel's state
// history.
//
// It manages:
//   - The connection, with WAL mode so API reads don't block the writer
//   - Forward-only schema migrations read from an fs.FS
//   - File permissions (0600) on the database file
//
// All queries elsewhere in the module use parameterised statements.
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Path:        "./data/graylogic-panel.db",
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
