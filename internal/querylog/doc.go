// Package querylog runs SQL against SQLite and reports every statement to an
// eventlog.Logger.
//
// Each statement is logged as a query before it runs. A failing statement is
// logged as a query error, and one that exceeds the slow query threshold is
// logged as a slow query. Errors from the logger are returned to the caller
// alongside, or instead of, the database result.
//
// Migrator applies goose migrations and routes goose's progress output to
// LogMigration.
//
// Usage:
//
//	db, err := querylog.Open(ctx, "file:app.db", log, time.Second)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	version, err := querylog.NewMigrator(db, "migrations", nil).Up(ctx)
package querylog
