// Package eventlog records database access events as text lines appended to a
// single log file.
//
// Which events are written depends on Options:
//
//   - AllEvents(): everything
//   - Enabled(true): queries and query errors
//   - Categories(...): only the listed categories
//
// Slow queries and migrations are written under every configuration.
//
// Each line has the shape
//
//	[2024-05-01T10:00:00.000Z][QUERY]: SELECT 1 -- PARAMETERS: [42,"x"]
//
// and lines are separated by CRLF. All lines of one event are handed to the
// Appender in a single call, so a query error pair is never split by another
// event written from the same process. Writers in separate processes may
// still interleave.
//
// Parameters that cannot be encoded as JSON are rendered element by element
// instead of failing the call. File system errors are returned to the caller
// as *AppendError.
//
// Example usage:
//
//	log := eventlog.New(eventlog.Categories(eventlog.CategoryQuery), eventlog.FileOptions{})
//	if err := log.LogQuery(ctx, "SELECT * FROM users WHERE id = ?", []any{42}); err != nil {
//		return err
//	}
package eventlog
