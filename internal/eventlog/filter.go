package eventlog

type EventKind int

const (
	KindQuery EventKind = iota
	KindQueryError
	KindSlowQuery
	KindSchemaBuild
	KindMigration
	KindLog
	KindInfo
	KindWarn
)

var eventKindNames = map[EventKind]string{
	KindQuery:       "query",
	KindQueryError:  "query_error",
	KindSlowQuery:   "slow_query",
	KindSchemaBuild: "schema_build",
	KindMigration:   "migration",
	KindLog:         "log",
	KindInfo:        "info",
	KindWarn:        "warn",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Allowed decides whether an event of the given kind is recorded.
//
// Slow queries and migrations are always recorded. Queries and query errors
// are also turned on by Enabled(true); schema builds and leveled messages
// need AllEvents or an explicit category.
func Allowed(kind EventKind, opts Options) bool {
	switch kind {
	case KindSlowQuery, KindMigration:
		return true
	case KindQuery:
		return opts.IsAll() || opts.IsEnabled() || opts.Has(CategoryQuery)
	case KindQueryError:
		return opts.IsAll() || opts.IsEnabled() || opts.Has(CategoryError)
	case KindSchemaBuild:
		return opts.IsAll() || opts.Has(CategorySchema)
	case KindLog:
		return opts.IsAll() || opts.Has(CategoryLog)
	case KindInfo:
		return opts.IsAll() || opts.Has(CategoryInfo)
	case KindWarn:
		return opts.IsAll() || opts.Has(CategoryWarn)
	default:
		return false
	}
}
