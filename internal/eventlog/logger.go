package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"
)

// DefaultFileName is used when FileOptions.LogPath is empty.
const DefaultFileName = "ormlogs.log"

type Level string

const (
	LevelLog  Level = "log"
	LevelInfo Level = "info"
	LevelWarn Level = "warn"
)

// Logger receives database access events. The context is accepted for the
// caller's convenience and does not influence what gets written.
type Logger interface {
	LogQuery(ctx context.Context, query string, params []any) error
	LogQueryError(ctx context.Context, errText string, query string, params []any) error
	LogQuerySlow(ctx context.Context, elapsed time.Duration, query string, params []any) error
	LogSchemaBuild(ctx context.Context, message string) error
	LogMigration(ctx context.Context, message string) error
	Log(ctx context.Context, level Level, message any) error
}

// Observer is notified about every filtering and write decision.
type Observer interface {
	Emitted(kind EventKind)
	Suppressed(kind EventKind)
	SerializeFallback(kind EventKind)
	AppendFailed(kind EventKind)
}

type FileOptions struct {
	// LogPath overrides DefaultFileName. Relative paths are joined to the
	// application root, absolute paths are used as they are.
	LogPath string
}

// FileLogger appends formatted event lines to a single log file.
type FileLogger struct {
	opts     Options
	fileOpts atomic.Pointer[FileOptions]
	appender Appender
	root     RootResolver
	now      func() time.Time
	diag     *slog.Logger
	observer Observer
}

var _ Logger = (*FileLogger)(nil)

type Option func(*FileLogger)

func WithAppender(a Appender) Option {
	return func(l *FileLogger) { l.appender = a }
}

func WithRoot(r RootResolver) Option {
	return func(l *FileLogger) { l.root = r }
}

func WithClock(now func() time.Time) Option {
	return func(l *FileLogger) { l.now = now }
}

// WithDiagnostics sets the logger that receives serialization fallbacks and
// append failures. It never writes to the event file.
func WithDiagnostics(log *slog.Logger) Option {
	return func(l *FileLogger) { l.diag = log }
}

func WithObserver(o Observer) Option {
	return func(l *FileLogger) { l.observer = o }
}

func New(opts Options, fileOpts FileOptions, options ...Option) *FileLogger {
	l := &FileLogger{
		opts:     opts,
		appender: NewOSAppender(),
		root:     AppRoot(),
		now:      time.Now,
		diag:     slog.New(slog.DiscardHandler),
		observer: nopObserver{},
	}
	for _, opt := range options {
		opt(l)
	}
	l.fileOpts.Store(&fileOpts)

	return l
}

func (l *FileLogger) Options() Options {
	return l.opts
}

// SetFileOptions replaces the destination. The next write uses the new path;
// lines already written stay where they are.
func (l *FileLogger) SetFileOptions(fileOpts FileOptions) {
	l.fileOpts.Store(&fileOpts)
}

// Path resolves the destination file for the next write.
func (l *FileLogger) Path() (string, error) {
	logPath := DefaultFileName
	if override := l.fileOpts.Load().LogPath; override != "" {
		logPath = filepath.Clean(override)
		if filepath.IsAbs(logPath) {
			return logPath, nil
		}
	}

	root, err := l.root.Root()
	if err != nil {
		return "", err
	}

	return filepath.Join(root, logPath), nil
}

func (l *FileLogger) LogQuery(_ context.Context, query string, params []any) error {
	if !l.allow(KindQuery) {
		return nil
	}
	sql := l.withParams(KindQuery, query, params)
	return l.write(KindQuery, "[QUERY]: "+sql)
}

// LogQueryError writes the failed query and the error as two lines of a
// single append.
func (l *FileLogger) LogQueryError(_ context.Context, errText string, query string, params []any) error {
	if !l.allow(KindQueryError) {
		return nil
	}
	sql := l.withParams(KindQueryError, query, params)
	return l.write(KindQueryError,
		"[FAILED QUERY]: "+sql,
		"[QUERY ERROR]: "+errText,
	)
}

// LogQuerySlow is written regardless of Options.
func (l *FileLogger) LogQuerySlow(_ context.Context, elapsed time.Duration, query string, params []any) error {
	sql := l.withParams(KindSlowQuery, query, params)
	l.observer.Emitted(KindSlowQuery)
	return l.write(KindSlowQuery, fmt.Sprintf("[SLOW QUERY: %d ms]: %s", elapsed.Milliseconds(), sql))
}

func (l *FileLogger) LogSchemaBuild(_ context.Context, message string) error {
	if !l.allow(KindSchemaBuild) {
		return nil
	}
	return l.write(KindSchemaBuild, message)
}

// LogMigration is written regardless of Options.
func (l *FileLogger) LogMigration(_ context.Context, message string) error {
	l.observer.Emitted(KindMigration)
	return l.write(KindMigration, message)
}

// Log writes a leveled message. Unknown levels are ignored.
func (l *FileLogger) Log(_ context.Context, level Level, message any) error {
	var (
		kind EventKind
		tag  string
	)
	switch level {
	case LevelLog:
		kind, tag = KindLog, "[LOG]: "
	case LevelInfo:
		kind, tag = KindInfo, "[INFO]: "
	case LevelWarn:
		kind, tag = KindWarn, "[WARN]: "
	default:
		return nil
	}

	if !l.allow(kind) {
		return nil
	}
	return l.write(kind, tag+fmt.Sprint(message))
}

func (l *FileLogger) allow(kind EventKind) bool {
	if !Allowed(kind, l.opts) {
		l.observer.Suppressed(kind)
		return false
	}
	l.observer.Emitted(kind)
	return true
}

func (l *FileLogger) withParams(kind EventKind, query string, params []any) string {
	sql, err := withParams(query, params)
	if err != nil {
		l.observer.SerializeFallback(kind)
		l.diag.Debug("query parameters logged without JSON encoding",
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()))
	}
	return sql
}

func (l *FileLogger) write(kind EventKind, lines ...string) error {
	path, err := l.Path()
	if err != nil {
		return l.appendFailed(kind, &AppendError{Path: l.fileOpts.Load().LogPath, Err: err})
	}

	if err := l.appender.Append(path, frame(l.now(), lines)); err != nil {
		return l.appendFailed(kind, &AppendError{Path: path, Err: err})
	}

	return nil
}

func (l *FileLogger) appendFailed(kind EventKind, err *AppendError) error {
	l.observer.AppendFailed(kind)
	l.diag.Warn("failed to append event to log file",
		slog.String("kind", kind.String()),
		slog.String("path", err.Path),
		slog.String("error", err.Err.Error()))
	return err
}

type nopObserver struct{}

func (nopObserver) Emitted(EventKind)           {}
func (nopObserver) Suppressed(EventKind)        {}
func (nopObserver) SerializeFallback(EventKind) {}
func (nopObserver) AppendFailed(EventKind)      {}
