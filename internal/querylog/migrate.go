package querylog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/angeloszaimis/ormlog/internal/eventlog"
)

// goose keeps its logger, dialect and base FS in package state.
var gooseMutex sync.Mutex

// Migrator applies goose SQL migrations. Goose's own progress output is
// recorded as migration events, the migrator's framing as schema events.
type Migrator struct {
	db   *DB
	dir  string
	fsys fs.FS
}

// NewMigrator reads migrations from dir. When fsys is nil dir is a path on
// the OS file system, otherwise it is resolved inside fsys.
func NewMigrator(db *DB, dir string, fsys fs.FS) *Migrator {
	return &Migrator{db: db, dir: dir, fsys: fsys}
}

// Up applies all pending migrations and returns the resulting version.
func (m *Migrator) Up(ctx context.Context) (int64, error) {
	gooseMutex.Lock()
	defer gooseMutex.Unlock()

	log := m.db.Logger()
	if err := log.LogSchemaBuild(ctx, "running migrations from "+m.dir); err != nil {
		return 0, err
	}

	adapter := &gooseLogger{ctx: ctx, log: log}
	goose.SetLogger(adapter)
	goose.SetBaseFS(m.fsys)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("setting dialect: %w", err)
	}

	if err := goose.UpContext(ctx, m.db.SQL(), m.dir); err != nil {
		return 0, errors.Join(fmt.Errorf("running migrations: %w", err), adapter.err())
	}

	if err := adapter.err(); err != nil {
		return 0, err
	}

	version, err := goose.GetDBVersionContext(ctx, m.db.SQL())
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}

	if err := log.LogSchemaBuild(ctx, fmt.Sprintf("schema is at version %d", version)); err != nil {
		return 0, err
	}

	return version, nil
}

// gooseLogger implements goose.Logger. Printf cannot return an error, so
// the first append failure is kept and reported by Up.
type gooseLogger struct {
	ctx context.Context
	log eventlog.Logger

	mutex    sync.Mutex
	firstErr error
}

var _ goose.Logger = (*gooseLogger)(nil)

func (g *gooseLogger) Printf(format string, v ...interface{}) {
	g.record(format, v...)
}

// Fatalf records the message and exits, as goose's default logger does.
func (g *gooseLogger) Fatalf(format string, v ...interface{}) {
	g.record(format, v...)
	fmt.Fprintf(os.Stderr, format, v...)
	os.Exit(1)
}

func (g *gooseLogger) record(format string, v ...interface{}) {
	msg := strings.TrimRight(fmt.Sprintf(format, v...), "\n")
	if err := g.log.LogMigration(g.ctx, msg); err != nil {
		g.mutex.Lock()
		defer g.mutex.Unlock()
		if g.firstErr == nil {
			g.firstErr = err
		}
	}
}

func (g *gooseLogger) err() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.firstErr
}
