package eventlog_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"github.com/angeloszaimis/ormlog/internal/eventlog"
	"github.com/angeloszaimis/ormlog/internal/metrics"
)

type node struct {
	Name string
	Next *node
}

type recordingAppender struct {
	mutex sync.Mutex
	calls []string
}

func (r *recordingAppender) Append(path string, data []byte) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.calls = append(r.calls, string(data))
	return nil
}

var _ = Describe("FileLogger", func() {
	const stamp = "[2024-05-01T10:00:00.123Z]"

	var (
		ctx     context.Context
		fs      afero.Fs
		fixedAt time.Time
		newLog  func(opts eventlog.Options, extra ...eventlog.Option) *eventlog.FileLogger
		content func(path string) string
	)

	BeforeEach(func() {
		ctx = context.Background()
		fs = afero.NewMemMapFs()
		fixedAt = time.Date(2024, 5, 1, 12, 0, 0, 123_000_000, time.FixedZone("CEST", 2*60*60))

		newLog = func(opts eventlog.Options, extra ...eventlog.Option) *eventlog.FileLogger {
			options := append([]eventlog.Option{
				eventlog.WithAppender(eventlog.NewFSAppender(fs)),
				eventlog.WithRoot(eventlog.StaticRoot("/app")),
				eventlog.WithClock(func() time.Time { return fixedAt }),
			}, extra...)
			return eventlog.New(opts, eventlog.FileOptions{}, options...)
		}

		content = func(path string) string {
			data, err := afero.ReadFile(fs, path)
			Expect(err).NotTo(HaveOccurred())
			return string(data)
		}
	})

	defaultPath := "/app/" + eventlog.DefaultFileName

	Describe("LogQuery", func() {
		It("should append parameters as JSON", func() {
			log := newLog(eventlog.AllEvents())

			Expect(log.LogQuery(ctx, "SELECT 1", []any{42, "x"})).To(Succeed())
			Expect(content(defaultPath)).To(Equal(stamp + `[QUERY]: SELECT 1 -- PARAMETERS: [42,"x"]` + "\r\n"))
		})

		It("should omit the parameter suffix for empty lists", func() {
			log := newLog(eventlog.Enabled(true))

			Expect(log.LogQuery(ctx, "SELECT 1", nil)).To(Succeed())
			Expect(log.LogQuery(ctx, "SELECT 2", []any{})).To(Succeed())
			Expect(content(defaultPath)).To(Equal(
				stamp + "[QUERY]: SELECT 1\r\n" +
					stamp + "[QUERY]: SELECT 2\r\n"))
		})

		It("should not escape HTML characters in parameters", func() {
			log := newLog(eventlog.Categories(eventlog.CategoryQuery))

			Expect(log.LogQuery(ctx, "SELECT ?", []any{"a<b&c"})).To(Succeed())
			Expect(content(defaultPath)).To(ContainSubstring(`-- PARAMETERS: ["a<b&c"]`))
		})

		It("should fall back for self-referencing parameters", func() {
			cyclic := &node{Name: "a"}
			cyclic.Next = cyclic
			log := newLog(eventlog.AllEvents())

			Expect(log.LogQuery(ctx, "INSERT INTO nodes VALUES (?, ?)", []any{42, cyclic})).To(Succeed())
			Expect(content(defaultPath)).To(Equal(
				stamp + "[QUERY]: INSERT INTO nodes VALUES (?, ?) -- PARAMETERS: [42 <unserializable *eventlog_test.node>]\r\n"))
		})

		It("should fall back for unsupported parameter types", func() {
			log := newLog(eventlog.AllEvents())

			Expect(log.LogQuery(ctx, "SELECT ?", []any{"x", make(chan int)})).To(Succeed())
			Expect(content(defaultPath)).To(ContainSubstring(`-- PARAMETERS: ["x" <unserializable chan int>]`))
		})

		It("should write nothing when queries are not enabled", func() {
			log := newLog(eventlog.Categories(eventlog.CategoryError))

			Expect(log.LogQuery(ctx, "SELECT 1", nil)).To(Succeed())
			Expect(afero.Exists(fs, defaultPath)).To(BeFalse())
		})
	})

	Describe("LogQueryError", func() {
		It("should write both lines in one append", func() {
			rec := &recordingAppender{}
			log := newLog(eventlog.Categories(eventlog.CategoryError), eventlog.WithAppender(rec))

			Expect(log.LogQueryError(ctx, "no such table: users", "SELECT * FROM users WHERE id = ?", []any{7})).To(Succeed())

			Expect(rec.calls).To(HaveLen(1))
			Expect(rec.calls[0]).To(Equal(
				stamp + "[FAILED QUERY]: SELECT * FROM users WHERE id = ? -- PARAMETERS: [7]\r\n" +
					stamp + "[QUERY ERROR]: no such table: users\r\n"))
		})

		It("should be enabled by the boolean shortcut", func() {
			log := newLog(eventlog.Enabled(true))

			Expect(log.LogQueryError(ctx, "boom", "SELECT 1", nil)).To(Succeed())
			Expect(content(defaultPath)).To(ContainSubstring("[QUERY ERROR]: boom"))
		})

		It("should write nothing when errors are not enabled", func() {
			log := newLog(eventlog.Categories(eventlog.CategoryQuery))

			Expect(log.LogQueryError(ctx, "boom", "SELECT 1", nil)).To(Succeed())
			Expect(afero.Exists(fs, defaultPath)).To(BeFalse())
		})
	})

	Describe("LogQuerySlow", func() {
		It("should be written even when everything is disabled", func() {
			log := newLog(eventlog.Enabled(false))

			Expect(log.LogQuerySlow(ctx, 1500*time.Millisecond, "SELECT pg_sleep(?)", []any{1.5})).To(Succeed())
			Expect(content(defaultPath)).To(Equal(stamp + "[SLOW QUERY: 1500 ms]: SELECT pg_sleep(?) -- PARAMETERS: [1.5]\r\n"))
		})

		It("should be written for an empty category set", func() {
			log := newLog(eventlog.Categories())

			Expect(log.LogQuerySlow(ctx, 20*time.Millisecond, "SELECT 1", nil)).To(Succeed())
			Expect(content(defaultPath)).To(Equal(stamp + "[SLOW QUERY: 20 ms]: SELECT 1\r\n"))
		})
	})

	Describe("LogSchemaBuild", func() {
		It("should write the plain message", func() {
			log := newLog(eventlog.Categories(eventlog.CategorySchema))

			Expect(log.LogSchemaBuild(ctx, "creating a new table: users")).To(Succeed())
			Expect(content(defaultPath)).To(Equal(stamp + "creating a new table: users\r\n"))
		})

		It("should not be enabled by the boolean shortcut", func() {
			log := newLog(eventlog.Enabled(true))

			Expect(log.LogSchemaBuild(ctx, "creating a new table: users")).To(Succeed())
			Expect(afero.Exists(fs, defaultPath)).To(BeFalse())
		})
	})

	Describe("LogMigration", func() {
		It("should always write the plain message", func() {
			log := newLog(eventlog.Categories())

			Expect(log.LogMigration(ctx, "0 migrations are already loaded")).To(Succeed())
			Expect(content(defaultPath)).To(Equal(stamp + "0 migrations are already loaded\r\n"))
		})
	})

	Describe("Log", func() {
		DescribeTable("leveled messages",
			func(level eventlog.Level, category eventlog.Category, tag string) {
				log := newLog(eventlog.Categories(category))

				Expect(log.Log(ctx, level, "hello")).To(Succeed())
				Expect(content(defaultPath)).To(Equal(stamp + tag + ": hello\r\n"))
			},
			Entry("log", eventlog.LevelLog, eventlog.CategoryLog, "[LOG]"),
			Entry("info", eventlog.LevelInfo, eventlog.CategoryInfo, "[INFO]"),
			Entry("warn", eventlog.LevelWarn, eventlog.CategoryWarn, "[WARN]"),
		)

		It("should format non-string messages", func() {
			log := newLog(eventlog.AllEvents())

			Expect(log.Log(ctx, eventlog.LevelInfo, 42)).To(Succeed())
			Expect(content(defaultPath)).To(Equal(stamp + "[INFO]: 42\r\n"))
		})

		It("should not be enabled by the boolean shortcut", func() {
			log := newLog(eventlog.Enabled(true))

			Expect(log.Log(ctx, eventlog.LevelWarn, "oops")).To(Succeed())
			Expect(afero.Exists(fs, defaultPath)).To(BeFalse())
		})

		It("should write zero bytes for a disabled level", func() {
			rec := &recordingAppender{}
			log := newLog(eventlog.Categories(), eventlog.WithAppender(rec))

			Expect(log.Log(ctx, eventlog.LevelWarn, "oops")).To(Succeed())
			Expect(rec.calls).To(BeEmpty())
		})

		It("should ignore unknown levels", func() {
			rec := &recordingAppender{}
			log := newLog(eventlog.AllEvents(), eventlog.WithAppender(rec))

			Expect(log.Log(ctx, eventlog.Level("debug"), "ignored")).To(Succeed())
			Expect(rec.calls).To(BeEmpty())
		})
	})

	Describe("destination path", func() {
		It("should resolve relative overrides against the root", func() {
			log := newLog(eventlog.AllEvents())
			log.SetFileOptions(eventlog.FileOptions{LogPath: "logs/../logs/orm.log"})

			Expect(log.Path()).To(Equal("/app/logs/orm.log"))
		})

		It("should use absolute overrides as they are", func() {
			log := newLog(eventlog.AllEvents())
			log.SetFileOptions(eventlog.FileOptions{LogPath: "/var/log/orm.log"})

			Expect(log.Path()).To(Equal("/var/log/orm.log"))
		})

		It("should pick up a new path on the next call", func() {
			log := newLog(eventlog.AllEvents())

			Expect(log.LogMigration(ctx, "first")).To(Succeed())
			log.SetFileOptions(eventlog.FileOptions{LogPath: "other.log"})
			Expect(log.LogMigration(ctx, "second")).To(Succeed())

			Expect(content(defaultPath)).To(Equal(stamp + "first\r\n"))
			Expect(content("/app/other.log")).To(Equal(stamp + "second\r\n"))
		})

		It("should resolve the root on every write", func() {
			roots := []string{"/one", "/two"}
			calls := 0
			log := newLog(eventlog.AllEvents(), eventlog.WithRoot(eventlog.RootFunc(func() (string, error) {
				root := roots[calls%len(roots)]
				calls++
				return root, nil
			})))

			Expect(log.LogMigration(ctx, "first")).To(Succeed())
			Expect(log.LogMigration(ctx, "second")).To(Succeed())

			Expect(content("/one/" + eventlog.DefaultFileName)).To(ContainSubstring("first"))
			Expect(content("/two/" + eventlog.DefaultFileName)).To(ContainSubstring("second"))
		})

		It("should honour APP_ROOT_PATH", func() {
			GinkgoT().Setenv(eventlog.RootEnvVar, "/srv/app")

			Expect(eventlog.AppRoot().Root()).To(Equal("/srv/app"))
		})

		It("should fall back to the working directory", func() {
			GinkgoT().Setenv(eventlog.RootEnvVar, "")
			wd, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())

			Expect(eventlog.AppRoot().Root()).To(Equal(wd))
		})
	})

	Describe("error handling", func() {
		It("should return file system failures to the caller", func() {
			log := newLog(eventlog.AllEvents(),
				eventlog.WithAppender(eventlog.NewFSAppender(afero.NewReadOnlyFs(fs))))

			err := log.LogMigration(ctx, "migrating")
			Expect(err).To(HaveOccurred())

			var appendErr *eventlog.AppendError
			Expect(errors.As(err, &appendErr)).To(BeTrue())
			Expect(appendErr.Path).To(Equal(defaultPath))
			Expect(errors.Is(err, syscall.EPERM)).To(BeTrue())
		})

		It("should return root resolution failures as append errors", func() {
			log := newLog(eventlog.AllEvents(), eventlog.WithRoot(eventlog.RootFunc(func() (string, error) {
				return "", fmt.Errorf("no root")
			})))

			var appendErr *eventlog.AppendError
			Expect(errors.As(log.LogMigration(ctx, "migrating"), &appendErr)).To(BeTrue())
			Expect(appendErr.Err).To(MatchError("no root"))
		})

		It("should not surface serialization failures", func() {
			var diag bytes.Buffer
			m := metrics.NewMetrics()
			log := newLog(eventlog.AllEvents(),
				eventlog.WithObserver(m),
				eventlog.WithDiagnostics(slog.New(slog.NewTextHandler(&diag, &slog.HandlerOptions{Level: slog.LevelDebug}))))

			Expect(log.LogQuerySlow(ctx, time.Second, "SELECT ?", []any{func() {}})).To(Succeed())

			Expect(diag.String()).To(ContainSubstring("query parameters logged without JSON encoding"))
			Expect(m.Snapshot().Kinds["slow_query"].SerializeFallbacks).To(Equal(int64(1)))
			Expect(content(defaultPath)).To(ContainSubstring("<unserializable func()>"))
		})
	})

	Describe("observer", func() {
		It("should count emitted, suppressed and failed events", func() {
			m := metrics.NewMetrics()
			log := newLog(eventlog.Categories(eventlog.CategoryQuery), eventlog.WithObserver(m))

			Expect(log.LogQuery(ctx, "SELECT 1", nil)).To(Succeed())
			Expect(log.Log(ctx, eventlog.LevelInfo, "dropped")).To(Succeed())

			failing := newLog(eventlog.AllEvents(), eventlog.WithObserver(m),
				eventlog.WithAppender(eventlog.NewFSAppender(afero.NewReadOnlyFs(fs))))
			Expect(failing.LogMigration(ctx, "migrating")).NotTo(Succeed())

			snap := m.Snapshot()
			Expect(snap.Kinds["query"].Emitted).To(Equal(int64(1)))
			Expect(snap.Kinds["info"].Suppressed).To(Equal(int64(1)))
			Expect(snap.Kinds["migration"].AppendFailures).To(Equal(int64(1)))
		})
	})

	Describe("on the real file system", func() {
		var (
			dir string
			log *eventlog.FileLogger
		)

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
			log = eventlog.New(eventlog.AllEvents(), eventlog.FileOptions{},
				eventlog.WithRoot(eventlog.StaticRoot(dir)))
		})

		It("should create the file and stamp lines with the current time", func() {
			before := time.Now().UTC().Truncate(time.Millisecond)
			Expect(log.LogQuery(ctx, "SELECT 1", []any{42, "x"})).To(Succeed())
			after := time.Now().UTC()

			data, err := os.ReadFile(filepath.Join(dir, eventlog.DefaultFileName))
			Expect(err).NotTo(HaveOccurred())

			line := strings.TrimSuffix(string(data), "\r\n")
			match := regexp.MustCompile(`^\[([^\]]+)\](.*)$`).FindStringSubmatch(line)
			Expect(match).To(HaveLen(3))
			Expect(match[2]).To(Equal(`[QUERY]: SELECT 1 -- PARAMETERS: [42,"x"]`))

			ts, err := time.Parse(eventlog.TimestampLayout, match[1])
			Expect(err).NotTo(HaveOccurred())
			Expect(ts).To(BeTemporally(">=", before))
			Expect(ts).To(BeTemporally("<=", after))
		})

		It("should never truncate existing content", func() {
			path := filepath.Join(dir, eventlog.DefaultFileName)
			Expect(os.WriteFile(path, []byte("existing\r\n"), 0o644)).To(Succeed())

			Expect(log.LogMigration(ctx, "appended")).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(HavePrefix("existing\r\n"))
			Expect(string(data)).To(HaveSuffix("appended\r\n"))
		})

		It("should fail when the directory does not exist", func() {
			log.SetFileOptions(eventlog.FileOptions{LogPath: "missing/dir/orm.log"})

			err := log.LogMigration(ctx, "lost")
			Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
		})

		It("should keep query error pairs together under concurrency", func() {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					defer GinkgoRecover()
					Expect(log.LogQueryError(ctx, fmt.Sprintf("error %d", id), fmt.Sprintf("query %d", id), nil)).To(Succeed())
				}(i)
			}
			wg.Wait()

			data, err := os.ReadFile(filepath.Join(dir, eventlog.DefaultFileName))
			Expect(err).NotTo(HaveOccurred())

			lines := strings.Split(strings.TrimSuffix(string(data), "\r\n"), "\r\n")
			Expect(lines).To(HaveLen(100))
			for i := 0; i < len(lines); i += 2 {
				var id int
				_, err := fmt.Sscanf(lines[i][strings.Index(lines[i], "]")+1:], "[FAILED QUERY]: query %d", &id)
				Expect(err).NotTo(HaveOccurred())
				Expect(lines[i+1]).To(HaveSuffix(fmt.Sprintf("[QUERY ERROR]: error %d", id)))
			}
		})
	})
})
