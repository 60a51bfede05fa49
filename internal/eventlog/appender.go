package eventlog

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// Appender adds bytes to the end of a named resource, creating it if absent.
// One call must be one write so that lines of a single event stay together.
type Appender interface {
	Append(path string, data []byte) error
}

// FSAppender appends to files on an afero file system. Each call opens,
// writes and closes the file; nothing is held open between events.
type FSAppender struct {
	fs afero.Fs
}

func NewFSAppender(fs afero.Fs) *FSAppender {
	return &FSAppender{fs: fs}
}

// NewOSAppender appends to the real file system.
func NewOSAppender() *FSAppender {
	return NewFSAppender(afero.NewOsFs())
}

func (a *FSAppender) Append(path string, data []byte) error {
	f, err := a.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}
