package eventlog

import "fmt"

// SerializeError reports query parameters that could not be encoded as JSON.
// It never reaches callers of the Logger methods: the line is still written
// using the fallback rendering.
type SerializeError struct {
	Err error
}

func (e *SerializeError) Error() string {
	return fmt.Sprintf("serializing query parameters: %v", e.Err)
}

func (e *SerializeError) Unwrap() error {
	return e.Err
}

// AppendError reports a failed write to the log destination. It is returned
// to the caller so a broken log stream is never silent.
type AppendError struct {
	Path string
	Err  error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("appending to log file %s: %v", e.Path, e.Err)
}

func (e *AppendError) Unwrap() error {
	return e.Err
}
