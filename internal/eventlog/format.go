package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// TimestampLayout is ISO-8601 in UTC with millisecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000Z"

	lineSeparator = "\r\n"
	paramsMarker  = " -- PARAMETERS: "
)

// withParams appends the serialized parameter list to query. A non-nil error
// means the fallback rendering was used.
func withParams(query string, params []any) (string, error) {
	if len(params) == 0 {
		return query, nil
	}
	serialized, err := stringifyParams(params)
	return query + paramsMarker + serialized, err
}

func stringifyParams(params []any) (string, error) {
	encoded, err := encodeJSON(params)
	if err != nil {
		return fallbackParams(params), &SerializeError{Err: err}
	}
	return encoded, nil
}

// encodeJSON marshals v without HTML escaping so that operators such as
// "<" and "&" stay readable in the log.
func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// fallbackParams renders each parameter on its own so a single cyclic or
// unsupported value does not hide the rest of the list.
func fallbackParams(params []any) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if encoded, err := encodeJSON(p); err == nil {
			parts = append(parts, encoded)
			continue
		}
		parts = append(parts, fmt.Sprintf("<unserializable %T>", p))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// frame prefixes every line with the timestamp bracket and joins them into
// the payload of a single append.
func frame(now time.Time, lines []string) []byte {
	stamp := "[" + formatTimestamp(now) + "]"

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString(lineSeparator)
		}
		b.WriteString(stamp)
		b.WriteString(line)
	}
	b.WriteString(lineSeparator)

	return []byte(b.String())
}
