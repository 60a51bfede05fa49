package eventlog

import (
	"fmt"
	"strings"
)

type Category int

const (
	CategoryQuery Category = iota
	CategoryError
	CategorySchema
	CategoryLog
	CategoryInfo
	CategoryWarn
)

func (c Category) String() string {
	switch c {
	case CategoryQuery:
		return "query"
	case CategoryError:
		return "error"
	case CategorySchema:
		return "schema"
	case CategoryLog:
		return "log"
	case CategoryInfo:
		return "info"
	case CategoryWarn:
		return "warn"
	default:
		return "unknown"
	}
}

// ParseCategory maps a config tag to its Category. Matching is case-insensitive.
func ParseCategory(tag string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "query":
		return CategoryQuery, nil
	case "error":
		return CategoryError, nil
	case "schema":
		return CategorySchema, nil
	case "log":
		return CategoryLog, nil
	case "info":
		return CategoryInfo, nil
	case "warn":
		return CategoryWarn, nil
	default:
		return 0, fmt.Errorf("unknown log category %q", tag)
	}
}

type optionsMode int

const (
	modeEnabled optionsMode = iota
	modeAll
	modeCategories
)

// Options selects which event categories a logger records. The zero value
// is Enabled(false): nothing but the unconditional events is written.
type Options struct {
	mode       optionsMode
	enabled    bool
	categories map[Category]struct{}
}

// AllEvents enables every category, including schema and the leveled messages.
func AllEvents() Options {
	return Options{mode: modeAll}
}

// Enabled is the boolean shortcut. true turns on queries and query errors only.
func Enabled(on bool) Options {
	return Options{mode: modeEnabled, enabled: on}
}

func Categories(cats ...Category) Options {
	set := make(map[Category]struct{}, len(cats))
	for _, c := range cats {
		set[c] = struct{}{}
	}
	return Options{mode: modeCategories, categories: set}
}

func (o Options) IsAll() bool {
	return o.mode == modeAll
}

// IsEnabled reports whether the options are the boolean shortcut set to true.
func (o Options) IsEnabled() bool {
	return o.mode == modeEnabled && o.enabled
}

func (o Options) Has(c Category) bool {
	if o.mode != modeCategories {
		return false
	}
	_, ok := o.categories[c]
	return ok
}

func (o Options) String() string {
	switch o.mode {
	case modeAll:
		return "all"
	case modeCategories:
		tags := make([]string, 0, len(o.categories))
		for c := CategoryQuery; c <= CategoryWarn; c++ {
			if o.Has(c) {
				tags = append(tags, c.String())
			}
		}
		return "[" + strings.Join(tags, ",") + "]"
	default:
		if o.enabled {
			return "true"
		}
		return "false"
	}
}

// ParseOptions converts a loosely typed configuration value into Options.
// Accepted shapes: bool, "all", "true"/"false", a comma separated list of
// tags, []string and []any of tags. nil parses as Enabled(false).
func ParseOptions(v any) (Options, error) {
	switch val := v.(type) {
	case nil:
		return Enabled(false), nil
	case Options:
		return val, nil
	case bool:
		return Enabled(val), nil
	case string:
		return parseOptionsString(val)
	case []string:
		return parseTags(val)
	case []any:
		tags := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return Options{}, fmt.Errorf("log category must be a string, got %T", item)
			}
			tags = append(tags, s)
		}
		return parseTags(tags)
	default:
		return Options{}, fmt.Errorf("unsupported logging options type %T", v)
	}
}

func parseOptionsString(s string) (Options, error) {
	trimmed := strings.TrimSpace(s)
	switch strings.ToLower(trimmed) {
	case "all":
		return AllEvents(), nil
	case "true":
		return Enabled(true), nil
	case "false":
		return Enabled(false), nil
	case "":
		return Categories(), nil
	}
	return parseTags(strings.Split(strings.Trim(trimmed, "[]"), ","))
}

func parseTags(tags []string) (Options, error) {
	cats := make([]Category, 0, len(tags))
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		c, err := ParseCategory(tag)
		if err != nil {
			return Options{}, err
		}
		cats = append(cats, c)
	}
	return Categories(cats...), nil
}
