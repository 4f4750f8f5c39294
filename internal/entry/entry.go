// Package entry defines LogEntry, the normalized record that flows from every
// feed adapter through the normalizer into the store.
package entry

import (
	"fmt"
	"strings"
	"time"
)

// Level is a normalized log severity, ordered Trace < Debug < Info < Warn <
// Error < Fatal.
type Level int8

const (
	Trace Level = iota
	Debug
	Info
	Warn
	Error
	Fatal
)

func (l Level) String() string {
	switch l {
	case Trace:
		return "TRACE"
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps the common level spellings seen across JSON, key=value,
// and unstructured log lines onto the Level enum. The second return value is
// false when tok isn't a recognized level token.
func ParseLevel(tok string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(tok)) {
	case "TRACE":
		return Trace, true
	case "DEBUG":
		return Debug, true
	case "INFO", "INFORMATION":
		return Info, true
	case "WARN", "WARNING":
		return Warn, true
	case "ERROR":
		return Error, true
	case "FATAL", "CRITICAL", "PANIC":
		return Fatal, true
	default:
		return 0, false
	}
}

// Source discriminates which feed kind produced an entry.
type Source int8

const (
	Orchestrator Source = iota
	ContainerRuntime
	File
	StandardInput
)

func (s Source) String() string {
	switch s {
	case Orchestrator:
		return "orchestrator"
	case ContainerRuntime:
		return "runtime"
	case File:
		return "file"
	case StandardInput:
		return "stdin"
	default:
		return "unknown"
	}
}

// LogEntry is the universal normalized record described in the data model:
// every field except Level is always populated, and once appended to the
// store an entry is never mutated again.
type LogEntry struct {
	Seq      uint64
	Raw      string
	Ts       time.Time
	Level    *Level
	Source   Source
	Producer string
	Fields   map[string]any
	Message  string
}

// FieldString renders a fields value as a string for substring matching,
// covering the text/number/boolean/nested-object shapes normalization can
// produce.
func FieldString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Searchable yields every string the search engine should substring-match
// against: raw, message, and every stringified field value.
func (e *LogEntry) Searchable(yield func(string) bool) {
	if !yield(e.Raw) {
		return
	}
	if !yield(e.Message) {
		return
	}
	for _, v := range e.Fields {
		if !yield(FieldString(v)) {
			return
		}
	}
}
