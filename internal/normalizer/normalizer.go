// Package normalizer implements normalize(raw, feed_defaults) -> LogEntry:
// a pure, allocation-light parser cascade (JSON, then key/value, then
// unstructured heuristics) per spec.md §4.2.
package normalizer

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"fml/internal/entry"
	"fml/internal/types"
)

// maxLineBytes is the truncation bound from spec.md §4.2's edge cases:
// "lines longer than 64 KiB never panic; lossy conversion and truncation
// are permitted".
const maxLineBytes = 64 * 1024

// tsKeys / levelKeys / messageKeys are the JSON/key-value key aliases that
// promote to typed fields, per spec.md §4.2 step 1.
var tsKeys = map[string]struct{}{"ts": {}, "timestamp": {}, "time": {}, "t": {}, "@timestamp": {}}
var levelKeys = map[string]struct{}{"level": {}, "severity": {}, "lvl": {}, "log.level": {}}
var messageKeys = map[string]struct{}{"message": {}, "msg": {}}

// Normalizer is stateless; a single instance may be shared across every
// feed adapter and goroutine.
type Normalizer struct{}

// New returns a ready-to-use Normalizer.
func New() *Normalizer { return &Normalizer{} }

// Normalize implements normalize(raw, feed_defaults) -> LogEntry. It never
// blocks and never panics, including on invalid UTF-8 or oversized lines.
func (n *Normalizer) Normalize(raw types.RawLine) *entry.LogEntry {
	line := truncateAndSanitize(raw.Raw)

	e := &entry.LogEntry{
		Raw:      line,
		Ts:       time.Unix(0, raw.IngestTs).UTC(),
		Source:   raw.Source,
		Producer: raw.Producer,
		Fields:   make(map[string]any),
		Message:  line,
	}
	for k, v := range raw.Fields {
		e.Fields[strings.ToLower(k)] = v
	}

	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		// empty line: valid entry with empty message, per spec.md edge cases
	case looksLikeJSONObject(trimmed):
		parseJSON(trimmed, e)
	case parseKeyValue(trimmed, e):
		// handled
	default:
		parseUnstructured(trimmed, e)
	}
	return e
}

func truncateAndSanitize(raw string) string {
	if len(raw) > maxLineBytes {
		raw = raw[:maxLineBytes]
	}
	if utf8.ValidString(raw) {
		return raw
	}
	return strings.ToValidUTF8(raw, "�")
}

func looksLikeJSONObject(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}

// parseJSON implements spec.md §4.2 step 1: top-level keys populate
// fields (lowercased); recognized keys promote to typed fields; nested
// values remain structured inside fields.
func parseJSON(s string, e *entry.LogEntry) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		parseUnstructured(s, e)
		return
	}
	for k, v := range raw {
		lk := strings.ToLower(k)
		switch {
		case isTsKey(lk):
			if ts, ok := parseTimestampValue(v); ok {
				e.Ts = ts
			}
			e.Fields[lk] = v
		case isLevelKey(lk):
			if lvl, ok := levelFromAny(v); ok {
				e.Level = &lvl
			}
			e.Fields[lk] = v
		case isMessageKey(lk):
			e.Message = entry.FieldString(v)
			e.Fields[lk] = v
		default:
			e.Fields[lk] = v
		}
	}
}

func isTsKey(k string) bool      { _, ok := tsKeys[k]; return ok }
func isLevelKey(k string) bool   { _, ok := levelKeys[k]; return ok }
func isMessageKey(k string) bool { _, ok := messageKeys[k]; return ok }

func levelFromAny(v any) (entry.Level, bool) {
	s := entry.FieldString(v)
	return entry.ParseLevel(s)
}

func parseTimestampValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		return parseTimestampString(t)
	case float64:
		return unixFromNumber(t), true
	default:
		return time.Time{}, false
	}
}

func unixFromNumber(f float64) time.Time {
	// Heuristic: values above 10^12 are milliseconds, else seconds.
	if f > 1e12 {
		return time.UnixMilli(int64(f)).UTC()
	}
	return time.Unix(int64(f), 0).UTC()
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"Jan _2 15:04:05",
	"Jan 2 15:04:05",
}

func parseTimestampString(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			if ts.Year() == 0 {
				ts = ts.AddDate(time.Now().Year(), 0, 0)
			}
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// kvTokenRe matches key=value or key="quoted value with \" escapes" tokens,
// per spec.md §4.2 step 2.
var kvTokenRe = regexp.MustCompile(`([A-Za-z0-9_.@-]+)=("(?:[^"\\]|\\.)*"|\S+)`)

// parseKeyValue attempts the key/value parser cascade step. Returns false
// (and leaves e untouched beyond what the caller already set) when the
// line contains no recognizable key=value tokens at all, so the caller
// falls through to unstructured heuristics.
func parseKeyValue(s string, e *entry.LogEntry) bool {
	matches := kvTokenRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return false
	}
	for _, m := range matches {
		key := strings.ToLower(m[1])
		val := unquote(m[2])
		switch {
		case isTsKey(key):
			if ts, ok := parseTimestampString(val); ok {
				e.Ts = ts
			}
			e.Fields[key] = val
		case isLevelKey(key):
			if lvl, ok := entry.ParseLevel(val); ok {
				e.Level = &lvl
			}
			e.Fields[key] = val
		case isMessageKey(key):
			e.Message = val
			e.Fields[key] = val
		default:
			e.Fields[key] = val
		}
	}
	return true
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		inner := s[1 : len(s)-1]
		inner = strings.ReplaceAll(inner, `\"`, `"`)
		inner = strings.ReplaceAll(inner, `\\`, `\`)
		return inner
	}
	return s
}

var (
	unstructuredLevelRe = regexp.MustCompile(`(?i)\b(TRACE|DEBUG|INFO|WARN(?:ING)?|ERROR|FATAL|CRITICAL|PANIC)\b`)
	requestIDRe         = regexp.MustCompile(`\b(req-[A-Za-z0-9-]+|rid=[A-Za-z0-9-]+|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})\b`)
	leadingTimestampRes = []*regexp.Regexp{
		regexp.MustCompile(`^\S*\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?`),
		regexp.MustCompile(`^[A-Z][a-z]{2}\s+\d{1,2}\s\d{2}:\d{2}:\d{2}`),
	}
)

// parseUnstructured implements spec.md §4.2 step 3: heuristic detection of
// a leading timestamp, a level token anywhere in the line, and a
// request-id-shaped token, run in parallel (order-independent) over the
// full raw line, which becomes message verbatim.
func parseUnstructured(s string, e *entry.LogEntry) {
	e.Message = e.Raw

	for _, re := range leadingTimestampRes {
		if m := re.FindString(s); m != "" {
			if ts, ok := parseTimestampString(strings.TrimSpace(m)); ok {
				e.Ts = ts
				break
			}
		}
	}

	if m := unstructuredLevelRe.FindString(s); m != "" {
		if lvl, ok := entry.ParseLevel(m); ok {
			e.Level = &lvl
		}
	}

	if m := requestIDRe.FindString(s); m != "" {
		e.Fields["request_id"] = strings.TrimPrefix(m, "rid=")
	}
}
