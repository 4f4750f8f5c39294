package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"fml/internal/entry"
)

// EncodeRaw writes one raw line per entry, per spec.md §4.5's "raw"
// format.
func EncodeRaw(w io.Writer, entries []*entry.LogEntry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintln(w, e.Raw); err != nil {
			return err
		}
	}
	return nil
}

// toRecord flattens an entry into struct fields plus its own fields map
// merged at the top level, per spec.md §4.5 ("one object per entry with
// all struct and fields keys").
func toRecord(e *entry.LogEntry, suppressMetadata bool) map[string]any {
	rec := make(map[string]any, len(e.Fields)+6)
	for k, v := range e.Fields {
		rec[k] = v
	}
	rec["seq"] = e.Seq
	rec["message"] = e.Message
	rec["raw"] = e.Raw
	if e.Level != nil {
		rec["level"] = e.Level.String()
	}
	if !suppressMetadata {
		rec["ts"] = e.Ts.Format(time.RFC3339Nano)
		rec["source"] = e.Source.String()
		rec["producer"] = e.Producer
	}
	return rec
}

// EncodeJSONL writes one JSON object per entry, per spec.md §4.5's
// "jsonl" format.
func EncodeJSONL(w io.Writer, entries []*entry.LogEntry, suppressMetadata bool) error {
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(toRecord(e, suppressMetadata)); err != nil {
			return err
		}
	}
	return nil
}

// EncodeCSV writes a header row (union of observed fields keys plus fixed
// columns) and one row per entry, missing values empty, per spec.md
// §4.5's "csv" format.
func EncodeCSV(w io.Writer, entries []*entry.LogEntry, suppressMetadata bool) error {
	fieldKeys := collectFieldKeys(entries)

	fixed := []string{"seq", "level", "message", "raw"}
	if !suppressMetadata {
		fixed = append([]string{"ts", "source", "producer"}, fixed...)
	}
	header := append(append([]string{}, fixed...), fieldKeys...)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, e := range entries {
		rec := toRecord(e, suppressMetadata)
		row := make([]string, len(header))
		for i, col := range header {
			row[i] = stringifyCell(rec[col])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func stringifyCell(v any) string {
	if v == nil {
		return ""
	}
	return entry.FieldString(v)
}

func collectFieldKeys(entries []*entry.LogEntry) []string {
	seen := make(map[string]struct{})
	for _, e := range entries {
		for k := range e.Fields {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
