package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fml/internal/entry"
	"fml/internal/ontology"
	"fml/internal/search"
	"fml/internal/store"
)

func mkEntry(s *store.Store, producer, message string, lvl entry.Level, fields map[string]any) {
	l := lvl
	s.Append(&entry.LogEntry{
		Raw:      message,
		Ts:       time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:    &l,
		Source:   entry.File,
		Producer: producer,
		Fields:   fields,
		Message:  message,
	})
}

func TestEncodeRaw(t *testing.T) {
	s := store.New(10)
	mkEntry(s, "svc", "hello world", entry.Info, map[string]any{})
	entries := s.Latest(10)

	var buf bytes.Buffer
	require.NoError(t, EncodeRaw(&buf, entries))
	require.Equal(t, "hello world\n", buf.String())
}

func TestEncodeJSONLIncludesFieldsAndSuppression(t *testing.T) {
	s := store.New(10)
	mkEntry(s, "svc", "boot", entry.Info, map[string]any{"code": 7})
	entries := s.Latest(10)

	var buf bytes.Buffer
	require.NoError(t, EncodeJSONL(&buf, entries, false))
	require.Contains(t, buf.String(), `"producer":"svc"`)
	require.Contains(t, buf.String(), `"code":7`)

	buf.Reset()
	require.NoError(t, EncodeJSONL(&buf, entries, true))
	require.NotContains(t, buf.String(), `"producer"`)
}

func TestEncodeCSVHeaderUnionsFieldKeys(t *testing.T) {
	s := store.New(10)
	mkEntry(s, "svc-a", "one", entry.Info, map[string]any{"alpha": "1"})
	mkEntry(s, "svc-b", "two", entry.Warn, map[string]any{"beta": "2"})
	entries := s.Latest(10)

	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, entries, false))

	r := csv.NewReader(strings.NewReader(buf.String()))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 rows
	require.Contains(t, rows[0], "alpha")
	require.Contains(t, rows[0], "beta")
}

func TestExporterScopeResolution(t *testing.T) {
	s := store.New(100)
	mkEntry(s, "svc-a", "auth failed", entry.Error, map[string]any{})
	mkEntry(s, "svc-b", "all good", entry.Info, map[string]any{})

	eng := search.New(ontology.Build())
	ex := New(s, eng)

	all := ex.Resolve(Scope{Kind: ScopeEntireStore})
	require.Len(t, all, 2)

	byProducer := ex.Resolve(Scope{Kind: ScopeProducer, Producer: "svc-a"})
	require.Len(t, byProducer, 1)
	require.Equal(t, "svc-a", byProducer[0].Producer)

	q, err := search.ParseQuery("auth")
	require.NoError(t, err)
	filtered := ex.Resolve(Scope{Kind: ScopeActiveFilter, Query: q, Greed: 0})
	require.Len(t, filtered, 1)
	require.Equal(t, "svc-a", filtered[0].Producer)
}

func TestExporterEmptyScopeProducesEmptyOutput(t *testing.T) {
	s := store.New(10)
	eng := search.New(ontology.Build())
	ex := New(s, eng)

	got := ex.Resolve(Scope{Kind: ScopeProducer, Producer: "nonexistent"})
	require.Empty(t, got)
}
