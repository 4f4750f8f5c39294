package normalizer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fml/internal/entry"
	"fml/internal/types"
)

func rawLine(s string) types.RawLine {
	return types.RawLine{
		Source:   entry.File,
		Producer: "test",
		Raw:      s,
		IngestTs: time.Now().UnixNano(),
		Fields:   map[string]any{},
	}
}

func TestNormalizeJSON(t *testing.T) {
	n := New()
	e := n.Normalize(rawLine(`{"level":"error","msg":"disk full","ts":"2024-01-02T03:04:05Z","code":7}`))

	require.NotNil(t, e.Level)
	require.Equal(t, entry.Error, *e.Level)
	require.Equal(t, "disk full", e.Message)
	require.Equal(t, 2024, e.Ts.Year())
	require.Equal(t, float64(7), e.Fields["code"])
}

func TestNormalizeKeyValue(t *testing.T) {
	n := New()
	e := n.Normalize(rawLine(`level=warn msg="slow query" duration=120ms req-id=req-abc123`))

	require.NotNil(t, e.Level)
	require.Equal(t, entry.Warn, *e.Level)
	require.Equal(t, "slow query", e.Message)
	require.Equal(t, "120ms", e.Fields["duration"])
}

func TestNormalizeUnstructured(t *testing.T) {
	n := New()
	e := n.Normalize(rawLine(`2024-01-02T03:04:05Z ERROR payment failed req-9f8b7a6c`))

	require.NotNil(t, e.Level)
	require.Equal(t, entry.Error, *e.Level)
	require.Equal(t, 2024, e.Ts.Year())
	require.Contains(t, e.Fields["request_id"], "req-")
}

func TestNormalizeEmptyLine(t *testing.T) {
	n := New()
	e := n.Normalize(rawLine(""))
	require.Equal(t, "", e.Message)
	require.Nil(t, e.Level)
}

func TestNormalizeOversizedLineTruncates(t *testing.T) {
	n := New()
	huge := strings.Repeat("a", 100*1024)
	e := n.Normalize(rawLine(huge))
	require.LessOrEqual(t, len(e.Raw), maxLineBytes)
}

func TestNormalizeInvalidUTF8NeverPanics(t *testing.T) {
	n := New()
	bad := "valid text \xff\xfe more text"
	require.NotPanics(t, func() {
		e := n.Normalize(rawLine(bad))
		require.NotEmpty(t, e.Message)
	})
}

func TestNormalizeFeedDefaultsPreservedUnlessLineOverrides(t *testing.T) {
	n := New()
	defaults := rawLine("just a plain line with no timestamp")
	e := n.Normalize(defaults)
	require.Equal(t, time.Unix(0, defaults.IngestTs).UTC(), e.Ts)
	require.Equal(t, entry.File, e.Source)
	require.Equal(t, "test", e.Producer)
}
