package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fml/internal/entry"
	"fml/internal/ontology"
	"fml/internal/store"
)

func mkEntry(s *store.Store, producer, message string, lvl entry.Level) *entry.LogEntry {
	l := lvl
	e := &entry.LogEntry{
		Raw:      message,
		Ts:       time.Now().UTC(),
		Level:    &l,
		Source:   entry.File,
		Producer: producer,
		Fields:   map[string]any{},
		Message:  message,
	}
	s.Append(e)
	return e
}

func TestSearchExactAndExpansion(t *testing.T) {
	s := store.New(100)
	mkEntry(s, "svc-a", "user session created", entry.Info)
	mkEntry(s, "svc-a", "auth failed for user bob", entry.Error)
	mkEntry(s, "svc-a", "issued a new token for session", entry.Info)

	eng := New(ontology.Build())
	q, err := ParseQuery("auth")
	require.NoError(t, err)

	greed0 := eng.Search(s.Snapshot(), q, 0)
	require.Len(t, greed0, 1)

	greed3 := eng.Search(s.Snapshot(), q, 3)
	require.GreaterOrEqual(t, len(greed3), 2)
}

func TestSearchLevelFilter(t *testing.T) {
	s := store.New(1000)
	for i := 0; i < 50; i++ {
		mkEntry(s, "svc", "request timeout while dialing upstream", entry.Error)
	}
	for i := 0; i < 50; i++ {
		mkEntry(s, "svc", "high latency observed on upstream", entry.Error)
	}
	for i := 0; i < 900; i++ {
		mkEntry(s, "svc", "ordinary request handled", entry.Info)
	}

	eng := New(ontology.Build())
	q, err := ParseQuery("level:error timeout")
	require.NoError(t, err)

	results := eng.Search(s.Snapshot(), q, 3)
	require.GreaterOrEqual(t, len(results), 100)
	for _, e := range results {
		require.NotNil(t, e.Level)
		require.GreaterOrEqual(t, *e.Level, entry.Error)
	}
}

func TestSearchNegativePrefixRule(t *testing.T) {
	s := store.New(100)
	mkEntry(s, "svc", "access forbidden for this resource", entry.Warn)
	mkEntry(s, "svc", "request rejected by policy", entry.Warn)
	mkEntry(s, "svc", "permission denied", entry.Warn)
	mkEntry(s, "svc", "401 Unauthorized", entry.Warn)

	eng := New(ontology.Build())
	q, err := ParseQuery("unauth")
	require.NoError(t, err)

	results := eng.Search(s.Snapshot(), q, 7)
	require.Len(t, results, 4)

	messages := make([]string, len(results))
	for i, e := range results {
		messages[i] = e.Message
	}
	require.Contains(t, messages, "access forbidden for this resource")
	require.Contains(t, messages, "request rejected by policy")
	require.Contains(t, messages, "permission denied")
	require.Contains(t, messages, "401 Unauthorized")
}

func TestSearchMonotonicity(t *testing.T) {
	s := store.New(1000)
	messages := []string{
		"auth failed", "login succeeded", "session expired", "token revoked",
		"connection refused", "dns lookup failed", "query timeout",
		"deadlock detected", "out of memory", "disk quota exceeded",
		"service restarted", "readiness probe failed", "unauthorized access",
	}
	for i, m := range messages {
		lvl := entry.Info
		if i%2 == 0 {
			lvl = entry.Error
		}
		mkEntry(s, "svc", m, lvl)
	}

	eng := New(ontology.Build())
	for _, raw := range []string{"auth", "timeout", "unauth", "level:error oom"} {
		q, err := ParseQuery(raw)
		require.NoError(t, err)

		var prev map[uint64]struct{}
		for greed := 0; greed <= 9; greed++ {
			snap := s.Snapshot()
			results := eng.Search(snap, q, greed)
			cur := make(map[uint64]struct{}, len(results))
			for _, e := range results {
				cur[e.Seq] = struct{}{}
			}
			for seq := range prev {
				_, ok := cur[seq]
				require.Truef(t, ok, "query %q: seq %d present at greed %d missing at greed %d", raw, seq, greed-1, greed)
			}
			prev = cur
		}
	}
}

func TestOnSearchReportsDurationAndExpansionSize(t *testing.T) {
	s := store.New(10)
	mkEntry(s, "svc", "auth failed for user bob", entry.Error)

	eng := New(ontology.Build())

	var calls int
	var lastExpansionSize int
	var lastDur time.Duration
	eng.OnSearch(func(dur time.Duration, expansionSize int) {
		calls++
		lastDur = dur
		lastExpansionSize = expansionSize
	})

	q, err := ParseQuery("auth")
	require.NoError(t, err)
	eng.Search(s.Snapshot(), q, 3)

	require.Equal(t, 1, calls)
	require.GreaterOrEqual(t, lastDur, time.Duration(0))
	require.Greater(t, lastExpansionSize, 0)
}
