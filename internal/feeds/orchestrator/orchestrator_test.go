package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fml/internal/types"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	lines []types.RawLine
}

func (d *fakeDispatcher) Handle(ctx context.Context, raw types.RawLine) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, raw)
	return nil
}

func (d *fakeDispatcher) snapshot() []types.RawLine {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]types.RawLine, len(d.lines))
	copy(out, d.lines)
	return out
}

func TestSplitTimestampParsesRFC3339NanoPrefix(t *testing.T) {
	ts, msg := splitTimestamp("2024-01-02T03:04:05.123456789Z hello world")
	require.False(t, ts.IsZero())
	assert.Equal(t, "hello world", msg)
}

func TestSplitTimestampFallsBackOnUnparseablePrefix(t *testing.T) {
	ts, msg := splitTimestamp("not-a-timestamp some message")
	assert.True(t, ts.IsZero())
	assert.Equal(t, "not-a-timestamp some message", msg)
}

func TestShouldSkipDeduplicatesAtOrBeforeWatermark(t *testing.T) {
	f := newWithClientset(nil, Selector{}, &fakeDispatcher{}, nil)

	t1 := time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)
	t2 := t1.Add(time.Second)

	require.False(t, f.shouldSkip("k", t1, "first"))
	f.recordWatermark("k", t1, "first")

	assert.True(t, f.shouldSkip("k", t1, "first"), "same (ts, content) must be skipped")
	assert.False(t, f.shouldSkip("k", t1, "different"), "same ts but new content must not be skipped")

	f.recordWatermark("k", t1, "different")
	assert.False(t, f.shouldSkip("k", t2, "next"), "later ts must never be skipped")
}

func TestShouldSkipIgnoresZeroTimestamps(t *testing.T) {
	f := newWithClientset(nil, Selector{}, &fakeDispatcher{}, nil)
	assert.False(t, f.shouldSkip("k", time.Time{}, "anything"))
}

func TestSessionKeyIsStablePerPodContainer(t *testing.T) {
	assert.Equal(t, "ns/pod/container", sessionKey("ns", "pod", "container"))
	assert.NotEqual(t, sessionKey("ns", "pod", "a"), sessionKey("ns", "pod", "b"))
}
