package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"fml/internal/entry"
	"fml/internal/metrics"
	"fml/internal/search"
	"fml/internal/types"
)

// fakeFeed is a types.Monitor that blocks until its context is cancelled,
// signaling once it has started so tests can synchronize on it.
type fakeFeed struct {
	mu        sync.Mutex
	started   bool
	stopped   bool
	startedCh chan struct{}
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{startedCh: make(chan struct{})}
}

func (f *fakeFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	close(f.startedCh)
	<-ctx.Done()
	return nil
}

func (f *fakeFeed) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeFeed) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// invalidFeed is a types.Monitor that also implements the optional
// Validate() capability App.Start probes for, always failing it.
type invalidFeed struct {
	fakeFeed
	validateErr error
}

func (f *invalidFeed) Validate() error { return f.validateErr }

func TestNewWiresAllCoreComponents(t *testing.T) {
	a := New(Options{})
	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.Dispatcher)
	assert.NotNil(t, a.Graph)
	assert.NotNil(t, a.Search)
	assert.NotNil(t, a.Exporter)
}

func TestStartReturnsErrorWithNoFeedConfigured(t *testing.T) {
	a := New(Options{})
	err := a.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no feed configured")
}

func TestStartStopLifecycleDrainsGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("github.com/sirupsen/logrus.*"),
	)

	a := New(Options{})
	feed := newFakeFeed()
	a.SetFeed(feed)

	require.NoError(t, a.Start(context.Background()))

	select {
	case <-feed.startedCh:
	case <-time.After(time.Second):
		t.Fatal("feed never started")
	}

	require.NoError(t, a.Stop())
	assert.True(t, feed.wasStopped())
}

func TestDispatcherAppendIncrementsIngestMetrics(t *testing.T) {
	m := metrics.New()
	a := New(Options{Metrics: m})
	a.SetFeed(newFakeFeed())
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	err := a.Dispatcher.Handle(context.Background(), types.RawLine{
		Source:   entry.File,
		Producer: "web",
		Raw:      "hello",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, a.Store.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EntriesIngested.WithLabelValues(entry.File.String())))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RingOccupancy))
}

func TestStoreEvictionIncrementsEvictedMetric(t *testing.T) {
	m := metrics.New()
	a := New(Options{Metrics: m, RingCapacity: 2})
	a.SetFeed(newFakeFeed())
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, a.Dispatcher.Handle(context.Background(), types.RawLine{
			Source:   entry.File,
			Producer: "web",
			Raw:      "hello",
		}))
	}

	assert.Equal(t, 2, a.Store.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EntriesEvicted))
}

func TestSearchObservesLatencyAndExpansionSizeMetrics(t *testing.T) {
	m := metrics.New()
	a := New(Options{Metrics: m})
	a.SetFeed(newFakeFeed())
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	require.NoError(t, a.Dispatcher.Handle(context.Background(), types.RawLine{
		Source:   entry.File,
		Producer: "web",
		Raw:      "auth failed for user bob",
	}))

	q, err := search.ParseQuery("auth")
	require.NoError(t, err)
	a.Search.Search(a.Store.Snapshot(), q, 3)

	var latency dto.Metric
	require.NoError(t, m.SearchLatency.Write(&latency))
	assert.EqualValues(t, 1, latency.GetHistogram().GetSampleCount())

	var expansion dto.Metric
	require.NoError(t, m.ExpansionSize.Write(&expansion))
	assert.EqualValues(t, 1, expansion.GetHistogram().GetSampleCount())
}

func TestStartPropagatesFeedValidationError(t *testing.T) {
	a := New(Options{})
	feed := &invalidFeed{
		fakeFeed:    fakeFeed{startedCh: make(chan struct{})},
		validateErr: errors.New("no files matched"),
	}
	a.SetFeed(feed)

	err := a.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files matched")

	select {
	case <-feed.startedCh:
		t.Fatal("feed.Start should never have run after failed validation")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStopWithoutStartDoesNotPanic(t *testing.T) {
	a := New(Options{})
	assert.NoError(t, a.Stop())
}
