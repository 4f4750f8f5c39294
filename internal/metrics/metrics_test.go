package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducesIndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	require.NotPanics(t, func() {
		a.EntriesIngested.WithLabelValues("file").Inc()
		b.EntriesIngested.WithLabelValues("file").Inc()
	})
}

func TestServerExposesMetricsEndpoint(t *testing.T) {
	m := New()
	m.EntriesIngested.WithLabelValues("stdin").Inc()
	m.RingOccupancy.Set(42)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	server := NewServer(addr, m)
	errCh := make(chan error, 1)
	server.Start(errCh)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	}()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/metrics")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "fml_entries_ingested_total")
	assert.Contains(t, string(body), "fml_ring_occupancy 42")
}
