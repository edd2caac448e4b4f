package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type switchProber struct {
	online atomic.Bool
	calls  atomic.Int32
}

func (p *switchProber) Probe(context.Context) bool {
	p.calls.Add(1)
	return p.online.Load()
}

func TestMonitorInitialProbe(t *testing.T) {
	p := &switchProber{}
	m := New(p, time.Hour, zerolog.Nop())

	var mu sync.Mutex
	var seen []bool
	m.Subscribe(func(online bool) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, online)
	})

	require.True(t, m.Online())
	m.Start(context.Background())
	defer m.Stop()

	require.False(t, m.Online())
	mu.Lock()
	require.Equal(t, []bool{false}, seen)
	mu.Unlock()
}

func TestMonitorNotifiesOnlyOnChange(t *testing.T) {
	p := &switchProber{}
	p.online.Store(true)
	m := New(p, 5*time.Millisecond, zerolog.Nop())

	var changes atomic.Int32
	m.Subscribe(func(bool) { changes.Add(1) })

	m.Start(context.Background())
	require.Eventually(t, func() bool { return p.calls.Load() > 3 }, time.Second, time.Millisecond)
	require.Equal(t, int32(0), changes.Load())

	p.online.Store(false)
	require.Eventually(t, func() bool { return !m.Online() }, time.Second, time.Millisecond)
	m.Stop()
	require.Equal(t, int32(1), changes.Load())

	calls := p.calls.Load()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, calls, p.calls.Load(), "stopped monitor must not probe")
}

func TestMonitorListenerPanicIsContained(t *testing.T) {
	m := New(&switchProber{}, time.Hour, zerolog.Nop())

	var after atomic.Bool
	m.Subscribe(func(bool) { panic("listener bug") })
	m.Subscribe(func(bool) { after.Store(true) })

	require.NotPanics(t, func() { m.Set(false) })
	require.True(t, after.Load())
}

func TestMonitorUnsubscribe(t *testing.T) {
	m := New(&switchProber{}, time.Hour, zerolog.Nop())
	var calls atomic.Int32
	unsubscribe := m.Subscribe(func(bool) { calls.Add(1) })

	m.Set(false)
	unsubscribe()
	m.Set(true)
	require.Equal(t, int32(1), calls.Load())
}

func TestMonitorsAreIndependent(t *testing.T) {
	a := New(&switchProber{}, time.Hour, zerolog.Nop())
	b := New(&switchProber{}, time.Hour, zerolog.Nop())
	a.Set(false)
	require.False(t, a.Online())
	require.True(t, b.Online())
}

func TestStartTwiceAndStopIdempotent(t *testing.T) {
	p := &switchProber{}
	m := New(p, time.Hour, zerolog.Nop())
	m.Start(context.Background())
	m.Start(context.Background())
	require.Equal(t, int32(1), p.calls.Load())
	m.Stop()
	m.Stop()
}

func TestHTTPProber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	require.True(t, HTTPProber{URL: srv.URL}.Probe(context.Background()))
	srv.Close()
	require.False(t, HTTPProber{URL: srv.URL, Timeout: 100 * time.Millisecond}.Probe(context.Background()))
}
