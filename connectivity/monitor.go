package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is how often a started Monitor probes.
const DefaultInterval = 15 * time.Second

// Prober reports whether the network is reachable right now.
type Prober interface {
	Probe(ctx context.Context) bool
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) bool

func (f ProberFunc) Probe(ctx context.Context) bool { return f(ctx) }

// HTTPProber treats any HTTP response from URL as reachable.
type HTTPProber struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

func (p HTTPProber) Probe(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Monitor polls a Prober and notifies listeners when reachability changes.
// A new Monitor reports online until its first probe says otherwise.
type Monitor struct {
	prober   Prober
	interval time.Duration
	log      zerolog.Logger

	mu        sync.Mutex
	online    bool
	listeners map[int]func(bool)
	nextID    int
	cancel    context.CancelFunc
	done      chan struct{}
}

// New returns a stopped Monitor. A non-positive interval uses DefaultInterval.
func New(prober Prober, interval time.Duration, log zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		prober:    prober,
		interval:  interval,
		log:       log.With().Str("component", "connectivity").Logger(),
		online:    true,
		listeners: map[int]func(bool){},
	}
}

// Online returns the last observed state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers fn for state changes and returns its unsubscribe func.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Start runs an initial probe and then probes on every interval until Stop
// or ctx is done. Starting a running Monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()

	m.check(ctx)
	m.log.Info().Bool("online", m.Online()).Msg("connectivity monitor started")

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

// Stop halts probing and waits for the poller to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Set records a state observed by the host, for example from a platform
// network callback, and notifies listeners on change.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	m.log.Info().Bool("online", online).Msg("connectivity changed")
	for _, fn := range listeners {
		m.notify(fn, online)
	}
}

func (m *Monitor) check(ctx context.Context) {
	online := m.prober.Probe(ctx)
	if ctx.Err() != nil {
		return
	}
	m.Set(online)
}

func (m *Monitor) notify(fn func(bool), online bool) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn().Interface("panic", r).Msg("connectivity listener panicked")
		}
	}()
	fn(online)
}
