package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wellbuilt/hubauth/passcode"
)

// Config controls which events are kept and how the queue buffers them.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// Events limits delivery to these event types. Empty keeps all.
	Events []string
}

// sensitiveMetadata are metadata keys that never reach a sink.
var sensitiveMetadata = []string{"passcode", "passcode_hash", "hash"}

// Dispatcher redacts audit events and hands them to a sink from a single
// goroutine. A nil *Dispatcher is valid and discards everything.
type Dispatcher struct {
	sink       Sink
	now        func() time.Time
	dropIfFull bool
	allow      map[string]struct{}

	queue chan Event
	stop  chan struct{}
	wg    sync.WaitGroup

	delivered atomic.Uint64
	dropped   atomic.Uint64
	filtered  atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the delivery goroutine. It returns nil when auditing
// is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}

	d := &Dispatcher{
		sink:       sink,
		now:        time.Now,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan Event, size),
		stop:       make(chan struct{}),
	}
	if len(cfg.Events) > 0 {
		d.allow = make(map[string]struct{}, len(cfg.Events))
		for _, t := range cfg.Events {
			d.allow[t] = struct{}{}
		}
	}

	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain delivers whatever is still queued after Close.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	d.sink.Emit(context.Background(), ev)
	d.delivered.Add(1)
}

// Emit filters, stamps and redacts event, then queues it. With DropIfFull
// a full buffer drops the event; otherwise Emit waits for room or ctx.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if !d.wants(event.EventType) {
		d.filtered.Add(1)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	event = redact(event.Stamp(d.now()))

	if d.dropIfFull {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

func (d *Dispatcher) wants(eventType string) bool {
	if d.allow == nil {
		return true
	}
	_, ok := d.allow[eventType]
	return ok
}

// redact truncates the driver hash and strips credential metadata. The
// caller's metadata map is not modified.
func redact(ev Event) Event {
	ev.DriverID = passcode.Short(ev.DriverID)
	if len(ev.Metadata) == 0 {
		return ev
	}
	var md map[string]string
	for _, k := range sensitiveMetadata {
		if _, ok := ev.Metadata[k]; !ok {
			continue
		}
		if md == nil {
			md = make(map[string]string, len(ev.Metadata))
			for mk, mv := range ev.Metadata {
				md[mk] = mv
			}
		}
		delete(md, k)
	}
	if md != nil {
		ev.Metadata = md
	}
	return ev
}

// Close drains queued events into the sink and stops the dispatcher.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

// Dropped counts events discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Filtered counts events skipped because their type is not configured.
func (d *Dispatcher) Filtered() uint64 {
	if d == nil {
		return 0
	}
	return d.filtered.Load()
}

// Delivered counts events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
