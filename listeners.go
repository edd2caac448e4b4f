package hubauth

import (
	"sync"

	"github.com/rs/zerolog"
)

// listeners is a set of callbacks that can be removed again. Callbacks are
// invoked outside the lock, and a panicking callback does not stop the rest.
type listeners[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

func (l *listeners[T]) add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = map[int]func(T){}
	}
	id := l.next
	l.next++
	l.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

func (l *listeners[T]) notify(v T, log zerolog.Logger) {
	l.mu.Lock()
	fns := make([]func(T), 0, len(l.fns))
	for i := 0; i < l.next; i++ {
		if fn, ok := l.fns[i]; ok {
			fns = append(fns, fn)
		}
	}
	l.mu.Unlock()

	for _, fn := range fns {
		call(fn, v, log)
	}
}

func call[T any](fn func(T), v T, log zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("listener panicked")
		}
	}()
	fn(v)
}
