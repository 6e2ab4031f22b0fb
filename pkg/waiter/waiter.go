package waiter

import (
	"sync"

	"github.com/exzackly/exzos/log"
)

type EventType uint64

type Waiter struct {
	mu sync.RWMutex

	waiters []*Event
}

type Event struct {
	Mask     EventType
	Context  interface{}
	Callback func(e *Event)
}

func (w *Waiter) Register(e *Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.waiters = append(w.waiters, e)
}

func triggerChan(e *Event) {
	c := e.Context.(chan struct{})

	select {
	case c <- struct{}{}:
	default:
	}
}

func (w *Waiter) RegisterChannel(mask EventType, c chan struct{}) *Event {
	e := &Event{
		Callback: triggerChan,
		Context:  c,
		Mask:     mask,
	}

	w.Register(e)

	return e
}

// RegisterFunc calls f every time an event in mask is notified.
func (w *Waiter) RegisterFunc(mask EventType, f func()) *Event {
	e := &Event{
		Callback: func(*Event) { f() },
		Mask:     mask,
	}

	w.Register(e)

	return e
}

func (w *Waiter) Unregister(e *Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, ev := range w.waiters {
		if ev == e {
			w.waiters = append(w.waiters[:i], w.waiters[i+1:]...)
			return
		}
	}
}

func (w *Waiter) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.waiters)
}

func (w *Waiter) Notify(mask EventType) {
	w.mu.RLock()
	waiters := append([]*Event(nil), w.waiters...)
	w.mu.RUnlock()

	for _, e := range waiters {
		if mask&e.Mask != 0 {
			log.L.Trace("waiters-walk", "event-mask", e.Mask, "notify-mask", mask)
			e.Callback(e)
		}
	}
}
