package kernel

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Listener reacts to a dispatched event. Returning an error aborts the
// dispatch; remaining listeners do not run.
type Listener func(ctx context.Context, ev Event) error

// Subscription binds a listener to an event at a priority. Higher
// priorities run first.
type Subscription struct {
	Event    string
	Name     string
	Priority int
	Listener Listener
}

// Subscriber declares the listeners it wants registered.
type Subscriber interface {
	SubscribedEvents() []Subscription
}

// Dispatcher runs the listeners registered for an event.
type Dispatcher interface {
	// Dispatch runs listeners for name in priority order until one stops
	// propagation or returns an error.
	Dispatch(ctx context.Context, name string, ev Event) error

	// AddListener registers l for event at priority. name identifies the
	// listener in traces.
	AddListener(event string, priority int, name string, l Listener)
}

// AddSubscriber registers every subscription s declares on d.
func AddSubscriber(d Dispatcher, s Subscriber) {
	for _, sub := range s.SubscribedEvents() {
		d.AddListener(sub.Event, sub.Priority, sub.Name, sub.Listener)
	}
}

type registeredListener struct {
	name     string
	priority int
	seq      int
	listener Listener
}

// EventDispatcher is the default Dispatcher. Listeners with equal priority
// run in registration order. It is safe for concurrent use.
type EventDispatcher struct {
	mu        sync.RWMutex
	listeners map[string][]registeredListener
	seq       int
}

// NewEventDispatcher creates an empty dispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		listeners: make(map[string][]registeredListener),
	}
}

// AddListener implements Dispatcher.
func (d *EventDispatcher) AddListener(event string, priority int, name string, l Listener) {
	if l == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	list := append(d.listeners[event], registeredListener{
		name:     name,
		priority: priority,
		seq:      d.seq,
		listener: l,
	})
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority > list[j].priority
		}
		return list[i].seq < list[j].seq
	})
	d.listeners[event] = list
}

// Dispatch implements Dispatcher.
func (d *EventDispatcher) Dispatch(ctx context.Context, name string, ev Event) error {
	d.mu.RLock()
	list := make([]registeredListener, len(d.listeners[name]))
	copy(list, d.listeners[name])
	d.mu.RUnlock()

	for _, l := range list {
		if ev.IsPropagationStopped() {
			return nil
		}
		if err := l.listener(ctx, ev); err != nil {
			return fmt.Errorf("kernel: %s listener %q: %w", name, l.name, err)
		}
	}
	return nil
}

var _ Dispatcher = (*EventDispatcher)(nil)
