package kernel

import (
	"context"
	"sync"
	"time"
)

// CalledListener records one listener invocation.
type CalledListener struct {
	Event    string
	Name     string
	Priority int
	Duration time.Duration
	// Stopped is true when the listener stopped propagation.
	Stopped bool
}

// TraceableDispatcher decorates a Dispatcher with call tracing and a
// stopwatch section per request. The section opens on kernel.request and
// stops after kernel.response and after kernel.terminate; it is reopened
// before terminate only for requests handled by Kernel.Handle.
type TraceableDispatcher struct {
	inner     Dispatcher
	stopwatch *Stopwatch

	mu     sync.Mutex
	called []CalledListener
}

// NewTraceableDispatcher wraps inner. A nil stopwatch gets a fresh one.
func NewTraceableDispatcher(inner Dispatcher, sw *Stopwatch) *TraceableDispatcher {
	if sw == nil {
		sw = NewStopwatch()
	}
	return &TraceableDispatcher{inner: inner, stopwatch: sw}
}

// Stopwatch returns the stopwatch sections are recorded on.
func (d *TraceableDispatcher) Stopwatch() *Stopwatch { return d.stopwatch }

// AddListener implements Dispatcher, wrapping l to record its calls.
func (d *TraceableDispatcher) AddListener(event string, priority int, name string, l Listener) {
	if l == nil {
		return
	}
	d.inner.AddListener(event, priority, name, func(ctx context.Context, ev Event) error {
		start := time.Now()
		err := l(ctx, ev)
		d.record(CalledListener{
			Event:    event,
			Name:     name,
			Priority: priority,
			Duration: time.Since(start),
			Stopped:  ev.IsPropagationStopped(),
		})
		return err
	})
}

// Dispatch implements Dispatcher.
func (d *TraceableDispatcher) Dispatch(ctx context.Context, name string, ev Event) error {
	section := sectionID(ev)

	switch name {
	case EventRequest:
		d.stopwatch.OpenSection(section)
	case EventTerminate:
		if native(ev) {
			d.stopwatch.OpenSection(section)
		}
	}

	if err := d.inner.Dispatch(ctx, name, ev); err != nil {
		return err
	}

	switch name {
	case EventResponse, EventTerminate:
		return d.stopwatch.StopSection(section)
	}
	return nil
}

// CalledListeners returns the recorded calls in order.
func (d *TraceableDispatcher) CalledListeners() []CalledListener {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]CalledListener, len(d.called))
	copy(out, d.called)
	return out
}

func (d *TraceableDispatcher) record(c CalledListener) {
	d.mu.Lock()
	d.called = append(d.called, c)
	d.mu.Unlock()
}

func requestOf(ev Event) *Request {
	switch e := ev.(type) {
	case *RequestEvent:
		return e.Request
	case *ResponseEvent:
		return e.Request
	case *TerminateEvent:
		return e.Request
	}
	return nil
}

func sectionID(ev Event) string {
	if req := requestOf(ev); req != nil && req.ID != "" {
		return req.ID
	}
	return "main"
}

func native(ev Event) bool {
	req := requestOf(ev)
	if req == nil {
		return false
	}
	v, _ := req.Attribute(AttrNativeTerminate)
	b, _ := v.(bool)
	return b
}

var _ Dispatcher = (*TraceableDispatcher)(nil)
