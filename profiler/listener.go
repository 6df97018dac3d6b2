package profiler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/karloscodes/webprofiler"
	"github.com/karloscodes/webprofiler/kernel"
)

// Response headers set on profiled responses.
const (
	HeaderToken     = "X-Debug-Token"
	HeaderTokenLink = "X-Debug-Token-Link"
)

// Tracer exposes the listeners a dispatcher has called.
type Tracer interface {
	CalledListeners() []kernel.CalledListener
}

// Options configures a Listener.
type Options struct {
	Storage Storage

	// OnlyMainRequests skips sub-requests.
	OnlyMainRequests bool

	// Tracer and Stopwatch enrich profiles when set.
	Tracer    Tracer
	Stopwatch *kernel.Stopwatch

	// LinkPrefix prefixes X-Debug-Token-Link. Defaults to "/_profiler/".
	LinkPrefix string

	Logger webprofiler.Logger

	// Now and NewToken are replaced in tests.
	Now      func() time.Time
	NewToken func() string
}

// Listener collects a profile on kernel.response and saves it on
// kernel.terminate.
type Listener struct {
	opts Options

	mu      sync.Mutex
	pending map[*kernel.Request]*Profile
}

// NewListener creates a profiler listener.
func NewListener(opts Options) *Listener {
	if opts.Storage == nil {
		opts.Storage = NewMemoryStorage(0)
	}
	if opts.LinkPrefix == "" {
		opts.LinkPrefix = "/_profiler/"
	}
	if opts.Logger == nil {
		opts.Logger = webprofiler.NopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewToken == nil {
		opts.NewToken = uuid.NewString
	}
	return &Listener{
		opts:    opts,
		pending: make(map[*kernel.Request]*Profile),
	}
}

// Storage returns where profiles are saved.
func (l *Listener) Storage() Storage { return l.opts.Storage }

// OnKernelResponse collects a profile for the response's request and tags
// the response with its token.
func (l *Listener) OnKernelResponse(_ context.Context, ev *kernel.ResponseEvent) error {
	if l.opts.OnlyMainRequests && !ev.IsMainRequest() {
		return nil
	}
	req := ev.Request
	if req == nil || ev.Response == nil {
		return nil
	}

	p := &Profile{
		Token:      l.opts.NewToken(),
		Method:     req.Method,
		URL:        req.URI,
		IP:         req.ClientIP,
		StatusCode: ev.Response.StatusCode,
		Time:       l.opts.Now(),
	}
	if l.opts.Stopwatch != nil && req.ID != "" {
		if sec, ok := l.opts.Stopwatch.Section(req.ID); ok {
			p.Duration = sec.Duration
			if sec.Open {
				p.Duration += l.opts.Now().Sub(sec.Started)
			}
		}
	}

	ev.Response.Header.Set(HeaderToken, p.Token)
	ev.Response.Header.Set(HeaderTokenLink, l.opts.LinkPrefix+p.Token)

	l.mu.Lock()
	l.pending[req] = p
	l.mu.Unlock()
	return nil
}

// OnKernelTerminate saves the profile collected for the request.
func (l *Listener) OnKernelTerminate(ctx context.Context, ev *kernel.TerminateEvent) error {
	l.mu.Lock()
	p, ok := l.pending[ev.Request]
	delete(l.pending, ev.Request)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	if l.opts.Tracer != nil {
		p.Listeners = l.opts.Tracer.CalledListeners()
	}
	if err := l.opts.Storage.Write(ctx, p); err != nil {
		return fmt.Errorf("profiler: save %s: %w", p.Token, err)
	}
	l.opts.Logger.Debug("profile saved", "token", p.Token, "url", p.URL)
	return nil
}

// Pending returns the number of collected profiles not yet saved.
func (l *Listener) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// SubscribedEvents implements kernel.Subscriber.
func (l *Listener) SubscribedEvents() []kernel.Subscription {
	return []kernel.Subscription{
		{
			Event: kernel.EventResponse, Name: "profiler.response", Priority: -100,
			Listener: func(ctx context.Context, ev kernel.Event) error {
				if e, ok := ev.(*kernel.ResponseEvent); ok {
					return l.OnKernelResponse(ctx, e)
				}
				return nil
			},
		},
		{
			Event: kernel.EventTerminate, Name: "profiler.terminate", Priority: -1024,
			Listener: func(ctx context.Context, ev kernel.Event) error {
				if e, ok := ev.(*kernel.TerminateEvent); ok {
					return l.OnKernelTerminate(ctx, e)
				}
				return nil
			},
		},
	}
}
