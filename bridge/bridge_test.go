package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/webprofiler"
	"github.com/karloscodes/webprofiler/kernel"
	"github.com/karloscodes/webprofiler/legacy"
)

// spyDispatcher records the events dispatched through it.
type spyDispatcher struct {
	kernel.Dispatcher
	dispatched []string
}

func (s *spyDispatcher) Dispatch(ctx context.Context, name string, ev kernel.Event) error {
	s.dispatched = append(s.dispatched, name)
	return s.Dispatcher.Dispatch(ctx, name, ev)
}

type harness struct {
	bridge     *Bridge
	dispatcher *spyDispatcher
	hooks      *legacy.Hooks
	out        *legacy.Buffer
	stack      *kernel.RequestStack
	exceptions *legacy.ExceptionHandlers
	uncaught   []error
	synthetic  *kernel.Request
}

type harnessOptions struct {
	script   string
	method   string
	software string
	delegate Delegate
	inner    kernel.Dispatcher
	logger   webprofiler.Logger
}

type logEntry struct {
	msg string
	kv  []any
}

type recordingLogger struct {
	entries []logEntry
}

func (l *recordingLogger) record(msg string, kv []any) {
	l.entries = append(l.entries, logEntry{msg: msg, kv: kv})
}

func (l *recordingLogger) Debug(msg string, kv ...any) { l.record(msg, kv) }
func (l *recordingLogger) Info(msg string, kv ...any)  { l.record(msg, kv) }
func (l *recordingLogger) Warn(msg string, kv ...any)  { l.record(msg, kv) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.record(msg, kv) }

func (l *recordingLogger) find(msg string) (logEntry, bool) {
	for _, e := range l.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

func newHarness(t *testing.T, o harnessOptions) *harness {
	t.Helper()
	if o.script == "" {
		o.script = "/forum/index.php"
	}
	if o.method == "" {
		o.method = "GET"
	}
	if o.inner == nil {
		o.inner = kernel.NewEventDispatcher()
	}

	h := &harness{
		dispatcher: &spyDispatcher{Dispatcher: o.inner},
		hooks:      legacy.NewHooks(),
		out:        legacy.NewBuffer(),
		stack:      kernel.NewRequestStack(),
		synthetic:  kernel.NewRequest(o.method, o.script),
	}
	h.exceptions = legacy.NewExceptionHandlers(func(err error) { h.uncaught = append(h.uncaught, err) })
	t.Cleanup(h.out.Release)

	b, err := New(Options{
		Request:          legacy.ServerVars{"SCRIPT_NAME": o.script, "REQUEST_METHOD": o.method},
		SyntheticRequest: h.synthetic,
		Stack:            h.stack,
		Dispatcher:       h.dispatcher,
		Output:           h.out,
		Exceptions:       h.exceptions,
		Delegate:         o.delegate,
		ServerSoftware:   func() string { return o.software },
		Logger:           o.logger,
	})
	require.NoError(t, err)
	b.Register(h.hooks, h.dispatcher)
	h.bridge = b
	return h
}

func (h *harness) listen(event string, priority int, name string, fn kernel.Listener) {
	h.dispatcher.AddListener(event, priority, name, fn)
}

func TestBypass(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOptions{script: "/forum/app.php"})

	h.bridge.OnRedirect(legacy.RedirectArgs("index.php", false))
	h.bridge.OnCommon(ctx)
	signal := h.bridge.OnGarbageCollection(ctx)

	assert.Equal(t, legacy.Continue, signal)
	assert.Empty(t, h.dispatcher.dispatched)
	assert.Equal(t, 0, h.stack.Len())
	assert.Empty(t, h.out.Headers())
	assert.Empty(t, h.out.Contents())
	assert.Equal(t, 0, h.exceptions.Depth())

	ev := kernel.NewRequestEvent(nil, h.synthetic, kernel.MainRequest)
	require.NoError(t, h.bridge.StopPropagationRequest(ctx, ev))
	assert.False(t, ev.IsPropagationStopped())
}

func TestBypass_SuffixIsCaseSensitive(t *testing.T) {
	h := newHarness(t, harnessOptions{script: "/forum/APP.php"})
	assert.False(t, h.bridge.Bypassed())

	h = newHarness(t, harnessOptions{script: "/forum/myapp.php"})
	assert.True(t, h.bridge.Bypassed())
}

func TestRequestEmulation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOptions{})

	var seen []string
	var current *kernel.Request
	h.listen(kernel.EventRequest, 200, "early", func(ctx context.Context, ev kernel.Event) error {
		seen = append(seen, "early")
		e := ev.(*kernel.RequestEvent)
		assert.True(t, e.IsMainRequest())
		current = e.Request
		return nil
	})
	h.listen(kernel.EventRequest, 50, "router", func(ctx context.Context, ev kernel.Event) error {
		seen = append(seen, "router")
		return nil
	})

	h.bridge.OnCommon(ctx)

	assert.Equal(t, []string{kernel.EventRequest}, h.dispatcher.dispatched)
	assert.Equal(t, []string{"early"}, seen, "listeners below the guard never run")
	assert.Same(t, h.synthetic, current)
	assert.Same(t, h.synthetic, h.stack.Current())
}

func TestRequestEmulation_SwallowsFailures(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t, harnessOptions{})
	h.listen(kernel.EventRequest, 500, "failing", func(ctx context.Context, ev kernel.Event) error {
		return errors.New("profiler storage down")
	})
	assert.NotPanics(t, func() { h.bridge.OnCommon(ctx) })

	h = newHarness(t, harnessOptions{})
	h.listen(kernel.EventRequest, 500, "panicking", func(ctx context.Context, ev kernel.Event) error {
		panic("collector bug")
	})
	assert.NotPanics(t, func() { h.bridge.OnCommon(ctx) })
	assert.Empty(t, h.uncaught)
}

func TestResponseEmulation_Placeholder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOptions{})

	h.bridge.OnCommon(ctx)
	signal := h.bridge.OnGarbageCollection(ctx)

	assert.Equal(t, legacy.Continue, signal)
	assert.Equal(t, []string{kernel.EventRequest, kernel.EventResponse, kernel.EventTerminate}, h.dispatcher.dispatched)
	assert.Empty(t, h.out.Contents(), "the placeholder itself is never printed")
	assert.Empty(t, h.out.Headers())
	assert.Equal(t, 0, h.stack.Len())
}

func TestResponseEmulation_Body(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOptions{script: "/forum/index.php"})

	h.listen(kernel.EventResponse, -50, "body", func(ctx context.Context, ev kernel.Event) error {
		ev.(*kernel.ResponseEvent).Response.SetContent("<p>hello</p>")
		return nil
	})
	var outputAtTerminate string
	h.listen(kernel.EventTerminate, 0, "observer", func(ctx context.Context, ev kernel.Event) error {
		outputAtTerminate = string(h.out.Contents())
		assert.Equal(t, "<p>hello</p>", ev.(*kernel.TerminateEvent).Response.Content())
		return nil
	})

	h.bridge.OnCommon(ctx)
	signal := h.bridge.OnGarbageCollection(ctx)

	assert.Equal(t, legacy.Continue, signal)
	assert.Equal(t, []string{kernel.EventRequest, kernel.EventResponse, kernel.EventTerminate}, h.dispatcher.dispatched)
	assert.Equal(t, "<p>hello</p>", string(h.out.Contents()))
	assert.Equal(t, "<p>hello</p>", outputAtTerminate, "body is written before terminate")
	assert.Empty(t, h.out.Headers())
}

func TestRedirect_ReturnModeNeverRedirects(t *testing.T) {
	ctx := context.Background()
	for _, software := range []string{"Apache", "Microsoft-IIS/8.5"} {
		h := newHarness(t, harnessOptions{software: software})

		h.bridge.OnCommon(ctx)
		h.hooks.Fire(ctx, legacy.HookRedirect, legacy.RedirectArgs("index.php?a=1&b=2", true))
		signal := h.bridge.OnGarbageCollection(ctx)

		assert.Nil(t, h.bridge.PendingRedirect())
		assert.Equal(t, legacy.Continue, signal)
		assert.Empty(t, h.out.Headers())
		assert.Empty(t, h.out.Contents())
	}
}

func TestRedirect_Location(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOptions{software: "Apache"})

	terminated := false
	h.listen(kernel.EventTerminate, 0, "observer", func(ctx context.Context, ev kernel.Event) error {
		terminated = true
		return nil
	})

	h.bridge.OnCommon(ctx)
	h.hooks.Fire(ctx, legacy.HookRedirect, legacy.RedirectArgs("index.php?a=1&b=2", false))
	signal := h.bridge.OnGarbageCollection(ctx)

	assert.Equal(t, legacy.Halt, signal)
	assert.Equal(t, []string{"Location: index.php?a=1&b=2"}, h.out.Headers())
	assert.Empty(t, h.out.Contents())
	assert.True(t, terminated)
	assert.Equal(t, []string{kernel.EventRequest, kernel.EventResponse, kernel.EventTerminate}, h.dispatcher.dispatched)
	assert.Equal(t, 0, h.stack.Len())
}

func TestRedirect_Refresh(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOptions{software: "Microsoft-IIS/8.5"})

	terminated := false
	h.listen(kernel.EventTerminate, 0, "observer", func(ctx context.Context, ev kernel.Event) error {
		terminated = true
		return nil
	})

	h.bridge.OnCommon(ctx)
	h.bridge.OnRedirect(legacy.RedirectArgs("index.php?a=1&b=2", false))
	signal := h.bridge.OnGarbageCollection(ctx)

	assert.Equal(t, legacy.Halt, signal)
	assert.Equal(t, []string{"Refresh: 0; URL=index.php?a=1&b=2"}, h.out.Headers())
	body := string(h.out.Contents())
	assert.Contains(t, body, `<meta http-equiv="refresh" content="0; url=index.php?a=1&amp;b=2" />`)
	assert.Contains(t, body, `<a href="index.php?a=1&amp;b=2">Redirect</a>`)
	assert.NotContains(t, body, "a=1&b=2")
	assert.True(t, terminated)
}

func TestNeedsRefreshRedirect(t *testing.T) {
	tests := map[string]bool{
		"Microsoft-IIS/10.0": true,
		"WebSTAR/4.5":        true,
		"Xitami":             true,
		"Apache/2.4":         false,
		"nginx":              false,
		"microsoft-iis":      false,
		"":                   false,
	}
	for software, want := range tests {
		assert.Equal(t, want, NeedsRefreshRedirect(software), software)
	}
}

func TestOnRedirect(t *testing.T) {
	t.Run("first redirect is kept", func(t *testing.T) {
		h := newHarness(t, harnessOptions{})

		h.bridge.OnRedirect(legacy.RedirectArgs("https://example.com/", false))
		h.bridge.OnRedirect(legacy.RedirectArgs("index.php", false))

		r := h.bridge.PendingRedirect()
		require.NotNil(t, r)
		assert.Equal(t, "https://example.com/", r.URL)
		assert.True(t, r.External)
	})

	t.Run("empty url is recorded", func(t *testing.T) {
		h := newHarness(t, harnessOptions{})

		h.bridge.OnRedirect(legacy.RedirectArgs("", false))

		r := h.bridge.PendingRedirect()
		require.NotNil(t, r)
		assert.Empty(t, r.URL)
		assert.False(t, r.External)
	})
}

func TestRedirect_EmptyURLHalts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOptions{software: "Apache/2.4"})

	h.bridge.OnCommon(ctx)
	h.bridge.OnRedirect(legacy.RedirectArgs("", false))
	signal := h.bridge.OnGarbageCollection(ctx)

	assert.Equal(t, legacy.Halt, signal)
	assert.Equal(t, []string{"Location: "}, h.out.Headers())
	assert.Empty(t, h.out.Contents())
}

func TestRedirect_FirstRecordedIsEmitted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOptions{software: "Apache/2.4"})

	h.bridge.OnCommon(ctx)
	h.bridge.OnRedirect(legacy.RedirectArgs("a.php", false))
	h.bridge.OnRedirect(legacy.RedirectArgs("b.php", false))
	signal := h.bridge.OnGarbageCollection(ctx)

	assert.Equal(t, legacy.Halt, signal)
	assert.Equal(t, []string{"Location: a.php"}, h.out.Headers())
}

func TestRedirect_LogsExternalTarget(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		url      string
		software string
		external bool
		refresh  bool
	}{
		{"internal location", "index.php", "Apache/2.4", false, false},
		{"external location", "https://example.com/", "nginx", true, false},
		{"external refresh", "https://example.com/", "Microsoft-IIS/8.5", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &recordingLogger{}
			h := newHarness(t, harnessOptions{software: tt.software, logger: logger})

			h.bridge.OnCommon(ctx)
			h.bridge.OnRedirect(legacy.RedirectArgs(tt.url, false))
			require.Equal(t, legacy.Halt, h.bridge.OnGarbageCollection(ctx))

			entry, ok := logger.find("redirect emitted")
			require.True(t, ok)
			assert.Equal(t, []any{"url", tt.url, "external", tt.external, "refresh", tt.refresh}, entry.kv)
		})
	}
}

type recordingDelegate struct {
	calls []string
	err   error
}

func (d *recordingDelegate) OnKernelResponse(ctx context.Context, ev *kernel.ResponseEvent) error {
	d.calls = append(d.calls, "response")
	return d.err
}

func (d *recordingDelegate) OnKernelTerminate(ctx context.Context, ev *kernel.TerminateEvent) error {
	d.calls = append(d.calls, "terminate")
	return nil
}

func TestResponseGuard(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		method      string
		output      string
		wantStopped bool
	}{
		{"post without output", "POST", "", true},
		{"post with output", "POST", "<p>saved</p>", false},
		{"get without output", "GET", "", false},
		{"get with output", "GET", "<p>list</p>", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delegate := &recordingDelegate{}
			h := newHarness(t, harnessOptions{method: tt.method, delegate: delegate})
			_, _ = h.out.WriteString(tt.output)

			toolbarRan := false
			h.listen(kernel.EventResponse, -128, "toolbar", func(ctx context.Context, ev kernel.Event) error {
				toolbarRan = true
				return nil
			})

			h.bridge.OnCommon(ctx)
			h.bridge.OnGarbageCollection(ctx)

			assert.Equal(t, []string{"response", "terminate"}, delegate.calls)
			assert.Equal(t, !tt.wantStopped, toolbarRan)
		})
	}
}

func TestResponseGuard_DelegateErrorStillVetoes(t *testing.T) {
	ctx := context.Background()
	delegate := &recordingDelegate{err: errors.New("collect failed")}
	h := newHarness(t, harnessOptions{method: "POST", delegate: delegate})

	h.bridge.OnCommon(ctx)
	ev := kernel.NewResponseEvent(nil, h.synthetic, kernel.MainRequest, kernel.NewResponse(Placeholder, 0))
	err := h.bridge.OnKernelResponse(ctx, ev)

	assert.Error(t, err)
	assert.True(t, ev.IsPropagationStopped())
}

func TestResponseEmulation_SuppressesFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOptions{software: "Apache"})

	h.listen(kernel.EventResponse, 10, "failing", func(ctx context.Context, ev kernel.Event) error {
		return errors.New("response listener failed")
	})
	h.listen(kernel.EventTerminate, 10, "panicking", func(ctx context.Context, ev kernel.Event) error {
		panic("terminate listener bug")
	})

	h.bridge.OnCommon(ctx)
	h.bridge.OnRedirect(legacy.RedirectArgs("index.php", false))

	var signal legacy.Signal
	assert.NotPanics(t, func() { signal = h.bridge.OnGarbageCollection(ctx) })

	assert.Equal(t, legacy.Halt, signal)
	assert.Equal(t, []string{"Location: index.php"}, h.out.Headers())
	assert.Equal(t, 2, h.bridge.Suppressed())
	assert.Empty(t, h.uncaught, "errors never reach the host handler")
	assert.Equal(t, 0, h.exceptions.Depth(), "previous handler is restored")
	assert.Equal(t, 0, h.stack.Len())

	h.exceptions.Handle(errors.New("later"))
	assert.Len(t, h.uncaught, 1)
}

func TestResponseEmulation_TraceableDispatcher(t *testing.T) {
	ctx := context.Background()
	traceable := kernel.NewTraceableDispatcher(kernel.NewEventDispatcher(), nil)
	h := newHarness(t, harnessOptions{inner: traceable})

	h.bridge.OnCommon(ctx)
	signal := h.bridge.OnGarbageCollection(ctx)

	assert.Equal(t, legacy.Continue, signal)
	assert.Equal(t, 1, h.bridge.Suppressed(), "terminate after response stops the section twice")
	assert.Empty(t, h.uncaught)

	var names []string
	for _, c := range traceable.CalledListeners() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"bridge.stop_propagation_request", "bridge.response", "bridge.terminate"}, names)
}

func TestLifecycleThroughHooks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOptions{software: "Apache"})

	assert.Equal(t, 1, h.hooks.Count(legacy.HookCommon))
	assert.Equal(t, 1, h.hooks.Count(legacy.HookGarbageCollection))
	assert.Equal(t, 1, h.hooks.Count(legacy.HookRedirect))

	assert.Equal(t, legacy.Continue, h.hooks.Fire(ctx, legacy.HookCommon, nil))
	h.hooks.Fire(ctx, legacy.HookRedirect, legacy.RedirectArgs("viewtopic.php?t=1", false))
	assert.Equal(t, legacy.Halt, h.hooks.Fire(ctx, legacy.HookGarbageCollection, nil))
	assert.Equal(t, []string{"Location: viewtopic.php?t=1"}, h.out.Headers())
}

func TestResponseEmulation_WithoutRequestEmulation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessOptions{})

	var got *kernel.Request
	h.listen(kernel.EventResponse, 0, "observer", func(ctx context.Context, ev kernel.Event) error {
		got = ev.(*kernel.ResponseEvent).Request
		return nil
	})

	assert.Equal(t, legacy.Continue, h.bridge.OnGarbageCollection(ctx))
	assert.Same(t, h.synthetic, got, "falls back to the synthetic request")
	assert.Equal(t, 0, h.stack.Len())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{
		Request:          legacy.ServerVars{},
		SyntheticRequest: kernel.NewRequest("GET", "/"),
		Dispatcher:       kernel.NewEventDispatcher(),
	})
	assert.EqualError(t, err, "bridge: output is required")
}
