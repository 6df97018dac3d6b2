// Package bridge lets a legacy page lifecycle drive the kernel event
// pipeline. The host's hooks are translated into kernel events:
//
//	core.common             -> kernel.request
//	core.garbage_collection -> kernel.response, then kernel.terminate
//	core.functions.redirect -> records the redirect emitted at the end
//
// Controller resolution and toolbar injection are kept out of the emulated
// lifecycle. Requests served by the native front controller are left alone.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/karloscodes/webprofiler"
	"github.com/karloscodes/webprofiler/kernel"
	"github.com/karloscodes/webprofiler/legacy"
)

// Placeholder is the body of the emulated response before listeners run.
const Placeholder = "<html><body></body></html>"

// DefaultFrontController is the script name suffix of the native front
// controller.
const DefaultFrontController = "app.php"

// Subscription priorities.
const (
	PriorityCommon            = 1000
	PriorityGarbageCollection = 1000
	PriorityRedirect          = 0
	PriorityRequestGuard      = 100
	PriorityResponse          = -100
	PriorityTerminate         = -1024
)

// Delegate is the profiler behavior the bridge wraps on kernel.response and
// kernel.terminate.
type Delegate interface {
	OnKernelResponse(ctx context.Context, ev *kernel.ResponseEvent) error
	OnKernelTerminate(ctx context.Context, ev *kernel.TerminateEvent) error
}

// Redirect is a redirect requested by the page.
type Redirect struct {
	URL      string
	External bool
}

// Options configures a Bridge. Request, SyntheticRequest, Dispatcher and
// Output are required.
type Options struct {
	// Request reads the legacy request's server variables.
	Request legacy.RequestAccessor

	// SyntheticRequest is pushed on Stack while the page is emulated.
	SyntheticRequest *kernel.Request
	Stack            *kernel.RequestStack

	Dispatcher kernel.Dispatcher
	Kernel     kernel.HTTPKernel

	// Output receives redirect headers and the final response body.
	Output legacy.Output

	// Exceptions is the host's uncaught-error handler.
	Exceptions *legacy.ExceptionHandlers

	Delegate Delegate

	// ServerSoftware reports the web server. Defaults to $SERVER_SOFTWARE.
	ServerSoftware func() string

	// FrontController defaults to DefaultFrontController.
	FrontController string

	Logger webprofiler.Logger
}

// Bridge emulates the kernel lifecycle for one legacy request. It is not
// safe for concurrent use; the host creates one per request.
type Bridge struct {
	request         legacy.RequestAccessor
	synthetic       *kernel.Request
	stack           *kernel.RequestStack
	dispatcher      kernel.Dispatcher
	kernel          kernel.HTTPKernel
	output          legacy.Output
	exceptions      *legacy.ExceptionHandlers
	delegate        Delegate
	serverSoftware  func() string
	frontController string
	logger          webprofiler.Logger

	redirect   *Redirect
	pushed     bool
	suppressed int
}

// New creates a bridge.
func New(opts Options) (*Bridge, error) {
	switch {
	case opts.Request == nil:
		return nil, errors.New("bridge: request accessor is required")
	case opts.SyntheticRequest == nil:
		return nil, errors.New("bridge: synthetic request is required")
	case opts.Dispatcher == nil:
		return nil, errors.New("bridge: dispatcher is required")
	case opts.Output == nil:
		return nil, errors.New("bridge: output is required")
	}

	b := &Bridge{
		request:         opts.Request,
		synthetic:       opts.SyntheticRequest,
		stack:           opts.Stack,
		dispatcher:      opts.Dispatcher,
		kernel:          opts.Kernel,
		output:          opts.Output,
		exceptions:      opts.Exceptions,
		delegate:        opts.Delegate,
		serverSoftware:  opts.ServerSoftware,
		frontController: opts.FrontController,
		logger:          opts.Logger,
	}
	if b.stack == nil {
		b.stack = kernel.NewRequestStack()
	}
	if b.exceptions == nil {
		b.exceptions = legacy.NewExceptionHandlers(nil)
	}
	if b.serverSoftware == nil {
		b.serverSoftware = func() string { return os.Getenv("SERVER_SOFTWARE") }
	}
	if b.frontController == "" {
		b.frontController = DefaultFrontController
	}
	if b.logger == nil {
		b.logger = webprofiler.NopLogger{}
	}
	return b, nil
}

// Bypassed reports whether the native front controller serves the request,
// in which case nothing is emulated.
func (b *Bridge) Bypassed() bool {
	return strings.HasSuffix(b.request.Server("SCRIPT_NAME"), b.frontController)
}

// OnCommon emulates kernel.request. Failures are dropped: the page renders
// whatever happens to the instrumentation.
func (b *Bridge) OnCommon(ctx context.Context) {
	if b.Bypassed() {
		return
	}

	if !b.pushed {
		b.stack.Push(b.synthetic)
		b.pushed = true
	}

	ev := kernel.NewRequestEvent(b.kernel, b.stack.Current(), kernel.MainRequest)
	if err := capture(func() error {
		return b.dispatcher.Dispatch(ctx, kernel.EventRequest, ev)
	}); err != nil {
		b.logger.Debug("request emulation failed", "error", err)
	}
}

// OnGarbageCollection emulates kernel.response and kernel.terminate at the
// end of the page. It returns legacy.Halt after emitting a redirect.
//
// While it runs, errors from the dispatcher go to a discarding exception
// handler: a traceable dispatcher fails when terminate follows response
// outside the kernel's own loop. The previous handler is always restored.
func (b *Bridge) OnGarbageCollection(ctx context.Context) (signal legacy.Signal) {
	if b.Bypassed() {
		return legacy.Continue
	}

	restore := b.exceptions.Set(legacy.Discard)
	defer restore()
	defer b.popSynthetic()
	defer func() {
		if r := recover(); r != nil {
			b.suppress(fmt.Errorf("bridge: panic: %v", r))
		}
	}()

	signal = legacy.Continue
	resp := kernel.NewResponse(Placeholder, http.StatusOK)
	b.dispatch(ctx, kernel.EventResponse, kernel.NewResponseEvent(b.kernel, b.currentRequest(), kernel.MainRequest, resp))

	if b.redirect != nil {
		signal = legacy.Halt
		b.emitRedirect(b.redirect)
		b.dispatch(ctx, kernel.EventTerminate, kernel.NewTerminateEvent(b.kernel, b.currentRequest(), resp))
		return signal
	}

	if content := resp.Content(); content != Placeholder {
		_, _ = b.output.Write([]byte(content))
	}
	b.dispatch(ctx, kernel.EventTerminate, kernel.NewTerminateEvent(b.kernel, b.currentRequest(), resp))
	return signal
}

// StopPropagationRequest keeps controller resolution away from emulated
// requests.
func (b *Bridge) StopPropagationRequest(_ context.Context, ev *kernel.RequestEvent) error {
	if !b.Bypassed() {
		ev.StopPropagation()
	}
	return nil
}

// OnKernelResponse runs the profiler, then keeps the toolbar out of POST
// responses that produced no output.
func (b *Bridge) OnKernelResponse(ctx context.Context, ev *kernel.ResponseEvent) error {
	var err error
	if b.delegate != nil {
		err = b.delegate.OnKernelResponse(ctx, ev)
	}

	req := b.stack.Current()
	if req == nil {
		req = ev.Request
	}
	if req != nil && req.IsMethod(http.MethodPost) && len(b.output.Contents()) == 0 {
		ev.StopPropagation()
	}
	return err
}

// OnKernelTerminate hands terminate over to the profiler.
func (b *Bridge) OnKernelTerminate(ctx context.Context, ev *kernel.TerminateEvent) error {
	if b.delegate == nil {
		return nil
	}
	return b.delegate.OnKernelTerminate(ctx, ev)
}

// OnRedirect records the redirect the page is about to perform. Calls made
// only to compute a URL (return=true) are ignored, as is any call after the
// first recorded redirect. An empty URL is recorded like any other.
func (b *Bridge) OnRedirect(args legacy.Args) {
	if args.Bool("return") || b.redirect != nil {
		return
	}
	url := args.String("url")
	b.redirect = &Redirect{URL: url, External: strings.Contains(url, "://")}
}

// PendingRedirect returns the recorded redirect, nil if none.
func (b *Bridge) PendingRedirect() *Redirect { return b.redirect }

// Suppressed returns how many errors the emulation swallowed.
func (b *Bridge) Suppressed() int { return b.suppressed }

func (b *Bridge) dispatch(ctx context.Context, name string, ev kernel.Event) {
	if err := capture(func() error {
		return b.dispatcher.Dispatch(ctx, name, ev)
	}); err != nil {
		b.suppress(err)
	}
}

func (b *Bridge) suppress(err error) {
	b.suppressed++
	b.exceptions.Handle(err)
}

func (b *Bridge) currentRequest() *kernel.Request {
	if req := b.stack.Current(); req != nil {
		return req
	}
	return b.synthetic
}

func (b *Bridge) popSynthetic() {
	if b.pushed && b.stack.Current() == b.synthetic {
		b.stack.Pop()
		b.pushed = false
	}
}

// capture runs fn, turning a panic into an error.
func capture(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bridge: panic: %v", r)
		}
	}()
	return fn()
}
