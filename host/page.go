package host

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/karloscodes/webprofiler/bridge"
	"github.com/karloscodes/webprofiler/kernel"
	"github.com/karloscodes/webprofiler/legacy"
	"github.com/karloscodes/webprofiler/profiler"
	"github.com/karloscodes/webprofiler/toolbar"
)

// PageFunc renders a legacy page. Returning legacy.ErrRedirect after
// Page.Redirect is the normal way to leave a page early.
type PageFunc func(p *legacy.Page) error

// Controller is the native front controller.
type Controller = kernel.Controller

// Request modes reported in metrics.
const (
	ModeEmulated = "emulated"
	ModeBypassed = "bypassed"
	ModeNative   = "native"
)

// pipeline is the per-request set of pipeline objects.
type pipeline struct {
	dispatcher *kernel.TraceableDispatcher
	stack      *kernel.RequestStack
	profiler   *profiler.Listener

	// response is the last response seen on kernel.terminate.
	response *kernel.Response
}

func (s *Server) newPipeline() *pipeline {
	td := kernel.NewTraceableDispatcher(kernel.NewEventDispatcher(), s.stopwatch)
	p := &pipeline{
		dispatcher: td,
		stack:      kernel.NewRequestStack(),
	}

	if s.cfg.Config.ProfilerEnabled {
		p.profiler = profiler.NewListener(profiler.Options{
			Storage:          s.storage,
			OnlyMainRequests: s.cfg.Config.ProfilerOnlyMain,
			Tracer:           td,
			Stopwatch:        td.Stopwatch(),
			LinkPrefix:       ProfilerPrefix,
			Logger:           s.logger,
		})
		if s.cfg.Config.ToolbarEnabled {
			kernel.AddSubscriber(td, toolbar.New(ProfilerPrefix))
		}
	}

	td.AddListener(kernel.EventTerminate, 2048, "host.capture", func(_ context.Context, ev kernel.Event) error {
		if e, ok := ev.(*kernel.TerminateEvent); ok {
			p.response = e.Response
		}
		return nil
	})
	return p
}

// delegate returns the profiler as a bridge delegate, nil when disabled.
func (p *pipeline) delegate() bridge.Delegate {
	if p.profiler == nil {
		return nil
	}
	return p.profiler
}

func (s *Server) servePage(page PageFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		ctx := c.UserContext()

		vars := s.serverVars(c)
		out := legacy.NewBuffer()
		defer out.Release()
		hooks := legacy.NewHooks()
		pl := s.newPipeline()
		synthetic := newKernelRequest(c)
		defer s.stopwatch.Forget(synthetic.ID)
		exceptions := legacy.NewExceptionHandlers(func(err error) {
			s.logger.Error("uncaught page error", "error", err, "path", c.Path())
		})

		b, err := bridge.New(bridge.Options{
			Request:          vars,
			SyntheticRequest: synthetic,
			Stack:            pl.stack,
			Dispatcher:       pl.dispatcher,
			Kernel:           kernel.NewKernel(pl.dispatcher, nil),
			Output:           out,
			Exceptions:       exceptions,
			Delegate:         pl.delegate(),
			ServerSoftware:   func() string { return vars.Server("SERVER_SOFTWARE") },
			FrontController:  s.frontController(),
			Logger:           s.logger,
		})
		if err != nil {
			return fmt.Errorf("host: bridge: %w", err)
		}
		b.Register(hooks, pl.dispatcher)

		mode := ModeEmulated
		if b.Bypassed() {
			mode = ModeBypassed
		}

		signal := hooks.Fire(ctx, legacy.HookCommon, nil)
		if signal == legacy.Continue {
			if err := page(legacy.NewPage(ctx, hooks, out, vars)); err != nil && !errors.Is(err, legacy.ErrRedirect) {
				s.metrics.observePage(mode, legacy.Continue, b.Suppressed(), time.Since(start))
				return err
			}
			signal = hooks.Fire(ctx, legacy.HookGarbageCollection, nil)
		}

		if b.Suppressed() > 0 {
			s.logger.Debug("pipeline errors suppressed", "count", b.Suppressed(), "path", c.Path())
		}
		s.metrics.observePage(mode, signal, b.Suppressed(), time.Since(start))
		return writeLegacyResponse(c, out, pl.response)
	}
}

func (s *Server) serveNative(controller Controller) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		ctx := c.UserContext()

		pl := s.newPipeline()
		if pl.profiler != nil {
			kernel.AddSubscriber(pl.dispatcher, pl.profiler)
		}
		k := kernel.NewKernel(pl.dispatcher, controller)

		req := newKernelRequest(c)
		pl.stack.Push(req)
		defer pl.stack.Pop()
		defer s.stopwatch.Forget(req.ID)

		resp, err := k.Handle(ctx, req, kernel.MainRequest)
		if err != nil {
			s.metrics.observePage(ModeNative, legacy.Continue, 0, time.Since(start))
			return err
		}
		writeKernelResponse(c, resp)

		if err := k.Terminate(ctx, req, resp); err != nil {
			s.logger.Warn("terminate failed", "error", err, "path", c.Path())
		}
		s.metrics.observePage(ModeNative, legacy.Continue, 0, time.Since(start))
		return nil
	}
}

// serverVars exposes the request the way legacy pages read it.
func (s *Server) serverVars(c *fiber.Ctx) legacy.ServerVars {
	return legacy.ServerVars{
		"SCRIPT_NAME":           c.Path(),
		"REQUEST_METHOD":        c.Method(),
		"REQUEST_URI":           c.OriginalURL(),
		"QUERY_STRING":          string(c.Request().URI().QueryString()),
		"REMOTE_ADDR":           c.IP(),
		"HTTP_HOST":             c.Hostname(),
		"HTTP_X_REQUESTED_WITH": c.Get("X-Requested-With"),
		"SERVER_SOFTWARE":       s.cfg.Config.ServerSoftware,
	}
}

func newKernelRequest(c *fiber.Ctx) *kernel.Request {
	req := kernel.NewRequest(c.Method(), c.OriginalURL())
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		req.ID = id
	} else {
		req.ID = uuid.NewString()
	}
	req.ClientIP = c.IP()
	for k, v := range c.GetReqHeaders() {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}
	return req
}

// writeLegacyResponse turns buffered header lines and output into the HTTP
// response. A Location header makes it a 302.
func writeLegacyResponse(c *fiber.Ctx, out *legacy.Buffer, resp *kernel.Response) error {
	status := fiber.StatusOK
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)

	for _, line := range out.Headers() {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if strings.EqualFold(name, fiber.HeaderLocation) {
			status = fiber.StatusFound
		}
		c.Set(name, strings.TrimSpace(value))
	}

	if resp != nil {
		copyDebugHeaders(c, resp)
	}
	return c.Status(status).Send(out.Contents())
}

func writeKernelResponse(c *fiber.Ctx, resp *kernel.Response) {
	for name, values := range resp.Header {
		for _, v := range values {
			c.Append(name, v)
		}
	}
	if resp.Header.Get(fiber.HeaderContentType) == "" {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	}
	c.Status(resp.StatusCode)
	c.Context().SetBodyString(resp.Content())
}

func copyDebugHeaders(c *fiber.Ctx, resp *kernel.Response) {
	for _, h := range []string{profiler.HeaderToken, profiler.HeaderTokenLink} {
		if v := resp.Header.Get(h); v != "" {
			c.Set(h, v)
		}
	}
}
