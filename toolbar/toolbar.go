// Package toolbar injects the debug toolbar into profiled HTML responses.
package toolbar

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/karloscodes/webprofiler/kernel"
	"github.com/karloscodes/webprofiler/profiler"
)

// Priority runs the toolbar after the profiler has tagged the response.
const Priority = -128

// Listener appends toolbar markup before the closing body tag.
type Listener struct {
	// ProfilerPrefix is where the toolbar links to. Defaults to "/_profiler/".
	ProfilerPrefix string
}

// New creates a toolbar listener.
func New(profilerPrefix string) *Listener {
	if profilerPrefix == "" {
		profilerPrefix = "/_profiler/"
	}
	return &Listener{ProfilerPrefix: profilerPrefix}
}

// OnKernelResponse injects the toolbar into main, non-redirect HTML
// responses carrying a profile token.
func (l *Listener) OnKernelResponse(_ context.Context, ev *kernel.ResponseEvent) error {
	resp := ev.Response
	if !ev.IsMainRequest() || resp == nil || resp.IsRedirection() || !resp.IsHTML() {
		return nil
	}
	token := resp.Header.Get(profiler.HeaderToken)
	if token == "" {
		return nil
	}
	if req := ev.Request; req != nil && req.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return nil
	}

	resp.SetContent(Inject(resp.Content(), l.Markup(token)))
	return nil
}

// Markup renders the toolbar for token.
func (l *Listener) Markup(token string) string {
	t := html.EscapeString(token)
	return fmt.Sprintf(`<div id="webprofiler-toolbar" data-token="%s"><a href="%s%s">profile %s</a></div>`,
		t, html.EscapeString(l.ProfilerPrefix), t, t)
}

// Inject inserts markup before the last </body>, or appends it when the
// content has none.
func Inject(content, markup string) string {
	idx := strings.LastIndex(content, "</body>")
	if idx < 0 {
		return content + markup
	}
	return content[:idx] + markup + content[idx:]
}

// SubscribedEvents implements kernel.Subscriber.
func (l *Listener) SubscribedEvents() []kernel.Subscription {
	return []kernel.Subscription{{
		Event: kernel.EventResponse, Name: "toolbar.inject", Priority: Priority,
		Listener: func(ctx context.Context, ev kernel.Event) error {
			if e, ok := ev.(*kernel.ResponseEvent); ok {
				return l.OnKernelResponse(ctx, e)
			}
			return nil
		},
	}}
}
