package legacy

import (
	"context"
	"errors"
	"fmt"
)

// ErrRedirect is returned by Page.Redirect. A page returns it to tell the
// host it stopped rendering because of a redirect.
var ErrRedirect = errors.New("legacy: redirect")

// Page is what a legacy page script sees: its output, its server variables
// and the host hooks.
type Page struct {
	ctx    context.Context
	hooks  *Hooks
	out    Output
	server RequestAccessor
}

// NewPage binds a page to a request's hooks, output and server variables.
func NewPage(ctx context.Context, hooks *Hooks, out Output, server RequestAccessor) *Page {
	return &Page{ctx: ctx, hooks: hooks, out: out, server: server}
}

// Context returns the request context.
func (p *Page) Context() context.Context { return p.ctx }

// Server returns a server variable.
func (p *Page) Server(key string) string { return p.server.Server(key) }

// Method returns the request method.
func (p *Page) Method() string { return p.server.Server("REQUEST_METHOD") }

// Echo appends s to the page output.
func (p *Page) Echo(s string) {
	_, _ = p.out.Write([]byte(s))
}

// Echof appends formatted text to the page output.
func (p *Page) Echof(format string, args ...any) {
	p.Echo(fmt.Sprintf(format, args...))
}

// Header sends a raw header line.
func (p *Page) Header(line string) { p.out.Header(line) }

// Redirect announces a redirect to url and returns ErrRedirect. The page
// must stop rendering and return the error.
func (p *Page) Redirect(url string) error {
	p.hooks.Fire(p.ctx, HookRedirect, RedirectArgs(url, false))
	return ErrRedirect
}

// RedirectURL runs the redirect hook in "return" mode and hands url back
// without redirecting.
func (p *Page) RedirectURL(url string) string {
	p.hooks.Fire(p.ctx, HookRedirect, RedirectArgs(url, true))
	return url
}
