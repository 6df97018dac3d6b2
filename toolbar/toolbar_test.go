package toolbar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/webprofiler/kernel"
	"github.com/karloscodes/webprofiler/profiler"
)

func responseEvent(content string, token string, typ kernel.RequestType) *kernel.ResponseEvent {
	resp := kernel.NewResponse(content, 0)
	if token != "" {
		resp.Header.Set(profiler.HeaderToken, token)
	}
	return kernel.NewResponseEvent(nil, kernel.NewRequest("GET", "/index.php"), typ, resp)
}

func TestListener(t *testing.T) {
	ctx := context.Background()
	l := New("")

	t.Run("injects before closing body", func(t *testing.T) {
		ev := responseEvent("<html><body></body></html>", "abc", kernel.MainRequest)
		require.NoError(t, l.OnKernelResponse(ctx, ev))
		assert.Equal(t,
			`<html><body><div id="webprofiler-toolbar" data-token="abc"><a href="/_profiler/abc">profile abc</a></div></body></html>`,
			ev.Response.Content())
	})

	t.Run("skips responses without token", func(t *testing.T) {
		ev := responseEvent("<html><body></body></html>", "", kernel.MainRequest)
		require.NoError(t, l.OnKernelResponse(ctx, ev))
		assert.Equal(t, "<html><body></body></html>", ev.Response.Content())
	})

	t.Run("skips sub-requests, redirects and non-html", func(t *testing.T) {
		sub := responseEvent("<body></body>", "abc", kernel.SubRequest)
		require.NoError(t, l.OnKernelResponse(ctx, sub))
		assert.Equal(t, "<body></body>", sub.Response.Content())

		redirect := responseEvent("<body></body>", "abc", kernel.MainRequest)
		redirect.Response.StatusCode = 302
		require.NoError(t, l.OnKernelResponse(ctx, redirect))
		assert.Equal(t, "<body></body>", redirect.Response.Content())

		jsonResp := responseEvent(`{"a":1}`, "abc", kernel.MainRequest)
		jsonResp.Response.Header.Set("Content-Type", "application/json")
		require.NoError(t, l.OnKernelResponse(ctx, jsonResp))
		assert.Equal(t, `{"a":1}`, jsonResp.Response.Content())
	})

	t.Run("appends when there is no body tag", func(t *testing.T) {
		assert.Equal(t, "<p>x</p>[tb]", Inject("<p>x</p>", "[tb]"))
	})
}
