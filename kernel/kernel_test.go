package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKernelHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("runs the controller and the response listeners", func(t *testing.T) {
		d := NewEventDispatcher()
		d.AddListener(EventResponse, 0, "decorate", func(ctx context.Context, ev Event) error {
			e := ev.(*ResponseEvent)
			e.Response.Header.Set("X-Seen", "yes")
			return nil
		})
		k := NewKernel(d, func(ctx context.Context, req *Request) (*Response, error) {
			return NewResponse("<p>"+req.Path+"</p>", 0), nil
		})

		req := NewRequest("GET", "/app.php/hello")
		resp, err := k.Handle(ctx, req, MainRequest)
		require.NoError(t, err)
		assert.Equal(t, "<p>/app.php/hello</p>", resp.Content())
		assert.Equal(t, "yes", resp.Header.Get("X-Seen"))

		v, ok := req.Attribute(AttrNativeTerminate)
		assert.True(t, ok)
		assert.Equal(t, true, v)
	})

	t.Run("request listener short-circuits the controller", func(t *testing.T) {
		d := NewEventDispatcher()
		d.AddListener(EventRequest, 0, "cache", func(ctx context.Context, ev Event) error {
			ev.(*RequestEvent).SetResponse(NewResponse("cached", 0))
			return nil
		})
		called := false
		k := NewKernel(d, func(ctx context.Context, req *Request) (*Response, error) {
			called = true
			return NewResponse("fresh", 0), nil
		})

		resp, err := k.Handle(ctx, NewRequest("GET", "/"), MainRequest)
		require.NoError(t, err)
		assert.Equal(t, "cached", resp.Content())
		assert.False(t, called)
	})

	t.Run("missing controller is an error", func(t *testing.T) {
		k := NewKernel(NewEventDispatcher(), nil)
		_, err := k.Handle(ctx, NewRequest("GET", "/"), MainRequest)
		assert.Error(t, err)
	})
}

func TestTraceableDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("records called listeners", func(t *testing.T) {
		d := NewTraceableDispatcher(NewEventDispatcher(), nil)
		d.AddListener(EventRequest, 100, "guard", func(ctx context.Context, ev Event) error {
			ev.StopPropagation()
			return nil
		})
		d.AddListener(EventRequest, 0, "router", func(ctx context.Context, ev Event) error { return nil })

		require.NoError(t, d.Dispatch(ctx, EventRequest, NewRequestEvent(nil, NewRequest("GET", "/"), MainRequest)))

		called := d.CalledListeners()
		require.Len(t, called, 1)
		assert.Equal(t, "guard", called[0].Name)
		assert.True(t, called[0].Stopped)
	})

	t.Run("emulated terminate stops an already stopped section", func(t *testing.T) {
		d := NewTraceableDispatcher(NewEventDispatcher(), nil)
		req := NewRequest("GET", "/index.php")
		req.ID = "req-1"
		resp := NewResponse("", 0)

		require.NoError(t, d.Dispatch(ctx, EventRequest, NewRequestEvent(nil, req, MainRequest)))
		require.NoError(t, d.Dispatch(ctx, EventResponse, NewResponseEvent(nil, req, MainRequest, resp)))
		err := d.Dispatch(ctx, EventTerminate, NewTerminateEvent(nil, req, resp))
		assert.ErrorIs(t, err, ErrSectionStopped)
	})

	t.Run("native kernel reopens the section before terminate", func(t *testing.T) {
		d := NewTraceableDispatcher(NewEventDispatcher(), nil)
		k := NewKernel(d, func(ctx context.Context, req *Request) (*Response, error) {
			return NewResponse("ok", 0), nil
		})
		req := NewRequest("GET", "/app.php")
		req.ID = "req-2"

		resp, err := k.Handle(ctx, req, MainRequest)
		require.NoError(t, err)
		require.NoError(t, k.Terminate(ctx, req, resp))

		sec, ok := d.Stopwatch().Section("req-2")
		require.True(t, ok)
		assert.False(t, sec.Open)
	})

	t.Run("stopping an unknown section fails", func(t *testing.T) {
		sw := NewStopwatch()
		assert.ErrorIs(t, sw.StopSection("nope"), ErrSectionNotOpen)
		sw.OpenSection("a")
		require.NoError(t, sw.StopSection("a"))
		assert.ErrorIs(t, sw.StopSection("a"), ErrSectionStopped)
		sw.Forget("a")
		_, ok := sw.Section("a")
		assert.False(t, ok)
	})
}
