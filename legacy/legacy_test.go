package legacy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks(t *testing.T) {
	ctx := context.Background()

	t.Run("fires by priority", func(t *testing.T) {
		h := NewHooks()
		var calls []string
		h.Subscribe(HookCommon, 0, func(ctx context.Context, args Args) Signal {
			calls = append(calls, "zero")
			return Continue
		})
		h.Subscribe(HookCommon, 1000, func(ctx context.Context, args Args) Signal {
			calls = append(calls, "thousand")
			return Continue
		})

		assert.Equal(t, Continue, h.Fire(ctx, HookCommon, nil))
		assert.Equal(t, []string{"thousand", "zero"}, calls)
		assert.Equal(t, 2, h.Count(HookCommon))
	})

	t.Run("halt ends the run", func(t *testing.T) {
		h := NewHooks()
		ran := false
		h.Subscribe(HookGarbageCollection, 10, func(ctx context.Context, args Args) Signal { return Halt })
		h.Subscribe(HookGarbageCollection, 0, func(ctx context.Context, args Args) Signal {
			ran = true
			return Continue
		})

		assert.Equal(t, Halt, h.Fire(ctx, HookGarbageCollection, nil))
		assert.False(t, ran)
		assert.Equal(t, "halt", Halt.String())
	})

	t.Run("passes arguments", func(t *testing.T) {
		h := NewHooks()
		var got Args
		h.Subscribe(HookRedirect, 0, func(ctx context.Context, args Args) Signal {
			got = args
			return Continue
		})
		h.Fire(ctx, HookRedirect, RedirectArgs("index.php", true))
		assert.Equal(t, "index.php", got.String("url"))
		assert.True(t, got.Bool("return"))
		assert.False(t, got.Bool("missing"))
	})
}

func TestBuffer(t *testing.T) {
	b := NewBuffer()
	defer b.Release()

	b.Header("Location: index.php")
	b.Header("Refresh: 0; URL=viewtopic.php")
	_, _ = b.WriteString("<p>")
	_, _ = b.Write([]byte("hi</p>"))

	assert.Equal(t, "<p>hi</p>", string(b.Contents()))
	assert.Equal(t, 9, b.Len())
	assert.Equal(t, []string{"Location: index.php", "Refresh: 0; URL=viewtopic.php"}, b.Headers())

	v, ok := b.HeaderValue("refresh")
	require.True(t, ok)
	assert.Equal(t, "0; URL=viewtopic.php", v)
	_, ok = b.HeaderValue("X-Missing")
	assert.False(t, ok)
}

func TestExceptionHandlers(t *testing.T) {
	var fallback []error
	e := NewExceptionHandlers(func(err error) { fallback = append(fallback, err) })

	e.Handle(errors.New("first"))
	require.Len(t, fallback, 1)

	var scoped []error
	restore := e.Set(func(err error) { scoped = append(scoped, err) })
	e.Handle(errors.New("second"))
	assert.Len(t, scoped, 1)
	assert.Len(t, fallback, 1)
	assert.Equal(t, 1, e.Depth())

	restore()
	restore()
	assert.Equal(t, 0, e.Depth())
	e.Handle(errors.New("third"))
	assert.Len(t, fallback, 2)

	e.Handle(nil)
	assert.Len(t, fallback, 2)
}

func TestPageRedirect(t *testing.T) {
	ctx := context.Background()
	h := NewHooks()
	var seen []Args
	h.Subscribe(HookRedirect, 0, func(ctx context.Context, args Args) Signal {
		seen = append(seen, args)
		return Continue
	})

	b := NewBuffer()
	defer b.Release()
	p := NewPage(ctx, h, b, ServerVars{"REQUEST_METHOD": "GET"})

	assert.Equal(t, "viewforum.php?f=2", p.RedirectURL("viewforum.php?f=2"))
	err := p.Redirect("index.php")
	assert.ErrorIs(t, err, ErrRedirect)

	require.Len(t, seen, 2)
	assert.True(t, seen[0].Bool("return"))
	assert.False(t, seen[1].Bool("return"))
	assert.Equal(t, "index.php", seen[1].String("url"))

	p.Echof("<b>%d</b>", 3)
	assert.Equal(t, "<b>3</b>", string(b.Contents()))
	assert.Equal(t, "GET", p.Method())
}
