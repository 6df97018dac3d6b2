// Package legacy models the host application's side of the bridge: named
// lifecycle hooks fired synchronously, the server variables of the current
// request, buffered page output and the uncaught-error handler.
package legacy

import (
	"context"
	"sort"
	"sync"
)

// Hook names fired by the host.
const (
	HookCommon            = "core.common"
	HookGarbageCollection = "core.garbage_collection"
	HookRedirect          = "core.functions.redirect"
)

// Signal tells the host whether to keep running the page.
type Signal int

const (
	// Continue lets the host carry on.
	Continue Signal = iota
	// Halt ends the page: nothing else is rendered or run.
	Halt
)

func (s Signal) String() string {
	if s == Halt {
		return "halt"
	}
	return "continue"
}

// Args are the named parameters passed to a hook.
type Args map[string]any

// Bool returns the boolean argument key, false when absent.
func (a Args) Bool(key string) bool {
	v, _ := a[key].(bool)
	return v
}

// String returns the string argument key, "" when absent.
func (a Args) String(key string) string {
	v, _ := a[key].(string)
	return v
}

// RedirectArgs builds the arguments of HookRedirect. ret is true when the
// caller only wants the computed URL back.
func RedirectArgs(url string, ret bool) Args {
	return Args{"url": url, "return": ret}
}

// HookFunc handles a fired hook.
type HookFunc func(ctx context.Context, args Args) Signal

// Subscription binds a handler to a hook name. Higher priorities run first.
type Subscription struct {
	Hook     string
	Priority int
	Handler  HookFunc
}

type registeredHook struct {
	Subscription
	seq int
}

// Hooks is the host's hook registry.
type Hooks struct {
	mu    sync.RWMutex
	hooks map[string][]registeredHook
	seq   int
}

// NewHooks creates an empty registry.
func NewHooks() *Hooks {
	return &Hooks{hooks: make(map[string][]registeredHook)}
}

// Subscribe registers fn for hook at priority.
func (h *Hooks) Subscribe(hook string, priority int, fn HookFunc) {
	if fn == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	list := append(h.hooks[hook], registeredHook{
		Subscription: Subscription{Hook: hook, Priority: priority, Handler: fn},
		seq:          h.seq,
	})
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority > list[j].Priority
		}
		return list[i].seq < list[j].seq
	})
	h.hooks[hook] = list
}

// Fire runs the handlers of hook in priority order. The first handler that
// returns Halt ends the run and Fire returns Halt.
func (h *Hooks) Fire(ctx context.Context, hook string, args Args) Signal {
	h.mu.RLock()
	list := make([]registeredHook, len(h.hooks[hook]))
	copy(list, h.hooks[hook])
	h.mu.RUnlock()

	if args == nil {
		args = Args{}
	}
	for _, r := range list {
		if r.Handler(ctx, args) == Halt {
			return Halt
		}
	}
	return Continue
}

// Count returns the number of handlers registered for hook.
func (h *Hooks) Count(hook string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.hooks[hook])
}
