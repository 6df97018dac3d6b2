package bridge

import (
	"context"

	"github.com/karloscodes/webprofiler/kernel"
	"github.com/karloscodes/webprofiler/legacy"
)

// SubscribedEvents implements kernel.Subscriber.
func (b *Bridge) SubscribedEvents() []kernel.Subscription {
	return []kernel.Subscription{
		{
			Event: kernel.EventRequest, Name: "bridge.stop_propagation_request", Priority: PriorityRequestGuard,
			Listener: func(ctx context.Context, ev kernel.Event) error {
				if e, ok := ev.(*kernel.RequestEvent); ok {
					return b.StopPropagationRequest(ctx, e)
				}
				return nil
			},
		},
		{
			Event: kernel.EventResponse, Name: "bridge.response", Priority: PriorityResponse,
			Listener: func(ctx context.Context, ev kernel.Event) error {
				if e, ok := ev.(*kernel.ResponseEvent); ok {
					return b.OnKernelResponse(ctx, e)
				}
				return nil
			},
		},
		{
			Event: kernel.EventTerminate, Name: "bridge.terminate", Priority: PriorityTerminate,
			Listener: func(ctx context.Context, ev kernel.Event) error {
				if e, ok := ev.(*kernel.TerminateEvent); ok {
					return b.OnKernelTerminate(ctx, e)
				}
				return nil
			},
		},
	}
}

// SubscribedHooks lists the legacy hooks the bridge handles.
func (b *Bridge) SubscribedHooks() []legacy.Subscription {
	return []legacy.Subscription{
		{
			Hook: legacy.HookCommon, Priority: PriorityCommon,
			Handler: func(ctx context.Context, _ legacy.Args) legacy.Signal {
				b.OnCommon(ctx)
				return legacy.Continue
			},
		},
		{
			Hook: legacy.HookGarbageCollection, Priority: PriorityGarbageCollection,
			Handler: func(ctx context.Context, _ legacy.Args) legacy.Signal {
				return b.OnGarbageCollection(ctx)
			},
		},
		{
			Hook: legacy.HookRedirect, Priority: PriorityRedirect,
			Handler: func(_ context.Context, args legacy.Args) legacy.Signal {
				b.OnRedirect(args)
				return legacy.Continue
			},
		},
	}
}

// Register subscribes the bridge to the host hooks and to d.
func (b *Bridge) Register(hooks *legacy.Hooks, d kernel.Dispatcher) {
	for _, s := range b.SubscribedHooks() {
		hooks.Subscribe(s.Hook, s.Priority, s.Handler)
	}
	kernel.AddSubscriber(d, b)
}
