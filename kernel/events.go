// Package kernel models the request/response event pipeline the legacy
// bridge emulates: kernel events, requests and responses, the request stack
// and a priority-ordered event dispatcher.
package kernel

import "context"

// Kernel event names.
const (
	EventRequest   = "kernel.request"
	EventResponse  = "kernel.response"
	EventTerminate = "kernel.terminate"
)

// RequestType distinguishes the outermost request from sub-requests.
type RequestType int

const (
	MainRequest RequestType = iota + 1
	SubRequest
)

// HTTPKernel handles a request and produces a response.
type HTTPKernel interface {
	Handle(ctx context.Context, req *Request, typ RequestType) (*Response, error)
}

// Event is anything that can be dispatched. Listeners stop further
// propagation by calling StopPropagation.
type Event interface {
	IsPropagationStopped() bool
	StopPropagation()
}

// BaseEvent implements Event and is meant to be embedded.
type BaseEvent struct {
	stopped bool
}

// IsPropagationStopped reports whether a listener stopped the event.
func (e *BaseEvent) IsPropagationStopped() bool { return e.stopped }

// StopPropagation prevents listeners with lower priority from running.
func (e *BaseEvent) StopPropagation() { e.stopped = true }

// KernelEvent carries what every kernel event exposes.
type KernelEvent struct {
	BaseEvent
	Kernel      HTTPKernel
	Request     *Request
	RequestType RequestType
}

// IsMainRequest reports whether the event belongs to the outermost request.
func (e *KernelEvent) IsMainRequest() bool { return e.RequestType == MainRequest }

// RequestEvent is dispatched as kernel.request. A listener may short-circuit
// the controller by setting a response, which also stops propagation.
type RequestEvent struct {
	KernelEvent
	response *Response
}

// NewRequestEvent builds a kernel.request event.
func NewRequestEvent(k HTTPKernel, req *Request, typ RequestType) *RequestEvent {
	return &RequestEvent{KernelEvent: KernelEvent{Kernel: k, Request: req, RequestType: typ}}
}

// SetResponse records a response and stops propagation.
func (e *RequestEvent) SetResponse(resp *Response) {
	e.response = resp
	e.StopPropagation()
}

// Response returns the response set by a listener, if any.
func (e *RequestEvent) Response() *Response { return e.response }

// HasResponse reports whether a listener provided a response.
func (e *RequestEvent) HasResponse() bool { return e.response != nil }

// ResponseEvent is dispatched as kernel.response. Listeners may modify or
// replace Response.
type ResponseEvent struct {
	KernelEvent
	Response *Response
}

// NewResponseEvent builds a kernel.response event.
func NewResponseEvent(k HTTPKernel, req *Request, typ RequestType, resp *Response) *ResponseEvent {
	return &ResponseEvent{
		KernelEvent: KernelEvent{Kernel: k, Request: req, RequestType: typ},
		Response:    resp,
	}
}

// TerminateEvent is dispatched as kernel.terminate once the response has
// been sent.
type TerminateEvent struct {
	KernelEvent
	Response *Response
}

// NewTerminateEvent builds a kernel.terminate event. Terminate always
// concerns the main request.
func NewTerminateEvent(k HTTPKernel, req *Request, resp *Response) *TerminateEvent {
	return &TerminateEvent{
		KernelEvent: KernelEvent{Kernel: k, Request: req, RequestType: MainRequest},
		Response:    resp,
	}
}
