package kernel

import (
	"context"
	"errors"
	"fmt"
)

// Controller produces the response for a request.
type Controller func(ctx context.Context, req *Request) (*Response, error)

// Kernel drives the pipeline natively: request, controller, response, and
// later terminate. It is what a front controller runs.
type Kernel struct {
	dispatcher Dispatcher
	controller Controller
}

// NewKernel creates a kernel dispatching on d and falling back to c when no
// kernel.request listener provides a response.
func NewKernel(d Dispatcher, c Controller) *Kernel {
	return &Kernel{dispatcher: d, controller: c}
}

// Handle implements HTTPKernel.
func (k *Kernel) Handle(ctx context.Context, req *Request, typ RequestType) (*Response, error) {
	if req == nil {
		return nil, errors.New("kernel: nil request")
	}
	if typ == MainRequest {
		req.SetAttribute(AttrNativeTerminate, true)
	}

	rev := NewRequestEvent(k, req, typ)
	if err := k.dispatcher.Dispatch(ctx, EventRequest, rev); err != nil {
		return nil, fmt.Errorf("kernel: dispatch request: %w", err)
	}

	resp := rev.Response()
	if resp == nil {
		if k.controller == nil {
			return nil, errors.New("kernel: no controller for request")
		}
		var err error
		resp, err = k.controller(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("kernel: controller: %w", err)
		}
		if resp == nil {
			return nil, errors.New("kernel: controller returned no response")
		}
	}

	fev := NewResponseEvent(k, req, typ, resp)
	if err := k.dispatcher.Dispatch(ctx, EventResponse, fev); err != nil {
		return nil, fmt.Errorf("kernel: dispatch response: %w", err)
	}
	return fev.Response, nil
}

// Terminate dispatches kernel.terminate once the response has been sent.
func (k *Kernel) Terminate(ctx context.Context, req *Request, resp *Response) error {
	if err := k.dispatcher.Dispatch(ctx, EventTerminate, NewTerminateEvent(k, req, resp)); err != nil {
		return fmt.Errorf("kernel: dispatch terminate: %w", err)
	}
	return nil
}

var _ HTTPKernel = (*Kernel)(nil)
