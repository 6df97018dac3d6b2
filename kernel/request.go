package kernel

import (
	"net/http"
	"strings"
	"sync"
)

// Request attribute keys used by the pipeline.
const (
	// AttrNativeTerminate is set by Kernel.Handle so the traceable
	// dispatcher reopens the request's stopwatch section before terminate.
	AttrNativeTerminate = "_native_terminate"
)

// Request is the pipeline's view of an HTTP request.
type Request struct {
	ID         string
	Method     string
	URI        string
	Path       string
	ClientIP   string
	Header     http.Header
	Attributes map[string]any
}

// NewRequest creates a request for method and target (path plus optional
// query string).
func NewRequest(method, target string) *Request {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}

	path, _, _ := strings.Cut(target, "?")

	return &Request{
		Method:     method,
		URI:        target,
		Path:       path,
		Header:     make(http.Header),
		Attributes: make(map[string]any),
	}
}

// IsMethod reports whether the request uses method (case insensitive).
func (r *Request) IsMethod(method string) bool {
	return strings.EqualFold(r.Method, method)
}

// Attribute returns the attribute stored under key.
func (r *Request) Attribute(key string) (any, bool) {
	v, ok := r.Attributes[key]
	return v, ok
}

// SetAttribute stores an attribute.
func (r *Request) SetAttribute(key string, value any) {
	if r.Attributes == nil {
		r.Attributes = make(map[string]any)
	}
	r.Attributes[key] = value
}

// RequestStack tracks the request currently being handled. Listeners ask
// it for the current request instead of keeping their own reference.
type RequestStack struct {
	mu       sync.RWMutex
	requests []*Request
}

// NewRequestStack creates an empty stack.
func NewRequestStack() *RequestStack {
	return &RequestStack{}
}

// Push makes req the current request.
func (s *RequestStack) Push(req *Request) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
}

// Pop removes and returns the current request, or nil when empty.
func (s *RequestStack) Pop() *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	req := s.requests[len(s.requests)-1]
	s.requests = s.requests[:len(s.requests)-1]
	return req
}

// Current returns the top of the stack, or nil when empty.
func (s *RequestStack) Current() *Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

// Len returns the stack depth.
func (s *RequestStack) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}
