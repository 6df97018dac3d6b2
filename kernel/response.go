package kernel

import (
	"net/http"
	"strings"
)

// Response is the pipeline's view of an HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	content    string
}

// NewResponse creates a response with the given body and status. A zero
// status means 200.
func NewResponse(content string, status int) *Response {
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{
		StatusCode: status,
		Header:     make(http.Header),
		content:    content,
	}
}

// Content returns the body.
func (r *Response) Content() string { return r.content }

// SetContent replaces the body.
func (r *Response) SetContent(content string) { r.content = content }

// IsRedirection reports a 3xx status.
func (r *Response) IsRedirection() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// IsHTML reports whether the response is HTML. A response without a
// Content-Type is assumed to be HTML.
func (r *Response) IsHTML() bool {
	ct := r.Header.Get("Content-Type")
	return ct == "" || strings.Contains(ct, "html")
}
