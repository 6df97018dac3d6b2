package legacy

import (
	"strings"
	"sync"

	"github.com/valyala/bytebufferpool"
)

// RequestAccessor reads the server variables of the current request.
type RequestAccessor interface {
	Server(key string) string
}

// ServerVars is a RequestAccessor backed by a map.
type ServerVars map[string]string

// Server implements RequestAccessor.
func (v ServerVars) Server(key string) string { return v[key] }

// Output is where the page writes: raw header lines and a buffered body.
type Output interface {
	// Header records a raw "Name: value" header line.
	Header(line string)
	Write(p []byte) (int, error)
	// Contents returns what has been buffered so far.
	Contents() []byte
}

// Buffer is the default Output. Release returns its memory to the pool;
// the buffer must not be used afterwards.
type Buffer struct {
	mu      sync.Mutex
	headers []string
	body    *bytebufferpool.ByteBuffer
}

// NewBuffer takes a buffer from the pool.
func NewBuffer() *Buffer {
	return &Buffer{body: bytebufferpool.Get()}
}

// Header implements Output.
func (b *Buffer) Header(line string) {
	b.mu.Lock()
	b.headers = append(b.headers, line)
	b.mu.Unlock()
}

// Headers returns the header lines in the order they were sent.
func (b *Buffer) Headers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.headers))
	copy(out, b.headers)
	return out
}

// HeaderValue returns the value of the last header line named name.
func (b *Buffer) HeaderValue(name string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.headers) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(b.headers[i], ":")
		if ok && strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// Write implements Output.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.body.Write(p)
}

// WriteString appends s to the body.
func (b *Buffer) WriteString(s string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.body.WriteString(s)
}

// Contents implements Output. The returned slice is a copy.
func (b *Buffer) Contents() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, b.body.Len())
	copy(out, b.body.B)
	return out
}

// Len returns the buffered body size.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.body.Len()
}

// Release returns the body to the pool.
func (b *Buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.body != nil {
		bytebufferpool.Put(b.body)
		b.body = nil
	}
}
