package legacy

import "sync"

// ExceptionHandler receives errors nobody else handled.
type ExceptionHandler func(err error)

// Discard drops the error.
func Discard(error) {}

// ExceptionHandlers is the host's uncaught-error handler. Handlers are
// stacked: Set installs one and returns the func that reinstates whatever
// was active before.
type ExceptionHandlers struct {
	mu       sync.Mutex
	stack    []ExceptionHandler
	fallback ExceptionHandler
}

// NewExceptionHandlers creates a handler stack. fallback runs when nothing
// is installed; nil means Discard.
func NewExceptionHandlers(fallback ExceptionHandler) *ExceptionHandlers {
	if fallback == nil {
		fallback = Discard
	}
	return &ExceptionHandlers{fallback: fallback}
}

// Set installs h as the active handler. Calling restore more than once is
// safe; it also drops anything installed after h.
func (e *ExceptionHandlers) Set(h ExceptionHandler) (restore func()) {
	e.mu.Lock()
	depth := len(e.stack)
	e.stack = append(e.stack, h)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			if len(e.stack) > depth {
				e.stack = e.stack[:depth]
			}
			e.mu.Unlock()
		})
	}
}

// Handle passes err to the active handler.
func (e *ExceptionHandlers) Handle(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	h := e.fallback
	if n := len(e.stack); n > 0 {
		h = e.stack[n-1]
	}
	e.mu.Unlock()
	h(err)
}

// Depth returns how many handlers are installed.
func (e *ExceptionHandlers) Depth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.stack)
}
