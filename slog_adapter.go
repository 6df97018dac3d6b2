package webprofiler

import "log/slog"

// SlogAdapter wraps slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a Logger adapter from an slog.Logger. A nil logger
// falls back to slog.Default().
func NewSlogAdapter(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

func (a *SlogAdapter) Debug(msg string, keysAndValues ...any) { a.logger.Debug(msg, keysAndValues...) }
func (a *SlogAdapter) Info(msg string, keysAndValues ...any)  { a.logger.Info(msg, keysAndValues...) }
func (a *SlogAdapter) Warn(msg string, keysAndValues ...any)  { a.logger.Warn(msg, keysAndValues...) }
func (a *SlogAdapter) Error(msg string, keysAndValues ...any) { a.logger.Error(msg, keysAndValues...) }

// With returns an adapter that adds keysAndValues to every record.
func (a *SlogAdapter) With(keysAndValues ...any) Logger {
	return &SlogAdapter{logger: a.logger.With(keysAndValues...)}
}

// Underlying returns the wrapped *slog.Logger.
func (a *SlogAdapter) Underlying() *slog.Logger {
	return a.logger
}
