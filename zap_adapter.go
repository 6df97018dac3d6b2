package webprofiler

import "go.uber.org/zap"

// ZapAdapter wraps zap.Logger to implement the Logger interface.
type ZapAdapter struct {
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

// NewZapAdapter creates a Logger adapter from a zap.Logger.
func NewZapAdapter(logger *zap.Logger) Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapAdapter{
		logger: logger,
		sugar:  logger.Sugar(),
	}
}

// NewZapLogger builds a zap logger matching the environment: development
// config outside production, production JSON config otherwise.
func NewZapLogger(cfg Config) (*zap.Logger, error) {
	if cfg != nil && cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func (a *ZapAdapter) Debug(msg string, keysAndValues ...any) { a.sugar.Debugw(msg, keysAndValues...) }
func (a *ZapAdapter) Info(msg string, keysAndValues ...any)  { a.sugar.Infow(msg, keysAndValues...) }
func (a *ZapAdapter) Warn(msg string, keysAndValues ...any)  { a.sugar.Warnw(msg, keysAndValues...) }
func (a *ZapAdapter) Error(msg string, keysAndValues ...any) { a.sugar.Errorw(msg, keysAndValues...) }

// Underlying returns the wrapped *zap.Logger.
// Use this when you need the concrete logger type.
func (a *ZapAdapter) Underlying() *zap.Logger {
	return a.logger
}

// Sync flushes buffered log entries.
func (a *ZapAdapter) Sync() error {
	return a.logger.Sync()
}
