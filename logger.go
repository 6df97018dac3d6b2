package webprofiler

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig configures the logger.
type LogConfig struct {
	// Level is the minimum log level. Defaults to "info" in development and
	// test, "error" in production. LOG_LEVEL overrides it.
	Level string

	// Directory for rotated log files. Only used in production.
	// Defaults to "logs".
	Directory string

	// MaxSizeMB, MaxBackups and MaxAgeDays configure rotation.
	// Defaults: 100 MB, 3 backups, 28 days.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// AppName names the log file. Defaults to "webprofiler".
	AppName string

	// Output replaces stdout as the console destination.
	Output io.Writer
}

// LogConfigProvider lets configuration objects provide log settings directly.
type LogConfigProvider interface {
	GetLogLevel() string
	GetLogDirectory() string
	GetLogMaxSizeMB() int
	GetLogMaxBackups() int
	GetLogMaxAgeDays() int
	GetAppName() string
}

// LogConfigFromProvider creates a LogConfig from a LogConfigProvider.
func LogConfigFromProvider(p LogConfigProvider) *LogConfig {
	return &LogConfig{
		Level:      p.GetLogLevel(),
		Directory:  p.GetLogDirectory(),
		MaxSizeMB:  p.GetLogMaxSizeMB(),
		MaxBackups: p.GetLogMaxBackups(),
		MaxAgeDays: p.GetLogMaxAgeDays(),
		AppName:    p.GetAppName(),
	}
}

// NewLogger creates a slog.Logger suited to the environment.
//
// Development and test log colored text to the console. Production logs
// JSON to the console and to a file rotated by lumberjack.
func NewLogger(cfg Config, logCfg *LogConfig) *slog.Logger {
	if logCfg == nil {
		if provider, ok := cfg.(LogConfigProvider); ok {
			logCfg = LogConfigFromProvider(provider)
		} else {
			logCfg = &LogConfig{}
		}
	}

	out := logCfg.Output
	if out == nil {
		out = os.Stdout
	}

	level := resolveLogLevel(cfg, logCfg.Level)
	if cfg.IsDevelopment() || cfg.IsTest() {
		return slog.New(newColorHandler(out, level))
	}
	return newProdLogger(out, level, logCfg)
}

func resolveLogLevel(cfg Config, configured string) slog.Level {
	levelStr := configured
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		levelStr = env
	}
	if levelStr == "" {
		if cfg.IsDevelopment() || cfg.IsTest() {
			levelStr = "info"
		} else {
			levelStr = "error"
		}
	}
	return ParseLevel(levelStr)
}

// ParseLevel maps a level name to a slog.Level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newProdLogger(out io.Writer, level slog.Level, logCfg *LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	appName := valueOr(logCfg.AppName, "webprofiler")
	dir := valueOr(logCfg.Directory, "logs")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		// Console only when the directory cannot be created
		return slog.New(slog.NewJSONHandler(out, opts))
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, appName+".log"),
		MaxSize:    positiveOr(logCfg.MaxSizeMB, 100),
		MaxBackups: positiveOr(logCfg.MaxBackups, 3),
		MaxAge:     positiveOr(logCfg.MaxAgeDays, 28),
		Compress:   true,
	}

	return slog.New(slog.NewJSONHandler(io.MultiWriter(out, rotator), opts))
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

// colorHandler prints "HH:MM:SS LEVEL message key=value" lines.
type colorHandler struct {
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
	group string
}

func newColorHandler(w io.Writer, level slog.Level) *colorHandler {
	return &colorHandler{w: w, level: level}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var levelColor string
	switch {
	case r.Level >= slog.LevelError:
		levelColor = colorRed
	case r.Level >= slog.LevelWarn:
		levelColor = colorYellow
	case r.Level >= slog.LevelInfo:
		levelColor = colorBlue
	default:
		levelColor = colorGray
	}

	var buf strings.Builder
	buf.WriteString(colorGray + r.Time.Format("15:04:05") + colorReset + " ")
	buf.WriteString(levelColor + r.Level.String() + colorReset + " ")
	buf.WriteString(r.Message)

	write := func(a slog.Attr) {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		buf.WriteString(" " + colorGray + key + "=" + colorReset + a.Value.String())
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})

	buf.WriteString("\n")
	_, err := io.WriteString(h.w, buf.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	next := *h
	if next.group != "" {
		name = next.group + "." + name
	}
	next.group = name
	return &next
}
