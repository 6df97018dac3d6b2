// Package testsupport builds hosts, configuration and profile storage for
// tests.
package testsupport

import (
	"github.com/karloscodes/webprofiler"
	"github.com/karloscodes/webprofiler/config"
)

// NewTestConfig returns a test configuration with the profiler, toolbar and
// metrics enabled, profiles kept in memory and an Apache server.
func NewTestConfig() *config.Config {
	return &config.Config{
		AppName:             "webprofiler",
		Environment:         config.Test,
		Port:                "0",
		LogFormat:           "slog",
		FrontController:     "app.php",
		ServerSoftware:      "Apache/2.4",
		ProfilerEnabled:     true,
		ProfilerOnlyMain:    true,
		ProfilerStorage:     config.StorageMemory,
		ProfilerMaxProfiles: 50,
		ToolbarEnabled:      true,
		MetricsEnabled:      true,
	}
}

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() webprofiler.Logger {
	return webprofiler.NopLogger{}
}
