package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Environment constants.
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// Profile storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Config holds the settings of the webprofiler host.
type Config struct {
	// AppName is the application name, used for env var prefix and file names.
	AppName string `mapstructure:"appname"`

	// Environment: development, production, or test.
	Environment string `mapstructure:"environment"`

	// Port for the HTTP server.
	Port string `mapstructure:"port"`

	// Logging configuration.
	LogLevel       string `mapstructure:"loglevel"`
	LogFormat      string `mapstructure:"logformat"`
	LogsDirectory  string `mapstructure:"logsdirectory"`
	LogsMaxSizeMB  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeDays int    `mapstructure:"logsmaxageindays"`

	// FrontController is the script name suffix that marks requests the
	// modern pipeline already drives natively.
	FrontController string `mapstructure:"frontcontroller"`

	// ServerSoftware is reported as SERVER_SOFTWARE to legacy pages.
	ServerSoftware string `mapstructure:"serversoftware"`

	// Profiler configuration.
	ProfilerEnabled     bool   `mapstructure:"profilerenabled"`
	ProfilerOnlyMain    bool   `mapstructure:"profileronlymain"`
	ProfilerStorage     string `mapstructure:"profilerstorage"`
	ProfilerDSN         string `mapstructure:"profilerdsn"`
	ProfilerMaxProfiles int    `mapstructure:"profilermaxprofiles"`
	DataDirectory       string `mapstructure:"datadirectory"`

	ToolbarEnabled bool `mapstructure:"toolbarenabled"`
	MetricsEnabled bool `mapstructure:"metricsenabled"`

	envPrefix string
}

// Load creates a Config for appName from a .env file, defaults and
// environment variables prefixed with the uppercase app name, e.g.
// WEBPROFILER_ENV, WEBPROFILER_PORT.
func Load(appName string) (*Config, error) {
	return LoadWith(viper.New(), appName)
}

// LoadWith is Load on a caller-provided viper instance, so flags or config
// files bound by the caller take part.
func LoadWith(v *viper.Viper, appName string) (*Config, error) {
	appName = strings.ToLower(strings.TrimSpace(appName))
	if appName == "" {
		appName = "webprofiler"
	}
	prefix := strings.ToUpper(appName)

	if v.ConfigFileUsed() == "" {
		v.SetConfigName(".env")
		v.SetConfigType("env")
		v.AddConfigPath(".")
	}
	_ = v.ReadInConfig()

	setDefaults(v, appName)
	v.SetEnvPrefix(prefix)
	bindEnvVars(v, prefix)

	cfg := &Config{envPrefix: prefix}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.ProfilerDSN == "" && cfg.ProfilerStorage == StorageSQLite {
		cfg.ProfilerDSN = filepath.Join(cfg.DataDirectory, fmt.Sprintf("%s.%s.db", cfg.AppName, cfg.Environment))
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.ensureDirectories()
	return cfg, nil
}

func setDefaults(v *viper.Viper, appName string) {
	v.SetDefault("appname", appName)
	v.SetDefault("environment", Production)
	v.SetDefault("port", "8080")

	v.SetDefault("loglevel", "")
	v.SetDefault("logformat", "slog")
	v.SetDefault("logsdirectory", "storage/logs")
	v.SetDefault("logsmaxsizeinmb", 20)
	v.SetDefault("logsmaxbackups", 10)
	v.SetDefault("logsmaxageindays", 30)

	v.SetDefault("frontcontroller", "app.php")
	v.SetDefault("serversoftware", "")

	v.SetDefault("profilerenabled", true)
	v.SetDefault("profileronlymain", true)
	v.SetDefault("profilerstorage", StorageMemory)
	v.SetDefault("profilerdsn", "")
	v.SetDefault("profilermaxprofiles", 100)
	v.SetDefault("datadirectory", "storage")

	v.SetDefault("toolbarenabled", true)
	v.SetDefault("metricsenabled", true)
}

func bindEnvVars(v *viper.Viper, prefix string) {
	v.BindEnv("environment", prefix+"_ENV")
	v.BindEnv("port", prefix+"_PORT")
	v.BindEnv("loglevel", prefix+"_LOG_LEVEL")
	v.BindEnv("logformat", prefix+"_LOG_FORMAT")
	v.BindEnv("logsdirectory", prefix+"_LOGS_DIR")
	v.BindEnv("frontcontroller", prefix+"_FRONT_CONTROLLER")
	v.BindEnv("serversoftware", prefix+"_SERVER_SOFTWARE", "SERVER_SOFTWARE")
	v.BindEnv("profilerenabled", prefix+"_PROFILER")
	v.BindEnv("profileronlymain", prefix+"_PROFILER_ONLY_MAIN")
	v.BindEnv("profilerstorage", prefix+"_PROFILER_STORAGE")
	v.BindEnv("profilerdsn", prefix+"_PROFILER_DSN")
	v.BindEnv("profilermaxprofiles", prefix+"_PROFILER_MAX_PROFILES")
	v.BindEnv("datadirectory", prefix+"_DATA_DIR")
	v.BindEnv("toolbarenabled", prefix+"_TOOLBAR")
	v.BindEnv("metricsenabled", prefix+"_METRICS")
}

func (c *Config) validate() error {
	var problems []string

	switch c.Environment {
	case Development, Production, Test:
	default:
		problems = append(problems, fmt.Sprintf("invalid %s_ENV value %q", c.envPrefix, c.Environment))
	}

	switch c.ProfilerStorage {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.ProfilerDSN == "" {
			problems = append(problems, fmt.Sprintf("%s_PROFILER_DSN is required for postgres storage", c.envPrefix))
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid %s_PROFILER_STORAGE value %q", c.envPrefix, c.ProfilerStorage))
	}

	switch c.LogFormat {
	case "slog", "zap":
	default:
		problems = append(problems, fmt.Sprintf("invalid %s_LOG_FORMAT value %q", c.envPrefix, c.LogFormat))
	}

	if c.FrontController == "" {
		problems = append(problems, fmt.Sprintf("%s_FRONT_CONTROLLER must not be empty", c.envPrefix))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) ensureDirectories() {
	dirs := []string{c.LogsDirectory}
	if c.ProfilerStorage == StorageSQLite {
		dirs = append(dirs, filepath.Dir(c.ProfilerDSN))
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("config: failed to create directory %q: %v", dir, err)
		}
	}
}

// Environment checks.

func (c *Config) IsDevelopment() bool { return c.Environment == Development }
func (c *Config) IsProduction() bool  { return c.Environment == Production }
func (c *Config) IsTest() bool        { return c.Environment == Test }

// GetPort returns the HTTP server port.
func (c *Config) GetPort() string { return c.Port }

// LogConfigProvider implementation.

func (c *Config) GetLogLevel() string     { return c.LogLevel }
func (c *Config) GetLogDirectory() string { return c.LogsDirectory }
func (c *Config) GetLogMaxSizeMB() int    { return c.LogsMaxSizeMB }
func (c *Config) GetLogMaxBackups() int   { return c.LogsMaxBackups }
func (c *Config) GetLogMaxAgeDays() int   { return c.LogsMaxAgeDays }
func (c *Config) GetAppName() string      { return c.AppName }
