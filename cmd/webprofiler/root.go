package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/karloscodes/webprofiler"
	"github.com/karloscodes/webprofiler/config"
	"github.com/karloscodes/webprofiler/profiler"
)

const appName = "webprofiler"

// cli carries what every subcommand needs: the viper instance flags are
// bound to.
type cli struct {
	v               *viper.Viper
	configFile      string
	shutdownTimeout time.Duration
}

func newRootCmd() *cobra.Command {
	a := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   appName,
		Short: "Profile legacy pages through the modern kernel pipeline",
		Long: `webprofiler runs legacy pages behind an HTTP server and drives the
kernel request, response and terminate events from their lifecycle hooks,
so the profiler and the debug toolbar work on pages that never went
through a front controller.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.configFile != "" {
				a.v.SetConfigFile(a.configFile)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "env file to read (default is ./.env)")
	flags.String("env", "", "environment: development, production or test")
	flags.String("storage", "", "profile storage: memory, sqlite or postgres")
	flags.String("dsn", "", "profile storage DSN")
	_ = a.v.BindPFlag("environment", flags.Lookup("env"))
	_ = a.v.BindPFlag("profilerstorage", flags.Lookup("storage"))
	_ = a.v.BindPFlag("profilerdsn", flags.Lookup("dsn"))

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newProfilesCmd(a))
	return root
}

// bootstrap loads the configuration and builds the logger. cleanup flushes
// the logger.
func (a *cli) bootstrap() (*config.Config, webprofiler.Logger, func(), error) {
	cfg, err := config.LoadWith(a.v, appName)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, cleanup, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, cleanup, nil
}

func (a *cli) openStorage(cfg *config.Config, logger webprofiler.Logger) (profiler.Storage, func() error, error) {
	s, closeFn, err := profiler.OpenStorage(cfg.ProfilerStorage, cfg.ProfilerDSN, cfg.ProfilerMaxProfiles, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open profile storage: %w", err)
	}
	return s, closeFn, nil
}

func newLogger(cfg *config.Config) (webprofiler.Logger, func(), error) {
	if cfg.LogFormat == "zap" {
		zl, err := webprofiler.NewZapLogger(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("build zap logger: %w", err)
		}
		return webprofiler.NewZapAdapter(zl), func() { _ = zl.Sync() }, nil
	}
	logger := webprofiler.NewLogger(cfg, webprofiler.LogConfigFromProvider(cfg))
	return webprofiler.NewSlogAdapter(logger), func() {}, nil
}
