// Package webprofiler profiles legacy PHP-style pages with a modern kernel
// event pipeline.
//
// Legacy pages never go through a front controller, so the kernel.request,
// kernel.response and kernel.terminate events the profiler relies on are
// never dispatched for them. The bridge package synthesizes those events from
// the page's own lifecycle hooks:
//
//	core.common             -> kernel.request
//	core.garbage_collection -> kernel.response, then kernel.terminate
//	core.functions.redirect -> the redirect emitted after terminate
//
// # Packages
//
//   - kernel: events, dispatchers (plain and traceable), request stack, kernel
//   - legacy: hooks, server variables, buffered output, exception handlers
//   - bridge: the lifecycle bridge between the two
//   - profiler: the profile collector and its memory or GORM storage
//   - toolbar: debug toolbar injection
//   - host: Fiber server running pages, the front controller and /_profiler
//   - config: viper configuration
//   - cmd/webprofiler: the cobra command line
//
// This package holds the shared logging pieces: the Logger interface, slog
// and zap adapters, and NewLogger, which picks a console or rotating JSON
// file setup from the environment.
//
// # Quick start
//
//	cfg, err := config.Load("webprofiler")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger := webprofiler.NewSlogAdapter(webprofiler.NewLogger(cfg, webprofiler.LogConfigFromProvider(cfg)))
//
//	srv, err := host.NewServer(host.DefaultServerConfig(cfg, logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv.Page("/index.php", func(p *legacy.Page) error {
//	    p.Echo("<p>hello</p>")
//	    return nil
//	})
//	log.Fatal(srv.Start())
package webprofiler
