package main

import (
	"fmt"
	"os"

	"cpanel_exporter/internal/collectors"
	"cpanel_exporter/internal/config"
	"cpanel_exporter/internal/cpanel"
	"cpanel_exporter/internal/logging"
	"cpanel_exporter/internal/scrape"
	"cpanel_exporter/internal/server"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// whmapi1 and uapi --user only work as root.
	if os.Geteuid() != 0 && !cfg.AllowNonRoot {
		fmt.Fprintln(os.Stderr, "this exporter must run as root: it queries WHM API 1 and per-user UAPI")
		os.Exit(1)
	}

	app := fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			func(cfg *config.Config) (*zap.Logger, error) {
				return logging.New(cfg.Logging.Level)
			},
			func(cfg *config.Config, log *zap.Logger) *cpanel.ExecRunner {
				return cpanel.NewExecRunner(cfg.Scrape.CommandTimeout, cfg.Scrape.KillGrace, log)
			},
			func(runner *cpanel.ExecRunner, log *zap.Logger) *cpanel.Client {
				return cpanel.NewClient(runner, log)
			},
			func(cfg *config.Config, log *zap.Logger, client *cpanel.Client) []collectors.Source {
				return collectors.Enabled(&collectors.Deps{
					Client: client,
					Logger: log,
					Config: cfg,
				})
			},
			func(cfg *config.Config, log *zap.Logger, client *cpanel.Client, sources []collectors.Source) *scrape.Service {
				return scrape.New(cfg, log, client, sources)
			},
			func(cfg *config.Config, log *zap.Logger, svc *scrape.Service) *server.Server {
				return server.New(&server.Params{
					Config:  cfg,
					Logger:  log,
					Scraper: svc,
				})
			},
			server.NewLifecycle,
		),

		fx.Invoke(
			func(lifecycle fx.Lifecycle, serverLifecycle *server.Lifecycle) {
				lifecycle.Append(fx.Hook{
					OnStart: serverLifecycle.Start,
					OnStop:  serverLifecycle.Stop,
				})
			},
		),

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}
