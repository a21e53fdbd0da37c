package cli

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/rediscache/pkg/config"
	"github.com/DeBrosOfficial/rediscache/pkg/diagnostics"
	"github.com/DeBrosOfficial/rediscache/pkg/logging"
	"github.com/DeBrosOfficial/rediscache/pkg/pool"
	"github.com/DeBrosOfficial/rediscache/pkg/rediscache"
	"github.com/DeBrosOfficial/rediscache/pkg/services"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the diagnostics HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.Diagnostics.ListenAddr = listenAddr
			}
			logger, err := newLogger(cfg, logging.ComponentDiagnostics)
			if err != nil {
				return err
			}
			defer logger.Sync()

			app := newServeApp(cfg, logger)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Override diagnostics.listen_addr")
	return cmd
}

func newServeApp(cfg *config.Config, logger *logging.ColoredLogger, extra ...fx.Option) *fx.App {
	opts := []fx.Option{
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Logger}
		}),
		fx.Supply(cfg, logger),
		services.Module,
		fx.Provide(newDiagnosticsServer),
		fx.Invoke(registerLifecycle),
	}
	return fx.New(append(opts, extra...)...)
}

func newDiagnosticsServer(cfg *config.Config, logger *logging.ColoredLogger, cache *rediscache.Cache, m *pool.Manager, reg *prometheus.Registry) (*diagnostics.Server, error) {
	return diagnostics.New(logger, cfg.Diagnostics, cfg.RedisServers, cache, m, reg)
}

func registerLifecycle(lc fx.Lifecycle, logger *logging.ColoredLogger, s *diagnostics.Server, cache *rediscache.Cache, m *pool.Manager) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			rediscache.SetLocator(func() (*rediscache.Cache, error) { return cache, nil })

			ln, err := s.Listen()
			if err != nil {
				return err
			}
			go s.Serve(ln)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			rediscache.SetLocator(nil)

			if err := s.Stop(ctx); err != nil {
				logger.ComponentWarn(logging.ComponentDiagnostics, "Diagnostics server did not stop cleanly", zap.Error(err))
			}
			if err := cache.Close(ctx); err != nil {
				logger.ComponentWarn(logging.ComponentCache, "Failed to close cached connections", zap.Error(err))
			}
			return m.Close(ctx)
		},
	})
}
