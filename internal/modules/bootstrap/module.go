package bootstrap

import (
	"context"

	"futures_bot/internal/modules/config"
	"futures_bot/pkg/logger"
	"futures_bot/pkg/tracing"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const serviceName = "futures_bot"

// Module инициализирует логгер и трейсер до старта остальных модулей.
func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			zl, err := zap.NewProduction()
			if err != nil {
				return err
			}
			logger.InfoLogger = zl
			logger.FatalLogger = zl
			logger.SetServiceName(serviceName)

			if cfg.Jaeger.Host != "" {
				tracing.SetServiceName(serviceName)
				_, closeTracer, err := tracing.InitTracer(tracing.Config{
					Host: cfg.Jaeger.Host,
					Port: cfg.Jaeger.Port,
				})
				if err != nil {
					return err
				}
				lc.Append(fx.Hook{
					OnStop: func(ctx context.Context) error {
						closeTracer()
						return nil
					},
				})
			}

			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					_ = zl.Sync()
					return nil
				},
			})
			return nil
		}),
	)
}
