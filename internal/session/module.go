package session

import (
	"context"
	"errors"
	"log"
	"time"

	"futures_bot/internal/exchange"
	"futures_bot/internal/models"
	"futures_bot/internal/modules/config"
	"futures_bot/internal/modules/settings"
	"futures_bot/internal/policy"

	"go.uber.org/fx"
)

// NewGateway выбирает биржу по конфигу. Ключи из БД перекрывают конфиг:
// пользователь мог перезаписать их командой.
func NewGateway(ctx context.Context, cfg *config.Config, store *settings.Store) (exchange.Gateway, error) {
	key, secret := cfg.Exchange.APIKey, cfg.Exchange.APISecret
	if store != nil {
		if creds, err := store.GetCredentials(ctx, cfg.Exchange.Name); err == nil {
			key, secret = creds.APIKey, creds.APISecret
		} else if !errors.Is(err, settings.ErrNotFound) {
			log.Printf("[SESSION] credentials from db: %v", err)
		}
	}

	switch cfg.Exchange.Name {
	case "binance":
		return exchange.NewBinance(key, secret), nil
	default:
		return exchange.NewBybit(key, secret), nil
	}
}

func tickerFromConfig(cfg *config.Config) models.Ticker {
	t := models.DefaultTicker()
	if cfg.Ticker.Symbol != "" {
		t.Symbol = cfg.Ticker.Symbol
	}
	if cfg.Ticker.Qty > 0 {
		t.Qty = cfg.Ticker.Qty
	}
	if cfg.Ticker.Leverage > 0 {
		t.Leverage = cfg.Ticker.Leverage
	}
	return t
}

func Module() fx.Option {
	return fx.Module("session",
		fx.Provide(
			NewStateHub,
			NewGateway,
			NewManager,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, gw exchange.Gateway, mgr *Manager, store *settings.Store, n Notifier) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					ticker := tickerFromConfig(cfg)
					// сессия живёт дольше, чем ctx хука
					runCtx := context.Background()

					if err := mgr.StartSession(runCtx, ticker, policy.Name(cfg.Strategy.Name), policy.Options{
						ScaleInFraction: cfg.Strategy.ScaleInFraction,
						TakeProfitDelay: cfg.Strategy.TakeProfitDelay,
						QtyDecimals:     cfg.Strategy.QtyDecimals,
					}, n); err != nil {
						return err
					}

					if err := store.SaveBotSettings(ctx, models.BotSettings{
						Strategy:       cfg.Strategy.Name,
						Ticker:         ticker,
						ScannerEnabled: cfg.Scanner.Enabled,
					}); err != nil {
						log.Printf("[SESSION] save settings: %v", err)
					}
					return nil
				},
				OnStop: func(ctx context.Context) error {
					done := make(chan struct{})
					go func() {
						mgr.StopAll()
						close(done)
					}()
					select {
					case <-done:
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(10 * time.Second):
					}
					return nil
				},
			})
		}),
	)
}

// ScannerModule собирает ручку сканера и поднимает его при старте,
// если сканер включён в конфиге. Дальше им можно управлять командами.
func ScannerModule() fx.Option {
	return fx.Module("scanner",
		fx.Provide(func(cfg *config.Config, gw exchange.Gateway) *AutoScanner {
			scfg := DefaultScannerConfig(cfg.Scanner.Symbols)
			if cfg.Scanner.MaxPositions > 0 {
				scfg.MaxPositions = cfg.Scanner.MaxPositions
			}
			if cfg.Scanner.Leverage > 0 {
				scfg.Leverage = cfg.Scanner.Leverage
			}
			if cfg.Scanner.Margin > 0 {
				scfg.Margin = cfg.Scanner.Margin
			}
			stream, _ := gw.(TickerStream)
			return NewAutoScanner(stream, gw, scfg)
		}),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, auto *AutoScanner, n Notifier) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if !cfg.Scanner.Enabled || len(cfg.Scanner.Symbols) == 0 {
						return nil
					}
					if err := auto.StartAutomated(0, n); err != nil {
						log.Printf("[SCANNER] автозапуск: %v", err)
					}
					return nil
				},
				OnStop: func(ctx context.Context) error {
					if auto.Running() {
						return auto.StopAutomated()
					}
					return nil
				},
			})
		}),
	)
}
