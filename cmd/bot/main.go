package main

import (
	"context"
	"log"

	"futures_bot/internal/modules/bootstrap"
	"futures_bot/internal/modules/config"
	"futures_bot/internal/modules/health"
	"futures_bot/internal/modules/postgres"
	"futures_bot/internal/modules/settings"
	telegram "futures_bot/internal/modules/telegram_bot"
	"futures_bot/internal/session"

	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		bootstrap.Module(),
		postgres.Module(),
		settings.Module(),
		telegram.Module(),
		session.Module(),
		session.ScannerModule(),
		health.Module(),
	)
	app.Run()
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
}
