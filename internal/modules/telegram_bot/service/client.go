package service

import (
	"context"
	"fmt"
	"sync"

	"futures_bot/internal/exchange"
	"futures_bot/internal/modules/config"
	"futures_bot/internal/modules/settings"
	"futures_bot/internal/session"
	"futures_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram
type Telegram struct {
	bot     *tgbot.BotAPI
	cfg     *config.Config
	store   *settings.Store
	manager *session.Manager
	auto    *session.AutoScanner
	hub     *session.StateHub
	gw      exchange.Gateway

	mu        sync.Mutex
	cancel    context.CancelFunc
	lastError string
}

func NewTelegram(cfg *config.Config, store *settings.Store, manager *session.Manager, auto *session.AutoScanner, hub *session.StateHub, gw exchange.Gateway) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, err
	}

	return &Telegram{
		bot:     b,
		cfg:     cfg,
		store:   store,
		manager: manager,
		auto:    auto,
		hub:     hub,
		gw:      gw,
	}, nil
}

func (t *Telegram) Send(ctx context.Context, chatID int64, msg string) (tgbot.Message, error) {
	return t.bot.Send(tgbot.NewMessage(chatID, msg))
}

func (t *Telegram) SendF(ctx context.Context, chatID int64, format string, args ...any) (tgbot.Message, error) {
	return t.Send(ctx, chatID, fmt.Sprintf(format, args...))
}

// NotifyF шлёт сообщение в основной чат из конфига.
func (t *Telegram) NotifyF(ctx context.Context, format string, args ...any) {
	if t.cfg.Telegram.ChatID == 0 {
		return
	}
	if _, err := t.SendF(ctx, t.cfg.Telegram.ChatID, format, args...); err != nil {
		logger.Error("NotifyF: %v", err)
	}
}

// Start поднимает цикл команд и трансляцию ошибок сессий в чат.
func (t *Telegram) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	go t.pollUpdates(ctx)
	go t.watchErrors(ctx)
}

func (t *Telegram) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	t.bot.StopReceivingUpdates()
}

func (t *Telegram) pollUpdates(ctx context.Context) {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30

	updates := t.bot.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			if upd.Message == nil || !upd.Message.IsCommand() {
				continue
			}
			t.handleCommand(ctx, upd.Message)
		}
	}
}

// watchErrors дублирует ошибки сессий в чат. Протухшие ключи шлём
// один раз, а не на каждый снапшот.
func (t *Telegram) watchErrors(ctx context.Context) {
	snaps, cancel := t.hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			t.mu.Lock()
			changed := snap.LastError != "" && snap.LastError != t.lastError
			t.lastError = snap.LastError
			t.mu.Unlock()

			if changed {
				t.NotifyF(ctx, "❗️ %s", snap.LastError)
			}
		}
	}
}
