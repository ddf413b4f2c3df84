package service

import (
	"context"
	"strconv"
	"strings"

	"futures_bot/internal/models"
	"futures_bot/internal/policy"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (t *Telegram) handleCommand(ctx context.Context, msg *tgbot.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "help":
		t.SendF(ctx, chatID, helpText)
	case "status":
		t.handleStatus(ctx, chatID)
	case "positions":
		t.handlePositions(ctx, chatID)
	case "balance":
		t.handleBalance(ctx, chatID)
	case "run":
		t.handleRun(ctx, chatID, msg.CommandArguments())
	case "stop":
		t.handleStop(ctx, chatID)
	case "close":
		t.handleClose(ctx, chatID)
	case "scan":
		t.handleScan(ctx, chatID, msg.CommandArguments())
	case "keys":
		t.handleKeys(ctx, chatID, msg.CommandArguments())
	default:
		t.SendF(ctx, chatID, "Не знаю такой команды, /help")
	}
}

const helpText = `Команды:
/status — состояние бота
/positions — открытые позиции
/balance — баланс аккаунта
/run [sma|emarsi|martingale] — запустить сессию
/stop — остановить сессию
/close — закрыть позицию по рынку
/scan [маржа_usd|stop] — сканер всплесков
/keys <api_key> <api_secret> — обновить ключи биржи`

func (t *Telegram) handleStatus(ctx context.Context, chatID int64) {
	snap := t.hub.Current()
	t.Send(ctx, chatID, formatStatus(snap, t.manager.Active()))
}

func (t *Telegram) handlePositions(ctx context.Context, chatID int64) {
	snap := t.hub.Current()
	if len(snap.Positions) == 0 {
		t.Send(ctx, chatID, "📭 Открытых позиций нет")
		return
	}
	t.Send(ctx, chatID, formatPositions(snap.Positions))
}

func (t *Telegram) handleBalance(ctx context.Context, chatID int64) {
	balance, err := t.gw.FetchBalance(ctx)
	if err != nil {
		t.SendF(ctx, chatID, "❗️ Ошибка получения баланса: %v", err)
		return
	}
	t.SendF(ctx, chatID, "💰 Баланс: %.2f USDT", balance)
}

func (t *Telegram) handleRun(ctx context.Context, chatID int64, args string) {
	name := policy.Name(strings.TrimSpace(args))
	if name == "" {
		name = policy.Name(t.cfg.Strategy.Name)
	}

	ticker := models.DefaultTicker()
	if t.cfg.Ticker.Symbol != "" {
		ticker.Symbol = t.cfg.Ticker.Symbol
	}
	if t.cfg.Ticker.Qty > 0 {
		ticker.Qty = t.cfg.Ticker.Qty
	}

	err := t.manager.StartSession(context.Background(), ticker, name, policy.Options{
		ScaleInFraction: t.cfg.Strategy.ScaleInFraction,
		TakeProfitDelay: t.cfg.Strategy.TakeProfitDelay,
		QtyDecimals:     t.cfg.Strategy.QtyDecimals,
	}, t)
	if err != nil {
		t.SendF(ctx, chatID, "❗️ %v", err)
		return
	}
	t.SendF(ctx, chatID, "▶️ Сессия %s (%s) запущена", ticker.Symbol, name)
}

func (t *Telegram) handleStop(ctx context.Context, chatID int64) {
	active := t.manager.Active()
	if len(active) == 0 {
		t.Send(ctx, chatID, "Сессий нет")
		return
	}
	for _, sym := range active {
		if err := t.manager.StopSession(sym); err != nil {
			t.SendF(ctx, chatID, "❗️ %v", err)
			return
		}
	}
	t.SendF(ctx, chatID, "⏹ Остановлено: %s", strings.Join(active, ", "))
}

func (t *Telegram) handleClose(ctx context.Context, chatID int64) {
	for _, sym := range t.manager.Active() {
		c, ok := t.manager.Session(sym)
		if !ok {
			continue
		}
		if err := c.ClosePosition(ctx); err != nil {
			t.SendF(ctx, chatID, "❗️ %v", err)
			return
		}
	}
	t.Send(ctx, chatID, "⚪️ Позиции закрыты")
}

func (t *Telegram) handleScan(ctx context.Context, chatID int64, args string) {
	arg := strings.TrimSpace(args)
	if arg == "stop" {
		if err := t.auto.StopAutomated(); err != nil {
			t.SendF(ctx, chatID, "❗️ %v", err)
			return
		}
		t.Send(ctx, chatID, "⏹ Сканер остановлен")
		return
	}

	var margin float64
	if arg != "" {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil || v <= 0 {
			t.Send(ctx, chatID, "Формат: /scan [маржа_usd|stop]")
			return
		}
		margin = v
	}

	if err := t.auto.StartAutomated(margin, t); err != nil {
		t.SendF(ctx, chatID, "❗️ %v", err)
		return
	}
	t.Send(ctx, chatID, "▶️ Сканер запущен")
}

func (t *Telegram) handleKeys(ctx context.Context, chatID int64, args string) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		t.Send(ctx, chatID, "Формат: /keys <api_key> <api_secret>")
		return
	}

	err := t.store.SaveCredentials(ctx, models.Credentials{
		Exchange:  t.cfg.Exchange.Name,
		APIKey:    parts[0],
		APISecret: parts[1],
	})
	if err != nil {
		t.SendF(ctx, chatID, "❗️ Не сохранилось: %v", err)
		return
	}
	// новые ключи подхватятся после рестарта
	t.Send(ctx, chatID, "🔑 Ключи сохранены, перезапустите бота")
}
