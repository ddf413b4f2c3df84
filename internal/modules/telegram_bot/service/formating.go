package service

import (
	"fmt"
	"strings"

	"futures_bot/internal/models"
	"futures_bot/internal/session"
)

func formatStatus(snap session.Snapshot, active []string) string {
	var b strings.Builder

	if snap.IsWorking {
		fmt.Fprintf(&b, "🟢 Бот работает: %s\n", strings.Join(active, ", "))
	} else {
		b.WriteString("⚪️ Бот остановлен\n")
	}

	if snap.Connected {
		b.WriteString("Биржа: на связи\n")
	} else {
		b.WriteString("Биржа: нет связи\n")
	}

	if snap.Balance > 0 {
		fmt.Fprintf(&b, "Баланс: %.2f USDT\n", snap.Balance)
	}
	if snap.LastError != "" {
		fmt.Fprintf(&b, "❗️ %s\n", snap.LastError)
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatPositions(positions []models.Position) string {
	var b strings.Builder
	b.WriteString("📊 Открытые позиции:\n")
	for _, p := range positions {
		side := "LONG"
		if p.Side() == models.SideSell {
			side = "SHORT"
		}
		fmt.Fprintf(&b, "- %s [%s] qty=%.4f @ %.4f lev=%dx uPnL=%.4f\n",
			p.Symbol, side, p.AbsSize(), p.EntryPrice, p.Leverage, p.UnrealizedPnl)
	}
	return strings.TrimRight(b.String(), "\n")
}
