package session

import (
	"context"
	"fmt"
	"sync"

	"futures_bot/internal/exchange"
)

// AutoScanner — ручка жизненного цикла сканера: старт из конфига
// при запуске приложения или по команде, остановка по требованию.
type AutoScanner struct {
	stream TickerStream
	gw     exchange.Gateway
	base   ScannerConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewAutoScanner(stream TickerStream, gw exchange.Gateway, base ScannerConfig) *AutoScanner {
	return &AutoScanner{stream: stream, gw: gw, base: base}
}

// StartAutomated запускает сканер. marginUSD — маржа на одну заявку,
// 0 оставляет значение из конфига.
func (a *AutoScanner) StartAutomated(marginUSD float64, n Notifier) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stream == nil {
		return fmt.Errorf("StartAutomated: exchange does not expose a ticker stream")
	}
	if a.cancel != nil {
		return fmt.Errorf("StartAutomated: scanner already running")
	}

	cfg := a.base
	if marginUSD > 0 {
		cfg.Margin = marginUSD
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.cancel, a.done = cancel, done
	go func() {
		defer close(done)
		NewScanner(a.stream, a.gw, n, cfg).Run(ctx)
	}()
	return nil
}

// StopAutomated останавливает сканер и ждёт выхода его горутины.
func (a *AutoScanner) StopAutomated() error {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return fmt.Errorf("StopAutomated: scanner is not running")
	}
	cancel()
	<-done
	return nil
}

func (a *AutoScanner) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}
