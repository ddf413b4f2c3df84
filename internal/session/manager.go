package session

import (
	"context"
	"fmt"
	"sync"

	"futures_bot/internal/exchange"
	"futures_bot/internal/models"
	"futures_bot/internal/policy"
)

// Manager управляет сессиями по символам.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Controller

	gw  exchange.Gateway
	hub *StateHub
}

func NewManager(gw exchange.Gateway, hub *StateHub) *Manager {
	return &Manager{
		sessions: make(map[string]*Controller),
		gw:       gw,
		hub:      hub,
	}
}

// StartSession поднимает контроллер для тикера (если ещё не запущен).
func (m *Manager) StartSession(ctx context.Context, ticker models.Ticker, name policy.Name, opts policy.Options, n Notifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, running := m.sessions[ticker.Symbol]; running {
		return fmt.Errorf("StartSession: session already running for %s", ticker.Symbol)
	}

	pol := policy.New(name, m.gw, opts)
	c := NewController(m.gw, pol, m.hub, n, ticker)
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("StartSession: %w", err)
	}
	m.sessions[ticker.Symbol] = c

	return nil
}

// StopSession останавливает контроллер символа (если запущен).
func (m *Manager) StopSession(symbol string) error {
	m.mu.Lock()
	c, ok := m.sessions[symbol]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("StopSession: no session for %s", symbol)
	}
	delete(m.sessions, symbol)
	m.mu.Unlock()

	// гасим вне мьютекса, Stop ждёт циклы
	c.Stop()
	return nil
}

// StopAll гасит все сессии, используется при выключении приложения.
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := make([]*Controller, 0, len(m.sessions))
	for sym, c := range m.sessions {
		sessions = append(sessions, c)
		delete(m.sessions, sym)
	}
	m.mu.Unlock()

	for _, c := range sessions {
		c.Stop()
	}
}

// Session возвращает контроллер символа.
func (m *Manager) Session(symbol string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[symbol]
	return c, ok
}

// Active — символы с запущенными сессиями.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	symbols := make([]string, 0, len(m.sessions))
	for sym := range m.sessions {
		symbols = append(symbols, sym)
	}
	return symbols
}
