package session

import (
	"sync"

	"futures_bot/internal/models"
)

// Snapshot — наблюдаемое состояние сессии для внешних подписчиков
// (telegram, health). Переиздаётся целиком на каждое изменение.
type Snapshot struct {
	Positions []models.Position
	Balance   float64
	Connected bool
	LastError string
	// AuthExpired — ключи протухли; сообщение не очищается само.
	AuthExpired bool
	IsWorking   bool
}

// StateHub — издатель снапшотов. Медленный подписчик теряет промежуточные
// снапшоты, но всегда получит последний.
type StateHub struct {
	mu   sync.RWMutex
	snap Snapshot
	subs map[chan Snapshot]struct{}
}

func NewStateHub() *StateHub {
	return &StateHub{subs: make(map[chan Snapshot]struct{})}
}

// Subscribe возвращает канал снапшотов и функцию отписки.
func (h *StateHub) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	ch <- h.snap
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Current — последний снапшот без подписки.
func (h *StateHub) Current() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap
}

func (h *StateHub) update(mutate func(*Snapshot)) {
	h.mu.Lock()
	mutate(&h.snap)
	snap := h.snap
	for ch := range h.subs {
		// затираем неразобранный снапшот свежим
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
	h.mu.Unlock()
}

func (h *StateHub) SetPositions(positions []models.Position) {
	h.update(func(s *Snapshot) { s.Positions = positions })
}

func (h *StateHub) SetBalance(balance float64) {
	h.update(func(s *Snapshot) { s.Balance = balance })
}

func (h *StateHub) SetConnected(connected bool) {
	h.update(func(s *Snapshot) { s.Connected = connected })
}

func (h *StateHub) SetWorking(working bool) {
	h.update(func(s *Snapshot) { s.IsWorking = working })
}

func (h *StateHub) SetError(msg string, auth bool) {
	h.update(func(s *Snapshot) {
		s.LastError = msg
		s.AuthExpired = auth
	})
}

func (h *StateHub) ClearError() {
	h.update(func(s *Snapshot) {
		// сообщение о протухших ключах держим до смены ключей
		if s.AuthExpired {
			return
		}
		s.LastError = ""
	})
}
