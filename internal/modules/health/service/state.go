package service

import (
	"sync/atomic"
	"time"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	exchangeConnected atomic.Bool
	authExpired       atomic.Bool
	lastPollUnix      atomic.Int64 // unix seconds
	activeSessions    atomic.Int64
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetExchangeConnected(v bool) { s.exchangeConnected.Store(v) }
func (s *State) ExchangeConnected() bool     { return s.exchangeConnected.Load() }

func (s *State) SetAuthExpired(v bool) { s.authExpired.Store(v) }
func (s *State) AuthExpired() bool     { return s.authExpired.Load() }

func (s *State) SetActiveSessions(n int) { s.activeSessions.Store(int64(n)) }
func (s *State) ActiveSessions() int     { return int(s.activeSessions.Load()) }

func (s *State) TouchPoll(t time.Time) { s.lastPollUnix.Store(t.Unix()) }
func (s *State) LastPoll() time.Time {
	u := s.lastPollUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
