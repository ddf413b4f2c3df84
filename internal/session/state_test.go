package session

import (
	"testing"

	"futures_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateHubSubscribeGetsCurrent(t *testing.T) {
	hub := NewStateHub()
	hub.SetBalance(500)

	snaps, cancel := hub.Subscribe()
	defer cancel()

	snap := <-snaps
	assert.Equal(t, 500.0, snap.Balance)
}

func TestStateHubSlowSubscriberGetsLatest(t *testing.T) {
	hub := NewStateHub()

	snaps, cancel := hub.Subscribe()
	defer cancel()
	<-snaps // начальный снапшот

	// подписчик не читает, промежуточные снапшоты затираются
	hub.SetBalance(1)
	hub.SetBalance(2)
	hub.SetBalance(3)

	snap := <-snaps
	assert.Equal(t, 3.0, snap.Balance)
}

func TestStateHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewStateHub()
	snaps, cancel := hub.Subscribe()
	<-snaps

	cancel()
	cancel() // повторная отписка безопасна

	_, ok := <-snaps
	assert.False(t, ok)

	// публикация после отписки не паникует
	hub.SetPositions([]models.Position{{Symbol: "BTCUSDT"}})
}

func TestStateHubAuthErrorSticks(t *testing.T) {
	hub := NewStateHub()

	hub.SetError("boom", false)
	hub.ClearError()
	require.Empty(t, hub.Current().LastError)

	hub.SetError("keys expired", true)
	hub.ClearError()
	assert.Equal(t, "keys expired", hub.Current().LastError)
	assert.True(t, hub.Current().AuthExpired)
}
