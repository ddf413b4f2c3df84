package models_test

import (
	"testing"

	"futures_bot/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestAccumulationRatio(t *testing.T) {
	s := models.TradingState{TotalPositionQuantity: 3.5, BaseOrderQuantity: 0.5}
	assert.Equal(t, 7.0, s.AccumulationRatio())

	assert.Zero(t, models.TradingState{}.AccumulationRatio())
}

func TestResetKeepsActivityAndBar(t *testing.T) {
	s := models.TradingState{
		IsActive:                 true,
		IsInPosition:             true,
		InitialEntryPrice:        100,
		CurrentAverageEntryPrice: 98,
		TotalPositionQuantity:    2,
		BaseOrderQuantity:        1,
		LastCandleTime:           600_000,
	}

	got := s.Reset()

	assert.True(t, got.IsActive)
	assert.Equal(t, int64(600_000), got.LastCandleTime)
	assert.False(t, got.IsInPosition)
	assert.Zero(t, got.TotalPositionQuantity)
	assert.Zero(t, got.InitialEntryPrice)
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, models.SideSell, models.SideBuy.Opposite())
	assert.Equal(t, models.SideBuy, models.SideSell.Opposite())
	assert.Equal(t, models.SideNone, models.SideNone.Opposite())
}

func TestPositionSide(t *testing.T) {
	assert.Equal(t, models.SideBuy, models.Position{Size: 1}.Side())
	assert.Equal(t, models.SideSell, models.Position{Size: -1}.Side())
	assert.Equal(t, models.SideNone, models.Position{}.Side())
	assert.Equal(t, 2.0, models.Position{Size: -2}.AbsSize())
}
