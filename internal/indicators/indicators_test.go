package indicators_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures_bot/internal/indicators"
	"futures_bot/internal/models"
)

func TestSMA(t *testing.T) {
	assert.Equal(t, 0.0, indicators.SMA(nil, 5))
	assert.Equal(t, 0.0, indicators.SMA([]float64{1, 2, 3}, 5))
	assert.Equal(t, 0.0, indicators.SMA([]float64{1, 2, 3}, 0))

	// среднее берётся только по хвосту
	assert.InDelta(t, 4.0, indicators.SMA([]float64{100, 3, 4, 5}, 3), 1e-9)
}

func TestEMA(t *testing.T) {
	assert.Nil(t, indicators.EMA([]float64{1, 2}, 3))

	prices := []float64{1, 2, 3, 4, 5}
	ema := indicators.EMA(prices, 3)
	require.Len(t, ema, 3)

	// затравка = SMA первых трёх
	assert.InDelta(t, 2.0, ema[0], 1e-9)
	// k = 2/4 = 0.5
	assert.InDelta(t, (4.0-2.0)*0.5+2.0, ema[1], 1e-9)
	assert.InDelta(t, (5.0-3.0)*0.5+3.0, ema[2], 1e-9)
}

func TestRSIBounds(t *testing.T) {
	assert.Nil(t, indicators.RSI([]float64{1, 2, 3}, 14))

	// монотонный рост: нет лоссов, RSI стремится к 100
	up := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	rsiUp := indicators.RSI(up, 14)
	require.NotEmpty(t, rsiUp)
	for _, v := range rsiUp {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
	assert.InDelta(t, 100.0, rsiUp[len(rsiUp)-1], 1.0)

	// монотонное падение: нет гейнов, RSI стремится к 0
	down := make([]float64, 30)
	for i := range down {
		down[i] = 100 - float64(i)
	}
	rsiDown := indicators.RSI(down, 14)
	require.NotEmpty(t, rsiDown)
	assert.InDelta(t, 0.0, rsiDown[len(rsiDown)-1], 1.0)
}

func TestATR(t *testing.T) {
	candles := []models.Candle{
		{High: 12, Low: 8, Close: 10},
		{High: 13, Low: 9, Close: 12},
	}
	// мало свечей для периода 14
	assert.Equal(t, 0.0, indicators.ATR(candles, 14))

	many := make([]models.Candle, 0, 16)
	for i := 0; i < 16; i++ {
		base := 100.0 + float64(i)
		many = append(many, models.Candle{High: base + 1, Low: base - 1, Close: base})
	}
	// tr = max(2, |h-prevC|=2, |l-prevC|=0) = 2 для каждой свечи
	assert.InDelta(t, 2.0, indicators.ATR(many, 14), 1e-9)
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, indicators.StdDev(nil))
	assert.Equal(t, 0.0, indicators.StdDev([]float64{5, 5, 5}))
	// популяционное: делим на N
	assert.InDelta(t, 2.0, indicators.StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}
