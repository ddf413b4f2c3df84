package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"futures_bot/internal/models"
	"futures_bot/internal/policy"
)

func TestSMAOpenSignalRisingMarket(t *testing.T) {
	p := policy.NewSMA(&mockGateway{}, policy.Options{})

	// 20 закрытий линейно 100 -> 120: последняя цена выше SMA(15)
	// без формирующейся свечи
	candles := risingCandles(20, 100, 120)
	assert.Equal(t, models.SideBuy, p.OpenSignal(candles))
}

func TestSMAOpenSignalFallingMarket(t *testing.T) {
	p := policy.NewSMA(&mockGateway{}, policy.Options{})
	candles := risingCandles(20, 120, 100)
	assert.Equal(t, models.SideSell, p.OpenSignal(candles))
}

func TestSMAOpenSignalInsufficientData(t *testing.T) {
	p := policy.NewSMA(&mockGateway{}, policy.Options{})
	assert.Equal(t, models.SideNone, p.OpenSignal(risingCandles(10, 100, 110)))
	assert.Equal(t, models.SideNone, p.OpenSignal(nil))
}

func TestMartingaleSignalLongOnly(t *testing.T) {
	p := policy.NewMartingale(&mockGateway{}, policy.Options{})
	assert.Equal(t, models.SideBuy, p.OpenSignal(risingCandles(20, 100, 120)))
	// нисходящий рынок мартингейлом не шортим
	assert.Equal(t, models.SideNone, p.OpenSignal(risingCandles(20, 120, 100)))
}

func TestMomentumSignalInsufficientData(t *testing.T) {
	p := policy.NewEMARSI(&mockGateway{}, policy.Options{})
	assert.Equal(t, models.SideNone, p.OpenSignal(risingCandles(10, 100, 110)))
}

func TestMomentumSignalStrongTrend(t *testing.T) {
	p := policy.NewEMARSI(&mockGateway{}, policy.Options{})

	// ровный рост, последняя свеча с широким телом: EMA7 > EMA14 + сильная свеча
	candles := risingCandles(30, 100, 115)
	last := &candles[len(candles)-1]
	last.Open = last.Close - 5 // тело заметно больше среднего

	assert.Equal(t, models.SideBuy, p.OpenSignal(candles))
}

func TestEMARSITargetTPAndSLFromATR(t *testing.T) {
	p := policy.NewEMARSI(&mockGateway{}, policy.Options{})

	// свечи с постоянным TR=2 (см. тест ATR): цели entry +/- 1.7*2 и 1.0*2
	candles := make([]models.Candle, 16)
	for i := range candles {
		base := 100.0 + float64(i)
		candles[i] = models.Candle{High: base + 1, Low: base - 1, Close: base}
	}
	pos := models.Position{Size: 1, EntryPrice: 110}

	tp, sl := p.TargetTPAndSL(candles, pos)
	assert.InDelta(t, 110+2*1.7, tp, 1e-9)
	assert.InDelta(t, 110-2*1.0, sl, 1e-9)

	// шорт зеркален
	pos.Size = -1
	tp, sl = p.TargetTPAndSL(candles, pos)
	assert.InDelta(t, 110-2*1.7, tp, 1e-9)
	assert.InDelta(t, 110+2*1.0, sl, 1e-9)
}

func TestPercentTargetTPAndSL(t *testing.T) {
	p := policy.NewSMA(&mockGateway{}, policy.Options{})
	pos := models.Position{Size: 1, EntryPrice: 200}

	tp, sl := p.TargetTPAndSL(nil, pos)
	assert.InDelta(t, 202, tp, 1e-9)
	assert.InDelta(t, 198, sl, 1e-9)
}
