package policy

import (
	"math"

	"futures_bot/internal/indicators"
	"futures_bot/internal/models"
)

/*
Моментум-сигнал:
- rsi < 35 при EMA7 > EMA14 — лонг сразу
- rsi > 65 при EMA7 < EMA14 — шорт сразу
- иначе направление EMA подтверждается сильной свечой
  (тело больше 1.2х среднего тела за 10 свечей)
*/
func momentumSignal(candles []models.Candle) models.Side {
	if len(candles) < 15 {
		return models.SideNone
	}

	prices := closes(candles)
	ema7 := indicators.EMA(prices, 7)
	ema14 := indicators.EMA(prices, 14)
	rsi := indicators.RSI(prices, 14)
	if len(ema7) == 0 || len(ema14) == 0 || len(rsi) == 0 {
		return models.SideNone
	}

	bodies := make([]float64, len(candles))
	for i, c := range candles {
		bodies[i] = math.Abs(c.Open - c.Close)
	}
	avgBody := indicators.SMA(bodies, 10)
	lastBody := bodies[len(bodies)-1]

	lastEma7 := ema7[len(ema7)-1]
	lastEma14 := ema14[len(ema14)-1]
	lastRsi := rsi[len(rsi)-1]

	emaUp := lastEma7 > lastEma14
	emaDown := lastEma7 < lastEma14
	strongCandle := lastBody > avgBody*1.2

	if lastRsi < 35 && emaUp {
		return models.SideBuy
	}
	if lastRsi > 65 && emaDown {
		return models.SideSell
	}
	if emaUp && strongCandle {
		return models.SideBuy
	}
	if emaDown && strongCandle {
		return models.SideSell
	}
	return models.SideNone
}

// smaSignal — пересечение последнего закрытия и SMA(period), посчитанной
// без формирующейся свечи.
func smaSignal(candles []models.Candle, period int) models.Side {
	if len(candles) < period+1 {
		return models.SideNone
	}
	sma := indicators.SMA(closes(candles[:len(candles)-1]), period)
	if sma == 0 {
		return models.SideNone
	}

	last := candles[len(candles)-1].Close
	switch {
	case last > sma:
		return models.SideBuy
	case last < sma:
		return models.SideSell
	default:
		return models.SideNone
	}
}
