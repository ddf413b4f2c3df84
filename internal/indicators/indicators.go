package indicators

import (
	"math"

	"futures_bot/internal/models"
)

// Пакет считает индикаторы по закрытиям/OHLC. Все функции тотальные:
// при нехватке данных возвращают нулевое значение, не ошибку — вызывающий
// обязан трактовать его как «данных мало, цикл пропустить».

// SMA — среднее последних period значений. 0 если значений меньше period.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMA — затравка SMA первых period значений, дальше рекуррента
// ema[i] = (v[i]-ema[i-1])*k + ema[i-1], k = 2/(period+1).
// Пустой срез если значений меньше period.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	ema := make([]float64, 0, len(values)-period+1)

	prev := 0.0
	for _, v := range values[:period] {
		prev += v
	}
	prev /= float64(period)
	ema = append(ema, prev)

	for _, v := range values[period:] {
		prev = (v-prev)*k + prev
		ema = append(ema, prev)
	}
	return ema
}

// RSI по Уайлдеру: средний gain/loss затравливается первыми period дельтами,
// затем сглаживается с весом 1/period. При нулевом среднем лоссе RS = 100,
// не бесконечность.
func RSI(values []float64, period int) []float64 {
	if period <= 0 || len(values) <= period {
		return nil
	}

	gainSum := 0.0
	lossSum := 0.0
	for i := 1; i < period; i++ {
		delta := values[i] - values[i-1]
		if delta >= 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	gainSum /= float64(period)
	lossSum /= float64(period)

	rsi := make([]float64, 0, len(values)-period+1)
	rs := 100.0
	if lossSum != 0 {
		rs = gainSum / lossSum
	}
	rsi = append(rsi, 100-100/(1+rs))

	for i := period; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gain := 0.0
		loss := 0.0
		if delta >= 0 {
			gain = delta
		} else {
			loss = -delta
		}

		gainSum = (gainSum*float64(period-1) + gain) / float64(period)
		lossSum = (lossSum*float64(period-1) + loss) / float64(period)

		rs = 100.0
		if lossSum != 0 {
			rs = gainSum / lossSum
		}
		rsi = append(rsi, 100-100/(1+rs))
	}
	return rsi
}

// ATR — истинный диапазон tr = max(h-l, |h-prevClose|, |l-prevClose|),
// простое среднее последних period значений. Нужно минимум period+1 свечей.
func ATR(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		c := candles[i]
		prevClose := candles[i-1].Close
		tr := math.Max(c.High-c.Low,
			math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
		trs = append(trs, tr)
	}
	sum := 0.0
	for _, tr := range trs[len(trs)-period:] {
		sum += tr
	}
	return sum / float64(period)
}

// StdDev — популяционное стандартное отклонение (делим на N).
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
