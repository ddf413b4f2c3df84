package policy

import (
	"context"
	"math"
	"strconv"
	"time"

	"futures_bot/internal/exchange"
	"futures_bot/internal/models"
)

// OrderPolicy — решающая логика одной торговой сессии: сигнал на вход,
// доливки (мартингейл) и поддержание тейк-профитов. Варианты выбираются
// фабрикой при старте сессии, контроллер про конкретику не знает.
type OrderPolicy interface {
	// Name — идентификатор варианта (для логов и настроек).
	Name() Name
	// Interval — таймфрейм свечей в минутах.
	Interval() int
	// SignalDelay — пауза между циклами сигнала.
	SignalDelay() time.Duration
	// PositionDelay — пауза между циклами опроса позиции (короче, пока в позиции).
	PositionDelay() time.Duration

	// OpenSignal решает, открывать ли позицию по свечам. SideNone — ждать.
	OpenSignal(candles []models.Candle) models.Side

	// TargetTPAndSL считает целевые TP/SL для открытой позиции.
	TargetTPAndSL(candles []models.Candle, position models.Position) (tp, sl float64)

	// ReconcileTakeProfits приводит открытые ордера к целевому набору тейков.
	// Идемпотентна: повторный вызов на согласованном состоянии ничего не шлёт.
	ReconcileTakeProfits(ctx context.Context, state models.TradingState, position models.Position, openOrders []models.OpenOrder) error

	// ConsiderScaleIn решает, доливать ли убыточную позицию.
	ConsiderScaleIn(ctx context.Context, state models.TradingState, position models.Position) error
}

// Name — идентификатор варианта в настройках.
type Name string

const (
	NameSMA        Name = "sma"
	NameEMARSI     Name = "emarsi"
	NameMartingale Name = "martingale"
)

// Options — ручки варианта. Нулевые значения заменяются дефолтами варианта.
type Options struct {
	// Доля базового объёма на доливку (0.5 у sma-варианта, 0.4 у мартингейла).
	ScaleInFraction float64
	// Пауза между установкой первого и второго тейка.
	TakeProfitDelay time.Duration
	// Знаков после запятой в объёме заявки; -1 — целые контракты.
	QtyDecimals int
}

// New — фабрика вариантов (как выбор стратегии у раннера).
func New(name Name, gw exchange.Gateway, opts Options) OrderPolicy {
	switch name {
	case NameEMARSI:
		return NewEMARSI(gw, opts)
	case NameMartingale:
		return NewMartingale(gw, opts)
	case NameSMA:
		fallthrough
	default:
		return NewSMA(gw, opts)
	}
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 5, 64)
}

func formatQty(q float64, decimals int) string {
	if decimals < 0 {
		return strconv.Itoa(int(q))
	}
	factor := math.Pow(10, float64(decimals))
	return strconv.FormatFloat(math.Floor(q*factor)/factor, 'f', -1, 64)
}

// roundQty — числовой близнец formatQty: объём, который реально уйдёт в заявку.
func roundQty(q float64, decimals int) float64 {
	if decimals < 0 {
		return float64(int(q))
	}
	factor := math.Pow(10, float64(decimals))
	return math.Floor(q*factor) / factor
}

func sumQty(orders []models.OpenOrder) float64 {
	sum := 0.0
	for _, o := range orders {
		sum += o.OrigQty
	}
	return sum
}

func closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
