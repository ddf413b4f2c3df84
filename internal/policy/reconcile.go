package policy

import (
	"context"
	"log"
	"math"
	"time"

	"futures_bot/internal/exchange"
	"futures_bot/internal/models"
)

// qtyEps — допуск сравнения объёмов (суммы тейков против размера позиции).
const qtyEps = 1e-9

/*
Контракт тейк-профитов:
- нет тейков — поставить два
- тейки есть и суммарный объём равен позиции — скип
- тейки есть, но суммарный объём не совпал (после доливки) — отменить всё и поставить два новых
- глубокая просадка (ratio > deepRatio) — один защитный тейк на весь размер
*/
type tpLadder struct {
	gw exchange.Gateway

	firstPct  float64 // первый тейк, доля от средней цены входа
	secondPct float64 // второй тейк

	shrinkRatio     float64 // после скольких входов проценты ужимаются
	shrinkFirstPct  float64
	shrinkSecondPct float64

	deepRatio    float64 // после скольких входов сворачиваемся в один защитный тейк
	defensivePct float64

	tpDelay     time.Duration
	qtyDecimals int
}

func (l *tpLadder) Reconcile(ctx context.Context, state models.TradingState, position models.Position, openOrders []models.OpenOrder) error {
	if state.BaseOrderQuantity == 0 {
		return nil
	}

	size := position.AbsSize()
	ratio := state.AccumulationRatio()

	if l.deepRatio > 0 && ratio > l.deepRatio {
		return l.reconcileDefensive(ctx, state, position, openOrders, size)
	}

	if len(openOrders) == 0 {
		return l.placeTwo(ctx, state, position, size)
	}

	// сравнение по сумме: покрывают ли тейки позицию целиком.
	// Сравниваем с тем, что выставил бы placeTwo: половины обрезаются до
	// qtyDecimals, нечётный размер иначе перевыставлялся бы каждый цикл.
	want := 2 * roundQty(size/2, l.qtyDecimals)
	if math.Abs(sumQty(openOrders)-want) > qtyEps {
		if err := l.gw.CancelAllOrders(ctx, position.Symbol); err != nil {
			return err
		}
		return l.placeTwo(ctx, state, position, size)
	}
	return nil
}

// reconcileDefensive — позиция пересижена: один reduce-only тейк на весь
// объём по сниженному проценту.
func (l *tpLadder) reconcileDefensive(ctx context.Context, state models.TradingState, position models.Position, openOrders []models.OpenOrder, size float64) error {
	if len(openOrders) == 1 && math.Abs(openOrders[0].OrigQty-roundQty(size, l.qtyDecimals)) <= qtyEps {
		return nil
	}
	if len(openOrders) > 0 {
		if err := l.gw.CancelAllOrders(ctx, position.Symbol); err != nil {
			return err
		}
	}

	price := l.exitPrice(state.CurrentAverageEntryPrice, l.defensivePct, position.Side())
	log.Printf("[TP] %s защитный тейк: qty=%s px=%s", position.Symbol,
		formatQty(size, l.qtyDecimals), formatPrice(price))

	_, err := l.gw.PlaceLimitReduceOnlyOrder(ctx, position.Symbol,
		position.Side().Opposite(), formatQty(size, l.qtyDecimals), formatPrice(price))
	return err
}

func (l *tpLadder) placeTwo(ctx context.Context, state models.TradingState, position models.Position, size float64) error {
	firstPct, secondPct := l.firstPct, l.secondPct
	if l.shrinkRatio > 0 && state.AccumulationRatio() > l.shrinkRatio {
		firstPct, secondPct = l.shrinkFirstPct, l.shrinkSecondPct
	}

	side := position.Side()
	first := l.exitPrice(state.CurrentAverageEntryPrice, firstPct, side)
	second := l.exitPrice(state.CurrentAverageEntryPrice, secondPct, side)
	half := formatQty(size/2, l.qtyDecimals)

	log.Printf("[TP] %s два тейка: qty=%s px=%s/%s", position.Symbol, half,
		formatPrice(first), formatPrice(second))

	if _, err := l.gw.PlaceLimitReduceOnlyOrder(ctx, position.Symbol, side.Opposite(), half, formatPrice(first)); err != nil {
		return err
	}

	// пауза против рейт-лимита и гонки с частичным исполнением
	if l.tpDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.tpDelay):
		}
	}

	_, err := l.gw.PlaceLimitReduceOnlyOrder(ctx, position.Symbol, side.Opposite(), half, formatPrice(second))
	return err
}

func (l *tpLadder) exitPrice(avgEntry, pct float64, side models.Side) float64 {
	if side == models.SideSell {
		return avgEntry * (1 - pct)
	}
	return avgEntry * (1 + pct)
}

// scaleIn — мартингейл-доливка против движения.
type scaleIn struct {
	gw          exchange.Gateway
	fraction    float64                     // доля базового объёма на доливку
	threshold   func(ratio float64) float64 // порог просадки по числу входов
	qtyDecimals int
}

func (s *scaleIn) Consider(ctx context.Context, state models.TradingState, position models.Position) error {
	if state.BaseOrderQuantity == 0 {
		return nil
	}
	qty := state.BaseOrderQuantity * s.fraction
	if qty <= 0 {
		return nil
	}

	pct := s.threshold(state.AccumulationRatio())

	entry := position.EntryPrice
	mark := position.MarkPrice
	if entry == 0 || mark == 0 {
		return nil
	}

	// доливаем только против позиции: лонг — цена ниже входа, шорт — выше
	var drawdown float64
	if position.Side() == models.SideSell {
		drawdown = mark - entry
	} else {
		drawdown = entry - mark
	}
	if drawdown < entry*pct {
		return nil
	}

	log.Printf("[SCALE-IN] %s qty=%s entry=%.5f mark=%.5f pct=%.3f",
		position.Symbol, formatQty(qty, s.qtyDecimals), entry, mark, pct)

	_, err := s.gw.PlaceMarketOrder(ctx, position.Symbol, position.Side(), formatQty(qty, s.qtyDecimals))
	return err
}
