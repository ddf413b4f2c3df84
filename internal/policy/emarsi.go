package policy

import (
	"context"
	"time"

	"futures_bot/internal/exchange"
	"futures_bot/internal/indicators"
	"futures_bot/internal/models"
)

// EMARSI — моментум-вариант: вход по EMA7/EMA14 + RSI + сильной свече,
// TP/SL от ATR. Тейки ведёт той же лестницей, что и SMA-вариант.
type EMARSI struct {
	gw     exchange.Gateway
	ladder tpLadder
	scale  scaleIn

	atrPeriod    int
	tpMultiplier float64
	slMultiplier float64
}

func NewEMARSI(gw exchange.Gateway, opts Options) *EMARSI {
	fraction := opts.ScaleInFraction
	if fraction == 0 {
		fraction = 0.5
	}
	decimals := opts.QtyDecimals
	if decimals == 0 {
		decimals = 4
	}
	return &EMARSI{
		gw: gw,
		ladder: tpLadder{
			gw:           gw,
			firstPct:     0.01,
			secondPct:    0.015,
			deepRatio:    30,
			defensivePct: 0.003,
			tpDelay:      opts.TakeProfitDelay,
			qtyDecimals:  decimals,
		},
		scale: scaleIn{
			gw:       gw,
			fraction: fraction,
			// до 10 входов включительно 2%, дальше 3%
			threshold: func(ratio float64) float64 {
				if ratio > 10 {
					return 0.03
				}
				return 0.02
			},
			qtyDecimals: decimals,
		},
		atrPeriod:    14,
		tpMultiplier: 1.7,
		slMultiplier: 1.0,
	}
}

func (p *EMARSI) Name() Name { return NameEMARSI }

func (p *EMARSI) Interval() int { return 3 }

func (p *EMARSI) SignalDelay() time.Duration { return 20 * time.Second }

func (p *EMARSI) PositionDelay() time.Duration { return 5 * time.Second }

func (p *EMARSI) OpenSignal(candles []models.Candle) models.Side {
	return momentumSignal(candles)
}

// TP = entry + 1.7*ATR, SL = entry - 1.0*ATR для лонга; для шорта зеркально.
func (p *EMARSI) TargetTPAndSL(candles []models.Candle, position models.Position) (float64, float64) {
	entry := position.EntryPrice
	atr := indicators.ATR(candles, p.atrPeriod)

	if position.Side() == models.SideSell {
		return entry - atr*p.tpMultiplier, entry + atr*p.slMultiplier
	}
	return entry + atr*p.tpMultiplier, entry - atr*p.slMultiplier
}

func (p *EMARSI) ReconcileTakeProfits(ctx context.Context, state models.TradingState, position models.Position, openOrders []models.OpenOrder) error {
	return p.ladder.Reconcile(ctx, state, position, openOrders)
}

func (p *EMARSI) ConsiderScaleIn(ctx context.Context, state models.TradingState, position models.Position) error {
	return p.scale.Consider(ctx, state, position)
}
