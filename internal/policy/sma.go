package policy

import (
	"context"
	"time"

	"futures_bot/internal/exchange"
	"futures_bot/internal/models"
)

// SMA — базовый вариант: вход по пересечению SMA(15), два тейка 1%/1.5%,
// доливка половиной базового объёма, защитный тейк 0.3% после 30 входов.
type SMA struct {
	gw     exchange.Gateway
	ladder tpLadder
	scale  scaleIn

	smaPeriod int
	stopPct   float64
}

func NewSMA(gw exchange.Gateway, opts Options) *SMA {
	fraction := opts.ScaleInFraction
	if fraction == 0 {
		fraction = 0.5
	}
	decimals := opts.QtyDecimals
	if decimals == 0 {
		decimals = 4
	}
	return &SMA{
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
		smaPeriod: 15,
		stopPct:   0.01,
	}
}

func (p *SMA) Name() Name { return NameSMA }

func (p *SMA) Interval() int { return 5 }

func (p *SMA) SignalDelay() time.Duration { return 10 * time.Second }

func (p *SMA) PositionDelay() time.Duration { return 5 * time.Second }

func (p *SMA) OpenSignal(candles []models.Candle) models.Side {
	return smaSignal(candles, p.smaPeriod)
}

// фиксированные проценты от средней цены входа
func (p *SMA) TargetTPAndSL(_ []models.Candle, position models.Position) (float64, float64) {
	entry := position.EntryPrice
	if position.Side() == models.SideSell {
		return entry * (1 - p.ladder.firstPct), entry * (1 + p.stopPct)
	}
	return entry * (1 + p.ladder.firstPct), entry * (1 - p.stopPct)
}

func (p *SMA) ReconcileTakeProfits(ctx context.Context, state models.TradingState, position models.Position, openOrders []models.OpenOrder) error {
	return p.ladder.Reconcile(ctx, state, position, openOrders)
}

func (p *SMA) ConsiderScaleIn(ctx context.Context, state models.TradingState, position models.Position) error {
	return p.scale.Consider(ctx, state, position)
}
