package policy

import (
	"context"
	"time"

	"futures_bot/internal/exchange"
	"futures_bot/internal/models"
)

// Martingale — медленный вариант на 15-минутках: доливка 0.4 базового объёма
// с порогами 1%/2%/3% по числу входов, оба тейка 1.2%. После 12 входов
// проценты ужимаются до 0.3%/0.5%, после 32 остаётся один защитный тейк;
// порог ужатия держим ниже deepRatio, иначе эта ветка недостижима.
type Martingale struct {
	gw     exchange.Gateway
	ladder tpLadder
	scale  scaleIn

	smaPeriod int
	stopPct   float64
}

func NewMartingale(gw exchange.Gateway, opts Options) *Martingale {
	fraction := opts.ScaleInFraction
	if fraction == 0 {
		fraction = 0.4
	}
	decimals := opts.QtyDecimals
	if decimals == 0 {
		decimals = -1 // целые контракты
	}
	return &Martingale{
		gw: gw,
		ladder: tpLadder{
			gw:              gw,
			firstPct:        0.012,
			secondPct:       0.012,
			shrinkRatio:     12,
			shrinkFirstPct:  0.003,
			shrinkSecondPct: 0.005,
			deepRatio:       32,
			defensivePct:    0.003,
			tpDelay:         opts.TakeProfitDelay,
			qtyDecimals:     decimals,
		},
		scale: scaleIn{
			gw:       gw,
			fraction: fraction,
			// строго меньше 6 входов 1%, от 6 до 12 включительно 2%, дальше 3%
			threshold: func(ratio float64) float64 {
				switch {
				case ratio < 6:
					return 0.01
				case ratio > 12:
					return 0.03
				default:
					return 0.02
				}
			},
			qtyDecimals: decimals,
		},
		smaPeriod: 15,
		stopPct:   0.01,
	}
}

func (p *Martingale) Name() Name { return NameMartingale }

func (p *Martingale) Interval() int { return 15 }

func (p *Martingale) SignalDelay() time.Duration { return 30 * time.Second }

func (p *Martingale) PositionDelay() time.Duration { return 20 * time.Second }

func (p *Martingale) OpenSignal(candles []models.Candle) models.Side {
	// вход только в лонг: усредняемся против просадки, шорт не набираем
	if smaSignal(candles, p.smaPeriod) == models.SideBuy {
		return models.SideBuy
	}
	return models.SideNone
}

func (p *Martingale) TargetTPAndSL(_ []models.Candle, position models.Position) (float64, float64) {
	entry := position.EntryPrice
	if position.Side() == models.SideSell {
		return entry * (1 - p.ladder.firstPct), entry * (1 + p.stopPct)
	}
	return entry * (1 + p.ladder.firstPct), entry * (1 - p.stopPct)
}

func (p *Martingale) ReconcileTakeProfits(ctx context.Context, state models.TradingState, position models.Position, openOrders []models.OpenOrder) error {
	return p.ladder.Reconcile(ctx, state, position, openOrders)
}

func (p *Martingale) ConsiderScaleIn(ctx context.Context, state models.TradingState, position models.Position) error {
	return p.scale.Consider(ctx, state, position)
}
