package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"futures_bot/internal/exchange"
	"futures_bot/internal/models"
	"futures_bot/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type placedOrder struct {
	Symbol string
	Side   models.Side
	Qty    string
	Price  string
}

// stubGateway пишет все вызовы, сеть не трогает.
type stubGateway struct {
	mu sync.Mutex

	MarketOrders []placedOrder
	LimitOrders  []placedOrder
	CancelCalls  int

	Candles   []models.Candle
	Position  *models.Position
	Balance   float64
	FailAuth  bool
	OrderErr  error
	LastLever int
}

var _ exchange.Gateway = (*stubGateway)(nil)

func (g *stubGateway) FetchCandles(_ context.Context, _ string, _ int) ([]models.Candle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailAuth {
		return nil, &exchange.AuthError{Exchange: "stub", Msg: "expired"}
	}
	return g.Candles, nil
}

func (g *stubGateway) FetchPosition(_ context.Context, _ string) (*models.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailAuth {
		return nil, &exchange.AuthError{Exchange: "stub", Msg: "expired"}
	}
	return g.Position, nil
}

func (g *stubGateway) FetchOpenOrders(_ context.Context, _ string) ([]models.OpenOrder, error) {
	return nil, nil
}

func (g *stubGateway) PlaceMarketOrder(_ context.Context, symbol string, side models.Side, qty string) (*models.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.MarketOrders = append(g.MarketOrders, placedOrder{Symbol: symbol, Side: side, Qty: qty})
	if g.OrderErr != nil {
		return nil, g.OrderErr
	}
	return &models.OrderResult{OrderID: "m1", AvgPrice: 100}, nil
}

func (g *stubGateway) PlaceLimitReduceOnlyOrder(_ context.Context, symbol string, side models.Side, qty, price string) (*models.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.LimitOrders = append(g.LimitOrders, placedOrder{Symbol: symbol, Side: side, Qty: qty, Price: price})
	return &models.OrderResult{OrderID: "l1"}, nil
}

func (g *stubGateway) PlaceLimitOrderWithTPSL(_ context.Context, req exchange.LimitOrderRequest) (*models.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.LimitOrders = append(g.LimitOrders, placedOrder{Symbol: req.Symbol, Side: req.Side, Qty: req.Qty, Price: req.Price})
	return &models.OrderResult{OrderID: "l2"}, nil
}

func (g *stubGateway) CancelAllOrders(_ context.Context, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CancelCalls++
	return nil
}

func (g *stubGateway) SetLeverage(_ context.Context, _ string, leverage int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.LastLever = leverage
	return nil
}

func (g *stubGateway) FetchBalance(_ context.Context) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Balance, nil
}

// stubPolicy отдаёт заранее заданный сигнал и пишет вызовы.
type stubPolicy struct {
	side models.Side

	mu             sync.Mutex
	reconcileCalls int
	scaleInCalls   int
	lastState      models.TradingState
}

var _ policy.OrderPolicy = (*stubPolicy)(nil)

func (p *stubPolicy) Name() policy.Name              { return "stub" }
func (p *stubPolicy) Interval() int                  { return 1 }
func (p *stubPolicy) SignalDelay() time.Duration     { return time.Millisecond }
func (p *stubPolicy) PositionDelay() time.Duration   { return time.Millisecond }

func (p *stubPolicy) OpenSignal([]models.Candle) models.Side { return p.side }

func (p *stubPolicy) TargetTPAndSL(_ []models.Candle, position models.Position) (float64, float64) {
	return position.EntryPrice * 1.01, position.EntryPrice * 0.99
}

func (p *stubPolicy) ReconcileTakeProfits(_ context.Context, state models.TradingState, _ models.Position, _ []models.OpenOrder) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconcileCalls++
	p.lastState = state
	return nil
}

func (p *stubPolicy) ConsiderScaleIn(_ context.Context, state models.TradingState, _ models.Position) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scaleInCalls++
	return nil
}

func candlesAt(bar int64) []models.Candle {
	candles := make([]models.Candle, 20)
	for i := range candles {
		candles[i] = models.Candle{
			StartTime: bar - int64(len(candles)-1-i)*60_000,
			Open:      100, High: 101, Low: 99, Close: 100,
		}
	}
	return candles
}

func newTestController(gw *stubGateway, pol policy.OrderPolicy) *Controller {
	ticker := models.DefaultTicker()
	ticker.Qty = 1
	return NewController(gw, pol, NewStateHub(), nil, ticker)
}

func TestSignalCycleOpensPosition(t *testing.T) {
	gw := &stubGateway{Candles: candlesAt(600_000)}
	pol := &stubPolicy{side: models.SideBuy}
	c := newTestController(gw, pol)

	c.runSignalCycle(context.Background())

	require.Len(t, gw.MarketOrders, 1)
	assert.Equal(t, models.SideBuy, gw.MarketOrders[0].Side)

	state := c.State()
	assert.True(t, state.IsInPosition)
	assert.Equal(t, 100.0, state.InitialEntryPrice)
	assert.Equal(t, int64(600_000), state.LastCandleTime)
}

func TestSignalCycleSameBarNoReentry(t *testing.T) {
	gw := &stubGateway{Candles: candlesAt(600_000)}
	pol := &stubPolicy{side: models.SideBuy}
	c := newTestController(gw, pol)
	ctx := context.Background()

	c.runSignalCycle(ctx)
	require.Len(t, gw.MarketOrders, 1)

	// позиция закрылась на том же баре
	c.runPositionCycle(ctx)
	assert.False(t, c.State().IsInPosition)

	// бар тот же, повторного входа нет
	c.runSignalCycle(ctx)
	assert.Len(t, gw.MarketOrders, 1)

	// новый бар — входим снова
	gw.Candles = candlesAt(660_000)
	c.runSignalCycle(ctx)
	assert.Len(t, gw.MarketOrders, 2)
}

func TestSignalCycleNoSignalStillMarksBar(t *testing.T) {
	gw := &stubGateway{Candles: candlesAt(600_000)}
	pol := &stubPolicy{side: models.SideNone}
	c := newTestController(gw, pol)

	c.runSignalCycle(context.Background())

	assert.Empty(t, gw.MarketOrders)
	assert.Equal(t, int64(600_000), c.State().LastCandleTime)
}

func TestSignalCycleIgnoresStaleCandles(t *testing.T) {
	gw := &stubGateway{Candles: candlesAt(600_000)}
	pol := &stubPolicy{side: models.SideNone}
	c := newTestController(gw, pol)
	ctx := context.Background()

	c.runSignalCycle(ctx)
	require.Equal(t, int64(600_000), c.State().LastCandleTime)

	// биржа прислала отставшую пачку свечей: метка бара не откатывается
	// и политика по старым свечам не запускается
	gw.Candles = candlesAt(540_000)
	pol.side = models.SideBuy
	c.runSignalCycle(ctx)

	assert.Equal(t, int64(600_000), c.State().LastCandleTime)
	assert.Empty(t, gw.MarketOrders)
}

func TestSignalCycleFailedEntryNoRetrySameBar(t *testing.T) {
	gw := &stubGateway{Candles: candlesAt(600_000), OrderErr: errors.New("order rejected")}
	pol := &stubPolicy{side: models.SideBuy}
	c := newTestController(gw, pol)
	ctx := context.Background()

	c.runSignalCycle(ctx)
	require.Len(t, gw.MarketOrders, 1)
	assert.False(t, c.State().IsInPosition)

	// та же свеча — второй попытки входа нет
	c.runSignalCycle(ctx)
	assert.Len(t, gw.MarketOrders, 1)

	// следующий бар — попытка повторяется
	gw.Candles = candlesAt(660_000)
	c.runSignalCycle(ctx)
	assert.Len(t, gw.MarketOrders, 2)
}

func TestPositionCycleAdoptsManualPosition(t *testing.T) {
	gw := &stubGateway{
		Position: &models.Position{Symbol: "BTCUSDT", Size: 2, EntryPrice: 95, MarkPrice: 94},
		Balance:  1000,
	}
	pol := &stubPolicy{}
	c := newTestController(gw, pol)

	c.runPositionCycle(context.Background())

	state := c.State()
	assert.True(t, state.IsInPosition)
	assert.Equal(t, 95.0, state.InitialEntryPrice)
	assert.Equal(t, 2.0, state.TotalPositionQuantity)

	assert.Equal(t, 1, pol.reconcileCalls)
	assert.Equal(t, 1, pol.scaleInCalls)
	assert.Equal(t, 2.0, pol.lastState.TotalPositionQuantity)
	assert.Equal(t, 1000.0, c.hub.Current().Balance)
}

func TestPositionCycleClosedResetsAndCancels(t *testing.T) {
	gw := &stubGateway{Candles: candlesAt(600_000)}
	pol := &stubPolicy{side: models.SideBuy}
	c := newTestController(gw, pol)
	ctx := context.Background()

	c.runSignalCycle(ctx)
	require.True(t, c.State().IsInPosition)

	c.runPositionCycle(ctx)

	state := c.State()
	assert.False(t, state.IsInPosition)
	assert.Zero(t, state.TotalPositionQuantity)
	assert.Equal(t, 1.0, state.BaseOrderQuantity)
	assert.Equal(t, 1, gw.CancelCalls)
	assert.Equal(t, 0, pol.reconcileCalls)
}

func TestAuthErrorMessageSticks(t *testing.T) {
	gw := &stubGateway{FailAuth: true}
	pol := &stubPolicy{side: models.SideBuy}
	c := newTestController(gw, pol)
	ctx := context.Background()

	c.runSignalCycle(ctx)

	snap := c.hub.Current()
	assert.True(t, snap.AuthExpired)
	assert.Equal(t, authExpiredMsg, snap.LastError)
	assert.False(t, snap.Connected)

	// сообщение о ключах не сбрасывается таймером
	c.hub.ClearError()
	assert.Equal(t, authExpiredMsg, c.hub.Current().LastError)
}

func TestStartStop(t *testing.T) {
	gw := &stubGateway{Candles: candlesAt(600_000)}
	pol := &stubPolicy{side: models.SideNone}
	c := newTestController(gw, pol)

	require.NoError(t, c.Start(context.Background()))
	assert.Error(t, c.Start(context.Background()))
	assert.True(t, c.hub.Current().IsWorking)

	c.Stop()
	assert.False(t, c.hub.Current().IsWorking)
	// плечо выставили при старте сессии
	assert.Equal(t, 10, gw.LastLever)

	// после Stop можно стартовать заново
	require.NoError(t, c.Start(context.Background()))
	c.Stop()
}

func TestClosePosition(t *testing.T) {
	gw := &stubGateway{
		Position: &models.Position{Symbol: "BTCUSDT", Size: 3, EntryPrice: 100},
	}
	pol := &stubPolicy{}
	c := newTestController(gw, pol)
	ctx := context.Background()

	c.runPositionCycle(ctx)
	require.True(t, c.State().IsInPosition)

	require.NoError(t, c.ClosePosition(ctx))

	require.Len(t, gw.MarketOrders, 1)
	assert.Equal(t, models.SideSell, gw.MarketOrders[0].Side)
	assert.Equal(t, "3", gw.MarketOrders[0].Qty)
	assert.Equal(t, 1, gw.CancelCalls)
	assert.False(t, c.State().IsInPosition)
}

func TestClosePositionFlatNoop(t *testing.T) {
	gw := &stubGateway{}
	c := newTestController(gw, &stubPolicy{})

	require.NoError(t, c.ClosePosition(context.Background()))
	assert.Empty(t, gw.MarketOrders)
	assert.Zero(t, gw.CancelCalls)
}
