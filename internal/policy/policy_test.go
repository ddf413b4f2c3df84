package policy_test

import (
	"context"

	"futures_bot/internal/exchange"
	"futures_bot/internal/models"
)

type placedOrder struct {
	Symbol string
	Side   models.Side
	Qty    string
	Price  string
}

// mockGateway пишет все вызовы, сеть не трогает.
type mockGateway struct {
	MarketOrders []placedOrder
	LimitOrders  []placedOrder
	CancelCalls  int

	Candles   []models.Candle
	Position  *models.Position
	Orders    []models.OpenOrder
	Balance   float64
	FailAuth  bool
	LastLever int
}

var _ exchange.Gateway = (*mockGateway)(nil)

func (m *mockGateway) FetchCandles(_ context.Context, _ string, _ int) ([]models.Candle, error) {
	if m.FailAuth {
		return nil, &exchange.AuthError{Exchange: "mock", Msg: "expired"}
	}
	return m.Candles, nil
}

func (m *mockGateway) FetchPosition(_ context.Context, _ string) (*models.Position, error) {
	return m.Position, nil
}

func (m *mockGateway) FetchOpenOrders(_ context.Context, _ string) ([]models.OpenOrder, error) {
	return m.Orders, nil
}

func (m *mockGateway) PlaceMarketOrder(_ context.Context, symbol string, side models.Side, qty string) (*models.OrderResult, error) {
	m.MarketOrders = append(m.MarketOrders, placedOrder{Symbol: symbol, Side: side, Qty: qty})
	return &models.OrderResult{OrderID: "m1"}, nil
}

func (m *mockGateway) PlaceLimitReduceOnlyOrder(_ context.Context, symbol string, side models.Side, qty, price string) (*models.OrderResult, error) {
	m.LimitOrders = append(m.LimitOrders, placedOrder{Symbol: symbol, Side: side, Qty: qty, Price: price})
	return &models.OrderResult{OrderID: "l1"}, nil
}

func (m *mockGateway) PlaceLimitOrderWithTPSL(_ context.Context, req exchange.LimitOrderRequest) (*models.OrderResult, error) {
	m.LimitOrders = append(m.LimitOrders, placedOrder{Symbol: req.Symbol, Side: req.Side, Qty: req.Qty, Price: req.Price})
	return &models.OrderResult{OrderID: "l2"}, nil
}

func (m *mockGateway) CancelAllOrders(_ context.Context, _ string) error {
	m.CancelCalls++
	m.Orders = nil
	return nil
}

func (m *mockGateway) SetLeverage(_ context.Context, _ string, leverage int) error {
	m.LastLever = leverage
	return nil
}

func (m *mockGateway) FetchBalance(_ context.Context) (float64, error) {
	return m.Balance, nil
}

func risingCandles(n int, from, to float64) []models.Candle {
	candles := make([]models.Candle, n)
	step := (to - from) / float64(n-1)
	for i := range candles {
		px := from + step*float64(i)
		candles[i] = models.Candle{
			StartTime: int64(i) * 60_000,
			Open:      px - step/2,
			High:      px + 1,
			Low:       px - 1,
			Close:     px,
		}
	}
	return candles
}
