package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"futures_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBinance(t *testing.T, handler http.HandlerFunc) *Binance {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	b := NewBinance("key", "secret")
	b.baseURL = srv.URL
	return b
}

func TestBinanceSignedRequestQuery(t *testing.T) {
	var b *Binance
	b = newTestBinance(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-MBX-APIKEY"))

		q := r.URL.Query()
		assert.NotEmpty(t, q.Get("timestamp"))
		assert.Equal(t, "5000", q.Get("recvWindow"))
		require.NotEmpty(t, q.Get("signature"))

		// подпись считается по строке параметров без самой подписи
		raw := r.URL.RawQuery
		unsigned := raw[:len(raw)-len("&signature=")-len(q.Get("signature"))]
		assert.Equal(t, q.Get("signature"), b.sign(unsigned))

		w.Write([]byte(`[]`))
	})

	_, err := b.FetchPosition(context.Background(), "BTCUSDT")
	require.NoError(t, err)
}

func TestBinanceFetchCandles(t *testing.T) {
	b := newTestBinance(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/markPriceKlines", r.URL.Path)
		assert.Equal(t, "5m", r.URL.Query().Get("interval"))
		w.Write([]byte(`[
			[0,"100","101","99","100.5","10",59999,"1000",5,"0","0","0"],
			[60000,"100.5","102","100","101","12",119999,"1200",6,"0","0","0"]
		]`))
	})

	candles, err := b.FetchCandles(context.Background(), "BTCUSDT", 5)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, int64(60000), candles[1].StartTime)
	assert.Equal(t, 101.0, candles[1].Close)
	assert.Equal(t, "1200", candles[1].Turnover)
}

func TestBinanceFetchPositionSkipsFlat(t *testing.T) {
	b := newTestBinance(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"symbol":"BTCUSDT","positionAmt":"0.000","entryPrice":"0.0","markPrice":"0.0","leverage":"20","unRealizedProfit":"0"},
			{"symbol":"BTCUSDT","positionAmt":"-0.002","entryPrice":"30000","markPrice":"29900","leverage":"10","unRealizedProfit":"0.2"}
		]`))
	})

	pos, err := b.FetchPosition(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)

	assert.Equal(t, -0.002, pos.Size)
	assert.Equal(t, models.SideSell, pos.Side())
	assert.Equal(t, 30000.0, pos.EntryPrice)
}

func TestBinanceAuthErrorFromCode(t *testing.T) {
	b := newTestBinance(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2015,"msg":"Invalid API-key, IP, or permissions for action."}`))
	})

	_, err := b.FetchBalance(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "binance", authErr.Exchange)
}

func TestBinancePlaceMarketOrderParsesFill(t *testing.T) {
	b := newTestBinance(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "SELL", q.Get("side"))
		assert.Equal(t, "MARKET", q.Get("type"))
		assert.Equal(t, "0.01", q.Get("quantity"))
		w.Write([]byte(`{"orderId":123,"executedQty":"0.01","avgPrice":"30100.5"}`))
	})

	res, err := b.PlaceMarketOrder(context.Background(), "BTCUSDT", models.SideSell, "0.01")
	require.NoError(t, err)

	assert.Equal(t, "123", res.OrderID)
	assert.Equal(t, 0.01, res.FilledQty)
	assert.Equal(t, 30100.5, res.AvgPrice)
}

func TestBinancePlaceLimitOrderWithTPSLPlacesLegs(t *testing.T) {
	var orders []url.Values
	b := newTestBinance(t, func(w http.ResponseWriter, r *http.Request) {
		orders = append(orders, r.URL.Query())
		w.Write([]byte(`{"orderId":7,"executedQty":"0","avgPrice":"0"}`))
	})

	_, err := b.PlaceLimitOrderWithTPSL(context.Background(), LimitOrderRequest{
		Symbol:     "BTCUSDT",
		Side:       models.SideBuy,
		Qty:        "0.01",
		Price:      "30000",
		TakeProfit: "30600",
		StopLoss:   "29700",
	})
	require.NoError(t, err)
	require.Len(t, orders, 3)

	assert.Equal(t, "LIMIT", orders[0].Get("type"))
	assert.Equal(t, "BUY", orders[0].Get("side"))

	assert.Equal(t, "TAKE_PROFIT_MARKET", orders[1].Get("type"))
	assert.Equal(t, "SELL", orders[1].Get("side"))
	assert.Equal(t, "30600", orders[1].Get("stopPrice"))
	assert.Equal(t, "true", orders[1].Get("closePosition"))

	assert.Equal(t, "STOP_MARKET", orders[2].Get("type"))
	assert.Equal(t, "29700", orders[2].Get("stopPrice"))
}

func TestBinanceFetchBalanceUSDT(t *testing.T) {
	b := newTestBinance(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"asset":"BNB","balance":"0.5"},
			{"asset":"USDT","balance":"987.65"}
		]`))
	})

	balance, err := b.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 987.65, balance)
}

func TestBinanceCancelAllOrders(t *testing.T) {
	b := newTestBinance(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/fapi/v1/allOpenOrders", r.URL.Path)
		w.Write([]byte(`{"code":200,"msg":"ok"}`))
	})

	assert.NoError(t, b.CancelAllOrders(context.Background(), "BTCUSDT"))
}
