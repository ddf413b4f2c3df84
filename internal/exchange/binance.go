package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"futures_bot/internal/models"
)

const binanceBaseURL = "https://fapi.binance.com"

// Binance — клиент USDT-M фьючерсов. Параметры в query string,
// подпись HMAC-SHA256 по всей строке параметров.
type Binance struct {
	apiKey    string
	apiSecret string
	baseURL   string
	http      *http.Client
}

func NewBinance(apiKey, apiSecret string) *Binance {
	return &Binance{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   binanceBaseURL,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *Binance) sign(query string) string {
	h := hmac.New(sha256.New, []byte(b.apiSecret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

func (b *Binance) signedRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.Itoa(recvWindow))
	query := params.Encode()
	query += "&signature=" + b.sign(query)

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", b.apiKey)

	return b.do(req)
}

func (b *Binance) publicRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := b.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return b.do(req)
}

func (b *Binance) do(req *http.Request) ([]byte, error) {
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &AuthError{Exchange: "binance", Msg: "http 401"}
	}
	if resp.StatusCode/100 != 2 {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		_ = json.Unmarshal(data, &apiErr)
		// -2015 invalid key, -1022 invalid signature
		if apiErr.Code == -2015 || apiErr.Code == -1022 ||
			strings.Contains(apiErr.Msg, "API-key") {
			return nil, &AuthError{Exchange: "binance", Msg: apiErr.Msg}
		}
		return nil, fmt.Errorf("binance http %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

func (b *Binance) FetchCandles(ctx context.Context, symbol string, intervalMinutes int) ([]models.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", fmt.Sprintf("%dm", intervalMinutes))
	params.Set("limit", "200")

	data, err := b.publicRequest(ctx, "/fapi/v1/markPriceKlines", params)
	if err != nil {
		return nil, fmt.Errorf("FetchCandles: %w", err)
	}

	// [openTime, open, high, low, close, volume, closeTime, turnover, ...]
	var rows [][]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("FetchCandles decode: %w", err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 8 {
			continue
		}
		var start int64
		if err := json.Unmarshal(row[0], &start); err != nil {
			return nil, &DecodeError{Field: "kline.openTime", Raw: string(row[0])}
		}
		fields := make([]float64, 5)
		for i := 1; i <= 5; i++ {
			var s string
			if err := json.Unmarshal(row[i], &s); err != nil {
				return nil, &DecodeError{Field: "kline", Raw: string(row[i])}
			}
			v, err := parseFloat("kline", s)
			if err != nil {
				return nil, err
			}
			fields[i-1] = v
		}
		var turnover string
		_ = json.Unmarshal(row[7], &turnover)

		candles = append(candles, models.Candle{
			StartTime: start,
			Open:      fields[0],
			High:      fields[1],
			Low:       fields[2],
			Close:     fields[3],
			Volume:    fields[4],
			Turnover:  turnover,
		})
	}
	return candles, nil
}

func (b *Binance) FetchPosition(ctx context.Context, symbol string) (*models.Position, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	data, err := b.signedRequest(ctx, http.MethodGet, "/fapi/v2/positionRisk", params)
	if err != nil {
		return nil, fmt.Errorf("FetchPosition: %w", err)
	}

	var list []struct {
		Symbol           string `json:"symbol"`
		PositionAmt      string `json:"positionAmt"`
		EntryPrice       string `json:"entryPrice"`
		MarkPrice        string `json:"markPrice"`
		Leverage         string `json:"leverage"`
		UnRealizedProfit string `json:"unRealizedProfit"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("FetchPosition decode: %w", err)
	}

	for _, p := range list {
		size, err := parseFloat("position.positionAmt", p.PositionAmt)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			continue
		}
		entry, err := parseFloat("position.entryPrice", p.EntryPrice)
		if err != nil {
			return nil, err
		}
		mark, err := parseFloat("position.markPrice", p.MarkPrice)
		if err != nil {
			return nil, err
		}
		upl, err := parseFloat("position.unRealizedProfit", p.UnRealizedProfit)
		if err != nil {
			return nil, err
		}
		lev, _ := strconv.Atoi(p.Leverage)
		return &models.Position{
			Symbol:        p.Symbol,
			Size:          size,
			EntryPrice:    entry,
			MarkPrice:     mark,
			Leverage:      lev,
			UnrealizedPnl: upl,
		}, nil
	}
	return nil, nil
}

func (b *Binance) FetchOpenOrders(ctx context.Context, symbol string) ([]models.OpenOrder, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	data, err := b.signedRequest(ctx, http.MethodGet, "/fapi/v1/openOrders", params)
	if err != nil {
		return nil, fmt.Errorf("FetchOpenOrders: %w", err)
	}

	var list []struct {
		OrderID     int64  `json:"orderId"`
		Symbol      string `json:"symbol"`
		Side        string `json:"side"`
		Type        string `json:"type"`
		Price       string `json:"price"`
		OrigQty     string `json:"origQty"`
		ExecutedQty string `json:"executedQty"`
		Status      string `json:"status"`
		ReduceOnly  bool   `json:"reduceOnly"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("FetchOpenOrders decode: %w", err)
	}

	orders := make([]models.OpenOrder, 0, len(list))
	for _, o := range list {
		price, err := parseFloat("order.price", o.Price)
		if err != nil {
			return nil, err
		}
		qty, err := parseFloat("order.origQty", o.OrigQty)
		if err != nil {
			return nil, err
		}
		execQty, err := parseFloat("order.executedQty", o.ExecutedQty)
		if err != nil {
			return nil, err
		}
		side := models.SideBuy
		if o.Side == "SELL" {
			side = models.SideSell
		}
		orders = append(orders, models.OpenOrder{
			OrderID:     strconv.FormatInt(o.OrderID, 10),
			Symbol:      o.Symbol,
			Side:        side,
			Type:        o.Type,
			Price:       price,
			OrigQty:     qty,
			ExecutedQty: execQty,
			Status:      o.Status,
			ReduceOnly:  o.ReduceOnly,
		})
	}
	return orders, nil
}

func binanceSide(side models.Side) string {
	if side == models.SideSell {
		return "SELL"
	}
	return "BUY"
}

type binanceOrderResult struct {
	OrderID     int64  `json:"orderId"`
	ExecutedQty string `json:"executedQty"`
	AvgPrice    string `json:"avgPrice"`
}

func (b *Binance) PlaceMarketOrder(ctx context.Context, symbol string, side models.Side, qty string) (*models.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", binanceSide(side))
	params.Set("type", "MARKET")
	params.Set("quantity", qty)

	data, err := b.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return nil, fmt.Errorf("PlaceMarketOrder: %w", err)
	}
	var r binanceOrderResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("PlaceMarketOrder decode: %w", err)
	}
	filled, _ := strconv.ParseFloat(r.ExecutedQty, 64)
	avg, _ := strconv.ParseFloat(r.AvgPrice, 64)
	return &models.OrderResult{
		OrderID:   strconv.FormatInt(r.OrderID, 10),
		FilledQty: filled,
		AvgPrice:  avg,
	}, nil
}

func (b *Binance) PlaceLimitReduceOnlyOrder(ctx context.Context, symbol string, side models.Side, qty, price string) (*models.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", binanceSide(side))
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "GTC")
	params.Set("quantity", qty)
	params.Set("price", price)
	params.Set("reduceOnly", "true")

	data, err := b.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return nil, fmt.Errorf("PlaceLimitReduceOnlyOrder: %w", err)
	}
	var r binanceOrderResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("PlaceLimitReduceOnlyOrder decode: %w", err)
	}
	return &models.OrderResult{OrderID: strconv.FormatInt(r.OrderID, 10)}, nil
}

// PlaceLimitOrderWithTPSL: у binance нет TP/SL в самой заявке — после входа
// вешаем два ордера TAKE_PROFIT_MARKET / STOP_MARKET с closePosition.
func (b *Binance) PlaceLimitOrderWithTPSL(ctx context.Context, req LimitOrderRequest) (*models.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", binanceSide(req.Side))
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "GTC")
	params.Set("quantity", req.Qty)
	params.Set("price", req.Price)

	data, err := b.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return nil, fmt.Errorf("PlaceLimitOrderWithTPSL: %w", err)
	}
	var r binanceOrderResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("PlaceLimitOrderWithTPSL decode: %w", err)
	}

	exitSide := binanceSide(req.Side.Opposite())
	for _, leg := range []struct{ typ, trigger string }{
		{"TAKE_PROFIT_MARKET", req.TakeProfit},
		{"STOP_MARKET", req.StopLoss},
	} {
		if leg.trigger == "" {
			continue
		}
		p := url.Values{}
		p.Set("symbol", req.Symbol)
		p.Set("side", exitSide)
		p.Set("type", leg.typ)
		p.Set("stopPrice", leg.trigger)
		p.Set("closePosition", "true")
		if _, err := b.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", p); err != nil {
			return nil, fmt.Errorf("PlaceLimitOrderWithTPSL %s: %w", leg.typ, err)
		}
	}
	return &models.OrderResult{OrderID: strconv.FormatInt(r.OrderID, 10)}, nil
}

func (b *Binance) CancelAllOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	if _, err := b.signedRequest(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params); err != nil {
		return fmt.Errorf("CancelAllOrders: %w", err)
	}
	return nil
}

func (b *Binance) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))
	if _, err := b.signedRequest(ctx, http.MethodPost, "/fapi/v1/leverage", params); err != nil {
		return fmt.Errorf("SetLeverage: %w", err)
	}
	return nil
}

func (b *Binance) FetchBalance(ctx context.Context) (float64, error) {
	data, err := b.signedRequest(ctx, http.MethodGet, "/fapi/v2/balance", nil)
	if err != nil {
		return 0, fmt.Errorf("FetchBalance: %w", err)
	}
	var list []struct {
		Asset   string `json:"asset"`
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return 0, fmt.Errorf("FetchBalance decode: %w", err)
	}
	for _, b := range list {
		if b.Asset == "USDT" {
			return parseFloat("balance.balance", b.Balance)
		}
	}
	return 0, nil
}
