package exchange

import (
	"bytes"
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
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"futures_bot/internal/models"
)

const (
	bybitBaseURL = "https://api.bybit.com"
	bybitWSURL   = "wss://stream.bybit.com/v5/public/linear"

	recvWindow = 5000
)

// Bybit — клиент v5 API (category=linear).
type Bybit struct {
	apiKey    string
	apiSecret string
	baseURL   string
	wsURL     string
	http      *http.Client
	wsDialer  *websocket.Dialer
}

func NewBybit(apiKey, apiSecret string) *Bybit {
	return &Bybit{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   bybitBaseURL,
		wsURL:     bybitWSURL,
		http:      &http.Client{Timeout: 10 * time.Second},
		wsDialer:  &websocket.Dialer{},
	}
}

// подпись v5: timestamp + apiKey + recvWindow + params
func (b *Bybit) sign(params string, ts int64) string {
	h := hmac.New(sha256.New, []byte(b.apiSecret))
	h.Write([]byte(fmt.Sprintf("%d%s%d%s", ts, b.apiKey, recvWindow, params)))
	return hex.EncodeToString(h.Sum(nil))
}

type bybitEnvelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

func (b *Bybit) request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	ts := time.Now().UnixMilli()

	var payload []byte
	var params string
	if body != nil {
		var err error
		payload, err = sonic.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		params = string(payload)
	} else {
		params = urlQuery(path)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-BAPI-API-KEY", b.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", strconv.FormatInt(ts, 10))
	req.Header.Set("X-BAPI-SIGN", b.sign(params, ts))
	req.Header.Set("X-BAPI-RECV-WINDOW", strconv.Itoa(recvWindow))
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthError{Exchange: "bybit", Msg: fmt.Sprintf("http %d", resp.StatusCode)}
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("bybit http %d: %s", resp.StatusCode, string(data))
	}

	var env bybitEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bybit decode: %w", err)
	}
	switch env.RetCode {
	case 0:
		return env.Result, nil
	case 10003, 10004, 10005, 33004:
		// invalid key / invalid sign / permission denied / key expired
		return nil, &AuthError{Exchange: "bybit", Msg: env.RetMsg}
	default:
		return nil, fmt.Errorf("bybit error: code=%d msg=%s", env.RetCode, env.RetMsg)
	}
}

func urlQuery(path string) string {
	u, err := url.Parse(path)
	if err != nil {
		return ""
	}
	return u.RawQuery
}

func (b *Bybit) FetchCandles(ctx context.Context, symbol string, intervalMinutes int) ([]models.Candle, error) {
	path := fmt.Sprintf("/v5/market/kline?category=linear&symbol=%s&interval=%d&limit=200",
		symbol, intervalMinutes)
	raw, err := b.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("FetchCandles: %w", err)
	}

	var result struct {
		List [][]string `json:"list"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("FetchCandles decode: %w", err)
	}

	// bybit отдаёт от новых к старым
	candles := make([]models.Candle, 0, len(result.List))
	for i := len(result.List) - 1; i >= 0; i-- {
		row := result.List[i]
		if len(row) < 7 {
			continue
		}
		c, err := rowToCandle(row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func rowToCandle(row []string) (models.Candle, error) {
	start, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Candle{}, &DecodeError{Field: "kline.start", Raw: row[0]}
	}
	open, err := parseFloat("kline.open", row[1])
	if err != nil {
		return models.Candle{}, err
	}
	high, err := parseFloat("kline.high", row[2])
	if err != nil {
		return models.Candle{}, err
	}
	low, err := parseFloat("kline.low", row[3])
	if err != nil {
		return models.Candle{}, err
	}
	closePx, err := parseFloat("kline.close", row[4])
	if err != nil {
		return models.Candle{}, err
	}
	volume, err := parseFloat("kline.volume", row[5])
	if err != nil {
		return models.Candle{}, err
	}
	return models.Candle{
		StartTime: start,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    volume,
		Turnover:  row[6],
	}, nil
}

func (b *Bybit) FetchPosition(ctx context.Context, symbol string) (*models.Position, error) {
	path := "/v5/position/list?category=linear&symbol=" + symbol
	raw, err := b.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("FetchPosition: %w", err)
	}

	var result struct {
		List []struct {
			Symbol        string `json:"symbol"`
			Side          string `json:"side"`
			Size          string `json:"size"`
			AvgPrice      string `json:"avgPrice"`
			MarkPrice     string `json:"markPrice"`
			Leverage      string `json:"leverage"`
			UnrealisedPnl string `json:"unrealisedPnl"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("FetchPosition decode: %w", err)
	}
	if len(result.List) == 0 {
		return nil, nil
	}

	p := result.List[0]
	size, err := parseFloat("position.size", p.Size)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	entry, err := parseFloat("position.avgPrice", p.AvgPrice)
	if err != nil {
		return nil, err
	}
	mark, err := parseFloat("position.markPrice", p.MarkPrice)
	if err != nil {
		return nil, err
	}
	upl, err := parseFloat("position.unrealisedPnl", p.UnrealisedPnl)
	if err != nil {
		return nil, err
	}
	lev, _ := strconv.ParseFloat(p.Leverage, 64)

	if p.Side == "Sell" {
		size = -size
	}
	return &models.Position{
		Symbol:        p.Symbol,
		Size:          size,
		EntryPrice:    entry,
		MarkPrice:     mark,
		Leverage:      int(lev),
		UnrealizedPnl: upl,
	}, nil
}

func (b *Bybit) FetchOpenOrders(ctx context.Context, symbol string) ([]models.OpenOrder, error) {
	path := "/v5/order/realtime?category=linear&symbol=" + symbol
	raw, err := b.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("FetchOpenOrders: %w", err)
	}

	var result struct {
		List []struct {
			OrderID     string `json:"orderId"`
			Symbol      string `json:"symbol"`
			Side        string `json:"side"`
			OrderType   string `json:"orderType"`
			Price       string `json:"price"`
			Qty         string `json:"qty"`
			CumExecQty  string `json:"cumExecQty"`
			OrderStatus string `json:"orderStatus"`
			ReduceOnly  bool   `json:"reduceOnly"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("FetchOpenOrders decode: %w", err)
	}

	orders := make([]models.OpenOrder, 0, len(result.List))
	for _, o := range result.List {
		price, err := parseFloat("order.price", o.Price)
		if err != nil {
			return nil, err
		}
		qty, err := parseFloat("order.qty", o.Qty)
		if err != nil {
			return nil, err
		}
		execQty, err := parseFloat("order.cumExecQty", o.CumExecQty)
		if err != nil {
			return nil, err
		}
		orders = append(orders, models.OpenOrder{
			OrderID:     o.OrderID,
			Symbol:      o.Symbol,
			Side:        models.Side(o.Side),
			Type:        o.OrderType,
			Price:       price,
			OrigQty:     qty,
			ExecutedQty: execQty,
			Status:      o.OrderStatus,
			ReduceOnly:  o.ReduceOnly,
		})
	}
	return orders, nil
}

type bybitOrderResult struct {
	OrderID string `json:"orderId"`
}

func (b *Bybit) PlaceMarketOrder(ctx context.Context, symbol string, side models.Side, qty string) (*models.OrderResult, error) {
	body := map[string]string{
		"category":  "linear",
		"symbol":    symbol,
		"side":      string(side),
		"orderType": "Market",
		"qty":       qty,
	}
	raw, err := b.request(ctx, http.MethodPost, "/v5/order/create", body)
	if err != nil {
		return nil, fmt.Errorf("PlaceMarketOrder: %w", err)
	}
	var r bybitOrderResult
	_ = json.Unmarshal(raw, &r)
	filled, _ := strconv.ParseFloat(qty, 64)
	return &models.OrderResult{OrderID: r.OrderID, FilledQty: filled}, nil
}

func (b *Bybit) PlaceLimitReduceOnlyOrder(ctx context.Context, symbol string, side models.Side, qty, price string) (*models.OrderResult, error) {
	body := map[string]any{
		"category":   "linear",
		"symbol":     symbol,
		"side":       string(side),
		"orderType":  "Limit",
		"qty":        qty,
		"price":      price,
		"reduceOnly": true,
	}
	raw, err := b.request(ctx, http.MethodPost, "/v5/order/create", body)
	if err != nil {
		return nil, fmt.Errorf("PlaceLimitReduceOnlyOrder: %w", err)
	}
	var r bybitOrderResult
	_ = json.Unmarshal(raw, &r)
	return &models.OrderResult{OrderID: r.OrderID}, nil
}

func (b *Bybit) PlaceLimitOrderWithTPSL(ctx context.Context, req LimitOrderRequest) (*models.OrderResult, error) {
	body := map[string]string{
		"category":   "linear",
		"symbol":     req.Symbol,
		"side":       string(req.Side),
		"orderType":  "Limit",
		"qty":        req.Qty,
		"price":      req.Price,
		"takeProfit": req.TakeProfit,
		"stopLoss":   req.StopLoss,
	}
	raw, err := b.request(ctx, http.MethodPost, "/v5/order/create", body)
	if err != nil {
		return nil, fmt.Errorf("PlaceLimitOrderWithTPSL: %w", err)
	}
	var r bybitOrderResult
	_ = json.Unmarshal(raw, &r)
	return &models.OrderResult{OrderID: r.OrderID}, nil
}

func (b *Bybit) CancelAllOrders(ctx context.Context, symbol string) error {
	body := map[string]string{"category": "linear", "symbol": symbol}
	if _, err := b.request(ctx, http.MethodPost, "/v5/order/cancel-all", body); err != nil {
		return fmt.Errorf("CancelAllOrders: %w", err)
	}
	return nil
}

func (b *Bybit) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	lev := strconv.Itoa(leverage)
	body := map[string]string{
		"category":     "linear",
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}
	_, err := b.request(ctx, http.MethodPost, "/v5/position/set-leverage", body)
	if err != nil {
		// биржа ругается, если плечо уже такое — это не ошибка
		if !isLeverageNotModified(err) {
			return fmt.Errorf("SetLeverage: %w", err)
		}
	}
	return nil
}

func isLeverageNotModified(err error) bool {
	return err != nil && (containsCode(err, "110043") || containsCode(err, "leverage not modified"))
}

func containsCode(err error, sub string) bool {
	return err != nil && bytes.Contains([]byte(err.Error()), []byte(sub))
}

func (b *Bybit) FetchBalance(ctx context.Context) (float64, error) {
	raw, err := b.request(ctx, http.MethodGet, "/v5/account/wallet-balance?accountType=UNIFIED", nil)
	if err != nil {
		return 0, fmt.Errorf("FetchBalance: %w", err)
	}
	var result struct {
		List []struct {
			TotalEquity string `json:"totalEquity"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("FetchBalance decode: %w", err)
	}
	if len(result.List) == 0 {
		return 0, nil
	}
	return parseFloat("balance.totalEquity", result.List[0].TotalEquity)
}
