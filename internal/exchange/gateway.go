package exchange

import (
	"context"
	"fmt"
	"strconv"

	"futures_bot/internal/models"
)

// Gateway — абстракция REST API биржи (Bybit / Binance USDT-M).
// Контракт одинаковый, политика и контроллер параметризуются им.
type Gateway interface {
	// FetchCandles возвращает свечи от старых к новым; последняя может быть
	// ещё формирующейся.
	FetchCandles(ctx context.Context, symbol string, intervalMinutes int) ([]models.Candle, error)
	// FetchPosition: nil — позиции нет.
	FetchPosition(ctx context.Context, symbol string) (*models.Position, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]models.OpenOrder, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side models.Side, qty string) (*models.OrderResult, error)
	PlaceLimitReduceOnlyOrder(ctx context.Context, symbol string, side models.Side, qty, price string) (*models.OrderResult, error)
	// PlaceLimitOrderWithTPSL — вход лимиткой с прикреплёнными TP/SL (сканер).
	PlaceLimitOrderWithTPSL(ctx context.Context, req LimitOrderRequest) (*models.OrderResult, error)
	CancelAllOrders(ctx context.Context, symbol string) error
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	FetchBalance(ctx context.Context) (float64, error)
}

// LimitOrderRequest — заявка сканера: лимитный вход с TP/SL.
type LimitOrderRequest struct {
	Symbol     string
	Side       models.Side
	Qty        string
	Price      string
	TakeProfit string
	StopLoss   string
}

// AuthError — просроченные/невалидные ключи. Сессию не останавливаем,
// но пользователю показываем отдельное сообщение.
type AuthError struct {
	Exchange string
	Msg      string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth: %s", e.Exchange, e.Msg)
}

// DecodeError — биржа прислала нечисловое там, где ждали число.
// Валит только текущий цикл.
type DecodeError struct {
	Field string
	Raw   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %q is not a number", e.Field, e.Raw)
}

func parseFloat(field, raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &DecodeError{Field: field, Raw: raw}
	}
	return v, nil
}
