package models

// Ticker — настройки инструмента, заданные пользователем.
type Ticker struct {
	Symbol      string  `json:"symbol"`
	Qty         float64 `json:"qty"`
	MinLeverage string  `json:"min_leverage"`
	MaxLeverage string  `json:"max_leverage"`
	Leverage    int     `json:"leverage"`
}

func DefaultTicker() Ticker {
	return Ticker{
		Symbol:      "BTCUSDT",
		Qty:         0.007,
		MinLeverage: "1",
		MaxLeverage: "100",
		Leverage:    10,
	}
}
