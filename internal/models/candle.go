package models

// Candle — свеча с биржи, от старых к новым; последняя может быть ещё не закрыта.
type Candle struct {
	StartTime int64 // unix millis
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Turnover  string
}

// PriceSnapshot — точка цены для скользящего окна сканера.
type PriceSnapshot struct {
	Price     float64
	Timestamp int64 // unix millis
}
