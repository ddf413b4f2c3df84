package models

// TradingState — единственная мутабельная запись на активную сессию.
// LastCandleTime растёт монотонно: цикл сигнала выполняется только когда
// startTime последней свечи больше него — единственная защита от повторной
// обработки одного и того же бара.
type TradingState struct {
	IsActive                 bool
	IsInPosition             bool
	InitialEntryPrice        float64
	CurrentAverageEntryPrice float64
	TotalPositionQuantity    float64
	BaseOrderQuantity        float64
	LastCandleTime           int64 // unix millis
}

// AccumulationRatio — сколько базовых объёмов набрано в позиции (число входов).
func (s TradingState) AccumulationRatio() float64 {
	if s.BaseOrderQuantity == 0 {
		return 0
	}
	return s.TotalPositionQuantity / s.BaseOrderQuantity
}

// Reset сбрасывает атрибуты позиции, IsActive не трогаем.
func (s TradingState) Reset() TradingState {
	return TradingState{IsActive: s.IsActive, LastCandleTime: s.LastCandleTime}
}
