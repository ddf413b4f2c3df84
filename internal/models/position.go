package models

import "math"

// Position — снапшот позиции с биржи, живёт один цикл опроса.
// Size подписан: >0 long, <0 short.
type Position struct {
	Symbol        string
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	Leverage      int
	UnrealizedPnl float64
}

func (p Position) Side() Side {
	switch {
	case p.Size > 0:
		return SideBuy
	case p.Size < 0:
		return SideSell
	default:
		return SideNone
	}
}

func (p Position) AbsSize() float64 { return math.Abs(p.Size) }

// OpenOrder — открытый ордер по символу. Дизайн ожидает 0, 1 или 2
// reduce-only тейк-профита одновременно.
type OpenOrder struct {
	OrderID     string
	Symbol      string
	Side        Side
	Type        string // "Limit" / "Market"
	Price       float64
	OrigQty     float64
	ExecutedQty float64
	Status      string
	ReduceOnly  bool
}

// OrderResult — результат размещения ордера.
type OrderResult struct {
	OrderID   string
	FilledQty float64
	AvgPrice  float64
}
