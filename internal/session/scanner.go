package session

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"futures_bot/internal/exchange"
	"futures_bot/internal/helper"
	"futures_bot/internal/indicators"
	"futures_bot/internal/models"
)

// TickerStream — источник пушей по тикерам (публичный WS биржи).
type TickerStream interface {
	StreamTickers(ctx context.Context, symbols []string) (<-chan exchange.TickerUpdate, error)
}

// ScannerConfig — фильтры отбора всплесков волатильности.
type ScannerConfig struct {
	Symbols []string
	// Окно наблюдения за ценой по символу.
	Window time.Duration
	// Минимум точек в окне для оценки.
	MinPoints int
	// Порог стандартного отклонения как доля от цены.
	VolRatio float64
	// Минимальное абсолютное изменение цены за окно.
	MinChangePct float64
	// Минимальный суточный оборот.
	MinTurnover float64
	// Сколько позиций сканер держит одновременно.
	MaxPositions int
	Leverage     int
	// Маржа на одну заявку в USDT.
	Margin float64
	// Стоп как доля от входа; тейк = RiskReward стопов.
	StopPct    float64
	RiskReward float64
	SMAPeriod  int
}

func DefaultScannerConfig(symbols []string) ScannerConfig {
	return ScannerConfig{
		Symbols:      symbols,
		Window:       10 * time.Second,
		MinPoints:    5,
		VolRatio:     0.0015,
		MinChangePct: 0.02,
		MinTurnover:  1_000_000,
		MaxPositions: 5,
		Leverage:     10,
		Margin:       10,
		StopPct:      0.01,
		RiskReward:   2,
		SMAPeriod:    20,
	}
}

// Scanner слушает тикер-стрим, ловит всплески волатильности и заходит
// лимиткой с прикреплёнными TP/SL. Не трогает позицию основной сессии.
type Scanner struct {
	stream TickerStream
	gw     exchange.Gateway
	n      Notifier
	cfg    ScannerConfig

	mu      sync.Mutex
	history map[string][]models.PriceSnapshot
	opened  map[string]bool
}

func NewScanner(stream TickerStream, gw exchange.Gateway, n Notifier, cfg ScannerConfig) *Scanner {
	return &Scanner{
		stream:  stream,
		gw:      gw,
		n:       n,
		cfg:     cfg,
		history: make(map[string][]models.PriceSnapshot),
		opened:  make(map[string]bool),
	}
}

// slotRefreshDelay — период сверки занятых слотов с позициями на бирже.
const slotRefreshDelay = 10 * time.Second

// Run крутится до отмены ctx, переподключаясь после обрывов стрима.
func (s *Scanner) Run(ctx context.Context) {
	log.Printf("[SCANNER] ▶️ наблюдаем %d символов", len(s.cfg.Symbols))
	go s.refreshLoop(ctx)
	for {
		updates, err := s.stream.StreamTickers(ctx, s.cfg.Symbols)
		if err != nil {
			log.Printf("[SCANNER] stream: %v", err)
		} else {
			s.consume(ctx, updates)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (s *Scanner) consume(ctx context.Context, updates <-chan exchange.TickerUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := s.OnUpdate(ctx, u); err != nil {
				log.Printf("[SCANNER] %s: %v", u.Symbol, err)
			}
		}
	}
}

// OnUpdate обрабатывает один пуш: пополняет окно и, если фильтры сошлись,
// открывает заявку.
func (s *Scanner) OnUpdate(ctx context.Context, u exchange.TickerUpdate) error {
	prices, ok := s.observe(u)
	if !ok {
		return nil
	}

	first, last := prices[0], prices[len(prices)-1]
	change := (last - first) / first
	if math.Abs(change) <= s.cfg.MinChangePct {
		return nil
	}
	if indicators.StdDev(prices) < s.cfg.VolRatio*last {
		return nil
	}
	if u.Turnover24h < s.cfg.MinTurnover {
		return nil
	}

	s.mu.Lock()
	if s.opened[u.Symbol] || len(s.opened) >= s.cfg.MaxPositions {
		s.mu.Unlock()
		return nil
	}
	// резервируем слот до выставления заявки
	s.opened[u.Symbol] = true
	s.mu.Unlock()

	placed, err := s.enter(ctx, u.Symbol, last, change)
	if !placed {
		s.mu.Lock()
		delete(s.opened, u.Symbol)
		s.mu.Unlock()
	}
	return err
}

// refreshLoop периодически освобождает слоты по символам, позиции которых
// биржа уже закрыла. Без этого сканер навсегда исчерпал бы лимит.
func (s *Scanner) refreshLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(slotRefreshDelay):
		}
		s.refreshSlots(ctx)
	}
}

func (s *Scanner) refreshSlots(ctx context.Context) {
	s.mu.Lock()
	symbols := make([]string, 0, len(s.opened))
	for sym := range s.opened {
		symbols = append(symbols, sym)
	}
	s.mu.Unlock()

	for _, sym := range symbols {
		pos, err := s.gw.FetchPosition(ctx, sym)
		if err != nil {
			log.Printf("[SCANNER] refresh %s: %v", sym, err)
			continue
		}
		if pos == nil {
			s.mu.Lock()
			delete(s.opened, sym)
			s.mu.Unlock()
			log.Printf("[SCANNER] %s закрыт, слот освобождён", sym)
		}
	}
}

// observe пополняет окно цен символа и отдаёт его, когда окно заполнено.
func (s *Scanner) observe(u exchange.TickerUpdate) ([]float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := append(s.history[u.Symbol], models.PriceSnapshot{Price: u.LastPrice, Timestamp: u.Timestamp})
	cutoff := u.Timestamp - s.cfg.Window.Milliseconds()
	for len(hist) > 0 && hist[0].Timestamp < cutoff {
		hist = hist[1:]
	}
	s.history[u.Symbol] = hist

	// ждём, пока окно накопится целиком и наберёт минимум точек
	if len(hist) < s.cfg.MinPoints || hist[0].Timestamp > cutoff {
		return nil, false
	}

	prices := make([]float64, len(hist))
	for i, snap := range hist {
		prices[i] = snap.Price
	}
	return prices, true
}

// enter определяет сторону по SMA и ставит лимитку с TP/SL.
// Возвращает false, если заявка не выставлялась и слот надо вернуть.
func (s *Scanner) enter(ctx context.Context, symbol string, price, change float64) (bool, error) {
	candles, err := s.gw.FetchCandles(ctx, symbol, 1)
	if err != nil {
		return false, fmt.Errorf("enter: %w", err)
	}
	if len(candles) < s.cfg.SMAPeriod {
		return false, nil
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	sma := indicators.SMA(closes, s.cfg.SMAPeriod)

	// входим только при согласии SMA с направлением хода цены
	var side models.Side
	switch {
	case price > sma && change > 0:
		side = models.SideBuy
	case price < sma && change < 0:
		side = models.SideSell
	default:
		return false, nil
	}

	if err := s.gw.SetLeverage(ctx, symbol, s.cfg.Leverage); err != nil {
		return false, fmt.Errorf("enter: %w", err)
	}

	qty := helper.RoundDown(s.cfg.Margin*float64(s.cfg.Leverage)/price, 3)
	if qty <= 0 {
		return false, nil
	}

	risk := price * s.cfg.StopPct
	tp := price + s.cfg.RiskReward*risk
	sl := price - risk
	if side == models.SideSell {
		tp = price - s.cfg.RiskReward*risk
		sl = price + risk
	}

	req := exchange.LimitOrderRequest{
		Symbol:     symbol,
		Side:       side,
		Qty:        fmt.Sprintf("%v", qty),
		Price:      fmt.Sprintf("%v", price),
		TakeProfit: fmt.Sprintf("%v", tp),
		StopLoss:   fmt.Sprintf("%v", sl),
	}
	if _, err := s.gw.PlaceLimitOrderWithTPSL(ctx, req); err != nil {
		return false, fmt.Errorf("enter: %w", err)
	}

	log.Printf("[SCANNER] 🎯 %s %s qty=%v @ %v tp=%v sl=%v", symbol, side, qty, price, tp, sl)
	if s.n != nil {
		s.n.NotifyF(ctx, "🎯 Сканер: %s %s @ %v, TP %v / SL %v", symbol, side, price, tp, sl)
	}
	return true, nil
}
