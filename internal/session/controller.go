package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"futures_bot/internal/exchange"
	"futures_bot/internal/models"
	"futures_bot/internal/policy"

	"github.com/opentracing/opentracing-go"
)

// Notifier — канал уведомлений наружу (telegram).
type Notifier interface {
	NotifyF(ctx context.Context, format string, args ...any)
}

const (
	// сколько держим обычную ошибку на виду
	errorDisplay = 2 * time.Second

	authExpiredMsg = "API keys are invalid or expired, re-enter credentials"
)

// Controller гоняет два цикла по одному тикеру: поиск сигнала входа,
// пока позиции нет, и обслуживание позиции, пока она есть.
type Controller struct {
	gw     exchange.Gateway
	pol    policy.OrderPolicy
	hub    *StateHub
	n      Notifier
	ticker models.Ticker

	mu     sync.Mutex
	state  models.TradingState
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewController(gw exchange.Gateway, pol policy.OrderPolicy, hub *StateHub, n Notifier, ticker models.Ticker) *Controller {
	return &Controller{
		gw:     gw,
		pol:    pol,
		hub:    hub,
		n:      n,
		ticker: ticker,
	}
}

// Start запускает оба цикла. Повторный вызов без Stop — ошибка.
func (c *Controller) Start(parent context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsActive {
		return fmt.Errorf("Start: session already running for %s", c.ticker.Symbol)
	}

	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.state.IsActive = true
	c.state.BaseOrderQuantity = c.ticker.Qty
	c.hub.SetWorking(true)

	if c.ticker.Leverage > 0 {
		if err := c.gw.SetLeverage(ctx, c.ticker.Symbol, c.ticker.Leverage); err != nil {
			log.Printf("[SESSION] set leverage %s: %v", c.ticker.Symbol, err)
		}
	}

	c.wg.Add(2)
	go c.signalLoop(ctx)
	go c.positionLoop(ctx)

	log.Printf("[SESSION] ▶️ старт %s, политика %s", c.ticker.Symbol, c.pol.Name())
	return nil
}

// Stop гасит циклы и ждёт их завершения. Открытую позицию не трогает.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.state.IsActive {
		c.mu.Unlock()
		return
	}
	c.state.IsActive = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	c.hub.SetWorking(false)
	log.Printf("[SESSION] ⏹ стоп %s", c.ticker.Symbol)
}

// State — копия торгового состояния.
func (c *Controller) State() models.TradingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) signalLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		c.runSignalCycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.pol.SignalDelay()):
		}
	}
}

func (c *Controller) positionLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		c.runPositionCycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.pol.PositionDelay()):
		}
	}
}

// runSignalCycle ищет сигнал входа. Пока позиция открыта — ничего не делает.
func (c *Controller) runSignalCycle(ctx context.Context) {
	c.mu.Lock()
	inPosition := c.state.IsInPosition
	lastBar := c.state.LastCandleTime
	c.mu.Unlock()

	if inPosition {
		return
	}

	candles, err := c.gw.FetchCandles(ctx, c.ticker.Symbol, c.pol.Interval())
	if err != nil {
		c.reportError(ctx, fmt.Errorf("runSignalCycle: %w", err))
		return
	}
	if len(candles) == 0 {
		return
	}
	c.hub.SetConnected(true)

	// одна свеча — одно решение; отставшая или повторная пачка свечей
	// не откатывает метку бара назад
	bar := candles[len(candles)-1].StartTime
	if bar <= lastBar {
		return
	}

	// бар помечаем до действий: неудачный вход не получает второй попытки
	// на той же свече
	c.mu.Lock()
	c.state.LastCandleTime = bar
	c.mu.Unlock()

	side := c.pol.OpenSignal(candles)
	if side == models.SideNone {
		return
	}

	c.openPosition(ctx, side, candles)
}

func (c *Controller) openPosition(ctx context.Context, side models.Side, candles []models.Candle) {
	span := opentracing.StartSpan("open_position")
	span.SetTag("symbol", c.ticker.Symbol)
	span.SetTag("side", string(side))
	defer span.Finish()
	ctx = opentracing.ContextWithSpan(ctx, span)

	qty := fmt.Sprintf("%v", c.ticker.Qty)
	res, err := c.gw.PlaceMarketOrder(ctx, c.ticker.Symbol, side, qty)
	if err != nil {
		c.reportError(ctx, fmt.Errorf("openPosition: %w", err))
		return
	}

	entry := res.AvgPrice
	if entry == 0 {
		entry = candles[len(candles)-1].Close
	}

	c.mu.Lock()
	c.state.IsInPosition = true
	c.state.InitialEntryPrice = entry
	c.state.CurrentAverageEntryPrice = entry
	c.state.TotalPositionQuantity = c.ticker.Qty
	c.state.BaseOrderQuantity = c.ticker.Qty
	c.mu.Unlock()

	tp, sl := c.pol.TargetTPAndSL(candles, models.Position{
		Symbol:     c.ticker.Symbol,
		Size:       sideSize(side, c.ticker.Qty),
		EntryPrice: entry,
	})
	log.Printf("[ENTRY] %s %s qty=%s по %.5f, цели tp=%.5f sl=%.5f", c.ticker.Symbol, side, qty, entry, tp, sl)
	if c.n != nil {
		c.n.NotifyF(ctx, "🟢 %s %s qty=%s @ %.5f\nTP %.5f / SL %.5f", c.ticker.Symbol, side, qty, entry, tp, sl)
	}
}

// runPositionCycle обслуживает открытую позицию: баланс, тейки, усреднение.
func (c *Controller) runPositionCycle(ctx context.Context) {
	span := opentracing.StartSpan("position_cycle")
	span.SetTag("symbol", c.ticker.Symbol)
	defer span.Finish()
	ctx = opentracing.ContextWithSpan(ctx, span)

	if balance, err := c.gw.FetchBalance(ctx); err == nil {
		c.hub.SetBalance(balance)
	}

	pos, err := c.gw.FetchPosition(ctx, c.ticker.Symbol)
	if err != nil {
		c.reportError(ctx, fmt.Errorf("runPositionCycle: %w", err))
		return
	}
	c.hub.SetConnected(true)

	c.mu.Lock()
	wasInPosition := c.state.IsInPosition
	c.mu.Unlock()

	if pos == nil {
		if wasInPosition {
			c.onPositionClosed(ctx)
		}
		c.hub.SetPositions(nil)
		return
	}

	c.hub.SetPositions([]models.Position{*pos})

	c.mu.Lock()
	if !wasInPosition {
		// позицию открыли руками или она пережила рестарт — подхватываем
		c.state.IsInPosition = true
		c.state.InitialEntryPrice = pos.EntryPrice
		if c.state.BaseOrderQuantity == 0 {
			c.state.BaseOrderQuantity = pos.AbsSize()
		}
	}
	c.state.CurrentAverageEntryPrice = pos.EntryPrice
	c.state.TotalPositionQuantity = pos.AbsSize()
	state := c.state
	c.mu.Unlock()

	orders, err := c.gw.FetchOpenOrders(ctx, c.ticker.Symbol)
	if err != nil {
		c.reportError(ctx, fmt.Errorf("runPositionCycle: %w", err))
		return
	}

	if err := c.pol.ReconcileTakeProfits(ctx, state, *pos, orders); err != nil {
		c.reportError(ctx, fmt.Errorf("runPositionCycle: %w", err))
		return
	}
	if err := c.pol.ConsiderScaleIn(ctx, state, *pos); err != nil {
		c.reportError(ctx, fmt.Errorf("runPositionCycle: %w", err))
	}
}

// onPositionClosed сбрасывает состояние после выхода из позиции и убирает
// осиротевшие тейки.
func (c *Controller) onPositionClosed(ctx context.Context) {
	if err := c.gw.CancelAllOrders(ctx, c.ticker.Symbol); err != nil {
		log.Printf("[SESSION] cancel after close %s: %v", c.ticker.Symbol, err)
	}

	c.mu.Lock()
	c.state = c.state.Reset()
	c.state.BaseOrderQuantity = c.ticker.Qty
	c.mu.Unlock()

	log.Printf("[EXIT] %s позиция закрыта", c.ticker.Symbol)
	if c.n != nil {
		c.n.NotifyF(ctx, "⚪️ %s позиция закрыта", c.ticker.Symbol)
	}
}

// ClosePosition закрывает позицию по рынку и снимает все ордера.
func (c *Controller) ClosePosition(ctx context.Context) error {
	pos, err := c.gw.FetchPosition(ctx, c.ticker.Symbol)
	if err != nil {
		return fmt.Errorf("ClosePosition: %w", err)
	}
	if pos == nil {
		return nil
	}

	if err := c.gw.CancelAllOrders(ctx, c.ticker.Symbol); err != nil {
		return fmt.Errorf("ClosePosition: %w", err)
	}

	qty := fmt.Sprintf("%v", pos.AbsSize())
	if _, err := c.gw.PlaceMarketOrder(ctx, c.ticker.Symbol, pos.Side().Opposite(), qty); err != nil {
		return fmt.Errorf("ClosePosition: %w", err)
	}

	c.mu.Lock()
	c.state = c.state.Reset()
	c.state.BaseOrderQuantity = c.ticker.Qty
	c.mu.Unlock()

	log.Printf("[SESSION] %s закрыта вручную", c.ticker.Symbol)
	return nil
}

// reportError показывает ошибку подписчикам. Протухшие ключи висят до смены
// ключей, остальное гаснет само.
func (c *Controller) reportError(ctx context.Context, err error) {
	log.Printf("[SESSION] %v", err)

	var authErr *exchange.AuthError
	if errors.As(err, &authErr) {
		c.hub.SetConnected(false)
		c.hub.SetError(authExpiredMsg, true)
		return
	}

	c.hub.SetError(err.Error(), false)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-ctx.Done():
		case <-time.After(errorDisplay):
		}
		c.hub.ClearError()
	}()
}

func sideSize(side models.Side, qty float64) float64 {
	if side == models.SideSell {
		return -qty
	}
	return qty
}
