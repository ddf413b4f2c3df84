package exchange

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// TickerUpdate — пуш публичного тикер-стрима, кормит сканер.
type TickerUpdate struct {
	Symbol      string
	LastPrice   float64
	Turnover24h float64
	Timestamp   int64 // unix millis
}

type wsSubscribe struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

type wsTickerMessage struct {
	Topic string `json:"topic"`
	TS    int64  `json:"ts"`
	Data  struct {
		Symbol      string `json:"symbol"`
		LastPrice   string `json:"lastPrice"`
		Turnover24h string `json:"turnover24h"`
	} `json:"data"`
}

// StreamTickers подписывается на tickers.<symbol> по публичному WS.
// Канал закрывается при обрыве соединения или отмене ctx; переподключение —
// забота вызывающего.
func (b *Bybit) StreamTickers(ctx context.Context, symbols []string) (<-chan TickerUpdate, error) {
	conn, _, err := b.wsDialer.DialContext(ctx, b.wsURL, nil)
	if err != nil {
		return nil, err
	}

	args := make([]string, 0, len(symbols))
	for _, s := range symbols {
		args = append(args, "tickers."+s)
	}
	payload, _ := sonic.Marshal(wsSubscribe{Op: "subscribe", Args: args})
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		_ = conn.Close()
		return nil, err
	}

	out := make(chan TickerUpdate, 256)

	// пинг по протоколу v5 каждые 20 секунд
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-ticker.C:
				ping, _ := sonic.Marshal(map[string]string{"op": "ping"})
				if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
					return
				}
			}
		}
	}()

	go func() {
		defer close(out)
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("[STREAM] read: %v", err)
				}
				return
			}
			var msg wsTickerMessage
			if err := json.Unmarshal(data, &msg); err != nil || msg.Data.Symbol == "" {
				continue
			}
			price, err := parseFloat("ticker.lastPrice", msg.Data.LastPrice)
			if err != nil || price == 0 {
				continue
			}
			turnover, _ := parseFloat("ticker.turnover24h", msg.Data.Turnover24h)

			select {
			case out <- TickerUpdate{
				Symbol:      msg.Data.Symbol,
				LastPrice:   price,
				Turnover24h: turnover,
				Timestamp:   msg.TS,
			}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
