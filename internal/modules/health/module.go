package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"futures_bot/internal/modules/config"
	"futures_bot/internal/modules/health/service"
	"futures_bot/internal/session"
)

type Config struct {
	Addr string // например ":8080"
}

func NewConfig(cfg *config.Config) Config {
	if cfg.Service.AdminPort != 0 {
		return Config{Addr: fmt.Sprintf(":%d", cfg.Service.AdminPort)}
	}
	return Config{Addr: ":8080"}
}

func NewMux(state *service.State) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		// liveness: процесс жив
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		// readiness: биржа отвечает и ключи живы
		if !state.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		// полезный JSON для отладки
		resp := map[string]any{
			"ready":             state.Ready(),
			"exchangeConnected": state.ExchangeConnected(),
			"authExpired":       state.AuthExpired(),
			"activeSessions":    state.ActiveSessions(),
			"uptimeSec":         int64(state.Uptime().Seconds()),
			"lastPollUnix": func() int64 {
				t := state.LastPoll()
				if t.IsZero() {
					return 0
				}
				return t.Unix()
			}(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	return mux
}

func RunHTTP(lc fx.Lifecycle, cfg Config, mux *http.ServeMux) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			go func() { _ = srv.Serve(ln) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// WatchHub перекладывает снапшоты сессий в health-состояние.
func WatchHub(lc fx.Lifecycle, state *service.State, hub *session.StateHub, mgr *session.Manager) {
	var cancelSub func()
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			snaps, cancel := hub.Subscribe()
			cancelSub = cancel
			go func() {
				defer close(done)
				for snap := range snaps {
					state.SetExchangeConnected(snap.Connected)
					state.SetAuthExpired(snap.AuthExpired)
					state.SetReady(snap.Connected && !snap.AuthExpired)
					state.SetActiveSessions(len(mgr.Active()))
					if snap.Connected {
						state.TouchPoll(time.Now())
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancelSub != nil {
				cancelSub()
				<-done
			}
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewConfig,
			NewMux,
		),
		fx.Invoke(
			RunHTTP,
			WatchHub,
		),
	)
}
