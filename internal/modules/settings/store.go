package settings

import (
	"context"
	"errors"
	"fmt"

	"futures_bot/internal/models"
	"futures_bot/pkg/db"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound — в БД ещё ничего не сохраняли.
var ErrNotFound = errors.New("settings not found")

// Store хранит ключи биржи и настройки последней сессии.
type Store struct {
	db *db.PgTxManager
}

func NewStore(m *db.PgTxManager) *Store {
	return &Store{db: m}
}

// EnsureSchema создаёт таблицы при первом старте.
func (s *Store) EnsureSchema(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Store.EnsureSchema: %w", err)
		}
	}()

	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			CREATE TABLE IF NOT EXISTS exchange_credentials (
				exchange   TEXT PRIMARY KEY,
				api_key    TEXT NOT NULL,
				api_secret TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctxTx, `
			CREATE TABLE IF NOT EXISTS bot_settings (
				id         INT PRIMARY KEY DEFAULT 1,
				settings   JSONB NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`)
		return err
	})
}

// SaveCredentials перезаписывает ключи биржи.
func (s *Store) SaveCredentials(ctx context.Context, c models.Credentials) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Store.SaveCredentials: %w", err)
		}
	}()

	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			INSERT INTO exchange_credentials (exchange, api_key, api_secret, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (exchange) DO UPDATE
			SET api_key = EXCLUDED.api_key, api_secret = EXCLUDED.api_secret, updated_at = now()`,
			c.Exchange, c.APIKey, c.APISecret)
		return err
	})
}

// GetCredentials достаёт ключи биржи, ErrNotFound если не сохраняли.
func (s *Store) GetCredentials(ctx context.Context, exchange string) (c models.Credentials, err error) {
	defer func() {
		if err != nil && !errors.Is(err, ErrNotFound) {
			err = fmt.Errorf("Store.GetCredentials: %w", err)
		}
	}()

	err = s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctxTx,
			`SELECT exchange, api_key, api_secret FROM exchange_credentials WHERE exchange = $1`,
			exchange)
		if scanErr := row.Scan(&c.Exchange, &c.APIKey, &c.APISecret); scanErr != nil {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return scanErr
		}
		return nil
	})
	return c, err
}

// SaveBotSettings сохраняет настройки сессии одним json-блобом.
func (s *Store) SaveBotSettings(ctx context.Context, settings models.BotSettings) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Store.SaveBotSettings: %w", err)
		}
	}()

	var data []byte
	data, err = sonic.Marshal(settings)
	if err != nil {
		return err
	}

	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			INSERT INTO bot_settings (id, settings, updated_at)
			VALUES (1, $1, now())
			ON CONFLICT (id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = now()`,
			data)
		return err
	})
}

// GetBotSettings возвращает настройки последней сессии.
func (s *Store) GetBotSettings(ctx context.Context) (settings models.BotSettings, err error) {
	defer func() {
		if err != nil && !errors.Is(err, ErrNotFound) {
			err = fmt.Errorf("Store.GetBotSettings: %w", err)
		}
	}()

	var data []byte
	err = s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctxTx, `SELECT settings FROM bot_settings WHERE id = 1`)
		if scanErr := row.Scan(&data); scanErr != nil {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return scanErr
		}
		return nil
	})
	if err != nil {
		return settings, err
	}

	err = sonic.Unmarshal(data, &settings)
	return settings, err
}
