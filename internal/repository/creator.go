package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sogi-tools/session-module/internal/domain/model"
)

// SessionCreator — атомарное создание сессии вместе со стартовыми
// настройками. Вставка записи и seed настроек выполняются в одной
// транзакции: проигравший гонку создатель не оставляет частичных
// данных, а получает ErrConflict от уникального ограничения.
type SessionCreator interface {
	// CreateWithDefaults вставляет сессию и её стартовые настройки.
	CreateWithDefaults(ctx context.Context, s *model.Session, defaults map[string]string) error
}

// sessionCreator — реализация SessionCreator поверх TxRunner.
type sessionCreator struct {
	tx *TxRunner
}

// NewSessionCreator создаёт SessionCreator.
func NewSessionCreator(pool *pgxpool.Pool) SessionCreator {
	return &sessionCreator{tx: NewTxRunner(pool)}
}

func (c *sessionCreator) CreateWithDefaults(ctx context.Context, s *model.Session, defaults map[string]string) error {
	return c.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := NewSessionRepository(tx).Create(ctx, s); err != nil {
			return err
		}
		return NewSettingsRepository(tx).SeedDefaults(ctx, s.Seed, defaults)
	})
}
