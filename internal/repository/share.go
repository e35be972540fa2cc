package repository

import (
	"context"
	"fmt"
)

// ShareRepository — интерфейс для таблицы sessions_shared
// (many-to-many отношение сессий и пользователей, не владение).
type ShareRepository interface {
	// ListNicknames возвращает имена пользователей, с которыми
	// сессия расшарена (join на users).
	ListNicknames(ctx context.Context, seed string) ([]string, error)
	// Add добавляет шаринг. Возвращает false, если шаринг уже
	// существовал (идемпотентный no-op, не ошибка).
	Add(ctx context.Context, seed string, userID int64) (bool, error)
	// Remove удаляет шаринг. Возвращает false, если шаринга не было.
	Remove(ctx context.Context, seed string, userID int64) (bool, error)
}

// shareRepo — реализация ShareRepository.
type shareRepo struct {
	db DBTX
}

// NewShareRepository создаёт репозиторий шаринга сессий.
func NewShareRepository(db DBTX) ShareRepository {
	return &shareRepo{db: db}
}

func (r *shareRepo) ListNicknames(ctx context.Context, seed string) ([]string, error) {
	query := `
		SELECT u.nickname
		FROM sessions_shared sh
		JOIN users u ON sh.user_id = u.id
		WHERE sh.seed = $1
		ORDER BY u.nickname`

	rows, err := r.db.Query(ctx, query, seed)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения шарингов сессии %s: %w", seed, err)
	}
	defer rows.Close()

	var nicknames []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("ошибка сканирования шаринга: %w", err)
		}
		nicknames = append(nicknames, n)
	}
	return nicknames, rows.Err()
}

// Add — ON CONFLICT DO NOTHING вместо предварительной проверки
// существования: вставка идемпотентна при конкурирующих запросах.
func (r *shareRepo) Add(ctx context.Context, seed string, userID int64) (bool, error) {
	query := `
		INSERT INTO sessions_shared (user_id, seed)
		VALUES ($1, $2)
		ON CONFLICT (user_id, seed) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, userID, seed)
	if err != nil {
		return false, fmt.Errorf("ошибка добавления шаринга сессии %s: %w", seed, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *shareRepo) Remove(ctx context.Context, seed string, userID int64) (bool, error) {
	query := `DELETE FROM sessions_shared WHERE user_id = $1 AND seed = $2`

	tag, err := r.db.Exec(ctx, query, userID, seed)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления шаринга сессии %s: %w", seed, err)
	}
	return tag.RowsAffected() == 1, nil
}
