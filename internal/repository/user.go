package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sogi-tools/session-module/internal/domain/model"
)

// UserRepository — интерфейс для таблицы users.
// Сервисный слой использует его для резолва nickname → внутренний id
// (владелец при создании сессии, участник при шаринге).
type UserRepository interface {
	// GetByNickname возвращает пользователя по имени. Если не найден — ErrNotFound.
	GetByNickname(ctx context.Context, nickname string) (*model.User, error)
	// Create вставляет нового пользователя.
	// При дублирующемся nickname — ErrConflict.
	Create(ctx context.Context, u *model.User) error
}

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) GetByNickname(ctx context.Context, nickname string) (*model.User, error) {
	query := `
		SELECT id, nickname, created_at
		FROM users
		WHERE nickname = $1`

	u := &model.User{}
	err := r.db.QueryRow(ctx, query, nickname).Scan(&u.ID, &u.Nickname, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя %s: %w", nickname, err)
	}
	return u, nil
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (nickname)
		VALUES ($1)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, u.Nickname).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: пользователь %s уже существует", ErrConflict, u.Nickname)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}
