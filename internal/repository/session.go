package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sogi-tools/session-module/internal/domain/model"
)

// SessionRepository — интерфейс для таблицы sessions.
type SessionRepository interface {
	// Exists проверяет существование сессии по seed. Без побочных эффектов.
	Exists(ctx context.Context, seed string) (bool, error)
	// GetBySeed возвращает сессию по seed. Если не найдена — ErrNotFound.
	GetBySeed(ctx context.Context, seed string) (*model.Session, error)
	// Create вставляет новую запись сессии.
	// При дублирующемся seed — ErrConflict (уникальное ограничение PK
	// закрывает гонку exists-проверки с конкурирующим создателем).
	Create(ctx context.Context, s *model.Session) error
	// UpdateCurrentNet сохраняет имя сети, загруженной в канвас.
	UpdateCurrentNet(ctx context.Context, seed, currentNet string) error
	// UpdatePrivacy изменяет приватность сессии.
	UpdatePrivacy(ctx context.Context, seed string, privacy model.Privacy) error
	// TryBeginJob атомарно переводит сессию idle → running (conditional
	// update, а не check-then-act). Возвращает false, если операция
	// уже выполняется; ErrNotFound, если сессия не существует.
	TryBeginJob(ctx context.Context, seed, label string) (bool, error)
	// FinishJob переводит сессию running → idle.
	FinishJob(ctx context.Context, seed string) error
}

// sessionRepo — реализация SessionRepository.
type sessionRepo struct {
	db DBTX
}

// NewSessionRepository создаёт репозиторий сессий.
func NewSessionRepository(db DBTX) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Exists(ctx context.Context, seed string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM sessions WHERE seed = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, seed).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки существования сессии %s: %w", seed, err)
	}
	return exists, nil
}

func (r *sessionRepo) GetBySeed(ctx context.Context, seed string) (*model.Session, error) {
	query := `
		SELECT seed, title, folder_path, interface_uri, owner_id, privacy,
			password_hash, current_net, job_state, last_job_label, last_job_at,
			created_at, updated_at
		FROM sessions
		WHERE seed = $1`

	s := &model.Session{}
	err := r.db.QueryRow(ctx, query, seed).Scan(
		&s.Seed, &s.Title, &s.FolderPath, &s.InterfaceURI, &s.OwnerID, &s.Privacy,
		&s.PasswordHash, &s.CurrentNet, &s.JobState, &s.LastJobLabel, &s.LastJobAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения сессии %s: %w", seed, err)
	}
	return s, nil
}

func (r *sessionRepo) Create(ctx context.Context, s *model.Session) error {
	query := `
		INSERT INTO sessions (seed, title, folder_path, interface_uri, owner_id,
			privacy, password_hash, current_net, job_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		s.Seed, s.Title, s.FolderPath, s.InterfaceURI, s.OwnerID,
		s.Privacy, s.PasswordHash, s.CurrentNet, model.JobIdle,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: сессия с seed %s уже существует", ErrConflict, s.Seed)
		}
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	s.JobState = model.JobIdle
	return nil
}

func (r *sessionRepo) UpdateCurrentNet(ctx context.Context, seed, currentNet string) error {
	query := `
		UPDATE sessions
		SET current_net = $2, updated_at = NOW()
		WHERE seed = $1`

	tag, err := r.db.Exec(ctx, query, seed, currentNet)
	if err != nil {
		return fmt.Errorf("ошибка обновления current_net сессии %s: %w", seed, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sessionRepo) UpdatePrivacy(ctx context.Context, seed string, privacy model.Privacy) error {
	query := `
		UPDATE sessions
		SET privacy = $2, updated_at = NOW()
		WHERE seed = $1`

	tag, err := r.db.Exec(ctx, query, seed, privacy)
	if err != nil {
		return fmt.Errorf("ошибка обновления privacy сессии %s: %w", seed, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TryBeginJob — compare-and-swap на job_state: переход выполняется
// только из idle. Переход фиксируется в БД до запуска внешней команды,
// поэтому падение процесса оставляет сессию durably running.
func (r *sessionRepo) TryBeginJob(ctx context.Context, seed, label string) (bool, error) {
	query := `
		UPDATE sessions
		SET job_state = $2, last_job_label = $3, last_job_at = NOW(), updated_at = NOW()
		WHERE seed = $1 AND job_state = $4`

	tag, err := r.db.Exec(ctx, query, seed, model.JobRunning, label, model.JobIdle)
	if err != nil {
		return false, fmt.Errorf("ошибка перевода сессии %s в running: %w", seed, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Переход не выполнен: либо сессии нет, либо она уже running.
	exists, err := r.Exists(ctx, seed)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

func (r *sessionRepo) FinishJob(ctx context.Context, seed string) error {
	query := `
		UPDATE sessions
		SET job_state = $2, updated_at = NOW()
		WHERE seed = $1`

	tag, err := r.db.Exec(ctx, query, seed, model.JobIdle)
	if err != nil {
		return fmt.Errorf("ошибка перевода сессии %s в idle: %w", seed, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
