package repository

import (
	"context"
	"fmt"
)

// SettingsRepository — интерфейс для таблицы sessions_settings.
// Фильтрация по whitelist ключей — обязанность вызывающего (сервисного слоя).
type SettingsRepository interface {
	// Read возвращает все сохранённые настройки сессии (key → value).
	Read(ctx context.Context, seed string) (map[string]string, error)
	// Set создаёт или обновляет настройку (upsert по (seed, key)).
	Set(ctx context.Context, seed, key, value string) error
	// SetMany выполняет upsert нескольких настроек.
	SetMany(ctx context.Context, seed string, settings map[string]string) error
	// SeedDefaults вставляет стартовые настройки новой сессии.
	// Вызывается ровно один раз, при создании сессии.
	SeedDefaults(ctx context.Context, seed string, defaults map[string]string) error
}

// settingsRepo — реализация SettingsRepository.
type settingsRepo struct {
	db DBTX
}

// NewSettingsRepository создаёт репозиторий настроек сессий.
func NewSettingsRepository(db DBTX) SettingsRepository {
	return &settingsRepo{db: db}
}

func (r *settingsRepo) Read(ctx context.Context, seed string) (map[string]string, error) {
	query := `
		SELECT setting_key, setting_value
		FROM sessions_settings
		WHERE seed = $1`

	rows, err := r.db.Query(ctx, query, seed)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения настроек сессии %s: %w", seed, err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("ошибка сканирования настройки: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// Set — INSERT ... ON CONFLICT DO UPDATE вместо проверки существования
// с последующей записью: upsert атомарен при конкурирующих запросах.
func (r *settingsRepo) Set(ctx context.Context, seed, key, value string) error {
	query := `
		INSERT INTO sessions_settings (seed, setting_key, setting_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (seed, setting_key) DO UPDATE
		SET setting_value = EXCLUDED.setting_value,
			updated_at = NOW()`

	_, err := r.db.Exec(ctx, query, seed, key, value)
	if err != nil {
		return fmt.Errorf("ошибка сохранения настройки %s[%s]: %w", seed, key, err)
	}
	return nil
}

func (r *settingsRepo) SetMany(ctx context.Context, seed string, settings map[string]string) error {
	for key, value := range settings {
		if err := r.Set(ctx, seed, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (r *settingsRepo) SeedDefaults(ctx context.Context, seed string, defaults map[string]string) error {
	query := `
		INSERT INTO sessions_settings (seed, setting_key, setting_value)
		VALUES ($1, $2, $3)`

	for key, value := range defaults {
		if _, err := r.db.Exec(ctx, query, seed, key, value); err != nil {
			return fmt.Errorf("ошибка вставки стартовой настройки %s[%s]: %w", seed, key, err)
		}
	}
	return nil
}
