// Пакет model — доменные модели Session Module.
package model

import (
	"fmt"
	"time"
)

// Privacy — статус приватности сессии.
type Privacy string

const (
	// PrivacyPublic — сессия видна всем, знающим её seed.
	PrivacyPublic Privacy = "public"
	// PrivacyPrivate — сессия видна только владельцу и пользователям из sessions_shared.
	PrivacyPrivate Privacy = "private"
)

// ParsePrivacy преобразует строку в Privacy.
// Возвращает ошибку для недопустимых значений.
func ParsePrivacy(s string) (Privacy, error) {
	p := Privacy(s)
	switch p {
	case PrivacyPublic, PrivacyPrivate:
		return p, nil
	default:
		return "", fmt.Errorf("недопустимая приватность: %q, допустимые: public, private", s)
	}
}

// JobState — состояние долгой операции сессии.
// Допустимые переходы: idle → running (begin) и running → idle (end).
type JobState string

const (
	// JobIdle — операция не выполняется.
	JobIdle JobState = "idle"
	// JobRunning — операция выполняется; повторный запуск отклоняется.
	JobRunning JobState = "running"
)

// Session — модель записи из таблицы sessions.
// Seed, FolderPath, InterfaceURI и OwnerID неизменяемы после создания.
type Session struct {
	// Seed — уникальный непрозрачный идентификатор сессии
	Seed string
	// Title — название сессии
	Title string
	// FolderPath — серверный путь к директории сессии
	FolderPath string
	// InterfaceURI — внешний URI содержимого сессии
	InterfaceURI string
	// OwnerID — идентификатор владельца (FK на users)
	OwnerID int64
	// Privacy — статус приватности
	Privacy Privacy
	// PasswordHash — bcrypt-хэш пароля; пустая строка — сессия без пароля
	PasswordHash string
	// CurrentNet — имя сети, загруженной в канвас визуализации
	CurrentNet string
	// JobState — состояние долгой операции (idle, running)
	JobState JobState
	// LastJobLabel — метка последней запущенной операции
	LastJobLabel string
	// LastJobAt — время запуска последней операции
	LastJobAt *time.Time
	// Время создания записи
	CreatedAt time.Time
	// Время последнего обновления записи
	UpdatedAt time.Time
}

// Protected возвращает true, если сессия защищена паролем.
func (s *Session) Protected() bool {
	return s.PasswordHash != ""
}
