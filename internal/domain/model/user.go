package model

import "time"

// User — модель записи из таблицы users.
// Сессии ссылаются на пользователей как владельцы (sessions.owner_id)
// и как участники шаринга (sessions_shared.user_id).
type User struct {
	// ID — внутренний идентификатор пользователя
	ID int64
	// Nickname — отображаемое имя; уникально
	Nickname string
	// Время создания записи
	CreatedAt time.Time
}
