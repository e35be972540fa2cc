// Пакет password — одностороннее хэширование паролей сессий (bcrypt).
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hash возвращает bcrypt-хэш пароля.
func Hash(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
	}
	return string(h), nil
}

// Match проверяет кандидата против сохранённого хэша.
// Для незащищённой сессии (пустой хэш) всегда false: сравнение
// кандидата с пустым хэшем не является совпадением пароля.
func Match(hash, candidate string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}
