// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — сессия, сеть или пользователь не найдены.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrBusy — для сессии уже выполняется операция; не фатально,
	// вызывающий может повторить позже.
	ErrBusy = errors.New("операция уже выполняется")
	// ErrConflict — гонка создания сессии с одинаковым seed.
	ErrConflict = errors.New("конфликт — сессия уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
)
