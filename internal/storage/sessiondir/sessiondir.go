// Пакет sessiondir — раскладка директорий сессий на диске.
// Каждая сессия получает приватную директорию {root}/{seed} с
// поддиректориями output_directory и settings, плюс внешний URI
// вида {publicBase}/s/{seed}.
package sessiondir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Поддиректории, создаваемые для каждой сессии.
var sessionSubdirs = []string{"output_directory", "settings"}

// Layout — раскладка директорий сессий.
type Layout struct {
	// root — корневая директория всех сессий (SM_SESSIONS_DIR)
	root string
	// publicBase — базовый URL внешнего доступа (SM_PUBLIC_BASE_URL)
	publicBase string
}

// New создаёт Layout. Проверяет и создаёт корневую директорию,
// если она не существует.
func New(root, publicBase string) (*Layout, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать корневую директорию сессий %s: %w", root, err)
	}

	return &Layout{
		root:       root,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

// Create создаёт директорию сессии с поддиректориями.
// Вызывается после durable-вставки записи сессии: при проигрыше
// гонки создания директории не появляются.
func (l *Layout) Create(seed string) error {
	dir := l.Path(seed)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию сессии %s: %w", dir, err)
	}
	for _, sub := range sessionSubdirs {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return fmt.Errorf("не удалось создать поддиректорию %s сессии %s: %w", sub, seed, err)
		}
	}
	return nil
}

// Path возвращает серверный путь к директории сессии.
func (l *Layout) Path(seed string) string {
	return filepath.Join(l.root, seed)
}

// PublicURI возвращает внешний URI содержимого сессии.
func (l *Layout) PublicURI(seed string) string {
	return fmt.Sprintf("%s/s/%s", l.publicBase, seed)
}

// Root возвращает корневую директорию сессий.
func (l *Layout) Root() string {
	return l.root
}
