// Пакет catalog — агрегация файлов директории сессии в логические сети.
//
// Каждый скан — чистая функция от содержимого директории на момент
// вызова: без кэша, без инкрементальных диффов. Файлы с общим базовым
// именем сливаются в одну запись; семантика расширений:
//
//	.json    — готовый формат, статус converted (не понижается)
//	.graphml — исходный формат, статус needs-conversion
//	.dat     — sidecar с примером данных, содержимое читается в запись
//	прочее   — игнорируется
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sogi-tools/session-module/internal/domain/model"
)

// Расширения файлов сессии.
const (
	extConverted = "json"
	extRaw       = "graphml"
	extSample    = "dat"
)

// Catalog сканирует директории сессий.
type Catalog struct {
	// deny — имена файлов, исключаемые из скана (служебные файлы
	// сессии). Передаётся из конфигурации, не глобальное состояние.
	deny map[string]bool
}

// New создаёт Catalog с заданным deny-list имён файлов.
func New(denyList []string) *Catalog {
	deny := make(map[string]bool, len(denyList))
	for _, name := range denyList {
		deny[name] = true
	}
	return &Catalog{deny: deny}
}

// Rescan строит каталог сетей по содержимому dir (без рекурсии).
// Пустая директория — пустой каталог, не ошибка.
func (c *Catalog) Rescan(dir string) (map[string]model.NetworkEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", dir, err)
	}

	networks := make(map[string]model.NetworkEntry)
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		filename := de.Name()
		if c.deny[filename] {
			continue
		}

		// Базовое имя — всё до последней точки, расширение — после.
		dot := strings.LastIndex(filename, ".")
		if dot <= 0 {
			continue
		}
		name := filename[:dot]
		ext := filename[dot+1:]

		entry, known := networks[name]
		entry.Name = name

		switch ext {
		case extConverted:
			entry.Status = model.StatusConverted
		case extRaw:
			// converted никогда не понижается до needs-conversion
			if entry.Status != model.StatusConverted {
				entry.Status = model.StatusNeedsConversion
			}
		case extSample:
			data, err := os.ReadFile(filepath.Join(dir, filename))
			if err != nil {
				return nil, fmt.Errorf("ошибка чтения sidecar-файла %s: %w", filename, err)
			}
			entry.SampleData = data
		default:
			if !known {
				continue
			}
		}

		networks[name] = entry
	}
	return networks, nil
}
