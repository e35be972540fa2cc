package model

// NetworkStatus — статус конвертации сети.
type NetworkStatus string

const (
	// StatusNeedsConversion — найден только исходный формат (.graphml),
	// сеть требует конвертации перед визуализацией.
	StatusNeedsConversion NetworkStatus = "needs-conversion"
	// StatusConverted — найден готовый формат (.json), сеть можно отображать.
	StatusConverted NetworkStatus = "converted"
)

// NetworkEntry — логическая сеть, собранная из физических файлов
// директории сессии с общим базовым именем.
type NetworkEntry struct {
	// Name — базовое имя файлов без расширения
	Name string `json:"name"`
	// Status — статус конвертации; пустой, если найден только sidecar-файл
	Status NetworkStatus `json:"status,omitempty"`
	// SampleData — содержимое sidecar-файла с примером данных (.dat)
	SampleData []byte `json:"sample_data,omitempty"`
}
