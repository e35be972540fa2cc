// Пакет jobs — запуск внешних долгих команд (конвертация сетей).
// Команда выполняется синхронно, вывод захватывается целиком.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Runner — интерфейс внешнего исполнителя команд.
// Взаимное исключение запусков — обязанность вызывающего (job guard
// сервисного слоя); Runner ничего не знает о сессиях.
type Runner interface {
	// Run запускает команду name с аргументами args и возвращает
	// объединённый stdout/stderr. Ошибка включает ненулевой exit status.
	Run(ctx context.Context, name string, args []string) ([]byte, error)
}

// ExecRunner — Runner поверх os/exec.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner создаёт ExecRunner.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{
		logger: logger.With(slog.String("component", "exec_runner")),
	}
}

// Run выполняет команду и возвращает её вывод.
// Таймаут не накладывается: долгая команда ожидается до завершения
// либо до отмены переданного контекста.
func (r *ExecRunner) Run(ctx context.Context, name string, args []string) ([]byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()

	duration := time.Since(start)
	if err != nil {
		r.logger.Warn("Внешняя команда завершилась с ошибкой",
			slog.String("command", name),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return out, fmt.Errorf("ошибка выполнения команды %s: %w", name, err)
	}

	r.logger.Info("Внешняя команда выполнена",
		slog.String("command", name),
		slog.Duration("duration", duration),
		slog.Int("output_bytes", len(out)),
	)
	return out, nil
}
