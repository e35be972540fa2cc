// Session Module — сервис управления сессиями анализа сетевых графов.
// Создание и загрузка сессий, каталог сетей, конвертация graphml → json,
// настройки, пароли и шаринг.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sogi-tools/session-module/internal/api/handlers"
	"github.com/sogi-tools/session-module/internal/catalog"
	"github.com/sogi-tools/session-module/internal/config"
	"github.com/sogi-tools/session-module/internal/database"
	"github.com/sogi-tools/session-module/internal/jobs"
	"github.com/sogi-tools/session-module/internal/repository"
	"github.com/sogi-tools/session-module/internal/server"
	"github.com/sogi-tools/session-module/internal/service"
	"github.com/sogi-tools/session-module/internal/storage/sessiondir"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Запуск Session Module",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	ctx := context.Background()

	// Применение миграций
	if err := database.Migrate(cfg, logger); err != nil {
		return fmt.Errorf("ошибка миграций: %w", err)
	}

	// Подключение к PostgreSQL
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Хранилище директорий сессий
	layout, err := sessiondir.New(cfg.SessionsDir, cfg.PublicBaseURL)
	if err != nil {
		return fmt.Errorf("ошибка инициализации хранилища сессий: %w", err)
	}

	// Репозитории
	sessionRepo := repository.NewSessionRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)
	shareRepo := repository.NewShareRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	creator := repository.NewSessionCreator(pool)

	// Сервис сессий
	svc := service.NewSessionService(
		sessionRepo,
		settingsRepo,
		shareRepo,
		userRepo,
		creator,
		catalog.New(cfg.FilenameDenyList),
		layout,
		jobs.NewExecRunner(logger),
		cfg.ConverterCmd,
		logger,
	)

	// HTTP handlers
	sessionsHandler := handlers.NewSessionsHandler(svc)
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool))

	// HTTP-сервер
	srv := server.New(cfg, logger, sessionsHandler, healthHandler)
	return srv.Run()
}
