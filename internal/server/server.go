// Пакет server — HTTP-сервер Session Module с graceful shutdown.
// Без TLS — transport security вне зоны ответственности сервиса.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sogi-tools/session-module/internal/api/handlers"
	"github.com/sogi-tools/session-module/internal/api/middleware"
	"github.com/sogi-tools/session-module/internal/config"
)

// Server — HTTP-сервер Session Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	sessions *handlers.SessionsHandler,
	health *handlers.HealthHandler,
) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", sessions.CreateSession)

		r.Route("/{seed}", func(r chi.Router) {
			r.Get("/", sessions.GetSession)
			r.Get("/networks", sessions.ListNetworks)
			r.Post("/convert", sessions.Convert)
			r.Get("/settings", sessions.GetSettings)
			r.Patch("/settings", sessions.PatchSettings)
			r.Put("/current-network", sessions.SetCurrentNetwork)
			r.Put("/privacy", sessions.SetPrivacy)
			r.Post("/password-check", sessions.CheckPassword)
			r.Get("/shares", sessions.ListShares)
			r.Post("/shares", sessions.AddShare)
			r.Delete("/shares/{nickname}", sessions.RemoveShare)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
