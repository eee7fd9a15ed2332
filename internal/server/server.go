// Пакет server — HTTP-сервер DarkVault с graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apihandlers "github.com/hasnain-dark-net/Darkvault-pro/internal/api/handlers"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/api/middleware"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/config"
	uihandlers "github.com/hasnain-dark-net/Darkvault-pro/internal/ui/handlers"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/i18n"
	uimiddleware "github.com/hasnain-dark-net/Darkvault-pro/internal/ui/middleware"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/static"
)

// Handlers — обработчики и middleware, монтируемые в маршрутизатор.
type Handlers struct {
	Files    *uihandlers.FilesHandler
	Auth     *uihandlers.AuthHandler
	Language *uihandlers.LanguageHandler
	Health   *apihandlers.HealthHandler
	Sessions *uimiddleware.Sessions
	I18n     *i18n.Bundle
}

// Server — HTTP-сервер DarkVault.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
func New(cfg *config.Config, logger *slog.Logger, h Handlers) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewRouter(cfg, logger, h),
		ReadHeaderTimeout: cfg.HTTPReadHeaderTimeout,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
		cfg:        cfg,
	}
}

// NewRouter собирает маршрутизатор приложения.
//
// Порядок middleware: request ID → логирование → метрики → язык → сессия.
// Служебные endpoints (/health, /metrics, /static) не читают сессию.
func NewRouter(cfg *config.Config, logger *slog.Logger, h Handlers) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Handle("/metrics", promhttp.Handler())
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(static.FileSystem())))

	router.Group(func(r chi.Router) {
		r.Use(h.I18n.Middleware())
		r.Use(h.Sessions.Load())

		r.Get("/", h.Files.HandleHome)
		r.With(middleware.MaxBodySize(cfg.MaxUploadBytes)).Post("/", h.Files.HandleUpload)
		r.Get("/uploads/{name}", h.Files.HandleDownload)
		r.Get("/thumbs/{name}", h.Files.HandleThumb)

		r.Get("/login", h.Auth.HandleLoginPage)
		r.With(middleware.MaxBodySize(formBodyLimit)).Post("/login", h.Auth.HandleLogin)
		r.Get("/logout", h.Auth.HandleLogout)

		r.Get("/set-language", h.Language.HandleSetLanguage)
		r.With(middleware.MaxBodySize(formBodyLimit)).Post("/set-language", h.Language.HandleSetLanguage)

		// Только для администратора
		r.Group(func(r chi.Router) {
			r.Use(h.Sessions.RequireAdmin())
			r.Get("/admin", h.Files.HandleAdmin)
			r.With(middleware.MaxBodySize(formBodyLimit)).Post("/delete/{name}", h.Files.HandleDelete)
		})
	})

	return router
}

// formBodyLimit — лимит тела для небольших форм
const formBodyLimit = 64 * 1024

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// Затем выполняется graceful shutdown с таймаутом cfg.ShutdownTimeout.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен", slog.String("addr", s.httpServer.Addr))

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
		return nil
	}

	return s.Shutdown()
}

// Shutdown останавливает сервер, дожидаясь завершения активных запросов.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
