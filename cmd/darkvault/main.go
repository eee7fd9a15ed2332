// Точка входа DarkVault — самостоятельно размещаемый обмен файлами.
// Загружает конфигурацию, создаёт хранилище, журнал аудита, сервисный
// слой и UI handlers, запускает HTTP-сервер с graceful shutdown.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	apihandlers "github.com/hasnain-dark-net/Darkvault-pro/internal/api/handlers"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/config"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/server"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/service"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/storage/auditlog"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/storage/filestore"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/auth"
	uihandlers "github.com/hasnain-dark-net/Darkvault-pro/internal/ui/handlers"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/i18n"
	uimiddleware "github.com/hasnain-dark-net/Darkvault-pro/internal/ui/middleware"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/pages"
)

func main() {
	showVersion := flag.Bool("version", false, "вывести версию и выйти")
	flag.Parse()
	if *showVersion {
		fmt.Println(config.Version)
		return
	}

	// 1. Конфигурация: .env (если есть), затем переменные окружения
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("Ошибка чтения .env", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Логирование
	logger := config.SetupLogger(cfg)
	logger.Info("DarkVault запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("upload_dir", cfg.UploadDir),
	)
	if cfg.UsesDefaultCredentials() {
		logger.Warn("Используются пароль администратора или секрет сессии по умолчанию, задайте DARKVAULT_ADMIN_PASS и DARKVAULT_SECRET")
	}

	// 3. Хранилище и журнал аудита
	store, err := filestore.New(cfg.UploadDir, cfg.ThumbDir, cfg.AllowedExt, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	audit, err := auditlog.New(cfg.AuditLogPath, logger)
	if err != nil {
		logger.Error("Ошибка инициализации журнала аудита", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Сервисный слой
	files := service.NewFileService(store, audit, cfg.PublicURL, logger)

	// 5. Сессии, i18n, шаблоны
	secure := strings.HasPrefix(cfg.PublicURL, "https://")
	sessionManager, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, secure)
	if err != nil {
		logger.Error("Ошибка создания менеджера сессий", slog.String("error", err.Error()))
		os.Exit(1)
	}
	bundle, err := i18n.Load(i18n.LocaleFS, logger)
	if err != nil {
		logger.Error("Ошибка загрузки каталогов переводов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	renderer, err := pages.NewRenderer(bundle)
	if err != nil {
		logger.Error("Ошибка разбора шаблонов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Handlers и HTTP-сервер
	srv := server.New(cfg, logger, server.Handlers{
		Files: uihandlers.NewFilesHandler(files, store, sessionManager, renderer,
			cfg.MaxUploadBytes, cfg.AllowedExt, logger),
		Auth: uihandlers.NewAuthHandler(auth.NewPasswordChecker(cfg.AdminPassword),
			sessionManager, renderer, logger),
		Language: uihandlers.NewLanguageHandler(bundle, secure),
		Health:   apihandlers.NewHealthHandler(store),
		Sessions: uimiddleware.NewSessions(sessionManager, logger),
		I18n:     bundle,
	})

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка HTTP-сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
