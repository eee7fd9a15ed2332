// Пакет config — загрузка и валидация конфигурации DarkVault
// из переменных окружения (опционально — из файла .env).
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Значения по умолчанию для режима разработки.
const (
	DefaultAdminPassword = "hasnain"
	DefaultSecret        = "change-me-1234"
	// DefaultMaxUploadBytes — 80 MiB.
	DefaultMaxUploadBytes int64 = 80 * 1024 * 1024
)

// Config содержит все параметры конфигурации DarkVault.
// Создаётся один раз при старте и далее только читается.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (слушаем на всех интерфейсах)
	Port int
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Таймаут чтения заголовков запроса
	HTTPReadHeaderTimeout time.Duration
	// Таймаут чтения запроса целиком (0 — без ограничения)
	HTTPReadTimeout time.Duration
	// Таймаут записи ответа (0 — без ограничения)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя keep-alive соединения
	HTTPIdleTimeout time.Duration
	// Базовый URL для ссылок в QR-кодах. Пустой — вычисляется из запроса.
	PublicURL string

	// --- Хранилище ---

	// Директория загруженных файлов
	UploadDir string
	// Директория превью и QR-кодов (UploadDir/thumbs)
	ThumbDir string
	// Путь к JSON-файлу журнала аудита
	AuditLogPath string
	// Максимальный размер тела запроса в байтах
	MaxUploadBytes int64
	// Разрешённые расширения (нижний регистр, без точки). nil — разрешены все.
	AllowedExt []string

	// --- Администратор ---

	// Пароль администратора
	AdminPassword string
	// Секрет подписи сессий
	SessionSecret string
	// Время жизни сессии
	SessionTTL time.Duration

	// --- Логирование ---

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Файл логов с ротацией (опционально, в дополнение к stdout)
	LogFile string
}

// LoadDotEnv загружает переменные из .env файла, если он существует.
// Уже заданные переменные окружения не перезаписываются.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("ошибка чтения %s: %w", path, err)
	}
	return nil
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// DARKVAULT_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("DARKVAULT_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("DARKVAULT_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("DARKVAULT_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// DARKVAULT_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("DARKVAULT_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DARKVAULT_SHUTDOWN_TIMEOUT: %w", err)
	}

	// DARKVAULT_HTTP_READ_HEADER_TIMEOUT — таймаут чтения заголовков (по умолчанию 10s)
	cfg.HTTPReadHeaderTimeout, err = getEnvDuration("DARKVAULT_HTTP_READ_HEADER_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DARKVAULT_HTTP_READ_HEADER_TIMEOUT: %w", err)
	}

	// DARKVAULT_HTTP_READ_TIMEOUT, DARKVAULT_HTTP_WRITE_TIMEOUT — по умолчанию 0:
	// загрузка и скачивание больших файлов не прерываются по времени
	cfg.HTTPReadTimeout, err = getEnvDuration("DARKVAULT_HTTP_READ_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("DARKVAULT_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("DARKVAULT_HTTP_WRITE_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("DARKVAULT_HTTP_WRITE_TIMEOUT: %w", err)
	}

	// DARKVAULT_HTTP_IDLE_TIMEOUT — таймаут простоя (по умолчанию 120s)
	cfg.HTTPIdleTimeout, err = getEnvDuration("DARKVAULT_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DARKVAULT_HTTP_IDLE_TIMEOUT: %w", err)
	}

	for name, d := range map[string]time.Duration{
		"DARKVAULT_HTTP_READ_HEADER_TIMEOUT": cfg.HTTPReadHeaderTimeout,
		"DARKVAULT_HTTP_READ_TIMEOUT":        cfg.HTTPReadTimeout,
		"DARKVAULT_HTTP_WRITE_TIMEOUT":       cfg.HTTPWriteTimeout,
		"DARKVAULT_HTTP_IDLE_TIMEOUT":        cfg.HTTPIdleTimeout,
	} {
		if d < 0 {
			return nil, fmt.Errorf("%s: значение не может быть отрицательным", name)
		}
	}

	// DARKVAULT_PUBLIC_URL — убираем trailing slash
	cfg.PublicURL = strings.TrimRight(getEnvDefault("DARKVAULT_PUBLIC_URL", ""), "/")

	cfg.UploadDir = getEnvDefault("DARKVAULT_UPLOAD_DIR", "uploads")
	cfg.ThumbDir = filepath.Join(cfg.UploadDir, "thumbs")
	cfg.AuditLogPath = getEnvDefault("DARKVAULT_AUDIT_LOG", "audit_log.json")

	// DARKVAULT_MAX_UPLOAD_BYTES — лимит тела запроса (по умолчанию 80 MiB)
	cfg.MaxUploadBytes, err = getEnvInt64("DARKVAULT_MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)
	if err != nil {
		return nil, fmt.Errorf("DARKVAULT_MAX_UPLOAD_BYTES: %w", err)
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("DARKVAULT_MAX_UPLOAD_BYTES: значение должно быть положительным")
	}

	// DARKVAULT_ALLOWED_EXT — "png, jpg,.PDF" → [png jpg pdf]
	for _, ext := range parseCSV(getEnvDefault("DARKVAULT_ALLOWED_EXT", "")) {
		cfg.AllowedExt = append(cfg.AllowedExt, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}

	cfg.AdminPassword = getEnvDefault("DARKVAULT_ADMIN_PASS", DefaultAdminPassword)
	cfg.SessionSecret = getEnvDefault("DARKVAULT_SECRET", DefaultSecret)

	// DARKVAULT_SESSION_TTL — время жизни сессии (по умолчанию 24h)
	cfg.SessionTTL, err = getEnvDuration("DARKVAULT_SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DARKVAULT_SESSION_TTL: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("DARKVAULT_SESSION_TTL: значение должно быть положительным")
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DARKVAULT_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DARKVAULT_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("DARKVAULT_LOG_FORMAT", "text")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DARKVAULT_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.LogFile = getEnvDefault("DARKVAULT_LOG_FILE", "")

	return cfg, nil
}

// UsesDefaultCredentials сообщает, что пароль или секрет не переопределены.
func (c *Config) UsesDefaultCredentials() bool {
	return c.AdminPassword == DefaultAdminPassword || c.SessionSecret == DefaultSecret
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
// Если задан LogFile — логи дублируются в файл с ротацией.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // МБ
			MaxBackups: 5,
			MaxAge:     30, // дней
			Compress:   true,
		})
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
