// Пакет handlers — служебные HTTP endpoints DarkVault.
// health.go — liveness и readiness probes.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hasnain-dark-net/Darkvault-pro/internal/config"
)

const (
	statusOK   = "ok"
	statusFail = "fail"
	service    = "darkvault"
)

// WritableChecker — проверка доступности хранилища на запись.
type WritableChecker interface {
	Writable() error
}

// HealthHandler реализует /health/live и /health/ready.
type HealthHandler struct {
	version string
	storage WritableChecker
	now     func() time.Time
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(storage WritableChecker) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		storage: storage,
		now:     time.Now,
	}
}

// HealthLive обрабатывает GET /health/live.
// Отвечает 200, пока процесс жив. Зависимости не проверяются.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    statusOK,
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   service,
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет запись в директории загрузок и производных файлов.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	status := statusOK
	httpStatus := http.StatusOK

	storageCheck := map[string]any{"status": statusOK}
	if err := h.storage.Writable(); err != nil {
		status = statusFail
		httpStatus = http.StatusServiceUnavailable
		storageCheck = map[string]any{
			"status":  statusFail,
			"message": "Хранилище недоступно для записи: " + err.Error(),
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   service,
		"checks": map[string]any{
			"storage": storageCheck,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
