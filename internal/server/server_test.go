package server

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apihandlers "github.com/hasnain-dark-net/Darkvault-pro/internal/api/handlers"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/config"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/service"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/storage/auditlog"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/storage/filestore"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/auth"
	uihandlers "github.com/hasnain-dark-net/Darkvault-pro/internal/ui/handlers"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/i18n"
	uimiddleware "github.com/hasnain-dark-net/Darkvault-pro/internal/ui/middleware"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/pages"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		Port:            8000,
		ShutdownTimeout: time.Second,
		HTTPIdleTimeout: time.Minute,
		UploadDir:       filepath.Join(root, "uploads"),
		ThumbDir:        filepath.Join(root, "uploads", "thumbs"),
		AuditLogPath:    filepath.Join(root, "audit_log.json"),
		MaxUploadBytes:  1024,
		AdminPassword:   "pw",
		SessionSecret:   "secret",
		SessionTTL:      time.Hour,
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := testConfig(t)
	h, _ := newTestHandlers(t, cfg)
	return NewRouter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), h)
}

func newTestHandlers(t *testing.T, cfg *config.Config) (Handlers, *filestore.FileStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := filestore.New(cfg.UploadDir, cfg.ThumbDir, nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	audit, err := auditlog.New(cfg.AuditLogPath, logger)
	if err != nil {
		t.Fatal(err)
	}
	sm, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, false)
	if err != nil {
		t.Fatal(err)
	}
	bundle, err := i18n.Load(i18n.LocaleFS, logger)
	if err != nil {
		t.Fatal(err)
	}
	renderer, err := pages.NewRenderer(bundle)
	if err != nil {
		t.Fatal(err)
	}
	svc := service.NewFileService(store, audit, "", logger)

	return Handlers{
		Files:    uihandlers.NewFilesHandler(svc, store, sm, renderer, cfg.MaxUploadBytes, nil, logger),
		Auth:     uihandlers.NewAuthHandler(auth.NewPasswordChecker(cfg.AdminPassword), sm, renderer, logger),
		Language: uihandlers.NewLanguageHandler(bundle, false),
		Health:   apihandlers.NewHealthHandler(store),
		Sessions: uimiddleware.NewSessions(sm, logger),
		I18n:     bundle,
	}, store
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestRouter_Routes проверяет монтирование основных маршрутов.
func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/login", http.StatusOK},
		{http.MethodGet, "/admin", http.StatusFound},
		{http.MethodPost, "/delete/x.txt", http.StatusFound},
		{http.MethodGet, "/logout", http.StatusFound},
		{http.MethodGet, "/uploads/missing.txt", http.StatusNotFound},
		{http.MethodGet, "/thumbs/missing.png", http.StatusNotFound},
		{http.MethodGet, "/health/live", http.StatusOK},
		{http.MethodGet, "/health/ready", http.StatusOK},
		{http.MethodGet, "/static/css/style.css", http.StatusOK},
		{http.MethodGet, "/static/js/app.js", http.StatusOK},
		{http.MethodGet, "/no-such-page", http.StatusNotFound},
		{http.MethodPut, "/", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		rec := serve(router, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s: код ответа = %d, ожидался %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}

// TestRouter_RequestID проверяет заголовок X-Request-ID.
func TestRouter_RequestID(t *testing.T) {
	rec := serve(newTestRouter(t), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID отсутствует")
	}
}

// TestRouter_UploadTooLarge проверяет 413 до обработчика загрузки.
func TestRouter_UploadTooLarge(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 2048)))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	rec := serve(newTestRouter(t), req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("код ответа = %d, ожидался 413", rec.Code)
	}
}

// TestRouter_Metrics проверяет экспорт метрик HTTP-запросов.
func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t)
	serve(router, httptest.NewRequest(http.MethodGet, "/", nil))

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("код ответа = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "darkvault_http_requests_total") {
		t.Error("метрика darkvault_http_requests_total отсутствует")
	}
}

// TestRouter_LanguageFromCookie проверяет выбор языка по cookie.
func TestRouter_LanguageFromCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: i18n.LangCookieName, Value: "ru"})

	rec := serve(newTestRouter(t), req)
	if !strings.Contains(rec.Body.String(), `lang="ru"`) {
		t.Error("страница не отображена на русском")
	}
}

// TestNew_Timeouts проверяет, что таймауты чтения и записи берутся из
// конфигурации и по умолчанию отключены.
func TestNew_Timeouts(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTPReadHeaderTimeout = 5 * time.Second
	h, _ := newTestHandlers(t, cfg)
	s := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), h)

	if s.httpServer.ReadTimeout != 0 || s.httpServer.WriteTimeout != 0 {
		t.Errorf("ReadTimeout=%v WriteTimeout=%v, ожидались нули",
			s.httpServer.ReadTimeout, s.httpServer.WriteTimeout)
	}
	if s.httpServer.ReadHeaderTimeout != 5*time.Second {
		t.Errorf("ReadHeaderTimeout = %v", s.httpServer.ReadHeaderTimeout)
	}
	if s.httpServer.IdleTimeout != time.Minute {
		t.Errorf("IdleTimeout = %v", s.httpServer.IdleTimeout)
	}
}

// TestServer_SlowUpload проверяет, что медленная загрузка в пределах лимита
// сохраняется целиком: тело передаётся дольше ReadHeaderTimeout.
func TestServer_SlowUpload(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTPReadHeaderTimeout = 200 * time.Millisecond
	h, store := newTestHandlers(t, cfg)
	s := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), h)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ошибка открытия порта: %v", err)
	}
	go func() { _ = s.httpServer.Serve(ln) }()
	t.Cleanup(func() { _ = s.Shutdown() })

	content := []byte("slow but steady upload")
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		fw, err := mw.CreateFormFile("file", "slow.txt")
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		for _, b := range content {
			time.Sleep(40 * time.Millisecond)
			if _, err := fw.Write([]byte{b}); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequest(http.MethodPost, "http://"+ln.Addr().String()+"/", pr)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("ошибка запроса: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/" {
		t.Fatalf("ответ %d %s, ожидался 302 /", resp.StatusCode, resp.Header.Get("Location"))
	}

	files, err := store.ListRecent(0)
	if err != nil || len(files) != 1 {
		t.Fatalf("ожидался 1 сохранённый файл, получено %v (%v)", files, err)
	}
	data, err := os.ReadFile(filepath.Join(store.UploadDir(), files[0].Name))
	if err != nil || string(data) != string(content) {
		t.Errorf("содержимое = %q (%v), ожидалось %q", data, err, content)
	}
}

// TestShutdown_NotStarted проверяет остановку незапущенного сервера.
func TestShutdown_NotStarted(t *testing.T) {
	s := &Server{
		httpServer: &http.Server{Addr: ":9123"},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg:        &config.Config{ShutdownTimeout: time.Second},
	}
	if err := s.Shutdown(); err != nil {
		t.Errorf("Shutdown незапущенного сервера: %v", err)
	}
}
