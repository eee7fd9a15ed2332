// Пакет middleware — HTTP middleware для UI DarkVault.
// auth.go — загрузка сессии из cookie и защита маршрутов администратора.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/auth"
)

// contextKey — тип для ключей контекста UI.
type contextKey string

const (
	// ContextKeyUISession — данные UI-сессии в контексте запроса.
	ContextKeyUISession contextKey = "ui_session"
)

// LoginPath — страница входа, куда перенаправляются неавторизованные запросы.
const LoginPath = "/login"

// Sessions — загрузка сессии и проверка прав администратора.
type Sessions struct {
	sessionManager *auth.SessionManager
	logger         *slog.Logger
}

// NewSessions создаёт middleware сессий.
func NewSessions(sessionManager *auth.SessionManager, logger *slog.Logger) *Sessions {
	return &Sessions{
		sessionManager: sessionManager,
		logger:         logger.With(slog.String("component", "ui_session_middleware")),
	}
}

// Load извлекает сессию из cookie и помещает её в контекст.
// Отсутствующая, поддельная или истёкшая сессия заменяется пустой;
// недействительный cookie удаляется.
func (s *Sessions) Load() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := s.sessionManager.GetSessionFromRequest(r)
			if err != nil {
				s.logger.Debug("Недействительная UI-сессия",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				s.sessionManager.ClearSessionCookie(w)
				session = nil
			}
			if session == nil {
				session = &auth.SessionData{}
			}

			ctx := context.WithValue(r.Context(), ContextKeyUISession, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin пропускает запрос только в сессии администратора.
// Иначе — уведомление "Admin login required." и redirect на /login
// без вызова обработчика. Применяется после Load.
func (s *Sessions) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if auth.IsAdmin(session) {
				next.ServeHTTP(w, r)
				return
			}

			s.logger.Info("Доступ к маршруту администратора без входа",
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)

			if session == nil {
				session = &auth.SessionData{}
			}
			session.AddFlash(auth.FlashError, "flash.admin_required")
			if err := s.sessionManager.SetSessionCookie(w, session); err != nil {
				s.logger.Error("Ошибка записи session cookie",
					slog.String("error", err.Error()),
				)
			}
			http.Redirect(w, r, LoginPath, http.StatusFound)
		})
	}
}

// SessionFromContext извлекает SessionData из контекста запроса.
// Возвращает nil если сессия не найдена (не прошёл через Load).
func SessionFromContext(ctx context.Context) *auth.SessionData {
	session, ok := ctx.Value(ContextKeyUISession).(*auth.SessionData)
	if !ok {
		return nil
	}
	return session
}
