// Пакет handlers — HTTP-обработчики UI DarkVault.
// common.go — общие операции: сессия, уведомления, рендеринг, адрес клиента.
package handlers

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/auth"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/i18n"
	uimiddleware "github.com/hasnain-dark-net/Darkvault-pro/internal/ui/middleware"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/pages"
)

// base — зависимости, общие для обработчиков страниц.
type base struct {
	sessionManager *auth.SessionManager
	renderer       *pages.Renderer
	logger         *slog.Logger
}

// session возвращает сессию запроса (пустую, если Load не применялся).
func (b *base) session(r *http.Request) *auth.SessionData {
	if s := uimiddleware.SessionFromContext(r.Context()); s != nil {
		return s
	}
	return &auth.SessionData{}
}

// saveSession записывает сессию в cookie ответа.
func (b *base) saveSession(w http.ResponseWriter, session *auth.SessionData) {
	if err := b.sessionManager.SetSessionCookie(w, session); err != nil {
		b.logger.Error("Ошибка записи session cookie", slog.String("error", err.Error()))
	}
}

// redirectWithFlash добавляет уведомление и перенаправляет (302).
func (b *base) redirectWithFlash(w http.ResponseWriter, r *http.Request, target string,
	category auth.FlashCategory, key string, args ...string,
) {
	session := b.session(r)
	session.AddFlash(category, key, args...)
	b.saveSession(w, session)
	http.Redirect(w, r, target, http.StatusFound)
}

// render забирает уведомления из сессии и отображает страницу.
// Сессия сохраняется только после успешного выполнения шаблона,
// иначе уведомления остаются в cookie до следующей страницы.
func (b *base) render(w http.ResponseWriter, r *http.Request, name string, page *pages.Page) {
	session := b.session(r)
	page.Admin = auth.IsAdmin(session)
	page.Flashes = b.renderer.Flashes(i18n.LangFromContext(r.Context()), session.Flashes)

	body, err := b.renderer.Execute(r, name, page)
	if err != nil {
		b.logger.Error("Ошибка рендеринга страницы",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	session.TakeFlashes()
	b.saveSession(w, session)
	if err := pages.Write(w, body); err != nil {
		b.logger.Debug("Ошибка отправки страницы", slog.String("error", err.Error()))
	}
}

// remoteIP возвращает адрес клиента из соединения.
// Заголовки X-Forwarded-For не учитываются.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// baseURL определяет внешний адрес сервиса по запросу.
// Учитывает X-Forwarded-Proto и X-Forwarded-Host обратного прокси.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}

	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + host
}
