// language.go — переключение языка интерфейса.
package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/i18n"
)

// langCookieMaxAge — срок хранения выбранного языка
const langCookieMaxAge = 365 * 24 * time.Hour

// LanguageHandler — обработчик выбора языка.
type LanguageHandler struct {
	bundle *i18n.Bundle
	secure bool
}

// NewLanguageHandler создаёт LanguageHandler.
func NewLanguageHandler(bundle *i18n.Bundle, secure bool) *LanguageHandler {
	return &LanguageHandler{bundle: bundle, secure: secure}
}

// HandleSetLanguage обрабатывает GET и POST /set-language.
// Неизвестный язык заменяется языком по умолчанию. Возврат на страницу
// из Referer выполняется только в пределах того же хоста.
func (h *LanguageHandler) HandleSetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := r.FormValue("lang")
	if !h.bundle.Supported(lang) {
		lang = i18n.DefaultLang
	}

	http.SetCookie(w, &http.Cookie{
		Name:     i18n.LangCookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   int(langCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, backTarget(r), http.StatusSeeOther)
}

// backTarget возвращает путь из Referer того же хоста либо "/".
func backTarget(r *http.Request) string {
	ref := r.Referer()
	if ref == "" {
		return "/"
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host != r.Host || u.Path == "" || u.Path[0] != '/' {
		return "/"
	}
	// "//host" трактуется браузером как внешний адрес
	if len(u.Path) > 1 && (u.Path[1] == '/' || u.Path[1] == '\\') {
		return "/"
	}
	target := u.Path
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return target
}
