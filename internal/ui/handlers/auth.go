// auth.go — вход и выход администратора.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/auth"
	"github.com/hasnain-dark-net/Darkvault-pro/internal/ui/pages"
)

// AuthHandler — обработчики входа и выхода.
type AuthHandler struct {
	base
	checker *auth.PasswordChecker
}

// NewAuthHandler создаёт AuthHandler.
func NewAuthHandler(
	checker *auth.PasswordChecker,
	sessionManager *auth.SessionManager,
	renderer *pages.Renderer,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		base: base{
			sessionManager: sessionManager,
			renderer:       renderer,
			logger:         logger.With(slog.String("component", "ui.auth")),
		},
		checker: checker,
	}
}

// HandleLoginPage обрабатывает GET /login.
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, pages.PageLogin, &pages.Page{TitleKey: "login.title"})
}

// HandleLogin обрабатывает POST /login — проверка пароля.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !h.checker.CheckPassword(r.PostFormValue("password")) {
		h.logger.Warn("Неверный пароль администратора", slog.String("remote_ip", remoteIP(r)))
		h.redirectWithFlash(w, r, "/login", auth.FlashError, "flash.wrong_password")
		return
	}

	session := h.session(r)
	session.Login()
	h.logger.Info("Вход администратора", slog.String("remote_ip", remoteIP(r)))
	h.redirectWithFlash(w, r, "/admin", auth.FlashSuccess, "flash.logged_in")
}

// HandleLogout обрабатывает GET /logout.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session.Admin {
		h.logger.Info("Выход администратора", slog.String("remote_ip", remoteIP(r)))
	}
	session.Logout()
	h.redirectWithFlash(w, r, "/", auth.FlashInfo, "flash.logged_out")
}
