// Пакет auth — сессии и аутентификация администратора DarkVault.
// Сессия — подписанный HS256 JWT в cookie: флаг администратора
// и одноразовые уведомления (flash).
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Имя cookie сессии.
const SessionCookieName = "darkvault_session"

// FlashCategory — категория уведомления, определяет оформление.
type FlashCategory string

const (
	FlashSuccess FlashCategory = "success"
	FlashError   FlashCategory = "error"
	FlashInfo    FlashCategory = "info"
)

// Flash — одноразовое уведомление. Текст хранится ключом i18n
// и переводится при отображении.
type Flash struct {
	Category FlashCategory `json:"category"`
	Key      string        `json:"key"`
	Args     []string      `json:"args,omitempty"`
}

// SessionData — данные сессии.
type SessionData struct {
	// Admin — администратор вошёл по паролю
	Admin bool
	// Flashes — уведомления, ожидающие отображения
	Flashes []Flash
	// ExpiresAt — срок действия; нулевое значение — новая сессия
	ExpiresAt time.Time
}

// AddFlash добавляет уведомление.
func (s *SessionData) AddFlash(category FlashCategory, key string, args ...string) {
	s.Flashes = append(s.Flashes, Flash{Category: category, Key: key, Args: args})
}

// TakeFlashes возвращает накопленные уведомления и очищает их.
func (s *SessionData) TakeFlashes() []Flash {
	flashes := s.Flashes
	s.Flashes = nil
	return flashes
}

// Login отмечает сессию как администраторскую и начинает новый срок действия.
func (s *SessionData) Login() {
	s.Admin = true
	s.ExpiresAt = time.Time{}
}

// Logout снимает флаг администратора.
func (s *SessionData) Logout() {
	s.Admin = false
}

// empty сообщает, что сессию не нужно хранить.
func (s *SessionData) empty() bool {
	return !s.Admin && len(s.Flashes) == 0
}

// IsAdmin — проверка прав администратора. nil-сессия прав не даёт.
func IsAdmin(s *SessionData) bool {
	return s != nil && s.Admin
}

// sessionClaims — содержимое JWT сессии.
type sessionClaims struct {
	Admin   bool    `json:"admin"`
	Flashes []Flash `json:"flashes,omitempty"`
	jwt.RegisteredClaims
}

// SessionManager — менеджер сессий.
// Подписывает SessionData в JWT и проверяет подпись при чтении.
type SessionManager struct {
	// key — секрет HMAC
	key []byte
	// ttl — время жизни сессии
	ttl time.Duration
	// secure — использовать Secure flag для cookie (true для HTTPS).
	secure bool
	now    func() time.Time
}

// NewSessionManager создаёт менеджер сессий.
// secret — секрет подписи, ttl — время жизни сессии.
func NewSessionManager(secret string, ttl time.Duration, secure bool) (*SessionManager, error) {
	if secret == "" {
		return nil, errors.New("секрет подписи сессии не задан")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("некорректное время жизни сессии: %v", ttl)
	}
	return &SessionManager{
		key:    []byte(secret),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}, nil
}

// Encode подписывает SessionData и возвращает JWT.
func (sm *SessionManager) Encode(data *SessionData) (string, error) {
	now := sm.now()
	expiresAt := data.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(sm.ttl)
	}

	claims := sessionClaims{
		Admin:   data.Admin,
		Flashes: data.Flashes,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.key)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи сессии: %w", err)
	}
	return token, nil
}

// Decode проверяет подпись и срок действия JWT и возвращает SessionData.
func (sm *SessionManager) Decode(token string) (*SessionData, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return sm.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(sm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("недействительная сессия: %w", err)
	}

	return &SessionData{
		Admin:     claims.Admin,
		Flashes:   claims.Flashes,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SetSessionCookie записывает сессию в cookie ответа.
// Пустая сессия удаляет cookie.
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, data *SessionData) error {
	if data == nil || data.empty() {
		sm.ClearSessionCookie(w)
		return nil
	}

	token, err := sm.Encode(data)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sm.ttl.Seconds()),
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// GetSessionFromRequest извлекает и проверяет SessionData из cookie запроса.
// Возвращает nil, nil если cookie отсутствует.
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) (*SessionData, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, nil
		}
		return nil, err
	}

	return sm.Decode(cookie.Value)
}

// ClearSessionCookie удаляет session cookie из ответа.
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
