package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestManager(t *testing.T) *SessionManager {
	t.Helper()
	sm, err := NewSessionManager("test-secret", time.Hour, false)
	if err != nil {
		t.Fatalf("Ошибка создания SessionManager: %v", err)
	}
	return sm
}

// TestSessionEncodeDecodeRoundTrip проверяет подпись и чтение SessionData.
func TestSessionEncodeDecodeRoundTrip(t *testing.T) {
	sm := newTestManager(t)

	original := &SessionData{Admin: true}
	original.AddFlash(FlashSuccess, "flash.uploaded", "20240101000000_a.txt")

	token, err := sm.Encode(original)
	if err != nil {
		t.Fatalf("Ошибка подписи: %v", err)
	}

	decoded, err := sm.Decode(token)
	if err != nil {
		t.Fatalf("Ошибка чтения: %v", err)
	}

	if !decoded.Admin {
		t.Error("Admin: want true")
	}
	if len(decoded.Flashes) != 1 {
		t.Fatalf("Flashes: want 1, got %d", len(decoded.Flashes))
	}
	f := decoded.Flashes[0]
	if f.Category != FlashSuccess || f.Key != "flash.uploaded" || len(f.Args) != 1 || f.Args[0] != "20240101000000_a.txt" {
		t.Errorf("Flash: %+v", f)
	}
	if decoded.ExpiresAt.IsZero() {
		t.Error("ExpiresAt не заполнен")
	}
}

// TestSessionDecodeTampered проверяет отказ при изменённой подписи или содержимом.
func TestSessionDecodeTampered(t *testing.T) {
	sm := newTestManager(t)

	token, err := sm.Encode(&SessionData{Admin: false})
	if err != nil {
		t.Fatal(err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("неожиданный формат JWT: %s", token)
	}

	// Подменяем payload на admin=true, подпись остаётся старой
	forged := &SessionData{Admin: true}
	forgedToken, _ := sm.Encode(forged)
	forgedParts := strings.Split(forgedToken, ".")
	tampered := parts[0] + "." + forgedParts[1] + "." + parts[2]

	if _, err := sm.Decode(tampered); err == nil {
		t.Error("Ожидалась ошибка для изменённого payload")
	}

	if _, err := sm.Decode("garbage"); err == nil {
		t.Error("Ожидалась ошибка для мусорного токена")
	}
}

// TestSessionDecodeWrongKey проверяет отказ для токена с другим секретом.
func TestSessionDecodeWrongKey(t *testing.T) {
	sm1 := newTestManager(t)
	sm2, _ := NewSessionManager("other-secret", time.Hour, false)

	token, err := sm1.Encode(&SessionData{Admin: true})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sm2.Decode(token); err == nil {
		t.Error("Ожидалась ошибка для токена с другим секретом")
	}
}

// TestSessionDecodeUnsigned проверяет отказ для токена alg=none.
func TestSessionDecodeUnsigned(t *testing.T) {
	sm := newTestManager(t)

	claims := sessionClaims{
		Admin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sm.Decode(token); err == nil {
		t.Error("Ожидалась ошибка для неподписанного токена")
	}
}

// TestSessionExpired проверяет отказ для истёкшей сессии.
func TestSessionExpired(t *testing.T) {
	sm := newTestManager(t)

	token, err := sm.Encode(&SessionData{Admin: true})
	if err != nil {
		t.Fatal(err)
	}

	sm.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := sm.Decode(token); err == nil {
		t.Error("Ожидалась ошибка для истёкшей сессии")
	}
}

// TestSessionExpiryPreserved проверяет, что повторная подпись не продлевает сессию.
func TestSessionExpiryPreserved(t *testing.T) {
	sm := newTestManager(t)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	sm.now = func() time.Time { return start }

	data := &SessionData{}
	data.Login()
	token, _ := sm.Encode(data)
	decoded, err := sm.Decode(token)
	if err != nil {
		t.Fatal(err)
	}

	sm.now = func() time.Time { return start.Add(30 * time.Minute) }
	decoded.AddFlash(FlashInfo, "flash.logged_out")
	token2, _ := sm.Encode(decoded)
	again, err := sm.Decode(token2)
	if err != nil {
		t.Fatal(err)
	}

	if !again.ExpiresAt.Equal(start.Add(time.Hour)) {
		t.Errorf("ExpiresAt: want %v, got %v", start.Add(time.Hour), again.ExpiresAt)
	}
}

// TestSessionCookie проверяет установку и чтение cookie.
func TestSessionCookie(t *testing.T) {
	sm := newTestManager(t)

	w := httptest.NewRecorder()
	if err := sm.SetSessionCookie(w, &SessionData{Admin: true}); err != nil {
		t.Fatalf("Ошибка установки cookie: %v", err)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("Ожидался 1 cookie, получено %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != SessionCookieName || !c.HttpOnly || c.Path != "/" || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("Некорректные атрибуты cookie: %+v", c)
	}
	if c.MaxAge != 3600 {
		t.Errorf("MaxAge: want 3600, got %d", c.MaxAge)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(c)
	session, err := sm.GetSessionFromRequest(r)
	if err != nil {
		t.Fatalf("Ошибка чтения сессии: %v", err)
	}
	if !IsAdmin(session) {
		t.Error("Ожидалась сессия администратора")
	}
}

// TestSessionCookieMissing проверяет отсутствие cookie.
func TestSessionCookieMissing(t *testing.T) {
	sm := newTestManager(t)

	session, err := sm.GetSessionFromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil || session != nil {
		t.Errorf("want nil, nil; got %v, %v", session, err)
	}
	if IsAdmin(session) {
		t.Error("nil-сессия не даёт прав администратора")
	}
}

// TestSetSessionCookieEmpty проверяет удаление cookie для пустой сессии.
func TestSetSessionCookieEmpty(t *testing.T) {
	sm := newTestManager(t)

	w := httptest.NewRecorder()
	if err := sm.SetSessionCookie(w, &SessionData{}); err != nil {
		t.Fatal(err)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("Ожидалось удаление cookie: %+v", cookies)
	}
}

// TestTakeFlashes проверяет одноразовость уведомлений.
func TestTakeFlashes(t *testing.T) {
	s := &SessionData{}
	s.AddFlash(FlashError, "flash.wrong_password")
	s.AddFlash(FlashInfo, "flash.logged_out")

	got := s.TakeFlashes()
	if len(got) != 2 || got[0].Key != "flash.wrong_password" {
		t.Errorf("TakeFlashes: %+v", got)
	}
	if len(s.TakeFlashes()) != 0 {
		t.Error("Повторный TakeFlashes должен вернуть пустой список")
	}
}

// TestNewSessionManagerValidation проверяет отказ без секрета.
func TestNewSessionManagerValidation(t *testing.T) {
	if _, err := NewSessionManager("", time.Hour, false); err == nil {
		t.Error("Ожидалась ошибка для пустого секрета")
	}
	if _, err := NewSessionManager("s", 0, false); err == nil {
		t.Error("Ожидалась ошибка для нулевого TTL")
	}
}

// TestCheckPassword проверяет сравнение паролей.
func TestCheckPassword(t *testing.T) {
	p := NewPasswordChecker("hasnain")

	if !p.CheckPassword("hasnain") {
		t.Error("Верный пароль отклонён")
	}
	for _, wrong := range []string{"", "hasnai", "hasnain ", "HASNAIN"} {
		if p.CheckPassword(wrong) {
			t.Errorf("Неверный пароль %q принят", wrong)
		}
	}
}
