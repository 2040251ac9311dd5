// Package middleware содержит HTTP middleware консоли Purnata.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmeshcher/purnata-console/internal/access"
	"github.com/mmeshcher/purnata-console/internal/model"
)

type contextKey string

const sessionKey contextKey = "session"

const (
	authCookieName = "purnata_session"
	authCookieTTL  = 7 * 24 * time.Hour
)

// AuthMiddleware выполняет проверку сессии сотрудника по подписанному cookie.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет cookie сессии и добавляет access.Session в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		session, ok := a.parseCookie(cookie.Value)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// SetAuthCookie устанавливает cookie сессии для сотрудника.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, session access.Session) {
	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    a.sign(session),
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

func (a *AuthMiddleware) sign(session access.Session) string {
	payload := strconv.FormatInt(session.UserID, 10) + "." + string(session.Role)
	return payload + "." + a.signature(payload)
}

func (a *AuthMiddleware) signature(payload string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parseCookie(cookieValue string) (access.Session, bool) {
	parts := strings.Split(cookieValue, ".")
	if len(parts) != 3 {
		return access.Session{}, false
	}

	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(a.signature(payload))) {
		return access.Session{}, false
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return access.Session{}, false
	}

	return access.Session{UserID: id, Role: model.UserRole(parts[1])}, true
}

// WithSession возвращает контекст с сессией сотрудника.
func WithSession(ctx context.Context, session access.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext извлекает сессию сотрудника из контекста запроса.
func SessionFromContext(ctx context.Context) (access.Session, bool) {
	s, ok := ctx.Value(sessionKey).(access.Session)
	return s, ok
}

// Require пропускает запрос, если роль сессии имеет хотя бы одну из возможностей.
func Require(caps ...access.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if !session.Can(caps...) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
