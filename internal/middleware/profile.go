package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const profileCookieMaxAge = 365 * 24 * time.Hour

// Profile выдаёт браузеру постоянный id профиля в cookie и кладёт его в контекст.
// Все вкладки одного браузера приходят с одной cookie и делят один скоуп хранилища,
// как localStorage одного origin.
func Profile(cookieName string, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(cookieName); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(profileCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithProfileID(r.Context(), id)))
		})
	}
}

// MaskID оставляет в логах только первый сегмент uuid профиля; короткие значения скрываются целиком.
func MaskID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	if head, _, ok := strings.Cut(s, "-"); ok && len(head) >= 4 {
		return head + "-***"
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "***"
}
