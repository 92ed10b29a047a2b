package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/internal/notice"
	"github.com/angelmondragon/storefront/pkg/logger"
)

const (
	SessionHeader = "X-Session-Id"
	SessionCookie = "sf_session"
)

// Session resolves the shopper session from the X-Session-Id header or the
// sf_session cookie, minting a new one when neither holds a valid id. The id
// is echoed back on both so browser and API clients can keep it.
func Session(logg *logger.Logger, ttl time.Duration, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID, minted := resolveSession(r)

			w.Header().Set(SessionHeader, sessionID)
			if minted || cookieValue(r) != sessionID {
				cookie := &http.Cookie{
					Name:     SessionCookie,
					Value:    sessionID,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				}
				if ttl > 0 {
					cookie.MaxAge = int(ttl.Seconds())
				}
				http.SetCookie(w, cookie)
			}

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveSession(r *http.Request) (string, bool) {
	for _, candidate := range []string{r.Header.Get(SessionHeader), cookieValue(r)} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if parsed, err := uuid.Parse(candidate); err == nil {
			return parsed.String(), false
		}
	}
	return uuid.NewString(), true
}

func cookieValue(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Notices gives each request a collector for the confirmations its handlers
// emit; the response writers drain it into the envelope.
func Notices() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := notice.WithNotifier(r.Context(), notice.NewCollector())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
