package http

import (
	"encoding/json"
	"net"
	"net/http"

	"convq/internal/adapter/http/ratelimit"
	"convq/internal/infrastructure/logger"
)

const (
	CookieName     = "auth_token"
	CookieMaxAge   = 7 * 24 * 60 * 60
	CookiePath     = "/"
	CookieSameSite = http.SameSiteStrictMode
)

type AuthService interface {
	ValidatePassword(password string) bool
	GenerateToken() string
	ValidateToken(token string) error
}

func AuthMiddleware(authSvc AuthService, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		if err := authSvc.ValidateToken(cookie.Value); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		next(w, r)
	}
}

func LoginHandler(authSvc AuthService, limiter *ratelimit.LoginRateLimiter, behindProxy bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := clientAddr(r, behindProxy)

		allowed, wait := limiter.Check(clientID)
		if !allowed {
			logger.Warn.Printf("login rate limited for %s (retry in %s)", clientID, wait)
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		var req struct {
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if !authSvc.ValidatePassword(req.Password) {
			logger.Warn.Printf("failed login from %s", clientID)
			writeError(w, http.StatusUnauthorized, "wrong password")
			return
		}

		limiter.Reset(clientID)

		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    authSvc.GenerateToken(),
			MaxAge:   CookieMaxAge,
			Path:     CookiePath,
			Secure:   true,
			HttpOnly: true,
			SameSite: CookieSameSite,
		})

		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    "",
			MaxAge:   -1,
			Path:     CookiePath,
			Secure:   true,
			HttpOnly: true,
			SameSite: CookieSameSite,
		})

		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// clientAddr identifies the caller for rate limiting. Behind a proxy the
// remote address is the proxy itself, so X-Forwarded-For wins there.
func clientAddr(r *http.Request, behindProxy bool) string {
	if behindProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			return fwd
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
