// Package middleware contains HTTP middleware for the download pack server.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler
// and are composed with Stack.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/packs/internal/auth"
	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/handler"
	"github.com/DukeRupert/packs/internal/session"
)

// SessionStore resolves session tokens to members.
type SessionStore interface {
	GetBySessionToken(ctx context.Context, token string) (*domain.User, error)
}

// AuthMiddleware loads the member behind the session cookie and guards
// member and admin routes.
type AuthMiddleware struct {
	sessions SessionStore
	admins   map[string]struct{}
	logger   *slog.Logger
	isSecure bool // Secure flag on cookies
}

// NewAuthMiddleware creates a new AuthMiddleware. adminEmails lists the
// members allowed into the admin routes.
func NewAuthMiddleware(sessions SessionStore, adminEmails []string, logger *slog.Logger, isSecure bool) *AuthMiddleware {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			admins[e] = struct{}{}
		}
	}
	return &AuthMiddleware{
		sessions: sessions,
		admins:   admins,
		logger:   logger,
		isSecure: isSecure,
	}
}

// WithUser loads the user from the session cookie when there is one and
// always calls next. Invalid sessions clear the cookie.
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(session.CookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.sessions.GetBySessionToken(r.Context(), cookie.Value)
		if err != nil {
			if domain.ErrorCode(err) == domain.EINTERNAL {
				m.logger.Error("failed to load session", "error", err)
			}
			clearSessionCookie(w, m.isSecure)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), user)))
	})
}

// RequireUser rejects requests without a user. Use it after WithUser.
// API requests get 401; browsers are sent to the login page.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUserFromRequest(r) == nil {
			if isAPIRequest(r) {
				handler.UnauthorizedResponse(w, r, m.logger)
				return
			}

			returnTo := r.URL.Path
			if r.URL.RawQuery != "" {
				returnTo += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, "/login?return_to="+returnTo, http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAdmin allows only members whose email is on the admin list.
// Use it after RequireUser.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.GetUserFromRequest(r)
		if user == nil {
			m.logger.Error("RequireAdmin called without user in context")
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		if !m.IsAdmin(user) {
			m.logger.Warn("admin route refused", "user_id", user.ID, "path", r.URL.Path)
			handler.ForbiddenResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IsAdmin reports whether user is on the admin list.
func (m *AuthMiddleware) IsAdmin(user *domain.User) bool {
	if user == nil {
		return false
	}
	_, ok := m.admins[strings.ToLower(user.Email)]
	return ok
}

// SetSessionCookie sets the session cookie on the response.
func SetSessionCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     session.CookiePath,
		MaxAge:   session.CookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie tells the browser to delete the session cookie.
func clearSessionCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     session.CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// isAPIRequest determines if the request expects a JSON response.
func isAPIRequest(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return false
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// Stack composes middleware so the first one listed is the outermost.
//
//	stack := Stack(logging, authMw.WithUser, authMw.RequireUser)
//	mux.Handle("GET /account", stack(accountHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

var (
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).WithUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireUser
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireAdmin
)
