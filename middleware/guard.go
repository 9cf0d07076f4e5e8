package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/afromart/gate"
)

// Authenticator resolves a session cookie token. *gate.Engine implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*gate.Identity, error)
}

type identityContextKey struct{}

// IdentityFromContext returns the signed-in requester, if any.
func IdentityFromContext(ctx context.Context) (*gate.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*gate.Identity)
	return id, ok && id != nil
}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id *gate.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// LoadSession resolves the session cookie named by cookie.Name.
func LoadSession(auth Authenticator, cookie gate.CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := gate.WithClientIP(r.Context(), clientIP(r))
			ctx = gate.WithUserAgent(ctx, r.UserAgent())

			c, err := r.Cookie(cookie.Name)
			if err != nil || c.Value == "" || auth == nil {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			id, err := auth.Authenticate(ctx, c.Value)
			switch {
			case err == nil:
				ctx = WithIdentity(ctx, id)
			case errors.Is(err, gate.ErrInvalidToken), errors.Is(err, gate.ErrSessionNotFound):
				ClearSessionCookie(w, cookie)
			default:
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth redirects anonymous requesters to signInPath.
func RequireAuth(signInPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFromContext(r.Context()); !ok {
				target := signInPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetSessionCookie writes the session token.
func SetSessionCookie(w http.ResponseWriter, cfg gate.CookieConfig, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    token,
		Path:     cfg.Path,
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		Secure:   cfg.Secure,
		HttpOnly: cfg.HTTPOnly,
		SameSite: cfg.SameSite,
	})
}

// ClearSessionCookie expires the session cookie in the browser.
func ClearSessionCookie(w http.ResponseWriter, cfg gate.CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     cfg.Path,
		MaxAge:   -1,
		Secure:   cfg.Secure,
		HttpOnly: cfg.HTTPOnly,
		SameSite: cfg.SameSite,
	})
}

// clientIP expects RemoteAddr to be rewritten by a trusted proxy middleware
// such as chi's RealIP when the server sits behind one.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
