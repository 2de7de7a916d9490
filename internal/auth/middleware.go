package auth

import (
	"net/http"

	authlib "example.com/fittrack/internal/platform/auth"
)

// publicPaths are served without a bearer token.
var publicPaths = map[string]struct{}{
	"/healthz":          {},
	"/metrics":          {},
	"/v1/auth/register": {},
	"/v1/auth/login":    {},
}

// Middleware enforces bearer-token authentication on incoming requests.
type Middleware struct {
	inner authlib.Middleware
}

// NewMiddleware constructs Middleware with validation config. revoked may be nil.
func NewMiddleware(cfg authlib.Config, revoked authlib.RevocationChecker) Middleware {
	skipper := func(r *http.Request) bool {
		if r.Method == http.MethodOptions {
			return true
		}
		_, ok := publicPaths[r.URL.Path]
		return ok
	}
	return Middleware{inner: authlib.NewMiddleware(cfg, skipper, revoked)}
}

// Wrap attaches authentication handling to an http.Handler.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return m.inner.Wrap(next)
}
