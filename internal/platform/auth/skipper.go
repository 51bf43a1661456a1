package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication.
var publicPaths = map[string]bool{
	"/api/health":        true,
	"/health/db":         true,
	"/api/auth/register": true,
	"/api/auth/login":    true,
}

// AuthSkipper matches on the routed path (c.Path), so it must not be
// installed with e.Pre.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path()) || c.Request().Method == "OPTIONS"
}

// IsPublicPath reports whether the given path skips authentication.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}

// QueryTokenParam carries the bearer token for routes that browsers open
// without custom headers.
const QueryTokenParam = "access_token"

// queryTokenPaths accept the token from QueryTokenParam when the
// Authorization header is absent.
var queryTokenPaths = map[string]bool{
	"/api/notifications/stream": true,
}

// AcceptsQueryToken reports whether the routed path may authenticate via
// the query string.
func AcceptsQueryToken(path string) bool {
	return queryTokenPaths[path]
}
