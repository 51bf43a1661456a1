package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Verifier resolves a bearer token to a Principal.
type Verifier interface {
	Verify(token string) (Principal, error)
}

// Authenticate validates the bearer token on every request not matched by
// skipper and stores the resulting Principal on the request context.
func Authenticate(v Verifier, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" && AcceptsQueryToken(c.Path()) {
				if tok := c.QueryParam(QueryTokenParam); tok != "" {
					authHeader = "Bearer " + tok
				}
			}
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			p, err := v.Verify(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
			c.Set("user_id", p.UserID.String())
			return next(c)
		}
	}
}

// MustPrincipal returns the caller or a 401 when the request was not
// authenticated.
func MustPrincipal(c echo.Context) (Principal, error) {
	p, ok := PrincipalFromContext(c.Request().Context())
	if !ok {
		return Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	return p, nil
}
