package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/spcopeland72-crypto/canny-carrot/internal/server/auth"
)

const claimsContextKey = "claims"

// authMiddleware verifies the bearer token and binds the token's tenant to
// the tenant in the request path. A token for one tenant can never read or
// write another tenant's records.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
		}

		claims, err := auth.ParseToken(token, []byte(s.config.SecretKey))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
		}

		if claims.TenantID != c.Param("tenant") {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "token is not valid for this tenant"})
		}

		c.Set(claimsContextKey, claims)
		return next(c)
	}
}
