package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/caselight/caselight/internal/logging"
	"github.com/caselight/caselight/internal/vectorstore"
)

// defaultOwner is used when auth is disabled.
const defaultOwner = "default"

// newAuthMiddleware verifies the bearer token and puts the token subject
// into the request context as the owner id. Document isolation fails
// closed downstream, so a request that slips past here without an owner
// still cannot touch the index.
func newAuthMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return next(withOwner(c, defaultOwner))
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			owner, err := subjectFromToken(token, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			return next(withOwner(c, owner))
		}
	}
}

// subjectFromToken validates an HMAC-signed JWT and returns its subject.
func subjectFromToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

// withOwner stamps the owner onto the request context for the store's
// isolation layer and for log correlation.
func withOwner(c echo.Context, owner string) echo.Context {
	ctx := vectorstore.ContextWithOwner(c.Request().Context(), owner)
	ctx = logging.ContextWithOwner(ctx, owner)
	c.SetRequest(c.Request().WithContext(ctx))
	return c
}
