// Package auth guards the operator API with a single shared token.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

var ErrInvalidToken = errors.New("invalid API token")

type Claims struct {
	Subject string
}

const claimsContextKey = "auth_claims"

const operatorSubject = "operator"

type Authenticator struct {
	adminToken []byte
}

func NewAuthenticator(adminToken string) *Authenticator {
	return &Authenticator{adminToken: []byte(strings.TrimSpace(adminToken))}
}

func (a *Authenticator) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := ExtractToken(c.Request())
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing API token")
		}

		claims, err := a.Authenticate(c.Request().Context(), token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		c.Set(claimsContextKey, claims)

		return next(c)
	}
}

// Authenticate accepts only the configured admin token. An empty admin token
// rejects everything.
func (a *Authenticator) Authenticate(_ context.Context, token string) (Claims, error) {
	if len(a.adminToken) == 0 || token == "" {
		return Claims{}, ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(token), a.adminToken) != 1 {
		return Claims{}, ErrInvalidToken
	}
	return Claims{Subject: operatorSubject}, nil
}

func GetClaims(c echo.Context) (Claims, bool) {
	raw := c.Get(claimsContextKey)
	if raw == nil {
		return Claims{}, false
	}
	claims, ok := raw.(Claims)
	return claims, ok
}

// ExtractToken reads a bearer token, falling back to X-API-Token.
func ExtractToken(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Token"))
}
