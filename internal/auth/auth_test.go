package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestExtractToken_BearerHeader(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		authz string
		want  string
	}{
		{"standard bearer", "Bearer my-token-123", "my-token-123"},
		{"lowercase bearer", "bearer my-token", "my-token"},
		{"bearer with extra spaces", "Bearer   spaced  ", "spaced"},
		{"empty bearer", "Bearer ", ""},
		{"non-bearer auth", "Basic dXNlcjpwYXNz", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, _ := http.NewRequest("GET", "/", nil)
			r.Header.Set("Authorization", tt.authz)
			got := ExtractToken(r)
			if got != tt.want {
				t.Fatalf("ExtractToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractToken_XAPITokenHeader(t *testing.T) {
	t.Parallel()
	r, _ := http.NewRequest("GET", "/", nil)
	r.Header.Set("X-API-Token", "  tok-456  ")
	got := ExtractToken(r)
	if got != "tok-456" {
		t.Fatalf("ExtractToken() = %q, want %q", got, "tok-456")
	}
}

func TestExtractToken_BearerTakesPrecedence(t *testing.T) {
	t.Parallel()
	r, _ := http.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer from-bearer")
	r.Header.Set("X-API-Token", "from-header")
	got := ExtractToken(r)
	if got != "from-bearer" {
		t.Fatalf("ExtractToken() = %q, want %q", got, "from-bearer")
	}
}

func TestExtractToken_NoHeaders(t *testing.T) {
	t.Parallel()
	r, _ := http.NewRequest("GET", "/", nil)
	got := ExtractToken(r)
	if got != "" {
		t.Fatalf("ExtractToken() = %q, want empty", got)
	}
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		adminToken string
		token      string
		wantErr    bool
	}{
		{"matching token", "s3cret", "s3cret", false},
		{"wrong token", "s3cret", "guess", true},
		{"prefix of token", "s3cret", "s3cre", true},
		{"empty token", "s3cret", "", true},
		{"no admin token configured", "", "", true},
		{"no admin token configured with token", "  ", "anything", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := NewAuthenticator(tt.adminToken)
			claims, err := a.Authenticate(context.Background(), tt.token)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidToken) {
					t.Fatalf("Authenticate() error = %v, want ErrInvalidToken", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if claims.Subject != operatorSubject {
				t.Fatalf("Subject = %q, want %q", claims.Subject, operatorSubject)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	a := NewAuthenticator("s3cret")
	e := echo.New()
	e.GET("/x", func(c echo.Context) error {
		claims, ok := GetClaims(c)
		if !ok {
			t.Errorf("GetClaims() ok = false")
		}
		return c.String(http.StatusOK, claims.Subject)
	}, a.Middleware)

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"bad token", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "Authorization", "Bearer s3cret", http.StatusOK},
		{"api token header", "X-API-Token", "s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if tt.header != "" {
			req.Header.Set(tt.header, tt.value)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Fatalf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
		if tt.want == http.StatusOK && rec.Body.String() != operatorSubject {
			t.Fatalf("%s: body = %q, want %q", tt.name, rec.Body.String(), operatorSubject)
		}
	}
}
