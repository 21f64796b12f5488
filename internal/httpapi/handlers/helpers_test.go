package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"rastersalvage/internal/raster"
	"rastersalvage/internal/salvage"
	"rastersalvage/internal/storage"

	"github.com/labstack/echo/v4"
)

func TestClampInt(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		v, min, max int
		want        int
	}{
		{"within range", 5, 1, 10, 5},
		{"below min", -1, 0, 10, 0},
		{"above max", 15, 0, 10, 10},
		{"at min", 0, 0, 10, 0},
		{"at max", 10, 0, 10, 10},
		{"equal min max", 5, 5, 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := clampInt(tt.v, tt.min, tt.max)
			if got != tt.want {
				t.Fatalf("clampInt(%d, %d, %d) = %d, want %d", tt.v, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestMapRunError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"policy rejection", &salvage.PolicyRejection{FailingRow: 500, Height: 1000, Fraction: 0.5, Tolerance: 0.95}, http.StatusUnprocessableEntity},
		{"unparsable diagnostic", &salvage.ParseError{Diagnostic: "ERROR 1: boom"}, http.StatusUnprocessableEntity},
		{"missing source", fmt.Errorf("%w: fetch b/k: %w", salvage.ErrStorage, storage.ErrNotFound), http.StatusNotFound},
		{"storage failure", fmt.Errorf("%w: upload b/k: %w", salvage.ErrStorage, errors.New("503")), http.StatusBadGateway},
		{"resource", &raster.ResourceError{Op: "open", Path: "/tmp/x.tif", Err: errors.New("bad")}, http.StatusInternalServerError},
		{"unknown", errors.New("something else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := mapRunError(tt.err)
			httpErr, ok := got.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected *echo.HTTPError, got %T", got)
			}
			if httpErr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", httpErr.Code, tt.wantStatus)
			}
		})
	}
}

func TestObjectRequestNormalize(t *testing.T) {
	t.Parallel()

	req := objectRequest{Bucket: " imagery ", Key: " scenes/a.tif\t"}
	if err := req.normalize(); err != nil {
		t.Fatalf("normalize() error = %v", err)
	}
	if req.Bucket != "imagery" || req.Key != "scenes/a.tif" {
		t.Fatalf("normalize() = %+v", req)
	}

	for _, bad := range []objectRequest{{Bucket: "imagery"}, {Key: "a.tif"}, {Bucket: " ", Key: " "}} {
		if err := bad.normalize(); err == nil {
			t.Fatalf("normalize(%+v) error = nil, want error", bad)
		}
	}
}

func TestQueryInt(t *testing.T) {
	t.Parallel()

	e := echo.New()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest("GET", "/?limit=42", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		got := queryInt(c, "limit", 10)
		if got != 42 {
			t.Fatalf("got %d, want 42", got)
		}
	})

	t.Run("missing uses fallback", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest("GET", "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		got := queryInt(c, "limit", 25)
		if got != 25 {
			t.Fatalf("got %d, want 25", got)
		}
	})

	t.Run("non-numeric uses fallback", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest("GET", "/?limit=abc", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		got := queryInt(c, "limit", 10)
		if got != 10 {
			t.Fatalf("got %d, want 10", got)
		}
	})
}
