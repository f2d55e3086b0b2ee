package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/docsort/internal/config"
	"github.com/kirillkom/docsort/internal/core/domain"
)

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrUnauthorized, "op", errors.New("x")), http.StatusUnauthorized},
		{fmt.Errorf("outer: %w", domain.WrapError(domain.ErrNotFound, "op", errors.New("x"))), http.StatusNotFound},
		{domain.WrapError(domain.ErrConflict, "op", errors.New("x")), http.StatusConflict},
		{domain.WrapError(domain.ErrQueueFull, "op", errors.New("x")), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrTemporary, "op", errors.New("x")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestMissingUserHeaderReturns401(t *testing.T) {
	fx := newRouterFixture()
	handler := fx.handler(config.Config{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if len(fx.users.ensured) != 0 {
		t.Fatalf("expected no user registration")
	}
}

func TestIdentityRegistersUser(t *testing.T) {
	fx := newRouterFixture()
	handler := fx.handler(config.Config{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(userIDHeader, "  alice ")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(fx.users.ensured) != 1 || fx.users.ensured[0] != "alice" {
		t.Fatalf("unexpected ensured users %v", fx.users.ensured)
	}
}

func TestForeignFileIsNotFound(t *testing.T) {
	fx := newRouterFixture(&domain.File{ID: "f1", UserID: "bob"})
	handler := fx.handler(config.Config{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/files/f1", nil)
	req.Header.Set(userIDHeader, "alice")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestDeleteNonEmptyFolderReturns409(t *testing.T) {
	fx := newRouterFixture()
	fx.folders.deleteErr = domain.WrapError(domain.ErrConflict, "delete folder", errors.New("folder has files"))
	handler := fx.handler(config.Config{}, Options{})

	req := httptest.NewRequest(http.MethodDelete, "/api/folders/d1", nil)
	req.Header.Set(userIDHeader, "alice")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	fx := newRouterFixture()
	fx.files.err = errors.New("pq: password authentication failed")
	handler := fx.handler(config.Config{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set(userIDHeader, "alice")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	var body errorResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "internal server error" {
		t.Fatalf("unexpected error body %q", body.Error)
	}
}

func TestValidationFailureReturns400(t *testing.T) {
	handler := newRouterFixture().handler(config.Config{}, Options{})

	payload, _ := json.Marshal(map[string]any{"processingStatus": "archived"})
	req := httptest.NewRequest(http.MethodPut, "/api/files/f1", bytes.NewReader(payload))
	req.Header.Set(userIDHeader, "alice")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newRouterFixture().handler(config.Config{}, Options{})

	req := httptest.NewRequest(http.MethodPatch, "/api/folders/d1", nil)
	req.Header.Set(userIDHeader, "alice")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
