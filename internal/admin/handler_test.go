package admin_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/safevault/safevault/internal/admin"
	"github.com/safevault/safevault/internal/rbac"
	"github.com/safevault/safevault/internal/shared"
	"github.com/safevault/safevault/internal/view"
	_ "github.com/safevault/safevault/testing"
)

type stubRoles struct {
	roles map[int64][]string
}

func (s *stubRoles) UserRoles(ctx context.Context, userID int64) ([]string, error) {
	return s.roles[userID], nil
}

func newAdminRouter(t *testing.T, roles *stubRoles) chi.Router {
	t.Helper()
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := rbac.Gate{Roles: roles, Logger: logger}
	handler := admin.NewHandler(logger, templates, shared.NewCSRFManager("csrfsecret"), gate)

	r := chi.NewRouter()
	r.Route("/admin", handler.MountRoutes)
	handler.MountDeniedRoute(r)
	return r
}

func adminRequest(router chi.Router, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if userID != "" {
		sess := &shared.Session{}
		sess.SetUser(userID, false)
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestAdminResourceAnonymousRedirectsToLogin(t *testing.T) {
	router := newAdminRouter(t, &stubRoles{})
	res := adminRequest(router, "")
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if loc := res.Header().Get("Location"); loc != "/auth/login" {
		t.Fatalf("expected login redirect, got %q", loc)
	}
}

func TestAdminResourceNonAdminRedirectsToDenied(t *testing.T) {
	router := newAdminRouter(t, &stubRoles{roles: map[int64][]string{2: {"Auditor"}}})
	res := adminRequest(router, "2")
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if loc := res.Header().Get("Location"); loc != "/denied" {
		t.Fatalf("expected denied redirect, got %q", loc)
	}
}

func TestAdminResourceServedToAdmin(t *testing.T) {
	router := newAdminRouter(t, &stubRoles{roles: map[int64][]string{1: {"Admin"}}})
	res := adminRequest(router, "1")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Administration") {
		t.Fatalf("expected admin page body, got %q", res.Body.String())
	}
}

func TestAccessDeniedPageRenders(t *testing.T) {
	router := newAdminRouter(t, &stubRoles{})
	req := httptest.NewRequest(http.MethodGet, "/denied", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Access denied") {
		t.Fatalf("expected access denied body")
	}
}
