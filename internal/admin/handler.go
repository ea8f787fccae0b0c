// Package admin serves the role-gated administrative surface.
package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safevault/safevault/internal/rbac"
	"github.com/safevault/safevault/internal/shared"
	"github.com/safevault/safevault/internal/view"
)

// Handler renders the admin dashboard and the access-denied page.
type Handler struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
	gate      rbac.Gate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, gate rbac.Gate) *Handler {
	return &Handler{logger: logger, templates: templates, csrf: csrf, gate: gate}
}

// MountRoutes registers the protected resource behind the gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(rbac.AdminRole))
		r.Get("/", h.showDashboard)
	})
}

// MountDeniedRoute registers the access-denied page, reachable without
// any role.
func (h *Handler) MountDeniedRoute(r chi.Router) {
	r.Get("/denied", h.showAccessDenied)
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/admin.html", "Administration", http.StatusOK)
}

func (h *Handler) showAccessDenied(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/access_denied.html", "Access denied", http.StatusOK)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
