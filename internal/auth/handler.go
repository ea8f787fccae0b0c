package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/safevault/safevault/internal/platform/httpx"
	"github.com/safevault/safevault/internal/sanitize"
	"github.com/safevault/safevault/internal/shared"
	"github.com/safevault/safevault/internal/view"
)

const (
	invalidLoginMessage = "Invalid login attempt."
	registrationFailed  = "Registration failed. Please try again."
)

// Handler wires HTTP endpoints for registration and authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/register", h.showRegister)
	r.Post("/register", h.handleRegister)
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/session", h.currentSession)
}

type registerForm struct {
	Username string `validate:"required,min=3,max=64"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=72"`
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
	Remember bool
}

type registerPageData struct {
	Form   registerForm
	Errors map[string]string
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	h.renderRegister(w, r, registerPageData{Form: registerForm{}}, http.StatusOK)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := registerForm{
		Username: sanitize.Normalize(r.PostFormValue("username")),
		Email:    sanitize.Normalize(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}

	// Unsafe input is rejected before any business logic runs.
	if !sanitize.IsInputSafe(form.Username) || !sanitize.IsInputSafe(form.Email) || !sanitize.IsInputSafe(form.Password) {
		httpx.RespondError(w, shared.ErrUnsafeInput)
		return
	}

	form.Username = sanitize.SanitizeInput(form.Username)
	form.Email = sanitize.SanitizeInput(form.Email)

	errors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errors[fieldErr.Field()] = fieldErr.Error()
		}
	}

	if len(errors) == 0 {
		_, err := h.service.Register(r.Context(), Registration{
			Username: form.Username,
			Email:    form.Email,
			Password: form.Password,
		})
		if err == nil {
			h.redirectWithFlash(w, r, "/", "success", "Account created. Please log in.")
			return
		}
		switch err {
		case shared.ErrDuplicateUsername:
			errors["Username"] = shared.ErrDuplicateUsername.Error()
		case shared.ErrDuplicateEmail:
			errors["Email"] = shared.ErrDuplicateEmail.Error()
		default:
			h.logger.Error("create user", slog.Any("error", err))
			errors["general"] = registrationFailed
		}
	}

	errors["general"] = registrationFailed
	form.Password = ""
	h.renderRegister(w, r, registerPageData{Form: form, Errors: errors}, http.StatusBadRequest)
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, loginPageData{Form: loginForm{}}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := loginForm{
		Email:    sanitize.Normalize(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		Remember: r.PostFormValue("remember") == "on" || r.PostFormValue("remember") == "true",
	}

	// Unsafe input, validation failure, unknown account and wrong password
	// all collapse into the same rejection so no path leaks whether the
	// account exists.
	if !sanitize.IsInputSafe(form.Email) || !sanitize.IsInputSafe(form.Password) {
		h.rejectLogin(w, r, form)
		return
	}
	form.Email = sanitize.SanitizeInput(form.Email)

	if err := h.validator.Struct(form); err != nil {
		h.rejectLogin(w, r, form)
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		h.rejectLogin(w, r, form)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10), form.Remember)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back"})

	// The pre-login CSRF token dies with the anonymous session.
	if _, err := h.csrfManager.Rotate(r.Context(), sess); err != nil {
		h.logger.Warn("rotate csrf token", slog.Any("error", err))
	}

	ttl := h.sessionManager.TTL()
	if form.Remember {
		ttl = h.sessionManager.RememberTTL()
	}
	expiresAt := time.Now().Add(ttl)
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// currentSession reports the authenticated principal for the request, if
// any.
func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no authenticated session")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user_id":    sess.User(),
		"remembered": sess.Remembered(),
	})
}

func (h *Handler) rejectLogin(w http.ResponseWriter, r *http.Request, form loginForm) {
	form.Password = ""
	h.renderLogin(w, r, loginPageData{
		Form:   form,
		Errors: map[string]string{"general": invalidLoginMessage},
	}, http.StatusBadRequest)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, data loginPageData, status int) {
	h.render(w, r, "pages/login.html", "Log in", data, status)
}

func (h *Handler) renderRegister(w http.ResponseWriter, r *http.Request, data registerPageData, status int) {
	h.render(w, r, "pages/register.html", "Register", data, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// ShowLoginForTest exposes the GET login handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST login handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleRegisterForTest exposes the POST register handler for tests.
func (h *Handler) HandleRegisterForTest(w http.ResponseWriter, r *http.Request) {
	h.handleRegister(w, r)
}
