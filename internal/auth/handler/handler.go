package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authModel "spamgate/internal/auth/models"
	"spamgate/internal/auth/session"
	"spamgate/internal/captcha/gate"
	captcha "spamgate/internal/captcha/models"
	"spamgate/internal/transport/http/pages"
	"spamgate/pkg/platform/forms"
	authmw "spamgate/pkg/platform/middleware/auth"
	"spamgate/pkg/requestcontext"
)

const maxFormBytes = 64 << 10

// Service defines the interface for account operations.
type Service interface {
	Login(ctx context.Context, req authModel.LoginRequest) (*authModel.LoginResult, *forms.Errors, error)
	Register(ctx context.Context, req authModel.RegisterRequest) (*authModel.User, *forms.Errors, error)
}

// Handler serves the login and registration pages.
type Handler struct {
	logger       *slog.Logger
	auth         Service
	gate         pages.FormGate
	pages        *pages.Renderer
	secureCookie bool
}

type Option func(*Handler)

// WithSecureCookie marks the session cookie Secure, for deployments behind TLS.
func WithSecureCookie(secure bool) Option {
	return func(h *Handler) {
		h.secureCookie = secure
	}
}

func New(auth Service, g pages.FormGate, renderer *pages.Renderer, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger: logger,
		auth:   auth,
		gate:   g,
		pages:  renderer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the account routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handleHome)
	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)
	r.Get("/register", h.handleRegisterPage)
	r.Post("/register", h.handleRegister)
	r.Post("/logout", h.handleLogout)
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, pages.Home, pages.View{
		Title: "Home",
		User:  authmw.GetUsername(r.Context()),
	})
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	view := h.formView(r, gate.FormLogin, "Log in")
	if r.URL.Query().Get("registered") != "" {
		view.Notice = "Registration complete. You can now log in."
	}
	h.pages.Render(w, r, http.StatusOK, pages.Login, view)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.parseForm(w, r) {
		return
	}

	req := authModel.LoginRequest{
		Username:     r.PostFormValue("log"),
		Password:     r.PostFormValue("pwd"),
		CaptchaToken: r.PostFormValue(captcha.TokenFieldName),
	}
	res, errs, err := h.auth.Login(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "login failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		h.pages.RenderError(w, r, err)
		return
	}
	if errs.HasErrors() {
		view := h.formView(r, gate.FormLogin, "Log in")
		view.Errors = errs.Messages()
		view.Values["log"] = req.Username
		h.pages.Render(w, r, loginFailureStatus(errs), pages.Login, view)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    res.SessionToken,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, pages.Register, h.formView(r, gate.FormRegister, "Register"))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.parseForm(w, r) {
		return
	}

	req := authModel.RegisterRequest{
		Username:     r.PostFormValue("user_login"),
		Email:        r.PostFormValue("user_email"),
		Password:     r.PostFormValue("user_pass"),
		CaptchaToken: r.PostFormValue(captcha.TokenFieldName),
	}
	_, errs, err := h.auth.Register(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		h.pages.RenderError(w, r, err)
		return
	}
	if errs.HasErrors() {
		view := h.formView(r, gate.FormRegister, "Register")
		view.Errors = errs.Messages()
		view.Values["user_login"] = req.Username
		view.Values["user_email"] = req.Email
		h.pages.Render(w, r, formFailureStatus(errs), pages.Register, view)
		return
	}

	http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) formView(r *http.Request, f gate.Form, title string) pages.View {
	view := pages.FormView(r.Context(), h.gate, f, title)
	view.User = authmw.GetUsername(r.Context())
	return view
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		ctx := r.Context()
		h.logger.WarnContext(ctx, "invalid form body",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return false
	}
	return true
}

// formFailureStatus is 422 when the captcha rejected the submission and 400
// for ordinary validation errors.
func formFailureStatus(errs *forms.Errors) int {
	if errs.Has(captcha.ErrorCode) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

func loginFailureStatus(errs *forms.Errors) int {
	if errs.Has(captcha.ErrorCode) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusUnauthorized
}
