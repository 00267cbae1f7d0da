package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"spamgate/internal/captcha/gate"
	captcha "spamgate/internal/captcha/models"
	contactModel "spamgate/internal/contact/models"
	"spamgate/internal/transport/http/pages"
	dErrors "spamgate/pkg/domain-errors"
	"spamgate/pkg/platform/forms"
	"spamgate/pkg/platform/httputil"
	authmw "spamgate/pkg/platform/middleware/auth"
	"spamgate/pkg/requestcontext"
)

const (
	maxFormBytes     = 64 << 10
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service defines the interface for contact operations.
type Service interface {
	Submit(ctx context.Context, req contactModel.SubmitRequest) (*contactModel.Message, *forms.Errors, error)
	Recent(ctx context.Context, limit int) ([]*contactModel.Message, error)
}

// Handler serves the contact form and the admin message listing.
type Handler struct {
	logger  *slog.Logger
	contact Service
	gate    pages.FormGate
	pages   *pages.Renderer
}

func New(contact Service, g pages.FormGate, renderer *pages.Renderer, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		contact: contact,
		gate:    g,
		pages:   renderer,
	}
}

// Register registers the public contact routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/contact", h.handleContactPage)
	r.Post("/contact", h.handleSubmit)
}

// RegisterAdmin registers the message listing. The caller guards the router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/messages", h.handleListMessages)
}

func (h *Handler) handleContactPage(w http.ResponseWriter, r *http.Request) {
	view := h.formView(r)
	if r.URL.Query().Get("sent") != "" {
		view.Notice = "Thank you, your message has been sent."
	}
	h.pages.Render(w, r, http.StatusOK, pages.Contact, view)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.logger.WarnContext(ctx, "invalid contact form body",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	req := contactModel.SubmitRequest{
		Name:         r.PostFormValue("name"),
		Email:        r.PostFormValue("email"),
		Subject:      r.PostFormValue("subject"),
		Body:         r.PostFormValue("message"),
		CaptchaToken: r.PostFormValue(captcha.TokenFieldName),
	}
	_, errs, err := h.contact.Submit(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "contact submission failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		h.pages.RenderError(w, r, err)
		return
	}
	if errs.HasErrors() {
		status := http.StatusBadRequest
		if errs.Has(captcha.ErrorCode) {
			status = http.StatusUnprocessableEntity
		}
		view := h.formView(r)
		view.Errors = errs.Messages()
		view.Values["name"] = req.Name
		view.Values["email"] = req.Email
		view.Values["subject"] = req.Subject
		view.Values["message"] = req.Body
		h.pages.Render(w, r, status, pages.Contact, view)
		return
	}

	http.Redirect(w, r, "/contact?sent=1", http.StatusSeeOther)
}

type messageResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	IP        string    `json:"ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(n, maxListLimit)
	}

	msgs, err := h.contact.Recent(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list contact messages",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{
			ID:        m.ID.String(),
			Name:      m.Name,
			Email:     m.Email,
			Subject:   m.Subject,
			Body:      m.Body,
			IP:        m.IP,
			CreatedAt: m.CreatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (h *Handler) formView(r *http.Request) pages.View {
	view := pages.FormView(r.Context(), h.gate, gate.FormContact, "Contact")
	view.User = authmw.GetUsername(r.Context())
	return view
}
