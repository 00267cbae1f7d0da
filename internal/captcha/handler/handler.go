package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"spamgate/internal/captcha/settings"
	dErrors "spamgate/pkg/domain-errors"
	"spamgate/pkg/platform/audit"
	"spamgate/pkg/platform/httputil"
	"spamgate/pkg/platform/privacy"
	"spamgate/pkg/requestcontext"
)

const maxBodyBytes = 64 << 10

// Settings is the administrative view of the option resolver.
type Settings interface {
	Entries(ctx context.Context) ([]settings.Entry, error)
	Update(ctx context.Context, key settings.Key, value string) error
	Available(ctx context.Context) bool
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Handler serves /admin/settings.
type Handler struct {
	logger   *slog.Logger
	settings Settings
	auditor  AuditPublisher
	validate *validator.Validate
}

func New(s Settings, auditor AuditPublisher, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		settings: s,
		auditor:  auditor,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterAdmin registers the settings routes. The caller guards the router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/settings", h.handleGetSettings)
	r.Put("/settings", h.handleUpdateSettings)
}

// UpdateSettingsRequest sets options by store key or short name. An empty
// value clears the stored option.
type UpdateSettingsRequest struct {
	Options map[string]string `json:"options" validate:"required,min=1,dive,keys,required,endkeys,max=4096"`
}

type settingsResponse struct {
	Available bool             `json:"available"`
	Options   []settings.Entry `json:"options"`
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	h.writeSettings(w, r)
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req UpdateSettingsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid settings request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "options must name at least one option"))
		return
	}

	keys := make(map[settings.Key]string, len(req.Options))
	for name, value := range req.Options {
		key, ok := settings.ParseKey(name)
		if !ok {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown option "+name))
			return
		}
		keys[key] = value
	}

	// Apply in display order so a failure leaves a predictable prefix applied.
	for _, key := range settings.Keys {
		value, ok := keys[key]
		if !ok {
			continue
		}
		if err := h.settings.Update(ctx, key, value); err != nil {
			h.logger.WarnContext(ctx, "failed to update captcha option",
				"request_id", requestID,
				"key", string(key),
				"error", err.Error(),
			)
			httputil.WriteError(w, err)
			return
		}
		h.emit(ctx, key, value)
	}

	h.writeSettings(w, r)
}

func (h *Handler) writeSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.settings.Entries(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read captcha options",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, settingsResponse{
		Available: h.settings.Available(ctx),
		Options:   entries,
	})
}

func (h *Handler) emit(ctx context.Context, key settings.Key, value string) {
	if h.auditor == nil {
		return
	}
	decision := "updated"
	if value == "" {
		decision = "cleared"
	}
	err := h.auditor.Emit(ctx, audit.Event{
		Subject:  string(key),
		Action:   string(audit.EventSettingsUpdated),
		Decision: decision,
		IP:       privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
		ActorID:  "admin",
	})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to emit audit event", "error", err)
	}
}
