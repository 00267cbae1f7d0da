// Package service accepts contact form submissions that pass validation and
// the captcha gate.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"spamgate/internal/captcha/gate"
	captcha "spamgate/internal/captcha/models"
	"spamgate/internal/contact/models"
	id "spamgate/pkg/domain"
	dErrors "spamgate/pkg/domain-errors"
	"spamgate/pkg/platform/audit"
	"spamgate/pkg/platform/forms"
	"spamgate/pkg/platform/privacy"
	"spamgate/pkg/requestcontext"
)

const CodeInvalidField = "invalid_field"

type Store interface {
	Save(ctx context.Context, msg *models.Message) error
	ListRecent(ctx context.Context, limit int) ([]*models.Message, error)
}

type CaptchaGate interface {
	OnContact(ctx context.Context, sub gate.Submission, errs *forms.Errors) captcha.Result
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store    Store
	gate     CaptchaGate
	auditor  AuditPublisher
	logger   *slog.Logger
	validate *validator.Validate
}

type Option func(*Service)

func WithAuditor(a AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, captchaGate CaptchaGate, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("contact store is required")
	}
	if captchaGate == nil {
		return nil, errors.New("captcha gate is required")
	}
	s := &Service{
		store:    store,
		gate:     captchaGate,
		logger:   slog.Default(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit validates req, runs the captcha gate and stores the message when
// nothing failed.
func (s *Service) Submit(ctx context.Context, req models.SubmitRequest) (*models.Message, *forms.Errors, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Body = strings.TrimSpace(req.Body)

	errs := forms.NewErrors()
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs.Add(CodeInvalidField, fieldMessage(fe))
			}
		} else {
			errs.Add(CodeInvalidField, "The form could not be validated.")
		}
	}

	s.gate.OnContact(ctx, gate.Submission{Token: req.CaptchaToken}, errs)
	if errs.HasErrors() {
		return nil, errs, nil
	}

	msg := &models.Message{
		ID:        id.NewMessageID(),
		Name:      req.Name,
		Email:     req.Email,
		Subject:   req.Subject,
		Body:      req.Body,
		CreatedAt: requestcontext.Now(ctx),
		IP:        privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
	}
	if err := s.store.Save(ctx, msg); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save contact message")
	}

	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			Subject: msg.ID.String(),
			Action:  string(audit.EventContactReceived),
			IP:      msg.IP,
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to emit audit event", "error", err)
		}
	}
	s.logger.InfoContext(ctx, "contact message received", "message_id", msg.ID.String())
	return msg, nil, nil
}

// Recent lists the latest messages for administrators.
func (s *Service) Recent(ctx context.Context, limit int) ([]*models.Message, error) {
	msgs, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list contact messages")
	}
	return msgs, nil
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Please fill in the %s field.", field)
	case "email":
		return "The email address isn't correct."
	case "max":
		return fmt.Sprintf("The %s field is too long.", field)
	default:
		return fmt.Sprintf("The %s field is invalid.", field)
	}
}
