// Package service implements the login and registration flows the captcha
// gate protects. Form-level failures come back as a *forms.Errors for the
// page to render; only infrastructure failures are returned as errors.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"spamgate/internal/auth/models"
	"spamgate/internal/captcha/gate"
	captcha "spamgate/internal/captcha/models"
	id "spamgate/pkg/domain"
	dErrors "spamgate/pkg/domain-errors"
	"spamgate/pkg/platform/audit"
	"spamgate/pkg/platform/forms"
	"spamgate/pkg/platform/privacy"
	"spamgate/pkg/platform/sentinel"
	"spamgate/pkg/requestcontext"
)

const (
	CodeEmptyUsername      = "empty_username"
	CodeEmptyPassword      = "empty_password"
	CodeInvalidCredentials = "invalid_credentials"
	CodeUsernameExists     = "username_exists"
	CodeEmailExists        = "email_exists"
	CodeInvalidField       = "invalid_field"

	msgInvalidCredentials = "Unknown username or incorrect password."
)

type UserStore interface {
	Save(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// CaptchaGate is the part of the gate the account flows call.
type CaptchaGate interface {
	OnAuthenticate(ctx context.Context, creds gate.Credentials, sub gate.Submission, prior *forms.Errors) gate.AuthOutcome
	OnRegister(ctx context.Context, sub gate.Submission, errs *forms.Errors) captcha.Result
}

type SessionIssuer interface {
	Issue(userID id.UserID, username string, now time.Time) (string, time.Time, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	users      UserStore
	gate       CaptchaGate
	sessions   SessionIssuer
	auditor    AuditPublisher
	logger     *slog.Logger
	bcryptCost int
	validate   *validator.Validate
	// dummyHash keeps unknown-user logins as slow as wrong-password ones.
	dummyHash []byte
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

// WithBcryptCost overrides bcrypt.DefaultCost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func New(users UserStore, captchaGate CaptchaGate, sessions SessionIssuer, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, errors.New("users store is required")
	}
	if captchaGate == nil {
		return nil, errors.New("captcha gate is required")
	}
	if sessions == nil {
		return nil, errors.New("session issuer is required")
	}
	s := &Service{
		users:      users,
		gate:       captchaGate,
		sessions:   sessions,
		logger:     slog.Default(),
		bcryptCost: bcrypt.DefaultCost,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("spamgate-dummy-password"), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare password hashing: %w", err)
	}
	s.dummyHash = hash
	return s, nil
}

// Login checks credentials, then lets the captcha gate confirm or overturn
// the outcome. The username may also be the account's email address.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResult, *forms.Errors, error) {
	var prior *forms.Errors
	fail := func(code, msg string) {
		if prior == nil {
			prior = forms.NewErrors()
		}
		prior.Add(code, msg)
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		fail(CodeEmptyUsername, "The username field is empty.")
	}
	if req.Password == "" {
		fail(CodeEmptyPassword, "The password field is empty.")
	}

	var user *models.User
	if prior == nil {
		u, err := s.lookup(ctx, username)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
			fail(CodeInvalidCredentials, msgInvalidCredentials)
		case err != nil:
			return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
		case bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)) != nil:
			fail(CodeInvalidCredentials, msgInvalidCredentials)
		default:
			user = u
		}
	}

	out := s.gate.OnAuthenticate(ctx,
		gate.Credentials{Username: username, Password: req.Password},
		gate.Submission{Token: req.CaptchaToken},
		prior,
	)
	if out.Kind == gate.Denied {
		s.authFailed(ctx, username, "captcha_rejected")
		return nil, out.Errors, nil
	}
	if prior != nil {
		reason := CodeInvalidCredentials
		if out.Kind == gate.ErrorsAppended {
			reason = "invalid_credentials_and_captcha_rejected"
		}
		s.authFailed(ctx, username, reason)
		return nil, prior, nil
	}

	token, expiresAt, err := s.sessions.Issue(user.ID, user.Username, requestcontext.Now(ctx))
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session")
	}
	s.emit(ctx, audit.Event{
		UserID:  user.ID,
		Subject: user.Username,
		Action:  string(audit.EventSessionCreated),
	})
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID.String())

	return &models.LoginResult{User: user, SessionToken: token, ExpiresAt: expiresAt}, nil, nil
}

// Register validates the form, lets the captcha gate add its verdict, and
// creates the account only when no check failed.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, *forms.Errors, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	errs := forms.NewErrors()
	if err := s.validate.Struct(req); err != nil {
		addValidationErrors(errs, err)
	}
	if !errs.HasErrors() {
		if err := s.checkAvailable(ctx, req, errs); err != nil {
			return nil, nil, err
		}
	}

	s.gate.OnRegister(ctx, gate.Submission{Token: req.CaptchaToken}, errs)
	if errs.HasErrors() {
		return nil, errs, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	user := &models.User{
		ID:           id.NewUserID(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			errs.Add(CodeUsernameExists, "This username or email address is already registered.")
			return nil, errs, nil
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save user")
	}

	s.emit(ctx, audit.Event{
		UserID:  user.ID,
		Subject: user.Username,
		Action:  string(audit.EventUserCreated),
	})
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return user, nil, nil
}

func (s *Service) lookup(ctx context.Context, username string) (*models.User, error) {
	if strings.Contains(username, "@") {
		return s.users.FindByEmail(ctx, username)
	}
	return s.users.FindByUsername(ctx, username)
}

func (s *Service) checkAvailable(ctx context.Context, req models.RegisterRequest, errs *forms.Errors) error {
	if _, err := s.users.FindByUsername(ctx, req.Username); err == nil {
		errs.Add(CodeUsernameExists, "This username is already registered. Please choose another one.")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		errs.Add(CodeEmailExists, "This email address is already registered.")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	return nil
}

func (s *Service) authFailed(ctx context.Context, username, reason string) {
	s.logger.InfoContext(ctx, "login failed", "reason", reason)
	s.emit(ctx, audit.Event{
		Subject:  username,
		Action:   string(audit.EventAuthFailed),
		Reason:   reason,
		IP:       privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
		Severity: audit.SeverityInfo,
	})
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
	}
}

func addValidationErrors(errs *forms.Errors, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.Add(CodeInvalidField, "The form could not be validated.")
		return
	}
	for _, fe := range verrs {
		errs.Add(CodeInvalidField, fieldMessage(fe))
	}
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Please enter a %s.", field)
	case "email":
		return "The email address isn't correct."
	case "alphanum":
		return "The username may only contain letters and numbers."
	case "min":
		return fmt.Sprintf("The %s must be at least %s characters.", field, fe.Param())
	case "max":
		return fmt.Sprintf("The %s must be at most %s characters.", field, fe.Param())
	default:
		return fmt.Sprintf("The %s is invalid.", field)
	}
}
