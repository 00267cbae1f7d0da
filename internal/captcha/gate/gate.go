// Package gate wires the resolver, verifier and emitter into the host's
// render and submission flows. Every method resolves the configuration once
// and is inert while the site key or secret key is missing.
package gate

import (
	"context"
	"errors"
	"html/template"
	"log/slog"

	"spamgate/internal/captcha/emitter"
	"spamgate/internal/captcha/hooks"
	"spamgate/internal/captcha/metrics"
	"spamgate/internal/captcha/models"
	"spamgate/pkg/platform/audit"
	"spamgate/pkg/platform/device"
	"spamgate/pkg/platform/forms"
	"spamgate/pkg/platform/privacy"
	"spamgate/pkg/requestcontext"
)

// ConfigResolver produces the configuration for the current request.
type ConfigResolver interface {
	Resolve(ctx context.Context) (models.Configuration, error)
}

// TokenVerifier checks one posted token.
type TokenVerifier interface {
	Verify(ctx context.Context, cfg models.Configuration, token, remoteIP string, threshold float64) models.Result
}

// AuditPublisher records rejected submissions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Form identifies a protected form.
type Form string

const (
	FormLogin    Form = "login"
	FormRegister Form = "register"
	FormContact  Form = "contact"
)

// Action is the action name reported to the scoring service for f.
func (f Form) Action() string {
	switch f {
	case FormLogin:
		return models.ActionLogin
	case FormRegister:
		return models.ActionRegister
	case FormContact:
		return models.ActionContact
	default:
		return models.DefaultAction
	}
}

func (f Form) elementID() string {
	return "lsp-" + string(f)
}

// Submission carries what the gate reads from a posted form.
type Submission struct {
	Token string
	// RemoteIP may be empty; the verifier then uses the request's client IP.
	RemoteIP string
}

// Credentials are the login fields the gate inspects. It never checks them,
// it only skips verification when either is empty.
type Credentials struct {
	Username string
	Password string
}

// OutcomeKind tells the host how authentication was affected.
type OutcomeKind int

const (
	// Unchanged: the host proceeds with its own result.
	Unchanged OutcomeKind = iota
	// ErrorsAppended: authentication had already failed and the gate added
	// its message to the existing errors.
	ErrorsAppended
	// Denied: authentication had succeeded and the gate replaced it with a
	// failure.
	Denied
)

func (k OutcomeKind) String() string {
	switch k {
	case ErrorsAppended:
		return "errors_appended"
	case Denied:
		return "denied"
	default:
		return "unchanged"
	}
}

// AuthOutcome is the gate's verdict on one login attempt.
type AuthOutcome struct {
	Kind   OutcomeKind
	Result models.Result
	// Errors holds the gate's error when Kind is Denied, and the caller's
	// collection when Kind is ErrorsAppended.
	Errors *forms.Errors
}

// Markup is what a protected form embeds.
type Markup struct {
	Input       template.HTML
	Attribution template.HTML
}

type Gate struct {
	resolver ConfigResolver
	verifier TokenVerifier
	emitter  *emitter.Emitter
	hooks    *hooks.Hooks
	auditor  AuditPublisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Gate)

func WithEmitter(e *emitter.Emitter) Option {
	return func(g *Gate) {
		g.emitter = e
	}
}

// WithHooks installs h on the gate's emitter and applies its RemoteIP hook to
// the address recorded for rejections. The resolver and verifier take hooks
// on their own; give them the same value with settings.WithHooks and
// verifier.WithHooks so every component sees the same transforms.
func WithHooks(h *hooks.Hooks) Option {
	return func(g *Gate) {
		g.hooks = h
	}
}

func WithAuditor(a AuditPublisher) Option {
	return func(g *Gate) {
		g.auditor = a
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func New(resolver ConfigResolver, verifier TokenVerifier, opts ...Option) (*Gate, error) {
	if resolver == nil {
		return nil, errors.New("config resolver is required")
	}
	if verifier == nil {
		return nil, errors.New("token verifier is required")
	}
	g := &Gate{
		resolver: resolver,
		verifier: verifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.emitter == nil {
		g.emitter = emitter.New(
			emitter.WithHooks(g.hooks),
			emitter.WithLogger(g.logger),
			emitter.WithMetrics(g.metrics),
		)
	}
	return g, nil
}

// Emitter exposes the emitter for head and script rendering.
func (g *Gate) Emitter() *emitter.Emitter {
	return g.emitter
}

// BeginRender opens a page for one render. A resolver failure yields an inert
// page: forms render without protection rather than failing.
func (g *Gate) BeginRender(ctx context.Context) *emitter.Page {
	cfg, err := g.resolver.Resolve(ctx)
	if err != nil {
		g.logger.WarnContext(ctx, "captcha settings unavailable, rendering without protection", "error", err)
		cfg = models.Configuration{}
	}
	return g.emitter.NewPage(cfg)
}

// OnRenderForm marks form f as protected on page p and queues the script.
// Login and registration carry the attribution paragraph when the badge is
// hidden; contact forms always carry the attribution text.
func (g *Gate) OnRenderForm(p *emitter.Page, f Form) Markup {
	cfg := p.Configuration()
	if !cfg.Available() {
		return Markup{}
	}
	m := Markup{Input: g.emitter.RenderInput(p, f.elementID(), f.Action())}
	g.emitter.EnsureScriptLoaded(p)

	if f == FormContact {
		m.Attribution = template.HTML(g.emitter.AttributionText(cfg)) //nolint:gosec // sanitized by the emitter
	} else {
		m.Attribution = g.emitter.Attribution(p)
	}
	return m
}

// OnAuthenticate runs after the host checked credentials. prior is the
// host's error collection when authentication already failed, nil when it
// succeeded. Attempts with an empty username or password are not login
// attempts and pass through.
func (g *Gate) OnAuthenticate(ctx context.Context, creds Credentials, sub Submission, prior *forms.Errors) AuthOutcome {
	if creds.Username == "" || creds.Password == "" {
		return AuthOutcome{Kind: Unchanged, Result: models.Ok(), Errors: prior}
	}
	res := g.check(ctx, FormLogin, sub)
	if res.OK() {
		return AuthOutcome{Kind: Unchanged, Result: res, Errors: prior}
	}
	if prior != nil {
		prior.Add(models.ErrorCode, res.Reason)
		return AuthOutcome{Kind: ErrorsAppended, Result: res, Errors: prior}
	}
	errs := forms.NewErrors()
	errs.Add(models.ErrorCode, res.Reason)
	return AuthOutcome{Kind: Denied, Result: res, Errors: errs}
}

// OnRegister verifies a registration submission and appends the failure to errs.
func (g *Gate) OnRegister(ctx context.Context, sub Submission, errs *forms.Errors) models.Result {
	return g.appendOnFailure(ctx, FormRegister, sub, errs)
}

// OnContact verifies a contact submission and appends the failure to errs.
func (g *Gate) OnContact(ctx context.Context, sub Submission, errs *forms.Errors) models.Result {
	return g.appendOnFailure(ctx, FormContact, sub, errs)
}

func (g *Gate) appendOnFailure(ctx context.Context, f Form, sub Submission, errs *forms.Errors) models.Result {
	res := g.check(ctx, f, sub)
	if res.Failed() && errs != nil {
		errs.Add(models.ErrorCode, res.Reason)
	}
	return res
}

// check resolves the configuration and verifies sub. If the configuration
// cannot be read while a token was posted, the submission fails as spam.
func (g *Gate) check(ctx context.Context, f Form, sub Submission) models.Result {
	action := f.Action()
	cfg, err := g.resolver.Resolve(ctx)
	if err != nil {
		if sub.Token == "" {
			g.logger.WarnContext(ctx, "captcha settings unavailable, skipping verification", "action", action, "error", err)
			g.metrics.IncrementInert(action)
			return models.Ok()
		}
		g.logger.ErrorContext(ctx, "captcha settings unavailable while a token was posted", "action", action, "error", err)
		res := models.Failed(errors.Join(models.ErrSpamScore, err))
		g.record(ctx, action, sub, res)
		return res
	}
	if !cfg.Available() {
		g.metrics.IncrementInert(action)
		return models.Ok()
	}

	res := g.verifier.Verify(ctx, cfg, sub.Token, sub.RemoteIP, cfg.Threshold)
	g.record(ctx, action, sub, res)
	return res
}

func (g *Gate) record(ctx context.Context, action string, sub Submission, res models.Result) {
	g.metrics.IncrementVerification(res.Kind(), action)
	if res.OK() {
		return
	}

	// Record the address the verifier sends for scoring.
	ip := sub.RemoteIP
	if ip == "" {
		ip = g.hooks.ApplyRemoteIP(ctx, requestcontext.ClientIP(ctx))
	}
	g.logger.InfoContext(ctx, "captcha rejected submission",
		"action", action,
		"kind", res.Kind(),
		"error", res.Err,
	)
	if g.auditor == nil {
		return
	}
	err := g.auditor.Emit(ctx, audit.Event{
		Action:   string(audit.EventCaptchaRejected),
		Subject:  action,
		Decision: "denied",
		Reason:   res.Kind(),
		IP:       privacy.AnonymizeIP(ip),
		Browser:  device.Browser(requestcontext.UserAgent(ctx)),
		Severity: audit.SeverityWarning,
	})
	if err != nil {
		g.logger.WarnContext(ctx, "failed to audit captcha rejection", "error", err)
	}
}
