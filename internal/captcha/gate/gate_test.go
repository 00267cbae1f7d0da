package gate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"spamgate/internal/captcha/gate/mocks"
	"spamgate/internal/captcha/hooks"
	"spamgate/internal/captcha/models"
	"spamgate/internal/captcha/settings"
	"spamgate/pkg/platform/audit"
	"spamgate/pkg/platform/forms"
	"spamgate/pkg/requestcontext"
)

//go:generate mockgen -source=gate.go -destination=mocks/mocks.go -package=mocks ConfigResolver,TokenVerifier,AuditPublisher
type GateSuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	resolver *mocks.MockConfigResolver
	verifier *mocks.MockTokenVerifier
	auditor  *mocks.MockAuditPublisher
	gate     *Gate
	cfg      models.Configuration
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.resolver = mocks.NewMockConfigResolver(s.ctrl)
	s.verifier = mocks.NewMockTokenVerifier(s.ctrl)
	s.auditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.ctx = requestcontext.WithClientMetadata(context.Background(), "203.0.113.77",
		"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
	s.cfg = models.Configuration{SiteKey: "site", SecretKey: "secret", Threshold: 0.6}

	g, err := New(s.resolver, s.verifier,
		WithAuditor(s.auditor),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.gate = g
}

func (s *GateSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *GateSuite) expectSpam() {
	s.resolver.EXPECT().Resolve(gomock.Any()).Return(s.cfg, nil)
	s.verifier.EXPECT().Verify(gomock.Any(), s.cfg, "tok", "", 0.6).
		Return(models.Failed(models.ErrSpamScore))
}

func (s *GateSuite) TestNewRequiresCollaborators() {
	_, err := New(nil, s.verifier)
	s.Error(err)
	_, err = New(s.resolver, nil)
	s.Error(err)
}

func (s *GateSuite) TestOnAuthenticate() {
	creds := Credentials{Username: "alice", Password: "pw"}
	sub := Submission{Token: "tok"}

	s.Run("inert when not configured", func() {
		s.resolver.EXPECT().Resolve(gomock.Any()).Return(models.Configuration{SiteKey: "site"}, nil)
		s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		out := s.gate.OnAuthenticate(s.ctx, creds, sub, nil)
		s.Equal(Unchanged, out.Kind)
		s.True(out.Result.OK())
		s.Nil(out.Errors)
	})

	s.Run("empty credentials are not a login attempt", func() {
		out := s.gate.OnAuthenticate(s.ctx, Credentials{Username: "alice"}, sub, nil)
		s.Equal(Unchanged, out.Kind)
		out = s.gate.OnAuthenticate(s.ctx, Credentials{Password: "pw"}, sub, nil)
		s.Equal(Unchanged, out.Kind)
	})

	s.Run("passing score leaves the result unchanged", func() {
		s.resolver.EXPECT().Resolve(gomock.Any()).Return(s.cfg, nil)
		s.verifier.EXPECT().Verify(gomock.Any(), s.cfg, "tok", "", 0.6).Return(models.Ok())

		prior := forms.NewErrors()
		prior.Add("incorrect_password", "Wrong password.")
		out := s.gate.OnAuthenticate(s.ctx, creds, sub, prior)
		s.Equal(Unchanged, out.Kind)
		s.Equal([]string{"Wrong password."}, out.Errors.Messages())
	})

	s.Run("failure appends to existing errors", func() {
		s.expectSpam()
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		prior := forms.NewErrors()
		prior.Add("incorrect_password", "Wrong password.")
		out := s.gate.OnAuthenticate(s.ctx, creds, sub, prior)

		s.Equal(ErrorsAppended, out.Kind)
		s.Same(prior, out.Errors)
		s.Equal([]string{"Wrong password.", models.SpamMessage}, prior.Messages())
	})

	s.Run("failure without prior errors denies", func() {
		s.expectSpam()
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		out := s.gate.OnAuthenticate(s.ctx, creds, sub, nil)

		s.Equal(Denied, out.Kind)
		s.True(out.Result.Failed())
		s.True(out.Errors.Has(models.ErrorCode))
		s.Equal([]string{models.SpamMessage}, out.Errors.Messages())
	})
}

func (s *GateSuite) TestOnRegisterAppendsAndAudits() {
	s.expectSpam()
	var got audit.Event
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
		got = e
		return nil
	})

	errs := forms.NewErrors()
	res := s.gate.OnRegister(s.ctx, Submission{Token: "tok"}, errs)

	s.True(res.Failed())
	s.True(errs.Has(models.ErrorCode))
	s.Equal(string(audit.EventCaptchaRejected), got.Action)
	s.Equal(models.ActionRegister, got.Subject)
	s.Equal("spam", got.Reason)
	s.Equal("203.0.113.0", got.IP)
	s.Equal("Firefox", got.Browser)
	s.Equal(audit.SeverityWarning, got.Severity)
}

func (s *GateSuite) TestOnContactPassing() {
	s.resolver.EXPECT().Resolve(gomock.Any()).Return(s.cfg, nil)
	s.verifier.EXPECT().Verify(gomock.Any(), s.cfg, "tok", "198.51.100.1", 0.6).Return(models.Ok())

	errs := forms.NewErrors()
	res := s.gate.OnContact(s.ctx, Submission{Token: "tok", RemoteIP: "198.51.100.1"}, errs)

	s.True(res.OK())
	s.False(errs.HasErrors())
}

func (s *GateSuite) TestAuditFailureDoesNotChangeResult() {
	s.expectSpam()
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("buffer full"))

	errs := forms.NewErrors()
	res := s.gate.OnRegister(s.ctx, Submission{Token: "tok"}, errs)
	s.True(res.Failed())
	s.True(errs.HasErrors())
}

func (s *GateSuite) TestResolverFailure() {
	storeErr := errors.New("redis: connection refused")

	s.Run("no token posted stays inert", func() {
		s.resolver.EXPECT().Resolve(gomock.Any()).Return(models.Configuration{}, storeErr)

		errs := forms.NewErrors()
		res := s.gate.OnRegister(s.ctx, Submission{}, errs)
		s.True(res.OK())
		s.False(errs.HasErrors())
	})

	s.Run("posted token fails as spam", func() {
		s.resolver.EXPECT().Resolve(gomock.Any()).Return(models.Configuration{}, storeErr)
		s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		errs := forms.NewErrors()
		res := s.gate.OnRegister(s.ctx, Submission{Token: "tok"}, errs)
		s.True(res.Failed())
		s.ErrorIs(res.Err, models.ErrSpamScore)
		s.Equal(models.SpamMessage, res.Reason)
		s.True(errs.HasErrors())
	})
}

func (s *GateSuite) TestFixedKeysStayProtectedWhileStoreIsDown() {
	resolver, err := settings.New(downStore{},
		settings.WithFixedSource(settings.MapSource{
			settings.KeySiteKey:   "site",
			settings.KeySecretKey: "secret",
		}),
		settings.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	g, err := New(resolver, s.verifier,
		WithAuditor(s.auditor),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)

	s.Run("forms still carry the token input", func() {
		m := g.OnRenderForm(g.BeginRender(s.ctx), FormLogin)
		s.NotEmpty(m.Input)
	})

	s.Run("tokenless submission is verified and rejected", func() {
		s.verifier.EXPECT().
			Verify(gomock.Any(), gomock.Any(), "", "", models.DefaultThreshold).
			DoAndReturn(func(_ context.Context, cfg models.Configuration, _, _ string, _ float64) models.Result {
				s.True(cfg.Available())
				return models.Failed(models.ErrSpamScore)
			})
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		errs := forms.NewErrors()
		res := g.OnRegister(s.ctx, Submission{}, errs)
		s.True(res.Failed())
		s.True(errs.Has(models.ErrorCode))
	})
}

func (s *GateSuite) TestAuditRecordsHookedRemoteIP() {
	g, err := New(s.resolver, s.verifier,
		WithAuditor(s.auditor),
		WithHooks(&hooks.Hooks{
			RemoteIP: func(context.Context, string) string { return "198.51.100.7" },
		}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.expectSpam()
	var got audit.Event
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
		got = e
		return nil
	})

	g.OnRegister(s.ctx, Submission{Token: "tok"}, forms.NewErrors())
	s.Equal("198.51.100.0", got.IP)
}

func (s *GateSuite) TestWithHooksReachesEmitter() {
	g, err := New(s.resolver, s.verifier,
		WithHooks(&hooks.Hooks{Message: func(string) string { return "Hooked notice." }}),
	)
	s.Require().NoError(err)
	s.resolver.EXPECT().Resolve(gomock.Any()).Return(s.cfg, nil)

	m := g.OnRenderForm(g.BeginRender(s.ctx), FormContact)
	s.Equal("Hooked notice.", string(m.Attribution))
}

func (s *GateSuite) TestRenderFlow() {
	s.Run("configured page protects every form with one script", func() {
		s.resolver.EXPECT().Resolve(gomock.Any()).Return(s.cfg, nil)

		page := s.gate.BeginRender(s.ctx)
		login := s.gate.OnRenderForm(page, FormLogin)
		register := s.gate.OnRenderForm(page, FormRegister)

		s.Contains(string(login.Input), `data-action="login"`)
		s.Contains(string(login.Input), `id="lsp-login"`)
		s.Contains(string(register.Input), `data-action="register"`)
		s.Contains(string(login.Attribution), "lsp-description")
		s.Equal(1, strings.Count(string(page.Scripts()), "api.js?render="))
		s.Contains(string(s.gate.Emitter().HeadHTML(page)), "grecaptcha-badge")
	})

	s.Run("contact form carries attribution text even with the badge shown", func() {
		cfg := s.cfg
		cfg.DisplayBadge = true
		s.resolver.EXPECT().Resolve(gomock.Any()).Return(cfg, nil)

		page := s.gate.BeginRender(s.ctx)
		contact := s.gate.OnRenderForm(page, FormContact)
		login := s.gate.OnRenderForm(page, FormLogin)

		s.Contains(string(contact.Attribution), models.PrivacyPolicyURL)
		s.NotContains(string(contact.Attribution), "<p")
		s.Empty(login.Attribution)
	})

	s.Run("resolver failure renders unprotected", func() {
		s.resolver.EXPECT().Resolve(gomock.Any()).Return(models.Configuration{}, errors.New("down"))

		page := s.gate.BeginRender(s.ctx)
		m := s.gate.OnRenderForm(page, FormLogin)
		s.Empty(m.Input)
		s.Empty(page.Scripts())
	})
}

func (s *GateSuite) TestFormActions() {
	s.Equal("login", FormLogin.Action())
	s.Equal("register", FormRegister.Action())
	s.Equal("contact", FormContact.Action())
	s.Equal(models.DefaultAction, Form("other").Action())
	s.Equal("denied", Denied.String())
}

type downStore struct{}

func (downStore) Get(context.Context, string) (string, error) {
	return "", errors.New("dial tcp: connection refused")
}
func (downStore) Set(context.Context, string, string) error { return errors.New("dial tcp: connection refused") }
func (downStore) Delete(context.Context, string) error      { return errors.New("dial tcp: connection refused") }
