package pages

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"spamgate/internal/captcha/gate"
	"spamgate/internal/captcha/models"
	"spamgate/internal/captcha/settings"
	"spamgate/internal/captcha/settings/store"
	"spamgate/internal/captcha/verifier"
	dErrors "spamgate/pkg/domain-errors"
)

type PagesSuite struct {
	suite.Suite
	renderer *Renderer
}

func TestPagesSuite(t *testing.T) {
	suite.Run(t, new(PagesSuite))
}

func (s *PagesSuite) SetupTest() {
	r, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)
	s.renderer = r
}

func newGate(t *testing.T, values map[string]string) *gate.Gate {
	t.Helper()
	resolver, err := settings.New(store.NewInMemoryStoreWith(values))
	require.NoError(t, err)
	g, err := gate.New(resolver, verifier.New())
	require.NoError(t, err)
	return g
}

func (s *PagesSuite) render(status int, name string, view View) *goquery.Document {
	rec := httptest.NewRecorder()
	s.renderer.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), status, name, view)
	s.Equal(status, rec.Code)
	s.Equal("text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	s.Require().NoError(err)
	return doc
}

func (s *PagesSuite) TestProtectedLoginForm() {
	g := newGate(s.T(), map[string]string{
		string(settings.KeySiteKey):   "site-key",
		string(settings.KeySecretKey): "secret-key",
	})
	view := FormView(context.Background(), g, gate.FormLogin, "Log in")
	doc := s.render(http.StatusOK, Login, view)

	input := doc.Find("#loginform input." + models.TokenInputClass)
	s.Equal(1, input.Length())
	s.Equal(models.ActionLogin, input.AttrOr("data-action", ""))
	s.Contains(doc.Find("head style").Text(), ".grecaptcha-badge")
	s.Equal(1, doc.Find(`script[src^="https://www.google.com/recaptcha/api.js"]`).Length())
	s.Equal(1, doc.Find("#loginform p.lsp-description").Length())
}

func (s *PagesSuite) TestInertForm() {
	g := newGate(s.T(), nil)
	view := FormView(context.Background(), g, gate.FormRegister, "Register")
	doc := s.render(http.StatusOK, Register, view)

	s.Equal(0, doc.Find("input."+models.TokenInputClass).Length())
	s.Equal(0, doc.Find("script").Length())
	s.Equal(0, doc.Find("style").Length())
}

func (s *PagesSuite) TestErrorsAndValuesEscaped() {
	doc := s.render(http.StatusBadRequest, Contact, View{
		Title:  "Contact",
		Errors: []string{models.SpamMessage},
		Values: map[string]string{"name": `"><script>`},
	})
	s.Equal(models.SpamMessage, strings.TrimSpace(doc.Find("ul.errors li").Text()))
	s.Equal(`"><script>`, doc.Find("#contact_name").AttrOr("value", ""))
	s.Equal(0, doc.Find("script").Length())
}

func (s *PagesSuite) TestRenderError() {
	s.Run("domain error shows its message", func() {
		rec := httptest.NewRecorder()
		s.renderer.RenderError(rec, httptest.NewRequest(http.MethodGet, "/", nil),
			dErrors.New(dErrors.CodeUnavailable, "settings store unavailable"))
		s.Equal(http.StatusServiceUnavailable, rec.Code)
		s.Contains(rec.Body.String(), "settings store unavailable")
	})
	s.Run("internal error is hidden", func() {
		rec := httptest.NewRecorder()
		s.renderer.RenderError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("dial tcp: refused"))
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.NotContains(rec.Body.String(), "refused")
	})
}

func TestUnknownPage(t *testing.T) {
	r, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	r.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "missing.html", View{})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
