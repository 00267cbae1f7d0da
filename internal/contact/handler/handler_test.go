package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"spamgate/internal/captcha/gate"
	captcha "spamgate/internal/captcha/models"
	"spamgate/internal/captcha/settings"
	"spamgate/internal/captcha/settings/store"
	"spamgate/internal/captcha/verifier"
	"spamgate/internal/contact/handler/mocks"
	contactModel "spamgate/internal/contact/models"
	"spamgate/internal/transport/http/pages"
	id "spamgate/pkg/domain"
	dErrors "spamgate/pkg/domain-errors"
	"spamgate/pkg/platform/forms"
	"spamgate/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type ContactHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestContactHandlerSuite(t *testing.T) {
	suite.Run(t, new(ContactHandlerSuite))
}

func (s *ContactHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	resolver, err := settings.New(store.NewInMemoryStoreWith(map[string]string{
		string(settings.KeySiteKey):      "site-key",
		string(settings.KeySecretKey):    "secret-key",
		string(settings.KeyDisplayBadge): "1",
	}))
	s.Require().NoError(err)
	g, err := gate.New(resolver, verifier.New(), gate.WithLogger(logger))
	s.Require().NoError(err)
	renderer, err := pages.New(logger)
	s.Require().NoError(err)

	h := New(s.service, g, renderer, logger)
	s.router = chi.NewRouter()
	h.Register(s.router)
	s.router.Route("/admin", h.RegisterAdmin)
}

func (s *ContactHandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *ContactHandlerSuite) TestContactPageCarriesAttributionWithBadgeShown() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/contact", nil))

	s.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.Contains(body, `data-action="contact"`)
	s.Contains(body, "https://policies.google.com/privacy")
	s.NotContains(body, ".grecaptcha-badge")
}

func (s *ContactHandlerSuite) TestSubmit() {
	s.Run("accepted submission redirects", func() {
		s.service.EXPECT().Submit(gomock.Any(), contactModel.SubmitRequest{
			Name:         "Ada",
			Email:        "ada@example.com",
			Subject:      "Hi",
			Body:         "Hello there",
			CaptchaToken: "tok",
		}).Return(&contactModel.Message{ID: id.NewMessageID()}, nil, nil)

		rec := s.do(testutil.NewFormRequest(s.T(), "/contact", url.Values{
			"name":                  {"Ada"},
			"email":                 {"ada@example.com"},
			"subject":               {"Hi"},
			"message":               {"Hello there"},
			captcha.TokenFieldName: {"tok"},
		}))

		s.Equal(http.StatusSeeOther, rec.Code)
		s.Equal("/contact?sent=1", rec.Header().Get("Location"))
	})

	s.Run("spam is 422 and keeps the message", func() {
		errs := forms.NewErrors()
		errs.Add(captcha.ErrorCode, captcha.SpamMessage)
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(nil, errs, nil)

		rec := s.do(testutil.NewFormRequest(s.T(), "/contact", url.Values{"name": {"Ada"}, "message": {"Hello there"}}))

		s.Equal(http.StatusUnprocessableEntity, rec.Code)
		s.Contains(rec.Body.String(), captcha.SpamMessage)
		s.Contains(rec.Body.String(), "Hello there")
	})

	s.Run("service error", func() {
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(nil, nil, dErrors.Wrap(errors.New("disk"), dErrors.CodeInternal, "failed to save contact message"))

		rec := s.do(testutil.NewFormRequest(s.T(), "/contact", url.Values{"name": {"Ada"}}))

		s.Equal(http.StatusInternalServerError, rec.Code)
	})
}

func (s *ContactHandlerSuite) TestListMessages() {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msgID := id.NewMessageID()

	s.Run("default limit", func() {
		s.service.EXPECT().Recent(gomock.Any(), defaultListLimit).Return([]*contactModel.Message{{
			ID: msgID, Name: "Ada", Email: "ada@example.com", Body: "Hello", IP: "203.0.113.0", CreatedAt: created,
		}}, nil)

		rec := s.do(httptest.NewRequest(http.MethodGet, "/admin/messages", nil))

		s.Equal(http.StatusOK, rec.Code)
		var resp struct {
			Messages []messageResponse `json:"messages"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Require().Len(resp.Messages, 1)
		s.Equal(msgID.String(), resp.Messages[0].ID)
		s.Equal("203.0.113.0", resp.Messages[0].IP)
		s.True(created.Equal(resp.Messages[0].CreatedAt))
	})

	s.Run("limit is capped", func() {
		s.service.EXPECT().Recent(gomock.Any(), maxListLimit).Return(nil, nil)

		rec := s.do(httptest.NewRequest(http.MethodGet, "/admin/messages?limit=100000", nil))

		s.Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"messages":[]}`, rec.Body.String())
	})

	s.Run("bad limit", func() {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/admin/messages?limit=-3", nil))
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
