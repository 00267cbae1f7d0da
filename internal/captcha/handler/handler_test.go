package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"spamgate/internal/captcha/handler/mocks"
	"spamgate/internal/captcha/settings"
	"spamgate/internal/captcha/settings/store"
	dErrors "spamgate/pkg/domain-errors"
	"spamgate/pkg/platform/audit"
	"spamgate/pkg/platform/audit/publisher"
	auditmemory "spamgate/pkg/platform/audit/store/memory"
	"spamgate/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Settings
type SettingsHandlerSuite struct {
	suite.Suite
	ctx        context.Context
	options    *store.InMemoryStore
	auditStore *auditmemory.InMemoryStore
	router     chi.Router
}

func TestSettingsHandlerSuite(t *testing.T) {
	suite.Run(t, new(SettingsHandlerSuite))
}

func (s *SettingsHandlerSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.options = store.NewInMemoryStore()
	resolver, err := settings.New(s.options,
		settings.WithFixedSource(settings.MapSource{settings.KeySecretKey: "fixed-secret-1234"}),
		settings.WithLogger(logger),
	)
	s.Require().NoError(err)

	s.auditStore = auditmemory.NewInMemoryStore()
	s.router = chi.NewRouter()
	s.router.Route("/admin", New(resolver, publisher.NewPublisher(s.auditStore), logger).RegisterAdmin)
}

func (s *SettingsHandlerSuite) do(method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/admin/settings", strings.NewReader(body))
	return testutil.DoRequest(s.router, testutil.WithClient(req, "198.51.100.23", "curl/8.0"))
}

func decode(rec *httptest.ResponseRecorder) settingsResponse {
	var resp settingsResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return resp
}

func entry(resp settingsResponse, key settings.Key) settings.Entry {
	for _, e := range resp.Options {
		if e.Key == key {
			return e
		}
	}
	return settings.Entry{}
}

func (s *SettingsHandlerSuite) TestGetSettings() {
	rec := s.do(http.MethodGet, "")

	s.Equal(http.StatusOK, rec.Code)
	resp := decode(rec)
	s.False(resp.Available, "site key is not set yet")
	s.Len(resp.Options, len(settings.Keys))
	secret := entry(resp, settings.KeySecretKey)
	s.True(secret.Fixed)
	s.Equal("*************1234", secret.Value)
}

func (s *SettingsHandlerSuite) TestUpdateSettings() {
	rec := s.do(http.MethodPut, `{"options":{"site_key":"site-abc","recaptcha_v3_threshold":"0.7"}}`)

	s.Require().Equal(http.StatusOK, rec.Code)
	resp := decode(rec)
	s.True(resp.Available)
	s.Equal("site-abc", entry(resp, settings.KeySiteKey).Value)
	s.Equal("0.7", entry(resp, settings.KeyThreshold).Value)

	stored, err := s.options.Get(s.ctx, string(settings.KeySiteKey))
	s.Require().NoError(err)
	s.Equal("site-abc", stored)

	events, err := s.auditStore.ListByAction(s.ctx, audit.EventSettingsUpdated)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(settings.KeySiteKey), events[0].Subject)
	s.Equal("updated", events[0].Decision)
	s.Equal("198.51.100.0", events[0].IP)
	s.Equal(audit.CategoryCompliance, events[0].Category)
}

func (s *SettingsHandlerSuite) TestClearSetting() {
	s.Require().NoError(s.options.Set(s.ctx, string(settings.KeyMessage), "custom"))

	rec := s.do(http.MethodPut, `{"options":{"message":""}}`)

	s.Equal(http.StatusOK, rec.Code)
	s.Empty(entry(decode(rec), settings.KeyMessage).Value)
	events, err := s.auditStore.ListByAction(s.ctx, audit.EventSettingsUpdated)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("cleared", events[0].Decision)
}

func (s *SettingsHandlerSuite) TestUpdateRejected() {
	cases := []struct {
		name   string
		body   string
		status int
		code   dErrors.Code
	}{
		{"fixed key", `{"options":{"secret_key":"other"}}`, http.StatusForbidden, dErrors.CodeForbidden},
		{"unknown key", `{"options":{"colour":"blue"}}`, http.StatusBadRequest, dErrors.CodeInvalidInput},
		{"threshold out of range", `{"options":{"threshold":"2"}}`, http.StatusBadRequest, dErrors.CodeInvalidInput},
		{"no options", `{"options":{}}`, http.StatusBadRequest, dErrors.CodeInvalidInput},
		{"malformed json", `{"options":`, http.StatusBadRequest, dErrors.CodeBadRequest},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			rec := s.do(http.MethodPut, tc.body)

			testutil.AssertStatusAndError(s.T(), rec, tc.status, string(tc.code))
		})
	}

	events, err := s.auditStore.ListByAction(s.ctx, audit.EventSettingsUpdated)
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *SettingsHandlerSuite) TestStoreOutage() {
	ctrl := gomock.NewController(s.T())
	mockSettings := mocks.NewMockSettings(ctrl)
	mockSettings.EXPECT().Entries(gomock.Any()).Return(nil, dErrors.New(dErrors.CodeUnavailable, "failed to read option recaptcha_v3_site_key"))

	router := chi.NewRouter()
	router.Route("/admin", New(mockSettings, nil, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterAdmin)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/settings", nil))

	s.Equal(http.StatusServiceUnavailable, rec.Code)
}
