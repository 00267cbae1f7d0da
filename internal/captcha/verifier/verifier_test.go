package verifier

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"spamgate/internal/captcha/hooks"
	"spamgate/internal/captcha/metrics"
	"spamgate/internal/captcha/models"
	"spamgate/pkg/requestcontext"
)

type VerifierSuite struct {
	suite.Suite

	server   *httptest.Server
	mu       sync.Mutex
	body     string
	status   int
	requests []url.Values

	cfg models.Configuration
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.body = `{"success":true,"score":0.9}`
	s.status = http.StatusOK
	s.requests = nil
	s.cfg = models.Configuration{SiteKey: "site", SecretKey: "secret", Threshold: models.DefaultThreshold}

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodPost, r.Method)
		s.Equal("application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		s.NoError(r.ParseForm())

		s.mu.Lock()
		s.requests = append(s.requests, r.PostForm)
		body, status := s.body, s.status
		s.mu.Unlock()

		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
}

func (s *VerifierSuite) TearDownTest() {
	s.server.Close()
}

func (s *VerifierSuite) newVerifier(opts ...Option) *Verifier {
	opts = append([]Option{
		WithEndpoint(s.server.URL),
		WithHTTPClient(s.server.Client()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return New(opts...)
}

func (s *VerifierSuite) respond(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.body = body
}

func (s *VerifierSuite) TestScenarios() {
	cases := []struct {
		name      string
		status    int
		body      string
		wantOK    bool
		wantCause error
	}{
		{"low score", http.StatusOK, `{"success":true,"score":0.3}`, false, models.ErrSpamScore},
		{"high score", http.StatusOK, `{"success":true,"score":0.9}`, true, nil},
		{"score at threshold", http.StatusOK, `{"success":true,"score":0.5}`, true, nil},
		{"unsuccessful", http.StatusOK, `{"success":false,"error-codes":["invalid-input-response"]}`, false, models.ErrSpamScore},
		{"malformed body", http.StatusOK, `not-json`, false, models.ErrSpamScore},
		{"error status with html body", http.StatusBadGateway, `<html>bad gateway</html>`, false, models.ErrSpamScore},
		{"error status with passing body", http.StatusInternalServerError, `{"success":true,"score":0.9}`, false, models.ErrSpamScore},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.respond(tc.status, tc.body)
			res := s.newVerifier().Verify(context.Background(), s.cfg, "token", "203.0.113.7", 0.5)

			s.Equal(tc.wantOK, res.OK())
			if tc.wantCause != nil {
				s.ErrorIs(res.Err, tc.wantCause)
				s.Equal(models.SpamMessage, res.Reason)
			}
		})
	}
}

func (s *VerifierSuite) TestTransportFailure() {
	s.server.Close()

	res := s.newVerifier().Verify(context.Background(), s.cfg, "token", "203.0.113.7", 0.5)

	s.True(res.Failed())
	s.ErrorIs(res.Err, models.ErrTransport)
	s.Equal(models.SpamMessage, res.Reason, "transport failures show the same message as spam")
	s.Equal("transport", res.Kind())
}

func (s *VerifierSuite) TestCancelledContextIsTransportFailure() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.newVerifier().Verify(ctx, s.cfg, "token", "203.0.113.7", 0.5)

	s.True(res.Failed())
	s.ErrorIs(res.Err, models.ErrTransport)
}

func (s *VerifierSuite) TestInertConfigurationMakesNoCall() {
	for _, cfg := range []models.Configuration{
		{},
		{SiteKey: "site"},
		{SecretKey: "secret"},
	} {
		res := s.newVerifier().Verify(context.Background(), cfg, "token", "", 0.5)
		s.True(res.OK())
	}
	s.Empty(s.requests)
}

func (s *VerifierSuite) TestFormFields() {
	s.newVerifier().Verify(context.Background(), s.cfg, "tok-123", "198.51.100.4", 0.5)

	s.Require().Len(s.requests, 1)
	form := s.requests[0]
	s.Equal("secret", form.Get("secret"))
	s.Equal("tok-123", form.Get("response"))
	s.Equal("198.51.100.4", form.Get("remoteip"))
}

func (s *VerifierSuite) TestEmptyTokenIsStillVerified() {
	s.respond(http.StatusOK, `{"success":false,"error-codes":["missing-input-response"]}`)

	res := s.newVerifier().Verify(context.Background(), s.cfg, "", "198.51.100.4", 0.5)

	s.True(res.Failed())
	s.Require().Len(s.requests, 1)
	s.Empty(s.requests[0].Get("response"))
}

func (s *VerifierSuite) TestRemoteIPFallsBackToContextThroughHook() {
	ctx := requestcontext.WithClientMetadata(context.Background(), "192.0.2.10", "test-agent")
	h := &hooks.Hooks{RemoteIP: func(_ context.Context, ip string) string { return ip + "-hooked" }}

	s.newVerifier(WithHooks(h)).Verify(ctx, s.cfg, "token", "", 0.5)

	s.Require().Len(s.requests, 1)
	s.Equal("192.0.2.10-hooked", s.requests[0].Get("remoteip"))
}

func (s *VerifierSuite) TestBlankedRemoteIPIsOmitted() {
	ctx := requestcontext.WithClientMetadata(context.Background(), "192.0.2.10", "test-agent")
	h := &hooks.Hooks{RemoteIP: func(context.Context, string) string { return "" }}

	s.newVerifier(WithHooks(h)).Verify(ctx, s.cfg, "token", "", 0.5)

	s.Require().Len(s.requests, 1)
	s.False(s.requests[0].Has("remoteip"))
}

func (s *VerifierSuite) TestExplicitRemoteIPSkipsHook() {
	h := &hooks.Hooks{RemoteIP: func(context.Context, string) string { return "hooked" }}

	s.newVerifier(WithHooks(h)).Verify(context.Background(), s.cfg, "token", "198.51.100.4", 0.5)

	s.Require().Len(s.requests, 1)
	s.Equal("198.51.100.4", s.requests[0].Get("remoteip"))
}

func (s *VerifierSuite) TestThresholdIsClamped() {
	s.respond(http.StatusOK, `{"success":true,"score":1.0}`)
	s.True(s.newVerifier().Verify(context.Background(), s.cfg, "t", "ip", 7).OK(), "threshold above 1 acts as 1")

	s.respond(http.StatusOK, `{"success":true,"score":0.0}`)
	s.True(s.newVerifier().Verify(context.Background(), s.cfg, "t", "ip", -3).OK(), "threshold below 0 acts as 0")
}

func (s *VerifierSuite) TestScoreIsReported() {
	s.respond(http.StatusOK, `{"success":true,"score":0.2}`)
	reg := prometheus.NewRegistry()
	m := metrics.NewWith(reg)

	res := s.newVerifier(WithMetrics(m)).Verify(context.Background(), s.cfg, "t", "ip", 0.5)

	s.True(res.Failed())
	s.InDelta(0.2, res.Score, 1e-9)
	s.Equal(1, testutil.CollectAndCount(m.Scores))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-1))
	assert.Equal(t, 1.0, clamp(2))
	assert.Equal(t, 0.25, clamp(0.25))
	assert.Equal(t, models.DefaultThreshold, clamp(math.NaN()))
}
