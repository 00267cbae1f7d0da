package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmw "spamgate/pkg/platform/middleware/auth"
	"spamgate/pkg/requestcontext"
)

func TestNewFormRequest(t *testing.T) {
	req := NewFormRequest(t, "/login", url.Values{"log": {"alice"}, "recaptcha-v3-token": {"tok"}})
	require.NoError(t, req.ParseForm())
	assert.Equal(t, "alice", req.PostFormValue("log"))
	assert.Equal(t, "tok", req.PostFormValue("recaptcha-v3-token"))
}

func TestAssertStatusAndError(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"forbidden"}`))
	})
	rr := DoRequest(h, NewJSONRequest(t, http.MethodPut, "/admin/settings", map[string]string{"a": "b"}))
	AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
}

func TestContextHelpers(t *testing.T) {
	req := WithClient(WithSession(httptest.NewRequest(http.MethodGet, "/", nil), "u-1", "alice"), "203.0.113.9", "Firefox")
	assert.Equal(t, "alice", authmw.GetUsername(req.Context()))
	assert.Equal(t, "203.0.113.9", requestcontext.ClientIP(req.Context()))
	assert.Equal(t, "Firefox", requestcontext.UserAgent(req.Context()))
}
