package hooks

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilHooksPassThrough(t *testing.T) {
	var h *Hooks
	ctx := context.Background()
	assert.Equal(t, "1.2.3.4", h.ApplyRemoteIP(ctx, "1.2.3.4"))
	assert.Equal(t, "site", h.ApplySiteKey("site"))
	assert.Equal(t, "secret", h.ApplySecretKey("secret"))
	assert.Equal(t, "msg", h.ApplyMessage("msg"))
	assert.Equal(t, "<p>msg</p>", h.ApplyMessageHTML("<p>msg</p>"))

	empty := &Hooks{}
	assert.Equal(t, "site", empty.ApplySiteKey("site"))
}

func TestHooksTransform(t *testing.T) {
	h := &Hooks{
		RemoteIP:    func(_ context.Context, ip string) string { return "198.51.100.1" },
		SiteKey:     strings.ToUpper,
		SecretKey:   strings.TrimSpace,
		Message:     func(m string) string { return m + "!" },
		MessageHTML: func(s string) string { return "<div>" + s + "</div>" },
	}
	assert.Equal(t, "198.51.100.1", h.ApplyRemoteIP(context.Background(), "10.0.0.1"))
	assert.Equal(t, "SITE", h.ApplySiteKey("site"))
	assert.Equal(t, "secret", h.ApplySecretKey("  secret "))
	assert.Equal(t, "hi!", h.ApplyMessage("hi"))
	assert.Equal(t, "<div>x</div>", h.ApplyMessageHTML("x"))
}
