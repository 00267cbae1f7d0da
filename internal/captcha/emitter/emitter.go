// Package emitter renders the client side of the gate: the hidden token
// inputs, the challenge script and the attribution shown when the badge is
// hidden.
//
// All per-render state lives on a Page. The script is loaded at most once per
// Page no matter how many protected forms it carries.
package emitter

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"spamgate/internal/captcha/hooks"
	"spamgate/internal/captcha/metrics"
	"spamgate/internal/captcha/models"
)

var (
	inputTmpl = template.Must(template.New("input").Parse(
		`<input class="{{.Class}}" type="hidden" name="{{.Name}}" id="{{.ID}}" data-action="{{.Action}}" value="" />`))

	scriptTmpl = template.Must(template.New("script").Parse(`<script src="{{.ScriptURL}}"></script>
<script>
if (typeof grecaptcha === 'undefined') {
	grecaptcha = {};
}
if (typeof grecaptcha.ready === 'undefined') {
	grecaptcha.ready = function (cb) {
		if (typeof grecaptcha === 'undefined') {
			var c = '___grecaptcha_cfg';
			window[c] = window[c] || {};
			(window[c]['fns'] = window[c]['fns'] || []).push(cb);
		} else {
			cb();
		}
	};
}
</script>
<script>
grecaptcha.ready(function () {
	var inputs = document.getElementsByClassName({{.Class}});
	Array.from(inputs).forEach(function (input) {
		var action = input.dataset.action || {{.DefaultAction}};
		grecaptcha.execute({{.SiteKey}}, { action: action }).then(function (token) {
			input.value = token;
		});
	});
});
</script>
`))

	badgeStyle = template.HTML("<style>\n.grecaptcha-badge { visibility: hidden; }\n</style>\n")
)

// Page is the state of one page render.
type Page struct {
	cfg          models.Configuration
	scriptLoaded bool
	scripts      bytes.Buffer
}

// Configuration returns the configuration the page was opened with.
func (p *Page) Configuration() models.Configuration {
	return p.cfg
}

// ScriptLoaded reports whether the challenge script was emitted for this page.
func (p *Page) ScriptLoaded() bool {
	return p.scriptLoaded
}

// Scripts returns everything queued for the end of the page body.
func (p *Page) Scripts() template.HTML {
	return template.HTML(p.scripts.String()) //nolint:gosec // produced by scriptTmpl
}

type Emitter struct {
	hooks   *hooks.Hooks
	logger  *slog.Logger
	metrics *metrics.Metrics
	// policy strips the stored attribution message down to user-content markup.
	policy *bluemonday.Policy
}

type Option func(*Emitter)

func WithHooks(h *hooks.Hooks) Option {
	return func(e *Emitter) {
		e.hooks = h
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Emitter) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Emitter) {
		e.metrics = m
	}
}

func New(opts ...Option) *Emitter {
	e := &Emitter{logger: slog.Default(), policy: bluemonday.UGCPolicy()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewPage starts a render with the configuration resolved for this request.
func (e *Emitter) NewPage(cfg models.Configuration) *Page {
	return &Page{cfg: cfg}
}

// RenderInput returns the hidden input the client glue fills with a token for
// action. It is empty when the gate is not configured.
func (e *Emitter) RenderInput(p *Page, elementID, action string) template.HTML {
	if !p.cfg.Available() {
		return ""
	}
	var buf bytes.Buffer
	err := inputTmpl.Execute(&buf, struct {
		Class, Name, ID, Action string
	}{models.TokenInputClass, models.TokenFieldName, elementID, action})
	if err != nil {
		e.logger.Error("failed to render captcha input", "error", err)
		return ""
	}
	return template.HTML(buf.String()) //nolint:gosec // escaped by inputTmpl
}

// EnsureScriptLoaded queues the challenge script, readiness shim and token
// glue on p. It reports whether this call queued them; later calls for the
// same page are no-ops.
func (e *Emitter) EnsureScriptLoaded(p *Page) bool {
	if p.scriptLoaded || !p.cfg.Available() {
		return false
	}
	err := scriptTmpl.Execute(&p.scripts, struct {
		ScriptURL     string
		Class         string
		DefaultAction string
		SiteKey       string
	}{
		ScriptURL:     ScriptURL(p.cfg),
		Class:         models.TokenInputClass,
		DefaultAction: models.DefaultAction,
		SiteKey:       p.cfg.SiteKey,
	})
	if err != nil {
		e.logger.Error("failed to render captcha script", "error", err)
		return false
	}
	p.scriptLoaded = true
	e.metrics.IncrementScriptLoads()
	return true
}

// HeadHTML returns the style that hides the badge, or nothing when the badge
// is displayed or the gate is not configured.
func (e *Emitter) HeadHTML(p *Page) template.HTML {
	if !badgeHidden(p.cfg) {
		return ""
	}
	return badgeStyle
}

// Attribution returns the attribution paragraph shown under a protected form
// when the badge is hidden. The MessageHTML hook sees the sanitized paragraph.
func (e *Emitter) Attribution(p *Page) template.HTML {
	if !badgeHidden(p.cfg) {
		return ""
	}
	html := `<p class="description lsp-description">` + e.AttributionText(p.cfg) + `</p>`
	return template.HTML(e.hooks.ApplyMessageHTML(html)) //nolint:gosec // message sanitized by AttributionText
}

// AttributionText returns the attribution message with its placeholders
// replaced, without the surrounding paragraph. Contact forms embed it
// directly, whether or not the badge is displayed. The stored message is
// editable through the admin API, so only user-content markup survives:
// links and inline formatting stay, scripts and event handlers go.
func (e *Emitter) AttributionText(cfg models.Configuration) string {
	msg := e.hooks.ApplyMessage(cfg.AttributionMessage())
	msg = strings.NewReplacer(
		models.PrivacyPlaceholder, models.PrivacyPolicyURL,
		models.TermsPlaceholder, models.TermsOfServiceURL,
	).Replace(msg)
	return e.policy.Sanitize(msg)
}

// ScriptURL is the challenge script URL for cfg, rendering for its site key.
func ScriptURL(cfg models.Configuration) string {
	return cfg.ScriptOrigin() + "?" + url.Values{"render": {cfg.SiteKey}}.Encode()
}

func badgeHidden(cfg models.Configuration) bool {
	return cfg.Available() && !cfg.DisplayBadge
}
