// Package verifier checks a posted token against the siteverify endpoint.
//
// Verification is a single synchronous POST per submission. There is no retry
// and no cache: a transport failure is reported as such and the caller
// rejects the submission.
package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"spamgate/internal/captcha/hooks"
	"spamgate/internal/captcha/metrics"
	"spamgate/internal/captcha/models"
	"spamgate/pkg/requestcontext"
)

const maxResponseBytes = 64 << 10

// siteverifyResponse is the subset of the siteverify answer the gate reads.
type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

type Verifier struct {
	client   *http.Client
	endpoint string
	hooks    *hooks.Hooks
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Verifier)

// WithHTTPClient replaces http.DefaultClient. The client's own timeout, if
// any, bounds each call together with the request context.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Verifier) {
		v.client = c
	}
}

// WithEndpoint points the verifier at another siteverify URL.
func WithEndpoint(endpoint string) Option {
	return func(v *Verifier) {
		v.endpoint = endpoint
	}
}

func WithHooks(h *hooks.Hooks) Option {
	return func(v *Verifier) {
		v.hooks = h
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) {
		v.metrics = m
	}
}

func New(opts ...Option) *Verifier {
	v := &Verifier{
		client:   http.DefaultClient,
		endpoint: models.VerifyEndpoint,
		logger:   slog.Default(),
		tracer:   otel.Tracer("spamgate/captcha/verifier"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks token for the configured secret key. An unconfigured gate
// returns Ok without calling out. An empty remoteIP falls back to the client
// IP recorded on ctx, passed through the RemoteIP hook.
func (v *Verifier) Verify(ctx context.Context, cfg models.Configuration, token, remoteIP string, threshold float64) models.Result {
	if !cfg.Available() {
		return models.Ok()
	}
	threshold = clamp(threshold)
	if remoteIP == "" {
		remoteIP = v.hooks.ApplyRemoteIP(ctx, requestcontext.ClientIP(ctx))
	}

	ctx, span := v.tracer.Start(ctx, "captcha.siteverify",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Float64("captcha.threshold", threshold)),
	)
	defer span.End()

	start := time.Now()
	status, body, err := v.post(ctx, cfg.SecretKey, token, remoteIP)
	v.metrics.ObserveVerifyLatency(time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "siteverify transport failure")
		v.logger.WarnContext(ctx, "captcha verification transport failure", "error", err)
		return models.Failed(fmt.Errorf("%w: %w", models.ErrTransport, err))
	}

	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		span.SetStatus(codes.Error, "siteverify error status")
		v.logger.WarnContext(ctx, "captcha verification returned an error status", "status", status)
		return models.Failed(fmt.Errorf("%w: siteverify status %d", models.ErrSpamScore, status))
	}

	var resp siteverifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		span.SetStatus(codes.Error, "unparseable siteverify response")
		v.logger.WarnContext(ctx, "captcha verification returned an unparseable body", "error", err)
		return models.Failed(fmt.Errorf("%w: unparseable response: %w", models.ErrSpamScore, err))
	}

	span.SetAttributes(
		attribute.Bool("captcha.success", resp.Success),
		attribute.Float64("captcha.score", resp.Score),
		attribute.String("captcha.action", resp.Action),
	)
	if resp.Success {
		v.metrics.ObserveScore(resp.Score)
	}

	switch {
	case !resp.Success:
		v.logger.InfoContext(ctx, "captcha token rejected",
			"error_codes", strings.Join(resp.ErrorCodes, ","),
		)
		return models.Failed(fmt.Errorf("%w: token rejected", models.ErrSpamScore))
	case resp.Score < threshold:
		v.logger.InfoContext(ctx, "captcha score below threshold",
			"score", resp.Score,
			"threshold", threshold,
			"action", resp.Action,
			"hostname", resp.Hostname,
		)
		return models.Failed(fmt.Errorf("%w: score %.2f below %.2f", models.ErrSpamScore, resp.Score, threshold)).WithScore(resp.Score)
	}

	v.logger.DebugContext(ctx, "captcha verification passed", "score", resp.Score, "action", resp.Action)
	return models.Ok().WithScore(resp.Score)
}

func (v *Verifier) post(ctx context.Context, secret, token, remoteIP string) (int, []byte, error) {
	form := url.Values{
		"secret":   {secret},
		"response": {token},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("call siteverify: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read siteverify response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func clamp(t float64) float64 {
	switch {
	case math.IsNaN(t):
		return models.DefaultThreshold
	case t < 0:
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}
