// Package hooks defines the extension points the host can use to adjust gate
// values. Every field is optional; a nil hook leaves the value untouched.
package hooks

import "context"

type Hooks struct {
	// RemoteIP overrides the request-derived client IP sent to the scoring service.
	RemoteIP func(ctx context.Context, ip string) string
	// SiteKey and SecretKey transform the resolved keys before use.
	SiteKey   func(key string) string
	SecretKey func(key string) string
	// Message transforms the attribution message before placeholders are substituted.
	Message func(message string) string
	// MessageHTML transforms the rendered attribution paragraph.
	MessageHTML func(html string) string
}

func (h *Hooks) ApplyRemoteIP(ctx context.Context, ip string) string {
	if h == nil || h.RemoteIP == nil {
		return ip
	}
	return h.RemoteIP(ctx, ip)
}

func (h *Hooks) ApplySiteKey(key string) string {
	if h == nil || h.SiteKey == nil {
		return key
	}
	return h.SiteKey(key)
}

func (h *Hooks) ApplySecretKey(key string) string {
	if h == nil || h.SecretKey == nil {
		return key
	}
	return h.SecretKey(key)
}

func (h *Hooks) ApplyMessage(message string) string {
	if h == nil || h.Message == nil {
		return message
	}
	return h.Message(message)
}

func (h *Hooks) ApplyMessageHTML(html string) string {
	if h == nil || h.MessageHTML == nil {
		return html
	}
	return h.MessageHTML(html)
}
