// Package device derives coarse, non-identifying client descriptions from a
// User-Agent header for audit trails.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknown = "Unknown Device"

// ParseUserAgent returns a display name such as "Chrome on Mac OS X".
func ParseUserAgent(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return unknown
	}
	parsed := useragent.New(ua)
	browser, _ := parsed.Browser()
	os := parsed.OSInfo().Name
	if os == "" {
		os = parsed.Platform()
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}

// Browser returns only the browser family, or "" when it cannot be told. Bot
// user agents report "bot".
func Browser(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return ""
	}
	parsed := useragent.New(ua)
	if parsed.Bot() {
		return "bot"
	}
	name, _ := parsed.Browser()
	return name
}
