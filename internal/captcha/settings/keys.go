package settings

import (
	"strings"
)

// Key names a gate option in the key/value store.
type Key string

const (
	KeySiteKey         Key = "recaptcha_v3_site_key"
	KeySecretKey       Key = "recaptcha_v3_secret_key"
	KeyDisplayBadge    Key = "recaptcha_v3_display_label"
	KeyMessage         Key = "recaptcha_v3_message"
	KeyAlternateDomain Key = "recaptcha_v3_is_global"
	KeyThreshold       Key = "recaptcha_v3_threshold"
)

const keyPrefix = "recaptcha_v3_"

// Keys lists every option in display order.
var Keys = []Key{
	KeySiteKey,
	KeySecretKey,
	KeyDisplayBadge,
	KeyMessage,
	KeyAlternateDomain,
	KeyThreshold,
}

// ParseKey accepts either the full store key or its short name ("site_key").
func ParseKey(s string) (Key, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if !strings.HasPrefix(s, keyPrefix) {
		s = keyPrefix + s
	}
	for _, k := range Keys {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Name is the key without its store prefix.
func (k Key) Name() string {
	return strings.TrimPrefix(string(k), keyPrefix)
}

// EnvName is the environment variable that fixes this key, e.g. RECAPTCHA_V3_SITE_KEY.
func (k Key) EnvName() string {
	return strings.ToUpper(string(k))
}

// Secret reports whether the value must be masked when displayed.
func (k Key) Secret() bool {
	return k == KeySecretKey
}

// Required reports whether the gate cannot run without this key. Every other
// key has a default it falls back to when its stored value cannot be read.
func (k Key) Required() bool {
	return k == KeySiteKey || k == KeySecretKey
}

// parseFlag follows the loose truthiness stored options have always had:
// empty, "0", "false", "no" and "off" are false.
func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}
