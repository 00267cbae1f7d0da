package settings

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// FixedSource supplies values defined outside the store. A value found here
// always wins and cannot be changed through the store.
type FixedSource interface {
	Lookup(key Key) (string, bool)
}

// EnvSource reads RECAPTCHA_V3_* variables. Set-but-empty counts as defined.
type EnvSource struct {
	lookupEnv func(string) (string, bool)
}

func NewEnvSource() *EnvSource {
	return &EnvSource{lookupEnv: os.LookupEnv}
}

// NewEnvSourceFunc builds an EnvSource over a custom lookup, for tests.
func NewEnvSourceFunc(lookup func(string) (string, bool)) *EnvSource {
	return &EnvSource{lookupEnv: lookup}
}

func (s *EnvSource) Lookup(key Key) (string, bool) {
	return s.lookupEnv(key.EnvName())
}

// MapSource is a fixed set of values, typically loaded from a file.
type MapSource map[Key]string

func (m MapSource) Lookup(key Key) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Sources chains fixed sources; the first one defining a key wins.
type Sources []FixedSource

func (s Sources) Lookup(key Key) (string, bool) {
	for _, src := range s {
		if src == nil {
			continue
		}
		if v, ok := src.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

type fixedFile struct {
	SiteKey         *string  `yaml:"site_key"`
	SecretKey       *string  `yaml:"secret_key"`
	DisplayBadge    *bool    `yaml:"display_label"`
	Message         *string  `yaml:"message"`
	AlternateDomain *bool    `yaml:"is_global"`
	Threshold       *float64 `yaml:"threshold" validate:"omitempty,gte=0,lte=1"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFile reads the "defined in code" YAML file. Only keys present in the
// file become fixed.
func LoadFile(path string) (MapSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixed settings file: %w", err)
	}
	return ParseFile(raw)
}

// ParseFile parses the YAML body of a fixed settings file.
func ParseFile(raw []byte) (MapSource, error) {
	var f fixedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixed settings file: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid fixed settings file: %w", err)
	}

	m := MapSource{}
	if f.SiteKey != nil {
		m[KeySiteKey] = *f.SiteKey
	}
	if f.SecretKey != nil {
		m[KeySecretKey] = *f.SecretKey
	}
	if f.DisplayBadge != nil {
		m[KeyDisplayBadge] = formatFlag(*f.DisplayBadge)
	}
	if f.Message != nil {
		m[KeyMessage] = *f.Message
	}
	if f.AlternateDomain != nil {
		m[KeyAlternateDomain] = formatFlag(*f.AlternateDomain)
	}
	if f.Threshold != nil {
		m[KeyThreshold] = strconv.FormatFloat(*f.Threshold, 'f', -1, 64)
	}
	return m, nil
}

func formatFlag(b bool) string {
	if b {
		return "1"
	}
	return ""
}
