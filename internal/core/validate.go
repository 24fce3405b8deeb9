package core

import (
	"net/url"
	"path/filepath"
	"strings"
)

// ValidateBaseURL accepts http(s) and custom schemes as long as a host is present.
func ValidateBaseURL(op, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return Validationf(op, "base_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Validationf(op, "invalid base_url %q", raw)
	}
	return nil
}

// ValidateName rejects empty names, names with surrounding whitespace and
// names that cannot be a TOML table key on a single line.
func ValidateName(op, what, name string) error {
	if strings.TrimSpace(name) == "" {
		return Validationf(op, "%s is required", what)
	}
	if strings.TrimSpace(name) != name {
		return Validationf(op, "%s must not start or end with whitespace: %q", what, name)
	}
	if strings.ContainsAny(name, "\r\n") {
		return Validationf(op, "%s must not contain line breaks", what)
	}
	return nil
}

func ValidateProjectPath(op, path string) error {
	if err := ValidateName(op, "project path", path); err != nil {
		return err
	}
	if !filepath.IsAbs(path) {
		return Validationf(op, "project path must be absolute: %s", path)
	}
	return nil
}
