package strategy

import (
	"net/http"
	"net/url"
	"strings"
)

// ModeNavigate is the request mode of a top-level document load.
const ModeNavigate = "navigate"

// Rules is the static configuration the classifier matches against.
type Rules struct {
	APIPrefix    string
	SettingsPath string
	StaticPrefix string
	FontOrigins  []string
}

// Classifier assigns exactly one Class per request.
type Classifier struct {
	rules Rules
	fonts map[string]struct{}
}

// NewClassifier normalizes font origins once so Classify stays allocation free.
func NewClassifier(rules Rules) *Classifier {
	fonts := make(map[string]struct{}, len(rules.FontOrigins))
	for _, origin := range rules.FontOrigins {
		if normalized := normalizeOrigin(origin); normalized != "" {
			fonts[normalized] = struct{}{}
		}
	}
	return &Classifier{rules: rules, fonts: fonts}
}

// Classify evaluates the rules in priority order; the first match wins.
func (c *Classifier) Classify(method string, u *url.URL, mode string) Class {
	if mode == ModeNavigate {
		return Navigation
	}

	path := "/"
	if u != nil && u.Path != "" {
		path = u.Path
	}

	if c.isAPIPath(path) {
		if strings.EqualFold(method, http.MethodGet) {
			return APIGet
		}
		return PassThrough
	}

	if c.rules.StaticPrefix != "" && strings.HasPrefix(path, c.rules.StaticPrefix) {
		return StaticAsset
	}
	if u != nil && c.IsFontOrigin(u) {
		return StaticAsset
	}
	return Default
}

// IsFontOrigin reports whether u belongs to an allow-listed font origin.
func (c *Classifier) IsFontOrigin(u *url.URL) bool {
	if u == nil || u.Host == "" {
		return false
	}
	_, ok := c.fonts[normalizeOrigin(u.Scheme+"://"+u.Host)]
	return ok
}

func (c *Classifier) isAPIPath(path string) bool {
	if c.rules.APIPrefix != "" && strings.HasPrefix(path, c.rules.APIPrefix) {
		return true
	}
	return c.rules.SettingsPath != "" && path == c.rules.SettingsPath
}

func normalizeOrigin(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)
}
