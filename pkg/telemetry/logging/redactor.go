package logging

import (
	"regexp"
)

// Redactor scrubs credential-bearing and personally identifiable values
// from log output before it is written.
type Redactor struct {
	patterns []redactPattern
}

// redactPattern contains a compiled regex and its replacement.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Common redaction pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternPassword    = "password"
	PatternEmail       = "email"
)

// CustomPattern is a user-supplied redaction pattern.
type CustomPattern struct {
	// Name identifies the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is substituted for every match.
	Replacement string `yaml:"replacement"`
}

// NewRedactor creates a Redactor with the default credential patterns
// plus any custom patterns. Custom patterns that fail to compile are
// skipped.
func NewRedactor(custom []CustomPattern) *Redactor {
	r := &Redactor{}
	r.addDefaultPatterns()

	for _, p := range custom {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		})
	}

	return r
}

// addDefaultPatterns installs the built-in credential patterns. API keys
// appear both in auth headers and as query parameters on provider URLs,
// so the URL form is covered too.
func (r *Redactor) addDefaultPatterns() {
	defaults := []struct {
		name        string
		regex       string
		replacement string
	}{
		{
			name:        PatternAPIKey,
			regex:       `(?i)(api[-_]?key[=:"\s]+)[a-zA-Z0-9._-]+`,
			replacement: "${1}***",
		},
		{
			name:        PatternBearerToken,
			regex:       `(?i)(bearer\s+)[a-zA-Z0-9._-]+`,
			replacement: "${1}***",
		},
		{
			name:        PatternPassword,
			regex:       `(?i)(password[=:"\s]+)\S+`,
			replacement: "${1}***",
		},
		{
			name:        PatternEmail,
			regex:       `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
			replacement: "***@***",
		},
	}

	for _, d := range defaults {
		r.patterns = append(r.patterns, redactPattern{
			name:        d.name,
			regex:       regexp.MustCompile(d.regex),
			replacement: d.replacement,
		})
	}
}

// Redact applies every pattern to the given string.
func (r *Redactor) Redact(s string) string {
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}
