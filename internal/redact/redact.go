// Package redact provides utilities for redacting credentials from strings
// before they are logged. Model provider errors and configuration dumps can
// echo the API key back; everything that reaches the log passes through here.
package redact

import (
	"regexp"
)

// Constants for redaction placeholders
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
)

// Precompiled regex patterns
var (
	// Google API keys (Gemini, AI Studio)
	googleKeyRegex = regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`)

	// key=value style credentials, including URL query parameters
	apiKeyRegex = regexp.MustCompile(
		`(?i)(api[_-]?key|access[_-]?token|token|secret|key)(['"\s]*[:=]['"\s]*)[A-Za-z0-9_\-.~+/]{8,}`,
	)

	bearerRegex = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/]{8,}=*`)

	jwtTokenRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)

	// Order matters: JWTs are matched before the generic bearer pattern.
	patterns = []struct {
		re          *regexp.Regexp
		placeholder string
	}{
		{jwtTokenRegex, RedactedJWTPlaceholder},
		{googleKeyRegex, RedactedKeyPlaceholder},
		{apiKeyRegex, RedactedKeyPlaceholder},
		{bearerRegex, RedactedCredentialPlaceholder},
	}
)

// String redacts credentials from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, p := range patterns {
		result = p.re.ReplaceAllString(result, p.placeholder)
	}

	return result
}

// Error redacts credentials from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
