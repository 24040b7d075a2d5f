package telemetry

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	minTokenLength = 20
	redacted       = "[REDACTED]"
)

var (
	credentialPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|token|secret|password|passwd|authorization|bearer)[\s:=]+["']?([^\s"']+)`)

	sensitiveKeys = map[string]bool{
		"auth":          true,
		"authorization": true,
		"credentials":   true,
		"client_secret": true,
		"access_token":  true,
		"refresh_token": true,
		"private_key":   true,
		"password":      true,
	}
)

// SanitiseArguments renders tool arguments as JSON with credentials removed.
// Long opaque strings, such as spreadsheet ids, keep only a short prefix.
func SanitiseArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	data, err := json.Marshal(sanitiseMap(args))
	if err != nil {
		return `{"error": "failed to serialise arguments"}`
	}
	return string(data)
}

func sanitiseMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for key, value := range m {
		if isSensitiveKey(key) {
			out[key] = redacted
			continue
		}
		out[key] = sanitiseValue(value)
	}
	return out
}

func sanitiseValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return sanitiseMap(v)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = sanitiseValue(item)
		}
		return items
	case string:
		return sanitiseString(v)
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	return sensitiveKeys[k] ||
		strings.Contains(k, "token") ||
		strings.Contains(k, "secret") ||
		strings.Contains(k, "password") ||
		strings.HasSuffix(k, "_key")
}

func sanitiseString(s string) string {
	if credentialPattern.MatchString(s) {
		return credentialPattern.ReplaceAllString(s, "$1="+redacted)
	}
	if len(s) > minTokenLength && isTokenLike(s) {
		return s[:4] + "..." + redacted
	}
	return s
}

// isTokenLike reports strings made only of characters common in ids and tokens
func isTokenLike(s string) bool {
	for _, r := range s {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.'
		if !ok {
			return false
		}
	}
	return true
}

// TruncateString truncates a string to a maximum length with ellipsis
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
