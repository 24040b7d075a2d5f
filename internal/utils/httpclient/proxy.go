package httpclient

import (
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sammcj/mcp-sheets/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// ProxyEnvironmentVariables are checked in order, following curl and wget conventions
var ProxyEnvironmentVariables = []string{
	"HTTPS_PROXY",
	"https_proxy",
	"HTTP_PROXY",
	"http_proxy",
}

// NewHTTPClientWithProxyAndLogger creates the HTTP client used for Sheets API
// calls. A proxy is only configured when one of ProxyEnvironmentVariables is
// set, and the transport is always wrapped for tracing (noop when disabled).
func NewHTTPClientWithProxyAndLogger(timeout time.Duration, logger *logrus.Logger) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL := ProxyURL(); proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		switch {
		case err != nil:
			if logger != nil {
				logger.WithError(err).WithField("proxy_url", RedactProxyCredentials(proxyURL)).Warn("Failed to parse proxy URL, using direct connection")
			}
		default:
			transport.Proxy = http.ProxyURL(parsed)
			if logger != nil {
				logger.WithField("proxy_url", RedactProxyCredentials(proxyURL)).Debug("Sheets client configured with proxy")
			}
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: telemetry.WrapHTTPTransport(transport),
	}
}

// ProxyURL returns the first configured proxy URL, or "" when none is set
func ProxyURL() string {
	for _, envVar := range ProxyEnvironmentVariables {
		proxyURL := os.Getenv(envVar)
		// skip unexpanded placeholders some launchers pass through
		if proxyURL != "" && proxyURL != "$HTTPS_PROXY" && proxyURL != "$HTTP_PROXY" {
			return proxyURL
		}
	}
	return ""
}

// RedactProxyCredentials masks user info in a proxy URL for logging
func RedactProxyCredentials(proxyURL string) string {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return "[invalid-url]"
	}
	if parsed.User != nil {
		parsed.User = url.UserPassword("***", "***")
	}
	return parsed.String()
}
