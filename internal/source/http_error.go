package source

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Xanthus1/louisville-expenditure-etl/pkg/pipeline/redact"
)

// HTTPError is a sanitized summary of a non-200 source response.
//
// Raw bodies are never included; Snippet is redacted and truncated.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
	Snippet    string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "source http error"
	}
	parts := []string{
		fmt.Sprintf("source fetch failed: url=%s status=%s", strings.TrimSpace(e.URL), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

func newHTTPError(url string, resp *http.Response, body []byte) *HTTPError {
	h := &HTTPError{URL: url}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}
	h.Snippet = redactAndTruncate(body)
	return h
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := redact.Secrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}
