package probe

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/domain"
)

const userAgent = "PassieUptimeRobot/1.0"

type HTTPChecker struct {
	Client *http.Client
}

// NewHTTPChecker builds a checker with the given overall timeout.
// Redirects are followed, so a 301 with a healthy destination counts as up.
func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPChecker{
		Client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPChecker) Check(ctx context.Context, url string) Outcome {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return down(start, 0, err.Error())
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.Client.Do(req)
	if err != nil {
		return down(start, 0, err.Error())
	}
	defer resp.Body.Close()

	if domain.IsUpCode(resp.StatusCode) {
		// Drain a little so keep-alive connections can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, domain.MaxResponseExcerpt)
		return Outcome{
			Up:         true,
			StatusCode: resp.StatusCode,
			LatencyMS:  time.Since(start).Milliseconds(),
		}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, domain.MaxResponseExcerpt))
	return down(start, resp.StatusCode, string(body))
}

func down(start time.Time, code int, body string) Outcome {
	o := Outcome{
		StatusCode: code,
		LatencyMS:  time.Since(start).Milliseconds(),
	}
	if body = strings.TrimSpace(body); body != "" {
		if len(body) > domain.MaxResponseExcerpt {
			body = body[:domain.MaxResponseExcerpt]
		}
		o.Excerpt = &body
	}
	return o
}
