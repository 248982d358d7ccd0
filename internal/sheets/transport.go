package sheets

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy defines the backoff applied by RetryTransport.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first call
	BaseDelay   time.Duration // doubled per attempt
	MaxDelay    time.Duration // backoff cap
	Jitter      time.Duration // uniform random addition
}

// DefaultRetryPolicy matches the Sheets API quota behavior: 6 attempts,
// 500ms doubling base, 30s cap, up to 300ms jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 6,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Jitter:      300 * time.Millisecond,
	}
}

// Delay returns the sleep before the next try after the given 1-based
// failed attempt: min(MaxDelay, 2^attempt * BaseDelay + U(0, Jitter)).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(math.Pow(2, float64(attempt)) * float64(p.BaseDelay))
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// ApiExhaustedError is returned once the retry budget is spent. It keeps
// the last status and body so operators can see what the API kept saying.
type ApiExhaustedError struct {
	Attempts int
	Status   int
	Body     string
}

func (e *ApiExhaustedError) Error() string {
	return fmt.Sprintf("sheets api exhausted after %d attempts: status %d: %s", e.Attempts, e.Status, truncate(e.Body, 200))
}

// Textual markers that make a 403 a quota problem rather than a
// permissions problem.
var rateLimitMarkers = []string{
	"rateLimitExceeded",
	"userRateLimitExceeded",
	"Quota exceeded",
}

// RetryTransport retries rate-limited and transient Sheets API responses
// with capped exponential backoff. It knows nothing about sheet
// semantics; it is a decorator over a generic HTTP round trip. 429 and
// 5xx always retry; 403 retries only when the body carries a rate-limit
// marker. A Retry-After header with a positive integer wins over the
// backoff formula.
type RetryTransport struct {
	Base   http.RoundTripper
	Policy RetryPolicy
	Logger *zerolog.Logger

	// OnRetry, when set, observes each retry with the status code that
	// triggered it (0 for transport-level errors).
	OnRetry func(status int)

	sleep func(time.Duration)
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	policy := t.Policy
	if policy.MaxAttempts < 1 {
		policy = DefaultRetryPolicy()
	}

	var lastStatus int
	var lastBody string

	for attempt := 1; ; attempt++ {
		resp, err := base.RoundTrip(req)
		if err != nil {
			// Transport-level errors (refused, reset) retry like a 5xx.
			lastStatus, lastBody = 0, err.Error()
			if attempt >= policy.MaxAttempts {
				return nil, &ApiExhaustedError{Attempts: attempt, Status: lastStatus, Body: lastBody}
			}
			t.logRetry(req, attempt, 0, err)
			t.waitFor(req, policy.Delay(attempt))
			if rewindErr := rewind(req); rewindErr != nil {
				return nil, rewindErr
			}
			continue
		}

		body, readErr := readAndRestore(resp)
		if readErr != nil {
			return nil, readErr
		}

		if !retryable(resp.StatusCode, body) {
			return resp, nil
		}
		lastStatus, lastBody = resp.StatusCode, body
		resp.Body.Close()

		if attempt >= policy.MaxAttempts {
			return nil, &ApiExhaustedError{Attempts: attempt, Status: lastStatus, Body: lastBody}
		}

		delay := policy.Delay(attempt)
		if ra := retryAfter(resp); ra > 0 {
			delay = ra
		}
		t.logRetry(req, attempt, resp.StatusCode, nil)
		t.waitFor(req, delay)

		if err := rewind(req); err != nil {
			return nil, err
		}
	}
}

func rewind(req *http.Request) error {
	if req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewind request body: %w", err)
	}
	req.Body = body
	return nil
}

func (t *RetryTransport) waitFor(req *http.Request, d time.Duration) {
	if t.sleep != nil {
		t.sleep(d)
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
	case <-timer.C:
	}
}

func (t *RetryTransport) logRetry(req *http.Request, attempt, status int, err error) {
	if t.OnRetry != nil {
		t.OnRetry(status)
	}
	if t.Logger == nil {
		return
	}
	ev := t.Logger.Warn().Int("attempt", attempt).Str("url", req.URL.Path)
	if status > 0 {
		ev = ev.Int("status", status)
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("sheets api retry")
}

func retryable(status int, body string) bool {
	switch {
	case status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	case status == http.StatusForbidden:
		for _, marker := range rateLimitMarkers {
			if strings.Contains(body, marker) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func retryAfter(resp *http.Response) time.Duration {
	raw := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if raw == "" {
		return 0
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func readAndRestore(resp *http.Response) (string, error) {
	if resp.Body == nil {
		return "", nil
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return string(data), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
