package sheets

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"
)

type scriptedResponse struct {
	status     int
	body       string
	retryAfter string
}

// scriptedTransport replays a fixed sequence of responses; the last one
// repeats if the sequence runs out.
type scriptedTransport struct {
	responses []scriptedResponse
	calls     int
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	r := s.responses[idx]

	resp := &http.Response{
		StatusCode: r.status,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader([]byte(r.body))),
		Request:    req,
	}
	if r.retryAfter != "" {
		resp.Header.Set("Retry-After", r.retryAfter)
	}
	return resp, nil
}

func newTransport(base *scriptedTransport) (*RetryTransport, *[]time.Duration) {
	var slept []time.Duration
	t := &RetryTransport{
		Base: base,
		Policy: RetryPolicy{
			MaxAttempts: 6,
			BaseDelay:   time.Millisecond,
			MaxDelay:    time.Second,
		},
		sleep: func(d time.Duration) { slept = append(slept, d) },
	}
	return t, &slept
}

func doGet(t *testing.T, rt *RetryTransport) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "https://sheets.example/v4/spreadsheets/x/values/A1", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return rt.RoundTrip(req)
}

func TestRetryOn429ThenSuccess(t *testing.T) {
	base := &scriptedTransport{responses: []scriptedResponse{
		{status: 429, body: "slow down"},
		{status: 429, body: "slow down"},
		{status: 200, body: "ok"},
	}}
	rt, slept := newTransport(base)

	resp, err := doGet(t, rt)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if base.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", base.calls)
	}
	if len(*slept) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(*slept))
	}
}

func TestRetryOn5xx(t *testing.T) {
	base := &scriptedTransport{responses: []scriptedResponse{
		{status: 503, body: "unavailable"},
		{status: 200, body: "ok"},
	}}
	rt, _ := newTransport(base)

	resp, err := doGet(t, rt)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	resp.Body.Close()
	if base.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", base.calls)
	}
}

func TestForbiddenFatalWithoutMarker(t *testing.T) {
	base := &scriptedTransport{responses: []scriptedResponse{
		{status: 403, body: `{"error":{"message":"The caller does not have permission"}}`},
	}}
	rt, slept := newTransport(base)

	resp, err := doGet(t, rt)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 403 {
		t.Fatalf("expected 403 passed through, got %d", resp.StatusCode)
	}
	if base.calls != 1 {
		t.Fatalf("plain 403 must not retry, got %d calls", base.calls)
	}
	if len(*slept) != 0 {
		t.Fatalf("plain 403 must not sleep")
	}
}

func TestForbiddenRetriesWithRateLimitMarker(t *testing.T) {
	base := &scriptedTransport{responses: []scriptedResponse{
		{status: 403, body: `{"error":{"errors":[{"reason":"rateLimitExceeded"}]}}`},
		{status: 200, body: "ok"},
	}}
	rt, _ := newTransport(base)

	resp, err := doGet(t, rt)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	resp.Body.Close()
	if base.calls != 2 {
		t.Fatalf("expected retry on rate-limited 403, got %d calls", base.calls)
	}
}

func TestRetryAfterHeaderWins(t *testing.T) {
	base := &scriptedTransport{responses: []scriptedResponse{
		{status: 429, body: "slow down", retryAfter: "7"},
		{status: 200, body: "ok"},
	}}
	rt, slept := newTransport(base)

	resp, err := doGet(t, rt)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	resp.Body.Close()

	if len(*slept) != 1 || (*slept)[0] != 7*time.Second {
		t.Fatalf("expected single 7s sleep, got %v", *slept)
	}
}

func TestExhaustedAfterMaxAttempts(t *testing.T) {
	base := &scriptedTransport{responses: []scriptedResponse{
		{status: 429, body: "always throttled"},
	}}
	rt, slept := newTransport(base)

	_, err := doGet(t, rt)
	if err == nil {
		t.Fatalf("expected exhaustion error")
	}

	var exhausted *ApiExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ApiExhaustedError, got %T: %v", err, err)
	}
	if exhausted.Attempts != 6 || exhausted.Status != 429 {
		t.Fatalf("unexpected error detail: %+v", exhausted)
	}
	if base.calls != 6 {
		t.Fatalf("expected exactly 6 calls, got %d", base.calls)
	}
	if len(*slept) != 5 {
		t.Fatalf("expected 5 sleeps between 6 attempts, got %d", len(*slept))
	}
}

func TestDelayFormulaCapped(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 6, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second, Jitter: 300 * time.Millisecond}

	d1 := p.Delay(1)
	if d1 < time.Second || d1 > time.Second+300*time.Millisecond {
		t.Fatalf("attempt 1 delay out of band: %v", d1)
	}

	d10 := p.Delay(10)
	if d10 != 30*time.Second {
		t.Fatalf("expected cap at 30s, got %v", d10)
	}
}

func TestResponseBodyRestored(t *testing.T) {
	base := &scriptedTransport{responses: []scriptedResponse{
		{status: 200, body: `{"values":[["a"]]}`},
	}}
	rt, _ := newTransport(base)

	resp, err := doGet(t, rt)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != `{"values":[["a"]]}` {
		t.Fatalf("body not restored after classification read: %q", data)
	}
}
