// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/research-brief/internal/retry"
)

// maxErrorBody bounds how much of a failed response is kept for the error message.
const maxErrorBody = 512

// StatusError reports a non-2xx HTTP response. 408, 429 and 5xx responses
// are transient; every other status is permanent.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Unwrap exposes the error class so errors.Is(err, retry.ErrTransient) works.
func (e *StatusError) Unwrap() error {
	if e.Transient() {
		return retry.ErrTransient
	}
	return retry.ErrPermanent
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// RetryDelay implements retry.DelayHinter.
func (e *StatusError) RetryDelay() time.Duration { return e.RetryAfter }

// Do sends req under policy p and returns the first 2xx response. The
// caller closes its body. Request bodies are replayed through req.GetBody,
// so build req with http.NewRequest over a bytes.Reader or strings.Reader.
func Do(ctx context.Context, client *http.Client, req *http.Request, p retry.Policy) (*http.Response, error) {
	return retry.Do(ctx, p, func(ctx context.Context) (*http.Response, error) {
		return Send(ctx, client, req)
	})
}

// Send makes a single attempt. Non-2xx responses are drained, closed, and
// turned into *StatusError; transport failures are classed transient.
func Send(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	r := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, retry.Permanent(fmt.Errorf("rewinding request body: %w", err))
		}
		r.Body = body
	}

	resp, err := client.Do(r)
	if err != nil {
		return nil, retry.Transient(err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil, &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

// ReadLimited reads at most limit bytes of resp's body and closes it.
func ReadLimited(resp *http.Response, limit int64) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
