// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/research-brief/internal/httputil"
	"github.com/pdiddy/research-brief/internal/retry"
)

// maxResponseBytes bounds a backend's JSON response.
const maxResponseBytes = 8 << 20

// doJSON sends req under policy p and decodes the JSON body into v. When
// lim is set every attempt waits for a token first, so retries are paced
// too. A positive timeout bounds each attempt, not the limiter wait or the
// backoff between attempts; an attempt that runs out of time is retried.
func doJSON(ctx context.Context, client *http.Client, req *http.Request, p retry.Policy, lim *rate.Limiter, timeout time.Duration, v any) error {
	_, err := retry.Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return struct{}{}, err
			}
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		resp, err := httputil.Send(ctx, client, req)
		if err != nil {
			return struct{}{}, err
		}
		body, err := httputil.ReadLimited(resp, maxResponseBytes)
		if err != nil {
			return struct{}{}, retry.Transient(fmt.Errorf("reading response: %w", err))
		}
		if err := json.Unmarshal(body, v); err != nil {
			return struct{}{}, retry.Permanent(fmt.Errorf("parsing response: %w", err))
		}
		return struct{}{}, nil
	})
	return err
}
