// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch retrieves web pages for search results and extracts their
// readable main text. A failed page never aborts a run; it comes back as a
// Document with a non-ok status.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-brief/internal/httputil"
	"github.com/pdiddy/research-brief/internal/retry"
	"github.com/pdiddy/research-brief/pkg/types"
)

// Fetcher downloads documents with a per-call timeout and a byte ceiling.
type Fetcher struct {
	Client *http.Client
	Config types.FetchConfig

	// Policy retries transient failures (timeouts, 429, 5xx).
	Policy retry.Policy

	// Concurrency bounds simultaneous fetches in FetchAll (default 4).
	Concurrency int

	Logger *zap.Logger

	mu     sync.Mutex
	robots map[string]*robotsEntry
}

// New returns a Fetcher with a short retry policy suited to page fetches.
func New(cfg types.FetchConfig, client *http.Client, concurrency int, log *zap.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{
		Client:      client,
		Config:      cfg,
		Policy:      retry.Policy{MaxAttempts: 2, BaseDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second},
		Concurrency: concurrency,
		Logger:      log,
	}
}

// FetchAll fetches every web record and returns one Document per input
// record, in input order. Academic records are returned as skipped.
func (f *Fetcher) FetchAll(ctx context.Context, records []types.SearchRecord) []types.Document {
	docs := make([]types.Document, len(records))
	limit := f.Concurrency
	if limit <= 0 {
		limit = 4
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, rec := range records {
		g.Go(func() error {
			if rec.SourceKind == types.SourceAcademic {
				docs[i] = skipped(rec, "academic record")
				return nil
			}
			docs[i] = f.Fetch(ctx, rec)
			return nil
		})
	}
	g.Wait()

	ok := 0
	for _, d := range docs {
		if d.Usable() {
			ok++
		}
	}
	f.logger().Info("fetched documents", zap.Int("requested", len(records)), zap.Int("usable", ok))
	return docs
}

// Fetch retrieves one page and extracts its text.
func (f *Fetcher) Fetch(ctx context.Context, rec types.SearchRecord) types.Document {
	log := f.logger().With(zap.String("url", rec.URL))

	u, err := url.Parse(rec.URL)
	if err != nil || u.Host == "" {
		return failed(rec, types.FetchHTTPError, fmt.Sprintf("invalid URL %q", rec.URL))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return skipped(rec, "unsupported scheme "+u.Scheme)
	}

	if f.Config.RespectRobots && !f.allowed(ctx, u) {
		log.Debug("disallowed by robots.txt")
		return skipped(rec, "disallowed by robots.txt")
	}

	raw, contentType, err := f.get(ctx, u)
	if err != nil {
		log.Debug("fetch failed", zap.Error(err))
		return failed(rec, types.FetchHTTPError, err.Error())
	}

	doc := types.Document{URL: rec.URL, Title: rec.Title, Raw: raw}

	kind := mediaType(contentType, raw)
	switch {
	case kind == "text/html" || kind == "application/xhtml+xml":
	case kind == "text/plain":
		text := normalizeText(string(decode(raw, contentType)))
		return f.finish(doc, text, "")
	default:
		doc.Status = types.FetchSkipped
		doc.Err = "unsupported content type " + kind
		return doc
	}

	title, text := ExtractText(string(decode(raw, contentType)), u, f.minChars())
	return f.finish(doc, text, title)
}

func (f *Fetcher) finish(doc types.Document, text, title string) types.Document {
	if title != "" {
		doc.Title = title
	}
	if n := len([]rune(text)); n < f.minChars() {
		doc.Status = types.FetchParseError
		doc.Err = fmt.Sprintf("extracted text too short (%d chars)", n)
		return doc
	}
	doc.CleanedText = text
	doc.Status = types.FetchOK
	return doc
}

// get downloads u under the retry policy, each attempt bounded by the
// configured timeout, and returns at most MaxBytes of the body.
func (f *Fetcher) get(ctx context.Context, u *url.URL) ([]byte, string, error) {
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	if f.Config.UserAgent != "" {
		req.Header.Set("User-Agent", f.Config.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	type page struct {
		body []byte
		ct   string
	}
	p, err := retry.Do(ctx, f.Policy, func(ctx context.Context) (page, error) {
		if f.Config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, f.Config.Timeout)
			defer cancel()
		}
		resp, err := httputil.Send(ctx, f.Client, req)
		if err != nil {
			return page{}, err
		}
		body, err := httputil.ReadLimited(resp, f.maxBytes())
		if err != nil {
			return page{}, retry.Transient(fmt.Errorf("reading body: %w", err))
		}
		return page{body: body, ct: resp.Header.Get("Content-Type")}, nil
	})
	return p.body, p.ct, err
}

func (f *Fetcher) maxBytes() int64 {
	if f.Config.MaxBytes <= 0 {
		return 2 << 20
	}
	return f.Config.MaxBytes
}

func (f *Fetcher) minChars() int {
	if f.Config.MinTextChars <= 0 {
		return 400
	}
	return f.Config.MinTextChars
}

func (f *Fetcher) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

// mediaType returns the lowercased media type, sniffing the body when the
// header is missing.
func mediaType(contentType string, body []byte) string {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mt
}

// decode converts body to UTF-8 using the declared or sniffed charset.
func decode(body []byte, contentType string) []byte {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return body
	}
	return out
}

func failed(rec types.SearchRecord, status types.FetchStatus, msg string) types.Document {
	return types.Document{URL: rec.URL, Title: rec.Title, Status: status, Err: msg}
}

func skipped(rec types.SearchRecord, reason string) types.Document {
	return failed(rec, types.FetchSkipped, reason)
}
