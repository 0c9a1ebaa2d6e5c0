// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-brief/internal/retry"
	"github.com/pdiddy/research-brief/pkg/types"
)

const paragraph = "The central bank raised its policy rate by 200 basis points to 13 percent, citing persistent inflation driven by food and fuel prices across the country. "

func articleHTML(title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body>", title)
	b.WriteString(`<nav><a href="/">Home</a> <a href="/about">About</a></nav><article><h1>` + title + `</h1>`)
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&b, "<p>%d. %s</p>", i, paragraph)
	}
	b.WriteString(`</article><footer>Copyright</footer></body></html>`)
	return b.String()
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articleHTML("Policy Rate Decision"))
	})
	mux.HandleFunc("/private/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articleHTML("Secret"))
	})
	mux.HandleFunc("/short", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><p>Too short.</p></body></html>")
	})
	mux.HandleFunc("/report.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4")
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, strings.Repeat(paragraph, 4))
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1252")
		body := "<html><head><title>Caf\xe9</title></head><body><article>"
		for i := 0; i < 5; i++ {
			body += "<p>Le caf\xe9 est une boisson populaire. " + paragraph + "</p>"
		}
		body += "</article></body></html>"
		w.Write([]byte(body))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func testFetcher(ts *httptest.Server) *Fetcher {
	f := New(types.FetchConfig{
		HTTPConfig:   types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "research-brief-test"},
		MaxBytes:     2 << 20,
		MinTextChars: 400,
	}, ts.Client(), 4, nil)
	f.Policy = retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	return f
}

func rec(u string) types.SearchRecord {
	return types.SearchRecord{URL: u, Title: "search title", SourceKind: types.SourceWeb}
}

func TestFetch_Article(t *testing.T) {
	ts := newTestServer(t)
	doc := testFetcher(ts).Fetch(context.Background(), rec(ts.URL+"/article"))

	require.Equal(t, types.FetchOK, doc.Status, doc.Err)
	assert.True(t, doc.Usable())
	assert.Equal(t, "Policy Rate Decision", doc.Title)
	assert.Contains(t, doc.CleanedText, "raised its policy rate by 200 basis points")
	assert.NotContains(t, doc.CleanedText, "\n\n\n")
	assert.NotEmpty(t, doc.Raw)
}

func TestFetch_ShortIsParseError(t *testing.T) {
	ts := newTestServer(t)
	doc := testFetcher(ts).Fetch(context.Background(), rec(ts.URL+"/short"))
	assert.Equal(t, types.FetchParseError, doc.Status)
	assert.Empty(t, doc.CleanedText)
	assert.Contains(t, doc.Err, "too short")
}

func TestFetch_NonHTMLSkipped(t *testing.T) {
	ts := newTestServer(t)
	doc := testFetcher(ts).Fetch(context.Background(), rec(ts.URL+"/report.pdf"))
	assert.Equal(t, types.FetchSkipped, doc.Status)
	assert.Contains(t, doc.Err, "application/pdf")
}

func TestFetch_PlainText(t *testing.T) {
	ts := newTestServer(t)
	doc := testFetcher(ts).Fetch(context.Background(), rec(ts.URL+"/plain"))
	require.Equal(t, types.FetchOK, doc.Status, doc.Err)
	assert.Equal(t, "search title", doc.Title)
}

func TestFetch_NotFoundIsHTTPError(t *testing.T) {
	ts := newTestServer(t)
	doc := testFetcher(ts).Fetch(context.Background(), rec(ts.URL+"/missing"))
	assert.Equal(t, types.FetchHTTPError, doc.Status)
	assert.Contains(t, doc.Err, "HTTP 404")
}

func TestFetch_RetriesTransient(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articleHTML("Second Try"))
	}))
	defer ts.Close()

	doc := testFetcher(ts).Fetch(context.Background(), rec(ts.URL))
	assert.Equal(t, types.FetchOK, doc.Status, doc.Err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_Charset(t *testing.T) {
	ts := newTestServer(t)
	doc := testFetcher(ts).Fetch(context.Background(), rec(ts.URL+"/latin1"))
	require.Equal(t, types.FetchOK, doc.Status, doc.Err)
	assert.Contains(t, doc.CleanedText, "café")
}

func TestFetch_RobotsDisallow(t *testing.T) {
	ts := newTestServer(t)
	f := testFetcher(ts)
	f.Config.RespectRobots = true

	doc := f.Fetch(context.Background(), rec(ts.URL+"/private/page"))
	assert.Equal(t, types.FetchSkipped, doc.Status)
	assert.Contains(t, doc.Err, "robots.txt")

	doc = f.Fetch(context.Background(), rec(ts.URL+"/article"))
	assert.Equal(t, types.FetchOK, doc.Status, doc.Err)
}

func TestLoadRobots_ByteCeiling(t *testing.T) {
	robots := "User-agent: *\n" + strings.Repeat("# padding\n", 200) + "Disallow: /\n"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, robots)
	}))
	defer ts.Close()

	f := testFetcher(ts)
	f.Config.MaxBytes = 512
	group := f.loadRobots(context.Background(), ts.URL)
	require.NotNil(t, group)
	assert.True(t, group.Test("/article"), "rules past the byte ceiling must not be read")

	f.Config.MaxBytes = 1 << 20
	group = f.loadRobots(context.Background(), ts.URL)
	require.NotNil(t, group)
	assert.False(t, group.Test("/article"))
}

func TestFetch_ByteCeiling(t *testing.T) {
	ts := newTestServer(t)
	f := testFetcher(ts)
	f.Config.MaxBytes = 256

	doc := f.Fetch(context.Background(), rec(ts.URL+"/article"))
	assert.LessOrEqual(t, len(doc.Raw), 256)
	assert.Equal(t, types.FetchParseError, doc.Status)
}

func TestFetch_BadURL(t *testing.T) {
	f := New(types.FetchConfig{}, nil, 1, nil)
	assert.Equal(t, types.FetchHTTPError, f.Fetch(context.Background(), rec("::not a url")).Status)
	assert.Equal(t, types.FetchSkipped, f.Fetch(context.Background(), rec("ftp://example.com/x")).Status)
}

func TestFetchAll_PreservesOrder(t *testing.T) {
	ts := newTestServer(t)
	records := []types.SearchRecord{
		rec(ts.URL + "/short"),
		rec(ts.URL + "/article"),
		{URL: "https://doi.org/10.1/x", SourceKind: types.SourceAcademic},
		rec(ts.URL + "/report.pdf"),
		rec(ts.URL + "/missing"),
	}
	docs := testFetcher(ts).FetchAll(context.Background(), records)

	require.Len(t, docs, len(records))
	for i, d := range docs {
		assert.Equal(t, records[i].URL, d.URL)
	}
	assert.Equal(t, types.FetchParseError, docs[0].Status)
	assert.Equal(t, types.FetchOK, docs[1].Status)
	assert.Equal(t, types.FetchSkipped, docs[2].Status)
	assert.Equal(t, types.FetchSkipped, docs[3].Status)
	assert.Equal(t, types.FetchHTTPError, docs[4].Status)
}

func TestDensityText(t *testing.T) {
	html := `<html><body>
		<nav><p>Navigation paragraph that is long enough to be kept if it were content.</p></nav>
		<div><p>` + paragraph + `</p>
		<ul><li><a href="/a">A very long link text that dominates this list item entirely</a></li></ul>
		<p>short</p>
		<script>var x = "script text that should never appear in the output at all";</script>
		</div></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	got := densityText(doc)
	assert.Equal(t, strings.TrimSpace(paragraph), got)
}

func TestExtractText_FallsBackToDensity(t *testing.T) {
	u, _ := url.Parse("https://example.com/x")
	title, text := ExtractText(articleHTML("Fallback"), u, 400)
	assert.NotEmpty(t, title)
	assert.GreaterOrEqual(t, len([]rune(text)), 400)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "a b c", normalizeText("  a\n\n b\t\x00c "))
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "text/html", mediaType("text/html; charset=utf-8", nil))
	assert.Equal(t, "application/pdf", mediaType("Application/PDF", nil))
	assert.Equal(t, "text/html", mediaType("", []byte("<!DOCTYPE html><html></html>")))
}
