// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedup merges academic records that describe the same paper and
// ranks the survivors by citation count.
package dedup

import (
	"sort"
	"strings"
	"unicode"

	"github.com/pdiddy/research-brief/pkg/types"
)

// DefaultMaxPapers caps the deduplicated paper list.
const DefaultMaxPapers = 10

// Papers collapses records sharing a normalized DOI, or an identical
// normalized title when there is no DOI. Within a group the record with
// more citations wins; on a tie the earlier record wins, so backend order
// decides. The result is sorted by citation count descending with unknown
// counts last, stable otherwise, and capped at maxPapers. It also returns
// how many records were dropped as duplicates.
func Papers(records []types.SearchRecord, maxPapers int) ([]types.SearchRecord, int) {
	if maxPapers <= 0 {
		maxPapers = DefaultMaxPapers
	}

	seen := make(map[string]int) // dedup key → index in kept
	var kept []types.SearchRecord
	removed := 0

	for _, r := range records {
		key := Key(r)
		if key == "" {
			kept = append(kept, r)
			continue
		}
		if idx, ok := seen[key]; ok {
			removed++
			if r.Citations() > kept[idx].Citations() {
				kept[idx] = r
			}
			continue
		}
		seen[key] = len(kept)
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Citations() > kept[j].Citations()
	})
	if len(kept) > maxPapers {
		kept = kept[:maxPapers]
	}
	return kept, removed
}

// URLs drops web records whose URL was already seen, keeping the first.
func URLs(records []types.SearchRecord) []types.SearchRecord {
	seen := make(map[string]bool)
	var out []types.SearchRecord
	for _, r := range records {
		key := NormalizeURL(r.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// Key returns the dedup key of a record: "doi:" plus the normalized DOI,
// else "title:" plus the normalized title, else "".
func Key(r types.SearchRecord) string {
	if doi := NormalizeDOI(r.DOI); doi != "" {
		return "doi:" + doi
	}
	if t := NormalizeTitle(r.Title); t != "" {
		return "title:" + t
	}
	return ""
}

// NormalizeDOI lowercases a DOI and strips resolver and scheme prefixes.
func NormalizeDOI(doi string) string {
	d := strings.ToLower(strings.TrimSpace(doi))
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		d = strings.TrimPrefix(d, prefix)
	}
	return strings.TrimSpace(d)
}

// NormalizeTitle lowercases a title and collapses whitespace. Punctuation
// is kept: titles that differ only in punctuation are different papers.
func NormalizeTitle(title string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(title), unicode.IsSpace), " ")
}

// NormalizeURL lowercases scheme and host and drops the fragment and a
// trailing slash.
func NormalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	if i := strings.Index(u, "://"); i >= 0 {
		rest := u[i+3:]
		host, path, _ := strings.Cut(rest, "/")
		u = strings.ToLower(u[:i+3]+host) + "/" + path
	}
	return strings.TrimSuffix(u, "/")
}
