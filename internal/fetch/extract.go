// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reBlockOpen  = regexp.MustCompile(`<(div|p|br|li|td|tr|h[1-6]|blockquote|pre)(\s[^>]*)?/?>`)
	reBlockClose = regexp.MustCompile(`</(div|p|li|td|tr|h[1-6]|blockquote|pre)>`)
)

// boilerplate is removed before the density fallback looks at the page.
const boilerplate = "script, style, noscript, nav, header, footer, aside, form, iframe, svg"

// blocks are the elements the density fallback scores.
const blocks = "p, li, blockquote, pre, td, h1, h2, h3, h4, h5, h6"

// minBlockChars is the shortest block the density fallback keeps.
const minBlockChars = 40

// maxLinkDensity is the highest share of link text a kept block may have.
const maxLinkDensity = 0.5

// ExtractText returns the page title and readable main text of an HTML
// page. It tries readability first and falls back to a content-density
// pass over block elements when readability yields fewer than minChars.
func ExtractText(html string, pageURL *url.URL, minChars int) (title, text string) {
	if article, err := readability.FromReader(strings.NewReader(html), pageURL); err == nil {
		title = strings.TrimSpace(article.Title)
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(spaceBlocks(article.Content))); err == nil {
			text = normalizeText(doc.Text())
		}
	}
	if len([]rune(text)) >= minChars {
		return title, text
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return title, text
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if dense := densityText(doc); len([]rune(dense)) > len([]rune(text)) {
		text = dense
	}
	return title, text
}

// densityText keeps innermost block elements with enough text and little
// link text, in document order.
func densityText(doc *goquery.Document) string {
	doc.Find(boilerplate).Remove()

	var parts []string
	doc.Find(blocks).Each(func(_ int, s *goquery.Selection) {
		if s.Find(blocks).Length() > 0 {
			return
		}
		t := normalizeText(s.Text())
		n := len([]rune(t))
		if n < minBlockChars {
			return
		}
		linkChars := 0
		s.Find("a").Each(func(_ int, a *goquery.Selection) {
			linkChars += len([]rune(normalizeText(a.Text())))
		})
		if float64(linkChars)/float64(n) > maxLinkDensity {
			return
		}
		parts = append(parts, t)
	})
	return strings.Join(parts, "\n\n")
}

// spaceBlocks pads block tags with spaces so goquery's Text does not glue
// neighbouring paragraphs together.
func spaceBlocks(html string) string {
	html = reBlockOpen.ReplaceAllString(html, " $0")
	return reBlockClose.ReplaceAllString(html, "$0 ")
}

// normalizeText drops control characters and collapses whitespace.
func normalizeText(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}
