// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synth

import (
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/research-brief/pkg/types"
)

// labels holds the display strings for one output language.
type labels struct {
	Name           string
	LitReview      string
	SearchQuery    string
	PapersFound    string
	Papers         string
	Authors        string
	Year           string
	Citations      string
	Source         string
	Venue          string
	Abstract       string
	Synthesis      string
	KeyThemes      string
	ResearchGaps   string
	References     string
	UnknownAuthors string
}

var languageLabels = map[string]labels{
	"en": {
		Name:           "English",
		LitReview:      "Literature Review",
		SearchQuery:    "Search query",
		PapersFound:    "Academic Papers Found",
		Papers:         "papers",
		Authors:        "Authors",
		Year:           "Year",
		Citations:      "Citations",
		Source:         "Source",
		Venue:          "Venue",
		Abstract:       "Abstract",
		Synthesis:      "Synthesis",
		KeyThemes:      "Key Themes",
		ResearchGaps:   "Research Gaps",
		References:     "References",
		UnknownAuthors: "Unknown",
	},
	"mn": {
		Name:           "Mongolian",
		LitReview:      "Уран зохиолын тойм",
		SearchQuery:    "Хайлтын түлхүүр үг",
		PapersFound:    "Олдсон эрдэм шинжилгээний өгүүлэл",
		Papers:         "өгүүлэл",
		Authors:        "Зохиогчид",
		Year:           "Он",
		Citations:      "Эшлэл",
		Source:         "Эх сурвалж",
		Venue:          "Хэвлэл",
		Abstract:       "Хураангуй",
		Synthesis:      "Нэгтгэл",
		KeyThemes:      "Гол сэдвүүд",
		ResearchGaps:   "Судалгааны цоорхой",
		References:     "Ном зүй",
		UnknownAuthors: "Тодорхойгүй",
	},
}

func labelsFor(lang string) labels {
	if l, ok := languageLabels[strings.ToLower(lang)]; ok {
		return l
	}
	return languageLabels["en"]
}

// LanguageName returns the English name of a language tag for prompts.
// Unknown tags are returned unchanged; empty means English.
func LanguageName(lang string) string {
	if lang == "" {
		return "English"
	}
	if l, ok := languageLabels[strings.ToLower(lang)]; ok {
		return l.Name
	}
	return lang
}

const (
	maxDisplayAuthors  = 3
	maxDisplayAbstract = 400
)

// FormatReview writes review as markdown with labels in lang ("mn" or
// "en"; anything else falls back to English).
func FormatReview(w io.Writer, review types.LiteratureReview, lang string) error {
	l := labelsFor(lang)
	var b strings.Builder

	fmt.Fprintf(&b, "## %s\n\n", l.LitReview)
	if review.SearchQuery != "" {
		fmt.Fprintf(&b, "**%s:** %s\n\n", l.SearchQuery, review.SearchQuery)
	}

	fmt.Fprintf(&b, "### %s (%d %s)\n\n", l.PapersFound, len(review.Papers), l.Papers)
	for i, p := range review.Papers {
		title := p.Title
		if title == "" {
			title = "Untitled"
		}
		authors := formatAuthors(p.Authors)
		if authors == "" {
			authors = l.UnknownAuthors
		}
		year := "N/A"
		if y := p.Year(); y > 0 {
			year = fmt.Sprint(y)
		}
		cites := p.Citations()
		if cites < 0 {
			cites = 0
		}

		fmt.Fprintf(&b, "#### %d. %s\n\n", i+1, title)
		fmt.Fprintf(&b, "- **%s:** %s\n", l.Authors, authors)
		fmt.Fprintf(&b, "- **%s:** %s | **%s:** %d | **%s:** %s\n", l.Year, year, l.Citations, cites, l.Source, p.Backend)
		if p.Venue != "" {
			fmt.Fprintf(&b, "- **%s:** %s\n", l.Venue, p.Venue)
		}
		if p.DOI != "" {
			fmt.Fprintf(&b, "- **DOI:** [%s](https://doi.org/%s)\n", p.DOI, p.DOI)
		} else if p.URL != "" {
			fmt.Fprintf(&b, "- **URL:** %s\n", p.URL)
		}
		if p.Snippet != "" {
			fmt.Fprintf(&b, "- **%s:** %s\n", l.Abstract, truncateRunes(p.Snippet, maxDisplayAbstract, "..."))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "---\n\n### %s\n\n%s\n\n", l.Synthesis, review.Brief.Body)

	if len(review.Brief.References) > 0 {
		fmt.Fprintf(&b, "#### %s\n\n", l.References)
		for _, r := range review.Brief.References {
			fmt.Fprintf(&b, "[%d] %s. %s\n", r.Index, r.Title, r.URL)
		}
		b.WriteString("\n")
	}
	if len(review.Brief.Themes) > 0 {
		fmt.Fprintf(&b, "### %s\n\n", l.KeyThemes)
		for _, t := range review.Brief.Themes {
			fmt.Fprintf(&b, "- %s\n", t)
		}
		b.WriteString("\n")
	}
	if len(review.Brief.Gaps) > 0 {
		fmt.Fprintf(&b, "### %s\n\n", l.ResearchGaps)
		for _, g := range review.Brief.Gaps {
			fmt.Fprintf(&b, "- %s\n", g)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// formatAuthors joins up to three names, adding "et al." beyond that.
func formatAuthors(authors []string) string {
	if len(authors) > maxDisplayAuthors {
		return strings.Join(authors[:maxDisplayAuthors], ", ") + " et al."
	}
	return strings.Join(authors, ", ")
}

// truncateRunes cuts s to n runes and appends suffix when it was cut.
func truncateRunes(s string, n int, suffix string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + suffix
}
