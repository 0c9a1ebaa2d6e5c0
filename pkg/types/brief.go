// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Reference is one numbered entry in a brief's reference list. Index is
// 1-based and matches the [n] markers in the body.
type Reference struct {
	Index int    `json:"index" yaml:"index"`
	URL   string `json:"url" yaml:"url"`
	Title string `json:"title" yaml:"title"`
}

// Brief is the synthesized, cited markdown document. Every [n] marker in
// Body has References[n-1], and every reference is cited at least once.
type Brief struct {
	Body       string      `json:"body_markdown" yaml:"body_markdown"`
	References []Reference `json:"references" yaml:"references"`

	// Themes and Gaps are set only for literature reviews.
	Themes []string `json:"themes,omitempty" yaml:"themes,omitempty"`
	Gaps   []string `json:"gaps,omitempty" yaml:"gaps,omitempty"`

	// Warnings lists repairs and degradations applied during synthesis.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Plan is the planner output: sub-questions plus the queries to run.
type Plan struct {
	SubQuestions []string `json:"sub_questions" yaml:"sub_questions"`
	Queries      []Query  `json:"queries" yaml:"queries"`

	// Original is the topic as given; Translated is its English form when a
	// translation was made (empty otherwise).
	Original   string `json:"original" yaml:"original"`
	Translated string `json:"translated,omitempty" yaml:"translated,omitempty"`

	// Degraded is set when planning fell back to the raw topic.
	Degraded bool     `json:"degraded,omitempty" yaml:"degraded,omitempty"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// AcademicQuery returns the text used for academic search: the English
// translation when there is one, the original topic otherwise.
func (p Plan) AcademicQuery() string {
	if p.Translated != "" {
		return p.Translated
	}
	return p.Original
}

// LiteratureReview is the output of the academic review entry point.
type LiteratureReview struct {
	// Papers is the deduplicated, citation-ranked paper list.
	Papers []SearchRecord `json:"papers" yaml:"papers"`

	// Brief holds the synthesis body, references, themes, and gaps.
	Brief Brief `json:"brief" yaml:"brief"`

	// SearchQuery is the English query sent to the academic backends.
	SearchQuery string `json:"search_query" yaml:"search_query"`

	DuplicatesRemoved int      `json:"duplicates_removed" yaml:"duplicates_removed"`
	BackendErrors     []string `json:"backend_errors,omitempty" yaml:"backend_errors,omitempty"`
}

// Themes returns the review themes.
func (r LiteratureReview) Themes() []string { return r.Brief.Themes }

// Gaps returns the review research gaps.
func (r LiteratureReview) Gaps() []string { return r.Brief.Gaps }
