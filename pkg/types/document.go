// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// FetchStatus records the outcome of fetching one document.
type FetchStatus string

const (
	FetchOK         FetchStatus = "ok"
	FetchHTTPError  FetchStatus = "http_error"
	FetchParseError FetchStatus = "parse_error"
	FetchSkipped    FetchStatus = "skipped"
)

// Document is a fetched web page. It is created once by the fetcher and
// never modified afterwards.
type Document struct {
	// URL is the requested URL.
	URL string `json:"url" yaml:"url"`

	// Title is the extracted page title, falling back to the search title.
	Title string `json:"title" yaml:"title"`

	// Raw is the (size-capped) response body.
	Raw []byte `json:"-" yaml:"-"`

	// CleanedText is the readable main text. Empty unless Status is ok.
	CleanedText string `json:"cleaned_text,omitempty" yaml:"cleaned_text,omitempty"`

	// Status is ok, http_error, parse_error, or skipped.
	Status FetchStatus `json:"status" yaml:"status"`

	// Err describes why the document is unusable.
	Err string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Usable reports whether the document may feed note extraction.
func (d Document) Usable() bool {
	return d.Status == FetchOK && d.CleanedText != ""
}

// Source is anything notes can be extracted from: a fetched document, an
// academic abstract, or user-supplied context text.
type Source struct {
	// URL is the provenance every note from this source carries.
	URL string `json:"url" yaml:"url"`

	// Title is shown in the reference list.
	Title string `json:"title" yaml:"title"`

	// Text is the content handed to the extraction model.
	Text string `json:"-" yaml:"-"`
}
