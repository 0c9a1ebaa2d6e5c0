// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// NoteKind categorizes an extracted note.
type NoteKind string

const (
	NoteClaim     NoteKind = "claim"
	NoteDataPoint NoteKind = "data_point"
	NoteQuote     NoteKind = "quote"
)

// Priority orders kinds for budget truncation. Lower values are dropped first.
func (k NoteKind) Priority() int {
	switch k {
	case NoteClaim:
		return 3
	case NoteDataPoint:
		return 2
	case NoteQuote:
		return 1
	default:
		return 0
	}
}

// Note is a single provenance-tagged fact extracted from one source.
type Note struct {
	// Text is the claim, data point, or quote.
	Text string `json:"text" yaml:"text"`

	// Kind is claim, data_point, or quote.
	Kind NoteKind `json:"kind" yaml:"kind"`

	// SourceURL is mandatory and always names a source that was retrieved.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// SourceTitle is carried for the reference list.
	SourceTitle string `json:"source_title,omitempty" yaml:"source_title,omitempty"`

	// EstimatedTokens is the approximate token cost of Text.
	EstimatedTokens int `json:"estimated_tokens" yaml:"estimated_tokens"`

	// Sequence is strictly increasing in processing order.
	Sequence int `json:"sequence" yaml:"sequence"`
}

// TokenBudget is a snapshot of the per-run token counter.
type TokenBudget struct {
	SoftCap  int `json:"soft_cap" yaml:"soft_cap"`
	HardCap  int `json:"hard_cap" yaml:"hard_cap"`
	Consumed int `json:"consumed" yaml:"consumed"`

	// Approaching is set once Consumed passes SoftCap.
	Approaching bool `json:"approaching,omitempty" yaml:"approaching,omitempty"`

	// Exhausted is set when the hard cap stopped extraction.
	Exhausted bool `json:"exhausted,omitempty" yaml:"exhausted,omitempty"`
}
