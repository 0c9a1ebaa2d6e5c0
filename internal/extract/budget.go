// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/pdiddy/research-brief/pkg/types"
)

// CharsPerToken approximates how many characters make one model token.
// It overestimates for dense scripts and underestimates for code, which is
// acceptable for budgeting.
const CharsPerToken = 4

// EstimateTokens returns ceil(runes/CharsPerToken).
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// Budget is the per-run token counter. Only the extraction coordinator
// mutates it; Snapshot may be called from anywhere.
type Budget struct {
	mu          sync.Mutex
	soft, hard  int
	consumed    int
	approaching bool
	exhausted   bool
}

// NewBudget returns an empty budget with the given caps.
func NewBudget(soft, hard int) *Budget {
	return &Budget{soft: soft, hard: hard}
}

// Admit accepts as many of notes as fit under the hard cap. If all fit
// they are all accepted. Otherwise the lowest-priority notes are dropped
// (quotes, then data points, then claims, each from the tail) until the
// rest fits, and stop is true: no further sources should be processed.
func (b *Budget) Admit(notes []types.Note) (accepted []types.Note, stop bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.exhausted {
		return nil, true
	}

	total := 0
	for _, n := range notes {
		total += n.EstimatedTokens
	}
	if b.consumed+total <= b.hard {
		b.consume(total)
		return notes, false
	}

	kept := make([]types.Note, len(notes))
	copy(kept, notes)
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Kind.Priority() > kept[j].Kind.Priority()
	})
	for len(kept) > 0 && b.consumed+total > b.hard {
		total -= kept[len(kept)-1].EstimatedTokens
		kept = kept[:len(kept)-1]
	}
	b.consume(total)
	b.exhausted = true
	return kept, true
}

func (b *Budget) consume(n int) {
	b.consumed += n
	if b.consumed > b.soft {
		b.approaching = true
	}
}

// Snapshot returns the current budget state.
func (b *Budget) Snapshot() types.TokenBudget {
	b.mu.Lock()
	defer b.mu.Unlock()
	return types.TokenBudget{
		SoftCap:     b.soft,
		HardCap:     b.hard,
		Consumed:    b.consumed,
		Approaching: b.approaching,
		Exhausted:   b.exhausted,
	}
}
