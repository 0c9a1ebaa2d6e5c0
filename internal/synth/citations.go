// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synth

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/research-brief/pkg/types"
)

// citeGroupRe matches numeric citation markers: [3], [1, 4], [2-5], [2–5].
var citeGroupRe = regexp.MustCompile(`\[\s*\d+(?:\s*[-–]\s*\d+)?(?:\s*,\s*\d+(?:\s*[-–]\s*\d+)?)*\s*\]`)

// spaceBeforePunctRe matches whitespace left in front of punctuation after
// a marker is removed.
var spaceBeforePunctRe = regexp.MustCompile(`\s+([.,;:!?])`)

// maxRangeExpansion bounds how many markers one [n-m] group may produce.
const maxRangeExpansion = 50

// Repair is the outcome of RepairCitations.
type Repair struct {
	Body       string
	References []types.Reference

	// Dropped counts markers that pointed outside the reference list.
	Dropped int

	// Uncited counts references removed because nothing cited them.
	Uncited int
}

// Cited reports whether any valid marker survived.
func (r Repair) Cited() bool { return len(r.References) > 0 }

// Warnings describes the repairs made, if any.
func (r Repair) Warnings() []string {
	var out []string
	if r.Dropped > 0 {
		out = append(out, fmt.Sprintf("dropped %d citation markers outside the reference list", r.Dropped))
	}
	if r.Uncited > 0 {
		out = append(out, fmt.Sprintf("removed %d uncited references", r.Uncited))
	}
	return out
}

// RepairCitations normalizes grouped markers to single ones, drops markers
// outside 1..len(refs), and renumbers the survivors by first appearance.
// The returned references are exactly the cited ones, so the set of
// markers in Body equals {1..len(References)}.
func RepairCitations(body string, refs []types.Reference) Repair {
	var (
		b       strings.Builder
		out     Repair
		renum   = make(map[int]int)
		ordered []types.Reference
		last    int
	)

	for _, loc := range citeGroupRe.FindAllStringIndex(body, -1) {
		b.WriteString(body[last:loc[0]])
		last = loc[1]

		var kept []int
		seen := make(map[int]bool)
		for _, n := range expandGroup(body[loc[0]+1 : loc[1]-1]) {
			if n < 1 || n > len(refs) {
				out.Dropped++
				continue
			}
			if seen[n] {
				continue
			}
			seen[n] = true
			kept = append(kept, n)
		}

		if len(kept) == 0 {
			trimTrailingSpace(&b)
			continue
		}
		for _, old := range kept {
			idx, ok := renum[old]
			if !ok {
				idx = len(ordered) + 1
				renum[old] = idx
				ref := refs[old-1]
				ref.Index = idx
				ordered = append(ordered, ref)
			}
			fmt.Fprintf(&b, "[%d]", idx)
		}
	}
	b.WriteString(body[last:])

	out.Body = strings.TrimSpace(b.String())
	out.References = ordered
	out.Uncited = len(refs) - len(ordered)
	return out
}

// expandGroup turns "1, 3-5" into [1 3 4 5]. Ranges are expanded in
// ascending order and capped at maxRangeExpansion entries.
func expandGroup(inner string) []int {
	var out []int
	for _, part := range strings.Split(inner, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(strings.ReplaceAll(part, "–", "-"), "-")
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			continue
		}
		if !isRange {
			out = append(out, a)
			continue
		}
		z, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			out = append(out, a)
			continue
		}
		if z < a {
			a, z = z, a
		}
		for n := a; n <= z && n-a < maxRangeExpansion; n++ {
			out = append(out, n)
		}
	}
	return out
}

// StripMarkers removes citation markers from text that must not carry
// its own, such as note text quoted into a fallback body.
func StripMarkers(text string) string {
	s := strings.Join(strings.Fields(citeGroupRe.ReplaceAllString(text, "")), " ")
	return spaceBeforePunctRe.ReplaceAllString(s, "$1")
}

// Markers returns the distinct marker numbers in body in first-appearance
// order, after group expansion.
func Markers(body string) []int {
	var out []int
	seen := make(map[int]bool)
	for _, m := range citeGroupRe.FindAllString(body, -1) {
		for _, n := range expandGroup(m[1 : len(m)-1]) {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

func trimTrailingSpace(b *strings.Builder) {
	s := b.String()
	t := strings.TrimRight(s, " \t")
	if len(t) != len(s) {
		b.Reset()
		b.WriteString(t)
	}
}
