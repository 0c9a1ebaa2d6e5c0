// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"strings"
)

// NoSourcesReason says why a run had nothing to work from.
type NoSourcesReason string

const (
	// ReasonNoResults means the backends answered but nothing usable came back.
	ReasonNoResults NoSourcesReason = "no_results"

	// ReasonAllUnreachable means every backend call failed.
	ReasonAllUnreachable NoSourcesReason = "all_unreachable"
)

// NoSourcesError reports a run with zero usable records and no context text.
type NoSourcesError struct {
	Reason        NoSourcesReason
	BackendErrors []string
}

func (e *NoSourcesError) Error() string {
	if len(e.BackendErrors) == 0 {
		return fmt.Sprintf("no sources: %s", e.Reason)
	}
	return fmt.Sprintf("no sources: %s (%s)", e.Reason, strings.Join(e.BackendErrors, "; "))
}
