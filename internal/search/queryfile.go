// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-brief/pkg/types"
)

// QueryFile is the on-disk representation of a plan and its search
// results. A researcher can save a search and reload it later without
// re-querying the APIs.
type QueryFile struct {
	Topic   types.Topic          `yaml:"topic"`
	Plan    types.Plan           `yaml:"plan"`
	Results []types.SearchRecord `yaml:"results"`
	Summary QuerySummary         `yaml:"summary"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Total         int       `yaml:"total"`
	Degraded      bool      `yaml:"degraded,omitempty"`
	BackendErrors []string  `yaml:"backend_errors,omitempty"`
	Timestamp     time.Time `yaml:"timestamp"`
}

// WriteQueryFile saves a plan and its results to a YAML file.
func WriteQueryFile(path string, topic types.Topic, plan types.Plan, out Output) error {
	qf := QueryFile{
		Topic:   topic,
		Plan:    plan,
		Results: out.Records,
		Summary: QuerySummary{
			Total:         len(out.Records),
			Degraded:      out.Degraded,
			BackendErrors: out.BackendErrors,
			Timestamp:     time.Now().UTC(),
		},
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}

// Output rebuilds the search output stored in the file.
func (qf *QueryFile) Output() Output {
	return Output{
		Records:       qf.Results,
		BackendErrors: qf.Summary.BackendErrors,
		Degraded:      qf.Summary.Degraded,
	}
}
