// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files, one
// key per file: the filename is the key name and the trimmed contents are
// the value. Keys missing from the directory fall back to environment
// variables.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Key file names.
const (
	AnthropicKey       = "anthropic-api-key"
	TavilyKey          = "tavily-api-key"
	SemanticScholarKey = "semantic-scholar-api-key"
	OpenAlexEmail      = "openalex-email"
)

// envFallback maps key file names to the environment variables consulted
// when the file is absent.
var envFallback = map[string]string{
	AnthropicKey:       "ANTHROPIC_API_KEY",
	TavilyKey:          "TAVILY_API_KEY",
	SemanticScholarKey: "SEMANTIC_SCHOLAR_API_KEY",
	OpenAlexEmail:      "OPENALEX_EMAIL",
}

// Keys holds the credentials the pipeline uses.
type Keys struct {
	Anthropic       string
	Tavily          string
	SemanticScholar string
	OpenAlexEmail   string
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory is not an error; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Lookup returns the secret named key from m, or its environment
// fallback when m has none.
func Lookup(m map[string]string, key string) string {
	if v := m[key]; v != "" {
		return v
	}
	if env, ok := envFallback[key]; ok {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// LoadKeys reads dir and resolves every pipeline key with its
// environment fallback.
func LoadKeys(dir string) (Keys, error) {
	m, err := Load(dir)
	if err != nil {
		return Keys{}, err
	}
	return Keys{
		Anthropic:       Lookup(m, AnthropicKey),
		Tavily:          Lookup(m, TavilyKey),
		SemanticScholar: Lookup(m, SemanticScholarKey),
		OpenAlexEmail:   Lookup(m, OpenAlexEmail),
	}, nil
}
