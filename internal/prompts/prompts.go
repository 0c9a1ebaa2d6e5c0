// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompts holds the model prompt templates. Defaults are embedded
// in the binary; a YAML file may override any of them. A Set is loaded
// once per run and passed to every stage that talks to the model.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"go.yaml.in/yaml/v3"
)

// Template names.
const (
	Plan       = "plan"
	Translate  = "translate"
	Extract    = "extract"
	Synthesize = "synthesize"
	Review     = "review"
)

var names = []string{Plan, Translate, Extract, Synthesize, Review}

//go:embed templates/*.tmpl templates/domain_guard.txt
var embedded embed.FS

// Set is an immutable collection of parsed templates.
type Set struct {
	guard string
	tmpls map[string]*template.Template
}

// Overrides is the YAML shape of a prompt override file. Keys missing from
// Templates keep their embedded default.
type Overrides struct {
	DomainGuard string            `yaml:"domain_guard"`
	Templates   map[string]string `yaml:"templates"`
}

// Default returns the embedded prompt set.
func Default() *Set {
	s, err := build(Overrides{})
	if err != nil {
		panic(fmt.Sprintf("embedded prompts: %v", err))
	}
	return s
}

// Load reads an override file and merges it over the embedded defaults.
// An empty path returns the defaults.
func Load(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompts file: %w", err)
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parsing prompts file %s: %w", path, err)
	}
	for name := range o.Templates {
		if !known(name) {
			return nil, fmt.Errorf("prompts file %s: unknown template %q", path, name)
		}
	}
	return build(o)
}

func build(o Overrides) (*Set, error) {
	guard := strings.TrimSpace(o.DomainGuard)
	if guard == "" {
		b, err := embedded.ReadFile("templates/domain_guard.txt")
		if err != nil {
			return nil, err
		}
		guard = strings.TrimSpace(string(b))
	}

	s := &Set{guard: guard, tmpls: make(map[string]*template.Template, len(names))}
	funcs := template.FuncMap{"guard": func() string { return s.guard }}
	for _, name := range names {
		text, ok := o.Templates[name]
		if !ok {
			b, err := embedded.ReadFile("templates/" + name + ".tmpl")
			if err != nil {
				return nil, err
			}
			text = string(b)
		}
		t, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		s.tmpls[name] = t
	}
	return s, nil
}

func known(name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// DomainGuard returns the preamble prepended to planning and synthesis prompts.
func (s *Set) DomainGuard() string { return s.guard }

// Render executes the named template with data.
func (s *Set) Render(name string, data any) (string, error) {
	t, ok := s.tmpls[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt %s: %w", name, err)
	}
	return buf.String(), nil
}
