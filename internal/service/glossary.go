package service

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed glossary.yaml
var glossaryYAML []byte

// GlossaryTerm is one defined term.
type GlossaryTerm struct {
	Name           string `yaml:"name" json:"name" doc:"Term" example:"Lot Size"`
	Definition     string `yaml:"definition" json:"definition" doc:"Definition"`
	Formula        string `yaml:"formula,omitempty" json:"formula,omitempty" doc:"How the value is calculated"`
	Interpretation string `yaml:"interpretation,omitempty" json:"interpretation,omitempty" doc:"How to read the value"`
	Note           string `yaml:"note,omitempty" json:"note,omitempty" doc:"Caveats"`
}

// GlossarySection groups related terms.
type GlossarySection struct {
	Key   string         `yaml:"key" json:"key" doc:"Section identifier" example:"metrics"`
	Label string         `yaml:"label" json:"label" doc:"Section title" example:"Calculated Metrics"`
	Terms []GlossaryTerm `yaml:"terms" json:"terms" doc:"Terms in display order"`
}

// Glossary returns the built-in glossary.
func Glossary() ([]GlossarySection, error) {
	var out []GlossarySection
	if err := yaml.Unmarshal(glossaryYAML, &out); err != nil {
		return nil, fmt.Errorf("parse glossary: %w", err)
	}
	return out, nil
}

// SearchGlossary returns the sections whose terms match q, keeping only
// matching terms. An empty q returns everything.
func SearchGlossary(sections []GlossarySection, q string) []GlossarySection {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return sections
	}
	var out []GlossarySection
	for _, s := range sections {
		var terms []GlossaryTerm
		for _, t := range s.Terms {
			if strings.Contains(strings.ToLower(t.Name), q) || strings.Contains(strings.ToLower(t.Definition), q) {
				terms = append(terms, t)
			}
		}
		if len(terms) > 0 {
			out = append(out, GlossarySection{Key: s.Key, Label: s.Label, Terms: terms})
		}
	}
	return out
}
