package pipeline

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"feedbackbot/internal/domain"
)

// Glossary forces items that mention a known phrase into a fixed category,
// after the model has answered.
type Glossary struct {
	Terms []GlossaryTerm `yaml:"terms"`
}

type GlossaryTerm struct {
	Phrase   string `yaml:"phrase"`
	Category string `yaml:"category"`
}

type glossaryRule struct {
	phrase   string
	category domain.FeedbackCategory
}

func LoadGlossary(path string) (*Glossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary: %w", err)
	}
	var g Glossary
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse glossary yaml: %w", err)
	}
	if _, err := g.rules(); err != nil {
		return nil, err
	}
	return &g, nil
}

// rules normalizes the terms in declaration order. Blank phrases are
// dropped; an unknown category is an error.
func (g *Glossary) rules() ([]glossaryRule, error) {
	if g == nil {
		return nil, nil
	}
	out := make([]glossaryRule, 0, len(g.Terms))
	for _, t := range g.Terms {
		phrase := normalizeTextToken(t.Phrase)
		if phrase == "" {
			continue
		}
		category, ok := domain.ParseCategory(t.Category)
		if !ok {
			return nil, fmt.Errorf("glossary phrase %q: unknown category %q", t.Phrase, t.Category)
		}
		out = append(out, glossaryRule{phrase: phrase, category: category})
	}
	return out, nil
}

func normalizeTextToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// applyGlossaryOverrides rewrites categories in place. The first matching
// term wins. It returns the number of items that changed category.
func applyGlossaryOverrides(items []domain.FeedbackItem, categories []domain.FeedbackCategory, rules []glossaryRule) int {
	changed := 0
	for i, item := range items {
		text := normalizeTextToken(string(item))
		for _, rule := range rules {
			if strings.Contains(text, rule.phrase) {
				if categories[i] != rule.category {
					categories[i] = rule.category
					changed++
				}
				break
			}
		}
	}
	return changed
}
