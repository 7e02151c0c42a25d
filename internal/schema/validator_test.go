package schema

import (
	"errors"
	"testing"

	"voice-command-service/internal/catalog"
)

func TestValidate_DefaultCatalog(t *testing.T) {
	if err := New().Validate(catalog.DefaultDefinitions()); err != nil {
		t.Errorf("expected default catalog to be valid, got %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		defs     []catalog.Definition
		expected error
	}{
		{"empty catalog", nil, ErrEmptyCatalog},
		{"missing name", []catalog.Definition{{Patterns: []string{"a"}, Route: "/a"}}, ErrMissingName},
		{"missing route", []catalog.Definition{{Name: "a", Patterns: []string{"a"}}}, ErrMissingRoute},
		{"no patterns", []catalog.Definition{{Name: "a", Route: "/a"}}, ErrNoPatterns},
		{"blank pattern", []catalog.Definition{{Name: "a", Patterns: []string{"   "}, Route: "/a"}}, ErrEmptyPattern},
		{
			"duplicate name",
			[]catalog.Definition{
				{Name: "a", Patterns: []string{"x"}, Route: "/a"},
				{Name: "a", Patterns: []string{"y"}, Route: "/b"},
			},
			ErrDuplicateName,
		},
		{
			"pattern shared after normalization",
			[]catalog.Definition{
				{Name: "a", Patterns: []string{"uçuşlar"}, Route: "/a"},
				{Name: "b", Patterns: []string{"UCUSLAR"}, Route: "/b"},
			},
			ErrDuplicatePattern,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Validate(tt.defs)
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestValidate_AllowSharedPatterns(t *testing.T) {
	v := &Validator{AllowSharedPatterns: true}
	defs := []catalog.Definition{
		{Name: "a", Patterns: []string{"oteller"}, Route: "/a"},
		{Name: "b", Patterns: []string{"Oteller"}, Route: "/b"},
	}
	if err := v.Validate(defs); err != nil {
		t.Errorf("expected shared patterns to be allowed, got %v", err)
	}
}

func TestValidate_SamePatternTwiceInOneCommand(t *testing.T) {
	defs := []catalog.Definition{
		{Name: "a", Patterns: []string{"oteller", "OTELLER"}, Route: "/a"},
	}
	if err := New().Validate(defs); err != nil {
		t.Errorf("expected repeated pattern within one command to be accepted, got %v", err)
	}
}
