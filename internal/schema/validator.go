// Package schema validates command catalog definitions before they are bound.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"voice-command-service/internal/catalog"
	"voice-command-service/internal/textnorm"
)

// Validation errors.
var (
	ErrEmptyCatalog     = errors.New("catalog has no commands")
	ErrMissingName      = errors.New("command has no name")
	ErrDuplicateName    = errors.New("duplicate command name")
	ErrNoPatterns       = errors.New("command has no patterns")
	ErrEmptyPattern     = errors.New("pattern is empty after normalization")
	ErrMissingRoute     = errors.New("command has no route")
	ErrDuplicatePattern = errors.New("pattern already declared by an earlier command")
)

// Validator checks catalog definitions.
type Validator struct {
	// AllowSharedPatterns permits the same normalized pattern on several
	// commands. The earlier command always wins such a match.
	AllowSharedPatterns bool
}

func New() *Validator {
	return &Validator{}
}

// Validate returns every problem found in defs, joined into one error.
func (v *Validator) Validate(defs []catalog.Definition) error {
	if len(defs) == 0 {
		return ErrEmptyCatalog
	}

	var errs []error
	names := make(map[string]bool)
	patterns := make(map[string]string)

	for i, d := range defs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("command #%d: %w", i, ErrMissingName))
			name = fmt.Sprintf("#%d", i)
		} else if names[name] {
			errs = append(errs, fmt.Errorf("command %q: %w", name, ErrDuplicateName))
		}
		names[name] = true

		if strings.TrimSpace(d.Route) == "" {
			errs = append(errs, fmt.Errorf("command %q: %w", name, ErrMissingRoute))
		}
		if len(d.Patterns) == 0 {
			errs = append(errs, fmt.Errorf("command %q: %w", name, ErrNoPatterns))
		}

		for _, p := range d.Patterns {
			np := textnorm.Normalize(p)
			if np == "" {
				errs = append(errs, fmt.Errorf("command %q: %w", name, ErrEmptyPattern))
				continue
			}
			if owner, ok := patterns[np]; ok && owner != name && !v.AllowSharedPatterns {
				errs = append(errs, fmt.Errorf("command %q pattern %q (owned by %q): %w", name, p, owner, ErrDuplicatePattern))
				continue
			}
			if _, ok := patterns[np]; !ok {
				patterns[np] = name
			}
		}
	}

	return errors.Join(errs...)
}
