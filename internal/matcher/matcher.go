// Package matcher finds the catalog command that best matches spoken input.
//
// Matching runs in two passes. The exact pass looks for a pattern contained in
// the input, checking both the raw lower-cased input and the normalized input,
// so native-script matches never depend on diacritic folding. Only when no
// pattern is contained does the fuzzy pass score every pattern by similarity.
package matcher

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"voice-command-service/internal/catalog"
	"voice-command-service/internal/textnorm"
)

// MatchType reports how a command was matched.
type MatchType int

const (
	// MatchNone - no command matched.
	MatchNone MatchType = iota
	// MatchExact - a pattern is contained in the input.
	MatchExact
	// MatchFuzzy - a pattern scored above the similarity threshold.
	MatchFuzzy
)

// String returns the string representation of the match type.
func (t MatchType) String() string {
	switch t {
	case MatchNone:
		return "NONE"
	case MatchExact:
		return "EXACT"
	case MatchFuzzy:
		return "FUZZY"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", t)
	}
}

// Result is the outcome of one match.
type Result struct {
	Command *catalog.Command
	Type    MatchType
	Score   float64
	// Pattern is the catalog pattern that produced the match.
	Pattern string
}

// Matched reports whether a command was found.
func (r Result) Matched() bool {
	return r.Command != nil
}

// Config holds the scoring parameters.
type Config struct {
	// Threshold is the fuzzy score a pattern must strictly exceed.
	Threshold float64
	// ContainmentBase is the score floor when one string contains the other.
	ContainmentBase float64
	// ContainmentWeight scales the length ratio added on top of ContainmentBase.
	ContainmentWeight float64
}

// DefaultConfig returns the default scoring parameters.
func DefaultConfig() Config {
	return Config{
		Threshold:         0.7,
		ContainmentBase:   0.8,
		ContainmentWeight: 0.2,
	}
}

// Matcher matches input against an ordered list of commands.
type Matcher struct {
	cfg Config
}

// New creates a matcher with the given scoring parameters.
func New(cfg Config) *Matcher {
	return &Matcher{cfg: cfg}
}

// Match returns the best command for raw input.
func (m *Matcher) Match(raw string, commands []catalog.Command) Result {
	input := textnorm.Normalize(raw)
	if input == "" {
		return Result{Type: MatchNone}
	}

	if r, ok := m.exact(raw, input, commands); ok {
		return r
	}
	return m.fuzzy(input, commands)
}

func (m *Matcher) exact(raw, input string, commands []catalog.Command) (Result, bool) {
	lowered := strings.ToLower(raw)
	for i := range commands {
		for _, p := range commands[i].Patterns {
			np := textnorm.Normalize(p)
			if np == "" {
				continue
			}
			if strings.Contains(lowered, p) || strings.Contains(input, np) {
				return Result{Command: &commands[i], Type: MatchExact, Score: 1.0, Pattern: p}, true
			}
		}
	}
	return Result{}, false
}

func (m *Matcher) fuzzy(input string, commands []catalog.Command) Result {
	words := strings.Fields(input)

	best := Result{Type: MatchNone}
	for i := range commands {
		for _, p := range commands[i].Patterns {
			np := textnorm.Normalize(p)
			if np == "" {
				continue
			}
			// Strictly greater keeps the earliest pair on ties.
			if score := m.scorePattern(input, words, np); score > best.Score {
				best = Result{Command: &commands[i], Type: MatchFuzzy, Score: score, Pattern: p}
			}
		}
	}

	if best.Command == nil || best.Score <= m.cfg.Threshold {
		return Result{Type: MatchNone}
	}
	return best
}

// scorePattern compares pattern with the whole input and with every run of
// input words as long as the pattern, and returns the best score.
func (m *Matcher) scorePattern(input string, words []string, pattern string) float64 {
	score := m.Similarity(input, pattern)

	n := len(strings.Fields(pattern))
	if n == 0 || n >= len(words) {
		return score
	}
	for i := 0; i+n <= len(words); i++ {
		window := strings.Join(words[i:i+n], " ")
		if s := m.Similarity(window, pattern); s > score {
			score = s
		}
	}
	return score
}

// Similarity scores two normalized strings in [0, 1]. It is symmetric.
func (m *Matcher) Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	longer, shorter := a, b
	if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
		longer, shorter = shorter, longer
	}
	longLen := utf8.RuneCountInString(longer)
	shortLen := utf8.RuneCountInString(shorter)
	if longLen == 0 {
		return 1.0
	}

	if strings.Contains(longer, shorter) {
		return m.cfg.ContainmentBase + (float64(shortLen)/float64(longLen))*m.cfg.ContainmentWeight
	}

	d := levenshtein.ComputeDistance(longer, shorter)
	return float64(longLen-d) / float64(longLen)
}
