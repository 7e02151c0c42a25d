package matcher

import (
	"strings"
	"testing"

	"voice-command-service/internal/catalog"
)

// containment computes the default containment score at runtime so the
// expected value rounds exactly like the matcher's.
func containment(short, long int) float64 {
	cfg := DefaultConfig()
	return cfg.ContainmentBase + (float64(short)/float64(long))*cfg.ContainmentWeight
}

func testCommands() []catalog.Command {
	return []catalog.Command{
		{Name: "home", Patterns: []string{"ana sayfa", "home"}},
		{Name: "hotels", Patterns: []string{"oteller", "otelleri göster"}},
		{Name: "tours", Patterns: []string{"turlar"}},
		{Name: "flights", Patterns: []string{"uçuşlar"}},
		{Name: "about", Patterns: []string{"hakkımızda"}},
	}
}

func TestMatchType_String(t *testing.T) {
	tests := []struct {
		matchType MatchType
		expected  string
	}{
		{MatchNone, "NONE"},
		{MatchExact, "EXACT"},
		{MatchFuzzy, "FUZZY"},
		{MatchType(42), "UNKNOWN(42)"},
	}
	for _, tt := range tests {
		if got := tt.matchType.String(); got != tt.expected {
			t.Errorf("expected %s, got %s", tt.expected, got)
		}
	}
}

func TestMatch_Exact(t *testing.T) {
	m := New(DefaultConfig())

	tests := []struct {
		input   string
		command string
	}{
		{"oteller", "hotels"},
		{"Oteller lütfen", "hotels"},
		{"bana turları göster", "tours"},
		{"UÇUŞLAR", "flights"},
		{"ucuslar", "flights"},
		{"hakkimizda", "about"},
		{"HAKKIMIZDA", "about"},
		{"  ana sayfa  ", "home"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			r := m.Match(tt.input, testCommands())
			if r.Type != MatchExact {
				t.Fatalf("expected EXACT, got %s", r.Type)
			}
			if r.Command.Name != tt.command {
				t.Errorf("expected command %s, got %s", tt.command, r.Command.Name)
			}
			if r.Score != 1.0 {
				t.Errorf("expected score 1.0, got %v", r.Score)
			}
		})
	}
}

func TestMatch_FuzzyWordWindow(t *testing.T) {
	m := New(DefaultConfig())

	r := m.Match("otelere bakalım", testCommands())
	if r.Type != MatchFuzzy {
		t.Fatalf("expected FUZZY, got %s (score %v)", r.Type, r.Score)
	}
	if r.Command.Name != "hotels" {
		t.Errorf("expected hotels, got %s", r.Command.Name)
	}
	if r.Score <= 0.7 {
		t.Errorf("expected score above 0.7, got %v", r.Score)
	}
	if r.Pattern != "oteller" {
		t.Errorf("expected pattern 'oteller', got %s", r.Pattern)
	}
}

func TestMatch_FuzzyContainment(t *testing.T) {
	m := New(DefaultConfig())

	// "otel" is contained in "oteller" but does not contain any pattern.
	r := m.Match("otel", testCommands())
	if r.Type != MatchFuzzy || r.Command.Name != "hotels" {
		t.Fatalf("expected fuzzy hotels, got %s %v", r.Type, r.Command)
	}
	expected := containment(4, 7)
	if r.Score != expected {
		t.Errorf("expected score %v, got %v", expected, r.Score)
	}
}

func TestMatch_None(t *testing.T) {
	m := New(DefaultConfig())

	for _, input := range []string{"xyzxyz", "", "   ", "qqqq wwww"} {
		r := m.Match(input, testCommands())
		if r.Type != MatchNone {
			t.Errorf("input %q: expected NONE, got %s", input, r.Type)
		}
		if r.Matched() {
			t.Errorf("input %q: expected no command, got %s", input, r.Command.Name)
		}
		if r.Score != 0 {
			t.Errorf("input %q: expected score 0, got %v", input, r.Score)
		}
	}
}

func TestMatch_EmptyCatalog(t *testing.T) {
	r := New(DefaultConfig()).Match("oteller", nil)
	if r.Type != MatchNone {
		t.Errorf("expected NONE for empty catalog, got %s", r.Type)
	}
}

func TestMatch_ExactBeatsEarlierFuzzy(t *testing.T) {
	commands := []catalog.Command{
		{Name: "near", Patterns: []string{"otellerr"}},
		{Name: "exact", Patterns: []string{"oteller"}},
	}

	r := New(DefaultConfig()).Match("oteller", commands)
	if r.Type != MatchExact {
		t.Fatalf("expected EXACT, got %s", r.Type)
	}
	if r.Command.Name != "exact" {
		t.Errorf("expected exact command to win, got %s", r.Command.Name)
	}
}

func TestMatch_ExactFirstDeclaredWins(t *testing.T) {
	commands := []catalog.Command{
		{Name: "first", Patterns: []string{"otel"}},
		{Name: "second", Patterns: []string{"oteller"}},
	}

	r := New(DefaultConfig()).Match("oteller", commands)
	if r.Command == nil || r.Command.Name != "first" {
		t.Errorf("expected first declared command, got %+v", r.Command)
	}
}

func TestMatch_FuzzyTieBreakByDeclarationOrder(t *testing.T) {
	commands := []catalog.Command{
		{Name: "first", Patterns: []string{"otelx"}},
		{Name: "second", Patterns: []string{"otely"}},
	}

	r := New(DefaultConfig()).Match("otelz", commands)
	if r.Type != MatchFuzzy {
		t.Fatalf("expected FUZZY, got %s", r.Type)
	}
	if r.Command.Name != "first" {
		t.Errorf("expected first command on tie, got %s", r.Command.Name)
	}
}

func TestMatch_ThresholdIsStrict(t *testing.T) {
	m := New(DefaultConfig())

	// Same length, three substitutions: (10-3)/10 = 0.7.
	atThreshold := []catalog.Command{{Name: "p", Patterns: []string{"abcdefghij"}}}
	if got := m.Similarity("abcdefgxyz", "abcdefghij"); got != 0.7 {
		t.Fatalf("expected similarity 0.7, got %v", got)
	}
	if r := m.Match("abcdefgxyz", atThreshold); r.Type != MatchNone {
		t.Errorf("expected score of exactly 0.7 not to match, got %s", r.Type)
	}

	// (100-29)/100 = 0.71.
	pattern := strings.Repeat("a", 100)
	input := strings.Repeat("a", 71) + strings.Repeat("b", 29)
	above := []catalog.Command{{Name: "p", Patterns: []string{pattern}}}
	r := m.Match(input, above)
	if r.Type != MatchFuzzy {
		t.Fatalf("expected score 0.71 to match, got %s (score %v)", r.Type, r.Score)
	}
	if r.Score != 0.71 {
		t.Errorf("expected score 0.71, got %v", r.Score)
	}
}

func TestMatch_ConfigurableThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold = 0.75

	r := New(cfg).Match("otelere bakalım", testCommands())
	if r.Type != MatchNone {
		t.Errorf("expected NONE with higher threshold, got %s (score %v)", r.Type, r.Score)
	}
}

func TestSimilarity(t *testing.T) {
	m := New(DefaultConfig())

	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"identical", "oteller", "oteller", 1.0},
		{"identical multibyte", "uçuşlar", "uçuşlar", 1.0},
		{"containment", "oteller", "otel", containment(4, 7)},
		{"suffix", "turlar", "turlar1", containment(6, 7)},
		{"substitution", "kitten", "sitten", 5.0 / 6.0},
		{"disjoint", "abc", "xyz", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Similarity(tt.a, tt.b); got != tt.expected {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	m := New(DefaultConfig())

	pairs := [][2]string{
		{"otelere", "oteller"},
		{"kitten", "sitting"},
		{"ana sayfa", "anasayfa"},
		{"xyzxyz", "turlar"},
		{"ucuslar", "ucus"},
	}
	for _, p := range pairs {
		ab := m.Similarity(p[0], p[1])
		ba := m.Similarity(p[1], p[0])
		if ab != ba {
			t.Errorf("expected symmetric score for %q/%q, got %v and %v", p[0], p[1], ab, ba)
		}
	}
}

func TestMatch_Deterministic(t *testing.T) {
	m := New(DefaultConfig())
	first := m.Match("otelere bakalım", testCommands())
	for i := 0; i < 10; i++ {
		r := m.Match("otelere bakalım", testCommands())
		if r.Command.Name != first.Command.Name || r.Score != first.Score {
			t.Fatalf("expected deterministic result, got %+v then %+v", first, r)
		}
	}
}
