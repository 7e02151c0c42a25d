package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type recordingNav struct {
	routes []string
	err    error
}

func (n *recordingNav) GoTo(route string) error {
	n.routes = append(n.routes, route)
	return n.err
}

func TestNew_CopiesPatterns(t *testing.T) {
	patterns := []string{"oteller"}
	c := New([]Command{{Name: "hotels", Patterns: patterns}})

	patterns[0] = "changed"

	cmd, ok := c.Lookup("hotels")
	if !ok {
		t.Fatal("expected hotels command")
	}
	if cmd.Patterns[0] != "oteller" {
		t.Errorf("expected pattern 'oteller', got %s", cmd.Patterns[0])
	}

	cmds := c.Commands()
	cmds[0].Patterns[0] = "mutated"
	if again, _ := c.Lookup("hotels"); again.Patterns[0] != "oteller" {
		t.Errorf("expected catalog to be unaffected by caller mutation, got %s", again.Patterns[0])
	}
}

func TestBind_ActionsNavigate(t *testing.T) {
	nav := &recordingNav{}
	c := Bind([]Definition{
		{Name: "hotels", Patterns: []string{"oteller"}, Route: "/hotels"},
		{Name: "tours", Patterns: []string{"turlar"}, Route: "/tours"},
	}, nav)

	for _, cmd := range c.Commands() {
		if err := cmd.Action(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(nav.routes) != 2 || nav.routes[0] != "/hotels" || nav.routes[1] != "/tours" {
		t.Errorf("expected routes [/hotels /tours], got %v", nav.routes)
	}
}

func TestBind_ActionReturnsNavigationError(t *testing.T) {
	navErr := errors.New("route not found")
	nav := &recordingNav{err: navErr}
	c := Bind([]Definition{{Name: "hotels", Patterns: []string{"oteller"}, Route: "/hotels"}}, nav)

	cmd, _ := c.Lookup("hotels")
	if err := cmd.Action(); !errors.Is(err, navErr) {
		t.Errorf("expected navigation error, got %v", err)
	}
}

func TestCatalog_OrderAndCategories(t *testing.T) {
	c := Bind(DefaultDefinitions(), &recordingNav{})

	if c.Len() != len(DefaultDefinitions()) {
		t.Errorf("expected %d commands, got %d", len(DefaultDefinitions()), c.Len())
	}

	cmds := c.Commands()
	if cmds[0].Name != "home" {
		t.Errorf("expected first command 'home', got %s", cmds[0].Name)
	}

	categories := c.Categories()
	expected := []string{"navigation", "account", "info"}
	if len(categories) != len(expected) {
		t.Fatalf("expected categories %v, got %v", expected, categories)
	}
	for i := range expected {
		if categories[i] != expected[i] {
			t.Errorf("category %d: expected %s, got %s", i, expected[i], categories[i])
		}
	}
}

func TestCatalog_Definitions(t *testing.T) {
	defs := DefaultDefinitions()
	c := Bind(defs, &recordingNav{})

	got := c.Definitions()
	if len(got) != len(defs) {
		t.Fatalf("expected %d definitions, got %d", len(defs), len(got))
	}
	if got[1].Name != "hotels" || got[1].Route != "/hotels" {
		t.Errorf("expected hotels definition, got %+v", got[1])
	}
}

func TestLookup_Missing(t *testing.T) {
	c := New(nil)
	if _, ok := c.Lookup("nope"); ok {
		t.Error("expected lookup of unknown command to fail")
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
commands:
  - name: hotels
    patterns: ["oteller", "hotels"]
    category: navigation
    description: Otelleri göster
    response: Oteller açılıyor
    route: /hotels
  - name: back
    patterns: ["geri git"]
    category: navigation
    description: Önceki sayfaya dön
    route: back
`)

	defs, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Name != "hotels" || len(defs[0].Patterns) != 2 || defs[0].Response != "Oteller açılıyor" {
		t.Errorf("unexpected first definition: %+v", defs[0])
	}
	if defs[1].Route != RouteBack {
		t.Errorf("expected route %s, got %s", RouteBack, defs[1].Route)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("commands: [")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "commands.yaml")
	content := "commands:\n  - name: tours\n    patterns: [turlar]\n    route: /tours\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	defs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 1 || defs[0].Name != "tours" {
		t.Errorf("unexpected definitions: %+v", defs)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
