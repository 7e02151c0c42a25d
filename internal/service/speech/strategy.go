package speech

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"voice-command-service/internal/ports"
	"voice-command-service/internal/textnorm"
)

// Strategy picks a voice from the available list, or reports none.
type Strategy interface {
	Name() string
	Select(voices []ports.Voice) (ports.Voice, bool)
}

// LocaleAndMarker selects a voice in the target language whose name contains
// one of the markers. Name markers are a best-effort heuristic.
type LocaleAndMarker struct {
	Language string
	Markers  []string
}

func (s LocaleAndMarker) Name() string { return "locale_and_marker" }

func (s LocaleAndMarker) Select(voices []ports.Voice) (ports.Voice, bool) {
	for _, v := range voices {
		if sameLanguage(v.Locale, s.Language) && nameContainsAny(v.Name, s.Markers) {
			return v, true
		}
	}
	return ports.Voice{}, false
}

// LocaleOnly selects the first voice in the target language.
type LocaleOnly struct {
	Language string
}

func (s LocaleOnly) Name() string { return "locale" }

func (s LocaleOnly) Select(voices []ports.Voice) (ports.Voice, bool) {
	for _, v := range voices {
		if sameLanguage(v.Locale, s.Language) {
			return v, true
		}
	}
	return ports.Voice{}, false
}

// NameAllowList selects the first voice whose name contains an allowed name.
// Allowed names are tried in order.
type NameAllowList struct {
	Names []string
}

func (s NameAllowList) Name() string { return "allow_list" }

func (s NameAllowList) Select(voices []ports.Voice) (ports.Voice, bool) {
	for _, allowed := range s.Names {
		for _, v := range voices {
			if nameContainsAny(v.Name, []string{allowed}) {
				return v, true
			}
		}
	}
	return ports.Voice{}, false
}

// FirstAvailable selects the first voice, if any.
type FirstAvailable struct{}

func (FirstAvailable) Name() string { return "first_available" }

func (FirstAvailable) Select(voices []ports.Voice) (ports.Voice, bool) {
	if len(voices) == 0 {
		return ports.Voice{}, false
	}
	return voices[0], true
}

// DefaultStrategies returns the standard priority chain for cfg.
func DefaultStrategies(cfg Config) []Strategy {
	return []Strategy{
		LocaleAndMarker{Language: cfg.Language, Markers: cfg.GenderMarkers},
		LocaleOnly{Language: cfg.Language},
		NameAllowList{Names: cfg.PreferredVoices},
		FirstAvailable{},
	}
}

// StrategiesByName builds a chain from strategy names in priority order.
func StrategiesByName(names []string, cfg Config) ([]Strategy, error) {
	chain := make([]Strategy, 0, len(names))
	for _, name := range names {
		switch name {
		case "locale_and_marker":
			chain = append(chain, LocaleAndMarker{Language: cfg.Language, Markers: cfg.GenderMarkers})
		case "locale":
			chain = append(chain, LocaleOnly{Language: cfg.Language})
		case "allow_list":
			chain = append(chain, NameAllowList{Names: cfg.PreferredVoices})
		case "first_available":
			chain = append(chain, FirstAvailable{})
		default:
			return nil, fmt.Errorf("unknown voice strategy %q", name)
		}
	}
	return chain, nil
}

// sameLanguage compares the base languages of two BCP 47 tags. Platform
// locales sometimes use underscores ("tr_TR").
func sameLanguage(a, b string) bool {
	ta, err := language.Parse(strings.ReplaceAll(a, "_", "-"))
	if err != nil {
		return false
	}
	tb, err := language.Parse(strings.ReplaceAll(b, "_", "-"))
	if err != nil {
		return false
	}
	ba, _ := ta.Base()
	bb, _ := tb.Base()
	return ba == bb
}

func nameContainsAny(name string, markers []string) bool {
	n := textnorm.Normalize(name)
	for _, m := range markers {
		if nm := textnorm.Normalize(m); nm != "" && strings.Contains(n, nm) {
			return true
		}
	}
	return false
}
