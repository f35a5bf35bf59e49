package router

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadLexicon reads a YAML lexicon file and merges it over the defaults.
// Phrases listed in the file extend (never replace) the built-in trigger
// sets, so an override file cannot accidentally disable routing.
//
//	predictive:
//	  - "run an experiment"
//	sql:
//	  - "breakdown"
//
// Trigger matching is case-insensitive; phrases are lower-cased on load.
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("router: read lexicon file: %w", err)
	}

	var extra Lexicon
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return Lexicon{}, fmt.Errorf("router: parse lexicon file: %w", err)
	}

	merged := DefaultLexicon()
	merged.Predictive = append(merged.Predictive, lowered(extra.Predictive)...)
	merged.SQL = append(merged.SQL, lowered(extra.SQL)...)
	return merged, nil
}

func lowered(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p == "" {
			continue
		}
		out = append(out, strings.ToLower(p))
	}
	return out
}
