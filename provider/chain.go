package provider

import (
	"strings"

	"golang.org/x/text/language"
)

// Candidates returns the fallback chain for locale, most specific first and
// always ending with the root (language.Und). de-DE yields [de-DE de und].
func Candidates(locale language.Tag) []language.Tag {
	var chain []language.Tag
	seen := map[string]bool{}

	for t := locale; ; t = t.Parent() {
		key := t.String()
		if seen[key] {
			break
		}
		seen[key] = true
		chain = append(chain, t)
		if t.IsRoot() {
			break
		}
	}

	if !seen[language.Und.String()] {
		chain = append(chain, language.Und)
	}
	return chain
}

// CandidatesWithDefault is Candidates(locale) with the chain of def spliced
// in before the root. It lists every level that may be consulted; pass the
// levels found to DefaultLevels to drop the ones of def that do not apply.
func CandidatesWithDefault(locale, def language.Tag) []language.Tag {
	chain := Candidates(locale)
	if def.IsRoot() {
		return chain
	}

	seen := make(map[string]bool, len(chain))
	for _, t := range chain {
		seen[t.String()] = true
	}

	root := chain[len(chain)-1]
	out := chain[:len(chain)-1:len(chain)-1]
	for _, t := range Candidates(def) {
		if t.IsRoot() || seen[t.String()] {
			continue
		}
		out = append(out, t)
	}
	return append(out, root)
}

// DefaultLevels filters levels found along CandidatesWithDefault(locale, def).
// The levels of the default locale only apply when no level of locale other
// than the root exists; otherwise locale falls back straight to the root.
func DefaultLevels(locale language.Tag, levels []Level) []Level {
	own := map[string]bool{}
	for _, t := range Candidates(locale) {
		own[t.String()] = true
	}

	specific := false
	for _, l := range levels {
		if !l.Locale.IsRoot() && own[l.Locale.String()] {
			specific = true
			break
		}
	}
	if !specific {
		return levels
	}

	out := make([]Level, 0, len(levels))
	for _, l := range levels {
		if own[l.Locale.String()] {
			out = append(out, l)
		}
	}
	return out
}

// Suffix renders locale the way resource file names carry it, "de_DE".
// The root has an empty suffix.
func Suffix(locale language.Tag) string {
	if locale.IsRoot() {
		return ""
	}
	return strings.ReplaceAll(locale.String(), "-", "_")
}
