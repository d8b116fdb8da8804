package provider

import (
	"golang.org/x/text/language"
)

// Level is one level of a fallback chain and the values it defines.
type Level struct {
	Locale language.Tag
	Values map[string]string
}

// LayeredSet is a ResourceSet over an ordered list of levels, most specific
// first. A key is answered by the first level defining it.
type LayeredSet struct {
	locale language.Tag
	levels []Level
}

// NewLayeredSet builds a set for locale. Levels must be ordered most
// specific first; nil levels are skipped.
func NewLayeredSet(locale language.Tag, levels ...Level) *LayeredSet {
	set := &LayeredSet{locale: locale}
	for _, l := range levels {
		if l.Values != nil {
			set.levels = append(set.levels, l)
		}
	}
	return set
}

// Locale is the locale the set was loaded for.
func (s *LayeredSet) Locale() language.Tag {
	return s.locale
}

// Lookup finds key in the most specific level that defines it.
func (s *LayeredSet) Lookup(key string) (Entry, bool) {
	for _, l := range s.levels {
		if v, ok := l.Values[key]; ok {
			return Entry{Value: v, Locale: l.Locale}, true
		}
	}
	return Entry{}, false
}

// Levels lists the locales of the levels that were found.
func (s *LayeredSet) Levels() []language.Tag {
	tags := make([]language.Tag, 0, len(s.levels))
	for _, l := range s.levels {
		tags = append(tags, l.Locale)
	}
	return tags
}

// Empty reports whether no level was found.
func (s *LayeredSet) Empty() bool {
	return len(s.levels) == 0
}
