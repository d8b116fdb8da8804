package provider

import (
	"context"
	"maps"
	"sync"

	"golang.org/x/text/language"
)

// Memory is an in-process Provider. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	bundles map[string]map[string]map[string]string // bundle -> locale -> key -> value
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{bundles: map[string]map[string]map[string]string{}}
}

// Add merges values into the level of bundle for locale. Use language.Und
// for the root level.
func (m *Memory) Add(bundle string, locale language.Tag, values map[string]string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()

	levels, ok := m.bundles[bundle]
	if !ok {
		levels = map[string]map[string]string{}
		m.bundles[bundle] = levels
	}

	level, ok := levels[locale.String()]
	if !ok {
		level = make(map[string]string, len(values))
		levels[locale.String()] = level
	}
	maps.Copy(level, values)
	return m
}

// Load collects the levels of the fallback chain of locale.
func (m *Memory) Load(_ context.Context, bundle string, locale language.Tag) (ResourceSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	levels, ok := m.bundles[bundle]
	if !ok {
		return nil, NotFound(bundle, locale)
	}

	var found []Level
	for _, candidate := range Candidates(locale) {
		if values, exists := levels[candidate.String()]; exists {
			found = append(found, Level{Locale: candidate, Values: maps.Clone(values)})
		}
	}

	set := NewLayeredSet(locale, found...)
	if set.Empty() {
		return nil, NotFound(bundle, locale)
	}
	return set, nil
}
