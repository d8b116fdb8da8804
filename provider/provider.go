package provider

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

// ErrBundleNotFound is returned by Load when no level of the fallback chain
// exists for the requested bundle.
var ErrBundleNotFound = errors.New("resource bundle not found")

// Provider loads localized resource sets.
type Provider interface {
	// Load returns the resource set of bundle for locale. When nothing in the
	// fallback chain exists the error wraps ErrBundleNotFound.
	Load(ctx context.Context, bundle string, locale language.Tag) (ResourceSet, error)
}

// ResourceSet is a loaded, read-only mapping of keys to localized values.
type ResourceSet interface {
	// Locale is the locale the set was loaded for.
	Locale() language.Tag
	// Lookup finds key. The entry reports which level of the fallback chain
	// supplied the value.
	Lookup(key string) (Entry, bool)
}

// Entry is one resolved value.
type Entry struct {
	Value  string
	Locale language.Tag
}

// NotFound builds the error returned when bundle has no level for locale.
func NotFound(bundle string, locale language.Tag) error {
	return fmt.Errorf("%w: '%s' for locale '%s'", ErrBundleNotFound, bundle, locale)
}
