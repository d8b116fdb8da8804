// Package localization carries the caller's preferred languages through a
// context and picks the locale messages are resolved for.
package localization

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type contextKey string

func (c contextKey) String() string {
	return "polyglot/localization/" + string(c)
}

const ctxKeyLanguage = contextKey("languageKey")

// ToContext adds the preferred languages, most preferred first, to ctx.
func ToContext(ctx context.Context, lang []string) context.Context {
	return context.WithValue(ctx, ctxKeyLanguage, lang)
}

// FromContext extracts the preferred languages from ctx if any exist.
func FromContext(ctx context.Context) []string {
	languages, ok := ctx.Value(ctxKeyLanguage).([]string)
	if !ok {
		return nil
	}

	return languages
}

// Locale returns the first parseable preferred language of ctx.
func Locale(ctx context.Context) (language.Tag, bool) {
	for _, l := range FromContext(ctx) {
		tags, _, err := language.ParseAcceptLanguage(l)
		if err != nil || len(tags) == 0 {
			continue
		}
		return tags[0], true
	}
	return language.Und, false
}

// FromHTTPRequest lists the languages a request asks for: the "lang" form
// value first, then the Accept-Language header ordered by weight.
func FromHTTPRequest(req *http.Request) []string {
	var languages []string
	if lang := strings.TrimSpace(req.FormValue("lang")); lang != "" {
		languages = append(languages, lang)
	}

	return append(languages, FromHTTPHeader(req.Header)...)
}

// FromHTTPHeader parses the Accept-Language header of h.
func FromHTTPHeader(h http.Header) []string {
	accept := h.Get("Accept-Language")
	if accept == "" {
		return nil
	}

	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil {
		return nil
	}

	languages := make([]string, 0, len(tags))
	for _, t := range tags {
		languages = append(languages, t.String())
	}
	return languages
}

// Negotiate picks the best of available for the requested languages.
// ok is false when nothing requested matches and available[0] is returned.
func Negotiate(available []language.Tag, requested ...string) (language.Tag, bool) {
	if len(available) == 0 {
		return language.Und, false
	}

	var desired []language.Tag
	for _, r := range requested {
		tags, _, err := language.ParseAcceptLanguage(r)
		if err != nil {
			continue
		}
		desired = append(desired, tags...)
	}
	if len(desired) == 0 {
		return available[0], false
	}

	matcher := language.NewMatcher(available)
	_, idx, confidence := matcher.Match(desired...)
	if confidence == language.No {
		return available[0], false
	}
	return available[idx], true
}
