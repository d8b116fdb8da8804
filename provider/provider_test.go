package provider_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/text/language"

	"github.com/pitabwire/polyglot/provider"
)

type ProviderTestSuite struct {
	suite.Suite
}

func TestProviderSuite(t *testing.T) {
	suite.Run(t, &ProviderTestSuite{})
}

func (s *ProviderTestSuite) TestCandidates() {
	testCases := []struct {
		name     string
		locale   language.Tag
		expected []string
	}{
		{name: "region", locale: language.MustParse("de-DE"), expected: []string{"de-DE", "de", "und"}},
		{name: "language", locale: language.German, expected: []string{"de", "und"}},
		{name: "root", locale: language.Und, expected: []string{"und"}},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			var got []string
			for _, t := range provider.Candidates(tc.locale) {
				got = append(got, t.String())
			}
			s.Equal(tc.expected, got)
		})
	}
}

func (s *ProviderTestSuite) TestCandidatesWithDefault() {
	var got []string
	for _, t := range provider.CandidatesWithDefault(language.MustParse("fr-CA"), language.German) {
		got = append(got, t.String())
	}
	s.Equal([]string{"fr-CA", "fr", "de", "und"}, got)

	got = got[:0]
	for _, t := range provider.CandidatesWithDefault(language.German, language.German) {
		got = append(got, t.String())
	}
	s.Equal([]string{"de", "und"}, got)
}

func (s *ProviderTestSuite) TestDefaultLevels() {
	root := provider.Level{Locale: language.Und, Values: map[string]string{"ok": "OK"}}
	fr := provider.Level{Locale: language.French, Values: map[string]string{"ok": "D'accord"}}
	de := provider.Level{Locale: language.German, Values: map[string]string{"ok": "Gut"}}

	locales := func(levels []provider.Level) []string {
		var out []string
		for _, l := range levels {
			out = append(out, l.Locale.String())
		}
		return out
	}

	testCases := []struct {
		name     string
		locale   language.Tag
		levels   []provider.Level
		expected []string
	}{
		{name: "own level skips default", locale: language.French, levels: []provider.Level{fr, de, root}, expected: []string{"fr", "und"}},
		{name: "regional locale with parent level", locale: language.MustParse("fr-CA"), levels: []provider.Level{fr, de, root}, expected: []string{"fr", "und"}},
		{name: "no own level keeps default", locale: language.Japanese, levels: []provider.Level{de, root}, expected: []string{"de", "und"}},
		{name: "root only", locale: language.Japanese, levels: []provider.Level{root}, expected: []string{"und"}},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.expected, locales(provider.DefaultLevels(tc.locale, tc.levels)))
		})
	}
}

func (s *ProviderTestSuite) TestSuffix() {
	s.Equal("de_DE", provider.Suffix(language.MustParse("de-DE")))
	s.Equal("de", provider.Suffix(language.German))
	s.Empty(provider.Suffix(language.Und))
}

func (s *ProviderTestSuite) TestMemoryFallsBackThroughLevels() {
	ctx := context.Background()
	mem := provider.NewMemory().
		Add("app", language.Und, map[string]string{"ok": "OK", "cancel": "Cancel"}).
		Add("app", language.German, map[string]string{"cancel": "Abbruch"}).
		Add("app", language.MustParse("de-AT"), map[string]string{"cancel": "Abbrechen"})

	set, err := mem.Load(ctx, "app", language.MustParse("de-DE"))
	s.Require().NoError(err)
	s.Equal("de-DE", set.Locale().String())

	entry, ok := set.Lookup("cancel")
	s.Require().True(ok)
	s.Equal("Abbruch", entry.Value)
	s.Equal("de", entry.Locale.String())

	entry, ok = set.Lookup("ok")
	s.Require().True(ok)
	s.Equal("OK", entry.Value)
	s.True(entry.Locale.IsRoot())

	_, ok = set.Lookup("missing")
	s.False(ok)
}

func (s *ProviderTestSuite) TestMemoryMissingBundle() {
	ctx := context.Background()
	mem := provider.NewMemory().Add("app", language.German, map[string]string{"cancel": "Abbruch"})

	_, err := mem.Load(ctx, "other", language.German)
	s.Require().ErrorIs(err, provider.ErrBundleNotFound)

	_, err = mem.Load(ctx, "app", language.French)
	s.Require().ErrorIs(err, provider.ErrBundleNotFound, "no level of the fr chain exists")
	s.Require().ErrorContains(err, "'app'")
}

func (s *ProviderTestSuite) TestLayeredSetSkipsNilLevels() {
	set := provider.NewLayeredSet(language.German,
		provider.Level{Locale: language.German},
		provider.Level{Locale: language.Und, Values: map[string]string{"ok": "OK"}})

	s.False(set.Empty())
	s.Len(set.Levels(), 1)
	entry, ok := set.Lookup("ok")
	s.Require().True(ok)
	s.Equal("OK", entry.Value)
}
