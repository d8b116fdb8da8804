package fsprovider_test

import (
	"context"
	"os"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/suite"
	"golang.org/x/text/language"

	"github.com/pitabwire/polyglot/provider"
	"github.com/pitabwire/polyglot/provider/fsprovider"
)

type FSProviderTestSuite struct {
	suite.Suite
	ctx context.Context
	p   *fsprovider.Provider
}

func TestFSProviderTestSuite(t *testing.T) {
	suite.Run(t, &FSProviderTestSuite{})
}

func (s *FSProviderTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.p = fsprovider.New(os.DirFS("testdata"))
}

func (s *FSProviderTestSuite) TestLookupAcrossFormats() {
	testCases := []struct {
		name     string
		locale   string
		key      string
		expected string
		from     string
	}{
		{name: "properties root", locale: "en", key: "Cancel", expected: "Cancel", from: "und"},
		{name: "properties german", locale: "de", key: "Cancel", expected: "Abbruch", from: "de"},
		{name: "regional falls back", locale: "de-DE", key: "YouHaveNRetries", expected: "Du hast noch {0} Versuche.", from: "de"},
		{name: "german falls back to root", locale: "de", key: "no.default.key", expected: "No default key.", from: "und"},
		{name: "toml", locale: "fr", key: "Cancel", expected: "Annuler", from: "fr"},
		{name: "toml table", locale: "fr", key: "dialog.title", expected: "Titre", from: "fr"},
		{name: "yaml", locale: "sw", key: "dialog.title", expected: "Kichwa", from: "sw"},
		{name: "json", locale: "it", key: "dialog.title", expected: "Titolo", from: "it"},
		{name: "properties preferred", locale: "es", key: "Cancel", expected: "Cancelar", from: "es"},
		{name: "no expansion", locale: "en", key: "greeting", expected: "Hello ${name}", from: "und"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			set, err := s.p.Load(s.ctx, "messages", language.MustParse(tc.locale))
			s.Require().NoError(err)

			entry, ok := set.Lookup(tc.key)
			s.Require().True(ok)
			s.Equal(tc.expected, entry.Value)
			s.Equal(tc.from, entry.Locale.String())
		})
	}
}

func (s *FSProviderTestSuite) TestNestedBundleName() {
	set, err := s.p.Load(s.ctx, "com/example/app.Messages", language.English)
	s.Require().NoError(err)

	entry, ok := set.Lookup("ok")
	s.Require().True(ok)
	s.Equal("OK", entry.Value)
}

func (s *FSProviderTestSuite) TestMissingBundle() {
	_, err := s.p.Load(s.ctx, "absent", language.English)
	s.Require().ErrorIs(err, provider.ErrBundleNotFound)

	_, err = s.p.Load(s.ctx, "../escape", language.English)
	s.Require().ErrorIs(err, fsprovider.ErrInvalidBundleName)
}

func (s *FSProviderTestSuite) TestBrokenFile() {
	_, err := s.p.Load(s.ctx, "broken", language.English)
	s.Require().Error(err)
	s.Require().NotErrorIs(err, provider.ErrBundleNotFound)
}

func (s *FSProviderTestSuite) TestDefaultLocale() {
	p := fsprovider.New(os.DirFS("testdata"), fsprovider.WithDefaultLocale(language.German))

	set, err := p.Load(s.ctx, "messages", language.Japanese)
	s.Require().NoError(err)

	entry, ok := set.Lookup("Cancel")
	s.Require().True(ok)
	s.Equal("Abbruch", entry.Value)

	entry, ok = set.Lookup("no.default.key")
	s.Require().True(ok)
	s.Equal("und", entry.Locale.String())

	set, err = p.Load(s.ctx, "messages", language.French)
	s.Require().NoError(err)

	entry, ok = set.Lookup("YouHaveNRetries")
	s.Require().True(ok)
	s.Equal("You still have {0} retries.", entry.Value)
	s.Equal("und", entry.Locale.String())
}

func (s *FSProviderTestSuite) TestDirAndReload() {
	fsys := fstest.MapFS{
		"i18n/app.properties": {Data: []byte("title=First\n")},
	}
	p := fsprovider.New(fsys, fsprovider.WithDir("i18n"))

	set, err := p.Load(s.ctx, "app", language.English)
	s.Require().NoError(err)
	entry, _ := set.Lookup("title")
	s.Equal("First", entry.Value)

	fsys["i18n/app.properties"] = &fstest.MapFile{Data: []byte("title=Second\n")}

	set, err = p.Load(s.ctx, "app", language.English)
	s.Require().NoError(err)
	entry, _ = set.Lookup("title")
	s.Equal("First", entry.Value, "parsed files are kept")

	p.Reload()
	set, err = p.Load(s.ctx, "app", language.English)
	s.Require().NoError(err)
	entry, _ = set.Lookup("title")
	s.Equal("Second", entry.Value)
}

func (s *FSProviderTestSuite) TestFlatten() {
	out, err := fsprovider.Flatten(map[string]any{
		"a": map[string]any{"b": map[string]any{"c": "deep"}},
		"n": 3,
		"t": true,
		"z": nil,
	})
	s.Require().NoError(err)
	s.Equal(map[string]string{"a.b.c": "deep", "n": "3", "t": "true", "z": ""}, out)

	_, err = fsprovider.Flatten(map[string]any{"list": []any{"x"}})
	s.Require().Error(err)

	_, err = fsprovider.Parse(".ini", nil)
	s.Require().Error(err)
}
