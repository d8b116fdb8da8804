// Package i18nprovider serves resource bundles from go-i18n message bundles.
package i18nprovider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pitabwire/util"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/pitabwire/polyglot/provider"
)

// Provider holds one go-i18n bundle per resource bundle name. Message texts
// are returned as written; placeholders are formatted by the engine.
type Provider struct {
	defaultLanguage language.Tag

	mu      sync.RWMutex
	bundles map[string]*i18n.Bundle
}

// New creates a provider whose bundles fall back to defaultLanguage.
func New(defaultLanguage language.Tag) *Provider {
	return &Provider{
		defaultLanguage: defaultLanguage,
		bundles:         map[string]*i18n.Bundle{},
	}
}

// Bundle returns the go-i18n bundle of name, creating it when needed.
func (p *Provider) Bundle(name string) *i18n.Bundle {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.bundles[name]
	if !ok {
		b = i18n.NewBundle(p.defaultLanguage)
		b.RegisterUnmarshalFunc("toml", toml.Unmarshal)
		b.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)
		b.RegisterUnmarshalFunc("yml", yaml.Unmarshal)
		p.bundles[name] = b
	}
	return b
}

// AddMessages adds messages of locale to the bundle name.
func (p *Provider) AddMessages(name string, locale language.Tag, messages ...*i18n.Message) error {
	return p.Bundle(name).AddMessages(locale, messages...)
}

// LoadFS reads every message file below dir. Files are named
// <bundle>.<language>.<format>, for example messages.de.toml.
func (p *Provider) LoadFS(fsys fs.FS, dir string) error {
	return fs.WalkDir(fsys, dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		name, ok := bundleName(path.Base(file))
		if !ok {
			return nil
		}

		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return err
		}
		if _, err = p.Bundle(name).ParseMessageFileBytes(data, file); err != nil {
			return fmt.Errorf("could not parse %s: %w", file, err)
		}
		return nil
	})
}

// bundleName extracts the bundle of a <bundle>.<language>.<format> file.
func bundleName(file string) (string, bool) {
	rest := strings.TrimSuffix(file, path.Ext(file))
	lang := path.Ext(rest)
	if lang == "" || rest == lang {
		return "", false
	}
	if _, err := language.Parse(lang[1:]); err != nil {
		return "", false
	}
	return strings.TrimSuffix(rest, lang), true
}

// Load returns the view of bundle for locale.
func (p *Provider) Load(ctx context.Context, bundle string, locale language.Tag) (provider.ResourceSet, error) {
	p.mu.RLock()
	b, ok := p.bundles[bundle]
	p.mu.RUnlock()
	if !ok || len(b.LanguageTags()) == 0 {
		return nil, provider.NotFound(bundle, locale)
	}

	return &resourceSet{
		ctx:       ctx,
		locale:    locale,
		localizer: i18n.NewLocalizer(b, locale.String()),
	}, nil
}

type resourceSet struct {
	ctx       context.Context
	locale    language.Tag
	localizer *i18n.Localizer
}

func (r *resourceSet) Locale() language.Tag {
	return r.locale
}

func (r *resourceSet) Lookup(key string) (provider.Entry, bool) {
	text, tag, err := r.localizer.LocalizeWithTag(&i18n.LocalizeConfig{MessageID: key})
	if err != nil {
		var notFound *i18n.MessageNotFoundErr
		if !errors.As(err, &notFound) {
			util.Log(r.ctx).WithError(err).WithField("key", key).Warn("could not localize message")
			return provider.Entry{}, false
		}
		// go-i18n answers from the bundle's default language and still
		// reports the requested language as not found.
		if tag == language.Und {
			return provider.Entry{}, false
		}
		return provider.Entry{Value: text, Locale: tag}, true
	}
	return provider.Entry{Value: text, Locale: tag}, true
}
