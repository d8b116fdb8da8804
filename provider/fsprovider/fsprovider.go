// Package fsprovider loads resource bundles from files in an fs.FS.
//
// The level of a bundle for a locale lives in <bundle>_<locale>.<ext>, with
// "_" separating the locale subtags (messages_de_DE.properties), and the
// root level in <bundle>.<ext>. Slashes in a bundle name select
// subdirectories. For every level the extensions .properties, .toml,
// .yaml, .yml and .json are tried in that order and the first file found
// is used. Nested tables flatten to dotted keys.
package fsprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/magiconair/properties"
	"github.com/pitabwire/util"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/pitabwire/polyglot/provider"
)

// Extensions lists the supported file extensions in lookup order.
//
//nolint:gochecknoglobals // fixed lookup order
var Extensions = []string{".properties", ".toml", ".yaml", ".yml", ".json"}

// ErrInvalidBundleName is returned for bundle names that are no valid path.
var ErrInvalidBundleName = errors.New("invalid bundle name")

type level struct {
	values map[string]string
	file   string
}

// Provider reads bundles from a file system. Parsed files are kept until
// Reload is called. It is safe for concurrent use.
type Provider struct {
	fsys          fs.FS
	dir           string
	defaultLocale language.Tag

	mu     sync.RWMutex
	levels map[string]*level // file stem -> parsed level, nil when absent
}

// Option configures a Provider.
type Option func(p *Provider)

// WithDir looks for bundles below dir instead of the file system root.
func WithDir(dir string) Option {
	return func(p *Provider) {
		p.dir = dir
	}
}

// WithDefaultLocale consults the chain of locale before the root level when
// the requested locale has no file of its own.
func WithDefaultLocale(locale language.Tag) Option {
	return func(p *Provider) {
		p.defaultLocale = locale
	}
}

// New creates a provider reading from fsys.
func New(fsys fs.FS, opts ...Option) *Provider {
	p := &Provider{
		fsys:   fsys,
		dir:    ".",
		levels: map[string]*level{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load collects the levels of the fallback chain of locale.
func (p *Provider) Load(ctx context.Context, bundle string, locale language.Tag) (provider.ResourceSet, error) {
	stem := path.Join(p.dir, bundle)
	if bundle == "" || !fs.ValidPath(stem) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBundleName, bundle)
	}

	var found []provider.Level
	for _, candidate := range provider.CandidatesWithDefault(locale, p.defaultLocale) {
		name := stem
		if suffix := provider.Suffix(candidate); suffix != "" {
			name += "_" + suffix
		}

		l, err := p.level(ctx, name)
		if err != nil {
			return nil, err
		}
		if l != nil {
			found = append(found, provider.Level{Locale: candidate, Values: l.values})
		}
	}

	set := provider.NewLayeredSet(locale, provider.DefaultLevels(locale, found)...)
	if set.Empty() {
		return nil, provider.NotFound(bundle, locale)
	}
	return set, nil
}

// Reload forgets every parsed file so the next Load reads them again.
func (p *Provider) Reload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.levels = map[string]*level{}
}

func (p *Provider) level(ctx context.Context, name string) (*level, error) {
	p.mu.RLock()
	l, ok := p.levels[name]
	p.mu.RUnlock()
	if ok {
		return l, nil
	}

	l, err := p.read(ctx, name)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.levels[name] = l
	p.mu.Unlock()
	return l, nil
}

func (p *Provider) read(ctx context.Context, name string) (*level, error) {
	for _, ext := range Extensions {
		file := name + ext
		data, err := fs.ReadFile(p.fsys, file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("could not read %s: %w", file, err)
		}

		values, err := Parse(ext, data)
		if err != nil {
			return nil, fmt.Errorf("could not parse %s: %w", file, err)
		}

		util.Log(ctx).WithField("file", file).WithField("keys", len(values)).Debug("resource file loaded")
		return &level{values: values, file: file}, nil
	}
	return nil, nil
}

// Parse decodes the resource file content data of the format named by ext.
func Parse(ext string, data []byte) (map[string]string, error) {
	switch strings.ToLower(ext) {
	case ".properties":
		return parseProperties(data)
	case ".toml":
		var tree map[string]any
		if err := toml.Unmarshal(data, &tree); err != nil {
			return nil, err
		}
		return Flatten(tree)
	case ".yaml", ".yml":
		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, err
		}
		return Flatten(tree)
	case ".json":
		var tree map[string]any
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, err
		}
		return Flatten(tree)
	default:
		return nil, fmt.Errorf("unsupported resource format %q", ext)
	}
}

func parseProperties(data []byte) (map[string]string, error) {
	loader := &properties.Loader{
		Encoding:         properties.UTF8,
		DisableExpansion: true,
	}
	props, err := loader.LoadBytes(data)
	if err != nil {
		return nil, err
	}
	return props.Map(), nil
}

// Flatten turns nested tables into dotted keys. Scalars are rendered with
// fmt; lists are rejected.
func Flatten(tree map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(tree))
	if err := flattenInto(out, "", tree); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out map[string]string, prefix string, tree map[string]any) error {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch val := v.(type) {
		case map[string]any:
			if err := flattenInto(out, key, val); err != nil {
				return err
			}
		case string:
			out[key] = val
		case nil:
			out[key] = ""
		case []any:
			return fmt.Errorf("key %s holds a list, messages must be scalars", key)
		default:
			out[key] = fmt.Sprint(val)
		}
	}
	return nil
}
