// Package dbprovider stores resource bundles in a SQL database through gorm.
//
// Every row holds one message of one bundle level. The root level is stored
// under the locale "und".
package dbprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gocloud.dev/pubsub"
	"golang.org/x/text/language"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pitabwire/polyglot/config"
	"github.com/pitabwire/polyglot/provider"
	"github.com/pitabwire/polyglot/provider/cached"
)

// ErrUnsupportedDSN is returned by Open for connection strings of unknown databases.
var ErrUnsupportedDSN = errors.New("unsupported database connection string")

// Message is one localized value.
type Message struct {
	ID        uint64    `gorm:"primaryKey"`
	Bundle    string    `gorm:"size:255;not null;uniqueIndex:idx_polyglot_message,priority:1"`
	Locale    string    `gorm:"size:64;not null;uniqueIndex:idx_polyglot_message,priority:2"`
	Key       string    `gorm:"column:message_key;size:255;not null;uniqueIndex:idx_polyglot_message,priority:3"`
	Value     string    `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps messages in their own table.
func (Message) TableName() string {
	return "polyglot_messages"
}

// Open connects to the database of dsn. postgres:// and postgresql:// URLs
// use PostgreSQL; sqlite:// URLs, file: URIs and ":memory:" use SQLite.
// Queries are logged according to cfg, which may be nil.
func Open(ctx context.Context, dsn string, cfg config.ConfigurationDatabase) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		var err error
		if dialector, err = postgresDialector(ctx, dsn); err != nil {
			return nil, fmt.Errorf("could not open message database %s: %w", redact(dsn), err)
		}
	case strings.HasPrefix(dsn, "sqlite://"):
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "file:"), dsn == ":memory:":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDSN, redact(dsn))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 queryLogger(ctx, cfg),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not open message database: %w", err)
	}
	return db, nil
}

func redact(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3] + "..."
	}
	return "..."
}

// Provider loads bundles from the messages table.
type Provider struct {
	db            *gorm.DB
	defaultLocale language.Tag
	changes       *pubsub.Topic
}

// Option configures a Provider.
type Option func(p *Provider)

// WithDefaultLocale consults the chain of locale before the root level when
// the requested locale has no rows of its own.
func WithDefaultLocale(locale language.Tag) Option {
	return func(p *Provider) {
		p.defaultLocale = locale
	}
}

// WithChangeTopic announces every Put and Delete on topic, so cached
// providers listening elsewhere drop the changed bundle.
func WithChangeTopic(topic *pubsub.Topic) Option {
	return func(p *Provider) {
		p.changes = topic
	}
}

// New creates a provider on db.
func New(db *gorm.DB, opts ...Option) *Provider {
	p := &Provider{db: db}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Migrate creates or updates the messages table.
func (p *Provider) Migrate(ctx context.Context) error {
	return p.db.WithContext(ctx).AutoMigrate(&Message{})
}

// Put inserts or replaces values of the level of bundle for locale.
func (p *Provider) Put(ctx context.Context, bundle string, locale language.Tag, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	rows := make([]Message, 0, len(values))
	for k, v := range values {
		rows = append(rows, Message{Bundle: bundle, Locale: locale.String(), Key: k, Value: v})
	}

	err := p.db.WithContext(withScope(ctx, "put", bundle, locale)).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bundle"}, {Name: "locale"}, {Name: "message_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return err
	}
	return p.announce(ctx, bundle)
}

// Delete removes keys from the level of bundle for locale. Without keys the
// whole level is removed.
func (p *Provider) Delete(ctx context.Context, bundle string, locale language.Tag, keys ...string) error {
	q := p.db.WithContext(withScope(ctx, "delete", bundle, locale)).
		Where("bundle = ? AND locale = ?", bundle, locale.String())
	if len(keys) > 0 {
		q = q.Where("message_key IN ?", keys)
	}
	if err := q.Delete(&Message{}).Error; err != nil {
		return err
	}
	return p.announce(ctx, bundle)
}

func (p *Provider) announce(ctx context.Context, bundle string) error {
	if p.changes == nil {
		return nil
	}
	if err := cached.Announce(ctx, p.changes, bundle); err != nil {
		return fmt.Errorf("could not announce change of bundle %s: %w", bundle, err)
	}
	return nil
}

// Load reads the levels of the fallback chain of locale in one query.
func (p *Provider) Load(ctx context.Context, bundle string, locale language.Tag) (provider.ResourceSet, error) {
	candidates := provider.CandidatesWithDefault(locale, p.defaultLocale)
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.String())
	}

	var rows []Message
	err := p.db.WithContext(withScope(ctx, "load", bundle, locale)).
		Where("bundle = ? AND locale IN ?", bundle, names).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("could not load bundle '%s': %w", bundle, err)
	}

	byLocale := map[string]map[string]string{}
	for _, r := range rows {
		level, ok := byLocale[r.Locale]
		if !ok {
			level = map[string]string{}
			byLocale[r.Locale] = level
		}
		level[r.Key] = r.Value
	}

	levels := make([]provider.Level, 0, len(byLocale))
	for i, c := range candidates {
		if values, ok := byLocale[names[i]]; ok {
			levels = append(levels, provider.Level{Locale: c, Values: values})
		}
	}

	set := provider.NewLayeredSet(locale, provider.DefaultLevels(locale, levels)...)
	if set.Empty() {
		return nil, provider.NotFound(bundle, locale)
	}
	return set, nil
}
