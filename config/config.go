package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type contextKey string

func (c contextKey) String() string {
	return "polyglot/config/" + string(c)
}

const (
	ctxKeyConfiguration = contextKey("configurationKey")

	DefaultSlowQueryThreshold = 200 * time.Millisecond
	DefaultProviderCacheTTL   = 5 * time.Minute
)

// ToContext adds configuration to the current supplied context.
func ToContext(ctx context.Context, config any) context.Context {
	return context.WithValue(ctx, ctxKeyConfiguration, config)
}

// FromContext extracts configuration from the supplied context if any exist.
func FromContext[T any](ctx context.Context) T {
	if cfg, ok := ctx.Value(ctxKeyConfiguration).(T); ok {
		return cfg
	}
	var zero T
	return zero
}

// FromEnv convenience method to process configs.
func FromEnv[T any]() (T, error) {
	return env.ParseAs[T]()
}

// FillEnv convenience method to fill a config object with environment data.
func FillEnv(v any) error {
	return env.Parse(v)
}

// LoadFile overlays v with the values of a yaml manifest. Keys missing from
// the file keep their current value.
func LoadFile(path string, v any) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return nil
}

type ConfigurationDefault struct {
	LogLevel      string `envDefault:"info"                      env:"LOG_LEVEL"       yaml:"log_level"`
	LogFormat     string `envDefault:"info"                      env:"LOG_FORMAT"      yaml:"log_format"`
	LogTimeFormat string `envDefault:"2006-01-02T15:04:05Z07:00" env:"LOG_TIME_FORMAT" yaml:"log_time_format"`
	LogColored    bool   `envDefault:"true"                      env:"LOG_COLORED"     yaml:"log_colored"`

	LogShowStackTrace bool `envDefault:"false" env:"LOG_SHOW_STACK_TRACE" yaml:"log_show_stack_trace"`

	RaiseOnMissingResourceValue bool   `envDefault:"false" env:"POLYGLOT_RAISE_ON_MISSING_RESOURCE" yaml:"raise_on_missing_resource"`
	CacheInstancesValue         bool   `envDefault:"true"  env:"POLYGLOT_CACHE_INSTANCES"           yaml:"cache_instances"`
	DefaultLocaleValue          string `envDefault:""      env:"POLYGLOT_DEFAULT_LOCALE"            yaml:"default_locale"`

	ResourcesPath         string `envDefault:"localization" env:"POLYGLOT_RESOURCES"          yaml:"resources"`
	ProviderCacheTTLValue string `envDefault:"5m"           env:"POLYGLOT_PROVIDER_CACHE_TTL" yaml:"provider_cache_ttl"`

	SyncLocales    []string `env:"POLYGLOT_SYNC_LOCALES"     yaml:"sync_locales"                     envSeparator:","`
	SyncBreakBuild bool     `env:"POLYGLOT_SYNC_BREAK_BUILD" yaml:"sync_break_build" envDefault:"false"`
	SyncWorkers    int      `env:"POLYGLOT_SYNC_WORKERS"     yaml:"sync_workers"     envDefault:"0"`

	InvalidationURLValue string `env:"POLYGLOT_INVALIDATION_URL" yaml:"invalidation_url"`

	DatabaseURL                   string `env:"POLYGLOT_DATABASE_URL"          yaml:"database_url"`
	DatabaseTraceQueries          bool   `env:"DATABASE_LOG_QUERIES"           yaml:"database_log_queries"          envDefault:"false"`
	DatabaseSlowQueryLogThreshold string `env:"DATABASE_SLOW_QUERY_THRESHOLD"  yaml:"database_slow_query_threshold" envDefault:"200ms"`
}

type ConfigurationLogLevel interface {
	LoggingLevel() string
	LoggingFormat() string
	LoggingTimeFormat() string
	LoggingShowStackTrace() bool
	LoggingColored() bool
	LoggingLevelIsDebug() bool
}

var _ ConfigurationLogLevel = new(ConfigurationDefault)

func (c *ConfigurationDefault) LoggingLevel() string {
	return c.LogLevel
}

func (c *ConfigurationDefault) LoggingTimeFormat() string {
	return c.LogTimeFormat
}

func (c *ConfigurationDefault) LoggingFormat() string {
	return c.LogFormat
}

func (c *ConfigurationDefault) LoggingColored() bool {
	return c.LogColored
}

func (c *ConfigurationDefault) LoggingShowStackTrace() bool {
	return c.LogShowStackTrace
}

func (c *ConfigurationDefault) LoggingLevelIsDebug() bool {
	return c.LoggingLevel() == "debug" || c.LoggingLevel() == "trace"
}

// ConfigurationMessages carries the process-wide resolution switches.
type ConfigurationMessages interface {
	RaiseOnMissingResource() bool
	CacheInstances() bool
	DefaultLocale() string
}

var _ ConfigurationMessages = new(ConfigurationDefault)

func (c *ConfigurationDefault) RaiseOnMissingResource() bool {
	return c.RaiseOnMissingResourceValue
}

func (c *ConfigurationDefault) CacheInstances() bool {
	return c.CacheInstancesValue
}

func (c *ConfigurationDefault) DefaultLocale() string {
	return strings.TrimSpace(c.DefaultLocaleValue)
}

type ConfigurationResources interface {
	ResourcesDir() string
	ProviderCacheTTL() time.Duration
	InvalidationURL() string
}

var _ ConfigurationResources = new(ConfigurationDefault)

func (c *ConfigurationDefault) ResourcesDir() string {
	return c.ResourcesPath
}

// InvalidationURL is the gocloud pubsub url carrying cache invalidations.
func (c *ConfigurationDefault) InvalidationURL() string {
	return strings.TrimSpace(c.InvalidationURLValue)
}

func (c *ConfigurationDefault) ProviderCacheTTL() time.Duration {
	ttl, err := time.ParseDuration(c.ProviderCacheTTLValue)
	if err != nil {
		return DefaultProviderCacheTTL
	}
	return ttl
}

type ConfigurationSync interface {
	Locales() []string
	BreakBuild() bool
	Workers() int
}

var _ ConfigurationSync = new(ConfigurationDefault)

func (c *ConfigurationDefault) Locales() []string {
	var locales []string
	for _, l := range c.SyncLocales {
		if l = strings.TrimSpace(l); l != "" {
			locales = append(locales, l)
		}
	}
	return locales
}

func (c *ConfigurationDefault) BreakBuild() bool {
	return c.SyncBreakBuild
}

// Workers is the number of concurrent audits, one per CPU unless set.
func (c *ConfigurationDefault) Workers() int {
	if c.SyncWorkers > 0 {
		return c.SyncWorkers
	}
	return runtime.NumCPU()
}

type ConfigurationDatabase interface {
	GetDatabaseURL() string
	CanDatabaseTraceQueries() bool
	GetDatabaseSlowQueryLogThreshold() time.Duration
}

var _ ConfigurationDatabase = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetDatabaseURL() string {
	return c.DatabaseURL
}

func (c *ConfigurationDefault) CanDatabaseTraceQueries() bool {
	return c.DatabaseTraceQueries
}

func (c *ConfigurationDefault) GetDatabaseSlowQueryLogThreshold() time.Duration {
	threshold, err := time.ParseDuration(c.DatabaseSlowQueryLogThreshold)
	if err != nil {
		threshold = DefaultSlowQueryThreshold
	}
	return threshold
}
