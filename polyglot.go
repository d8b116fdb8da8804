// Package polyglot resolves typed message contracts into localized text.
//
// A contract is a Go interface whose methods each name one message and
// return string. An Engine binds a contract to a locale and a
// provider.Provider and answers calls through an Instance.
package polyglot

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/pitabwire/polyglot/config"
	"github.com/pitabwire/polyglot/contract"
	"github.com/pitabwire/polyglot/internal/instcache"
	"github.com/pitabwire/polyglot/internal/telemetry"
	"github.com/pitabwire/polyglot/localization"
	"github.com/pitabwire/polyglot/provider"
)

type contextKey string

func (c contextKey) String() string {
	return "polyglot/" + string(c)
}

const (
	ctxKeyEngine = contextKey("engineKey")

	instrumentationName = "polyglot"
)

// Engine creates contract instances and audits resource sets.
// It is safe for concurrent use.
type Engine struct {
	logger        *util.LogEntry
	configuration any
	config        atomic.Pointer[Configuration]
	registry      *contract.Registry
	handlers      map[contract.HandlerKind]HandlerFactory
	instances     *instcache.Cache[*Instance]

	defaultProvider provider.Provider
	defaultLocale   language.Tag

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	tracer         telemetry.Tracer
	missingCounter metric.Int64Counter
}

// New creates an engine. Configuration is first read from the environment
// (see config.ConfigurationDefault) and then overridden by opts.
func New(ctx context.Context, opts ...Option) *Engine {
	e := &Engine{
		logger:    util.Log(ctx),
		registry:  contract.DefaultRegistry(),
		instances: instcache.New[*Instance](),
		handlers: map[contract.HandlerKind]HandlerFactory{
			contract.HandlerBundle: newBundleHandler,
			contract.HandlerKey:    newKeyHandler,
		},
	}
	e.config.Store(DefaultConfiguration())

	defaultCfg, err := config.FromEnv[config.ConfigurationDefault]()
	if err != nil {
		e.logger.WithError(err).Warn("could not read configuration from environment")
	} else {
		opts = append([]Option{WithConfig(&defaultCfg)}, opts...)
	}

	for _, opt := range opts {
		opt(ctx, e)
	}

	if e.meterProvider == nil {
		e.meterProvider = otel.GetMeterProvider()
	}
	if e.tracerProvider == nil {
		e.tracerProvider = otel.GetTracerProvider()
	}
	e.tracer = telemetry.NewTracerWith(e.tracerProvider, e.meterProvider, instrumentationName)
	e.missingCounter = telemetry.DimensionlessMeasure(e.meterProvider, instrumentationName,
		"/missing_resources", "Messages answered by the missing resource policy")

	return e
}

//nolint:gochecknoglobals // the default engine is created on first use
var defaultEngine = sync.OnceValue(func() *Engine {
	return New(context.Background())
})

// DefaultEngine returns the process wide engine used when a context carries
// none.
func DefaultEngine() *Engine {
	return defaultEngine()
}

// ToContext pushes an engine into the supplied context for easier propagation.
func ToContext(ctx context.Context, e *Engine) context.Context {
	return context.WithValue(ctx, ctxKeyEngine, e)
}

// FromContext obtains the engine propagated through the context.
func FromContext(ctx context.Context) *Engine {
	e, ok := ctx.Value(ctxKeyEngine).(*Engine)
	if !ok {
		return nil
	}
	return e
}

func engineFrom(ctx context.Context) *Engine {
	if e := FromContext(ctx); e != nil {
		return e
	}
	return DefaultEngine()
}

// SetConfiguration replaces the configuration of the engine found in ctx.
func SetConfiguration(ctx context.Context, cfg *Configuration) error {
	return engineFrom(ctx).SetConfiguration(cfg)
}

// GetConfiguration returns the configuration of the engine found in ctx.
func GetConfiguration(ctx context.Context) Configuration {
	return engineFrom(ctx).Configuration()
}

// Log returns the engine logger bound to ctx.
func (e *Engine) Log(ctx context.Context) *util.LogEntry {
	return e.logger.WithContext(ctx)
}

// Registry is the metadata registry contracts are described from.
func (e *Engine) Registry() *contract.Registry {
	return e.registry
}

// DefaultLocale is the locale used when none is given.
func (e *Engine) DefaultLocale() language.Tag {
	return e.defaultLocale
}

// CreateInstance binds the contract t to locale and p.
//
// With caching on, equal (t, locale, p) return the identical instance.
// All arguments are verified before any provider is consulted. The root
// locale (language.Und) counts as absent and is rejected, as is a provider
// that is not a non-nil pointer to a value of non-zero size.
func (e *Engine) CreateInstance(
	ctx context.Context,
	t reflect.Type,
	locale language.Tag,
	p provider.Provider,
) (*Instance, error) {
	c, err := e.registry.Resolve(t)
	if err != nil {
		return nil, fromContractError(err)
	}
	if err = verifyBinding(locale, p); err != nil {
		return nil, err
	}

	factory, ok := e.handlers[c.Handler()]
	if !ok {
		return nil, invalidArgument("contract %s uses unknown handler kind %q", c.Name(), c.Handler())
	}

	build := func() (*Instance, error) {
		return e.newInstance(ctx, c, factory, locale, p)
	}

	if !e.Configuration().CacheInstances {
		return build()
	}

	return e.instances.GetOrCreate(instcache.Key{
		Contract: t,
		Locale:   locale.String(),
		Provider: p,
	}, build)
}

// CreateInstanceDefault binds t to the default locale and provider of e.
func (e *Engine) CreateInstanceDefault(ctx context.Context, t reflect.Type) (*Instance, error) {
	return e.CreateInstance(ctx, t, e.defaultLocale, e.defaultProvider)
}

// CreateInstanceForContext binds t to the locale carried by ctx (see
// localization.ToContext), falling back to the default locale of e.
func (e *Engine) CreateInstanceForContext(ctx context.Context, t reflect.Type, p provider.Provider) (*Instance, error) {
	locale, ok := localization.Locale(ctx)
	if !ok {
		locale = e.defaultLocale
	}
	if p == nil {
		p = e.defaultProvider
	}
	return e.CreateInstance(ctx, t, locale, p)
}

// CachedInstances is the number of instances held by the cache.
func (e *Engine) CachedInstances() int {
	return e.instances.Len()
}

// PurgeInstances empties the instance cache.
func (e *Engine) PurgeInstances() {
	e.instances.Purge()
}

func verifyBinding(locale language.Tag, p provider.Provider) error {
	if locale.IsRoot() {
		return invalidArgument("locale is absent")
	}
	if p == nil {
		return invalidArgument("provider is nil")
	}

	v := reflect.ValueOf(p)
	if v.Kind() != reflect.Pointer {
		return invalidArgument("provider %T must be a pointer", p)
	}
	if v.IsNil() {
		return invalidArgument("provider %T is a nil pointer", p)
	}
	// pointers to zero size values may be equal, so they cannot identify a provider
	if v.Type().Elem().Size() == 0 {
		return invalidArgument("provider %T points to a zero size value", p)
	}
	return nil
}

// CreateInstance binds the contract T using the engine found in ctx.
func CreateInstance[T any](ctx context.Context, locale language.Tag, p provider.Provider) (*Instance, error) {
	return engineFrom(ctx).CreateInstance(ctx, reflect.TypeFor[T](), locale, p)
}

// CreateInstanceForContext binds the contract T to the locale carried by ctx.
func CreateInstanceForContext[T any](ctx context.Context, p provider.Provider) (*Instance, error) {
	return engineFrom(ctx).CreateInstanceForContext(ctx, reflect.TypeFor[T](), p)
}
