package polyglot

import (
	"context"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/pitabwire/polyglot/config"
	"github.com/pitabwire/polyglot/contract"
	"github.com/pitabwire/polyglot/provider"
)

// Option configures an Engine.
type Option func(ctx context.Context, e *Engine)

// WithConfig Option that helps to specify or override the configuration object of the engine.
// Configurations implementing config.ConfigurationMessages set the resolution switches and
// the default locale.
func WithConfig(cfg any) Option {
	return func(ctx context.Context, e *Engine) {
		e.configuration = cfg

		if msgCfg, ok := cfg.(config.ConfigurationMessages); ok {
			e.config.Store(&Configuration{
				RaiseOnMissingResource: msgCfg.RaiseOnMissingResource(),
				CacheInstances:         msgCfg.CacheInstances(),
			})

			if l := msgCfg.DefaultLocale(); l != "" {
				tag, err := language.Parse(l)
				if err != nil {
					util.Log(ctx).WithError(err).WithField("locale", l).Warn("ignoring unparseable default locale")
				} else {
					e.defaultLocale = tag
				}
			}
		}

		WithLogger()(ctx, e)
	}
}

// Config is the configuration object given with WithConfig.
func (e *Engine) Config() any {
	return e.configuration
}

// WithLogger Option that helps with initialization of the engine logger.
func WithLogger(opts ...util.Option) Option {
	return func(ctx context.Context, e *Engine) {
		if e.Config() != nil {
			cfg, ok := e.Config().(config.ConfigurationLogLevel)
			if ok {
				logLevel, err := util.ParseLevel(cfg.LoggingLevel())
				if err == nil {
					opts = append([]util.Option{util.WithLogLevel(logLevel)}, opts...)
				}
				if cfg.LoggingShowStackTrace() {
					opts = append(opts, util.WithLogStackTrace())
				}
				opts = append([]util.Option{
					util.WithLogTimeFormat(cfg.LoggingTimeFormat()),
					util.WithLogNoColor(!cfg.LoggingColored()),
				}, opts...)
			}
		}

		log := util.NewLogger(ctx, opts...)
		e.logger = log.WithField("component", "polyglot")
	}
}

// WithRegistry makes the engine describe contracts with r instead of
// contract.DefaultRegistry.
func WithRegistry(r *contract.Registry) Option {
	return func(_ context.Context, e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithHandler registers the factory building handlers of kind. It replaces
// a built-in kind of the same name.
func WithHandler(kind contract.HandlerKind, factory HandlerFactory) Option {
	return func(ctx context.Context, e *Engine) {
		if kind == "" || factory == nil {
			util.Log(ctx).WithField("kind", kind).Warn("ignoring incomplete handler registration")
			return
		}
		e.handlers[kind] = factory
	}
}

// WithDefaultProvider sets the provider CreateInstanceDefault resolves with.
func WithDefaultProvider(p provider.Provider) Option {
	return func(_ context.Context, e *Engine) {
		e.defaultProvider = p
	}
}

// WithDefaultLocale sets the locale used when none is given or found.
func WithDefaultLocale(locale language.Tag) Option {
	return func(_ context.Context, e *Engine) {
		e.defaultLocale = locale
	}
}

// WithMeterProvider records engine metrics on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(_ context.Context, e *Engine) {
		e.meterProvider = mp
	}
}

// WithTracerProvider records engine spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(_ context.Context, e *Engine) {
		e.tracerProvider = tp
	}
}
