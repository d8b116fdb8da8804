package polyglot_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pitabwire/util"
	"github.com/stretchr/testify/suite"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/text/language"

	"github.com/pitabwire/polyglot"
	"github.com/pitabwire/polyglot/contract"
	"github.com/pitabwire/polyglot/internal/telemetry"
	"github.com/pitabwire/polyglot/localization"
	"github.com/pitabwire/polyglot/provider"
)

const messagesBundle = "messages"

type MyMessageResource interface {
	Cancel() string
	Ok() string
	YouHaveNRetries(n int) string
	NoDefaultKey() string
	MissingResource() string
}

type SpecificMessageResource interface {
	MyMessageResource
	SpecificMessage() string
}

type UnboundResource interface {
	Ok() string
}

type AuditedResource interface {
	MissingResource() string
	ResourceAvailable() string
	NotAvailable() string
	Available() string
}

type KeyedResource interface {
	Greeting() string
	Farewell(name string) string
}

type WrongSignature interface {
	Ok() string
	Count() int
}

type VariadicResource interface {
	Join(parts ...string) string
}

type notAnInterface struct{}

// countingProvider records how often Load is called.
type countingProvider struct {
	inner provider.Provider
	calls atomic.Int32
}

func (p *countingProvider) Load(ctx context.Context, bundle string, locale language.Tag) (provider.ResourceSet, error) {
	p.calls.Add(1)
	return p.inner.Load(ctx, bundle, locale)
}

type valueProvider struct{}

func (valueProvider) Load(_ context.Context, bundle string, locale language.Tag) (provider.ResourceSet, error) {
	return nil, provider.NotFound(bundle, locale)
}

type failingProvider struct {
	addr string
}

func (p *failingProvider) Load(context.Context, string, language.Tag) (provider.ResourceSet, error) {
	return nil, errors.New("dial " + p.addr + ": connection refused")
}

type emptyProvider struct{}

func (*emptyProvider) Load(_ context.Context, bundle string, locale language.Tag) (provider.ResourceSet, error) {
	return nil, provider.NotFound(bundle, locale)
}

type EngineTestSuite struct {
	suite.Suite

	ctx      context.Context
	registry *contract.Registry
	reader   *sdkmetric.ManualReader
	logs     *bytes.Buffer
	engine   *polyglot.Engine
	memory   *provider.Memory
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, &EngineTestSuite{})
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.registry = contract.NewRegistry()

	s.Require().NoError(polyglot.DefineIn[MyMessageResource](s.registry,
		polyglot.WithBundleName(messagesBundle),
		polyglot.WithMessage("Ok", polyglot.Default("OK")),
		polyglot.WithMessage("NoDefaultKey", polyglot.Key("no.default.key")),
	))
	s.Require().NoError(polyglot.DefineIn[SpecificMessageResource](s.registry,
		polyglot.WithBundleName("specific"),
		polyglot.Embeds[MyMessageResource](),
	))
	s.Require().NoError(polyglot.DefineIn[AuditedResource](s.registry,
		polyglot.WithBundleName("audit"),
		polyglot.WithMessage("MissingResource", polyglot.Key("missingResource"), polyglot.Default("fallback")),
		polyglot.WithMessage("ResourceAvailable", polyglot.Key("resourceAvailable")),
		polyglot.WithMessage("NotAvailable", polyglot.Key("custom.key.notAvailable")),
		polyglot.WithMessage("Available", polyglot.Key("custom.key.available")),
	))
	s.Require().NoError(polyglot.DefineIn[KeyedResource](s.registry,
		polyglot.WithHandlerKind(contract.HandlerKey),
		polyglot.WithMessage("Greeting", polyglot.Key("greeting.title")),
	))

	s.memory = provider.NewMemory().
		Add(messagesBundle, language.Und, map[string]string{
			"Cancel":          "Cancel",
			"YouHaveNRetries": "You still have {0} retries.",
			"no.default.key":  "No default key.",
		}).
		Add(messagesBundle, language.German, map[string]string{
			"Cancel":          "Abbruch",
			"YouHaveNRetries": "Du hast noch {0} Versuche.",
		}).
		Add("specific", language.Und, map[string]string{
			"Cancel":          "Cancel",
			"SpecificMessage": "Specific message from SpecificMessageResource.",
		}).
		Add("audit", language.Und, map[string]string{
			"resourceAvailable":    "here",
			"custom.key.available": "here too",
		})

	s.reader = sdkmetric.NewManualReader()
	s.logs = &bytes.Buffer{}
	s.engine = polyglot.New(s.ctx,
		polyglot.WithRegistry(s.registry),
		polyglot.WithLogger(util.WithLogOutput(s.logs), util.WithLogNoColor(true)),
		polyglot.WithMeterProvider(sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(s.reader),
			sdkmetric.WithView(telemetry.Views("polyglot")...),
		)),
	)
}

func (s *EngineTestSuite) instance(t reflect.Type, locale language.Tag) *polyglot.Instance {
	inst, err := s.engine.CreateInstance(s.ctx, t, locale, s.memory)
	s.Require().NoError(err)
	return inst
}

func (s *EngineTestSuite) strict() {
	s.Require().NoError(s.engine.SetConfiguration(&polyglot.Configuration{
		RaiseOnMissingResource: true,
		CacheInstances:         true,
	}))
}

func (s *EngineTestSuite) TestResolvesMessages() {
	testCases := []struct {
		name     string
		locale   language.Tag
		method   string
		args     []any
		expected string
	}{
		{name: "root verbatim", locale: language.English, method: "Cancel", expected: "Cancel"},
		{name: "german verbatim", locale: language.German, method: "Cancel", expected: "Abbruch"},
		{name: "regional falls back to language", locale: language.MustParse("de-CH"), method: "Cancel", expected: "Abbruch"},
		{
			name:     "formatted",
			locale:   language.English,
			method:   "YouHaveNRetries",
			args:     []any{5},
			expected: "You still have 5 retries.",
		},
		{
			name:     "formatted german",
			locale:   language.German,
			method:   "YouHaveNRetries",
			args:     []any{5},
			expected: "Du hast noch 5 Versuche.",
		},
		{name: "explicit key", locale: language.English, method: "NoDefaultKey", expected: "No default key."},
		{name: "german falls back to root", locale: language.German, method: "NoDefaultKey", expected: "No default key."},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			inst := s.instance(reflect.TypeFor[MyMessageResource](), tc.locale)
			out, err := inst.Message(s.ctx, tc.method, tc.args...)
			s.Require().NoError(err)
			s.Equal(tc.expected, out)
		})
	}
}

func (s *EngineTestSuite) TestMissingResourcePolicy() {
	testCases := []struct {
		name     string
		strict   bool
		method   string
		expected string
		reason   polyglot.Reason
	}{
		{name: "default message lenient", method: "Ok", expected: "OK"},
		{name: "default message strict", strict: true, method: "Ok", expected: "OK"},
		{name: "placeholder lenient", method: "MissingResource", expected: "???MissingResource???"},
		{name: "error strict", strict: true, method: "MissingResource", reason: polyglot.ReasonMissingResource},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Require().NoError(s.engine.SetConfiguration(&polyglot.Configuration{
				RaiseOnMissingResource: tc.strict,
				CacheInstances:         true,
			}))

			inst := s.instance(reflect.TypeFor[MyMessageResource](), language.English)
			out, err := inst.Message(s.ctx, tc.method)
			if tc.reason != "" {
				s.Require().Error(err)
				s.Equal(tc.reason, polyglot.ReasonOf(err))
				s.Require().ErrorIs(err, polyglot.ErrMissingResource)

				var perr *polyglot.Error
				s.Require().ErrorAs(err, &perr)
				s.Equal(messagesBundle, perr.Bundle)
				s.Equal("MissingResource", perr.Key)
				s.Equal("en", perr.Locale)
				return
			}
			s.Require().NoError(err)
			s.Equal(tc.expected, out)
		})
	}
}

func (s *EngineTestSuite) TestMissingBundle() {
	inst := s.instance(reflect.TypeFor[UnboundResource](), language.English)

	out, err := inst.Message(s.ctx, "Ok")
	s.Require().NoError(err)
	s.Equal("???Ok???", out)

	s.strict()
	_, err = inst.Message(s.ctx, "Ok")
	s.Require().ErrorIs(err, polyglot.ErrMissingResource)
	s.Require().ErrorIs(err, provider.ErrBundleNotFound)
}

func (s *EngineTestSuite) TestProviderFailureIsInternal() {
	inst, err := s.engine.CreateInstance(s.ctx, reflect.TypeFor[MyMessageResource](), language.English, &failingProvider{addr: "127.0.0.1:1"})
	s.Require().NoError(err)

	_, err = inst.Message(s.ctx, "Cancel")
	s.Require().ErrorIs(err, polyglot.ErrInternal)
	s.Equal(polyglot.ReasonInternal, polyglot.ReasonOf(err))
}

func (s *EngineTestSuite) TestMalformedTemplateIsInternal() {
	s.memory.Add(messagesBundle, language.French, map[string]string{"YouHaveNRetries": "Encore {0 essais"})
	inst := s.instance(reflect.TypeFor[MyMessageResource](), language.French)

	_, err := inst.Message(s.ctx, "YouHaveNRetries", 3)
	s.Require().ErrorIs(err, polyglot.ErrInternal)
}

func (s *EngineTestSuite) TestMissingResourcesAreCounted() {
	inst := s.instance(reflect.TypeFor[MyMessageResource](), language.English)
	_, err := inst.Message(s.ctx, "MissingResource")
	s.Require().NoError(err)
	_, err = inst.Message(s.ctx, "Ok")
	s.Require().NoError(err)

	var rm metricdata.ResourceMetrics
	s.Require().NoError(s.reader.Collect(s.ctx, &rm))

	outcomes := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "polyglot/missing_resources" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			s.Require().True(ok)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(telemetry.AttrOutcomeKey)
				outcomes[v.AsString()] += dp.Value
			}
		}
	}
	s.Equal(map[string]int64{"placeholder": 1, "default": 1}, outcomes)
	s.Contains(s.logs.String(), "missing resource answered by placeholder")
}

func (s *EngineTestSuite) TestInvocationChecks() {
	inst := s.instance(reflect.TypeFor[MyMessageResource](), language.English)

	_, err := inst.Message(s.ctx, "Unknown")
	s.Require().ErrorIs(err, polyglot.ErrInvalidArgument)

	_, err = inst.Message(s.ctx, "YouHaveNRetries")
	s.Require().ErrorIs(err, polyglot.ErrInvalidArgument)

	_, err = inst.Message(s.ctx, "Cancel", "extra")
	s.Require().ErrorIs(err, polyglot.ErrInvalidArgument)

	s.Require().Panics(func() {
		inst.MustMessage(s.ctx, "Unknown")
	})
	s.Equal("Cancel", inst.MustMessage(s.ctx, "Cancel"))
}

func (s *EngineTestSuite) TestInstanceCache() {
	t := reflect.TypeFor[MyMessageResource]()

	first := s.instance(t, language.English)
	for range 10 {
		s.Same(first, s.instance(t, language.English))
	}
	s.NotSame(first, s.instance(t, language.German))

	other := provider.NewMemory()
	second, err := s.engine.CreateInstance(s.ctx, t, language.English, other)
	s.Require().NoError(err)
	s.NotSame(first, second)
	s.Equal(3, s.engine.CachedInstances())

	s.Require().NoError(s.engine.SetConfiguration(&polyglot.Configuration{CacheInstances: false}))
	s.NotSame(first, s.instance(t, language.English))
	s.NotSame(s.instance(t, language.English), s.instance(t, language.English))
	s.Equal(3, s.engine.CachedInstances())

	s.engine.PurgeInstances()
	s.Zero(s.engine.CachedInstances())
}

func (s *EngineTestSuite) TestConcurrentCreateAndResolve() {
	t := reflect.TypeFor[MyMessageResource]()

	const workers = 16
	var wg sync.WaitGroup
	got := make([]*polyglot.Instance, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inst, err := s.engine.CreateInstance(s.ctx, t, language.German, s.memory)
			if err != nil {
				return
			}
			got[i] = inst
			_, _ = inst.Message(s.ctx, "YouHaveNRetries", i)
		}()
	}
	wg.Wait()

	for _, inst := range got {
		s.Require().NotNil(inst)
		s.Same(got[0], inst)
	}
}

func (s *EngineTestSuite) TestVerificationHappensBeforeProviderCalls() {
	testCases := []struct {
		name     string
		contract reflect.Type
		locale   language.Tag
		provider func(p *countingProvider) provider.Provider
		reason   polyglot.Reason
	}{
		{name: "nil contract", locale: language.English, reason: polyglot.ReasonInvalidArgument},
		{
			name:     "not an interface",
			contract: reflect.TypeFor[notAnInterface](),
			locale:   language.English,
			reason:   polyglot.ReasonInvalidArgument,
		},
		{
			name:     "method not returning string",
			contract: reflect.TypeFor[WrongSignature](),
			locale:   language.English,
			reason:   polyglot.ReasonInvalidMethodSignature,
		},
		{
			name:     "variadic method",
			contract: reflect.TypeFor[VariadicResource](),
			locale:   language.English,
			reason:   polyglot.ReasonInvalidMethodSignature,
		},
		{
			name:     "absent locale",
			contract: reflect.TypeFor[MyMessageResource](),
			reason:   polyglot.ReasonInvalidArgument,
		},
		{
			name:     "nil provider",
			contract: reflect.TypeFor[MyMessageResource](),
			locale:   language.English,
			provider: func(*countingProvider) provider.Provider { return nil },
			reason:   polyglot.ReasonInvalidArgument,
		},
		{
			name:     "typed nil provider",
			contract: reflect.TypeFor[MyMessageResource](),
			locale:   language.English,
			provider: func(*countingProvider) provider.Provider { return (*countingProvider)(nil) },
			reason:   polyglot.ReasonInvalidArgument,
		},
		{
			name:     "non pointer provider",
			contract: reflect.TypeFor[MyMessageResource](),
			locale:   language.English,
			provider: func(*countingProvider) provider.Provider { return valueProvider{} },
			reason:   polyglot.ReasonInvalidArgument,
		},
		{
			name:     "zero size provider",
			contract: reflect.TypeFor[MyMessageResource](),
			locale:   language.English,
			provider: func(*countingProvider) provider.Provider { return &emptyProvider{} },
			reason:   polyglot.ReasonInvalidArgument,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			counting := &countingProvider{inner: s.memory}
			var p provider.Provider = counting
			if tc.provider != nil {
				p = tc.provider(counting)
			}

			_, err := s.engine.CreateInstance(s.ctx, tc.contract, tc.locale, p)
			s.Require().Error(err)
			s.Equal(tc.reason, polyglot.ReasonOf(err))

			_, err = s.engine.Sync(s.ctx, tc.contract, tc.locale, p)
			s.Require().Error(err)
			s.Equal(tc.reason, polyglot.ReasonOf(err))

			s.Zero(counting.calls.Load())
		})
	}
}

func (s *EngineTestSuite) TestSync() {
	report, err := s.engine.Sync(s.ctx, reflect.TypeFor[AuditedResource](), language.English, s.memory)
	s.Require().NoError(err)

	s.ElementsMatch([]string{"missingResource", "custom.key.notAvailable"}, report.Missing())
	s.True(report.Contains("missingResource"))
	s.False(report.Contains("resourceAvailable"))
	s.False(report.Empty())
	s.Equal("audit", report.Bundle())
	s.Equal(language.English, report.Locale())
	s.Equal(contract.TypeName(reflect.TypeFor[AuditedResource]()), report.Contract())

	missing := report.Missing()
	missing[0] = "changed"
	s.NotEqual("changed", report.Missing()[0])
}

func (s *EngineTestSuite) TestSyncMissingBundle() {
	_, err := s.engine.Sync(s.ctx, reflect.TypeFor[UnboundResource](), language.English, s.memory)
	s.Require().ErrorIs(err, polyglot.ErrMissingResource)

	_, err = s.engine.Sync(s.ctx, reflect.TypeFor[MyMessageResource](), language.English, &failingProvider{addr: "127.0.0.1:1"})
	s.Require().ErrorIs(err, polyglot.ErrMissingResource)
}

func (s *EngineTestSuite) TestSyncContract() {
	c, err := contract.New("static.Contract",
		contract.WithBundleName("audit"),
		contract.WithMethods(
			contract.Method{Name: "resourceAvailable"},
			contract.Method{Name: "other", Key: "custom.key.notAvailable"},
			contract.Method{Name: "again", Key: "custom.key.notAvailable"},
		))
	s.Require().NoError(err)

	report, err := s.engine.SyncContract(s.ctx, c, language.German, s.memory)
	s.Require().NoError(err)
	s.Equal([]string{"custom.key.notAvailable"}, report.Missing())

	_, err = s.engine.SyncContract(s.ctx, nil, language.German, s.memory)
	s.Require().ErrorIs(err, polyglot.ErrInvalidArgument)
}

func (s *EngineTestSuite) TestEmbeddedContract() {
	inst := s.instance(reflect.TypeFor[SpecificMessageResource](), language.English)

	out, err := inst.Message(s.ctx, "SpecificMessage")
	s.Require().NoError(err)
	s.Equal("Specific message from SpecificMessageResource.", out)

	out, err = inst.Message(s.ctx, "Ok")
	s.Require().NoError(err)
	s.Equal("OK", out, "default message is inherited")
}

func (s *EngineTestSuite) TestKeyHandler() {
	inst := s.instance(reflect.TypeFor[KeyedResource](), language.English)

	out, err := inst.Message(s.ctx, "Greeting")
	s.Require().NoError(err)
	s.Equal("greeting.title", out)

	out, err = inst.Message(s.ctx, "Farewell", "ada")
	s.Require().NoError(err)
	s.Equal("Farewell", out)
}

func (s *EngineTestSuite) TestCustomHandler() {
	var called atomic.Bool
	engine := polyglot.New(s.ctx,
		polyglot.WithRegistry(s.registry),
		polyglot.WithHandler(contract.HandlerKey, func(_ context.Context, b polyglot.Binding) (polyglot.Handler, error) {
			return polyglot.HandlerFunc(func(ctx context.Context, m contract.Method, _ []any) (string, error) {
				called.Store(true)
				return b.Missing(ctx, m, nil)
			}), nil
		}),
	)

	inst, err := engine.CreateInstance(s.ctx, reflect.TypeFor[KeyedResource](), language.English, s.memory)
	s.Require().NoError(err)

	out, err := inst.Message(s.ctx, "Greeting")
	s.Require().NoError(err)
	s.True(called.Load())
	s.Equal("???Greeting???", out)
}

func (s *EngineTestSuite) TestUnknownHandlerKind() {
	registry := contract.NewRegistry()
	s.Require().NoError(polyglot.DefineIn[UnboundResource](registry, polyglot.WithHandlerKind("database")))

	engine := polyglot.New(s.ctx, polyglot.WithRegistry(registry))
	_, err := engine.CreateInstance(s.ctx, reflect.TypeFor[UnboundResource](), language.English, s.memory)
	s.Require().ErrorIs(err, polyglot.ErrInvalidArgument)
}

func (s *EngineTestSuite) TestConfiguration() {
	s.Equal(polyglot.Configuration{CacheInstances: true}, s.engine.Configuration())

	err := s.engine.SetConfiguration(nil)
	s.Require().ErrorIs(err, polyglot.ErrInvalidArgument)
	s.Equal(polyglot.ReasonInvalidArgument, polyglot.ReasonOf(err))

	cfg := &polyglot.Configuration{RaiseOnMissingResource: true}
	ctx := polyglot.ToContext(s.ctx, s.engine)
	s.Require().NoError(polyglot.SetConfiguration(ctx, cfg))
	cfg.CacheInstances = true
	s.Equal(polyglot.Configuration{RaiseOnMissingResource: true}, polyglot.GetConfiguration(ctx))
	s.Same(s.engine, polyglot.FromContext(ctx))
	s.Nil(polyglot.FromContext(s.ctx))
}

func (s *EngineTestSuite) TestContextEntryPoints() {
	ctx := polyglot.ToContext(s.ctx, s.engine)

	inst, err := polyglot.CreateInstance[MyMessageResource](ctx, language.German, s.memory)
	s.Require().NoError(err)
	s.Equal("Abbruch", inst.MustMessage(ctx, "Cancel"))

	ctx = localization.ToContext(ctx, []string{"de-AT"})
	byCtx, err := polyglot.CreateInstanceForContext[MyMessageResource](ctx, s.memory)
	s.Require().NoError(err)
	s.Equal("Abbruch", byCtx.MustMessage(ctx, "Cancel"))

	report, err := polyglot.Sync[AuditedResource](ctx, language.English, s.memory)
	s.Require().NoError(err)
	s.Len(report.Missing(), 2)
}

func (s *EngineTestSuite) TestDefaultEngine() {
	engine := polyglot.DefaultEngine()
	s.Require().NotNil(engine)
	s.Same(engine, polyglot.DefaultEngine())
	s.Equal(engine.Configuration(), polyglot.GetConfiguration(s.ctx))
}

func (s *EngineTestSuite) TestDefaults() {
	engine := polyglot.New(s.ctx,
		polyglot.WithRegistry(s.registry),
		polyglot.WithDefaultProvider(s.memory),
		polyglot.WithDefaultLocale(language.German),
	)
	s.Equal(language.German, engine.DefaultLocale())

	inst, err := engine.CreateInstanceDefault(s.ctx, reflect.TypeFor[MyMessageResource]())
	s.Require().NoError(err)
	s.Equal("Abbruch", inst.MustMessage(s.ctx, "Cancel"))

	inst, err = engine.CreateInstanceForContext(s.ctx, reflect.TypeFor[MyMessageResource](), nil)
	s.Require().NoError(err)
	s.Equal(language.German, inst.Locale())

	_, err = s.engine.CreateInstanceDefault(s.ctx, reflect.TypeFor[MyMessageResource]())
	s.Require().ErrorIs(err, polyglot.ErrInvalidArgument)
}
