package polyglot

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/pitabwire/polyglot/contract"
	"github.com/pitabwire/polyglot/internal/msgformat"
	"github.com/pitabwire/polyglot/internal/telemetry"
	"github.com/pitabwire/polyglot/provider"
)

const (
	outcomeDefault     = "default"
	outcomeError       = "error"
	outcomePlaceholder = "placeholder"
)

// Handler answers the method calls of one bound contract.
type Handler interface {
	Handle(ctx context.Context, m contract.Method, args []any) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, m contract.Method, args []any) (string, error)

func (f HandlerFunc) Handle(ctx context.Context, m contract.Method, args []any) (string, error) {
	return f(ctx, m, args)
}

// HandlerFactory builds the handler of a new instance.
type HandlerFactory func(ctx context.Context, b Binding) (Handler, error)

// Binding is the resolution context an instance was created for.
type Binding struct {
	Engine   *Engine
	Contract *contract.Contract
	Locale   language.Tag
	Provider provider.Provider
}

// Bundle is the resource bundle name of the bound contract.
func (b Binding) Bundle() string {
	return contract.DeriveBundleName(b.Contract)
}

// Missing applies the missing resource policy to m. The default message
// wins, then RaiseOnMissingResource turns the miss into an error, else the
// "???name???" placeholder is returned. cause may be nil.
func (b Binding) Missing(ctx context.Context, m contract.Method, cause error) (string, error) {
	e := b.Engine
	bundle := b.Bundle()
	key := m.ResourceKey()

	log := e.Log(ctx).WithFields(map[string]any{
		"bundle": bundle,
		"key":    key,
		"locale": b.Locale.String(),
	})

	var (
		outcome string
		value   string
		err     error
	)
	switch {
	case m.HasDefault:
		outcome = outcomeDefault
		value = m.Default
		log.Debug("missing resource answered by default message")
	case e.Configuration().RaiseOnMissingResource:
		outcome = outcomeError
		err = &Error{
			Reason:  ReasonMissingResource,
			Message: "missing key '" + key + "' in resource bundle '" + bundle + "' for locale '" + b.Locale.String() + "'",
			Bundle:  bundle,
			Key:     key,
			Locale:  b.Locale.String(),
			Err:     cause,
		}
		log.Warn("missing resource")
	default:
		outcome = outcomePlaceholder
		value = "???" + m.Name + "???"
		log.Warn("missing resource answered by placeholder")
	}

	e.missingCounter.Add(ctx, 1, metric.WithAttributes(
		telemetry.AttrBundleKey.String(bundle),
		telemetry.AttrLocaleKey.String(b.Locale.String()),
		telemetry.AttrOutcomeKey.String(outcome),
	))

	return value, err
}

type bundleHandler struct {
	binding Binding
	bundle  string
}

func newBundleHandler(_ context.Context, b Binding) (Handler, error) {
	return &bundleHandler{binding: b, bundle: b.Bundle()}, nil
}

func (h *bundleHandler) Handle(ctx context.Context, m contract.Method, args []any) (string, error) {
	set, err := h.binding.Engine.load(ctx, h.bundle, h.binding.Locale, h.binding.Provider)
	if err != nil {
		if errors.Is(err, provider.ErrBundleNotFound) {
			return h.binding.Missing(ctx, m, err)
		}
		return "", &Error{
			Reason:  ReasonInternal,
			Message: "could not load resource bundle '" + h.bundle + "'",
			Bundle:  h.bundle,
			Locale:  h.binding.Locale.String(),
			Err:     err,
		}
	}

	key := m.ResourceKey()
	entry, ok := set.Lookup(key)
	if !ok {
		return h.binding.Missing(ctx, m, nil)
	}
	if m.Arity == 0 {
		return entry.Value, nil
	}

	out, err := msgformat.Format(h.binding.Locale, entry.Value, args...)
	if err != nil {
		return "", &Error{
			Reason:  ReasonInternal,
			Message: "could not format message",
			Bundle:  h.bundle,
			Key:     key,
			Locale:  h.binding.Locale.String(),
			Err:     err,
		}
	}
	return out, nil
}

// keyHandler answers every call with the resource key, which makes
// untranslated screens easy to spot.
type keyHandler struct{}

func newKeyHandler(_ context.Context, _ Binding) (Handler, error) {
	return keyHandler{}, nil
}

func (keyHandler) Handle(_ context.Context, m contract.Method, _ []any) (string, error) {
	return m.ResourceKey(), nil
}

func (e *Engine) load(
	ctx context.Context,
	bundle string,
	locale language.Tag,
	p provider.Provider,
) (set provider.ResourceSet, err error) {
	ctx, span := e.tracer.Start(ctx, "Load", trace.WithAttributes(
		telemetry.AttrBundleKey.String(bundle),
		telemetry.AttrLocaleKey.String(locale.String()),
	))
	defer func() {
		e.tracer.End(ctx, span, err)
	}()

	return p.Load(ctx, bundle, locale)
}
