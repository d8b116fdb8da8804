package polyglot

import (
	"context"
	"reflect"
	"slices"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/pitabwire/polyglot/contract"
	"github.com/pitabwire/polyglot/internal/telemetry"
	"github.com/pitabwire/polyglot/provider"
)

// SyncReport lists the keys of a contract a resource set lacks.
type SyncReport struct {
	contract string
	bundle   string
	locale   language.Tag
	missing  []string
}

// Contract is the name of the audited contract.
func (r *SyncReport) Contract() string {
	return r.contract
}

// Bundle is the audited resource bundle.
func (r *SyncReport) Bundle() string {
	return r.bundle
}

// Locale is the audited locale.
func (r *SyncReport) Locale() language.Tag {
	return r.locale
}

// Missing returns the missing keys in contract order.
func (r *SyncReport) Missing() []string {
	return slices.Clone(r.missing)
}

// Contains reports whether key is missing.
func (r *SyncReport) Contains(key string) bool {
	return slices.Contains(r.missing, key)
}

// Empty reports whether no key is missing.
func (r *SyncReport) Empty() bool {
	return len(r.missing) == 0
}

// Sync audits the contract t against the resource set of locale without
// resolving any message. Default messages do not exempt keys.
func (e *Engine) Sync(ctx context.Context, t reflect.Type, locale language.Tag, p provider.Provider) (*SyncReport, error) {
	c, err := e.registry.Resolve(t)
	if err != nil {
		return nil, fromContractError(err)
	}
	return e.SyncContract(ctx, c, locale, p)
}

// SyncContract is Sync for a contract described without reflection.
func (e *Engine) SyncContract(
	ctx context.Context,
	c *contract.Contract,
	locale language.Tag,
	p provider.Provider,
) (report *SyncReport, err error) {
	if c == nil {
		return nil, invalidArgument("contract is nil")
	}
	if err = verifyBinding(locale, p); err != nil {
		return nil, err
	}

	bundle := contract.DeriveBundleName(c)

	ctx, span := e.tracer.Start(ctx, "Sync", trace.WithAttributes(
		telemetry.AttrBundleKey.String(bundle),
		telemetry.AttrLocaleKey.String(locale.String()),
	))
	defer func() {
		e.tracer.End(ctx, span, err)
	}()

	set, err := e.load(ctx, bundle, locale, p)
	if err != nil {
		return nil, &Error{
			Reason:  ReasonMissingResource,
			Message: "missing resource bundle '" + bundle + "' for locale '" + locale.String() + "'",
			Bundle:  bundle,
			Locale:  locale.String(),
			Err:     err,
		}
	}

	report = &SyncReport{
		contract: c.Name(),
		bundle:   bundle,
		locale:   locale,
	}
	for _, m := range c.Methods() {
		key := m.ResourceKey()
		if _, ok := set.Lookup(key); ok || report.Contains(key) {
			continue
		}
		report.missing = append(report.missing, key)
	}

	if !report.Empty() {
		e.Log(ctx).
			WithField("bundle", bundle).
			WithField("locale", locale.String()).
			WithField("missing", report.missing).
			Debug("resource set is missing keys")
	}
	return report, nil
}

// Sync audits the contract T using the engine found in ctx.
func Sync[T any](ctx context.Context, locale language.Tag, p provider.Provider) (*SyncReport, error) {
	return engineFrom(ctx).Sync(ctx, reflect.TypeFor[T](), locale, p)
}
