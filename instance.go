package polyglot

import (
	"context"
	"log/slog"

	"golang.org/x/text/language"

	"github.com/pitabwire/polyglot/contract"
	"github.com/pitabwire/polyglot/provider"
)

// Instance answers the messages of one contract for one locale and provider.
// Instances are immutable and safe for concurrent use.
type Instance struct {
	binding Binding
	handler Handler
}

func (e *Engine) newInstance(
	ctx context.Context,
	c *contract.Contract,
	factory HandlerFactory,
	locale language.Tag,
	p provider.Provider,
) (*Instance, error) {
	b := Binding{
		Engine:   e,
		Contract: c,
		Locale:   locale,
		Provider: p,
	}

	h, err := factory(ctx, b)
	if err != nil {
		return nil, &Error{
			Reason:  ReasonInternal,
			Message: "could not create handler for " + c.Name(),
			Err:     err,
		}
	}
	if h == nil {
		return nil, &Error{Reason: ReasonInternal, Message: "handler factory of " + c.Name() + " returned nil"}
	}

	return &Instance{binding: b, handler: h}, nil
}

// Contract is the contract the instance answers.
func (i *Instance) Contract() *contract.Contract {
	return i.binding.Contract
}

// Locale is the locale the instance resolves for.
func (i *Instance) Locale() language.Tag {
	return i.binding.Locale
}

// Provider is the provider the instance loads resources from.
func (i *Instance) Provider() provider.Provider {
	return i.binding.Provider
}

// Message resolves the message of method with args as its positional
// arguments. The number of args must match the method's arity.
func (i *Instance) Message(ctx context.Context, method string, args ...any) (string, error) {
	c := i.binding.Contract

	m, ok := c.Method(method)
	if !ok {
		return "", invalidArgument("contract %s has no method %s", c.Name(), method)
	}
	if len(args) != m.Arity {
		return "", invalidArgument("method %s of %s takes %d arguments, got %d",
			method, c.Name(), m.Arity, len(args))
	}

	log := i.binding.Engine.Log(ctx)
	if log.Enabled(ctx, slog.LevelDebug) {
		log.WithField("contract", c.Name()).
			WithField("method", method).
			WithField("locale", i.binding.Locale.String()).
			Debug("resolving message")
	}

	return i.handler.Handle(ctx, m, args)
}

// MustMessage is Message that panics with the *Error on failure.
func (i *Instance) MustMessage(ctx context.Context, method string, args ...any) string {
	s, err := i.Message(ctx, method, args...)
	if err != nil {
		panic(err)
	}
	return s
}
