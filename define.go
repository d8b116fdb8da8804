package polyglot

import (
	"reflect"

	"github.com/pitabwire/polyglot/contract"
)

// DefineOption describes a contract registered with Define.
type DefineOption func(md *contract.Metadata)

// MessageOption describes one message of a contract.
type MessageOption func(msg *contract.Message)

// WithBundleName overrides the resource bundle name of the contract.
func WithBundleName(name string) DefineOption {
	return func(md *contract.Metadata) {
		md.BundleName = name
	}
}

// WithHandlerKind selects the handler servicing the contract.
func WithHandlerKind(kind contract.HandlerKind) DefineOption {
	return func(md *contract.Metadata) {
		md.Handler = kind
	}
}

// WithMessage describes the message of method.
func WithMessage(method string, opts ...MessageOption) DefineOption {
	return func(md *contract.Metadata) {
		if md.Messages == nil {
			md.Messages = map[string]contract.Message{}
		}
		msg := md.Messages[method]
		for _, opt := range opts {
			opt(&msg)
		}
		md.Messages[method] = msg
	}
}

// Embeds declares that the contract embeds Base and inherits its message
// descriptions.
func Embeds[Base any]() DefineOption {
	return func(md *contract.Metadata) {
		md.Embeds = append(md.Embeds, reflect.TypeFor[Base]())
	}
}

// Key sets the resource key of a message.
func Key(key string) MessageOption {
	return func(msg *contract.Message) {
		msg.Key = key
	}
}

// Default sets the text returned when the message is missing.
func Default(text string) MessageOption {
	return func(msg *contract.Message) {
		msg.Default = text
		msg.HasDefault = true
	}
}

// Define registers the description of contract T in contract.DefaultRegistry.
func Define[T any](opts ...DefineOption) error {
	return DefineIn[T](contract.DefaultRegistry(), opts...)
}

// DefineIn registers the description of contract T in r.
func DefineIn[T any](r *contract.Registry, opts ...DefineOption) error {
	var md contract.Metadata
	for _, opt := range opts {
		opt(&md)
	}
	return fromContractError(r.Register(reflect.TypeFor[T](), md))
}

// MustDefine is Define that panics on an invalid description. It suits
// package level registrations.
func MustDefine[T any](opts ...DefineOption) {
	if err := Define[T](opts...); err != nil {
		panic(err)
	}
}
