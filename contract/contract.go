package contract

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// HandlerKind names the resolution strategy that services a contract.
type HandlerKind string

const (
	// HandlerBundle resolves messages from resource bundles. It is the default.
	HandlerBundle HandlerKind = "bundle"
	// HandlerKey answers every call with the derived resource key.
	HandlerKey HandlerKind = "key"
)

var (
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrInvalidMethodSignature = errors.New("invalid method signature")
)

//nolint:gochecknoglobals // reflect type constant
var stringType = reflect.TypeFor[string]()

// Method describes one localizable message of a contract.
type Method struct {
	Name       string
	Arity      int
	Key        string
	Default    string
	HasDefault bool
}

// ResourceKey returns the key the method is looked up by.
func (m Method) ResourceKey() string {
	return DeriveKey(m.Name, m.Key)
}

// Contract is the static description of a message contract.
// It is immutable once built by New or FromType.
type Contract struct {
	name       string
	bundleName string
	handler    HandlerKind
	methods    []Method
	index      map[string]int
}

// Option configures a contract built with New.
type Option func(*Contract)

// WithBundleName overrides the resource bundle name of the contract.
func WithBundleName(name string) Option {
	return func(c *Contract) {
		c.bundleName = name
	}
}

// WithHandler selects the resolution strategy of the contract.
func WithHandler(kind HandlerKind) Option {
	return func(c *Contract) {
		if kind != "" {
			c.handler = kind
		}
	}
}

// WithMethods appends methods to the contract in the given order.
func WithMethods(methods ...Method) Option {
	return func(c *Contract) {
		c.methods = append(c.methods, methods...)
	}
}

// New builds a contract from a static description.
func New(name string, opts ...Option) (*Contract, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: contract name is blank", ErrInvalidArgument)
	}

	c := &Contract{
		name:    name,
		handler: HandlerBundle,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.index = make(map[string]int, len(c.methods))
	for i, m := range c.methods {
		if strings.TrimSpace(m.Name) == "" {
			return nil, fmt.Errorf("%w: contract %s has a method without a name", ErrInvalidArgument, name)
		}
		if m.Arity < 0 {
			return nil, fmt.Errorf("%w: method %s of %s has negative arity", ErrInvalidArgument, m.Name, name)
		}
		if _, dup := c.index[m.Name]; dup {
			return nil, fmt.Errorf("%w: method %s is declared twice in %s", ErrInvalidArgument, m.Name, name)
		}
		c.index[m.Name] = i
	}

	return c, nil
}

// FromType verifies that t is a usable message contract and describes it.
// Checks run in order: t is present, t is an interface, every method
// returns exactly one string, and md only names methods t declares.
func FromType(t reflect.Type, md Metadata) (*Contract, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: contract type is nil", ErrInvalidArgument)
	}
	if t.Kind() != reflect.Interface {
		return nil, fmt.Errorf("%w: the type %s is no interface", ErrInvalidArgument, t)
	}

	methods := make([]Method, 0, t.NumMethod())
	for i := range t.NumMethod() {
		m := t.Method(i)
		if err := checkSignature(t, m); err != nil {
			return nil, err
		}

		msg := md.Messages[m.Name]
		methods = append(methods, Method{
			Name:       m.Name,
			Arity:      m.Type.NumIn(),
			Key:        msg.Key,
			Default:    msg.Default,
			HasDefault: msg.HasDefault,
		})
	}

	for _, name := range slices.Sorted(maps.Keys(md.Messages)) {
		if _, ok := t.MethodByName(name); !ok {
			return nil, fmt.Errorf("%w: message metadata names %s which %s does not declare",
				ErrInvalidArgument, name, t)
		}
	}

	return New(TypeName(t),
		WithBundleName(md.BundleName),
		WithHandler(md.Handler),
		WithMethods(methods...))
}

func checkSignature(t reflect.Type, m reflect.Method) error {
	if m.Type.IsVariadic() {
		return fmt.Errorf("%w: the method '%s' of '%s' is variadic",
			ErrInvalidMethodSignature, m.Name, TypeName(t))
	}
	if m.Type.NumOut() != 1 || m.Type.Out(0) != stringType {
		return fmt.Errorf("%w: the method '%s' of '%s' does not return a value of type string",
			ErrInvalidMethodSignature, m.Name, TypeName(t))
	}
	return nil
}

// TypeName returns the fully qualified name of t, "pkgpath.Name".
func TypeName(t reflect.Type) string {
	if t.Name() == "" {
		return t.String()
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}

// Name is the fully qualified name of the contract.
func (c *Contract) Name() string {
	return c.name
}

// BundleName is the explicit bundle name override, possibly empty.
// Use DeriveBundleName for the name resources are loaded by.
func (c *Contract) BundleName() string {
	return c.bundleName
}

// Handler is the resolution strategy servicing the contract.
func (c *Contract) Handler() HandlerKind {
	return c.handler
}

// Methods returns a copy of the contract methods in contract order.
func (c *Contract) Methods() []Method {
	return slices.Clone(c.methods)
}

// Method finds a method by name.
func (c *Contract) Method(name string) (Method, bool) {
	i, ok := c.index[name]
	if !ok {
		return Method{}, false
	}
	return c.methods[i], true
}

// Keys returns the resource keys of every method in contract order.
func (c *Contract) Keys() []string {
	keys := make([]string, 0, len(c.methods))
	for _, m := range c.methods {
		keys = append(keys, m.ResourceKey())
	}
	return keys
}
