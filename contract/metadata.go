package contract

import (
	"fmt"
	"maps"
	"reflect"
	"sync"
)

// Message is the per-method metadata of a contract.
type Message struct {
	Key        string
	Default    string
	HasDefault bool
}

// Metadata is what a contract declares about itself beyond its method set.
type Metadata struct {
	BundleName string
	Handler    HandlerKind
	Messages   map[string]Message
	// Embeds lists contracts embedded in this one; their message metadata
	// is inherited unless overridden here.
	Embeds []reflect.Type
}

// Registry maps contract types to their metadata.
type Registry struct {
	entries sync.Map // map[reflect.Type]Metadata
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

//nolint:gochecknoglobals // contract metadata is static type information
var defaultRegistry = NewRegistry()

// DefaultRegistry is the registry used by generated registrations.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register records md for t after checking that it describes a valid contract.
func (r *Registry) Register(t reflect.Type, md Metadata) error {
	merged, err := r.merge(t, md, map[reflect.Type]bool{})
	if err != nil {
		return err
	}
	if _, err = FromType(t, merged); err != nil {
		return err
	}

	md.Messages = maps.Clone(md.Messages)
	r.entries.Store(t, md)
	return nil
}

// Lookup returns the metadata registered for t, without embedded metadata.
func (r *Registry) Lookup(t reflect.Type) (Metadata, bool) {
	v, ok := r.entries.Load(t)
	if !ok {
		return Metadata{}, false
	}
	md, ok := v.(Metadata)
	return md, ok
}

// Resolve describes t using its registered metadata, including metadata
// inherited from embedded contracts. Unregistered types get empty metadata.
func (r *Registry) Resolve(t reflect.Type) (*Contract, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: contract type is nil", ErrInvalidArgument)
	}
	md, _ := r.Lookup(t)
	merged, err := r.merge(t, md, map[reflect.Type]bool{})
	if err != nil {
		return nil, err
	}
	return FromType(t, merged)
}

func (r *Registry) merge(t reflect.Type, md Metadata, seen map[reflect.Type]bool) (Metadata, error) {
	if t == nil {
		return md, fmt.Errorf("%w: contract type is nil", ErrInvalidArgument)
	}
	if seen[t] {
		return md, fmt.Errorf("%w: contract %s embeds itself", ErrInvalidArgument, TypeName(t))
	}
	seen[t] = true
	defer delete(seen, t)

	messages := make(map[string]Message, len(md.Messages))
	for _, base := range md.Embeds {
		if base == nil || base.Kind() != reflect.Interface || t.Kind() != reflect.Interface || !t.Implements(base) {
			return md, fmt.Errorf("%w: %s does not embed %v", ErrInvalidArgument, TypeName(t), base)
		}

		baseMd, _ := r.Lookup(base)
		inherited, err := r.merge(base, baseMd, seen)
		if err != nil {
			return md, err
		}
		maps.Copy(messages, inherited.Messages)
	}
	maps.Copy(messages, md.Messages)

	md.Messages = messages
	return md, nil
}
