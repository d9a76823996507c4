package kumitate

import (
	"errors"
	"fmt"
	"go/types"
	"reflect"
)

// ErrTypeNotPresent signals that a referenced type does not exist yet in
// this processing round. It is a control signal, not a user-facing error:
// the resolver aborts the whole graph cleanly and the processor retries the
// file in a later round.
var ErrTypeNotPresent = errors.New("type not yet present in this round")

// BindingSupplier is the upstream collaborator that derives implicit
// bindings on demand: an injection binding for a key whose type has an
// eligible constructor shape, and a members-injection binding for an
// existing instance. A nil binding with a nil error means the key has no
// implicit binding; ErrTypeNotPresent defers the round.
type BindingSupplier interface {
	InjectionBinding(key Key) (*Binding, error)
	MembersInjectionBinding(key Key) (*Binding, error)
}

// InjectRegistry memoizes implicit bindings for one processing round. It is
// append-only within the round; registering the same binding key twice is a
// programmer error and panics.
type InjectRegistry struct {
	supplier BindingSupplier
	bindings map[string]*Binding
	misses   map[string]struct{}
}

// NewInjectRegistry returns an empty registry backed by supplier. Create a
// fresh registry per round; nothing is retained across rounds.
func NewInjectRegistry(supplier BindingSupplier) *InjectRegistry {
	return &InjectRegistry{
		supplier: supplier,
		bindings: make(map[string]*Binding),
		misses:   make(map[string]struct{}),
	}
}

// Register records an implicit binding under the given binding key.
func (r *InjectRegistry) Register(bk BindingKey, binding *Binding) {
	id := bk.ID()
	if _, ok := r.bindings[id]; ok {
		panic(fmt.Sprintf("inject registry: duplicate registration for %s", bk))
	}
	r.bindings[id] = binding
}

// InjectionBindingFor returns the memoized injection binding for key,
// deriving and registering it on first use. Returns nil with a nil error
// when the key has no implicit binding.
func (r *InjectRegistry) InjectionBindingFor(key Key) (*Binding, error) {
	return r.lookup(ContributionBindingKey(key), r.supplier.InjectionBinding)
}

// MembersInjectionBindingFor returns the memoized members-injection binding
// for key, deriving and registering it on first use.
func (r *InjectRegistry) MembersInjectionBindingFor(key Key) (*Binding, error) {
	return r.lookup(MembersInjectionBindingKey(key), r.supplier.MembersInjectionBinding)
}

func (r *InjectRegistry) lookup(bk BindingKey, derive func(Key) (*Binding, error)) (*Binding, error) {
	id := bk.ID()
	if binding, ok := r.bindings[id]; ok {
		return binding, nil
	}
	if _, ok := r.misses[id]; ok {
		return nil, nil
	}

	binding, err := derive(bk.Key)
	if err != nil {
		return nil, err
	}
	if binding == nil {
		r.misses[id] = struct{}{}
		return nil, nil
	}

	r.Register(bk, binding)
	return binding, nil
}

// StructInjectSupplier derives implicit bindings from struct types whose
// fields carry `inject` tags: the tagged fields become the binding's
// dependencies, and the tag value (if any) is the field's qualifier.
type StructInjectSupplier struct{}

// InjectionBinding derives a constructor-style binding for a pointer to a
// named struct with at least one `inject`-tagged field.
func (StructInjectSupplier) InjectionBinding(key Key) (*Binding, error) {
	if key.Qualifier() != "" {
		// Qualified keys can only be bound explicitly.
		return nil, nil
	}
	named, st, ok := injectableStruct(key.Type())
	if !ok {
		return nil, nil
	}

	deps := injectedFieldRequests(named, st)
	if deps == nil {
		return nil, nil
	}

	return &Binding{
		Key:         key,
		Kind:        InjectionBinding,
		Type:        Provision,
		Strategy:    FactoryConstructor,
		Deps:        deps,
		FactoryName: named.Obj().Name(),
	}, nil
}

// MembersInjectionBinding derives a binding that injects the tagged fields
// of an existing instance. Unlike InjectionBinding, a struct with zero
// tagged fields still yields a binding (a no-op injector), so that requests
// for MembersInjector of a valid type never go missing.
func (StructInjectSupplier) MembersInjectionBinding(key Key) (*Binding, error) {
	named, st, ok := injectableStruct(key.Type())
	if !ok {
		// The validator reports the structural error with the full trace;
		// resolving to nothing here would mask it as a missing binding.
		return &Binding{
			Key:      key,
			Kind:     InjectionBinding,
			Type:     Provision,
			Strategy: FactoryConstructor,
		}, nil
	}

	deps := injectedFieldRequests(named, st)

	return &Binding{
		Key:         key,
		Kind:        InjectionBinding,
		Type:        Provision,
		Strategy:    FactoryConstructor,
		Deps:        deps,
		FactoryName: named.Obj().Name(),
	}, nil
}

// injectableStruct unwraps *T / T to a named struct type.
func injectableStruct(t types.Type) (*types.Named, *types.Struct, bool) {
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	named, ok := t.(*types.Named)
	if !ok {
		return nil, nil, false
	}
	st, ok := named.Underlying().(*types.Struct)
	if !ok {
		return nil, nil, false
	}
	return named, st, true
}

// injectedFieldRequests returns one request per `inject`-tagged field, or
// nil when no field is tagged.
func injectedFieldRequests(named *types.Named, st *types.Struct) []Request {
	var deps []Request
	for i := 0; i < st.NumFields(); i++ {
		tag, ok := reflect.StructTag(st.Tag(i)).Lookup(injectTagName)
		if !ok {
			continue
		}
		field := st.Field(i)
		req := RequestForType(field.Type(), fmt.Sprintf("%s.%s", named.Obj().Name(), field.Name()))
		if tag != "" {
			req.Key = NewQualifiedKey(req.Key.Type(), tag)
		}
		deps = append(deps, req)
	}
	return deps
}
