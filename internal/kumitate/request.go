package kumitate

import (
	"fmt"
	"go/types"
)

// RequestKind describes the delivery form a consumer asked for: the bare
// value, a deferred or memoized accessor, or an asynchronous handle.
type RequestKind int

const (
	// InstanceRequest asks for the value itself, constructed eagerly.
	InstanceRequest RequestKind = iota
	// ProviderRequest asks for a deferred factory (Provider[T]).
	ProviderRequest
	// LazyRequest asks for a memoized accessor (Lazy[T]).
	LazyRequest
	// ProviderOfLazyRequest asks for Provider[Lazy[T]].
	ProviderOfLazyRequest
	// MembersInjectorRequest asks for a MembersInjector[T].
	MembersInjectorRequest
	// ProducerRequest asks for a deferred asynchronous factory.
	ProducerRequest
	// ProducedRequest asks for the wrapped result of an async binding.
	ProducedRequest
	// FutureRequest asks for an already-started asynchronous computation.
	FutureRequest
)

func (k RequestKind) String() string {
	switch k {
	case InstanceRequest:
		return "instance"
	case ProviderRequest:
		return "provider"
	case LazyRequest:
		return "lazy"
	case ProviderOfLazyRequest:
		return "provider of lazy"
	case MembersInjectorRequest:
		return "members injector"
	case ProducerRequest:
		return "producer"
	case ProducedRequest:
		return "produced"
	case FutureRequest:
		return "future"
	default:
		panic(fmt.Sprintf("unknown request kind %d", int(k)))
	}
}

// AllowsNull reports whether the delivery form tolerates a nil value from a
// nullable binding. Only a bare instance request insists on a value.
func (k RequestKind) AllowsNull() bool {
	return k != InstanceRequest
}

// CanUseProduction reports whether the request may be satisfied by an
// asynchronous (production) binding when it appears as an entry point.
func (k RequestKind) CanUseProduction() bool {
	switch k {
	case ProducerRequest, ProducedRequest, FutureRequest:
		return true
	case InstanceRequest, ProviderRequest, LazyRequest, ProviderOfLazyRequest, MembersInjectorRequest:
		return false
	default:
		panic(fmt.Sprintf("unknown request kind %d", int(k)))
	}
}

// BreaksCycle reports whether a request of this kind for keyType defers
// construction enough to break a dependency cycle it participates in.
// An instance request breaks a cycle only when it asks for a map of
// providers, whose values stay deferred; note the validator special-cases
// the map-of-providers request that sits directly below its own synthetic
// map binding, which does not break the cycle.
func (k RequestKind) BreaksCycle(keyType types.Type) bool {
	switch k {
	case ProviderRequest, LazyRequest, ProviderOfLazyRequest:
		return true
	case InstanceRequest:
		return isMapOfProvider(keyType)
	default:
		return false
	}
}

// Request is a demand for a Key in a specific delivery form.
type Request struct {
	Kind     RequestKind
	Key      Key
	Nullable bool
	// Source locates the requesting site for diagnostics.
	Source string
}

// BindingKey returns the binding key this request targets.
func (r Request) BindingKey() BindingKey {
	if r.Kind == MembersInjectorRequest {
		return MembersInjectionBindingKey(r.Key)
	}
	return ContributionBindingKey(r.Key)
}

func (r Request) String() string {
	if r.Kind == InstanceRequest {
		return r.Key.String()
	}
	return fmt.Sprintf("%s (%s)", r.Key.String(), r.Kind)
}

// RequestForType derives a request from a requested type, unwrapping the
// framework wrapper types to their delivery form: Provider[T] becomes a
// provider request for T, Provider[Lazy[T]] a provider-of-lazy request, and
// so on. Types that are not framework wrappers become instance requests.
func RequestForType(t types.Type, source string) Request {
	if name, arg, ok := frameworkType(t); ok {
		switch name {
		case providerTypeName:
			if innerName, innerArg, ok := frameworkType(arg); ok && innerName == lazyTypeName {
				return Request{Kind: ProviderOfLazyRequest, Key: NewKey(innerArg), Source: source}
			}
			return Request{Kind: ProviderRequest, Key: NewKey(arg), Source: source}
		case lazyTypeName:
			return Request{Kind: LazyRequest, Key: NewKey(arg), Source: source}
		case producerTypeName:
			return Request{Kind: ProducerRequest, Key: NewKey(arg), Source: source}
		case producedTypeName:
			return Request{Kind: ProducedRequest, Key: NewKey(arg), Source: source}
		case futureTypeName:
			return Request{Kind: FutureRequest, Key: NewKey(arg), Source: source}
		case membersInjectorTypeName:
			return Request{Kind: MembersInjectorRequest, Key: NewKey(arg), Source: source}
		}
	}
	return Request{Kind: InstanceRequest, Key: NewKey(t), Source: source}
}

// frameworkType reports whether t is one of the kumitate wrapper types and
// returns its name and single type argument.
func frameworkType(t types.Type) (name string, arg types.Type, ok bool) {
	named, isNamed := t.(*types.Named)
	if !isNamed {
		return "", nil, false
	}
	obj := named.Obj()
	if obj == nil || obj.Pkg() == nil || obj.Pkg().Path() != kumitatePkgPath {
		return "", nil, false
	}
	args := named.TypeArgs()
	if args == nil || args.Len() != 1 {
		return "", nil, false
	}
	return obj.Name(), args.At(0), true
}

// isProviderType reports whether t is kumitate.Provider[T].
func isProviderType(t types.Type) bool {
	name, _, ok := frameworkType(t)
	return ok && name == providerTypeName
}

// isMapOfProvider reports whether t is map[K]Provider[V].
func isMapOfProvider(t types.Type) bool {
	m, ok := t.Underlying().(*types.Map)
	if !ok {
		return false
	}
	return isProviderType(m.Elem())
}

// optionalValueType returns T when t is kumitate.Optional[T].
func optionalValueType(t types.Type) (types.Type, bool) {
	name, arg, ok := frameworkType(t)
	if !ok || name != optionalTypeName {
		return nil, false
	}
	return arg, true
}

// isExecutorType reports whether t is the kumitate.Executor interface.
func isExecutorType(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj != nil && obj.Pkg() != nil &&
		obj.Pkg().Path() == kumitatePkgPath && obj.Name() == executorTypeName
}
