package kumitate

import "fmt"

// BindingKind identifies the variant of a binding. The set is closed: the
// validator and planner switch over it exhaustively and panic on an unknown
// value rather than falling through a default branch.
type BindingKind int

const (
	// InjectionBinding constructs a type from its own tagged fields.
	InjectionBinding BindingKind = iota
	// ProvisionBinding calls a module provider function.
	ProvisionBinding
	// ComponentProvisionBinding delegates to a method on a component
	// dependency.
	ComponentProvisionBinding
	// ComponentProductionBinding delegates to an async method on a component
	// dependency.
	ComponentProductionBinding
	// ComponentBinding trivially produces the component (or a component
	// dependency) instance itself.
	ComponentBinding
	// SubcomponentBuilderBinding produces the builder for a child component.
	SubcomponentBuilderBinding
	// DelegateBinding forwards one key to another without its own factory.
	DelegateBinding
	// SyntheticMapBinding adapts map[K]V to its map-of-providers backing.
	SyntheticMapBinding
	// SyntheticMultiboundSetBinding aggregates set contributions.
	SyntheticMultiboundSetBinding
	// SyntheticMultiboundMapBinding aggregates map contributions.
	SyntheticMultiboundMapBinding
	// OptionalPresentBinding wraps a visible underlying binding in a present
	// Optional.
	OptionalPresentBinding
	// OptionalAbsentBinding satisfies an Optional request with no underlying
	// binding.
	OptionalAbsentBinding
	// ProductionExecutorBinding is the internally synthesized binding for
	// the production executor.
	ProductionExecutorBinding
)

func (k BindingKind) String() string {
	switch k {
	case InjectionBinding:
		return "injection"
	case ProvisionBinding:
		return "provision"
	case ComponentProvisionBinding:
		return "component provision"
	case ComponentProductionBinding:
		return "component production"
	case ComponentBinding:
		return "component"
	case SubcomponentBuilderBinding:
		return "subcomponent builder"
	case DelegateBinding:
		return "delegate"
	case SyntheticMapBinding:
		return "synthetic map"
	case SyntheticMultiboundSetBinding:
		return "multibound set"
	case SyntheticMultiboundMapBinding:
		return "multibound map"
	case OptionalPresentBinding:
		return "optional (present)"
	case OptionalAbsentBinding:
		return "optional (absent)"
	case ProductionExecutorBinding:
		return "production executor"
	default:
		panic(fmt.Sprintf("unknown binding kind %d", int(k)))
	}
}

// IsSynthetic reports whether the binding was generated by the resolver
// rather than declared in source.
func (k BindingKind) IsSynthetic() bool {
	switch k {
	case SyntheticMapBinding, SyntheticMultiboundSetBinding, SyntheticMultiboundMapBinding,
		OptionalPresentBinding, OptionalAbsentBinding, ProductionExecutorBinding:
		return true
	default:
		return false
	}
}

// BindingType separates synchronous provision bindings from asynchronous
// production bindings.
type BindingType int

const (
	// Provision bindings construct their value synchronously.
	Provision BindingType = iota
	// Production bindings construct their value asynchronously on the
	// component's executor.
	Production
)

func (t BindingType) String() string {
	switch t {
	case Provision:
		return "provision"
	case Production:
		return "production"
	default:
		panic(fmt.Sprintf("unknown binding type %d", int(t)))
	}
}

// ContributionType describes how a binding contributes to its key.
type ContributionType int

const (
	// UniqueContribution is a plain one-binding-per-key contribution.
	UniqueContribution ContributionType = iota
	// SetContribution contributes one element to a multibound set.
	SetContribution
	// SetValuesContribution contributes a slice of elements to a multibound
	// set.
	SetValuesContribution
	// MapContribution contributes one entry to a multibound map.
	MapContribution
)

func (c ContributionType) String() string {
	switch c {
	case UniqueContribution:
		return "unique"
	case SetContribution:
		return "set"
	case SetValuesContribution:
		return "set values"
	case MapContribution:
		return "map"
	default:
		panic(fmt.Sprintf("unknown contribution type %d", int(c)))
	}
}

// IsMultibinding reports whether the contribution feeds an aggregate
// binding.
func (c ContributionType) IsMultibinding() bool {
	return c != UniqueContribution
}

// mixKind collapses SetValues into Set so that set and set-values
// contributions to the same key are a coherent mix.
func (c ContributionType) mixKind() ContributionType {
	if c == SetValuesContribution {
		return SetContribution
	}
	return c
}

// FactoryStrategy records how generated code would materialize the
// binding's factory.
type FactoryStrategy int

const (
	// FactoryFunction calls a module provider function.
	FactoryFunction FactoryStrategy = iota
	// FactoryConstructor fills an injected struct's fields.
	FactoryConstructor
	// FactoryInline needs no factory of its own (delegates, components,
	// synthetic aggregates).
	FactoryInline
)

// MapKeyValue is the map key a MapContribution is registered under: the
// canonical string of the key's Go type plus the exact constant value.
// Contributions to one map must agree on the type and differ in value.
type MapKeyValue struct {
	Type  string
	Value string
}

func (m MapKeyValue) String() string {
	return fmt.Sprintf("%s(%s)", m.Type, m.Value)
}

// Binding is a declared or synthesized producer for a Key. Bindings are
// created once from declarations (or by the resolver, for synthetic kinds)
// and are immutable afterwards.
type Binding struct {
	Key          Key
	Kind         BindingKind
	Type         BindingType
	Contribution ContributionType
	Strategy     FactoryStrategy

	// Deps are the requests this binding needs satisfied before (or, for
	// deferred forms, when) it runs.
	Deps []Request

	Scope    Scope
	Nullable bool

	// MapKey is set for MapContribution bindings.
	MapKey *MapKeyValue

	// Module names the declaring module, or "" for bindings that do not come
	// from a module.
	Module string
	// FactoryName names the provider function or injected type for
	// diagnostics.
	FactoryName string
	// Source locates the declaration site.
	Source string
}

// Dependencies returns the binding's dependency requests.
func (b *Binding) Dependencies() []Request {
	return b.Deps
}

func (b *Binding) String() string {
	name := b.FactoryName
	if name == "" {
		name = b.Kind.String()
	}
	if b.Module != "" {
		return fmt.Sprintf("%s [%s, module %s]", b.Key, name, b.Module)
	}
	return fmt.Sprintf("%s [%s]", b.Key, name)
}
