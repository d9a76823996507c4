// Package kumitate provides compile-time dependency injection directives for Go.
//
// Directives are plain Go expressions that the kumitate analyzer reads from
// source; they are never executed at runtime. The analyzer resolves the full
// binding graph for every declared component, validates it, and reports every
// problem in a single run.
package kumitate

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Well-known scope names. A component may declare any scope name; these two
// carry special meaning during validation.
const (
	// ScopeSingleton is the longest-lived scope. A singleton-scoped component
	// may not depend on any other scoped component.
	ScopeSingleton = "singleton"
	// ScopeReusable marks a binding that may be cached in any component
	// without tying it to a particular lifetime.
	ScopeReusable = "reusable"
)

// Provider is a deferred factory for T. Requesting Provider[T] instead of T
// delays construction until the provider is invoked, which also makes the
// request a legal way to break a dependency cycle.
type Provider[T any] func() T

// Lazy is a memoized accessor for T: the first call constructs the value,
// later calls return the same instance. Like Provider, a Lazy request breaks
// dependency cycles.
type Lazy[T any] func() T

// Producer is a deferred asynchronous factory for T. Only production
// (async) bindings may satisfy a Producer request.
type Producer[T any] interface {
	Produce(ctx context.Context) (T, error)
}

// Future is an already-started asynchronous computation of T.
type Future[T any] interface {
	Get(ctx context.Context) (T, error)
}

// Produced wraps the result of an asynchronous binding, capturing either the
// value or the failure so downstream bindings can inspect it.
type Produced[T any] struct {
	value T
	err   error
}

// Success returns a Produced holding a value.
func Success[T any](value T) Produced[T] {
	return Produced[T]{value: value}
}

// Failure returns a Produced holding an error.
func Failure[T any](err error) Produced[T] {
	return Produced[T]{err: err}
}

// Get returns the produced value or the error the production failed with.
func (p Produced[T]) Get() (T, error) {
	return p.value, p.err
}

// Optional holds a value that may or may not be bound. Request Optional[T]
// for a key declared with BindOptional to observe whether any binding for T
// is visible in the component.
type Optional[T any] struct {
	value   T
	present bool
}

// Of returns a present Optional.
func Of[T any](value T) Optional[T] {
	return Optional[T]{value: value, present: true}
}

// Empty returns an absent Optional.
func Empty[T any]() Optional[T] {
	return Optional[T]{}
}

// IsPresent reports whether a value is bound.
func (o Optional[T]) IsPresent() bool {
	return o.present
}

// Get returns the bound value and whether one is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

// OrElse returns the bound value, or fallback when absent.
func (o Optional[T]) OrElse(fallback T) T {
	if o.present {
		return o.value
	}
	return fallback
}

// MembersInjector injects the tagged fields of an existing instance instead
// of constructing a new one. The target type must be a pointer to a named
// struct with `inject` tags.
type MembersInjector[T any] interface {
	InjectMembers(target T)
}

// Executor runs production bindings. Async providers are scheduled on the
// component's executor so independent productions can overlap.
type Executor interface {
	Go(fn func() error)
	Wait() error
}

// NewExecutor returns an errgroup-backed Executor tied to ctx. The returned
// context is canceled when any scheduled production fails.
func NewExecutor(ctx context.Context) (Executor, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	return g, gctx
}

// provider is a marker interface that all dependency providers implement.
// It identifies the different provider wrappers in Component directive calls.
type provider interface {
	provide()
}

type funcProvider[T any] interface {
	provider
	Fn() T
}

// fnProvider wraps a function to be used as a dependency provider.
// The generic type T should be a function type whose non-error results
// become available dependencies.
type fnProvider[T any] struct {
	fn T
}

func (p fnProvider[T]) provide() {}

// Fn returns the wrapped function. Used internally by the analyzer.
func (p fnProvider[T]) Fn() T {
	return p.fn
}

// Provide wraps a function to be used as a dependency provider.
//
// Example:
//
//	kumitate.Provide(NewDatabase)  // where NewDatabase returns (*Database, error)
//	kumitate.Provide(NewService)   // where NewService returns *Service
func Provide[T any](fn T) fnProvider[T] {
	return fnProvider[T]{fn: fn}
}

// Value creates a provider for a constant value.
func Value[T any](v T) fnProvider[func() T] {
	return fnProvider[func() T]{
		fn: func() T { return v },
	}
}

// asyncProvider marks the wrapped provider as a production binding: the
// analyzer treats its results as asynchronously produced.
type asyncProvider[T any, F funcProvider[T]] struct {
	fn F
}

func (p asyncProvider[_, F]) provide() {}

func (p asyncProvider[T, _]) Fn() T {
	return p.fn.Fn()
}

// Async marks a provider as asynchronous. Its result may only be requested
// through production-aware forms (Producer, Produced, Future) or by other
// async bindings.
func Async[T any, F funcProvider[T]](fn F) asyncProvider[T, F] {
	return asyncProvider[T, F]{fn: fn}
}

// scopedProvider attaches a scope name to the wrapped provider.
type scopedProvider[T any, F funcProvider[T]] struct {
	fn F
}

func (p scopedProvider[_, F]) provide() {}

func (p scopedProvider[T, _]) Fn() T {
	return p.fn.Fn()
}

// Scoped binds the provider's result to the named scope. The binding is then
// owned by the component in the hierarchy that declares that scope.
//
// Example:
//
//	kumitate.Scoped(kumitate.ScopeSingleton, kumitate.Provide(NewDatabase))
func Scoped[T any, F funcProvider[T]](scope string, fn F) scopedProvider[T, F] {
	return scopedProvider[T, F]{fn: fn}
}

// bindProvider represents a delegate binding that maps type S to the
// provider's concrete result type.
type bindProvider[S, T any, F funcProvider[T]] struct {
	fn F
}

func (p bindProvider[_, _, F]) provide() {}

func (p bindProvider[_, T, _]) Fn() T {
	return p.fn.Fn()
}

// Bind creates a delegate binding that satisfies requests for S with the
// wrapped provider's result, without introducing a factory of its own.
//
// Example:
//
//	kumitate.Bind[UserRepository](kumitate.Provide(NewDatabaseUserRepo))
func Bind[S, T any, F funcProvider[T]](fn F) bindProvider[S, T, F] {
	return bindProvider[S, T, F]{fn: fn}
}

// intoSetProvider contributes the provider's result to the multibound []T.
type intoSetProvider[T any, F funcProvider[T]] struct {
	fn F
}

func (p intoSetProvider[_, F]) provide() {}

func (p intoSetProvider[T, _]) Fn() T {
	return p.fn.Fn()
}

// IntoSet contributes the provider's result to the set binding for its
// result type: a request for []T collects every contribution.
func IntoSet[T any, F funcProvider[T]](fn F) intoSetProvider[T, F] {
	return intoSetProvider[T, F]{fn: fn}
}

// setValuesProvider contributes every element of the provider's []T result.
type setValuesProvider[T any, F funcProvider[T]] struct {
	fn F
}

func (p setValuesProvider[_, F]) provide() {}

func (p setValuesProvider[T, _]) Fn() T {
	return p.fn.Fn()
}

// SetValues contributes all elements of the provider's slice result to the
// set binding for the element type.
func SetValues[T any, F funcProvider[T]](fn F) setValuesProvider[T, F] {
	return setValuesProvider[T, F]{fn: fn}
}

// intoMapProvider contributes the provider's result under a map key.
type intoMapProvider[K comparable, T any, F funcProvider[T]] struct {
	fn F
}

func (p intoMapProvider[_, _, F]) provide() {}

func (p intoMapProvider[_, T, _]) Fn() T {
	return p.fn.Fn()
}

// IntoMap contributes the provider's result to the map binding map[K]T under
// the given key. Every contribution to one map must use the same key type,
// and no two contributions may use the same key value.
func IntoMap[K comparable, T any, F funcProvider[T]](key K, fn F) intoMapProvider[K, T, F] {
	return intoMapProvider[K, T, F]{fn: fn}
}

// nullableProvider marks the wrapped provider's result as possibly nil.
type nullableProvider[T any, F funcProvider[T]] struct {
	fn F
}

func (p nullableProvider[_, F]) provide() {}

func (p nullableProvider[T, _]) Fn() T {
	return p.fn.Fn()
}

// Nullable marks a provider whose result may be nil. A nullable binding may
// only satisfy requests that tolerate the absence of a value, such as
// Provider or Optional requests; a bare instance request is reported.
func Nullable[T any, F funcProvider[T]](fn F) nullableProvider[T, F] {
	return nullableProvider[T, F]{fn: fn}
}

// multibindsDecl declares an aggregate binding with no contributions.
type multibindsDecl[T any] struct{}

func (multibindsDecl[T]) provide() {}

// Multibinds declares that the aggregate binding T (a []E or map[K]V)
// exists even when no contribution to it is visible, resolving to an empty
// collection instead of a missing binding.
func Multibinds[T any]() multibindsDecl[T] {
	return multibindsDecl[T]{}
}

// optionalDecl declares that Optional[T] is requestable whether or not a
// binding for T exists.
type optionalDecl[T any] struct{}

func (optionalDecl[T]) provide() {}

// BindOptional declares an optional binding for T. Requests for
// kumitate.Optional[T] resolve to a present value when some binding for T is
// visible and to an absent value otherwise.
func BindOptional[T any]() optionalDecl[T] {
	return optionalDecl[T]{}
}

// moduleDecl groups providers under a named module.
type moduleDecl struct{}

func (moduleDecl) provide() {}

// Module groups providers under a name. Module names appear in diagnostics
// and in builder setter targets.
func Module(name string, providers ...provider) moduleDecl {
	return moduleDecl{}
}

// componentOption configures a Component or Subcomponent directive.
type componentOption interface {
	componentOption()
}

type scopeOption struct{}

func (scopeOption) componentOption() {}

// InScope declares a scope for the component. Bindings scoped with the same
// name are owned by this component.
func InScope(name string) scopeOption {
	return scopeOption{}
}

type dependsOption[T any] struct{}

func (dependsOption[T]) componentOption() {}

// DependsOn declares a component dependency: every method of the interface T
// becomes a passthrough binding visible in this component. An optional scope
// name records the lifetime the depended-on component is built with, which
// the analyzer checks against this component's own scope.
func DependsOn[T any](scope ...string) dependsOption[T] {
	return dependsOption[T]{}
}

type entryPointOption[T any] struct{}

func (entryPointOption[T]) componentOption() {}

// EntryPoint declares an additional entry point of type T on the component.
// Wrapper types select the delivery form: EntryPoint[kumitate.Provider[DB]]
// requests a deferred factory, EntryPoint[DB] an eager instance.
func EntryPoint[T any](name string) entryPointOption[T] {
	return entryPointOption[T]{}
}

type subcomponentDecl struct{}

func (subcomponentDecl) componentOption() {}

// Subcomponent declares a child component. Subcomponents see every binding
// visible to their parent, plus their own.
func Subcomponent[T any](name string, items ...any) subcomponentDecl {
	return subcomponentDecl{}
}

type builderOption[T any] struct{}

func (builderOption[T]) componentOption() {}

type builderSetter struct{}

// BuilderSetter declares one setter on the component builder. target names
// the module or component dependency the setter supplies.
func BuilderSetter(name, target string) builderSetter {
	return builderSetter{}
}

// Builder declares a builder contract of type T for the component. Every
// module or dependency that cannot be constructed with a zero-argument
// constructor must have a setter, and no setter may name a target the
// component does not require. For a subcomponent, T becomes requestable
// from the enclosing component.
func Builder[T any](setters ...builderSetter) builderOption[T] {
	return builderOption[T]{}
}

// Component declares a root component directive. The analyzer resolves the
// binding graph reachable from T and the declared entry points, validates
// it, and reports every error with its full dependency trace.
//
// Example:
//
//	var _ = kumitate.Component[*App]("App",
//		kumitate.InScope(kumitate.ScopeSingleton),
//		kumitate.Module("infra",
//			kumitate.Scoped(kumitate.ScopeSingleton, kumitate.Provide(NewDatabase)),
//			kumitate.Provide(NewUserService),
//		),
//		kumitate.EntryPoint[kumitate.Provider[*UserService]]("userService"),
//	)
//
// Run the analyzer with:
//
//	//go:generate go tool kumitate $GOFILE
func Component[T any](name string, items ...any) bool {
	// Analyzed at compile time by the kumitate analyzer; never evaluated for
	// its value.
	return true
}
