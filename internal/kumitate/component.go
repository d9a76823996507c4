package kumitate

import "go/types"

// ComponentDescriptor is the declared shape of one component or
// subcomponent: its scopes, installed modules, component dependencies,
// entry points, and child subcomponents. Descriptors are produced by the
// directive parser (or built directly in tests) and are immutable during
// resolution.
type ComponentDescriptor struct {
	Name string
	// Type is the root type the component produces, when known. A non-nil
	// type adds an implicit entry point for it.
	Type types.Type

	Scopes       []Scope
	Modules      []*ModuleDescriptor
	Dependencies []*ComponentDependency

	EntryPoints   []Request
	Subcomponents []*ComponentDescriptor
	Builder       *BuilderSpec

	// Production marks a component whose entry points may use async
	// bindings.
	Production bool

	Source string
}

// HasScope reports whether the component declares s.
func (c *ComponentDescriptor) HasScope(s Scope) bool {
	for _, declared := range c.Scopes {
		if declared == s {
			return true
		}
	}
	return false
}

// AllEntryPoints returns the declared entry points plus the implicit entry
// point for the component's own type.
func (c *ComponentDescriptor) AllEntryPoints() []Request {
	if c.Type == nil {
		return c.EntryPoints
	}
	points := make([]Request, 0, len(c.EntryPoints)+1)
	points = append(points, RequestForType(c.Type, c.Source))
	points = append(points, c.EntryPoints...)
	return points
}

// ComponentDependency is another component (or provider object) this
// component depends on. Its methods surface as passthrough bindings.
type ComponentDependency struct {
	Name  string
	Type  types.Type
	Scope Scope

	// Provisions are the ComponentProvision/ComponentProduction bindings
	// derived from the dependency's methods.
	Provisions []*Binding

	// Dependencies are the dependency's own component dependencies, used to
	// validate the scope hierarchy along root-to-leaf chains.
	Dependencies []*ComponentDependency

	Source string
}

// ModuleDescriptor is one installed module: its unique bindings, its
// multibinding contributions and declarations, and its optional
// declarations.
type ModuleDescriptor struct {
	Name     string
	Bindings []*Binding

	Multibindings []*MultibindingDeclaration
	Optionals     []*OptionalDeclaration

	// RequiresInstance marks a module that cannot be constructed with a
	// zero-argument constructor and must be supplied through the builder.
	RequiresInstance bool

	Source string
}

// BuilderSpec is a component's declared builder contract.
type BuilderSpec struct {
	// Type is the builder's Go type when the parser resolved one; a non-nil
	// type yields a SubcomponentBuilderBinding in the parent component.
	Type    types.Type
	Setters []BuilderSetter
	Source  string
}

// BuilderSetter is one setter on the builder. Target names the module or
// component dependency the setter supplies.
type BuilderSetter struct {
	Name   string
	Target string
	Source string
}
