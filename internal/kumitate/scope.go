package kumitate

const (
	singletonScopeName = "singleton"
	reusableScopeName  = "reusable"
)

// Scope is a lifetime constraint tying a binding's singleton-ness to the
// component that declares the scope. The zero value is "unscoped".
type Scope struct {
	name string
}

// Unscoped is the absence of a scope constraint.
var Unscoped = Scope{}

// NewScope returns the scope with the given name.
func NewScope(name string) Scope {
	return Scope{name: name}
}

// Name returns the scope name, or "" for the unscoped value.
func (s Scope) Name() string {
	return s.name
}

// IsUnscoped reports whether no scope constraint applies.
func (s Scope) IsUnscoped() bool {
	return s.name == ""
}

// IsReusable reports whether the binding may be cached in any component
// without tying it to a lifetime.
func (s Scope) IsReusable() bool {
	return s.name == reusableScopeName
}

// IsSingleton reports whether this is the longest-lived scope.
func (s Scope) IsSingleton() bool {
	return s.name == singletonScopeName
}

func (s Scope) String() string {
	if s.IsUnscoped() {
		return "unscoped"
	}
	return s.name
}
