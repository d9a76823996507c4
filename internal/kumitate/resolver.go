package kumitate

import (
	"fmt"
	"go/types"
	"maps"
)

// BindingGraph is the resolved structure for one component: the map from
// every reachable binding key to its resolved bindings, plus the child
// graphs for each declared subcomponent. Ancestor entries are shared by
// reference, never copied.
type BindingGraph struct {
	Component        *ComponentDescriptor
	ResolvedBindings map[string]*ResolvedBindings
	Subgraphs        []*BindingGraph
}

// ResolvedFor returns the resolved bindings for bk, or an explicit empty
// value when the key was never reached.
func (g *BindingGraph) ResolvedFor(bk BindingKey) *ResolvedBindings {
	if rb, ok := g.ResolvedBindings[bk.ID()]; ok {
		return rb
	}
	return emptyResolvedBindings(bk)
}

// ResolveGraph resolves the binding graph for desc and, recursively, for
// every declared subcomponent. The registry supplies implicit injection
// bindings, memoized across the whole compilation; ErrTypeNotPresent aborts
// the attempt cleanly with no partial graph left behind.
func ResolveGraph(desc *ComponentDescriptor, registry *InjectRegistry) (*BindingGraph, error) {
	return resolveComponent(nil, desc, registry)
}

func resolveComponent(parent *resolver, desc *ComponentDescriptor, registry *InjectRegistry) (*BindingGraph, error) {
	r := newResolver(parent, desc, registry)

	for _, entryPoint := range desc.AllEntryPoints() {
		if err := r.resolve(entryPoint); err != nil {
			return nil, fmt.Errorf("resolve entry point %s: %w", entryPoint, err)
		}
	}

	subgraphs := make([]*BindingGraph, 0, len(desc.Subcomponents))
	for _, sub := range desc.Subcomponents {
		subgraph, err := resolveComponent(r, sub, registry)
		if err != nil {
			return nil, err
		}
		subgraphs = append(subgraphs, subgraph)
	}

	return &BindingGraph{
		Component:        desc,
		ResolvedBindings: r.snapshotResolvedBindings(),
		Subgraphs:        subgraphs,
	}, nil
}

// resolver resolves requests for one component, consulting the chain of
// ancestor resolvers for inherited bindings. Mirrors the shape of the
// descriptor hierarchy: one resolver per component, children referencing
// parents.
type resolver struct {
	parent     *resolver
	descriptor *ComponentDescriptor
	registry   *InjectRegistry

	// explicit indexes this component's declared bindings by key id:
	// module bindings (unique bindings under their key, contributions under
	// their contribution key), component-dependency passthroughs, and
	// subcomponent builder bindings.
	explicit    map[string][]*Binding
	explicitSet map[*Binding]struct{}
	decls       *DeclarationIndex

	resolved   map[string]*ResolvedBindings
	inProgress map[string]struct{}

	executor *Binding
}

func newResolver(parent *resolver, desc *ComponentDescriptor, registry *InjectRegistry) *resolver {
	r := &resolver{
		parent:      parent,
		descriptor:  desc,
		registry:    registry,
		explicit:    make(map[string][]*Binding),
		explicitSet: make(map[*Binding]struct{}),
		decls:       NewDeclarationIndex(desc.Modules),
		resolved:    make(map[string]*ResolvedBindings),
		inProgress:  make(map[string]struct{}),
	}

	for _, dep := range desc.Dependencies {
		if dep.Type != nil {
			r.addExplicit(&Binding{
				Key:         NewKey(dep.Type),
				Kind:        ComponentBinding,
				Type:        Provision,
				Strategy:    FactoryInline,
				FactoryName: dep.Name,
				Source:      dep.Source,
			})
		}
		for _, provision := range dep.Provisions {
			r.addExplicit(provision)
		}
	}

	for _, module := range desc.Modules {
		for _, binding := range module.Bindings {
			r.addExplicit(binding)
		}
	}

	for _, sub := range desc.Subcomponents {
		if sub.Builder == nil || sub.Builder.Type == nil {
			continue
		}
		r.addExplicit(&Binding{
			Key:         NewKey(sub.Builder.Type),
			Kind:        SubcomponentBuilderBinding,
			Type:        Provision,
			Strategy:    FactoryInline,
			FactoryName: sub.Name,
			Source:      sub.Builder.Source,
		})
	}

	return r
}

func (r *resolver) addExplicit(b *Binding) {
	id := b.Key.ID()
	r.explicit[id] = append(r.explicit[id], b)
	r.explicitSet[b] = struct{}{}
}

// resolve records resolved bindings for the request's key and, recursively,
// for every dependency of every binding it owns. A key already resolved
// here or in an ancestor is skipped, unless a component below the previous
// resolution adds bindings of its own for the key: multibound aggregates
// re-resolve so local contributions are folded in, and locally declared
// bindings re-resolve so a conflict with an inherited binding surfaces
// instead of being shadowed by the ancestor's resolution.
func (r *resolver) resolve(req Request) error {
	bk := req.BindingKey()
	id := bk.ID()

	if _, ok := r.resolved[id]; ok {
		return nil
	}
	if prev, prevOwner := r.previouslyResolved(bk); prev != nil {
		if !r.requiresLocalResolution(bk, prev, prevOwner) {
			return nil
		}
	}

	if _, ok := r.inProgress[id]; ok {
		// Cycle during resolution: the outermost request for this key
		// records the bindings once the loop unwinds. Whether the cycle is
		// legal is the validator's question, not the resolver's.
		return nil
	}
	r.inProgress[id] = struct{}{}
	defer delete(r.inProgress, id)

	rb, err := r.lookUpBindings(req)
	if err != nil {
		return err
	}
	for _, binding := range rb.Owned() {
		for _, dep := range binding.Deps {
			if err := r.resolve(dep); err != nil {
				return err
			}
		}
	}
	r.resolved[id] = rb
	return nil
}

// lookUpBindings collects every binding visible for the request's key:
// explicit bindings declared here or in any ancestor, a synthesized
// aggregate when multibinding contributions exist, a synthesized optional
// when one is declared, and finally the implicit injection binding. Each
// binding is attributed to its owning component; bindings owned by an
// ancestor trigger resolution there and are inherited here.
func (r *resolver) lookUpBindings(req Request) (*ResolvedBindings, error) {
	bk := req.BindingKey()

	if bk.Kind == MembersInjectionKey {
		binding, err := r.registry.MembersInjectionBindingFor(bk.Key)
		if err != nil {
			return nil, err
		}
		if binding == nil {
			return emptyResolvedBindings(bk), nil
		}
		return NewResolvedBindings(bk, []*Binding{binding}, nil,
			map[*Binding]*ComponentDescriptor{binding: r.descriptor}), nil
	}

	key := bk.Key
	candidates := r.lineageExplicitFor(key)

	if len(candidates) == 0 && isExecutorType(key.Type()) && key.Qualifier() == "" {
		candidates = []*Binding{r.root().executorBinding(key)}
	}

	if aggregate := r.synthesizeMultibinding(key); aggregate != nil {
		candidates = append(candidates, aggregate)
	}

	if len(candidates) == 0 {
		optional, err := r.synthesizeOptional(key)
		if err != nil {
			return nil, err
		}
		if optional != nil {
			candidates = append(candidates, optional)
		}
	}

	if len(candidates) == 0 {
		implicit, err := r.registry.InjectionBindingFor(key)
		if err != nil {
			return nil, err
		}
		if implicit != nil {
			candidates = append(candidates, implicit)
		}
	}

	if len(candidates) == 0 {
		return emptyResolvedBindings(bk), nil
	}

	var owned, inherited []*Binding
	owners := make(map[*Binding]*ComponentDescriptor, len(candidates))
	for _, binding := range candidates {
		owner := r.owningResolver(binding)
		owners[binding] = owner.descriptor
		if owner == r {
			owned = append(owned, binding)
			continue
		}
		if err := owner.resolve(req); err != nil {
			return nil, err
		}
		inherited = append(inherited, binding)
	}
	return NewResolvedBindings(bk, owned, inherited, owners), nil
}

// owningResolver returns the resolver whose component owns b. A scoped
// binding belongs to the nearest component declaring its scope, regardless
// of where in the hierarchy its module was installed, as long as the
// binding is visible there; a binding scoped strictly above its declaration
// stays with its declaring component so the scope check reports it. An
// unscoped binding belongs to its declaring component, or to the requesting
// one when synthesized.
func (r *resolver) owningResolver(b *Binding) *resolver {
	declarer := r.declaringResolver(b)
	if !b.Scope.IsUnscoped() && !b.Scope.IsReusable() {
		for current := r; current != nil; current = current.parent {
			if !current.descriptor.HasScope(b.Scope) {
				continue
			}
			if declarer == nil || declarer.isSelfOrAncestorOf(current) {
				return current
			}
			break
		}
	}
	if declarer != nil {
		return declarer
	}
	return r
}

// declaringResolver returns the resolver whose component declared b, or nil
// for synthesized and implicit bindings.
func (r *resolver) declaringResolver(b *Binding) *resolver {
	for current := r; current != nil; current = current.parent {
		if _, ok := current.explicitSet[b]; ok {
			return current
		}
	}
	return nil
}

func (r *resolver) isSelfOrAncestorOf(other *resolver) bool {
	for current := other; current != nil; current = current.parent {
		if current == r {
			return true
		}
	}
	return false
}

// synthesizeMultibinding returns the aggregate binding for a collection key
// with visible contributions or explicit multibinding declarations. Sets
// ([]T) aggregate eagerly; maps resolve through a map-of-providers backing:
// map[K]V depends on map[K]Provider[V], which aggregates the contributions.
// Requesting the backing map on its own defers the values; requesting it
// through the plain map does not, since that map invokes every provider
// while constructing itself.
func (r *resolver) synthesizeMultibinding(key Key) *Binding {
	switch t := key.Type().Underlying().(type) {
	case *types.Slice:
		contributions := r.lineageContributionsFor(key)
		if len(contributions) == 0 && len(r.lineageMultibindingDeclsFor(key)) == 0 {
			return nil
		}
		deps := make([]Request, 0, len(contributions))
		for _, c := range contributions {
			deps = append(deps, Request{Kind: InstanceRequest, Key: c.Key, Source: c.Source})
		}
		return &Binding{
			Key:          key,
			Kind:         SyntheticMultiboundSetBinding,
			Type:         aggregateBindingType(contributions),
			Contribution: SetContribution,
			Strategy:     FactoryInline,
			Deps:         deps,
		}

	case *types.Map:
		if isProviderType(t.Elem()) {
			_, valueType, _ := frameworkType(t.Elem())
			backing := Key{typ: types.NewMap(t.Key(), valueType), qualifier: key.Qualifier()}
			contributions := r.lineageContributionsFor(backing)
			if len(contributions) == 0 && len(r.lineageMultibindingDeclsFor(backing)) == 0 {
				return nil
			}
			deps := make([]Request, 0, len(contributions))
			for _, c := range contributions {
				deps = append(deps, Request{Kind: InstanceRequest, Key: c.Key, Source: c.Source})
			}
			return &Binding{
				Key:          key,
				Kind:         SyntheticMultiboundMapBinding,
				Type:         aggregateBindingType(contributions),
				Contribution: MapContribution,
				Strategy:     FactoryInline,
				Deps:         deps,
			}
		}

		contributions := r.lineageContributionsFor(key)
		if len(contributions) == 0 && len(r.lineageMultibindingDeclsFor(key)) == 0 {
			return nil
		}
		backing := Key{typ: mapOfProviderType(t), qualifier: key.Qualifier()}
		return &Binding{
			Key:          key,
			Kind:         SyntheticMapBinding,
			Type:         aggregateBindingType(contributions),
			Contribution: MapContribution,
			Strategy:     FactoryInline,
			Deps:         []Request{{Kind: InstanceRequest, Key: backing}},
		}
	}
	return nil
}

// aggregateBindingType is production iff any contribution is production.
func aggregateBindingType(contributions []*Binding) BindingType {
	for _, c := range contributions {
		if c.Type == Production {
			return Production
		}
	}
	return Provision
}

// synthesizeOptional returns a present or absent optional binding for an
// Optional[T] key with a visible optional declaration for T.
func (r *resolver) synthesizeOptional(key Key) (*Binding, error) {
	valueType, ok := optionalValueType(key.Type())
	if !ok {
		return nil, nil
	}

	underlying := RequestForType(valueType, "")
	if key.Qualifier() != "" {
		underlying.Key = NewQualifiedKey(underlying.Key.Type(), key.Qualifier())
	}

	if len(r.lineageOptionalDeclsFor(underlying.Key)) == 0 {
		return nil, nil
	}

	present, err := r.keyIsSatisfiable(underlying.Key)
	if err != nil {
		return nil, err
	}
	if !present {
		return &Binding{
			Key:      key,
			Kind:     OptionalAbsentBinding,
			Type:     Provision,
			Strategy: FactoryInline,
		}, nil
	}
	return &Binding{
		Key:      key,
		Kind:     OptionalPresentBinding,
		Type:     Provision,
		Strategy: FactoryInline,
		Deps:     []Request{underlying},
	}, nil
}

// keyIsSatisfiable reports whether any binding for key is visible from this
// component, without resolving it.
func (r *resolver) keyIsSatisfiable(key Key) (bool, error) {
	if len(r.lineageExplicitFor(key)) > 0 {
		return true, nil
	}
	if r.synthesizeMultibinding(key) != nil {
		return true, nil
	}
	implicit, err := r.registry.InjectionBindingFor(key)
	if err != nil {
		return false, err
	}
	return implicit != nil, nil
}

func (r *resolver) executorBinding(key Key) *Binding {
	if r.executor == nil {
		r.executor = &Binding{
			Key:         key,
			Kind:        ProductionExecutorBinding,
			Type:        Provision,
			Strategy:    FactoryInline,
			FactoryName: "executor",
		}
	}
	return r.executor
}

func (r *resolver) root() *resolver {
	current := r
	for current.parent != nil {
		current = current.parent
	}
	return current
}

// lineage returns the resolver chain in root-to-leaf order.
func (r *resolver) lineage() []*resolver {
	var chain []*resolver
	for current := r; current != nil; current = current.parent {
		chain = append(chain, current)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

func (r *resolver) lineageExplicitFor(key Key) []*Binding {
	var bindings []*Binding
	id := key.ID()
	for _, ancestor := range r.lineage() {
		bindings = append(bindings, ancestor.explicit[id]...)
	}
	return bindings
}

func (r *resolver) lineageContributionsFor(aggregate Key) []*Binding {
	var contributions []*Binding
	for _, ancestor := range r.lineage() {
		contributions = append(contributions, ancestor.decls.ContributionsFor(aggregate)...)
	}
	return contributions
}

func (r *resolver) lineageMultibindingDeclsFor(key Key) []*MultibindingDeclaration {
	var decls []*MultibindingDeclaration
	for _, ancestor := range r.lineage() {
		decls = append(decls, ancestor.decls.MultibindingsFor(key)...)
	}
	return decls
}

func (r *resolver) lineageOptionalDeclsFor(key Key) []*OptionalDeclaration {
	var decls []*OptionalDeclaration
	for _, ancestor := range r.lineage() {
		decls = append(decls, ancestor.decls.OptionalsFor(key)...)
	}
	return decls
}

func (r *resolver) previouslyResolved(bk BindingKey) (*ResolvedBindings, *resolver) {
	id := bk.ID()
	for current := r; current != nil; current = current.parent {
		if rb, ok := current.resolved[id]; ok {
			return rb, current
		}
	}
	return nil, nil
}

// requiresLocalResolution reports whether a key an ancestor already
// resolved must be resolved again in this component: true when the key is
// a non-empty aggregate, and true when any component between here and the
// previous resolution declares explicit bindings for the key.
func (r *resolver) requiresLocalResolution(bk BindingKey, prev *ResolvedBindings, prevOwner *resolver) bool {
	if bk.Kind != ContributionKey {
		return false
	}
	if !prev.IsEmpty() && prev.isMultibinding() {
		return true
	}
	keyID := bk.Key.ID()
	for current := r; current != nil && current != prevOwner; current = current.parent {
		if len(current.explicit[keyID]) > 0 {
			return true
		}
	}
	return false
}

// snapshotResolvedBindings merges this component's resolved bindings with
// its ancestors': entries resolved here win, ancestor entries with no owned
// bindings are shared by reference, and ancestor entries with owned
// bindings are re-wrapped as fully inherited.
func (r *resolver) snapshotResolvedBindings() map[string]*ResolvedBindings {
	out := make(map[string]*ResolvedBindings, len(r.resolved))
	maps.Copy(out, r.resolved)
	if r.parent != nil {
		for id, rb := range r.parent.snapshotResolvedBindings() {
			if _, ok := out[id]; ok {
				continue
			}
			if len(rb.Owned()) == 0 {
				out[id] = rb
			} else {
				out[id] = rb.asInherited()
			}
		}
	}
	return out
}
