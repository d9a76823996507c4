package kumitate

// ResolvedBindings is the complete set of bindings visible for one binding
// key within one component: bindings owned by the component (declared in or
// below it, or scoped to it) and bindings inherited unchanged from
// ancestors. A key with zero matching bindings still resolves to an
// explicit empty ResolvedBindings so validation can report the missing
// binding with full context.
type ResolvedBindings struct {
	bindingKey BindingKey
	// inherited precedes owned so Bindings() lists bindings in
	// root-to-leaf order of their owning components.
	inherited []*Binding
	owned     []*Binding
	owners    map[*Binding]*ComponentDescriptor
}

// NewResolvedBindings builds a ResolvedBindings; owners maps every binding
// (owned and inherited) to the component that owns it.
func NewResolvedBindings(bk BindingKey, owned, inherited []*Binding, owners map[*Binding]*ComponentDescriptor) *ResolvedBindings {
	return &ResolvedBindings{
		bindingKey: bk,
		owned:      owned,
		inherited:  inherited,
		owners:     owners,
	}
}

// emptyResolvedBindings is the explicit "nothing matched" value.
func emptyResolvedBindings(bk BindingKey) *ResolvedBindings {
	return &ResolvedBindings{bindingKey: bk}
}

// BindingKey returns the key these bindings resolve.
func (r *ResolvedBindings) BindingKey() BindingKey {
	return r.bindingKey
}

// Bindings returns every visible binding, inherited first so the slice runs
// root-to-leaf by owning component.
func (r *ResolvedBindings) Bindings() []*Binding {
	if len(r.inherited) == 0 {
		return r.owned
	}
	all := make([]*Binding, 0, len(r.inherited)+len(r.owned))
	all = append(all, r.inherited...)
	all = append(all, r.owned...)
	return all
}

// Owned returns the bindings owned by this component.
func (r *ResolvedBindings) Owned() []*Binding {
	return r.owned
}

// Inherited returns the bindings inherited from ancestor components.
func (r *ResolvedBindings) Inherited() []*Binding {
	return r.inherited
}

// Owner returns the component that owns b, or nil if unknown.
func (r *ResolvedBindings) Owner(b *Binding) *ComponentDescriptor {
	return r.owners[b]
}

// IsEmpty reports whether no binding matched the key.
func (r *ResolvedBindings) IsEmpty() bool {
	return len(r.owned) == 0 && len(r.inherited) == 0
}

// asInherited re-wraps the bindings as fully inherited for a descendant
// component's view, preserving ownership annotations.
func (r *ResolvedBindings) asInherited() *ResolvedBindings {
	return &ResolvedBindings{
		bindingKey: r.bindingKey,
		inherited:  r.Bindings(),
		owners:     r.owners,
	}
}

// contributionMix returns the distinct contribution types among the
// bindings, collapsing set-values into set, in first-seen order.
func (r *ResolvedBindings) contributionMix() []ContributionType {
	var mix []ContributionType
	seen := make(map[ContributionType]struct{})
	for _, b := range r.Bindings() {
		kind := b.Contribution.mixKind()
		if _, ok := seen[kind]; ok {
			continue
		}
		seen[kind] = struct{}{}
		mix = append(mix, kind)
	}
	return mix
}

// isMultibinding reports whether the resolved bindings form a multibound
// aggregate.
func (r *ResolvedBindings) isMultibinding() bool {
	bindings := r.Bindings()
	if len(bindings) == 0 {
		return false
	}
	for _, b := range bindings {
		if !b.Contribution.IsMultibinding() {
			switch b.Kind {
			case SyntheticMapBinding, SyntheticMultiboundSetBinding, SyntheticMultiboundMapBinding:
				continue
			}
			return false
		}
	}
	return true
}
