package kumitate

// MultibindingDeclaration declares that the aggregate binding for Key exists
// even with zero contributions (an explicitly empty set or map).
type MultibindingDeclaration struct {
	Key          Key
	Contribution ContributionType
	Module       string
	Source       string
}

// OptionalDeclaration declares that Optional[Key] is requestable whether or
// not a binding for Key is visible.
type OptionalDeclaration struct {
	Key    Key
	Module string
	Source string
}

// DeclarationIndex aggregates the multibinding contributions and
// declarations visible in one component's installed modules, grouped by the
// aggregate key they feed. The resolver consults its own index and every
// ancestor's when synthesizing aggregate bindings.
type DeclarationIndex struct {
	contributions map[string][]*Binding
	multibindings map[string][]*MultibindingDeclaration
	optionals     map[string][]*OptionalDeclaration
}

// NewDeclarationIndex builds the index over the given modules. Bindings
// whose contribution type is not unique are indexed under their aggregate
// key (the contribution key with the contribution id stripped).
func NewDeclarationIndex(modules []*ModuleDescriptor) *DeclarationIndex {
	idx := &DeclarationIndex{
		contributions: make(map[string][]*Binding),
		multibindings: make(map[string][]*MultibindingDeclaration),
		optionals:     make(map[string][]*OptionalDeclaration),
	}

	for _, module := range modules {
		for _, binding := range module.Bindings {
			if !binding.Contribution.IsMultibinding() {
				continue
			}
			aggregate := binding.Key.WithoutContribution().ID()
			idx.contributions[aggregate] = append(idx.contributions[aggregate], binding)
		}
		for _, decl := range module.Multibindings {
			id := decl.Key.ID()
			idx.multibindings[id] = append(idx.multibindings[id], decl)
		}
		for _, decl := range module.Optionals {
			id := decl.Key.ID()
			idx.optionals[id] = append(idx.optionals[id], decl)
		}
	}

	return idx
}

// ContributionsFor returns the contributions to the aggregate key, in
// declaration order.
func (i *DeclarationIndex) ContributionsFor(aggregate Key) []*Binding {
	return i.contributions[aggregate.WithoutContribution().ID()]
}

// MultibindingsFor returns the explicit empty-aggregate declarations for
// the key.
func (i *DeclarationIndex) MultibindingsFor(key Key) []*MultibindingDeclaration {
	return i.multibindings[key.ID()]
}

// OptionalsFor returns the optional declarations for the underlying key.
func (i *DeclarationIndex) OptionalsFor(key Key) []*OptionalDeclaration {
	return i.optionals[key.ID()]
}
