package kumitate

import (
	"fmt"
	"sort"
)

// InitState is the lifecycle of one binding key during planning. It only
// moves forward: a key is uninitialized, then optionally delegated while a
// cycle is being broken, then initialized.
type InitState int

const (
	StateUninitialized InitState = iota
	StateDelegated
	StateInitialized
)

func (s InitState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateDelegated:
		return "delegated"
	case StateInitialized:
		return "initialized"
	default:
		panic(fmt.Sprintf("unknown init state %d", int(s)))
	}
}

// advance moves the state forward and panics on any regression; a key going
// backwards is a planner bug, not an input problem.
func (s *InitState) advance(next InitState) {
	if next < *s {
		panic(fmt.Sprintf("init state for a key regressed from %s to %s", *s, next))
	}
	*s = next
}

// StepKind is the kind of one emitted plan step.
type StepKind int

const (
	// StepDelegate creates an indirection cell for a key whose real
	// producer is not available yet.
	StepDelegate StepKind = iota
	// StepInitialize creates the real producer for a key.
	StepInitialize
	// StepDelegateFixup points a previously created delegate at the real
	// producer.
	StepDelegateFixup
)

func (k StepKind) String() string {
	switch k {
	case StepDelegate:
		return "delegate"
	case StepInitialize:
		return "initialize"
	case StepDelegateFixup:
		return "fixup"
	default:
		panic(fmt.Sprintf("unknown step kind %d", int(k)))
	}
}

// PlanStep is one instruction in the initialization plan.
type PlanStep struct {
	Kind      StepKind
	Key       BindingKey
	Binding   *Binding
	Component *ComponentDescriptor
}

func (s PlanStep) String() string {
	return fmt.Sprintf("%s %s", s.Kind, s.Key)
}

// Plan is the initialization order for one component, with nested plans for
// its subcomponents. Generated code follows the steps top to bottom: each
// binding's non-deferred dependencies are initialized before it, and every
// legally broken cycle appears as a delegate step, the real initialization,
// and a fixup step in that order.
type Plan struct {
	Component *ComponentDescriptor
	Steps     []PlanStep
	Children  []*Plan
}

// PlanInitialization orders the bindings of a validated graph. The order is
// deterministic for identical input: bindings owned by each component are
// visited in canonical key order, and dependency traversal is depth-first.
// Plan a graph only after validation reports no errors; an unbreakable
// cycle here panics instead of being diagnosed again.
func PlanInitialization(g *BindingGraph) *Plan {
	p := &planner{states: make(map[string]*InitState)}
	return p.planComponent(g)
}

type planner struct {
	// states is shared across the whole hierarchy so a key initialized in
	// an ancestor is never re-emitted in a child plan.
	states  map[string]*InitState
	onStack map[string]struct{}
}

func (p *planner) planComponent(g *BindingGraph) *Plan {
	plan := &Plan{Component: g.Component}
	p.onStack = make(map[string]struct{})

	for _, id := range p.ownedKeyIDs(g) {
		p.visit(g, plan, g.ResolvedBindings[id])
	}

	for _, sub := range g.Subgraphs {
		plan.Children = append(plan.Children, p.planComponent(sub))
	}
	return plan
}

// ownedKeyIDs returns the ids of every key with bindings owned by this
// component, sorted so the plan is stable across runs.
func (p *planner) ownedKeyIDs(g *BindingGraph) []string {
	ids := make([]string, 0, len(g.ResolvedBindings))
	for id, rb := range g.ResolvedBindings {
		if len(rb.Owned()) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (p *planner) stateFor(id string) *InitState {
	state, ok := p.states[id]
	if !ok {
		state = new(InitState)
		p.states[id] = state
	}
	return state
}

// visit emits the steps for one key: dependencies first, then the key
// itself. A dependency that loops back to a key already on the visiting
// stack gets a delegate step instead of recursing; once the key's own
// initialization is emitted, a fixup step repoints the delegate.
func (p *planner) visit(g *BindingGraph, plan *Plan, rb *ResolvedBindings) {
	id := rb.BindingKey().ID()
	state := p.stateFor(id)
	if *state == StateInitialized {
		return
	}
	if _, looping := p.onStack[id]; looping {
		if *state == StateUninitialized {
			state.advance(StateDelegated)
			plan.Steps = append(plan.Steps, PlanStep{
				Kind:      StepDelegate,
				Key:       rb.BindingKey(),
				Component: plan.Component,
			})
		}
		return
	}

	owned := rb.Owned()
	if len(owned) == 0 {
		// Inherited keys are planned by the owning component.
		return
	}

	p.onStack[id] = struct{}{}
	for _, binding := range owned {
		for _, dep := range binding.Deps {
			depRB := g.ResolvedFor(dep.BindingKey())
			p.visit(g, plan, depRB)
		}
	}
	delete(p.onStack, id)

	wasDelegated := *state == StateDelegated
	state.advance(StateInitialized)
	for _, binding := range owned {
		plan.Steps = append(plan.Steps, PlanStep{
			Kind:      StepInitialize,
			Key:       rb.BindingKey(),
			Binding:   binding,
			Component: plan.Component,
		})
	}
	if wasDelegated {
		plan.Steps = append(plan.Steps, PlanStep{
			Kind:      StepDelegateFixup,
			Key:       rb.BindingKey(),
			Component: plan.Component,
		})
	}
}
