package kumitate

import (
	"testing"
)

func planFor(t *testing.T, desc *ComponentDescriptor) *Plan {
	t.Helper()
	graph, err := ResolveGraph(desc, newRegistry())
	if err != nil {
		t.Fatalf("ResolveGraph() error = %v", err)
	}
	if report := NewValidator(Options{}).Validate(graph); report.HasErrors() {
		t.Fatalf("graph is invalid: %v", report.Items)
	}
	return PlanInitialization(graph)
}

func stepStrings(p *Plan) []string {
	out := make([]string, len(p.Steps))
	for i, step := range p.Steps {
		out[i] = step.String()
	}
	return out
}

func indexOf(t *testing.T, steps []string, want string) int {
	t.Helper()
	for i, s := range steps {
		if s == want {
			return i
		}
	}
	t.Fatalf("step %q not in plan %v", want, steps)
	return -1
}

func TestPlanInitialization_DependenciesFirst(t *testing.T) {
	t.Parallel()

	foo := declareNamed("Foo")
	bar := declareNamed("Bar")
	desc := &ComponentDescriptor{
		Name: "App",
		Modules: []*ModuleDescriptor{module("m",
			provides(NewKey(foo)),
			provides(NewKey(bar), instanceOf(foo)),
		)},
		EntryPoints: []Request{instanceOf(bar)},
	}

	steps := stepStrings(planFor(t, desc))
	fooAt := indexOf(t, steps, "initialize "+ContributionBindingKey(NewKey(foo)).ID())
	barAt := indexOf(t, steps, "initialize "+ContributionBindingKey(NewKey(bar)).ID())
	if fooAt > barAt {
		t.Errorf("Foo must initialize before Bar, got %v", steps)
	}
}

func TestPlanInitialization_BrokenCycleUsesDelegate(t *testing.T) {
	t.Parallel()

	a := declareNamed("A")
	b := declareNamed("B")
	desc := &ComponentDescriptor{
		Name: "App",
		Modules: []*ModuleDescriptor{module("m",
			provides(NewKey(a), instanceOf(b)),
			provides(NewKey(b), Request{Kind: ProviderRequest, Key: NewKey(a)}),
		)},
		EntryPoints: []Request{instanceOf(a)},
	}

	steps := stepStrings(planFor(t, desc))
	aID := ContributionBindingKey(NewKey(a)).ID()
	bID := ContributionBindingKey(NewKey(b)).ID()
	want := []string{
		"delegate " + aID,
		"initialize " + bID,
		"initialize " + aID,
		"fixup " + aID,
	}
	if len(steps) != len(want) {
		t.Fatalf("got plan %v, want %v", steps, want)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Fatalf("step %d = %q, want %q (plan %v)", i, steps[i], want[i], steps)
		}
	}
}

func TestPlanInitialization_Deterministic(t *testing.T) {
	t.Parallel()

	desc := &ComponentDescriptor{Name: "App"}
	m := module("m")
	for _, name := range []string{"Gamma", "Alpha", "Delta", "Beta"} {
		typ := declareNamed(name)
		m.Bindings = append(m.Bindings, provides(NewKey(typ)))
		desc.EntryPoints = append(desc.EntryPoints, instanceOf(typ))
	}
	desc.Modules = []*ModuleDescriptor{m}

	first := stepStrings(planFor(t, desc))
	second := stepStrings(planFor(t, desc))
	if len(first) != len(second) {
		t.Fatalf("plans differ in size: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("step %d differs: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestPlanInitialization_InheritedKeysNotReplanned(t *testing.T) {
	t.Parallel()

	foo := declareNamed("Foo")
	scopedFoo := provides(NewKey(foo))
	scopedFoo.Scope = NewScope(singletonScopeName)

	desc := &ComponentDescriptor{
		Name:        "App",
		Scopes:      []Scope{NewScope(singletonScopeName)},
		Modules:     []*ModuleDescriptor{module("m", scopedFoo)},
		EntryPoints: []Request{instanceOf(foo)},
		Subcomponents: []*ComponentDescriptor{{
			Name:        "Request",
			EntryPoints: []Request{instanceOf(foo)},
		}},
	}

	plan := planFor(t, desc)
	fooStep := "initialize " + ContributionBindingKey(NewKey(foo)).ID()
	indexOf(t, stepStrings(plan), fooStep)

	if len(plan.Children) != 1 {
		t.Fatalf("got %d child plans, want 1", len(plan.Children))
	}
	for _, s := range stepStrings(plan.Children[0]) {
		if s == fooStep {
			t.Errorf("inherited key replanned in child: %v", s)
		}
	}
}
