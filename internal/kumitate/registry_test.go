package kumitate

import (
	"errors"
	"go/token"
	"go/types"
	"testing"
)

// countingSupplier wraps a fixed binding and counts derivations.
type countingSupplier struct {
	binding *Binding
	calls   int
}

func (s *countingSupplier) InjectionBinding(Key) (*Binding, error) {
	s.calls++
	return s.binding, nil
}

func (s *countingSupplier) MembersInjectionBinding(Key) (*Binding, error) {
	s.calls++
	return s.binding, nil
}

func TestInjectRegistry_Memoizes(t *testing.T) {
	t.Parallel()

	foo := declareNamed("Foo")
	supplier := &countingSupplier{binding: provides(NewKey(foo))}
	registry := NewInjectRegistry(supplier)

	first, err := registry.InjectionBindingFor(NewKey(foo))
	if err != nil {
		t.Fatalf("InjectionBindingFor() error = %v", err)
	}
	second, err := registry.InjectionBindingFor(NewKey(foo))
	if err != nil {
		t.Fatalf("InjectionBindingFor() error = %v", err)
	}

	if supplier.calls != 1 {
		t.Errorf("supplier called %d times, want 1", supplier.calls)
	}
	if first != second {
		t.Error("memoized lookups must return the same binding")
	}
}

func TestInjectRegistry_MemoizesMisses(t *testing.T) {
	t.Parallel()

	foo := declareNamed("Foo")
	supplier := &countingSupplier{}
	registry := NewInjectRegistry(supplier)

	for range 2 {
		binding, err := registry.InjectionBindingFor(NewKey(foo))
		if err != nil {
			t.Fatalf("InjectionBindingFor() error = %v", err)
		}
		if binding != nil {
			t.Fatalf("got binding %v, want nil", binding)
		}
	}
	if supplier.calls != 1 {
		t.Errorf("supplier called %d times for a known miss, want 1", supplier.calls)
	}
}

func TestInjectRegistry_DuplicateRegisterPanics(t *testing.T) {
	t.Parallel()

	foo := declareNamed("Foo")
	registry := NewInjectRegistry(StructInjectSupplier{})
	registry.Register(ContributionBindingKey(NewKey(foo)), provides(NewKey(foo)))

	defer func() {
		if recover() == nil {
			t.Error("duplicate registration must panic")
		}
	}()
	registry.Register(ContributionBindingKey(NewKey(foo)), provides(NewKey(foo)))
}

func TestInjectRegistry_PropagatesTypeNotPresent(t *testing.T) {
	t.Parallel()

	foo := declareNamed("Foo")
	registry := NewInjectRegistry(failingSupplier{err: ErrTypeNotPresent})

	if _, err := registry.InjectionBindingFor(NewKey(foo)); !errors.Is(err, ErrTypeNotPresent) {
		t.Errorf("InjectionBindingFor() error = %v, want ErrTypeNotPresent", err)
	}
}

// taggedStruct builds a named struct with one field per entry, tagging the
// tagged ones with `inject` (and a qualifier when value is non-empty).
func taggedStruct(name string, fields []*types.Var, tags []string) *types.Named {
	obj := types.NewTypeName(token.NoPos, testPkg, name, nil)
	return types.NewNamed(obj, types.NewStruct(fields, tags), nil)
}

func TestStructInjectSupplier_InjectionBinding(t *testing.T) {
	t.Parallel()

	dep := declareNamed("Dep")
	primary := declareNamed("Primary")
	service := taggedStruct("Service",
		[]*types.Var{
			types.NewField(token.NoPos, testPkg, "DB", dep, false),
			types.NewField(token.NoPos, testPkg, "Cache", primary, false),
			types.NewField(token.NoPos, testPkg, "name", types.Typ[types.String], false),
		},
		[]string{`inject:""`, `inject:"primary"`, ``},
	)

	binding, err := StructInjectSupplier{}.InjectionBinding(NewKey(types.NewPointer(service)))
	if err != nil {
		t.Fatalf("InjectionBinding() error = %v", err)
	}
	if binding == nil {
		t.Fatal("got nil binding for a tagged struct")
	}
	if binding.Kind != InjectionBinding {
		t.Errorf("binding kind = %s, want %s", binding.Kind, InjectionBinding)
	}
	if len(binding.Deps) != 2 {
		t.Fatalf("got %d deps, want the two tagged fields", len(binding.Deps))
	}
	if q := binding.Deps[0].Key.Qualifier(); q != "" {
		t.Errorf("DB qualifier = %q, want none", q)
	}
	if q := binding.Deps[1].Key.Qualifier(); q != "primary" {
		t.Errorf("Cache qualifier = %q, want primary", q)
	}
}

func TestStructInjectSupplier_NoTaggedFields(t *testing.T) {
	t.Parallel()

	plain := taggedStruct("Plain",
		[]*types.Var{types.NewField(token.NoPos, testPkg, "Name", types.Typ[types.String], false)},
		[]string{``},
	)

	binding, err := StructInjectSupplier{}.InjectionBinding(NewKey(types.NewPointer(plain)))
	if err != nil {
		t.Fatalf("InjectionBinding() error = %v", err)
	}
	if binding != nil {
		t.Errorf("untagged struct must not get an implicit injection binding, got %v", binding)
	}

	// Members injection of the same struct is a valid no-op.
	members, err := StructInjectSupplier{}.MembersInjectionBinding(NewKey(types.NewPointer(plain)))
	if err != nil {
		t.Fatalf("MembersInjectionBinding() error = %v", err)
	}
	if members == nil {
		t.Fatal("members injection of a valid struct must resolve")
	}
	if len(members.Deps) != 0 {
		t.Errorf("no-op injector has %d deps, want 0", len(members.Deps))
	}
}

func TestStructInjectSupplier_QualifiedKeysAreExplicitOnly(t *testing.T) {
	t.Parallel()

	dep := declareNamed("Dep")
	service := taggedStruct("Service",
		[]*types.Var{types.NewField(token.NoPos, testPkg, "DB", dep, false)},
		[]string{`inject:""`},
	)

	binding, err := StructInjectSupplier{}.InjectionBinding(
		NewQualifiedKey(types.NewPointer(service), "primary"))
	if err != nil {
		t.Fatalf("InjectionBinding() error = %v", err)
	}
	if binding != nil {
		t.Errorf("qualified key must not derive an implicit binding, got %v", binding)
	}
}

func TestStructInjectSupplier_WrappedFieldTypes(t *testing.T) {
	t.Parallel()

	dep := declareNamed("Dep")
	service := taggedStruct("Service",
		[]*types.Var{
			types.NewField(token.NoPos, testPkg, "Deferred", wrapperType(providerTypeName, dep), false),
		},
		[]string{`inject:""`},
	)

	binding, err := StructInjectSupplier{}.InjectionBinding(NewKey(types.NewPointer(service)))
	if err != nil {
		t.Fatalf("InjectionBinding() error = %v", err)
	}
	if binding == nil || len(binding.Deps) != 1 {
		t.Fatalf("got binding %v, want one dep", binding)
	}
	req := binding.Deps[0]
	if req.Kind != ProviderRequest {
		t.Errorf("wrapped field derived kind %v, want a provider request", req.Kind)
	}
	if got := req.Key.ID(); got != NewKey(dep).ID() {
		t.Errorf("wrapped field key = %s, want the unwrapped %s", got, NewKey(dep).ID())
	}
}
