package kumitate

import (
	"go/types"
	"testing"
)

func TestRequestForType(t *testing.T) {
	t.Parallel()

	foo := declareNamed("Foo")

	tests := []struct {
		name     string
		typ      types.Type
		wantKind RequestKind
		wantKey  types.Type
	}{
		{
			name:     "plain type",
			typ:      foo,
			wantKind: InstanceRequest,
			wantKey:  foo,
		},
		{
			name:     "pointer",
			typ:      types.NewPointer(foo),
			wantKind: InstanceRequest,
			wantKey:  types.NewPointer(foo),
		},
		{
			name:     "provider",
			typ:      wrapperType(providerTypeName, foo),
			wantKind: ProviderRequest,
			wantKey:  foo,
		},
		{
			name:     "lazy",
			typ:      wrapperType(lazyTypeName, foo),
			wantKind: LazyRequest,
			wantKey:  foo,
		},
		{
			name:     "provider of lazy",
			typ:      wrapperType(providerTypeName, wrapperType(lazyTypeName, foo)),
			wantKind: ProviderOfLazyRequest,
			wantKey:  foo,
		},
		{
			name:     "members injector",
			typ:      wrapperType(membersInjectorTypeName, types.NewPointer(foo)),
			wantKind: MembersInjectorRequest,
			wantKey:  types.NewPointer(foo),
		},
		{
			name:     "producer",
			typ:      wrapperType(producerTypeName, foo),
			wantKind: ProducerRequest,
			wantKey:  foo,
		},
		{
			name:     "produced",
			typ:      wrapperType(producedTypeName, foo),
			wantKind: ProducedRequest,
			wantKey:  foo,
		},
		{
			name:     "future",
			typ:      wrapperType(futureTypeName, foo),
			wantKind: FutureRequest,
			wantKey:  foo,
		},
		{
			name:     "optional is a plain key",
			typ:      wrapperType(optionalTypeName, foo),
			wantKind: InstanceRequest,
			wantKey:  wrapperType(optionalTypeName, foo),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := RequestForType(tt.typ, "here")
			if got.Kind != tt.wantKind {
				t.Errorf("RequestForType(%s).Kind = %s, want %s", tt.typ, got.Kind, tt.wantKind)
			}
			want := NewKey(tt.wantKey)
			if got.Key.ID() != want.ID() {
				t.Errorf("RequestForType(%s).Key = %s, want %s", tt.typ, got.Key, want)
			}
		})
	}
}

func TestRequestKind_AllowsNull(t *testing.T) {
	t.Parallel()

	if InstanceRequest.AllowsNull() {
		t.Error("a bare instance request must insist on a value")
	}
	for _, kind := range []RequestKind{
		ProviderRequest, LazyRequest, ProviderOfLazyRequest,
		MembersInjectorRequest, ProducerRequest, ProducedRequest, FutureRequest,
	} {
		if !kind.AllowsNull() {
			t.Errorf("%s should tolerate a nullable binding", kind)
		}
	}
}

func TestRequestKind_BreaksCycle(t *testing.T) {
	t.Parallel()

	foo := declareNamed("Foo")
	mapOfProvider := types.NewMap(types.Typ[types.String], wrapperType(providerTypeName, foo))

	tests := []struct {
		name string
		kind RequestKind
		typ  types.Type
		want bool
	}{
		{name: "instance", kind: InstanceRequest, typ: foo, want: false},
		{name: "provider", kind: ProviderRequest, typ: foo, want: true},
		{name: "lazy", kind: LazyRequest, typ: foo, want: true},
		{name: "provider of lazy", kind: ProviderOfLazyRequest, typ: foo, want: true},
		{name: "producer", kind: ProducerRequest, typ: foo, want: false},
		{name: "instance map of providers", kind: InstanceRequest, typ: mapOfProvider, want: true},
		{name: "instance plain map", kind: InstanceRequest, typ: types.NewMap(types.Typ[types.String], foo), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.kind.BreaksCycle(tt.typ); got != tt.want {
				t.Errorf("%s.BreaksCycle(%s) = %v, want %v", tt.kind, tt.typ, got, tt.want)
			}
		})
	}
}

func TestSyntheticProviderType(t *testing.T) {
	t.Parallel()

	foo := declareNamed("Foo")

	// The hand-built Provider standin must be indistinguishable from a
	// loaded kumitate.Provider under key identity.
	synthetic := providerTypeFor(foo)
	loaded := wrapperType(providerTypeName, foo)
	if NewKey(synthetic).ID() != NewKey(loaded).ID() {
		t.Errorf("synthetic provider id %q differs from loaded %q",
			NewKey(synthetic).ID(), NewKey(loaded).ID())
	}

	if !isProviderType(synthetic) {
		t.Error("synthetic provider type not recognized as Provider")
	}
	if !isMapOfProvider(mapOfProviderType(types.NewMap(types.Typ[types.String], foo))) {
		t.Error("mapOfProviderType result not recognized as map of providers")
	}
}
