package kumitate

import (
	"fmt"
	"go/types"
)

// providerGeneric is a standin for the kumitate.Provider generic type, used
// to build map-of-provider keys for synthetic map bindings. It prints and
// compares identically to the real type since key identity is the canonical
// type string.
var providerGeneric = func() *types.Named {
	pkg := types.NewPackage(kumitatePkgPath, "kumitate")
	tparam := types.NewTypeParam(types.NewTypeName(0, pkg, "T", nil), types.NewInterfaceType(nil, nil))
	sig := types.NewSignatureType(nil, nil, nil, nil,
		types.NewTuple(types.NewVar(0, nil, "", tparam)), false)
	named := types.NewNamed(types.NewTypeName(0, pkg, providerTypeName, nil), sig, nil)
	named.SetTypeParams([]*types.TypeParam{tparam})
	return named
}()

// providerTypeFor returns the type Provider[elem].
func providerTypeFor(elem types.Type) types.Type {
	t, err := types.Instantiate(nil, providerGeneric, []types.Type{elem}, false)
	if err != nil {
		panic(fmt.Sprintf("instantiate Provider[%s]: %v", elem, err))
	}
	return t
}

// mapOfProviderType returns map[K]Provider[V] for the map type map[K]V.
func mapOfProviderType(m *types.Map) types.Type {
	return types.NewMap(m.Key(), providerTypeFor(m.Elem()))
}
