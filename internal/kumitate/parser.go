package kumitate

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"
)

// Parser analyzes Go source code to find kumitate component directives and
// turn them into ComponentDescriptors for resolution.
type Parser struct {
	fset *token.FileSet
}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{
		fset: token.NewFileSet(),
	}
}

// ParseFile parses a Go file and extracts its component directives. A file
// that does not import kumitate yields no descriptors and no error. A
// directive that references a type the current round cannot resolve returns
// an error wrapping ErrTypeNotPresent so the caller can retry the file in a
// later round.
func (p *Parser) ParseFile(filename string) ([]*ComponentDescriptor, error) {
	pkg, err := p.loadPackage(filename)
	if err != nil {
		return nil, fmt.Errorf("load package: %w", err)
	}

	kumitatePkg, ok := pkg.Imports[kumitatePkgPath]
	if !ok || kumitatePkg == nil || kumitatePkg.Types == nil {
		slog.Debug("kumitate package is not imported", "filename", filename)
		return nil, nil
	}

	componentObj := kumitatePkg.Types.Scope().Lookup("Component")
	if componentObj == nil || componentObj.Type() == nil {
		slog.Warn("kumitate package is imported, but kumitate.Component is not found", "filename", filename)
		return nil, nil
	}

	var targetFile *ast.File
	absFilename, _ := filepath.Abs(filename)
	for i, f := range pkg.Syntax {
		if f != nil && i < len(pkg.GoFiles) {
			absGoFile, _ := filepath.Abs(pkg.GoFiles[i])
			if absGoFile == absFilename {
				targetFile = f
				break
			}
		}
	}
	if targetFile == nil {
		return nil, fmt.Errorf("target file not found in package syntax")
	}

	return p.findComponentDirectives(targetFile, pkg.TypesInfo, componentObj.Type())
}

func (p *Parser) loadPackage(filename string) (*packages.Package, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedTypes | packages.NeedTypesSizes |
			packages.NeedSyntax | packages.NeedTypesInfo,
		Fset: p.fset,
	}

	pkgs, err := packages.Load(cfg, "file="+filename)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	// Type errors are tolerated here; directives referencing not-yet-written
	// code surface as invalid types and defer the round instead.
	errorCount := packages.PrintErrors(pkgs)
	if errorCount > 0 && len(pkgs) == 0 {
		return nil, fmt.Errorf("package loading errors occurred and no packages loaded")
	}

	absFilename, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("absolute path of %s: %w", filename, err)
	}
	for _, pkg := range pkgs {
		for _, goFile := range pkg.GoFiles {
			absGoFile, err := filepath.Abs(goFile)
			if err != nil {
				slog.Debug("failed to get absolute filename", "error", err, "filename", goFile)
				continue
			}
			if absGoFile == absFilename {
				return pkg, nil
			}
		}
	}
	return nil, fmt.Errorf("file %s is not part of any loaded package", filename)
}

// findComponentDirectives finds all kumitate.Component calls in the file.
func (p *Parser) findComponentDirectives(file *ast.File, info *types.Info, componentType types.Type) ([]*ComponentDescriptor, error) {
	var (
		descriptors []*ComponentDescriptor
		firstErr    error
	)

	ast.Inspect(file, func(n ast.Node) bool {
		callExpr, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}

		baseFunc := selectorOf(callExpr.Fun)
		if baseFunc == nil {
			return true
		}

		calleeType := info.TypeOf(baseFunc)
		if calleeType == nil || !types.Identical(calleeType, componentType) {
			return true
		}

		desc, err := p.parseComponentCall(info, callExpr)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("parse component directive at %s: %w", p.pos(callExpr), err)
			}
			return false
		}

		descriptors = append(descriptors, desc)
		return false
	})

	return descriptors, firstErr
}

// selectorOf unwraps an instantiated call target to its package selector.
func selectorOf(fun ast.Expr) *ast.SelectorExpr {
	switch f := fun.(type) {
	case *ast.IndexExpr:
		if sel, ok := f.X.(*ast.SelectorExpr); ok {
			return sel
		}
	case *ast.IndexListExpr:
		if sel, ok := f.X.(*ast.SelectorExpr); ok {
			return sel
		}
	case *ast.SelectorExpr:
		return f
	}
	return nil
}

// parseComponentCall parses a kumitate.Component or kumitate.Subcomponent
// call expression into a descriptor.
func (p *Parser) parseComponentCall(info *types.Info, call *ast.CallExpr) (*ComponentDescriptor, error) {
	componentType, err := p.typeArg(info, call, 0)
	if err != nil {
		return nil, err
	}

	if len(call.Args) == 0 {
		return nil, fmt.Errorf("component directive requires a name argument")
	}
	name, err := p.constString(info, call.Args[0])
	if err != nil {
		return nil, fmt.Errorf("component name: %w", err)
	}

	desc := &ComponentDescriptor{
		Name:   name,
		Type:   componentType,
		Source: p.pos(call),
	}

	for _, arg := range call.Args[1:] {
		if err := p.parseComponentItem(info, desc, arg); err != nil {
			return nil, err
		}
	}

	// A component whose bindings include any async provider is a production
	// component; its entry points may use the async request forms.
	for _, module := range desc.Modules {
		for _, binding := range module.Bindings {
			if binding.Type == Production {
				desc.Production = true
			}
		}
	}
	for _, dep := range desc.Dependencies {
		for _, provision := range dep.Provisions {
			if provision.Type == Production {
				desc.Production = true
			}
		}
	}

	return desc, nil
}

func (p *Parser) parseComponentItem(info *types.Info, desc *ComponentDescriptor, arg ast.Expr) error {
	name, call, ok := p.directiveCall(info, arg)
	if !ok {
		return fmt.Errorf("unexpected component item at %s; expected a kumitate directive", p.pos(arg))
	}

	switch name {
	case "InScope":
		scopeName, err := p.constString(info, call.Args[0])
		if err != nil {
			return fmt.Errorf("scope name: %w", err)
		}
		desc.Scopes = append(desc.Scopes, NewScope(scopeName))
		return nil

	case "Module":
		module, err := p.parseModule(info, call)
		if err != nil {
			return err
		}
		desc.Modules = append(desc.Modules, module)
		return nil

	case "DependsOn":
		dep, err := p.parseDependency(info, call)
		if err != nil {
			return err
		}
		desc.Dependencies = append(desc.Dependencies, dep)
		return nil

	case "EntryPoint":
		entryType, err := p.typeArg(info, call, 0)
		if err != nil {
			return err
		}
		desc.EntryPoints = append(desc.EntryPoints, RequestForType(entryType, p.pos(call)))
		return nil

	case "Subcomponent":
		sub, err := p.parseComponentCall(info, call)
		if err != nil {
			return err
		}
		desc.Subcomponents = append(desc.Subcomponents, sub)
		return nil

	case "Builder":
		builder, err := p.parseBuilder(info, call)
		if err != nil {
			return err
		}
		desc.Builder = builder
		return nil

	default:
		return fmt.Errorf("unexpected directive kumitate.%s at %s in component %s", name, p.pos(arg), desc.Name)
	}
}

func (p *Parser) parseModule(info *types.Info, call *ast.CallExpr) (*ModuleDescriptor, error) {
	if len(call.Args) == 0 {
		return nil, fmt.Errorf("module directive requires a name argument")
	}
	name, err := p.constString(info, call.Args[0])
	if err != nil {
		return nil, fmt.Errorf("module name: %w", err)
	}

	module := &ModuleDescriptor{
		Name:   name,
		Source: p.pos(call),
	}
	for _, arg := range call.Args[1:] {
		if err := p.parseModuleItem(info, module, arg); err != nil {
			return nil, fmt.Errorf("module %s: %w", name, err)
		}
	}
	return module, nil
}

func (p *Parser) parseModuleItem(info *types.Info, module *ModuleDescriptor, arg ast.Expr) error {
	name, call, ok := p.directiveCall(info, arg)
	if !ok {
		return fmt.Errorf("unexpected module item at %s; expected a kumitate provider directive", p.pos(arg))
	}

	switch name {
	case "BindOptional":
		valueType, err := p.typeArg(info, call, 0)
		if err != nil {
			return err
		}
		module.Optionals = append(module.Optionals, &OptionalDeclaration{
			Key:    RequestForType(valueType, "").Key,
			Module: module.Name,
			Source: p.pos(call),
		})
		return nil

	case "Multibinds":
		aggregateType, err := p.typeArg(info, call, 0)
		if err != nil {
			return err
		}
		var contribution ContributionType
		switch aggregateType.Underlying().(type) {
		case *types.Slice:
			contribution = SetContribution
		case *types.Map:
			contribution = MapContribution
		default:
			return fmt.Errorf("kumitate.Multibinds at %s requires a slice or map type, got %s",
				p.pos(call), aggregateType)
		}
		module.Multibindings = append(module.Multibindings, &MultibindingDeclaration{
			Key:          NewKey(aggregateType),
			Contribution: contribution,
			Module:       module.Name,
			Source:       p.pos(call),
		})
		return nil
	}

	bindings, err := p.parseProvider(info, module.Name, arg)
	if err != nil {
		return err
	}
	module.Bindings = append(module.Bindings, bindings...)
	return nil
}

// parseProvider parses one provider directive, unwrapping the modifier
// directives around the base Provide or Value call.
func (p *Parser) parseProvider(info *types.Info, moduleName string, expr ast.Expr) ([]*Binding, error) {
	name, call, ok := p.directiveCall(info, expr)
	if !ok {
		return nil, fmt.Errorf("unexpected provider expression at %s", p.pos(expr))
	}

	switch name {
	case "Provide":
		return p.parseProvideCall(info, moduleName, call)

	case "Value":
		valueType, err := p.typeOf(info, call.Args[0])
		if err != nil {
			return nil, err
		}
		return []*Binding{{
			Key:         NewKey(valueType),
			Kind:        ProvisionBinding,
			Type:        Provision,
			Strategy:    FactoryFunction,
			Module:      moduleName,
			FactoryName: "value",
			Source:      p.pos(call),
		}}, nil

	case "Scoped":
		scopeName, err := p.constString(info, call.Args[0])
		if err != nil {
			return nil, fmt.Errorf("scope name: %w", err)
		}
		inner, err := p.parseProvider(info, moduleName, call.Args[1])
		if err != nil {
			return nil, err
		}
		for _, b := range inner {
			b.Scope = NewScope(scopeName)
		}
		return inner, nil

	case "Async":
		inner, err := p.parseProvider(info, moduleName, call.Args[0])
		if err != nil {
			return nil, err
		}
		for _, b := range inner {
			b.Type = Production
		}
		return inner, nil

	case "Nullable":
		inner, err := p.parseProvider(info, moduleName, call.Args[0])
		if err != nil {
			return nil, err
		}
		for _, b := range inner {
			b.Nullable = true
		}
		return inner, nil

	case "Bind":
		return p.parseBindCall(info, moduleName, call)

	case "IntoSet":
		inner, err := p.singleProvider(info, moduleName, call.Args[0])
		if err != nil {
			return nil, err
		}
		aggregate := types.NewSlice(inner.Key.Type())
		inner.Key = NewKey(aggregate).WithContribution(p.pos(call))
		inner.Contribution = SetContribution
		return []*Binding{inner}, nil

	case "SetValues":
		inner, err := p.singleProvider(info, moduleName, call.Args[0])
		if err != nil {
			return nil, err
		}
		if _, ok := inner.Key.Type().Underlying().(*types.Slice); !ok {
			return nil, fmt.Errorf("kumitate.SetValues at %s requires a provider of a slice, got %s",
				p.pos(call), inner.Key)
		}
		inner.Key = NewKey(inner.Key.Type()).WithContribution(p.pos(call))
		inner.Contribution = SetValuesContribution
		return []*Binding{inner}, nil

	case "IntoMap":
		return p.parseIntoMapCall(info, moduleName, call)

	default:
		return nil, fmt.Errorf("unexpected directive kumitate.%s at %s; expected a provider", name, p.pos(expr))
	}
}

// singleProvider parses a provider directive that must yield exactly one
// binding, the shape multibinding contributions require.
func (p *Parser) singleProvider(info *types.Info, moduleName string, expr ast.Expr) (*Binding, error) {
	inner, err := p.parseProvider(info, moduleName, expr)
	if err != nil {
		return nil, err
	}
	if len(inner) != 1 {
		return nil, fmt.Errorf("contribution at %s requires a provider with exactly one result, got %d",
			p.pos(expr), len(inner))
	}
	return inner[0], nil
}

func (p *Parser) parseProvideCall(info *types.Info, moduleName string, call *ast.CallExpr) ([]*Binding, error) {
	if len(call.Args) != 1 {
		return nil, fmt.Errorf("kumitate.Provide at %s requires exactly one function argument", p.pos(call))
	}
	fnExpr := call.Args[0]
	fnType, err := p.typeOf(info, fnExpr)
	if err != nil {
		return nil, err
	}
	sig, ok := fnType.Underlying().(*types.Signature)
	if !ok {
		return nil, fmt.Errorf("kumitate.Provide at %s requires a function, got %s", p.pos(call), fnType)
	}

	var deps []Request
	for i := 0; i < sig.Params().Len(); i++ {
		param := sig.Params().At(i)
		if isContextType(param.Type()) {
			continue
		}
		deps = append(deps, RequestForType(param.Type(), p.pos(fnExpr)))
	}

	var provides []types.Type
	for i := 0; i < sig.Results().Len(); i++ {
		result := sig.Results().At(i).Type()
		if types.Identical(result, types.Universe.Lookup("error").Type()) {
			continue
		}
		provides = append(provides, result)
	}
	if len(provides) == 0 {
		return nil, fmt.Errorf("provider at %s has no non-error results", p.pos(call))
	}

	bindings := make([]*Binding, 0, len(provides))
	for _, result := range provides {
		bindings = append(bindings, &Binding{
			Key:         NewKey(result),
			Kind:        ProvisionBinding,
			Type:        Provision,
			Strategy:    FactoryFunction,
			Deps:        deps,
			Module:      moduleName,
			FactoryName: exprName(fnExpr),
			Source:      p.pos(call),
		})
	}
	return bindings, nil
}

// parseBindCall parses kumitate.Bind[S](provider): the wrapped provider's
// binding plus a delegate binding that satisfies S with it.
func (p *Parser) parseBindCall(info *types.Info, moduleName string, call *ast.CallExpr) ([]*Binding, error) {
	ifaceType, err := p.typeArg(info, call, 0)
	if err != nil {
		return nil, err
	}
	inner, err := p.singleProvider(info, moduleName, call.Args[0])
	if err != nil {
		return nil, err
	}

	delegate := &Binding{
		Key:         NewKey(ifaceType),
		Kind:        DelegateBinding,
		Type:        inner.Type,
		Strategy:    FactoryInline,
		Deps:        []Request{{Kind: InstanceRequest, Key: inner.Key, Source: p.pos(call)}},
		Module:      moduleName,
		FactoryName: exprName(call.Args[0]),
		Source:      p.pos(call),
	}
	return []*Binding{inner, delegate}, nil
}

func (p *Parser) parseIntoMapCall(info *types.Info, moduleName string, call *ast.CallExpr) ([]*Binding, error) {
	if len(call.Args) != 2 {
		return nil, fmt.Errorf("kumitate.IntoMap at %s requires a key and a provider", p.pos(call))
	}
	tv, ok := info.Types[call.Args[0]]
	if !ok || tv.Type == nil {
		return nil, fmt.Errorf("%s: map key type: %w", p.pos(call), ErrTypeNotPresent)
	}
	if tv.Value == nil {
		return nil, fmt.Errorf("kumitate.IntoMap at %s requires a constant key", p.pos(call))
	}
	keyType := types.Default(tv.Type)

	inner, err := p.singleProvider(info, moduleName, call.Args[1])
	if err != nil {
		return nil, err
	}

	aggregate := types.NewMap(keyType, inner.Key.Type())
	inner.Key = NewKey(aggregate).WithContribution(p.pos(call))
	inner.Contribution = MapContribution
	inner.MapKey = &MapKeyValue{
		Type:  types.TypeString(keyType, nil),
		Value: tv.Value.ExactString(),
	}
	return []*Binding{inner}, nil
}

// parseDependency parses kumitate.DependsOn[T](scope...): the interface's
// methods become passthrough bindings. A method taking a context is an
// asynchronous provision.
func (p *Parser) parseDependency(info *types.Info, call *ast.CallExpr) (*ComponentDependency, error) {
	depType, err := p.typeArg(info, call, 0)
	if err != nil {
		return nil, err
	}

	scope := Unscoped
	if len(call.Args) > 0 {
		scopeName, err := p.constString(info, call.Args[0])
		if err != nil {
			return nil, fmt.Errorf("dependency scope: %w", err)
		}
		scope = NewScope(scopeName)
	}

	dep := &ComponentDependency{
		Name:   typeBaseName(depType),
		Type:   depType,
		Scope:  scope,
		Source: p.pos(call),
	}

	methodSet := types.NewMethodSet(depType)
	for method := range methodSet.Methods() {
		if method == nil || method.Obj() == nil || !method.Obj().Exported() {
			continue
		}
		sig, ok := method.Obj().Type().(*types.Signature)
		if !ok {
			continue
		}

		production := false
		switch sig.Params().Len() {
		case 0:
		case 1:
			if !isContextType(sig.Params().At(0).Type()) {
				continue
			}
			production = true
		default:
			continue
		}

		var provided types.Type
		for i := 0; i < sig.Results().Len(); i++ {
			result := sig.Results().At(i).Type()
			if types.Identical(result, types.Universe.Lookup("error").Type()) {
				continue
			}
			if provided != nil {
				provided = nil
				break
			}
			provided = result
		}
		if provided == nil {
			continue
		}

		binding := &Binding{
			Key:         NewKey(provided),
			Kind:        ComponentProvisionBinding,
			Type:        Provision,
			Strategy:    FactoryFunction,
			FactoryName: dep.Name + "." + method.Obj().Name(),
			Source:      p.pos(call),
		}
		if production {
			binding.Kind = ComponentProductionBinding
			binding.Type = Production
		}
		dep.Provisions = append(dep.Provisions, binding)
	}

	return dep, nil
}

func (p *Parser) parseBuilder(info *types.Info, call *ast.CallExpr) (*BuilderSpec, error) {
	builderType, err := p.typeArg(info, call, 0)
	if err != nil {
		return nil, fmt.Errorf("builder type: %w", err)
	}
	builder := &BuilderSpec{Type: builderType, Source: p.pos(call)}
	for _, arg := range call.Args {
		name, setterCall, ok := p.directiveCall(info, arg)
		if !ok || name != "BuilderSetter" {
			return nil, fmt.Errorf("unexpected builder item at %s; expected kumitate.BuilderSetter", p.pos(arg))
		}
		setterName, err := p.constString(info, setterCall.Args[0])
		if err != nil {
			return nil, fmt.Errorf("setter name: %w", err)
		}
		target, err := p.constString(info, setterCall.Args[1])
		if err != nil {
			return nil, fmt.Errorf("setter target: %w", err)
		}
		builder.Setters = append(builder.Setters, BuilderSetter{
			Name:   setterName,
			Target: target,
			Source: p.pos(setterCall),
		})
	}
	return builder, nil
}

// directiveCall reports whether expr is a call of a kumitate package-level
// directive, returning the directive name and the call.
func (p *Parser) directiveCall(info *types.Info, expr ast.Expr) (string, *ast.CallExpr, bool) {
	call, ok := expr.(*ast.CallExpr)
	if !ok {
		return "", nil, false
	}
	sel := selectorOf(call.Fun)
	if sel == nil {
		return "", nil, false
	}
	ident, ok := sel.X.(*ast.Ident)
	if !ok {
		return "", nil, false
	}
	pkgName, ok := info.ObjectOf(ident).(*types.PkgName)
	if !ok || pkgName.Imported().Path() != kumitatePkgPath {
		return "", nil, false
	}
	return sel.Sel.Name, call, true
}

// typeArg resolves the i-th explicit type argument of an instantiated
// directive call.
func (p *Parser) typeArg(info *types.Info, call *ast.CallExpr, i int) (types.Type, error) {
	var expr ast.Expr
	switch fun := call.Fun.(type) {
	case *ast.IndexExpr:
		if i == 0 {
			expr = fun.Index
		}
	case *ast.IndexListExpr:
		if i < len(fun.Indices) {
			expr = fun.Indices[i]
		}
	}
	if expr == nil {
		return nil, fmt.Errorf("directive at %s requires an explicit type argument", p.pos(call))
	}
	return p.typeOf(info, expr)
}

// typeOf resolves the type of expr, deferring the round when the type does
// not exist yet.
func (p *Parser) typeOf(info *types.Info, expr ast.Expr) (types.Type, error) {
	t := info.TypeOf(expr)
	if t == nil || isInvalidType(t) {
		return nil, fmt.Errorf("%s: %w", p.pos(expr), ErrTypeNotPresent)
	}
	return t, nil
}

func (p *Parser) constString(info *types.Info, expr ast.Expr) (string, error) {
	tv, ok := info.Types[expr]
	if !ok {
		return "", fmt.Errorf("get type of argument at %s", p.pos(expr))
	}
	if tv.Value == nil || tv.Value.Kind() != constant.String {
		return "", fmt.Errorf("argument at %s is not a string literal", p.pos(expr))
	}
	return constant.StringVal(tv.Value), nil
}

func (p *Parser) pos(n ast.Node) string {
	return p.fset.Position(n.Pos()).String()
}

func isInvalidType(t types.Type) bool {
	basic, ok := t.(*types.Basic)
	return ok && basic.Kind() == types.Invalid
}

func isContextType(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj != nil && obj.Pkg() != nil &&
		obj.Pkg().Path() == contextPkgPath && obj.Name() == contextTypeName
}

// exprName renders a short diagnostic name for a provider expression.
func exprName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		return exprName(e.X) + "." + e.Sel.Name
	case *ast.CallExpr:
		return exprName(e.Fun)
	case *ast.IndexExpr:
		return exprName(e.X)
	case *ast.IndexListExpr:
		return exprName(e.X)
	default:
		return "provider"
	}
}

func typeBaseName(t types.Type) string {
	if named, ok := t.(*types.Named); ok && named.Obj() != nil {
		return named.Obj().Name()
	}
	name := types.TypeString(t, nil)
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
