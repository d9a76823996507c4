package kumitate

import (
	"fmt"
	"go/types"
	"slices"
	"sort"
	"strings"
)

// Validator walks a resolved BindingGraph and accumulates every problem it
// finds into a Report. It never stops at the first error; independent paths
// keep being checked so one run surfaces the maximal set of diagnostics.
type Validator struct {
	opts Options
}

// NewValidator returns a validator with the given options.
func NewValidator(opts Options) *Validator {
	return &Validator{opts: opts}
}

// Validate checks the graph and every subcomponent graph beneath it.
func (v *Validator) Validate(g *BindingGraph) *Report {
	report := NewReport(g.Component.Name)

	v.validateComponentScopes(g, report)
	v.validateDependencyCycles(g.Component, report)
	v.validateDependencyScopes(g.Component, report)
	v.validateScopeHierarchy(g.Component, report)
	v.validateBuilder(g.Component, report)

	t := newTraversal(v, g, report)
	for _, entryPoint := range g.Component.AllEntryPoints() {
		t.traverse(entryPoint)
	}

	for _, sub := range g.Subgraphs {
		report.Children = append(report.Children, v.Validate(sub))
	}
	return report
}

// resolvedRequest is one step on the dependency path: the request and the
// bindings it resolved to in the component under validation.
type resolvedRequest struct {
	request  Request
	resolved *ResolvedBindings
}

// traversal is the per-component walk state: the current dependency path,
// a multiset of the binding keys on it, and the dedup sets that keep each
// problem reported once per key or binding rather than once per path.
type traversal struct {
	validator *Validator
	graph     *BindingGraph
	report    *Report

	path   []resolvedRequest
	onPath map[string]int

	reportedMissing    map[string]struct{}
	reportedDuplicates map[string]struct{}
	reportedMixes      map[string]struct{}
	reportedCycles     map[string]struct{}
	reportedMembers    map[string]struct{}
	checkedBindings    map[*Binding]struct{}
	reportedNullables  map[string]struct{}
	reportedProvision  map[*Binding]struct{}
	reportedExecutor   map[string]struct{}
}

func newTraversal(v *Validator, g *BindingGraph, report *Report) *traversal {
	return &traversal{
		validator:          v,
		graph:              g,
		report:             report,
		onPath:             make(map[string]int),
		reportedMissing:    make(map[string]struct{}),
		reportedDuplicates: make(map[string]struct{}),
		reportedMixes:      make(map[string]struct{}),
		reportedCycles:     make(map[string]struct{}),
		reportedMembers:    make(map[string]struct{}),
		checkedBindings:    make(map[*Binding]struct{}),
		reportedNullables:  make(map[string]struct{}),
		reportedProvision:  make(map[*Binding]struct{}),
		reportedExecutor:   make(map[string]struct{}),
	}
}

// traverse validates the request and descends into the dependencies of each
// binding it resolves to. Missing, duplicate, and mixed-contribution keys
// stop the descent; a repeated key on the path is a cycle, legal only when
// some later step on the cyclical segment defers construction.
func (t *traversal) traverse(req Request) {
	bk := req.BindingKey()
	id := bk.ID()
	rb := t.graph.ResolvedFor(bk)

	if t.onPath[id] > 0 {
		t.checkCycle(resolvedRequest{request: req, resolved: rb})
		return
	}

	t.path = append(t.path, resolvedRequest{request: req, resolved: rb})
	t.onPath[id]++
	defer func() {
		t.path = t.path[:len(t.path)-1]
		if t.onPath[id]--; t.onPath[id] == 0 {
			delete(t.onPath, id)
		}
	}()

	if t.checkExecutorLeak(req) {
		return
	}
	if bk.Kind == MembersInjectionKey && !t.checkMembersInjectable(req) {
		return
	}

	if rb.IsEmpty() {
		t.reportMissing(req)
		return
	}
	bindings := rb.Bindings()
	if mix := rb.contributionMix(); len(mix) > 1 {
		t.reportContributionMix(req, rb, mix)
		return
	}
	if len(bindings) > 1 && !rb.isMultibinding() {
		t.reportDuplicate(req, rb)
		return
	}

	provisionOnly := t.pathRequiresProvisionOnly()
	for _, binding := range bindings {
		t.checkBinding(req, binding, provisionOnly)
		for _, dep := range binding.Deps {
			t.traverse(dep)
		}
	}
}

// checkCycle inspects the cyclical segment of the path, from the earlier
// occurrence of the repeated key through the current request. The cycle is
// legal when any step after the first defers construction; otherwise the
// full trace is reported once per distinct cycle.
func (t *traversal) checkCycle(current resolvedRequest) {
	id := current.request.BindingKey().ID()
	start := 0
	for i, step := range t.path {
		if step.request.BindingKey().ID() == id {
			start = i
			break
		}
	}
	segment := append(slices.Clone(t.path[start:]), current)

	for i := 1; i < len(segment); i++ {
		if t.stepBreaksCycle(segment[i-1], segment[i]) {
			return
		}
	}

	ids := make([]string, len(segment))
	for i, step := range segment {
		ids[i] = step.request.BindingKey().ID()
	}
	sort.Strings(ids[:len(ids)-1])
	cycleID := strings.Join(ids, " | ")
	if _, ok := t.reportedCycles[cycleID]; ok {
		return
	}
	t.reportedCycles[cycleID] = struct{}{}

	var trace strings.Builder
	for _, step := range segment {
		fmt.Fprintf(&trace, "\n    %s", describeStep(step))
	}
	t.report.AddError(current.request.Source,
		"dependency cycle for %s cannot be broken; every request in the cycle constructs eagerly:%s",
		current.request.Key, trace.String())
}

// stepBreaksCycle reports whether the step's request defers construction.
// An instance request for a map of providers normally defers its values,
// with one exception: directly below the synthetic binding for the
// corresponding plain map it does not, because that map invokes every
// provider eagerly during its own construction. An optional request defers
// when its present binding wraps a deferring request.
func (t *traversal) stepBreaksCycle(prev, step resolvedRequest) bool {
	req := step.request
	if req.Kind == InstanceRequest && isMapOfProvider(req.Key.Type()) {
		for _, b := range prev.resolved.Bindings() {
			if b.Kind == SyntheticMapBinding {
				return false
			}
		}
		return true
	}
	if req.Kind.BreaksCycle(req.Key.Type()) {
		return true
	}
	for _, b := range step.resolved.Bindings() {
		if b.Kind == OptionalPresentBinding && len(b.Deps) == 1 &&
			b.Deps[0].Kind.BreaksCycle(b.Deps[0].Key.Type()) {
			return true
		}
	}
	return false
}

// checkExecutorLeak reports a dependency on the production executor key.
// Only the internally synthesized executor binding may touch that key; it
// has no dependencies of its own, so any request reaching here came from
// user code.
func (t *traversal) checkExecutorLeak(req Request) bool {
	if !isExecutorType(req.Key.Type()) || req.Key.Qualifier() != "" {
		return false
	}
	if b := t.dependantBinding(); b != nil && b.Kind == ProductionExecutorBinding {
		return false
	}
	id := req.Key.ID() + "@" + req.Source
	if _, ok := t.reportedExecutor[id]; !ok {
		t.reportedExecutor[id] = struct{}{}
		t.report.AddError(req.Source,
			"%s may not be depended on directly; it is reserved for the component's own production machinery%s",
			req.Key, t.trace())
	}
	return true
}

// checkMembersInjectable reports a members-injection request whose key is
// not a pointer to a named struct. Injecting members requires a mutable
// instance; anything else is a structural error at the requesting site.
func (t *traversal) checkMembersInjectable(req Request) bool {
	ptr, ok := req.Key.Type().(*types.Pointer)
	if ok {
		if named, isNamed := ptr.Elem().(*types.Named); isNamed {
			if _, isStruct := named.Underlying().(*types.Struct); isStruct {
				return true
			}
		}
	}
	id := req.Key.ID()
	if _, reported := t.reportedMembers[id]; !reported {
		t.reportedMembers[id] = struct{}{}
		t.report.AddError(req.Source,
			"members injection requires a pointer to a named struct, not %s%s",
			req.Key, t.trace())
	}
	return false
}

func (t *traversal) reportMissing(req Request) {
	id := req.BindingKey().ID()
	if _, ok := t.reportedMissing[id]; ok {
		return
	}
	t.reportedMissing[id] = struct{}{}

	msg := fmt.Sprintf("no binding for %s", req.BindingKey())
	if suggestions := t.similarKeys(req.Key); len(suggestions) > 0 {
		msg += fmt.Sprintf("; bindings exist for similar keys: %s", strings.Join(suggestions, ", "))
	}
	t.report.AddError(req.Source, "%s%s", msg, t.trace())
}

// similarKeys mines the graph for bound keys that differ from the missing
// key only in qualifier or in a framework wrapper, the usual near misses.
func (t *traversal) similarKeys(missing Key) []string {
	bare := types.TypeString(missing.Type(), nil)
	var wrapped string
	if _, arg, ok := frameworkType(missing.Type()); ok {
		wrapped = types.TypeString(arg, nil)
	}

	var found []string
	for id, rb := range t.graph.ResolvedBindings {
		if rb.IsEmpty() || rb.BindingKey().Kind != ContributionKey {
			continue
		}
		key := rb.BindingKey().Key
		if id == missing.ID() || key.ContributionID() != "" {
			continue
		}
		candidate := types.TypeString(key.Type(), nil)
		match := candidate == bare && key.Qualifier() != missing.Qualifier()
		if !match && wrapped != "" {
			match = candidate == wrapped
		}
		if !match {
			if _, arg, ok := frameworkType(key.Type()); ok {
				match = types.TypeString(arg, nil) == bare
			}
		}
		if match {
			found = append(found, key.String())
		}
	}
	sort.Strings(found)
	return found
}

func (t *traversal) reportDuplicate(req Request, rb *ResolvedBindings) {
	id := req.BindingKey().ID()
	if _, ok := t.reportedDuplicates[id]; ok {
		return
	}
	t.reportedDuplicates[id] = struct{}{}

	bindings := rb.Bindings()
	var lines strings.Builder
	for _, b := range bindings {
		fmt.Fprintf(&lines, "\n    %s", describeBinding(b, rb.Owner(b)))
	}
	owner := "unknown component"
	if c := rb.Owner(bindings[0]); c != nil {
		owner = c.Name
	}
	t.report.AddError(req.Source,
		"%s is bound multiple times; the conflict is rooted in %s:%s%s",
		req.Key, owner, lines.String(), t.trace())
}

func (t *traversal) reportContributionMix(req Request, rb *ResolvedBindings, mix []ContributionType) {
	id := req.BindingKey().ID()
	if _, ok := t.reportedMixes[id]; ok {
		return
	}
	t.reportedMixes[id] = struct{}{}

	names := make([]string, len(mix))
	for i, kind := range mix {
		names[i] = kind.String()
	}
	var lines strings.Builder
	for _, b := range rb.Bindings() {
		fmt.Fprintf(&lines, "\n    %s", describeBinding(b, rb.Owner(b)))
	}
	t.report.AddError(req.Source,
		"%s has bindings with conflicting contribution types (%s):%s%s",
		req.Key, strings.Join(names, " and "), lines.String(), t.trace())
}

// checkBinding applies the per-binding checks: nullability against this
// request, the provision/production boundary, and map-key consistency for
// synthetic map aggregates. The map-key check runs once per binding; the
// nullability check once per (binding, requesting site) pair.
func (t *traversal) checkBinding(req Request, b *Binding, provisionOnly bool) {
	if b.Nullable && !req.Nullable && !req.Kind.AllowsNull() {
		if severity, enabled := t.validator.opts.Nullability.Severity(); enabled {
			id := req.BindingKey().ID() + "@" + req.Source + "@" + b.Source
			if _, ok := t.reportedNullables[id]; !ok {
				t.reportedNullables[id] = struct{}{}
				t.report.Add(severity, b.Source,
					"%s is nullable but %s requests it as a bare instance%s",
					b, req.Source, t.trace())
			}
		}
	}

	if provisionOnly && b.Type == Production {
		if _, ok := t.reportedProvision[b]; !ok {
			t.reportedProvision[b] = struct{}{}
			t.report.AddError(b.Source,
				"%s is a production binding but is reachable only through synchronous provisions%s",
				b, t.trace())
		}
	}

	if _, ok := t.checkedBindings[b]; ok {
		return
	}
	t.checkedBindings[b] = struct{}{}

	if b.Kind == SyntheticMultiboundMapBinding {
		t.checkMapKeys(b)
	}
}

// checkMapKeys verifies that every contribution to a multibound map uses the
// same map-key type and that no two contributions declare the same value.
func (t *traversal) checkMapKeys(aggregate *Binding) {
	type contribution struct {
		binding *Binding
		key     MapKeyValue
	}
	var contributions []contribution
	for _, dep := range aggregate.Deps {
		for _, b := range t.graph.ResolvedFor(dep.BindingKey()).Bindings() {
			if b.MapKey != nil {
				contributions = append(contributions, contribution{binding: b, key: *b.MapKey})
			}
		}
	}
	if len(contributions) == 0 {
		return
	}

	keyType := contributions[0].key.Type
	for _, c := range contributions[1:] {
		if c.key.Type != keyType {
			t.report.AddError(c.binding.Source,
				"map contributions for %s use inconsistent key types: %s and %s",
				aggregate.Key, keyType, c.key.Type)
		}
	}

	byValue := make(map[string][]contribution)
	for _, c := range contributions {
		byValue[c.key.Value] = append(byValue[c.key.Value], c)
	}
	values := make([]string, 0, len(byValue))
	for value := range byValue {
		values = append(values, value)
	}
	sort.Strings(values)
	for _, value := range values {
		dupes := byValue[value]
		if len(dupes) < 2 {
			continue
		}
		var lines strings.Builder
		for _, c := range dupes {
			fmt.Fprintf(&lines, "\n    %s", c.binding)
		}
		t.report.AddError(dupes[0].binding.Source,
			"map %s has multiple contributions under key %s:%s",
			aggregate.Key, dupes[0].key, lines.String())
	}
}

// pathRequiresProvisionOnly reports whether the request at the top of the
// path may only be satisfied synchronously. An entry point requires
// provision unless it asks for an async form in a production component;
// deeper requests require provision when any provision binding one step up
// depends on them.
func (t *traversal) pathRequiresProvisionOnly() bool {
	current := t.path[len(t.path)-1].request
	if len(t.path) == 1 {
		if !t.graph.Component.Production {
			return true
		}
		return !current.Kind.CanUseProduction()
	}

	parent := t.path[len(t.path)-2]
	for _, b := range parent.resolved.Bindings() {
		if b.Type != Provision {
			continue
		}
		for _, dep := range b.Deps {
			if dep.Kind == current.Kind && dep.BindingKey().ID() == current.BindingKey().ID() {
				return true
			}
		}
	}
	return false
}

// dependantBinding returns a binding of the second-to-top path element, the
// one whose dependency is currently being traversed, or nil at an entry
// point.
func (t *traversal) dependantBinding() *Binding {
	if len(t.path) < 2 {
		return nil
	}
	bindings := t.path[len(t.path)-2].resolved.Bindings()
	if len(bindings) == 0 {
		return nil
	}
	return bindings[0]
}

// trace renders the current dependency path leaf-to-root so every
// diagnostic shows the chain of requests that led to it.
func (t *traversal) trace() string {
	if len(t.path) == 0 {
		return ""
	}
	var b strings.Builder
	for i := len(t.path) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "\n    %s", describeStep(t.path[i]))
	}
	return b.String()
}

func describeStep(step resolvedRequest) string {
	if step.request.Source == "" {
		return fmt.Sprintf("%s is requested", step.request)
	}
	return fmt.Sprintf("%s is requested at %s", step.request, step.request.Source)
}

func describeBinding(b *Binding, owner *ComponentDescriptor) string {
	where := ""
	if owner != nil {
		where = fmt.Sprintf(" (owned by %s)", owner.Name)
	}
	if b.Source != "" {
		return fmt.Sprintf("%s declared at %s%s", b, b.Source, where)
	}
	return fmt.Sprintf("%s%s", b, where)
}

// validateComponentScopes reports one error per component listing every
// binding it owns whose scope the component does not declare. Unscoped and
// reusable bindings may live anywhere.
func (v *Validator) validateComponentScopes(g *BindingGraph, report *Report) {
	seen := make(map[*Binding]struct{})
	var offending []*Binding

	ids := make([]string, 0, len(g.ResolvedBindings))
	for id := range g.ResolvedBindings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		for _, b := range g.ResolvedBindings[id].Owned() {
			if _, ok := seen[b]; ok {
				continue
			}
			seen[b] = struct{}{}
			if b.Scope.IsUnscoped() || b.Scope.IsReusable() || g.Component.HasScope(b.Scope) {
				continue
			}
			offending = append(offending, b)
		}
	}
	if len(offending) == 0 {
		return
	}

	var lines strings.Builder
	for _, b := range offending {
		fmt.Fprintf(&lines, "\n    %s requires scope %s", b, b.Scope)
	}
	report.AddError(g.Component.Source,
		"component %s (scopes: %s) owns bindings with incompatible scopes:%s",
		g.Component.Name, describeScopes(g.Component.Scopes), lines.String())
}

func describeScopes(scopes []Scope) string {
	if len(scopes) == 0 {
		return "unscoped"
	}
	names := make([]string, len(scopes))
	for i, s := range scopes {
		names[i] = s.String()
	}
	return strings.Join(names, ", ")
}

// validateDependencyCycles checks that component-dependency edges are
// acyclic, reporting the full chain for every cycle found.
func (v *Validator) validateDependencyCycles(c *ComponentDescriptor, report *Report) {
	var stack []string
	onStack := make(map[string]int)
	reported := make(map[string]struct{})

	var visit func(name string, deps []*ComponentDependency)
	visit = func(name string, deps []*ComponentDependency) {
		if at, ok := onStack[name]; ok {
			chain := append(slices.Clone(stack[at:]), name)
			cycleID := strings.Join(chain, " -> ")
			if _, done := reported[cycleID]; !done {
				reported[cycleID] = struct{}{}
				report.AddError(c.Source, "component dependency cycle: %s", cycleID)
			}
			return
		}
		onStack[name] = len(stack)
		stack = append(stack, name)
		for _, dep := range deps {
			visit(dependencyName(dep), dep.Dependencies)
		}
		stack = stack[:len(stack)-1]
		delete(onStack, name)
	}

	visit(c.Name, c.Dependencies)
}

func dependencyName(dep *ComponentDependency) string {
	if dep.Name != "" {
		return dep.Name
	}
	if dep.Type != nil {
		return types.TypeString(dep.Type, nil)
	}
	return "(unnamed dependency)"
}

// validateDependencyScopes checks a component's scope against the scopes of
// its component dependencies: the longest-lived scope may not depend on any
// scoped component, other scoped components may depend on at most one, and
// an unscoped component may not depend on scoped components at all.
func (v *Validator) validateDependencyScopes(c *ComponentDescriptor, report *Report) {
	var scoped []*ComponentDependency
	for _, dep := range c.Dependencies {
		if !dep.Scope.IsUnscoped() && !dep.Scope.IsReusable() {
			scoped = append(scoped, dep)
		}
	}
	if len(scoped) == 0 {
		return
	}

	var lines strings.Builder
	for _, dep := range scoped {
		fmt.Fprintf(&lines, "\n    %s (scope %s)", dependencyName(dep), dep.Scope)
	}

	singleton := false
	for _, s := range c.Scopes {
		if s.IsSingleton() {
			singleton = true
		}
	}

	switch {
	case singleton:
		// A single dependency on another singleton-scoped component shares
		// one lifetime rather than nesting a second one; only additional
		// scoped dependencies are suspect.
		if len(scoped) == 1 && scoped[0].Scope.IsSingleton() {
			return
		}
		if severity, enabled := v.opts.ScopeCycle.Severity(); enabled {
			report.Add(severity, c.Source,
				"component %s is %s scoped and may not depend on scoped components:%s",
				c.Name, singletonScopeName, lines.String())
		}
	case len(c.Scopes) == 0:
		report.AddError(c.Source,
			"component %s is unscoped and may not depend on scoped components:%s",
			c.Name, lines.String())
	case len(scoped) > 1:
		report.AddError(c.Source,
			"component %s depends on more than one scoped component:%s",
			c.Name, lines.String())
	}
}

// validateScopeHierarchy walks chains of scoped component dependencies and
// reports any scope that reappears at a different depth; scoped lifetimes
// must nest strictly.
func (v *Validator) validateScopeHierarchy(c *ComponentDescriptor, report *Report) {
	severity, enabled := v.opts.ScopeCycle.Severity()
	if !enabled {
		return
	}

	var names []string
	var scopes []Scope

	var visit func(name string, scope Scope, deps []*ComponentDependency)
	visit = func(name string, scope Scope, deps []*ComponentDependency) {
		if !scope.IsUnscoped() && !scope.IsReusable() {
			for i, seen := range scopes {
				if seen == scope {
					// Adjacent singleton components share one lifetime.
					if scope.IsSingleton() && i == len(scopes)-1 {
						break
					}
					chain := append(slices.Clone(names[i:]), name)
					report.Add(severity, c.Source,
						"scope %s reappears in the component dependency chain: %s",
						scope, strings.Join(chain, " -> "))
					return
				}
			}
		}
		names = append(names, name)
		scopes = append(scopes, scope)
		for _, dep := range deps {
			visit(dependencyName(dep), dep.Scope, dep.Dependencies)
		}
		names = names[:len(names)-1]
		scopes = scopes[:len(scopes)-1]
	}

	componentScope := Unscoped
	if len(c.Scopes) > 0 {
		componentScope = c.Scopes[0]
	}
	visit(c.Name, componentScope, c.Dependencies)
}

// validateBuilder checks the builder contract: every module that needs an
// instance and every component dependency must have a setter, setters must
// reference something the component installs, and no target may have two
// setters.
func (v *Validator) validateBuilder(c *ComponentDescriptor, report *Report) {
	if c.Builder == nil {
		return
	}

	required := make(map[string]struct{})
	known := make(map[string]struct{})
	for _, module := range c.Modules {
		known[module.Name] = struct{}{}
		if module.RequiresInstance {
			required[module.Name] = struct{}{}
		}
	}
	for _, dep := range c.Dependencies {
		name := dependencyName(dep)
		known[name] = struct{}{}
		required[name] = struct{}{}
	}

	set := make(map[string]struct{})
	for _, setter := range c.Builder.Setters {
		if _, dup := set[setter.Target]; dup {
			report.AddError(setter.Source,
				"builder for %s declares setter %s twice for %s",
				c.Name, setter.Name, setter.Target)
			continue
		}
		set[setter.Target] = struct{}{}
		if _, ok := known[setter.Target]; !ok {
			report.AddError(setter.Source,
				"builder setter %s references %s, which component %s does not use",
				setter.Name, setter.Target, c.Name)
		}
	}

	missing := make([]string, 0, len(required))
	for target := range required {
		if _, ok := set[target]; !ok {
			missing = append(missing, target)
		}
	}
	sort.Strings(missing)
	for _, target := range missing {
		report.AddError(c.Builder.Source,
			"builder for %s is missing a setter for %s", c.Name, target)
	}
}
