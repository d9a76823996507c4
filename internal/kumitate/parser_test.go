package kumitate

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"testing"
)

func parseExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	expr, err := parser.ParseExpr(src)
	if err != nil {
		t.Fatalf("ParseExpr(%q) error = %v", src, err)
	}
	return expr
}

func TestSelectorOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want string
	}{
		{src: "kumitate.Provide(NewFoo)", want: "Provide"},
		{src: "kumitate.Value[Config](cfg)", want: "Value"},
		{src: "kumitate.Bind[Iface, Impl](b)", want: "Bind"},
		{src: "NewFoo(x)", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()

			call, ok := parseExpr(t, tt.src).(*ast.CallExpr)
			if !ok {
				t.Fatalf("%q is not a call", tt.src)
			}
			sel := selectorOf(call.Fun)
			if tt.want == "" {
				if sel != nil {
					t.Errorf("selectorOf(%q) = %v, want nil", tt.src, sel)
				}
				return
			}
			if sel == nil || sel.Sel.Name != tt.want {
				t.Errorf("selectorOf(%q) = %v, want selector %s", tt.src, sel, tt.want)
			}
		})
	}
}

func TestExprName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want string
	}{
		{src: "NewFoo", want: "NewFoo"},
		{src: "db.NewConn", want: "db.NewConn"},
		{src: "NewRepo[User]", want: "NewRepo"},
		{src: "factory()", want: "factory"},
		{src: "func() {}", want: "provider"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()

			if got := exprName(parseExpr(t, tt.src)); got != tt.want {
				t.Errorf("exprName(%q) = %q, want %q", tt.src, got, tt.want)
			}
		})
	}
}

func TestTypeBaseName(t *testing.T) {
	t.Parallel()

	if got := typeBaseName(declareNamed("Database")); got != "Database" {
		t.Errorf("typeBaseName(named) = %q, want Database", got)
	}
	if got := typeBaseName(types.Typ[types.String]); got != "string" {
		t.Errorf("typeBaseName(string) = %q, want string", got)
	}
}

func TestIsContextType(t *testing.T) {
	t.Parallel()

	ctxPkg := types.NewPackage(contextPkgPath, "context")
	ctx := types.NewNamed(
		types.NewTypeName(token.NoPos, ctxPkg, contextTypeName, nil),
		types.NewInterfaceType(nil, nil), nil)

	if !isContextType(ctx) {
		t.Error("context.Context not recognized")
	}
	if isContextType(declareNamed("Context")) {
		t.Error("a Context type outside the context package must not match")
	}
}

func TestIsInvalidType(t *testing.T) {
	t.Parallel()

	if !isInvalidType(types.Typ[types.Invalid]) {
		t.Error("types.Invalid not recognized")
	}
	if isInvalidType(types.Typ[types.Int]) {
		t.Error("int flagged as invalid")
	}
}
