package kumitate

import (
	"strings"
	"testing"
)

func TestReport_CountNested(t *testing.T) {
	t.Parallel()

	root := NewReport("App")
	root.AddError("a.go:1", "broken")
	root.AddWarning("a.go:2", "suspicious")

	child := NewReport("Request")
	child.AddError("b.go:3", "also broken")
	child.AddNote("b.go:4", "fyi")
	root.Children = append(root.Children, child)

	if got := root.Count(SeverityError); got != 2 {
		t.Errorf("Count(error) = %d, want 2", got)
	}
	if got := root.Count(SeverityWarning); got != 1 {
		t.Errorf("Count(warning) = %d, want 1", got)
	}
	if got := root.Count(SeverityNote); got != 1 {
		t.Errorf("Count(note) = %d, want 1", got)
	}
	if !root.HasErrors() {
		t.Error("HasErrors() = false, want true")
	}
}

func TestReport_HasErrorsFromChildOnly(t *testing.T) {
	t.Parallel()

	root := NewReport("App")
	root.AddWarning("a.go:1", "only a warning here")
	child := NewReport("Request")
	child.AddError("b.go:2", "broken below")
	root.Children = append(root.Children, child)

	if !root.HasErrors() {
		t.Error("an error anywhere in the tree must surface at the root")
	}
}

func TestReport_Write(t *testing.T) {
	t.Parallel()

	root := NewReport("App")
	root.AddError("main.go:10", "no binding for Foo")
	child := NewReport("Request")
	child.AddWarning("", "scope session reappears")
	root.Children = append(root.Children, child)

	var b strings.Builder
	if err := root.Write(&b); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	want := "component App\n" +
		"  main.go:10: error: no binding for Foo\n" +
		"  component Request\n" +
		"    warning: scope session reappears\n"
	if got := b.String(); got != want {
		t.Errorf("Write() =\n%q\nwant\n%q", got, want)
	}
}

func TestReport_WriteIndentsMultilineDiagnostics(t *testing.T) {
	t.Parallel()

	root := NewReport("App")
	root.AddError("main.go:10", "dependency cycle:\n    A is requested\n    B is requested")

	var b strings.Builder
	if err := root.Write(&b); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4: %q", len(lines), b.String())
	}
	for _, line := range lines[2:] {
		if !strings.HasPrefix(line, "    ") {
			t.Errorf("continuation line %q not indented past the diagnostic", line)
		}
	}
}

func TestParseSeveritySetting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    SeveritySetting
		wantErr bool
	}{
		{in: "", want: SettingError},
		{in: "error", want: SettingError},
		{in: "Warning", want: SettingWarning},
		{in: "warn", want: SettingWarning},
		{in: "none", want: SettingNone},
		{in: "off", want: SettingNone},
		{in: "fatal", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseSeveritySetting(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSeveritySetting(%q) succeeded, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSeveritySetting(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseSeveritySetting(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSeveritySetting_Severity(t *testing.T) {
	t.Parallel()

	if severity, enabled := SettingWarning.Severity(); !enabled || severity != SeverityWarning {
		t.Errorf("SettingWarning.Severity() = %v, %v", severity, enabled)
	}
	if _, enabled := SettingNone.Severity(); enabled {
		t.Error("SettingNone must disable the check")
	}
}
