package kumitate

import (
	"fmt"
	"io"
	"strings"
)

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	default:
		panic(fmt.Sprintf("unknown severity %d", int(s)))
	}
}

// SeveritySetting configures how a class of checks is reported. Some checks
// are downgradeable or suppressible for legacy-migration compatibility.
type SeveritySetting int

const (
	// SettingError reports the check as an error (the default).
	SettingError SeveritySetting = iota
	// SettingWarning downgrades the check to a warning.
	SettingWarning
	// SettingNone suppresses the check entirely.
	SettingNone
)

// ParseSeveritySetting parses "error", "warning", or "none".
func ParseSeveritySetting(s string) (SeveritySetting, error) {
	switch strings.ToLower(s) {
	case "error", "":
		return SettingError, nil
	case "warning", "warn":
		return SettingWarning, nil
	case "none", "off":
		return SettingNone, nil
	default:
		return SettingError, fmt.Errorf("unknown severity setting %q", s)
	}
}

// Severity returns the configured severity and whether the check is enabled.
func (s SeveritySetting) Severity() (Severity, bool) {
	switch s {
	case SettingError:
		return SeverityError, true
	case SettingWarning:
		return SeverityWarning, true
	case SettingNone:
		return SeverityError, false
	default:
		panic(fmt.Sprintf("unknown severity setting %d", int(s)))
	}
}

// Options configures the validator. Graph-shape checks are always errors;
// only the nullability and scope-cycle families are adjustable.
type Options struct {
	// Nullability controls nullable-to-non-nullable diagnostics.
	Nullability SeveritySetting
	// ScopeCycle controls the dependency scope-hierarchy diagnostics.
	ScopeCycle SeveritySetting
}

// Diagnostic is one reported problem, attributed to the most specific
// source reference available.
type Diagnostic struct {
	Severity Severity
	Message  string
	Source   string
}

func (d Diagnostic) String() string {
	if d.Source == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Source, d.Severity, d.Message)
}

// Report is the validation result for one component, mirroring the
// component hierarchy: diagnostics for this component plus nested reports
// for its subcomponents. Validation never stops on the first problem; every
// diagnostic for a compilation unit accumulates here.
type Report struct {
	Component string
	Items     []Diagnostic
	Children  []*Report
}

// NewReport returns an empty report for the named component.
func NewReport(component string) *Report {
	return &Report{Component: component}
}

// Add appends a diagnostic.
func (r *Report) Add(severity Severity, source, format string, args ...any) {
	r.Items = append(r.Items, Diagnostic{
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
		Source:   source,
	})
}

// AddError appends an error diagnostic.
func (r *Report) AddError(source, format string, args ...any) {
	r.Add(SeverityError, source, format, args...)
}

// AddWarning appends a warning diagnostic.
func (r *Report) AddWarning(source, format string, args ...any) {
	r.Add(SeverityWarning, source, format, args...)
}

// AddNote appends a note diagnostic.
func (r *Report) AddNote(source, format string, args ...any) {
	r.Add(SeverityNote, source, format, args...)
}

// HasErrors reports whether this report or any nested report contains an
// error. Code generation must not run when it does.
func (r *Report) HasErrors() bool {
	return r.Count(SeverityError) > 0
}

// Count returns the number of diagnostics with the given severity in this
// report and all nested reports.
func (r *Report) Count(severity Severity) int {
	n := 0
	for _, item := range r.Items {
		if item.Severity == severity {
			n++
		}
	}
	for _, child := range r.Children {
		n += child.Count(severity)
	}
	return n
}

// Write renders the report tree with one indented block per component.
func (r *Report) Write(w io.Writer) error {
	return r.write(w, 0)
}

func (r *Report) write(w io.Writer, depth int) error {
	indent := strings.Repeat("  ", depth)
	if _, err := fmt.Fprintf(w, "%scomponent %s\n", indent, r.Component); err != nil {
		return err
	}
	for _, item := range r.Items {
		for i, line := range strings.Split(item.String(), "\n") {
			prefix := indent + "  "
			if i > 0 {
				prefix += "  "
			}
			if _, err := fmt.Fprintf(w, "%s%s\n", prefix, line); err != nil {
				return err
			}
		}
	}
	for _, child := range r.Children {
		if err := child.write(w, depth+1); err != nil {
			return err
		}
	}
	return nil
}
