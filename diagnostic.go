package txvalidator

import "fmt"

// Severity represents the severity of a diagnostic.
type Severity string

const (
	// SeverityError indicates a violation that makes the dataset invalid.
	SeverityError Severity = "error"
	// SeverityWarning indicates a potential problem that should be reviewed.
	SeverityWarning Severity = "warning"
	// SeverityInfo indicates informational feedback.
	SeverityInfo Severity = "info"
)

// Category classifies what a diagnostic is about.
type Category string

const (
	// CategoryConsistency indicates a semantic rule violation.
	CategoryConsistency Category = "consistency"
	// CategoryQuality indicates a non-blocking best-practice advisory.
	CategoryQuality Category = "quality"
	// CategoryGeneral indicates an unexpected rule failure or infrastructure fault.
	CategoryGeneral Category = "general"
	// CategoryNotFound indicates a referenced resource (schema, file) is absent.
	CategoryNotFound Category = "not-found"
	// CategorySkipped indicates a check that was intentionally not run.
	CategorySkipped Category = "skipped"
)

// Source identifies which subsystem produced a diagnostic.
type Source string

const (
	// SourceSchema marks diagnostics from formal XSD validation.
	SourceSchema Source = "schema"
	// SourceRule marks diagnostics from a business rule.
	SourceRule Source = "rule"
)

// Diagnostic is a single finding located in a dataset file.
// Line and Column are 1-based; zero means the position is unknown.
type Diagnostic struct {
	Source   Source   `json:"source"`
	RuleName string   `json:"rule,omitempty"`
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	Message  string   `json:"message"`
	FileName string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
}

// String returns a human-readable representation of the diagnostic.
func (d Diagnostic) String() string {
	loc := ""
	if d.Line > 0 {
		loc = fmt.Sprintf(":%d", d.Line)
		if d.Column > 0 {
			loc += fmt.Sprintf(":%d", d.Column)
		}
	}
	name := string(d.Source)
	if d.RuleName != "" {
		name = d.RuleName
	}
	return fmt.Sprintf("%s%s [%s/%s] %s: %s", d.FileName, loc, d.Severity, d.Category, name, d.Message)
}

// IsError reports whether the diagnostic is error-severity.
func (d Diagnostic) IsError() bool {
	return d.Severity == SeverityError
}

// DiagnosticBuilder provides a fluent API for building diagnostics.
type DiagnosticBuilder struct {
	d Diagnostic
}

// NewDiagnostic creates a builder for a rule diagnostic.
func NewDiagnostic(severity Severity, category Category) *DiagnosticBuilder {
	return &DiagnosticBuilder{d: Diagnostic{
		Source:   SourceRule,
		Severity: severity,
		Category: category,
	}}
}

// ConsistencyError creates a builder for a semantic violation.
func ConsistencyError() *DiagnosticBuilder {
	return NewDiagnostic(SeverityError, CategoryConsistency)
}

// QualityWarning creates a builder for a best-practice advisory.
func QualityWarning() *DiagnosticBuilder {
	return NewDiagnostic(SeverityWarning, CategoryQuality)
}

// From overrides the producing subsystem.
func (b *DiagnosticBuilder) From(source Source) *DiagnosticBuilder {
	b.d.Source = source
	return b
}

// Rule sets the producing rule name.
func (b *DiagnosticBuilder) Rule(name string) *DiagnosticBuilder {
	b.d.RuleName = name
	return b
}

// Message sets the diagnostic message.
func (b *DiagnosticBuilder) Message(format string, args ...any) *DiagnosticBuilder {
	b.d.Message = fmt.Sprintf(format, args...)
	return b
}

// In sets the file the diagnostic is located in.
func (b *DiagnosticBuilder) In(fileName string) *DiagnosticBuilder {
	b.d.FileName = fileName
	return b
}

// At sets the source position.
func (b *DiagnosticBuilder) At(line, column int) *DiagnosticBuilder {
	b.d.Line = line
	b.d.Column = column
	return b
}

// Build returns the constructed diagnostic.
func (b *DiagnosticBuilder) Build() Diagnostic {
	return b.d
}
