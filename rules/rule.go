// Package rules defines the business-rule contract and the built-in rule
// library. A Rule is a plain value carrying its kind and a uniform run
// function; there is no class hierarchy and no global registry. Rules are
// stateless and may be invoked concurrently.
package rules

import (
	"context"
	"fmt"

	txv "github.com/transitkit/validator"
)

// Kind distinguishes how often a rule runs during a dataset validation.
type Kind string

const (
	// SingleDocument rules run once per document, receiving a one-element
	// dataset so the run contract stays uniform.
	SingleDocument Kind = "single-document"
	// CrossDocument rules run exactly once per dataset.
	CrossDocument Kind = "cross-document"
)

// RunFunc executes a rule against a dataset. Diagnostics must carry the
// file name they belong to; the engine distributes them by that field.
type RunFunc func(ctx context.Context, docs []txv.Document) []txv.Diagnostic

// Rule is one pluggable check.
type Rule struct {
	Name        string
	DisplayName string
	Description string

	// Formats the rule applies to.
	Formats []txv.Format

	Kind Kind
	Run  RunFunc

	// OptIn rules are skipped unless a profile names them explicitly.
	OptIn bool
}

// AppliesTo reports whether the rule runs for datasets of format f.
func (r Rule) AppliesTo(f txv.Format) bool {
	for _, want := range r.Formats {
		if want == f {
			return true
		}
	}
	return false
}

// Registry is an insertion-ordered collection of rules keyed by name.
// Construct one per engine; registries are not shared process state.
type Registry struct {
	order []string
	rules map[string]Rule
}

// NewRegistry creates a registry holding the given rules. Panics on a
// duplicate name, which is a programming error in rule wiring.
func NewRegistry(rules ...Rule) *Registry {
	r := &Registry{rules: make(map[string]Rule, len(rules))}
	for _, rule := range rules {
		if err := r.Register(rule); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a rule. Names must be unique.
func (r *Registry) Register(rule Rule) error {
	if rule.Name == "" {
		return fmt.Errorf("rule has no name")
	}
	if rule.Run == nil {
		return fmt.Errorf("rule %s has no run function", rule.Name)
	}
	if _, exists := r.rules[rule.Name]; exists {
		return fmt.Errorf("rule %s registered twice", rule.Name)
	}
	r.rules[rule.Name] = rule
	r.order = append(r.order, rule.Name)
	return nil
}

// Get returns a rule by name.
func (r *Registry) Get(name string) (Rule, bool) {
	rule, ok := r.rules[name]
	return rule, ok
}

// ForFormat returns the rules applicable to a format, in registration
// order.
func (r *Registry) ForFormat(f txv.Format) []Rule {
	var out []Rule
	for _, name := range r.order {
		if rule := r.rules[name]; rule.AppliesTo(f) {
			out = append(out, rule)
		}
	}
	return out
}

// Names returns every rule name in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// DefaultRegistry returns the built-in rule library.
func DefaultRegistry() *Registry {
	return NewRegistry(
		EveryLineIsReferenced(),
		EveryStopPlaceHasAName(),
		EveryScheduledStopPointHasAName(),
		FrameDefaultsHaveALocale(),
		PrerequisitesExist(),
		MissingPrerequisites(),
		DuplicateFrameIDs(),
	)
}
