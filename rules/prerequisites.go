package rules

import (
	"context"

	txv "github.com/transitkit/validator"
	"github.com/transitkit/validator/graph"
)

// PrerequisitesExist checks that every declared frame prerequisite
// resolves to a frame defined somewhere in the dataset.
func PrerequisitesExist() Rule {
	return Rule{
		Name:        "prerequisitesExist",
		DisplayName: "Declared prerequisites exist",
		Description: "Each frame prerequisite reference must resolve to a frame defined in the dataset.",
		Formats:     []txv.Format{txv.FormatNeTEx},
		Kind:        CrossDocument,
		Run: func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			if err := ctx.Err(); err != nil {
				return nil
			}
			return ruleDiagnostics("prerequisitesExist", graph.Build(docs).CheckPrerequisites())
		},
	}
}

// MissingPrerequisites advises, once per file pair, when a file references
// another file's elements without declaring a frame prerequisite on it.
func MissingPrerequisites() Rule {
	return Rule{
		Name:        "missingPrerequisites",
		DisplayName: "Cross-file references declare prerequisites",
		Description: "A file referencing elements defined in another file should declare a frame prerequisite on that file's frames.",
		Formats:     []txv.Format{txv.FormatNeTEx},
		Kind:        CrossDocument,
		Run: func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			if err := ctx.Err(); err != nil {
				return nil
			}
			return ruleDiagnostics("missingPrerequisites", graph.Build(docs).MissingPrerequisites())
		},
	}
}

// DuplicateFrameIDs surfaces frame id collisions. Opt-in: frame ids are
// expected unique but the graph deliberately keeps last-write-wins
// semantics, so this check only runs when a profile asks for it.
func DuplicateFrameIDs() Rule {
	return Rule{
		Name:        "duplicateFrameIds",
		DisplayName: "Frame ids are unique",
		Description: "Frame ids should be unique across the dataset; collisions silently shadow earlier frames in id lookups.",
		Formats:     []txv.Format{txv.FormatNeTEx},
		Kind:        CrossDocument,
		OptIn:       true,
		Run: func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			if err := ctx.Err(); err != nil {
				return nil
			}
			return ruleDiagnostics("duplicateFrameIds", graph.Build(docs).DuplicateFrameIDs())
		},
	}
}

// ruleDiagnostics stamps the producing rule name onto graph diagnostics.
func ruleDiagnostics(ruleName string, diags []txv.Diagnostic) []txv.Diagnostic {
	for i := range diags {
		diags[i].RuleName = ruleName
	}
	return diags
}
