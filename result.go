package txvalidator

import "sort"

// FileResult holds every diagnostic reported for a single input file.
type FileResult struct {
	FileName string       `json:"file"`
	Format   Format       `json:"format"`
	Errors   []Diagnostic `json:"errors"`
}

// Valid reports whether the file has no error-severity diagnostics.
func (r FileResult) Valid() bool {
	for _, d := range r.Errors {
		if d.IsError() {
			return false
		}
	}
	return true
}

// ValidationResult is the outcome of validating a dataset. Files appear in
// input document order.
type ValidationResult struct {
	// RunID correlates this result with progress events and logs.
	RunID string `json:"runId,omitempty"`

	Files []FileResult `json:"files"`
}

// Valid reports whether no file has an error-severity diagnostic.
func (r ValidationResult) Valid() bool {
	for _, f := range r.Files {
		if !f.Valid() {
			return false
		}
	}
	return true
}

// ErrorCount returns the total number of error-severity diagnostics.
func (r ValidationResult) ErrorCount() int {
	n := 0
	for _, f := range r.Files {
		for _, d := range f.Errors {
			if d.IsError() {
				n++
			}
		}
	}
	return n
}

// SortDiagnostics orders diagnostics by ascending line, diagnostics without
// a line sorting last. The sort is stable, so within one line (and among
// position-less diagnostics) the original emission order is preserved.
func SortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		li, lj := diags[i].Line, diags[j].Line
		if li == 0 {
			return false
		}
		if lj == 0 {
			return true
		}
		return li < lj
	})
}
