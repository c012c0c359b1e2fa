package txvalidator

// Phase identifies a stage of a validation run.
type Phase string

// Run phases, emitted in order. File-scoped phases carry a FileName.
const (
	// PhaseDetecting is emitted while classifying document formats.
	PhaseDetecting Phase = "detecting"
	// PhaseResolving is emitted while resolving schema bundles.
	PhaseResolving Phase = "resolving"
	// PhaseValidating is emitted while a file undergoes schema validation.
	PhaseValidating Phase = "validating"
	// PhaseRunning is emitted while business rules execute.
	PhaseRunning Phase = "running"
	// PhaseDone is emitted once, after result assembly.
	PhaseDone Phase = "done"
)

// ProgressEvent is one entry of the ordered phase event stream.
type ProgressEvent struct {
	RunID    string
	Phase    Phase
	FileName string
}

// ProgressSink receives push notifications about run progress. Implementations
// must be safe for concurrent use; events for different files may arrive from
// different goroutines.
type ProgressSink interface {
	Progress(event ProgressEvent)
}

// ProgressFunc adapts a function to the ProgressSink interface.
type ProgressFunc func(event ProgressEvent)

// Progress calls the wrapped function.
func (f ProgressFunc) Progress(event ProgressEvent) {
	f(event)
}

// EmitProgress sends an event to sink, treating a nil sink as a no-op.
func EmitProgress(sink ProgressSink, event ProgressEvent) {
	if sink != nil {
		sink.Progress(event)
	}
}
