package txvalidator

// Document is one input file of a validation dataset. Documents are
// immutable for the duration of a run; the engine and every rule treat
// Text as read-only.
type Document struct {
	// FileName identifies the document in diagnostics. It need not exist
	// on disk; archive members and uploads use their member name.
	FileName string

	// Text is the full document content.
	Text string

	// Format is the detected dialect. Use DetectFormat when loading.
	Format Format
}
