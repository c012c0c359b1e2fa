// Package schemavalidator validates document text against a resolved
// schema bundle. The formal XSD engine is github.com/jacoelho/xsd; this
// package owns its lifecycle, keeping compiled schemas in an LRU so one
// compilation serves every document of a run (and of subsequent runs until
// Close).
package schemavalidator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jacoelho/xsd"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	txv "github.com/transitkit/validator"
	"github.com/transitkit/validator/cache"
	"github.com/transitkit/validator/schema"
)

// DefaultCompiledSchemas bounds how many compiled schema versions are kept.
const DefaultCompiledSchemas = 4

// Validator validates documents against cached schema bundles.
type Validator struct {
	resolver *schema.Resolver
	compiled *cache.LRU[string, *xsd.Schema]
	logger   *zap.Logger

	// compile collapses concurrent compilations of the same version.
	compile singleflight.Group
}

// Option configures the Validator.
type Option func(*Validator)

// WithLogger sets a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// New creates a Validator on top of a schema resolver.
func New(resolver *schema.Resolver, opts ...Option) *Validator {
	v := &Validator{
		resolver: resolver,
		compiled: cache.NewLRU[string, *xsd.Schema](DefaultCompiledSchemas, nil),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// WarmUp resolves and compiles a schema version ahead of validation so the
// first document does not pay the compilation cost.
func (v *Validator) WarmUp(ctx context.Context, schemaID, version string) error {
	entry, err := v.resolver.Ensure(ctx, schemaID, version)
	if err != nil {
		return err
	}
	_, err = v.schemaFor(entry)
	return err
}

// Close releases every compiled schema. The Validator may be reused; the
// next validation recompiles on demand.
func (v *Validator) Close() {
	v.compiled.Purge()
}

// ValidateDocument validates one document's text against a resolved entry
// and returns schema-sourced diagnostics. Infrastructure faults (entry
// point missing, compilation failure) surface as a single diagnostic
// rather than an error so one bad schema never aborts a run.
func (v *Validator) ValidateDocument(ctx context.Context, doc txv.Document, entry *schema.Entry) []txv.Diagnostic {
	if err := ctx.Err(); err != nil {
		return nil
	}

	compiled, err := v.schemaFor(entry)
	if err != nil {
		return []txv.Diagnostic{schemaFault(doc, entry, err)}
	}

	err = compiled.Validate(strings.NewReader(doc.Text))
	if err == nil {
		return nil
	}

	violations, ok := xsd.AsValidations(err)
	if !ok {
		return []txv.Diagnostic{schemaFault(doc, entry, err)}
	}
	out := make([]txv.Diagnostic, 0, len(violations))
	for _, viol := range violations {
		out = append(out, txv.Diagnostic{
			Source:   txv.SourceSchema,
			Severity: txv.SeverityError,
			Category: txv.CategoryConsistency,
			Message:  normalizeMessage(viol),
			FileName: doc.FileName,
			Line:     viol.Line,
			Column:   viol.Column,
		})
	}
	return out
}

// schemaFor returns the compiled schema for an entry, compiling at most
// once per version even under concurrent callers.
func (v *Validator) schemaFor(entry *schema.Entry) (*xsd.Schema, error) {
	key := entry.SchemaID + "@" + entry.Version
	if compiled, ok := v.compiled.Get(key); ok {
		return compiled, nil
	}

	result, err, _ := v.compile.Do(key, func() (any, error) {
		if compiled, ok := v.compiled.Get(key); ok {
			return compiled, nil
		}
		entryPath, err := v.resolver.EntryXSD(entry)
		if err != nil {
			return nil, err
		}
		v.logger.Debug("compiling schema", zap.String("schema", key), zap.String("entry", entryPath))
		compiled, err := xsd.CompileFile(entryPath, xsd.CompileConfig{})
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", key, err)
		}
		v.compiled.Put(key, compiled)
		return compiled, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*xsd.Schema), nil
}

// schemaFault converts an infrastructure failure into one diagnostic for
// the affected document.
func schemaFault(doc txv.Document, entry *schema.Entry, err error) txv.Diagnostic {
	category := txv.CategoryGeneral
	if isNotFound(err) {
		category = txv.CategoryNotFound
	}
	return txv.Diagnostic{
		Source:   txv.SourceSchema,
		Severity: txv.SeverityError,
		Category: category,
		Message:  fmt.Sprintf("schema %s@%s unavailable: %v", entry.SchemaID, entry.Version, err),
		FileName: doc.FileName,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, schema.ErrEntryNotFound)
}

// normalizeMessage renders a violation as "code: message at path", leaving
// position data to the diagnostic's own fields.
func normalizeMessage(v xsd.Validation) string {
	msg := v.Message
	if v.Code != "" {
		msg = string(v.Code) + ": " + msg
	}
	if v.Path != "" {
		msg += " at " + v.Path
	}
	return msg
}
