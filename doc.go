// Package txvalidator provides validation of public-transport
// data-interchange documents (NeTEx and SIRI) against formal XML schemas
// and a library of semantic business rules.
//
// # Quick Start
//
//	import (
//	    txv "github.com/transitkit/validator"
//	    "github.com/transitkit/validator/engine"
//	    "github.com/transitkit/validator/rules"
//	)
//
//	eng, err := engine.New(rules.DefaultRegistry())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := eng.Validate(ctx, []txv.Document{
//	    {FileName: "shared.xml", Text: sharedXML, Format: txv.FormatNeTEx},
//	    {FileName: "line.xml", Text: lineXML, Format: txv.FormatNeTEx},
//	})
//	for _, file := range result.Files {
//	    for _, d := range file.Errors {
//	        fmt.Println(d)
//	    }
//	}
//
// # Architecture
//
//   - xmlindex: positional XML scanning with absolute line/column provenance
//   - netex: the catalogue of legal element paths for both document layouts
//   - graph: frame-level prerequisite dependency analysis across a dataset
//   - schema: versioned schema bundle download, caching and resolution
//   - schemavalidator: formal XSD validation via github.com/jacoelho/xsd
//   - rules: the pluggable business-rule contract and built-in rules
//   - engine: orchestration, concurrency and deterministic result assembly
//
// # Design
//
// Rules are plain values, not interfaces with inheritance: a Rule carries its
// kind (single-document or cross-document) and a uniform run function. The
// registry and schema cache are constructed and injected explicitly, so tests
// and concurrent runs never share mutable globals. Context cancellation is
// honoured at every suspension point (schema download, schema validation,
// rule fan-out).
package txvalidator
