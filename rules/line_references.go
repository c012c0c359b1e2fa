package rules

import (
	"context"

	txv "github.com/transitkit/validator"
	"github.com/transitkit/validator/netex"
	"github.com/transitkit/validator/xmlindex"
)

// EveryLineIsReferenced checks the dataset-wide reference closure of Line
// elements: every defined line must be referenced by some LineRef, and
// every LineRef must resolve to a defined line.
func EveryLineIsReferenced() Rule {
	return Rule{
		Name:        "everyLineIsReferenced",
		DisplayName: "Every line is referenced",
		Description: "Each Line must be referenced by at least one LineRef in the dataset, and each LineRef must resolve to a defined Line.",
		Formats:     []txv.Format{txv.FormatNeTEx},
		Kind:        CrossDocument,
		Run:         runEveryLineIsReferenced,
	}
}

type lineDef struct {
	fileName string
	line     int
}

func runEveryLineIsReferenced(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
	defined := make(map[string]lineDef)
	var definedOrder []string
	referenced := make(map[string]bool)

	type lineRef struct {
		ref      string
		fileName string
		line     int
	}
	var refs []lineRef

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil
		}
		for _, el := range netex.FindElements(doc.Text, netex.Lines) {
			id, ok := xmlindex.Attr(el.Attrs, "id")
			if !ok || id == "" {
				continue
			}
			if _, seen := defined[id]; !seen {
				definedOrder = append(definedOrder, id)
			}
			defined[id] = lineDef{fileName: doc.FileName, line: el.Line}
		}
		for _, el := range xmlindex.FindAll(doc.Text, "LineRef") {
			if ref, ok := xmlindex.Attr(el.Attrs, "ref"); ok && ref != "" {
				referenced[ref] = true
				refs = append(refs, lineRef{ref: ref, fileName: doc.FileName, line: el.Line})
			}
		}
	}

	var out []txv.Diagnostic
	for _, r := range refs {
		if _, ok := defined[r.ref]; ok {
			continue
		}
		out = append(out, txv.ConsistencyError().
			Rule("everyLineIsReferenced").
			Message("LineRef %s does not resolve to any Line in the dataset", r.ref).
			In(r.fileName).
			At(r.line, 0).
			Build())
	}
	for _, id := range definedOrder {
		if referenced[id] {
			continue
		}
		def := defined[id]
		out = append(out, txv.ConsistencyError().
			Rule("everyLineIsReferenced").
			Message("Line %s is never referenced in the dataset", id).
			In(def.fileName).
			At(def.line, 0).
			Build())
	}
	return out
}
