package rules

import (
	"context"

	txv "github.com/transitkit/validator"
	"github.com/transitkit/validator/netex"
	"github.com/transitkit/validator/xmlindex"
)

// EveryStopPlaceHasAName checks that each StopPlace carries a non-empty
// Name child.
func EveryStopPlaceHasAName() Rule {
	return Rule{
		Name:        "everyStopPlaceHasAName",
		DisplayName: "Every stop place has a name",
		Description: "Each StopPlace must have a non-empty Name.",
		Formats:     []txv.Format{txv.FormatNeTEx},
		Kind:        SingleDocument,
		Run:         namedElementRule("everyStopPlaceHasAName", netex.StopPlaces, "StopPlace"),
	}
}

// EveryScheduledStopPointHasAName checks that each ScheduledStopPoint
// carries a non-empty Name child.
func EveryScheduledStopPointHasAName() Rule {
	return Rule{
		Name:        "everyScheduledStopPointHasAName",
		DisplayName: "Every scheduled stop point has a name",
		Description: "Each ScheduledStopPoint must have a non-empty Name.",
		Formats:     []txv.Format{txv.FormatNeTEx},
		Kind:        SingleDocument,
		Run:         namedElementRule("everyScheduledStopPointHasAName", netex.ScheduledStopPoints, "ScheduledStopPoint"),
	}
}

// namedElementRule builds the run function shared by the has-a-name
// checks: resolve the concept through the path catalogue, then require a
// Name child on every match.
func namedElementRule(ruleName string, path netex.Path, elementName string) RunFunc {
	return func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
		var out []txv.Diagnostic
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return nil
			}
			for _, el := range netex.FindElements(doc.Text, path) {
				if name, ok := xmlindex.ChildText(el.Inner, "Name"); ok && name != "" {
					continue
				}
				id, _ := xmlindex.Attr(el.Attrs, "id")
				out = append(out, txv.ConsistencyError().
					Rule(ruleName).
					Message("%s %s has no name", elementName, id).
					In(doc.FileName).
					At(el.Line, el.Column).
					Build())
			}
		}
		return out
	}
}

// FrameDefaultsHaveALocale checks that frame defaults declare a time zone.
func FrameDefaultsHaveALocale() Rule {
	return Rule{
		Name:        "frameDefaultsHaveALocale",
		DisplayName: "Frame defaults declare a locale",
		Description: "FrameDefaults must declare a DefaultLocale with a TimeZone.",
		Formats:     []txv.Format{txv.FormatNeTEx},
		Kind:        SingleDocument,
		Run:         runFrameDefaultsHaveALocale,
	}
}

func runFrameDefaultsHaveALocale(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
	var out []txv.Diagnostic
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil
		}
		for _, el := range netex.FindElements(doc.Text, netex.FrameDefaults) {
			locales := xmlindex.FindChildren(el.Inner, "DefaultLocale", el.InnerOffset, el.InnerLine, el.InnerColumn)
			if len(locales) > 0 {
				if tz, ok := xmlindex.ChildText(locales[0].Inner, "TimeZone"); ok && tz != "" {
					continue
				}
			}
			out = append(out, txv.QualityWarning().
				Rule("frameDefaultsHaveALocale").
				Message("frame defaults declare no time zone").
				In(doc.FileName).
				At(el.Line, el.Column).
				Build())
		}
	}
	return out
}
