// Package netex holds the catalogue of legal element paths for NeTEx
// publication documents. Two document layouts are in circulation: the
// composite layout nests semantic frames inside a CompositeFrame wrapper,
// the flat layout declares frames directly under dataObjects. Every
// semantic concept therefore has an ordered list of path variants, the
// composite variant first.
//
// Rules must resolve elements through this catalogue rather than hand-code
// paths; this package is the single place a new layout variant is added.
package netex

import "github.com/transitkit/validator/xmlindex"

const (
	compositeBase = "PublicationDelivery/dataObjects/CompositeFrame/frames"
	flatBase      = "PublicationDelivery/dataObjects"
)

// Path is an ordered list of path variants for one semantic concept.
// Variants are tried in declaration order; the first variant yielding at
// least one match wins outright, even if its match set is incomplete.
// See FindElements.
type Path struct {
	Concept  string
	Variants []string
}

// frameConcept builds the standard composite-then-flat variant pair for a
// concept living under one frame kind.
func frameConcept(concept, frame, tail string) Path {
	return Path{
		Concept: concept,
		Variants: []string{
			compositeBase + "/" + frame + "/" + tail,
			flatBase + "/" + frame + "/" + tail,
		},
	}
}

// Catalogue entries, one per semantic concept.
var (
	Lines               = frameConcept("lines", "ServiceFrame", "lines/Line")
	Routes              = frameConcept("routes", "ServiceFrame", "routes/Route")
	Networks            = frameConcept("networks", "ServiceFrame", "Network")
	ScheduledStopPoints = frameConcept("scheduledStopPoints", "ServiceFrame", "scheduledStopPoints/ScheduledStopPoint")
	JourneyPatterns     = frameConcept("journeyPatterns", "ServiceFrame", "journeyPatterns/JourneyPattern")
	StopPlaces          = frameConcept("stopPlaces", "SiteFrame", "stopPlaces/StopPlace")
	ServiceJourneys     = frameConcept("serviceJourneys", "TimetableFrame", "vehicleJourneys/ServiceJourney")
	Operators           = frameConcept("operators", "ResourceFrame", "organisations/Operator")

	// FrameDefaults may sit on the wrapping CompositeFrame or on an
	// individual frame in the flat layout.
	FrameDefaults = Path{
		Concept: "frameDefaults",
		Variants: []string{
			"PublicationDelivery/dataObjects/CompositeFrame/FrameDefaults",
			flatBase + "/ServiceFrame/FrameDefaults",
			flatBase + "/TimetableFrame/FrameDefaults",
		},
	}
)

// FrameTags lists the frame element names the dependency graph recognises.
var FrameTags = []string{
	"CompositeFrame",
	"ResourceFrame",
	"SiteFrame",
	"ServiceFrame",
	"ServiceCalendarFrame",
	"TimetableFrame",
	"VehicleScheduleFrame",
	"FareFrame",
	"InfrastructureFrame",
	"GeneralFrame",
}

// FindElements resolves a catalogue path against a document. Variants are
// tried in order and the first non-empty result is returned as-is; matches
// from later variants are never merged in. Returns nil when no variant
// matches.
func FindElements(xml string, p Path) []xmlindex.Element {
	for _, variant := range p.Variants {
		if matches := xmlindex.NavigatePath(xml, variant); len(matches) > 0 {
			return matches
		}
	}
	return nil
}

// MatchCounts reports how many elements each variant matches, in variant
// order. Callers wanting stricter handling of documents that mix both
// layouts can detect the mix here without changing FindElements semantics.
func MatchCounts(xml string, p Path) []int {
	counts := make([]int, len(p.Variants))
	for i, variant := range p.Variants {
		counts[i] = len(xmlindex.NavigatePath(xml, variant))
	}
	return counts
}
