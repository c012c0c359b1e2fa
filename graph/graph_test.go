package graph

import (
	"strings"
	"testing"

	txv "github.com/transitkit/validator"
)

func netexDoc(name, body string) txv.Document {
	text := "<PublicationDelivery version=\"1.15\">\n<dataObjects>\n" + body + "\n</dataObjects>\n</PublicationDelivery>"
	return txv.Document{FileName: name, Text: text, Format: txv.FormatNeTEx}
}

func TestBuildCollectsFramesAndPrerequisites(t *testing.T) {
	shared := netexDoc("shared.xml", `<ResourceFrame id="RF:1">
  <organisations><Operator id="O:1"/></organisations>
</ResourceFrame>`)
	line := netexDoc("line.xml", `<ServiceFrame id="SF:1">
  <prerequisites>
    <ResourceFrameRef ref="RF:1"/>
  </prerequisites>
  <lines><Line id="L:1"/></lines>
</ServiceFrame>`)

	g := Build([]txv.Document{shared, line})

	if len(g.Frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(g.Frames))
	}
	var sf *Frame
	for i := range g.Frames {
		if g.Frames[i].ID == "SF:1" {
			sf = &g.Frames[i]
		}
	}
	if sf == nil {
		t.Fatal("frame SF:1 not found")
	}
	if len(sf.Prerequisites) != 1 || sf.Prerequisites[0].Ref != "RF:1" {
		t.Fatalf("SF:1 prerequisites = %+v, want one ref RF:1", sf.Prerequisites)
	}
	if f, ok := g.ElementFile("O:1"); !ok || f != "shared.xml" {
		t.Errorf("ElementFile(O:1) = %q, %v; want shared.xml, true", f, ok)
	}
	if f, ok := g.FrameFile("RF:1"); !ok || f != "shared.xml" {
		t.Errorf("FrameFile(RF:1) = %q, %v; want shared.xml, true", f, ok)
	}
}

func TestCheckPrerequisites(t *testing.T) {
	resolved := netexDoc("a.xml", `<ResourceFrame id="RF:1"/>`)
	declaring := netexDoc("b.xml", `<ServiceFrame id="SF:1">
  <prerequisites>
    <ResourceFrameRef ref="RF:1"/>
    <ResourceFrameRef ref="RF:missing"/>
  </prerequisites>
</ServiceFrame>`)

	g := Build([]txv.Document{resolved, declaring})
	diags := g.CheckPrerequisites()
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(diags))
	}
	d := diags[0]
	if d.Category != txv.CategoryConsistency || d.FileName != "b.xml" {
		t.Errorf("diagnostic = %+v, want consistency error in b.xml", d)
	}
	if !strings.Contains(d.Message, "RF:missing") {
		t.Errorf("message %q should name the unresolved ref", d.Message)
	}
	if d.Line == 0 {
		t.Error("diagnostic should be located at the declaring frame")
	}
}

func TestMissingPrerequisitesDeduplicatesPairs(t *testing.T) {
	target := netexDoc("y.xml", `<ServiceFrame id="SF:Y">
  <lines><Line id="L:1"/><Line id="L:2"/></lines>
</ServiceFrame>`)
	// Two distinct cross-file references into y.xml, no prerequisite.
	source := netexDoc("x.xml", `<TimetableFrame id="TF:X">
  <vehicleJourneys>
    <ServiceJourney id="SJ:1"><LineRef ref="L:1"/></ServiceJourney>
    <ServiceJourney id="SJ:2"><LineRef ref="L:2"/></ServiceJourney>
  </vehicleJourneys>
</TimetableFrame>`)

	g := Build([]txv.Document{target, source})
	diags := g.MissingPrerequisites()
	if len(diags) != 1 {
		t.Fatalf("advisories = %d, want exactly 1 for the (x.xml, y.xml) pair", len(diags))
	}
	d := diags[0]
	if d.Category != txv.CategoryQuality || d.Severity != txv.SeverityWarning {
		t.Errorf("advisory = %+v, want quality warning", d)
	}
	if d.FileName != "x.xml" {
		t.Errorf("advisory located in %q, want x.xml", d.FileName)
	}
}

func TestMissingPrerequisitesSatisfiedByDeclaration(t *testing.T) {
	target := netexDoc("y.xml", `<ServiceFrame id="SF:Y">
  <lines><Line id="L:1"/></lines>
</ServiceFrame>`)
	source := netexDoc("x.xml", `<TimetableFrame id="TF:X">
  <prerequisites>
    <ServiceFrameRef ref="SF:Y"/>
  </prerequisites>
  <vehicleJourneys>
    <ServiceJourney id="SJ:1"><LineRef ref="L:1"/></ServiceJourney>
  </vehicleJourneys>
</TimetableFrame>`)

	g := Build([]txv.Document{target, source})
	if diags := g.MissingPrerequisites(); len(diags) != 0 {
		t.Fatalf("advisories = %d, want 0 when the dependency is declared", len(diags))
	}
}

func TestMissingPrerequisitesIgnoresSameFileReferences(t *testing.T) {
	doc := netexDoc("a.xml", `<ServiceFrame id="SF:1">
  <lines><Line id="L:1"/></lines>
  <journeyPatterns><JourneyPattern id="JP:1"><LineRef ref="L:1"/></JourneyPattern></journeyPatterns>
</ServiceFrame>`)
	g := Build([]txv.Document{doc})
	if diags := g.MissingPrerequisites(); len(diags) != 0 {
		t.Fatalf("advisories = %d, want 0 for intra-file references", len(diags))
	}
}

func TestDuplicateFrameIDs(t *testing.T) {
	a := netexDoc("a.xml", `<ServiceFrame id="SF:1"/>`)
	b := netexDoc("b.xml", `<ServiceFrame id="SF:1"/>`)

	g := Build([]txv.Document{a, b})
	diags := g.DuplicateFrameIDs()
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(diags))
	}
	if diags[0].FileName != "b.xml" {
		t.Errorf("collision reported in %q, want the later file b.xml", diags[0].FileName)
	}
	// Last write wins in the lookup index.
	if f, _ := g.FrameFile("SF:1"); f != "b.xml" {
		t.Errorf("FrameFile(SF:1) = %q, want b.xml", f)
	}
}

func TestBuildSkipsNonNetexDocuments(t *testing.T) {
	siri := txv.Document{FileName: "rt.xml", Text: `<Siri version="2.1"><ServiceFrame id="SF:1"/></Siri>`, Format: txv.FormatSIRI}
	g := Build([]txv.Document{siri})
	if len(g.Frames) != 0 {
		t.Fatalf("frames = %d, want 0 for non-NeTEx input", len(g.Frames))
	}
}
