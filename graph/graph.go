// Package graph builds the frame-level prerequisite dependency graph of a
// dataset. Frames are the NeTEx versioned container elements; a frame may
// declare that it depends on other frames through a prerequisites block of
// reference elements. The graph is built fresh per validation run and is
// never persisted.
package graph

import (
	"fmt"
	"strings"

	txv "github.com/transitkit/validator"
	"github.com/transitkit/validator/netex"
	"github.com/transitkit/validator/xmlindex"
)

// Prerequisite is one declared dependency of a frame.
type Prerequisite struct {
	// Ref is the id of the frame depended upon.
	Ref string

	Line int
}

// Frame is one node of the dependency graph.
type Frame struct {
	ID            string
	FileName      string
	Line          int
	Prerequisites []Prerequisite
}

// Reference is an element whose name ends in Ref carrying a ref attribute,
// collected dataset-wide for the missing-prerequisite advisory.
type Reference struct {
	Element  string
	Ref      string
	FileName string
	Line     int
}

// Graph holds the frames and reference indexes of one dataset.
//
// Frame ids are expected to be unique dataset-wide but this is not
// enforced: in both indexes a later frame with a duplicate id overwrites an
// earlier one. DuplicateFrameIDs surfaces collisions as an explicit,
// separately runnable check.
type Graph struct {
	Frames []Frame

	// frameFile maps frame id to defining file.
	frameFile map[string]string

	// elementFile maps any id-carrying element to its defining file.
	elementFile map[string]string

	// refs are the dataset's reference elements in scan order.
	refs []Reference
}

// Build scans every document for frames, declared prerequisites,
// id-carrying elements and reference elements. Non-NeTEx documents
// contribute nothing.
func Build(docs []txv.Document) *Graph {
	g := &Graph{
		frameFile:   make(map[string]string),
		elementFile: make(map[string]string),
	}
	frameTag := make(map[string]bool, len(netex.FrameTags))
	for _, t := range netex.FrameTags {
		frameTag[t] = true
	}

	for _, doc := range docs {
		if doc.Format != txv.FormatNeTEx {
			continue
		}
		for _, el := range xmlindex.FindAllFunc(doc.Text, func(string) bool { return true }) {
			id, hasID := xmlindex.Attr(el.Attrs, "id")
			if hasID && id != "" {
				g.elementFile[id] = doc.FileName
			}
			if ref, ok := xmlindex.Attr(el.Attrs, "ref"); ok && strings.HasSuffix(el.Name, "Ref") {
				g.refs = append(g.refs, Reference{
					Element:  el.Name,
					Ref:      ref,
					FileName: doc.FileName,
					Line:     el.Line,
				})
			}
			if !frameTag[el.Name] || !hasID || id == "" {
				continue
			}
			g.Frames = append(g.Frames, Frame{
				ID:            id,
				FileName:      doc.FileName,
				Line:          el.Line,
				Prerequisites: prerequisites(el),
			})
			g.frameFile[id] = doc.FileName
		}
	}
	return g
}

// prerequisites extracts the declared dependencies of a frame element.
func prerequisites(frame xmlindex.Element) []Prerequisite {
	var out []Prerequisite
	for _, block := range xmlindex.FindChildren(frame.Inner, "prerequisites", frame.InnerOffset, frame.InnerLine, frame.InnerColumn) {
		for _, el := range xmlindex.FindAllSuffix(block.Inner, "Ref") {
			if ref, ok := xmlindex.Attr(el.Attrs, "ref"); ok && ref != "" {
				// FindAllSuffix numbered lines from 1 within the block.
				out = append(out, Prerequisite{Ref: ref, Line: block.InnerLine + el.Line - 1})
			}
		}
	}
	return out
}

// CheckPrerequisites verifies that every declared prerequisite resolves to
// a known frame id somewhere in the dataset. Unresolved references are
// consistency errors located at the declaring frame.
func (g *Graph) CheckPrerequisites() []txv.Diagnostic {
	var out []txv.Diagnostic
	for _, frame := range g.Frames {
		for _, p := range frame.Prerequisites {
			if _, ok := g.frameFile[p.Ref]; ok {
				continue
			}
			out = append(out, txv.ConsistencyError().
				Message("frame %s declares a prerequisite on %s, which is not defined in the dataset", frame.ID, p.Ref).
				In(frame.FileName).
				At(frame.Line, 0).
				Build())
		}
	}
	return out
}

// MissingPrerequisites emits one quality advisory per distinct pair of
// files where one file references an element defined in the other without
// any of its frames declaring a prerequisite on a frame of that file. The
// per-pair deduplication is deliberate: the advisory states dependencies at
// frame granularity, not per reference.
func (g *Graph) MissingPrerequisites() []txv.Diagnostic {
	// Files covered by a declared prerequisite, per referencing file.
	covered := make(map[string]map[string]bool)
	for _, frame := range g.Frames {
		for _, p := range frame.Prerequisites {
			target, ok := g.frameFile[p.Ref]
			if !ok {
				continue
			}
			if covered[frame.FileName] == nil {
				covered[frame.FileName] = make(map[string]bool)
			}
			covered[frame.FileName][target] = true
		}
	}

	var out []txv.Diagnostic
	seen := make(map[string]bool)
	for _, ref := range g.refs {
		target, ok := g.elementFile[ref.Ref]
		if !ok || target == ref.FileName {
			continue
		}
		if covered[ref.FileName][target] {
			continue
		}
		pair := ref.FileName + "\x00" + target
		if seen[pair] {
			continue
		}
		seen[pair] = true
		out = append(out, txv.QualityWarning().
			Message("%s references elements defined in %s but declares no frame prerequisite on it", ref.FileName, target).
			In(ref.FileName).
			At(ref.Line, 0).
			Build())
	}
	return out
}

// DuplicateFrameIDs reports frames whose id collides with an earlier frame
// in the dataset. The graph itself keeps the silent last-write-wins
// behaviour; this pass makes collisions visible when a caller opts in.
func (g *Graph) DuplicateFrameIDs() []txv.Diagnostic {
	first := make(map[string]Frame)
	var out []txv.Diagnostic
	for _, frame := range g.Frames {
		prev, ok := first[frame.ID]
		if !ok {
			first[frame.ID] = frame
			continue
		}
		out = append(out, txv.NewDiagnostic(txv.SeverityWarning, txv.CategoryConsistency).
			Message("frame id %s is already defined in %s", frame.ID, fmt.Sprintf("%s:%d", prev.FileName, prev.Line)).
			In(frame.FileName).
			At(frame.Line, 0).
			Build())
	}
	return out
}

// FrameFile returns the file defining the frame with the given id. With
// duplicate ids the last scanned frame wins.
func (g *Graph) FrameFile(id string) (string, bool) {
	f, ok := g.frameFile[id]
	return f, ok
}

// ElementFile returns the file defining any element with the given id.
func (g *Graph) ElementFile(id string) (string, bool) {
	f, ok := g.elementFile[id]
	return f, ok
}
