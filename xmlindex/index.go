// Package xmlindex locates elements in raw XML text by name without
// building a document tree. Matches keep their absolute byte offset and
// line so diagnostics can point at the original file even when an element
// was found by recursing into another element's inner text.
//
// The scanner understands just enough XML to be safe on real documents:
// comments, CDATA sections, processing instructions and quoted attribute
// values are skipped, and nested same-named elements are balanced when
// looking for a closing tag. It is not a general parser; malformed
// structure yields no match for the broken occurrence instead of an error.
package xmlindex

import "strings"

// Element is a structural match with absolute provenance.
type Element struct {
	// Name is the element's local name as written, including any prefix.
	Name string

	// Attrs is the raw attribute text of the open tag, trimmed.
	Attrs string

	// Inner is the element body. Empty for self-closing elements.
	Inner string

	// Offset is the absolute byte offset of the open tag's '<'.
	Offset int

	// Line is the 1-based line of the open tag.
	Line int

	// Column is the 1-based column of the open tag within its line.
	Column int

	// InnerOffset is the absolute byte offset where Inner starts.
	InnerOffset int

	// InnerLine is the 1-based line where Inner starts.
	InnerLine int

	// InnerColumn is the 1-based column where Inner starts.
	InnerColumn int
}

// FindAll returns every occurrence of tag in xml, including occurrences
// nested inside same-named elements. Used for dataset-wide scans such as
// reference collection.
func FindAll(xml, tag string) []Element {
	return scan(xml, func(name string) bool { return name == tag }, 0, 1, 1, false)
}

// FindAllFunc returns every element whose name satisfies match. The empty
// name (a malformed tag) never matches.
func FindAllFunc(xml string, match func(name string) bool) []Element {
	return scan(xml, func(name string) bool { return name != "" && match(name) }, 0, 1, 1, false)
}

// FindAllSuffix returns every element whose name ends in suffix, such as
// the "Ref" reference elements scattered through a dataset.
func FindAllSuffix(xml, suffix string) []Element {
	return FindAllFunc(xml, func(name string) bool { return strings.HasSuffix(name, suffix) })
}

// FindChildren returns occurrences of tag at the top level of the scope
// whose text is xml: occurrences nested inside a same-named element are not
// returned. baseOffset, baseLine and baseCol are the scope's absolute
// position in the original document, so returned provenance composes.
func FindChildren(xml, tag string, baseOffset, baseLine, baseCol int) []Element {
	return scan(xml, func(name string) bool { return name == tag }, baseOffset, baseLine, baseCol, true)
}

// Attr extracts an attribute value from a captured open-tag attribute
// string. Attributes are tokenized left to right with quoted values
// consumed whole, so an attribute-shaped token inside another attribute's
// value can never shadow the real attribute. The second return is false
// when the attribute is absent.
func Attr(attrs, name string) (string, bool) {
	i := 0
	for i < len(attrs) {
		for i < len(attrs) && isSpace(attrs[i]) {
			i++
		}
		if i >= len(attrs) {
			break
		}
		start := i
		for i < len(attrs) && isNameByte(attrs[i]) {
			i++
		}
		attrName := attrs[start:i]
		for i < len(attrs) && isSpace(attrs[i]) {
			i++
		}
		if i >= len(attrs) || attrs[i] != '=' {
			// Bare token or stray byte; resynchronize.
			if i == start {
				i++
			}
			continue
		}
		i++
		for i < len(attrs) && isSpace(attrs[i]) {
			i++
		}
		if i >= len(attrs) || (attrs[i] != '"' && attrs[i] != '\'') {
			continue
		}
		quote := attrs[i]
		end := strings.IndexByte(attrs[i+1:], quote)
		if end < 0 {
			return "", false
		}
		value := attrs[i+1 : i+1+end]
		i += end + 2
		if attrName == name {
			return value, true
		}
	}
	return "", false
}

// ChildText returns the trimmed inner text of the first direct child named
// tag, or false when there is none.
func ChildText(xml, tag string) (string, bool) {
	children := FindChildren(xml, tag, 0, 1, 1)
	if len(children) == 0 {
		return "", false
	}
	return strings.TrimSpace(children[0].Inner), true
}

// NavigatePath resolves a '/'-delimited path by repeated FindChildren at
// each segment and returns the elements of the final segment. The result is
// empty when any intermediate segment has no match.
func NavigatePath(xml, path string) []Element {
	segments := strings.Split(path, "/")
	scopes := []Element{{Inner: xml, InnerOffset: 0, InnerLine: 1, InnerColumn: 1}}
	for _, segment := range segments {
		if segment == "" {
			return nil
		}
		var next []Element
		for _, scope := range scopes {
			next = append(next, FindChildren(scope.Inner, segment, scope.InnerOffset, scope.InnerLine, scope.InnerColumn)...)
		}
		if len(next) == 0 {
			return nil
		}
		scopes = next
	}
	return scopes
}

// scan walks xml looking for elements whose name satisfies match. When
// topLevel is set it resumes after each match's closing tag, skipping
// same-named descendants; otherwise it resumes inside the match so every
// occurrence is returned.
func scan(xml string, match func(name string) bool, baseOffset, baseLine, baseCol int, topLevel bool) []Element {
	var out []Element
	line := baseLine
	i := 0
	for i < len(xml) {
		c := xml[i]
		if c == '\n' {
			line++
			i++
			continue
		}
		if c != '<' {
			i++
			continue
		}
		rest := xml[i:]
		if skip, ok := skipNonElement(rest); ok {
			line += strings.Count(rest[:skip], "\n")
			i += skip
			continue
		}
		if strings.HasPrefix(rest, "</") {
			end := strings.IndexByte(rest, '>')
			if end < 0 {
				return out
			}
			line += strings.Count(rest[:end+1], "\n")
			i += end + 1
			continue
		}

		name, nameEnd := elementName(xml, i+1)
		tagEnd, selfClosing, ok := openTagEnd(xml, nameEnd)
		if !ok {
			// Unterminated open tag: nothing after it can match.
			return out
		}
		if !match(name) {
			line += strings.Count(xml[i:tagEnd+1], "\n")
			i = tagEnd + 1
			continue
		}

		elem := Element{
			Name:   name,
			Attrs:  strings.TrimSpace(strings.TrimSuffix(xml[nameEnd:tagEnd], "/")),
			Offset: baseOffset + i,
			Line:   line,
			Column: column(xml, i, baseCol),
		}
		openNewlines := strings.Count(xml[i:tagEnd+1], "\n")

		if selfClosing {
			elem.InnerOffset = baseOffset + tagEnd + 1
			elem.InnerLine = line + openNewlines
			elem.InnerColumn = column(xml, tagEnd+1, baseCol)
			out = append(out, elem)
			line += openNewlines
			i = tagEnd + 1
			continue
		}

		innerStart := tagEnd + 1
		closeStart, closeEnd, found := findClose(xml, innerStart, name)
		if !found {
			// Unterminated element: no match for this occurrence, but the
			// rest of the scope is still scanned.
			line += openNewlines
			i = innerStart
			continue
		}

		elem.Inner = xml[innerStart:closeStart]
		elem.InnerOffset = baseOffset + innerStart
		elem.InnerLine = line + openNewlines
		elem.InnerColumn = column(xml, innerStart, baseCol)
		out = append(out, elem)

		if topLevel {
			line += strings.Count(xml[i:closeEnd], "\n")
			i = closeEnd
		} else {
			line += openNewlines
			i = innerStart
		}
	}
	return out
}

// skipNonElement reports the length of a leading comment, CDATA section,
// processing instruction or doctype at the start of rest. ok is false when
// rest starts with a regular tag. An unterminated construct consumes the
// remainder of the scope.
func skipNonElement(rest string) (n int, ok bool) {
	type marker struct{ open, close string }
	for _, m := range []marker{
		{"<!--", "-->"},
		{"<![CDATA[", "]]>"},
		{"<?", "?>"},
		{"<!", ">"},
	} {
		if strings.HasPrefix(rest, m.open) {
			end := strings.Index(rest, m.close)
			if end < 0 {
				return len(rest), true
			}
			return end + len(m.close), true
		}
	}
	return 0, false
}

// elementName reads an element name starting at position start (the byte
// after '<') and returns the name and the position after it.
func elementName(xml string, start int) (string, int) {
	i := start
	for i < len(xml) && isNameByte(xml[i]) {
		i++
	}
	return xml[start:i], i
}

// openTagEnd finds the '>' terminating an open tag, starting after the
// element name. Quoted attribute values are skipped so embedded '>' or '<'
// cannot end the tag early.
func openTagEnd(xml string, from int) (end int, selfClosing bool, ok bool) {
	i := from
	for i < len(xml) {
		switch xml[i] {
		case '"', '\'':
			quote := xml[i]
			j := strings.IndexByte(xml[i+1:], quote)
			if j < 0 {
				return 0, false, false
			}
			i += j + 2
		case '>':
			return i, i > from && xml[i-1] == '/', true
		default:
			i++
		}
	}
	return 0, false, false
}

// findClose locates the closing tag matching an already-consumed open tag,
// balancing nested same-named elements. It returns the index of the closing
// tag's '<' and the index just past its '>'.
func findClose(xml string, from int, tag string) (closeStart, closeEnd int, found bool) {
	depth := 1
	i := from
	for i < len(xml) {
		lt := strings.IndexByte(xml[i:], '<')
		if lt < 0 {
			return 0, 0, false
		}
		i += lt
		rest := xml[i:]
		if skip, ok := skipNonElement(rest); ok {
			i += skip
			continue
		}
		if strings.HasPrefix(rest, "</") {
			end := strings.IndexByte(rest, '>')
			if end < 0 {
				return 0, 0, false
			}
			name := strings.TrimSpace(rest[2:end])
			if name == tag {
				depth--
				if depth == 0 {
					return i, i + end + 1, true
				}
			}
			i += end + 1
			continue
		}
		name, nameEnd := elementName(xml, i+1)
		tagEnd, selfClosing, ok := openTagEnd(xml, nameEnd)
		if !ok {
			return 0, 0, false
		}
		if name == tag && !selfClosing {
			depth++
		}
		i = tagEnd + 1
	}
	return 0, 0, false
}

// column returns the 1-based column of position i within its line. A
// position on the scope's first line is offset by the scope's own starting
// column so nested matches report document-absolute columns.
func column(xml string, i, baseCol int) int {
	nl := strings.LastIndexByte(xml[:i], '\n')
	if nl < 0 {
		return baseCol + i
	}
	return i - nl
}

func isNameByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '-', c == '.', c == ':':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
