package txvalidator

import (
	"strings"

	"github.com/transitkit/validator/xmlindex"
)

// Format identifies which of the two supported XML dialects a document uses.
type Format string

// Supported document formats.
const (
	// FormatNeTEx is the network/timetable exchange dialect.
	FormatNeTEx Format = "netex"
	// FormatSIRI is the real-time operational information dialect.
	FormatSIRI Format = "siri"
	// FormatUnknown is returned when detection fails.
	FormatUnknown Format = ""
)

// String returns the format name.
func (f Format) String() string {
	return string(f)
}

// IsValid reports whether this is a supported format.
func (f Format) IsValid() bool {
	return f == FormatNeTEx || f == FormatSIRI
}

// rootElements maps document root element names to formats.
var rootElements = map[string]Format{
	"PublicationDelivery": FormatNeTEx,
	"Siri":                FormatSIRI,
}

// DetectFormat classifies a document by inspecting its root element name.
// Returns FormatUnknown if no supported root element is found.
func DetectFormat(text string) Format {
	name, _ := rootElement(text)
	if f, ok := rootElements[name]; ok {
		return f
	}
	return FormatUnknown
}

// DetectVersion extracts the declared schema version from the root element's
// version attribute, if present. Returns "" when the document carries none.
// Attribute extraction goes through xmlindex.Attr, so a "version=" token
// inside another attribute's value or name cannot be misread.
func DetectVersion(text string) string {
	_, attrs := rootElement(text)
	version, _ := xmlindex.Attr(attrs, "version")
	return version
}

// rootElement returns the local name and raw attribute text of the first
// element in the document, skipping the XML declaration, comments and
// processing instructions.
func rootElement(text string) (name, attrs string) {
	for i := 0; i < len(text); {
		lt := strings.IndexByte(text[i:], '<')
		if lt < 0 {
			return "", ""
		}
		i += lt
		rest := text[i:]
		switch {
		case strings.HasPrefix(rest, "<?"):
			end := strings.Index(rest, "?>")
			if end < 0 {
				return "", ""
			}
			i += end + 2
		case strings.HasPrefix(rest, "<!--"):
			end := strings.Index(rest, "-->")
			if end < 0 {
				return "", ""
			}
			i += end + 3
		case strings.HasPrefix(rest, "<!"):
			end := strings.IndexByte(rest, '>')
			if end < 0 {
				return "", ""
			}
			i += end + 1
		default:
			end := strings.IndexByte(rest, '>')
			if end < 0 {
				return "", ""
			}
			tag := strings.TrimSpace(strings.TrimSuffix(rest[1:end], "/"))
			// The name ends at the first XML whitespace byte; attributes
			// routinely start on their own line.
			if cut := strings.IndexFunc(tag, func(r rune) bool {
				return r == ' ' || r == '\t' || r == '\n' || r == '\r'
			}); cut >= 0 {
				name, attrs = tag[:cut], strings.TrimSpace(tag[cut+1:])
			} else {
				name = tag
			}
			// Namespace prefixes do not matter for classification.
			if colon := strings.LastIndexByte(name, ':'); colon >= 0 {
				name = name[colon+1:]
			}
			return name, attrs
		}
	}
	return "", ""
}
