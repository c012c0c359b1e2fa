package txvalidator

// Version is the module version, overridable at link time.
var Version = "0.1.0"

// SchemaConfig holds the schema identity for a format.
type SchemaConfig struct {
	// SchemaID is the cache key prefix and bundle name.
	SchemaID string

	// DefaultVersion is used when a document declares no version.
	DefaultVersion string

	// EntryFile is the conventional entry-point XSD inside a bundle.
	EntryFile string
}

// schemaConfigs maps formats to their schema identities.
var schemaConfigs = map[Format]SchemaConfig{
	FormatNeTEx: {
		SchemaID:       "netex",
		DefaultVersion: "1.15",
		EntryFile:      "NeTEx_publication.xsd",
	},
	FormatSIRI: {
		SchemaID:       "siri",
		DefaultVersion: "2.1",
		EntryFile:      "siri.xsd",
	},
}

// SchemaConfigFor returns the schema identity for a format.
func SchemaConfigFor(f Format) (SchemaConfig, bool) {
	c, ok := schemaConfigs[f]
	return c, ok
}
