package epubfile

// Kind classifies a manifest entry by its media type. Classification is a
// static lookup: unknown media types become KindOther, never an error.
type Kind int

const (
	// KindOther covers every media type without a more specific class
	// (NCX, SMIL, audio, video, arbitrary attachments).
	KindOther Kind = iota

	// KindText is an XHTML content document. Only text entries may appear
	// in the spine.
	KindText

	// KindImage is a raster or vector image. Only image entries may be the
	// designated cover.
	KindImage

	// KindStyle is a CSS stylesheet.
	KindStyle

	// KindFont is an embedded font (TTF, OTF, WOFF, WOFF2).
	KindFont
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindStyle:
		return "style"
	case KindFont:
		return "font"
	default:
		return "other"
	}
}

// ManifestEntry is the registry's record for one content file.
// The ID is assigned when the entry is registered and never changes;
// the Path may change via rename.
type ManifestEntry struct {
	// ID is the stable manifest identifier, unique for the lifetime of the
	// registry. Removed ids are never reissued.
	ID string

	// Path is the full path of the file inside the archive. Manifest hrefs
	// relative to the OPF directory are derived from it at save time.
	Path string

	// MediaType is the MIME type recorded in the manifest.
	MediaType string

	// Kind is derived from MediaType at registration time.
	Kind Kind
}

// Metadata holds the Dublin Core metadata read from the OPF file.
// The registry does not model metadata; this is a read-only view and the
// raw metadata block passes through Save untouched.
type Metadata struct {
	// Version is the ePub specification version (e.g., "2.0", "3.0").
	Version string

	// Titles contains all dc:title values. The first entry is the primary title.
	Titles []string

	// Authors contains all dc:creator entries with their roles and file-as values.
	Authors []Author

	// Language contains all dc:language values (BCP 47 tags, e.g., "en", "zh-CN").
	Language []string

	// Identifiers contains all dc:identifier entries (ISBN, UUID, URI, etc.).
	Identifiers []Identifier

	// Publisher is the dc:publisher value.
	Publisher string

	// Date is the dc:date value (publication date as raw string).
	Date string

	// Description is the dc:description value.
	Description string

	// Subjects contains all dc:subject values.
	Subjects []string

	// Rights is the dc:rights value.
	Rights string

	// Source is the dc:source value.
	Source string
}

// Author represents a dc:creator entry with optional file-as and role attributes.
type Author struct {
	// Name is the display name of the author (dc:creator text content).
	Name string

	// FileAs is the opf:file-as attribute value (e.g., "Dickens, Charles").
	FileAs string

	// Role is the opf:role attribute value (e.g., "aut", "edt", "trl").
	Role string
}

// Identifier represents a dc:identifier entry.
type Identifier struct {
	// Value is the identifier text content (e.g., ISBN, UUID, URI).
	Value string

	// Scheme is the opf:scheme attribute value (e.g., "ISBN", "UUID").
	Scheme string

	// ID is the xml id attribute of this identifier element.
	ID string
}
