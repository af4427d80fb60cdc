package epubfile

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

// opfPackage represents the root <package> element of an OPF file.
type opfPackage struct {
	XMLName          xml.Name    `xml:"package"`
	Version          string      `xml:"version,attr"`
	UniqueIdentifier string      `xml:"unique-identifier,attr"`
	Metadata         opfMetadata `xml:"metadata"`
	Manifest         opfManifest `xml:"manifest"`
	Spine            opfSpine    `xml:"spine"`
	Guide            opfGuide    `xml:"guide"`
}

// opfMetadata holds the raw metadata elements from the OPF file.
// InnerXML preserves the whole block verbatim so that Save can pass
// arbitrary metadata through without modelling it.
type opfMetadata struct {
	InnerXML     string         `xml:",innerxml"`
	Titles       []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creators     []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Languages    []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifiers  []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Publishers   []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ publisher"`
	Dates        []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ date"`
	Descriptions []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ description"`
	Subjects     []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ subject"`
	Rights       []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ rights"`
	Sources      []opfDCElement `xml:"http://purl.org/dc/elements/1.1/ source"`
	Metas        []opfMeta      `xml:"meta"`
}

// opfDCElement holds a Dublin Core element with optional OPF attributes.
// ePub 2 uses opf:file-as, opf:role, opf:scheme attributes directly.
// ePub 3 uses <meta refines="..."> elements to express the same information.
type opfDCElement struct {
	Value  string `xml:",chardata"`
	ID     string `xml:"id,attr"`
	FileAs string `xml:"file-as,attr"`
	Role   string `xml:"role,attr"`
	Scheme string `xml:"scheme,attr"`
}

// opfMeta represents a <meta> element in the OPF metadata.
// ePub 2: <meta name="..." content="..."/>
// ePub 3: <meta property="..." refines="..." scheme="...">value</meta>
type opfMeta struct {
	// ePub 2 attributes.
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`

	// ePub 3 attributes.
	Property string `xml:"property,attr"`
	Refines  string `xml:"refines,attr"`
	Scheme   string `xml:"scheme,attr"`

	// ePub 3 text content.
	Value string `xml:",chardata"`
}

// opfManifest wraps the <manifest> element.
type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

// opfManifestItem represents a single <item> in the manifest.
type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// opfSpine wraps the <spine> element.
type opfSpine struct {
	Toc      string            `xml:"toc,attr"`
	ItemRefs []opfSpineItemRef `xml:"itemref"`
}

// opfSpineItemRef represents a single <itemref> in the spine.
type opfSpineItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// opfGuide wraps the <guide> element.
type opfGuide struct {
	References []opfGuideReference `xml:"reference"`
}

// opfGuideReference represents a single <reference> in the guide.
type opfGuideReference struct {
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
	Href  string `xml:"href,attr"`
}

// parseOPF parses the OPF file content and returns the parsed package structure.
func parseOPF(data []byte) (*opfPackage, error) {
	data = preprocessHTMLEntities(data)
	data = stripBOM(data)

	var pkg opfPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("epubfile: parse OPF: %w", err)
	}

	if pkg.Version == "" {
		// Default to 2.0 if version attribute is missing.
		pkg.Version = "2.0"
	}

	return &pkg, nil
}

// coverMetaPattern matches an ePub 2 <meta name="cover" .../> element in the
// raw metadata block. Save strips it and re-emits one for the current cover.
var coverMetaPattern = regexp.MustCompile(`(?is)<(?:opf:)?meta\s[^>]*name\s*=\s*"cover"[^>]*?(?:/>|>\s*</(?:opf:)?meta>)`)

// serializeOPF renders the package descriptor from the current registry
// state. The metadata block is emitted verbatim (minus any stale cover meta);
// manifest, spine, cover designation, and guide come from the session.
func (b *Book) serializeOPF() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	fmt.Fprintf(&buf, `<package version="%s" unique-identifier="%s" xmlns="http://www.idpf.org/2007/opf">`+"\n",
		xmlEscapeAttr(b.version), xmlEscapeAttr(b.uniqueID))

	// Metadata: raw pass-through, with the cover meta owned by this session.
	buf.WriteString(`  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">` + "\n")
	meta := strings.TrimSpace(coverMetaPattern.ReplaceAllString(b.metadataRaw, ""))
	if meta != "" {
		buf.WriteString("    " + meta + "\n")
	}
	if coverID, ok := b.reg.Cover(); ok {
		fmt.Fprintf(&buf, `    <meta name="cover" content="%s"/>`+"\n", xmlEscapeAttr(coverID))
	}
	buf.WriteString("  </metadata>\n")

	// Manifest, in insertion order.
	buf.WriteString("  <manifest>\n")
	for id := range b.reg.IDs() {
		entry, err := b.reg.Entry(id)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, `    <item id="%s" href="%s" media-type="%s"`,
			xmlEscapeAttr(entry.ID), xmlEscapeAttr(escapeHref(b.relHref(entry.Path))), xmlEscapeAttr(entry.MediaType))
		if props := b.propertiesFor(id); props != "" {
			fmt.Fprintf(&buf, ` properties="%s"`, xmlEscapeAttr(props))
		}
		buf.WriteString("/>\n")
	}
	buf.WriteString("  </manifest>\n")

	// Spine. The toc attribute points at the NCX when one exists.
	if ncx := b.NCX(); ncx != "" {
		fmt.Fprintf(&buf, `  <spine toc="%s">`+"\n", xmlEscapeAttr(ncx))
	} else {
		buf.WriteString("  <spine>\n")
	}
	for _, id := range b.reg.SpineOrder() {
		linear, err := b.reg.Linear(id)
		if err != nil {
			return nil, err
		}
		if linear {
			fmt.Fprintf(&buf, `    <itemref idref="%s"/>`+"\n", xmlEscapeAttr(id))
		} else {
			fmt.Fprintf(&buf, `    <itemref idref="%s" linear="no"/>`+"\n", xmlEscapeAttr(id))
		}
	}
	buf.WriteString("  </spine>\n")

	// Guide: pass-through of whatever the source declared, with hrefs kept
	// current by rename bookkeeping.
	if len(b.guide) > 0 {
		buf.WriteString("  <guide>\n")
		for _, ref := range b.guide {
			fmt.Fprintf(&buf, `    <reference type="%s" title="%s" href="%s"/>`+"\n",
				xmlEscapeAttr(ref.Type), xmlEscapeAttr(ref.Title), xmlEscapeAttr(ref.Href))
		}
		buf.WriteString("  </guide>\n")
	}

	buf.WriteString("</package>\n")
	return buf.Bytes(), nil
}

// propertiesFor returns the manifest properties attribute for id: the
// properties preserved from the source document plus "cover-image" when id
// is the designated cover. The cover-image token itself is never preserved
// from the source; the registry's cover pointer owns it.
func (b *Book) propertiesFor(id string) string {
	props := strings.Fields(b.props[id])
	if coverID, ok := b.reg.Cover(); ok && coverID == id {
		props = append(props, "cover-image")
	}
	return strings.Join(props, " ")
}

// escapeHref percent-escapes the characters that are invalid in an href
// attribute while leaving path separators intact.
func escapeHref(p string) string {
	var sb strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c == ' ':
			sb.WriteString("%20")
		case c == '#':
			sb.WriteString("%23")
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// guideReference is the processed representation of a guide reference entry.
type guideReference struct {
	Type  string
	Title string
	Href  string
}

// buildGuide creates a slice of guideReference from the parsed OPF guide.
func buildGuide(guide opfGuide) []guideReference {
	refs := make([]guideReference, 0, len(guide.References))
	for _, r := range guide.References {
		refs = append(refs, guideReference{
			Type:  r.Type,
			Title: r.Title,
			Href:  r.Href,
		})
	}
	return refs
}
