package epubfile

import (
	"bytes"
	"fmt"
	"regexp"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// xmlDeclPattern matches a leading XML declaration. The HTML parser would
// otherwise turn it into a comment node, so it is stripped before parsing
// and re-emitted by Serialize.
var xmlDeclPattern = regexp.MustCompile(`(?s)^\s*<\?xml[^>]*\?>\s*`)

// xhtmlDeclaration is the declaration emitted for documents that carried one.
const xhtmlDeclaration = `<?xml version="1.0" encoding="utf-8"?>` + "\n"

// Document is a parsed XHTML content document. It is an optional layer over
// the raw bytes the registry stages: parse on demand, serialize on write.
// The registry itself never inspects content.
type Document struct {
	root       *html.Node
	hadXMLDecl bool
	hadDoctype bool
}

// ParseXHTML parses raw XHTML bytes into a Document.
func ParseXHTML(data []byte) (*Document, error) {
	data = stripBOM(data)

	hadDecl := xmlDeclPattern.Match(data)
	if hadDecl {
		data = xmlDeclPattern.ReplaceAll(data, nil)
	}

	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("epubfile: parse document: %w", err)
	}

	hadDoctype := false
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.DoctypeNode {
			hadDoctype = true
			break
		}
	}

	return &Document{root: root, hadXMLDecl: hadDecl, hadDoctype: hadDoctype}, nil
}

// Serialize renders the document back to bytes. A stripped XML declaration
// is restored; a missing doctype is supplied, matching how the original
// archive members are normalised on write.
func (d *Document) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if d.hadXMLDecl {
		buf.WriteString(xhtmlDeclaration)
	}
	if !d.hadDoctype {
		buf.WriteString("<!DOCTYPE html>\n")
	}
	if err := html.Render(&buf, d.root); err != nil {
		return nil, fmt.Errorf("epubfile: serialize document: %w", err)
	}
	return buf.Bytes(), nil
}

// Root exposes the parsed tree for direct mutation.
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the <body> element, or nil if the document has none.
func (d *Document) Body() *html.Node {
	return findElement(d.root, atom.Body)
}

// Head returns the <head> element, or nil if the document has none.
func (d *Document) Head() *html.Node {
	return findElement(d.root, atom.Head)
}

// Text extracts the document's plain text. Block-level elements produce line
// breaks; script and style content is skipped.
func (d *Document) Text() (string, error) {
	data, err := d.Serialize()
	if err != nil {
		return "", err
	}
	return extractText(data)
}

// DemoteHeadings moves every heading down one level: h1 becomes h2, and so
// on; h6 stays h6.
func (d *Document) DemoteHeadings() {
	shiftHeadingNode(d.root, 1)
}

// PromoteHeadings moves every heading up one level: h2 becomes h1, and so
// on; h1 stays h1.
func (d *Document) PromoteHeadings() {
	shiftHeadingNode(d.root, -1)
}

// findElement performs a depth-first search for a node with the given atom tag.
func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if result := findElement(c, a); result != nil {
			return result
		}
	}
	return nil
}
