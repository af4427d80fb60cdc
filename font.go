package epubfile

import (
	"fmt"
	"path"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// setfontBasename is the stylesheet SetFont installs or refreshes.
const setfontBasename = "setfont.css"

const setfontCSS = `@font-face {
  font-family: %q;
  font-weight: normal;
  font-style: normal;
  src: url(%q);
}

* {
  font-family: %q !important;
}
`

// SetFont embeds a font and applies it to the whole book. The font file is
// added unless a font with the same basename is already embedded, a
// stylesheet forcing the family onto every element is written under the
// Styles directory, and every text document gets a link to it. Calling
// SetFont again replaces the stylesheet in place.
func (b *Book) SetFont(name string, content []byte) error {
	if b.readOnly {
		return ErrReadOnly
	}

	basename := path.Base(name)
	fontID := ""
	for _, id := range b.Fonts() {
		entry, err := b.reg.Entry(id)
		if err != nil {
			return err
		}
		if path.Base(entry.Path) == basename {
			fontID = id
			break
		}
	}
	if fontID == "" {
		id, err := b.AddFile(basename, content)
		if err != nil {
			return err
		}
		fontID = id
	}
	fontEntry, err := b.reg.Entry(fontID)
	if err != nil {
		return err
	}

	cssPath := b.placePath(setfontBasename, "text/css")
	family := path.Base(fontEntry.Path)
	css := fmt.Sprintf(setfontCSS, family, relativeTo(path.Dir(cssPath), fontEntry.Path), family)

	cssID, ok := b.reg.IDByPath(cssPath)
	if ok {
		if err := b.reg.SetContent(cssID, []byte(css)); err != nil {
			return err
		}
	} else {
		cssID, err = b.reg.Add(cssPath, "text/css", []byte(css))
		if err != nil {
			return err
		}
	}

	for _, textID := range b.Texts() {
		if err := b.linkStylesheet(textID, cssID); err != nil {
			return err
		}
	}
	return nil
}

// linkStylesheet appends a <link rel="stylesheet"> for cssID to the head of
// the text document textID. A head already linking that stylesheet is left
// alone; a document without a head is skipped.
func (b *Book) linkStylesheet(textID, cssID string) error {
	textEntry, err := b.reg.Entry(textID)
	if err != nil {
		return err
	}
	cssEntry, err := b.reg.Entry(cssID)
	if err != nil {
		return err
	}

	doc, err := b.ParseDocument(textID)
	if err != nil {
		return err
	}
	head := doc.Head()
	if head == nil {
		return nil
	}
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Link {
			continue
		}
		for _, attr := range c.Attr {
			if attr.Key == "href" && attr.Namespace == "" &&
				resolveRelativePath(textEntry.Path, attr.Val) == cssEntry.Path {
				return nil
			}
		}
	}

	head.AppendChild(&html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Link,
		Data:     "link",
		Attr: []html.Attribute{
			{Key: "href", Val: escapeHref(relativeTo(path.Dir(textEntry.Path), cssEntry.Path))},
			{Key: "rel", Val: "stylesheet"},
			{Key: "type", Val: "text/css"},
		},
	})
	return b.WriteDocument(textID, doc)
}
