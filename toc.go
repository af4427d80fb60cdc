package epubfile

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// tocEntry is one heading harvested from a spine document: the entry's
// nesting comes from the heading level, the target from the document path
// plus an anchor.
type tocEntry struct {
	Title    string
	Href     string // href relative to the TOC document's directory
	Level    int    // 1..6, heading level
	Children []*tocEntry
}

// GenerateTOC rebuilds the table of contents from the headings of the linear
// spine documents. Headings h1 through maxLevel become entries nested by
// level; headings without an id get one assigned (and the document is staged
// with the new anchors). Both the ePub 3 nav document and the NCX are
// rewritten when present.
func (b *Book) GenerateTOC(maxLevel int) error {
	if b.readOnly {
		return ErrReadOnly
	}
	if maxLevel < 1 || maxLevel > 6 {
		maxLevel = 6
	}

	nav := b.Nav()
	ncx := b.NCX()
	if nav == "" && ncx == "" {
		return nil
	}

	entries, err := b.harvestHeadings(maxLevel)
	if err != nil {
		return err
	}

	if nav != "" {
		if err := b.writeNavTOC(nav, entries); err != nil {
			return err
		}
	}
	if ncx != "" {
		if err := b.writeNCXTOC(ncx, entries); err != nil {
			return err
		}
	}
	return nil
}

// harvestHeadings walks the linear spine documents in order, collects h1-h6
// headings up to maxLevel, and assigns anchor ids to headings that lack one.
// Documents that gained anchors are staged back into the session. The entries
// come back as a forest nested by heading level.
func (b *Book) harvestHeadings(maxLevel int) ([]*tocEntry, error) {
	var flat []*tocEntry
	var paths []string // flat[i] targets paths[i]
	anchorSeq := 0

	for _, id := range b.reg.LinearSpineOrder() {
		entry, err := b.reg.Entry(id)
		if err != nil {
			return nil, err
		}
		if id == b.Nav() {
			continue
		}
		data, err := b.ReadFile(id)
		if err != nil {
			continue
		}
		doc, err := ParseXHTML(data)
		if err != nil {
			continue
		}

		changed := false
		var walk func(n *html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode {
				if level, ok := headingLevels[n.DataAtom]; ok && level <= maxLevel {
					title := collapseWhitespace(nodeText(n))
					if title != "" {
						anchor := nodeAttr(n, "id")
						if anchor == "" {
							anchorSeq++
							anchor = fmt.Sprintf("toc-%d", anchorSeq)
							n.Attr = append(n.Attr, html.Attribute{Key: "id", Val: anchor})
							changed = true
						}
						flat = append(flat, &tocEntry{Title: title, Level: level})
						paths = append(paths, entry.Path+"#"+anchor)
					}
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(doc.Root())

		if changed {
			out, err := doc.Serialize()
			if err != nil {
				return nil, err
			}
			if err := b.reg.SetContent(id, out); err != nil {
				return nil, err
			}
		}
	}

	// Resolve hrefs relative to whichever TOC document will carry them.
	// Nav and NCX can live in different directories; links are emitted per
	// TOC document in writeNavTOC/writeNCXTOC, so store ZIP paths here.
	for i, e := range flat {
		e.Href = paths[i]
	}

	return nestEntries(flat), nil
}

// nestEntries folds a flat heading list into a forest using heading levels.
// A heading becomes a child of the nearest preceding heading with a smaller
// level.
func nestEntries(flat []*tocEntry) []*tocEntry {
	var roots []*tocEntry
	var stack []*tocEntry
	for _, e := range flat {
		for len(stack) > 0 && stack[len(stack)-1].Level >= e.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, e)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, e)
		}
		stack = append(stack, e)
	}
	return roots
}

// writeNavTOC replaces the <ol> inside the nav document's epub:type="toc"
// element with the generated entries.
func (b *Book) writeNavTOC(navID string, entries []*tocEntry) error {
	navEntry, err := b.reg.Entry(navID)
	if err != nil {
		return err
	}
	navDir := path.Dir(navEntry.Path)

	data, err := b.ReadFile(navID)
	if err != nil {
		return err
	}
	doc, err := ParseXHTML(data)
	if err != nil {
		return err
	}

	tocNav := findTOCNav(doc.Root())
	if tocNav == nil {
		return fmt.Errorf("epubfile: nav document has no toc nav element: %w", ErrInvalidEPub)
	}

	// Drop the old list and build a fresh one.
	for c := tocNav.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && c.DataAtom == atom.Ol {
			tocNav.RemoveChild(c)
		}
		c = next
	}
	tocNav.AppendChild(buildNavList(entries, navDir))

	out, err := doc.Serialize()
	if err != nil {
		return err
	}
	return b.reg.SetContent(navID, out)
}

// buildNavList renders entries as a nested <ol> tree with hrefs relative to
// navDir.
func buildNavList(entries []*tocEntry, navDir string) *html.Node {
	ol := &html.Node{Type: html.ElementNode, DataAtom: atom.Ol, Data: "ol"}
	for _, e := range entries {
		li := &html.Node{Type: html.ElementNode, DataAtom: atom.Li, Data: "li"}
		a := &html.Node{
			Type: html.ElementNode, DataAtom: atom.A, Data: "a",
			Attr: []html.Attribute{{Key: "href", Val: tocHref(e.Href, navDir)}},
		}
		a.AppendChild(&html.Node{Type: html.TextNode, Data: e.Title})
		li.AppendChild(a)
		if len(e.Children) > 0 {
			li.AppendChild(buildNavList(e.Children, navDir))
		}
		ol.AppendChild(li)
	}
	return ol
}

// writeNCXTOC replaces the navMap of the NCX with the generated entries,
// keeping the head and docTitle of the existing document.
func (b *Book) writeNCXTOC(ncxID string, entries []*tocEntry) error {
	ncxEntry, err := b.reg.Entry(ncxID)
	if err != nil {
		return err
	}
	ncxDir := path.Dir(ncxEntry.Path)

	data, err := b.ReadFile(ncxID)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	playOrder := 0
	var writePoints func(entries []*tocEntry, indent string)
	writePoints = func(entries []*tocEntry, indent string) {
		for _, e := range entries {
			playOrder++
			fmt.Fprintf(&buf, "%s<navPoint id=\"navPoint-%d\" playOrder=\"%d\">\n", indent, playOrder, playOrder)
			fmt.Fprintf(&buf, "%s  <navLabel><text>%s</text></navLabel>\n", indent, xmlEscapeAttr(e.Title))
			fmt.Fprintf(&buf, "%s  <content src=\"%s\"/>\n", indent, xmlEscapeAttr(tocHref(e.Href, ncxDir)))
			writePoints(e.Children, indent+"  ")
			fmt.Fprintf(&buf, "%s</navPoint>\n", indent)
		}
	}
	writePoints(entries, "    ")

	navMap := "  <navMap>\n" + buf.String() + "  </navMap>"
	out := navMapPattern.ReplaceAll(stripBOM(data), []byte(navMap))
	return b.reg.SetContent(ncxID, out)
}

// navMapPattern matches the whole navMap element for replacement.
var navMapPattern = regexp.MustCompile(`(?s)[ \t]*<navMap[^>]*>.*</navMap>`)

// ncxSrcPattern matches the src attribute of NCX <content> elements.
var ncxSrcPattern = regexp.MustCompile(`(<content\s[^>]*src=")([^"]*)(")`)

// rewriteNCXLinks updates <content src> values in an NCX document according
// to renameMap (old ZIP path -> new ZIP path). Srcs are resolved against
// oldPath, the NCX's location when the links were written, and emitted
// relative to newPath's directory.
func rewriteNCXLinks(data []byte, oldPath, newPath string, renameMap map[string]string) ([]byte, bool) {
	basePath := oldPath
	dir := path.Dir(newPath)
	changed := false
	out := ncxSrcPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		sub := ncxSrcPattern.FindSubmatch(m)
		src := string(sub[2])
		target, fragment, _ := strings.Cut(src, "#")
		if target == "" || hasURIScheme(target) {
			return m
		}
		resolved := resolveRelativePath(basePath, target)
		newPath, ok := renameMap[resolved]
		if !ok {
			return m
		}
		href := escapeHref(relativeTo(dir, newPath))
		if fragment != "" {
			href += "#" + fragment
		}
		changed = true
		return append(append(append([]byte(nil), sub[1]...), href...), sub[3]...)
	})
	return out, changed
}

// tocHref converts a ZIP path with optional fragment into an href relative
// to dir.
func tocHref(zipPathWithFragment, dir string) string {
	target, fragment, _ := strings.Cut(zipPathWithFragment, "#")
	href := escapeHref(relativeTo(dir, target))
	if fragment != "" {
		href += "#" + fragment
	}
	return href
}

// findTOCNav locates the <nav epub:type="toc"> element, falling back to the
// first <nav> when no epub:type is declared.
func findTOCNav(root *html.Node) *html.Node {
	var first, typed *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if typed != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Nav {
			if first == nil {
				first = n
			}
			for _, a := range n.Attr {
				if a.Key == "epub:type" || strings.HasSuffix(a.Key, ":type") {
					for _, tok := range strings.Fields(a.Val) {
						if tok == "toc" {
							typed = n
							return
						}
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	if typed != nil {
		return typed
	}
	return first
}

// nodeAttr returns the value of the named attribute on n, or "".
func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
