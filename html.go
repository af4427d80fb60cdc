package epubfile

import (
	"bytes"
	"errors"
	"io"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// entityNameToNumeric maps lowercase HTML entity names to their XML numeric
// character references. encoding/xml does not recognise HTML named entities,
// so we convert them before parsing OPF/NCX files.
var entityNameToNumeric = map[string][]byte{
	"nbsp": []byte("&#160;"), "mdash": []byte("&#8212;"), "ndash": []byte("&#8211;"),
	"hellip": []byte("&#8230;"),
	"lsquo": []byte("&#8216;"), "rsquo": []byte("&#8217;"),
	"ldquo": []byte("&#8220;"), "rdquo": []byte("&#8221;"),
	"copy": []byte("&#169;"), "reg": []byte("&#174;"), "trade": []byte("&#8482;"),
	"bull": []byte("&#8226;"), "middot": []byte("&#183;"),
	"eacute": []byte("&#233;"), "egrave": []byte("&#232;"),
	"ecirc": []byte("&#234;"), "euml": []byte("&#235;"),
	"aacute": []byte("&#225;"), "agrave": []byte("&#224;"),
	"acirc": []byte("&#226;"), "auml": []byte("&#228;"),
	"iacute": []byte("&#237;"), "igrave": []byte("&#236;"),
	"icirc": []byte("&#238;"), "iuml": []byte("&#239;"),
	"oacute": []byte("&#243;"), "ograve": []byte("&#242;"),
	"ocirc": []byte("&#244;"), "ouml": []byte("&#246;"),
	"uacute": []byte("&#250;"), "ugrave": []byte("&#249;"),
	"ucirc": []byte("&#251;"), "uuml": []byte("&#252;"),
	"ntilde": []byte("&#241;"), "ccedil": []byte("&#231;"),
	"times": []byte("&#215;"), "divide": []byte("&#247;"),
	"deg": []byte("&#176;"), "para": []byte("&#182;"), "sect": []byte("&#167;"),
	"laquo": []byte("&#171;"), "raquo": []byte("&#187;"),
	"iexcl": []byte("&#161;"), "iquest": []byte("&#191;"),
}

// htmlEntityPattern matches common HTML named entities case-insensitively.
var htmlEntityPattern = regexp.MustCompile(
	`(?i)&(nbsp|mdash|ndash|hellip|lsquo|rsquo|ldquo|rdquo|copy|reg|trade|bull|middot|` +
		`eacute|egrave|ecirc|euml|aacute|agrave|acirc|auml|iacute|igrave|icirc|iuml|` +
		`oacute|ograve|ocirc|ouml|uacute|ugrave|ucirc|uuml|ntilde|ccedil|` +
		`times|divide|deg|para|sect|laquo|raquo|iexcl|iquest);`)

// preprocessHTMLEntities replaces common HTML named entities with their
// numeric character references so that encoding/xml can parse the data.
// The matching is case-insensitive to handle non-standard ePub content.
func preprocessHTMLEntities(data []byte) []byte {
	return htmlEntityPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		// Extract entity name between & and ;, lowercase for lookup.
		name := strings.ToLower(string(match[1 : len(match)-1]))
		if replacement, ok := entityNameToNumeric[name]; ok {
			return replacement
		}
		return match
	})
}

// linkAttributes maps element tags to the attributes that may carry
// package-internal links and therefore need rewriting after a rename.
var linkAttributes = map[atom.Atom][]string{
	atom.A:      {"href"},
	atom.Audio:  {"src"},
	atom.Image:  {"href", "xlink:href"},
	atom.Img:    {"src"},
	atom.Link:   {"href"},
	atom.Script: {"src"},
	atom.Source: {"src"},
	atom.Track:  {"src"},
	atom.Video:  {"src", "poster"},
}

// rewriteLinks updates every package-internal link in htmlData according to
// renameMap (old ZIP-internal path -> new ZIP-internal path). basePath is the
// ZIP-internal path of the document itself; links are emitted relative to its
// directory. Fragments survive rewriting. The second return reports whether
// anything changed; when false the input bytes are returned untouched.
func rewriteLinks(htmlData []byte, basePath string, renameMap map[string]string) ([]byte, bool) {
	return rewriteLinksRebased(htmlData, basePath, basePath, renameMap)
}

// rewriteLinksRebased is rewriteLinks for a document that itself moved:
// links are resolved against oldPath but emitted relative to newPath's
// directory. Merging copies documents between packages this way.
func rewriteLinksRebased(htmlData []byte, oldPath, newPath string, renameMap map[string]string) ([]byte, bool) {
	if len(renameMap) == 0 {
		return htmlData, false
	}

	body := htmlData
	hadDecl := xmlDeclPattern.Match(body)
	if hadDecl {
		body = xmlDeclPattern.ReplaceAll(body, nil)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return htmlData, false
	}

	changed := rewriteLinkNode(doc, oldPath, path.Dir(newPath), renameMap)
	if !changed {
		return htmlData, false
	}

	var buf bytes.Buffer
	if hadDecl {
		buf.WriteString(xhtmlDeclaration)
	}
	if err := html.Render(&buf, doc); err != nil {
		return htmlData, false
	}
	return buf.Bytes(), true
}

// rewriteLinkNode walks the DOM subtree, rewriting renamed link targets in
// link attributes, <style> content, and style attributes.
func rewriteLinkNode(n *html.Node, basePath, emitDir string, renameMap map[string]string) bool {
	changed := false
	if n.Type == html.ElementNode {
		if attrs, ok := linkAttributes[n.DataAtom]; ok {
			for _, name := range attrs {
				if rewriteRenamedAttr(n, name, basePath, emitDir, renameMap) {
					changed = true
				}
			}
		}
		if n.DataAtom == atom.Style {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type != html.TextNode {
					continue
				}
				if out, ok := rewriteCSSURLs(c.Data, basePath, emitDir, renameMap); ok {
					c.Data = out
					changed = true
				}
			}
		}
		for i, attr := range n.Attr {
			if attr.Key != "style" || attr.Namespace != "" {
				continue
			}
			if out, ok := rewriteCSSURLs(attr.Val, basePath, emitDir, renameMap); ok {
				n.Attr[i].Val = out
				changed = true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if rewriteLinkNode(c, basePath, emitDir, renameMap) {
			changed = true
		}
	}
	return changed
}

// cssURLPattern matches url(...) tokens in stylesheet text. Quoting and
// surrounding whitespace are handled when the token is rewritten.
var cssURLPattern = regexp.MustCompile(`(?i)url\(([^)]*)\)`)

// rewriteCSSURLs updates every package-internal url(...) reference in css
// according to renameMap. References are resolved against basePath and
// emitted relative to emitDir, keeping their quoting style. Used for
// stylesheet files as well as <style> tags and style attributes, so renamed
// images referenced via background-image stay reachable.
func rewriteCSSURLs(css, basePath, emitDir string, renameMap map[string]string) (string, bool) {
	if len(renameMap) == 0 {
		return css, false
	}
	changed := false
	out := cssURLPattern.ReplaceAllStringFunc(css, func(match string) string {
		val := strings.TrimSpace(match[4 : len(match)-1])
		quote := ""
		if len(val) >= 2 && (val[0] == '\'' || val[0] == '"') && val[len(val)-1] == val[0] {
			quote = string(val[0])
			val = val[1 : len(val)-1]
		}
		if val == "" || strings.HasPrefix(val, "#") || hasURIScheme(val) {
			return match
		}
		target, fragment, _ := strings.Cut(val, "#")
		resolved := resolveRelativePath(basePath, target)
		if resolved == "" {
			return match
		}
		newPath, ok := renameMap[resolved]
		if !ok {
			return match
		}
		newVal := escapeHref(relativeTo(emitDir, newPath))
		if fragment != "" {
			newVal += "#" + fragment
		}
		changed = true
		return "url(" + quote + newVal + quote + ")"
	})
	return out, changed
}

// rewriteRenamedAttr rewrites one attribute of n if it resolves to a renamed
// path. External links (any URI scheme) and bare fragments are left alone.
func rewriteRenamedAttr(n *html.Node, name, basePath, emitDir string, renameMap map[string]string) bool {
	for i, attr := range n.Attr {
		if !matchAttr(attr, name) {
			continue
		}
		val := attr.Val
		if val == "" || strings.HasPrefix(val, "#") || hasURIScheme(val) {
			continue
		}
		target, fragment, _ := strings.Cut(val, "#")
		resolved := resolveRelativePath(basePath, target)
		if resolved == "" {
			continue
		}
		newPath, ok := renameMap[resolved]
		if !ok {
			continue
		}
		newVal := escapeHref(relativeTo(emitDir, newPath))
		if fragment != "" {
			newVal += "#" + fragment
		}
		n.Attr[i].Val = newVal
		return true
	}
	return false
}

// matchAttr checks if an html.Attribute matches the given attribute name,
// which may carry a namespace prefix like "xlink:href".
func matchAttr(attr html.Attribute, name string) bool {
	if ns, key, ok := strings.Cut(name, ":"); ok {
		if attr.Namespace == ns && attr.Key == key {
			return true
		}
		return attr.Key == name
	}
	return attr.Key == name && attr.Namespace == ""
}

// hasURIScheme reports whether s starts with a URI scheme like "mailto:" or
// "https:".
func hasURIScheme(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	// RFC 3986: URI scheme must start with a letter.
	if !((s[0] >= 'A' && s[0] <= 'Z') || (s[0] >= 'a' && s[0] <= 'z')) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ':' {
			return i > 1
		}
		if !(c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
			return false
		}
	}
	return false
}

// headingLevels maps heading atoms to their level, 1 through 6.
var headingLevels = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// headingAtomForLevel is the inverse of headingLevels.
var headingAtomForLevel = [...]atom.Atom{0, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

// shiftHeadings renames every <h1>..<h6> element by delta levels, clamped to
// the h1..h6 range. delta +1 demotes (h1 becomes h2), -1 promotes.
func shiftHeadings(htmlData []byte, delta int) []byte {
	body := htmlData
	hadDecl := xmlDeclPattern.Match(body)
	if hadDecl {
		body = xmlDeclPattern.ReplaceAll(body, nil)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return htmlData
	}

	shiftHeadingNode(doc, delta)

	var buf bytes.Buffer
	if hadDecl {
		buf.WriteString(xhtmlDeclaration)
	}
	if err := html.Render(&buf, doc); err != nil {
		return htmlData
	}
	return buf.Bytes()
}

func shiftHeadingNode(n *html.Node, delta int) {
	if n.Type == html.ElementNode {
		if level, ok := headingLevels[n.DataAtom]; ok {
			level += delta
			if level < 1 {
				level = 1
			}
			if level > 6 {
				level = 6
			}
			a := headingAtomForLevel[level]
			n.DataAtom = a
			n.Data = a.String()
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		shiftHeadingNode(c, delta)
	}
}

// nodeText collects the concatenated text content of a DOM subtree with
// whitespace runs collapsed.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(collapseWhitespace(sb.String()))
}

// blockTags is the set of tags that should insert a newline when encountered
// during text extraction.
var blockTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Br:         true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Tr:         true,
	atom.Blockquote: true,
	atom.Hr:         true,
}

// skipTags is the set of tags whose content should be skipped during text extraction.
var skipTags = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
}

var selfClosingSkipTagPattern = regexp.MustCompile(`(?is)<(script|style)\b([^>]*)/>`)

func normalizeSelfClosingSkipTags(htmlData []byte) []byte {
	if !selfClosingSkipTagPattern.Match(htmlData) {
		return htmlData
	}
	return selfClosingSkipTagPattern.ReplaceAll(htmlData, []byte(`<$1$2></$1>`))
}

// extractText extracts the plain text content from HTML data.
// Block-level elements (<p>, <br>, <div>, <h1>-<h6>, <li>, <tr>) produce line
// breaks. Content inside <script> and <style> tags is skipped.
func extractText(htmlData []byte) (string, error) {
	htmlData = normalizeSelfClosingSkipTags(htmlData)
	tokenizer := html.NewTokenizer(bytes.NewReader(htmlData))

	var buf strings.Builder
	skipDepth := 0 // depth inside a skip tag
	lastWasNewline := true

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			err := tokenizer.Err()
			if errors.Is(err, io.EOF) {
				return strings.TrimSpace(buf.String()), nil
			}
			return "", err

		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			a := atom.Lookup(tn)
			if skipTags[a] {
				skipDepth++
				continue
			}
			if skipDepth > 0 {
				continue
			}
			if blockTags[a] {
				if buf.Len() > 0 && !lastWasNewline {
					buf.WriteByte('\n')
					lastWasNewline = true
				}
			}

		case html.SelfClosingTagToken:
			tn, _ := tokenizer.TagName()
			a := atom.Lookup(tn)
			if skipDepth > 0 {
				continue
			}
			if blockTags[a] {
				if buf.Len() > 0 && !lastWasNewline {
					buf.WriteByte('\n')
					lastWasNewline = true
				}
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			a := atom.Lookup(tn)
			if skipTags[a] && skipDepth > 0 {
				skipDepth--
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			raw := string(tokenizer.Text())
			// Collapse internal whitespace runs to single spaces, but preserve
			// non-empty content so that inline elements keep their spacing.
			text := collapseWhitespace(raw)
			if text != "" {
				buf.WriteString(text)
				lastWasNewline = strings.HasSuffix(text, "\n")
			}
		}
	}
}

// collapseWhitespace replaces runs of whitespace characters (spaces, tabs,
// newlines) with a single space. Returns empty string if the input is all whitespace.
// Leading and trailing whitespace is preserved as a single space so that
// inter-element spacing (e.g., between inline tags) is maintained.
func collapseWhitespace(s string) string {
	var buf strings.Builder
	inSpace := false
	hasNonSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inSpace = true
		} else {
			if inSpace && buf.Len() > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteRune(r)
			inSpace = false
			hasNonSpace = true
		}
	}
	if !hasNonSpace {
		return ""
	}
	result := buf.String()
	// Preserve leading whitespace as a single space.
	if len(s) > 0 && isWhitespace(rune(s[0])) {
		result = " " + result
	}
	// Preserve trailing whitespace as a single space.
	if inSpace {
		result = result + " "
	}
	return result
}

// isWhitespace returns true if r is a whitespace character.
func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
