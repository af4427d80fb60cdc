package epubfile

import (
	"fmt"
	"html"
	"path"
	"strings"
)

// MergeOptions controls how Merge combines books.
type MergeOptions struct {
	// HeaderPages inserts a generated page before each source book showing
	// its title and authors.
	HeaderPages bool

	// DemoteHeadings shifts every heading in the source documents down one
	// level (h1 becomes h2, and so on), leaving h1 free for the header pages.
	DemoteHeadings bool
}

// Merge combines several books into one new book. Each source book's files
// are copied under a numbered prefix so names never collide, the spines are
// concatenated in order, and every internal link is repaired for the new
// layout. The merged book takes its title and authors from the first source
// that has them.
func Merge(books []*Book, opts MergeOptions) (*Book, error) {
	merged := New()

	for i, src := range books {
		prefix := fmt.Sprintf("%d_", i+1)

		if opts.HeaderPages {
			if _, err := merged.AddFile(prefix+"header.xhtml", headerPage(src.Metadata())); err != nil {
				return nil, err
			}
		}

		if err := mergeBook(merged, src, prefix, opts.DemoteHeadings); err != nil {
			return nil, fmt.Errorf("epubfile: merge book %d: %w", i+1, err)
		}
	}

	if err := merged.MoveNavToEnd(); err != nil {
		return nil, err
	}
	return merged, nil
}

// mergeBook copies one source book into dst under the given basename prefix.
func mergeBook(dst *Book, src *Book, prefix string, demote bool) error {
	// Skip the source's own TOC machinery; the merged book has its own.
	skip := map[string]bool{}
	if nav := src.Nav(); nav != "" {
		skip[nav] = true
	}
	if ncx := src.NCX(); ncx != "" {
		skip[ncx] = true
	}

	// Plan destination paths first so link rewriting can see the whole map.
	renameMap := make(map[string]string) // src ZIP path -> dst ZIP path
	newPaths := make(map[string]string)  // src id -> dst ZIP path
	for _, id := range src.IDs() {
		if skip[id] {
			continue
		}
		entry, err := src.Entry(id)
		if err != nil {
			return err
		}
		dstPath := dst.placePath(prefix+path.Base(entry.Path), entry.MediaType)
		renameMap[entry.Path] = dstPath
		newPaths[id] = dstPath
	}

	for _, id := range src.IDs() {
		dstPath, ok := newPaths[id]
		if !ok {
			continue
		}
		entry, err := src.Entry(id)
		if err != nil {
			return err
		}
		data, err := src.ReadFile(id)
		if err != nil {
			return fmt.Errorf("read %q: %w", entry.Path, err)
		}

		if entry.Kind == KindText {
			if rewritten, changed := rewriteLinksRebased(data, entry.Path, dstPath, renameMap); changed {
				data = rewritten
			}
			if demote {
				data = shiftHeadings(data, 1)
			}
		}

		if _, err := dst.reg.Add(dstPath, entry.MediaType, data); err != nil {
			return err
		}
	}

	// Concatenate the source's reading order, preserving non-linear flags.
	spine := dst.SpineOrder()
	var added []string
	for _, srcID := range src.SpineOrder() {
		dstPath, ok := newPaths[srcID]
		if !ok {
			continue
		}
		dstID, ok := dst.reg.IDByPath(dstPath)
		if !ok {
			continue
		}
		spine = append(spine, dstID)
		added = append(added, srcID)
	}
	if err := dst.reg.SetSpineOrder(spine); err != nil {
		return err
	}
	for _, srcID := range added {
		if linear, err := src.reg.Linear(srcID); err == nil && !linear {
			dstID, _ := dst.reg.IDByPath(newPaths[srcID])
			_ = dst.reg.SetLinear(dstID, false)
		}
	}

	// First source with a designated cover wins.
	if _, ok := dst.CoverID(); !ok {
		if srcCover, ok := src.CoverID(); ok {
			if dstPath, ok := newPaths[srcCover]; ok {
				if dstID, ok := dst.reg.IDByPath(dstPath); ok {
					_ = dst.reg.SetCover(dstID)
				}
			}
		}
	}

	// Adopt title and authors from the first contributing book.
	dstMeta := dst.Metadata()
	srcMeta := src.Metadata()
	if len(dstMeta.Titles) > 0 && dstMeta.Titles[0] == "Untitled" && len(srcMeta.Titles) > 0 {
		dst.metadata.Titles = append([]string(nil), srcMeta.Titles...)
		dst.metadata.Authors = append([]Author(nil), srcMeta.Authors...)
		dst.rewriteTitleMetadata(srcMeta)
	}

	return nil
}

// rewriteTitleMetadata replaces the placeholder dc:title in the raw metadata
// block with the adopted title and appends dc:creator elements.
func (b *Book) rewriteTitleMetadata(meta Metadata) {
	if len(meta.Titles) == 0 {
		return
	}
	title := "<dc:title>" + html.EscapeString(meta.Titles[0]) + "</dc:title>"
	b.metadataRaw = strings.Replace(b.metadataRaw, "<dc:title>Untitled</dc:title>", title, 1)
	for _, a := range meta.Authors {
		b.metadataRaw += "\n    <dc:creator>" + html.EscapeString(a.Name) + "</dc:creator>"
	}
}

// headerPage renders a simple title page for one merged source book.
func headerPage(meta Metadata) []byte {
	title := "Untitled"
	if len(meta.Titles) > 0 {
		title = meta.Titles[0]
	}
	var authors []string
	for _, a := range meta.Authors {
		authors = append(authors, a.Name)
	}

	var sb strings.Builder
	sb.WriteString(xhtmlDeclaration)
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml">` + "\n<head>\n  <title>")
	sb.WriteString(html.EscapeString(title))
	sb.WriteString("</title>\n</head>\n<body>\n  <h1>")
	sb.WriteString(html.EscapeString(title))
	sb.WriteString("</h1>\n")
	if len(authors) > 0 {
		sb.WriteString("  <p>" + html.EscapeString(strings.Join(authors, ", ")) + "</p>\n")
	}
	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String())
}
