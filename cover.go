package epubfile

import (
	"bytes"
	"errors"
	"path"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// CoverImage is a resolved cover: the manifest id, the ZIP-internal path,
// the media type, and the raw image bytes.
type CoverImage struct {
	ID        string
	Path      string
	MediaType string
	Data      []byte
}

// Cover returns the cover image. The designated cover (ePub 3 cover-image
// property or ePub 2 meta, recorded in the session at open time) wins; when
// no cover is designated, detection falls back through:
//  1. <guide> reference type="cover" → parse XHTML for first <img>
//  2. Manifest item whose id or path contains "cover" with image/* media-type
//  3. First spine item's XHTML → first <img>
//
// Fallback detection never mutates the session; use SetCoverImage to
// designate a cover permanently. Returns ErrNoCover if nothing matches.
func (b *Book) Cover() (CoverImage, error) {
	if id, ok := b.reg.Cover(); ok {
		return b.loadCoverImage(id)
	}

	if id := b.coverFromGuide(); id != "" {
		return b.loadCoverImage(id)
	}

	if id := b.coverFromManifestHeuristic(); id != "" {
		return b.loadCoverImage(id)
	}

	if id := b.coverFromFirstSpine(); id != "" {
		return b.loadCoverImage(id)
	}

	return CoverImage{}, ErrNoCover
}

// CoverID returns the designated cover id, if any. Unlike Cover, it does not
// run fallback detection.
func (b *Book) CoverID() (string, bool) {
	return b.reg.Cover()
}

// SetCoverImage designates the image entry id as the cover. On Save the
// designation is written as both the ePub 3 cover-image property and the
// ePub 2 cover meta, so it survives either generation of reader.
func (b *Book) SetCoverImage(id string) error {
	if b.readOnly {
		return ErrReadOnly
	}
	return b.reg.SetCover(id)
}

// RemoveCoverImage clears the cover designation. The image itself stays in
// the manifest.
func (b *Book) RemoveCoverImage() error {
	if b.readOnly {
		return ErrReadOnly
	}
	b.reg.ClearCover()
	return nil
}

// CoverComesFirst renames image files so the cover sorts first among them
// alphabetically. Some readers thumbnail the first image in the archive
// regardless of the declared cover, so the cover basename gets a "!" prefix
// and any image still sorting before it gets a "_" prefix. Interlinks are
// repaired through the rename. Without a cover or with a single image this
// is a no-op.
func (b *Book) CoverComesFirst() error {
	if b.readOnly {
		return ErrReadOnly
	}
	images := b.Images()
	if len(images) <= 1 {
		return nil
	}

	cover, err := b.Cover()
	if err != nil {
		if errors.Is(err, ErrNoCover) {
			return nil
		}
		return err
	}

	basenames := make(map[string]string, len(images))
	sorted := make([]string, 0, len(images))
	for _, id := range images {
		entry, err := b.reg.Entry(id)
		if err != nil {
			return err
		}
		basenames[id] = path.Base(entry.Path)
		sorted = append(sorted, path.Base(entry.Path))
	}
	slices.Sort(sorted)

	coverBase := basenames[cover.ID]
	if sorted[0] == coverBase {
		return nil
	}

	names := make(map[string]string, len(images))
	if !strings.HasPrefix(coverBase, "!") {
		coverBase = "!" + coverBase
		names[cover.ID] = coverBase
	}
	for id, base := range basenames {
		if id == cover.ID {
			continue
		}
		renamed := base
		if renamed < coverBase && strings.HasPrefix(renamed, "!") {
			renamed = strings.TrimLeft(renamed, "!")
		}
		if renamed < coverBase || strings.HasPrefix(renamed, ".") {
			renamed = "_" + renamed
		}
		if renamed != base {
			names[id] = renamed
		}
	}
	return b.RenameFiles(names)
}

// coverFromGuide searches the <guide> for a reference with type="cover",
// reads that XHTML file, and extracts the first <img> src to resolve an
// image entry.
func (b *Book) coverFromGuide() string {
	for _, ref := range b.guide {
		if !strings.EqualFold(ref.Type, "cover") {
			continue
		}
		// Strip fragment from href.
		href := ref.Href
		if idx := strings.IndexByte(href, '#'); idx >= 0 {
			href = href[:idx]
		}

		xhtmlPath := b.resolveOPFPath(href)
		data, err := b.readPath(xhtmlPath)
		if err != nil {
			continue
		}

		imgPath := findFirstImageInHTML(data, xhtmlPath)
		if imgPath == "" {
			continue
		}

		if id := b.resolveImageID(imgPath); id != "" {
			return id
		}
	}
	return ""
}

// coverFromManifestHeuristic searches the manifest in insertion order for an
// image entry whose id or path contains "cover" (case-insensitive).
func (b *Book) coverFromManifestHeuristic() string {
	for id := range b.reg.Images() {
		entry, err := b.reg.Entry(id)
		if err != nil {
			continue
		}
		if containsFold(entry.ID, "cover") || containsFold(entry.Path, "cover") {
			return id
		}
	}
	return ""
}

// coverFromFirstSpine reads the first spine item's XHTML content and extracts
// the first <img> src to resolve an image entry.
func (b *Book) coverFromFirstSpine() string {
	spine := b.reg.SpineOrder()
	if len(spine) == 0 {
		return ""
	}
	entry, err := b.reg.Entry(spine[0])
	if err != nil {
		return ""
	}

	data, err := b.ReadFile(spine[0])
	if err != nil {
		return ""
	}

	imgPath := findFirstImageInHTML(data, entry.Path)
	if imgPath == "" {
		return ""
	}

	return b.resolveImageID(imgPath)
}

// loadCoverImage reads the image data for the entry id and constructs a
// CoverImage. The path stored is the full ZIP-internal path.
func (b *Book) loadCoverImage(id string) (CoverImage, error) {
	entry, err := b.reg.Entry(id)
	if err != nil {
		return CoverImage{}, err
	}
	data, err := b.ReadFile(id)
	if err != nil {
		return CoverImage{}, err
	}
	return CoverImage{
		ID:        id,
		Path:      entry.Path,
		MediaType: entry.MediaType,
		Data:      data,
	}, nil
}

// resolveImageID resolves a ZIP-internal image path to the id of an image
// entry. It tries an exact path match first, then falls back to a
// case-insensitive scan.
func (b *Book) resolveImageID(absPath string) string {
	if id, ok := b.reg.IDByPath(absPath); ok {
		if entry, err := b.reg.Entry(id); err == nil && entry.Kind == KindImage {
			return id
		}
	}

	for id := range b.reg.Images() {
		entry, err := b.reg.Entry(id)
		if err != nil {
			continue
		}
		if strings.EqualFold(entry.Path, absPath) {
			return id
		}
	}
	return ""
}

// findFirstImageInHTML parses HTML data and returns the resolved ZIP-internal
// path of the first <img> element's src attribute. If no image is found,
// returns an empty string. basePath is the ZIP-internal path of the HTML file,
// used to resolve relative image paths.
func findFirstImageInHTML(htmlData []byte, basePath string) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(htmlData))
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			a := atom.Lookup(tn)
			if a == atom.Img && hasAttr {
				for {
					key, val, more := tokenizer.TagAttr()
					if string(key) == "src" && string(val) != "" {
						return resolveRelativePath(basePath, string(val))
					}
					if !more {
						break
					}
				}
			}
			// Also check SVG <image> element with xlink:href or href.
			if a == atom.Image && hasAttr {
				for {
					key, val, more := tokenizer.TagAttr()
					k := string(key)
					if (k == "href" || k == "xlink:href") && string(val) != "" {
						return resolveRelativePath(basePath, string(val))
					}
					if !more {
						break
					}
				}
			}
		}
	}
}

// containsFold reports whether s contains substr, case-insensitively.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
