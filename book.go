package epubfile

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Book is an open editing session over one ePub package. It owns a Registry
// holding the manifest, spine, and cover bookkeeping; file bytes are loaded
// lazily from the source archive and staged in the registry when modified.
//
// A Book is not safe for concurrent use by multiple goroutines. Books for
// different packages are fully independent.
type Book struct {
	zip      *zip.Reader
	zipExact map[string]*zip.File // exact-match ZIP file index
	zipLower map[string]*zip.File // lowercase ZIP file index
	closer   io.Closer            // non-nil only when created via Open()

	opfPath     string
	opfDir      string
	version     string
	uniqueID    string
	metadataRaw string
	guide       []guideReference

	reg      *Registry
	props    map[string]string // preserved manifest properties by id
	archived map[string]string // id -> path in the source archive, fixed at open
	metadata Metadata
	warnings []string
	readOnly bool
}

// Option configures a Book at open time.
type Option func(*Book)

// WithReadOnly forbids every mutating operation on the book; they return
// ErrReadOnly. Useful when only inspecting a package.
func WithReadOnly() Option {
	return func(b *Book) { b.readOnly = true }
}

// Open opens an ePub file at the given path for editing.
// The caller must call Close when done with the book.
func Open(name string, opts ...Option) (*Book, error) {
	zrc, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("epubfile: open %s: %w", name, err)
	}

	b, err := initBook(&zrc.Reader, zrc, opts)
	if err != nil {
		zrc.Close()
		return nil, err
	}
	return b, nil
}

// NewReader creates a Book from an io.ReaderAt with the given size.
// The caller is responsible for the lifetime of r; Close only cleans
// up internal state.
func NewReader(r io.ReaderAt, size int64, opts ...Option) (*Book, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("epubfile: open zip: %w", err)
	}

	return initBook(zr, nil, opts)
}

// Skeleton content for New(). The identifier placeholder is replaced with a
// fresh urn:uuid at creation time.
const (
	newBookNCX = `<?xml version="1.0" encoding="utf-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head>
    <meta name="dtb:uid" content="%s"/>
  </head>
  <docTitle>
    <text>Untitled</text>
  </docTitle>
  <navMap>
  </navMap>
</ncx>
`

	newBookNav = `<?xml version="1.0" encoding="utf-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head>
  <meta charset="utf-8"/>
  <title>Table of Contents</title>
</head>
<body epub:type="frontmatter">
  <nav epub:type="toc" id="toc">
    <h1>Table of Contents</h1>
    <ol>
    </ol>
  </nav>
</body>
</html>
`
)

// New creates an empty book with a fresh identifier, a nav document, and an
// NCX, mirroring the skeleton a fresh authoring session starts from.
// The book has no backing archive; every entry is staged in memory.
func New() *Book {
	uid := "urn:uuid:" + uuid.NewString()

	b := &Book{
		opfPath:  "OEBPS/content.opf",
		opfDir:   "OEBPS",
		version:  "3.0",
		uniqueID: "BookId",
		metadataRaw: fmt.Sprintf(`<dc:identifier id="BookId">%s</dc:identifier>
    <dc:title>Untitled</dc:title>
    <dc:language>und</dc:language>`, uid),
		reg:   NewRegistry(),
		props: make(map[string]string),
	}

	// Errors are impossible here: the registry is empty and the ids fresh.
	_ = b.reg.AddWithID("ncx", "OEBPS/toc.ncx", "application/x-dtbncx+xml", fmt.Appendf(nil, newBookNCX, uid))
	_ = b.reg.AddWithID("nav", "OEBPS/Text/nav.xhtml", "application/xhtml+xml", []byte(newBookNav))
	b.props["nav"] = "nav"
	_ = b.reg.SetSpineOrder([]string{"nav"})
	_ = b.reg.SetLinear("nav", false)

	b.metadata = Metadata{Version: "3.0", Titles: []string{"Untitled"}, Language: []string{"und"},
		Identifiers: []Identifier{{Value: uid, ID: "BookId"}}}
	return b
}

// initBook performs common initialisation: mimetype validation, container
// parsing, DRM detection, and registry population from the OPF.
func initBook(zr *zip.Reader, closer io.Closer, opts []Option) (*Book, error) {
	b := &Book{
		zip:      zr,
		closer:   closer,
		reg:      NewRegistry(),
		props:    make(map[string]string),
		archived: make(map[string]string),
	}
	for _, opt := range opts {
		opt(b)
	}

	// Build ZIP file index for O(1) lookups.
	b.buildZipIndex()

	// Validate mimetype.
	b.validateMimetype()

	// Parse container to find OPF path.
	opfPath, err := parseContainer(zr)
	if err != nil {
		return nil, err
	}
	b.opfPath = opfPath
	b.opfDir = path.Dir(opfPath)

	// Check for DRM.
	fontObfuscation, err := checkDRM(zr)
	if err != nil {
		return nil, err
	}
	if fontObfuscation {
		b.warnings = append(b.warnings, "font obfuscation detected; obfuscated fonts may not render correctly")
	}

	// Read and parse OPF.
	opfFile := b.findFile(opfPath)
	if opfFile == nil {
		return nil, fmt.Errorf("epubfile: OPF file not found in archive: %s: %w", opfPath, ErrInvalidEPub)
	}
	opfData, err := readZipFile(opfFile)
	if err != nil {
		return nil, fmt.Errorf("epubfile: read OPF file: %w", err)
	}

	pkg, err := parseOPF(opfData)
	if err != nil {
		return nil, err
	}

	b.version = pkg.Version
	b.uniqueID = pkg.UniqueIdentifier
	b.metadataRaw = strings.TrimSpace(pkg.Metadata.InnerXML)
	b.guide = buildGuide(pkg.Guide)
	b.metadata = extractMetadata(pkg)
	b.populateRegistry(pkg)

	return b, nil
}

// populateRegistry reconstructs registry state from the parsed OPF: manifest
// entries in document order, the spine restricted to text documents, linear
// flags, and the cover designation. Malformed references become warnings
// rather than errors; an editing session should open what readers tolerate.
func (b *Book) populateRegistry(pkg *opfPackage) {
	for _, item := range pkg.Manifest.Items {
		if item.ID == "" || item.Href == "" {
			b.warnings = append(b.warnings, fmt.Sprintf("manifest item %q skipped: missing id or href", item.ID))
			continue
		}
		zipPath := b.resolveOPFPath(item.Href)
		if zipPath == "" {
			b.warnings = append(b.warnings, fmt.Sprintf("manifest item %q skipped: unsafe href %q", item.ID, item.Href))
			continue
		}
		if err := b.reg.AddWithID(item.ID, zipPath, item.MediaType, nil); err != nil {
			b.warnings = append(b.warnings, fmt.Sprintf("manifest item %q skipped: %v", item.ID, err))
			continue
		}
		b.archived[item.ID] = zipPath

		props := strings.Fields(item.Properties)
		kept := props[:0]
		isCover := false
		for _, p := range props {
			if p == "cover-image" {
				isCover = true
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) > 0 {
			b.props[item.ID] = strings.Join(kept, " ")
		}
		if isCover {
			if err := b.reg.SetCover(item.ID); err != nil {
				b.warnings = append(b.warnings, fmt.Sprintf("cover-image property on %q ignored: %v", item.ID, err))
			}
		}
	}

	// Spine: keep text documents, drop anything else with a warning.
	var order []string
	nonLinear := make(map[string]bool)
	for _, ref := range pkg.Spine.ItemRefs {
		entry, err := b.reg.Entry(ref.IDRef)
		if err != nil {
			b.warnings = append(b.warnings, fmt.Sprintf("spine itemref %q dropped: not in manifest", ref.IDRef))
			continue
		}
		if entry.Kind != KindText {
			b.warnings = append(b.warnings, fmt.Sprintf("spine itemref %q dropped: %s is not a text document", ref.IDRef, entry.MediaType))
			continue
		}
		order = append(order, ref.IDRef)
		if ref.Linear == "no" {
			nonLinear[ref.IDRef] = true
		}
	}
	if err := b.reg.SetSpineOrder(order); err != nil {
		b.warnings = append(b.warnings, fmt.Sprintf("spine rejected: %v", err))
	} else {
		for id := range nonLinear {
			_ = b.reg.SetLinear(id, false)
		}
	}

	// ePub 2 cover designation via <meta name="cover" content="ID"/>.
	if _, ok := b.reg.Cover(); !ok {
		for _, m := range pkg.Metadata.Metas {
			if strings.EqualFold(m.Name, "cover") && m.Content != "" {
				if err := b.reg.SetCover(m.Content); err == nil {
					break
				}
			}
		}
	}
}

// validateMimetype checks that the first ZIP entry is named "mimetype" and
// contains "application/epub+zip". Deviations are recorded as warnings.
func (b *Book) validateMimetype() {
	if len(b.zip.File) == 0 {
		b.warnings = append(b.warnings, "empty ZIP archive; mimetype entry missing")
		return
	}

	first := b.zip.File[0]
	if first.Name != "mimetype" {
		b.warnings = append(b.warnings, "first ZIP entry is not \"mimetype\"")
		return
	}

	data, err := readZipFile(first)
	if err != nil {
		b.warnings = append(b.warnings, fmt.Sprintf("cannot read mimetype entry: %v", err))
		return
	}

	if string(data) != expectedMimetype {
		b.warnings = append(b.warnings, fmt.Sprintf("unexpected mimetype: %q", string(data)))
	}
}

// Close releases resources held by the Book. When the Book was created via
// Open, Close closes the underlying file. Close is idempotent.
func (b *Book) Close() error {
	if b.closer != nil {
		err := b.closer.Close()
		b.closer = nil
		return err
	}
	return nil
}

// Warnings returns the list of non-fatal conditions recorded while opening
// and editing the book.
func (b *Book) Warnings() []string {
	return append([]string(nil), b.warnings...)
}

// Metadata returns the Dublin Core metadata read from the OPF.
func (b *Book) Metadata() Metadata {
	return copyMetadata(b.metadata)
}

// buildZipIndex builds exact-match and lowercase ZIP file indexes for O(1) lookups.
func (b *Book) buildZipIndex() {
	b.zipExact = make(map[string]*zip.File, len(b.zip.File))
	b.zipLower = make(map[string]*zip.File, len(b.zip.File))
	for _, f := range b.zip.File {
		if _, exists := b.zipExact[f.Name]; !exists {
			b.zipExact[f.Name] = f // first match wins for exact
		}
		lower := strings.ToLower(f.Name)
		if _, exists := b.zipLower[lower]; !exists {
			b.zipLower[lower] = f // first match wins for case-insensitive
		}
	}
}

// findFile looks up a ZIP entry by path using the pre-built index.
// It tries an exact match first, then falls back to a case-insensitive match.
func (b *Book) findFile(name string) *zip.File {
	if f, ok := b.zipExact[name]; ok {
		return f
	}
	if f, ok := b.zipLower[strings.ToLower(name)]; ok {
		return f
	}
	return nil
}

// resolveOPFPath resolves a manifest href relative to the OPF directory into
// a ZIP-internal path. Unsafe hrefs resolve to empty.
func (b *Book) resolveOPFPath(href string) string {
	if href == "" {
		return ""
	}
	if b.opfDir == "." {
		if !isSafePath(href) {
			return ""
		}
		return path.Clean(href)
	}
	return resolveRelativePath(b.opfPath, href)
}

// relHref converts a ZIP-internal path into an href relative to the OPF
// directory, the form manifest items and guide references use.
func (b *Book) relHref(zipPath string) string {
	return relativeTo(b.opfDir, zipPath)
}

// readPath reads raw bytes for a ZIP-internal path from the source archive.
func (b *Book) readPath(name string) ([]byte, error) {
	if b.zip == nil {
		return nil, ErrFileNotFound
	}
	f := b.findFile(name)
	if f == nil {
		return nil, ErrFileNotFound
	}
	return readZipFile(f)
}

// ReadFile returns the current bytes of the manifest entry id: staged
// content if the entry was written this session, otherwise the bytes from
// the source archive. Archive reads use the path the entry had at open
// time, so a renamed entry still resolves to its original bytes.
func (b *Book) ReadFile(id string) ([]byte, error) {
	content, staged, err := b.reg.Content(id)
	if err != nil {
		return nil, err
	}
	if staged {
		return content, nil
	}
	if orig, ok := b.archived[id]; ok {
		return b.readPath(orig)
	}
	entry, err := b.reg.Entry(id)
	if err != nil {
		return nil, err
	}
	return b.readPath(entry.Path)
}

// WriteFile stages new bytes for the manifest entry id. The archive is not
// touched until Save.
func (b *Book) WriteFile(id string, content []byte) error {
	if b.readOnly {
		return ErrReadOnly
	}
	return b.reg.SetContent(id, content)
}

// AddFile registers a new file under a freshly generated id. The media type
// is inferred from the name and the file is placed in the conventional
// subdirectory for its type (Text/, Images/, Styles/, ...). Text documents
// are appended to the spine. Returns the new id.
func (b *Book) AddFile(name string, content []byte) (string, error) {
	if b.readOnly {
		return "", ErrReadOnly
	}
	basename := path.Base(name)
	mediaType := mediaTypeForName(basename)
	id, err := b.reg.Add(b.placePath(basename, mediaType), mediaType, content)
	if err != nil {
		return "", err
	}
	b.appendTextToSpine(id)
	return id, nil
}

// AddFileWithID is AddFile with a caller-chosen id. The id must never have
// been used in this session.
func (b *Book) AddFileWithID(id, name string, content []byte) error {
	if b.readOnly {
		return ErrReadOnly
	}
	basename := path.Base(name)
	mediaType := mediaTypeForName(basename)
	if err := b.reg.AddWithID(id, b.placePath(basename, mediaType), mediaType, content); err != nil {
		return err
	}
	b.appendTextToSpine(id)
	return nil
}

// placePath chooses the ZIP-internal path for a newly added basename.
func (b *Book) placePath(basename, mediaType string) string {
	dir := directoryForMediaType(mediaType)
	parts := make([]string, 0, 3)
	if b.opfDir != "." {
		parts = append(parts, b.opfDir)
	}
	if dir != "." {
		parts = append(parts, dir)
	}
	parts = append(parts, basename)
	return path.Join(parts...)
}

// appendTextToSpine appends a freshly added text entry to the spine.
func (b *Book) appendTextToSpine(id string) {
	entry, err := b.reg.Entry(id)
	if err != nil || entry.Kind != KindText {
		return
	}
	_ = b.reg.SetSpineOrder(append(b.reg.SpineOrder(), id))
}

// DeleteFile removes the manifest entry id. The id leaves the spine, the
// cover designation is cleared if it pointed there, and the id can never
// be used again in this session.
func (b *Book) DeleteFile(id string) error {
	if b.readOnly {
		return ErrReadOnly
	}
	if err := b.reg.Remove(id); err != nil {
		return err
	}
	delete(b.props, id)
	delete(b.archived, id)
	return nil
}

// RenameFile changes the basename of the entry id, keeping its directory.
// A missing extension is inherited from the old name. Every link to the file
// in text documents, the NCX, and the guide is repaired.
func (b *Book) RenameFile(id, newBasename string) error {
	return b.RenameFiles(map[string]string{id: newBasename})
}

// RenameFiles renames several entries in one pass, repairing interlinks once.
// Validation is performed for all renames before any is applied.
func (b *Book) RenameFiles(names map[string]string) error {
	if b.readOnly {
		return ErrReadOnly
	}

	renameMap := make(map[string]string, len(names)) // old ZIP path -> new ZIP path
	newPaths := make(map[string]string, len(names))  // id -> new ZIP path
	for id, newBasename := range names {
		entry, err := b.reg.Entry(id)
		if err != nil {
			return err
		}
		if path.Ext(newBasename) == "" {
			newBasename += path.Ext(entry.Path)
		}
		newPath := path.Join(path.Dir(entry.Path), newBasename)
		if newPath == entry.Path {
			continue
		}
		renameMap[entry.Path] = newPath
		newPaths[id] = newPath
	}
	if len(renameMap) == 0 {
		return nil
	}

	if err := b.applyRenames(newPaths); err != nil {
		return err
	}
	return b.fixInterlinking(renameMap)
}

// applyRenames moves a batch of live entries (id -> new ZIP path) in one
// atomic step: every target is validated before any entry moves, and a
// failure mid-apply restores the original paths. Entries are moved aside
// first so names swapping within the batch never collide.
func (b *Book) applyRenames(newPaths map[string]string) error {
	targets := make(map[string]string, len(newPaths)) // new ZIP path -> id
	for id, newPath := range newPaths {
		if other, ok := targets[newPath]; ok {
			return fmt.Errorf("%w: %q and %q both target %q", ErrDuplicatePath, other, id, newPath)
		}
		targets[newPath] = id
		if other, ok := b.reg.IDByPath(newPath); ok && other != id {
			if _, moving := newPaths[other]; !moving {
				return fmt.Errorf("%w: %q (held by %q)", ErrDuplicatePath, newPath, other)
			}
		}
	}

	origins := make(map[string]string, len(newPaths)) // id -> path before the batch
	for id := range newPaths {
		entry, err := b.reg.Entry(id)
		if err != nil {
			return err
		}
		origins[id] = entry.Path
	}

	for id, orig := range origins {
		_ = b.reg.Rename(id, orig+"\x00moving")
	}
	for id, newPath := range newPaths {
		if err := b.reg.Rename(id, newPath); err != nil {
			b.rollbackRenames(origins)
			return err
		}
	}
	return nil
}

// rollbackRenames returns every entry in origins to its pre-batch path.
// Entries already sitting on a final path go back through their move-aside
// name so a partially applied swap cannot block the restore.
func (b *Book) rollbackRenames(origins map[string]string) {
	for id, orig := range origins {
		entry, err := b.reg.Entry(id)
		if err != nil || entry.Path == orig || entry.Path == orig+"\x00moving" {
			continue
		}
		_ = b.reg.Rename(id, orig+"\x00moving")
	}
	for id, orig := range origins {
		_ = b.reg.Rename(id, orig)
	}
}

// fixInterlinking rewrites links in every text document, stylesheet, the
// NCX, and the guide according to renameMap (old ZIP path -> new ZIP path).
// A document that was itself renamed resolves its links against its old
// location and emits them relative to its new one.
func (b *Book) fixInterlinking(renameMap map[string]string) error {
	oldPathOf := make(map[string]string, len(renameMap)) // new -> old
	for oldPath, newPath := range renameMap {
		oldPathOf[newPath] = oldPath
	}
	resolveBase := func(current string) string {
		if old, ok := oldPathOf[current]; ok {
			return old
		}
		return current
	}

	for _, id := range b.Texts() {
		entry, err := b.reg.Entry(id)
		if err != nil {
			return err
		}
		data, err := b.ReadFile(id)
		if err != nil {
			// An entry without retrievable bytes has nothing to rewrite.
			continue
		}
		if rewritten, changed := rewriteLinksRebased(data, resolveBase(entry.Path), entry.Path, renameMap); changed {
			if err := b.reg.SetContent(id, rewritten); err != nil {
				return err
			}
		}
	}

	for _, id := range b.Styles() {
		entry, err := b.reg.Entry(id)
		if err != nil {
			return err
		}
		data, err := b.ReadFile(id)
		if err != nil {
			continue
		}
		if out, changed := rewriteCSSURLs(string(data), resolveBase(entry.Path), path.Dir(entry.Path), renameMap); changed {
			if err := b.reg.SetContent(id, []byte(out)); err != nil {
				return err
			}
		}
	}

	if ncx := b.NCX(); ncx != "" {
		entry, err := b.reg.Entry(ncx)
		if err != nil {
			return err
		}
		if data, err := b.ReadFile(ncx); err == nil {
			if rewritten, changed := rewriteNCXLinks(data, resolveBase(entry.Path), entry.Path, renameMap); changed {
				if err := b.reg.SetContent(ncx, rewritten); err != nil {
					return err
				}
			}
		}
	}

	for i, ref := range b.guide {
		target, fragment, _ := strings.Cut(ref.Href, "#")
		resolved := b.resolveOPFPath(target)
		if newPath, ok := renameMap[resolved]; ok {
			href := escapeHref(b.relHref(newPath))
			if fragment != "" {
				href += "#" + fragment
			}
			b.guide[i].Href = href
		}
	}
	return nil
}

// ParseDocument parses the text entry id into a Document for structured
// editing. Serialize the document back with WriteDocument.
func (b *Book) ParseDocument(id string) (*Document, error) {
	data, err := b.ReadFile(id)
	if err != nil {
		return nil, err
	}
	return ParseXHTML(data)
}

// WriteDocument serializes doc and stages it as the content of id.
func (b *Book) WriteDocument(id string, doc *Document) error {
	if b.readOnly {
		return ErrReadOnly
	}
	data, err := doc.Serialize()
	if err != nil {
		return err
	}
	return b.reg.SetContent(id, data)
}

// Entry returns the manifest record for id.
func (b *Book) Entry(id string) (ManifestEntry, error) {
	return b.reg.Entry(id)
}

// Texts returns live text-document ids in insertion order.
func (b *Book) Texts() []string { return collect(b.reg.Texts()) }

// Images returns live image ids in insertion order.
func (b *Book) Images() []string { return collect(b.reg.Images()) }

// Styles returns live stylesheet ids in insertion order.
func (b *Book) Styles() []string { return collect(b.reg.Styles()) }

// Fonts returns live font ids in insertion order.
func (b *Book) Fonts() []string { return collect(b.reg.Fonts()) }

// Others returns the live ids that are neither text nor image, in insertion
// order. Texts, Images, and Others partition the manifest.
func (b *Book) Others() []string { return collect(b.reg.Others()) }

// IDs returns every live id in insertion order.
func (b *Book) IDs() []string { return collect(b.reg.IDs()) }

func collect(seq func(func(string) bool)) []string {
	out := []string{}
	seq(func(id string) bool {
		out = append(out, id)
		return true
	})
	return out
}

// SpineOrder returns the reading order as a defensive copy.
func (b *Book) SpineOrder() []string { return b.reg.SpineOrder() }

// LinearSpineOrder returns the reading order restricted to linear items.
func (b *Book) LinearSpineOrder() []string { return b.reg.LinearSpineOrder() }

// SetSpineOrder replaces the reading order wholesale; see Registry.SetSpineOrder.
func (b *Book) SetSpineOrder(ids []string) error {
	if b.readOnly {
		return ErrReadOnly
	}
	return b.reg.SetSpineOrder(ids)
}

// SetLinear marks a spine item as linear or non-linear.
func (b *Book) SetLinear(id string, linear bool) error {
	if b.readOnly {
		return ErrReadOnly
	}
	return b.reg.SetLinear(id, linear)
}

// Nav returns the id of the ePub 3 nav document, or "" if there is none.
func (b *Book) Nav() string {
	for id, props := range b.props {
		for _, p := range strings.Fields(props) {
			if p == "nav" {
				return id
			}
		}
	}
	return ""
}

// NCX returns the id of the NCX table of contents, or "" if there is none.
func (b *Book) NCX() string {
	for id := range b.reg.IDs() {
		entry, err := b.reg.Entry(id)
		if err == nil && entry.MediaType == "application/x-dtbncx+xml" {
			return id
		}
	}
	return ""
}

// MoveNavToEnd moves the nav document to the end of the spine and marks it
// non-linear, so readers do not open the book on the table of contents.
func (b *Book) MoveNavToEnd() error {
	if b.readOnly {
		return ErrReadOnly
	}
	nav := b.Nav()
	if nav == "" {
		return nil
	}

	spine := b.reg.SpineOrder()
	out := spine[:0]
	for _, id := range spine {
		if id != nav {
			out = append(out, id)
		}
	}
	out = append(out, nav)
	if err := b.reg.SetSpineOrder(out); err != nil {
		return err
	}
	return b.reg.SetLinear(nav, false)
}

// Normalize moves every file into the conventional subdirectory for its
// media type (Text/, Images/, Styles/, Fonts/, Misc/) under the OPF
// directory and repairs all interlinks. Two files of the same kind sharing
// a basename would land on the same path; that returns ErrDuplicatePath
// with nothing moved.
func (b *Book) Normalize() error {
	if b.readOnly {
		return ErrReadOnly
	}

	renameMap := make(map[string]string)
	newPaths := make(map[string]string)
	for id := range b.reg.IDs() {
		entry, err := b.reg.Entry(id)
		if err != nil {
			return err
		}
		newPath := b.placePath(path.Base(entry.Path), entry.MediaType)
		if newPath == entry.Path {
			continue
		}
		renameMap[entry.Path] = newPath
		newPaths[id] = newPath
	}
	if len(renameMap) == 0 {
		return nil
	}

	if err := b.applyRenames(newPaths); err != nil {
		return err
	}
	return b.fixInterlinking(renameMap)
}

// Save writes the complete package to a file. The write is all-or-nothing:
// the archive is assembled in memory and written in one pass.
func (b *Book) Save(name string) error {
	if b.readOnly {
		return ErrReadOnly
	}
	var buf bytes.Buffer
	if err := b.Write(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("epubfile: save %s: %w", name, err)
	}
	return nil
}

// Write serializes the complete package to w: container, OPF regenerated
// from the registry, and every entry's current bytes (staged or copied from
// the source archive).
func (b *Book) Write(w io.Writer) error {
	if b.readOnly {
		return ErrReadOnly
	}

	opfData, err := b.serializeOPF()
	if err != nil {
		return err
	}

	files := map[string][]byte{
		containerPath: containerXMLFor(b.opfPath),
		b.opfPath:     opfData,
	}
	for id := range b.reg.IDs() {
		entry, err := b.reg.Entry(id)
		if err != nil {
			return err
		}
		data, err := b.ReadFile(id)
		if err != nil {
			return fmt.Errorf("epubfile: entry %q (%s) has no content: %w", id, entry.Path, err)
		}
		files[entry.Path] = data
	}

	return writeEPUB(w, files)
}

func copyMetadata(in Metadata) Metadata {
	out := in
	out.Titles = append([]string(nil), in.Titles...)
	out.Authors = append([]Author(nil), in.Authors...)
	out.Language = append([]string(nil), in.Language...)
	out.Identifiers = append([]Identifier(nil), in.Identifiers...)
	out.Subjects = append([]string(nil), in.Subjects...)
	return out
}
