// Package epubfile provides a pure-Go library for editing ePub 2 and ePub 3
// files: adding, renaming, and deleting entries, reordering the spine,
// designating covers, regenerating the table of contents, and merging books.
//
// The manifest, spine, and cover designation live in a [Registry], which
// enforces the package invariants on every mutation: ids are unique and
// never reused, the spine holds only live text documents, the cover is
// always a live image, and removing an entry cascades into the spine and
// cover. Mutations are atomic; a rejected operation leaves no partial state.
// DRM-protected files are detected and rejected with [ErrDRMProtected].
//
// # Opening and saving
//
// Use [Open] to edit an existing file, [New] to start from an empty book,
// or [NewReader] to read from an [io.ReaderAt]:
//
//	book, err := epubfile.Open("book.epub")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer book.Close()
//
//	id, err := book.AddFile("chapter99.xhtml", content)
//	...
//	err = book.Save("book-edited.epub")
//
// Nothing touches the source archive until [Book.Save] or [Book.Write];
// edits are staged in memory. Saving writes a complete well-formed package
// with the mimetype entry first and stored uncompressed, and the package
// descriptor regenerated from the registry.
//
// # Renaming and links
//
// [Book.RenameFile] and [Book.Normalize] move files and repair every
// reference to them: hrefs in text documents, NCX content srcs, and guide
// references. [Book.RenameFiles] applies a batch of renames with one
// link-fixing pass.
//
// # Structured editing
//
// [Book.ParseDocument] parses an XHTML entry into a [Document] backed by a
// DOM tree; edit the tree and stage it back with [Book.WriteDocument].
// [Book.GenerateTOC] harvests headings from the linear reading order and
// rewrites the nav document and NCX.
package epubfile
