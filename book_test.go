package epubfile

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPopulatesSession(t *testing.T) {
	fp := writeTestEPubFile(t, basicBookFiles())
	b, err := Open(fp)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, []string{"nav", "ch1", "ch2"}, b.Texts())
	assert.Equal(t, []string{"img1"}, b.Images())
	assert.Equal(t, []string{"css"}, b.Styles())
	assert.Equal(t, []string{"ch1", "ch2", "nav"}, b.SpineOrder())
	assert.Equal(t, []string{"ch1", "ch2"}, b.LinearSpineOrder())

	cover, ok := b.CoverID()
	require.True(t, ok)
	assert.Equal(t, "img1", cover)

	assert.Equal(t, "nav", b.Nav())
	assert.Equal(t, "ncx", b.NCX())

	md := b.Metadata()
	assert.Equal(t, []string{"Fixture Book"}, md.Titles)
	require.Len(t, md.Authors, 1)
	assert.Equal(t, "A. Writer", md.Authors[0].Name)
	assert.Empty(t, b.Warnings())
}

func TestOpenWarnsOnBadSpineRefs(t *testing.T) {
	files := basicBookFiles()
	files["OEBPS/content.opf"] = strings.Replace(files["OEBPS/content.opf"],
		`<itemref idref="ch2"/>`,
		`<itemref idref="ch2"/><itemref idref="ghost"/><itemref idref="img1"/>`, 1)

	b := openTestBook(t, files)
	defer b.Close()

	assert.Equal(t, []string{"ch1", "ch2", "nav"}, b.SpineOrder())
	require.Len(t, b.Warnings(), 2)
	assert.Contains(t, b.Warnings()[0], "ghost")
	assert.Contains(t, b.Warnings()[1], "img1")
}

func TestOpenWarnsOnBadMimetype(t *testing.T) {
	files := basicBookFiles()
	files["mimetype"] = "text/plain"

	b := openTestBook(t, files)
	defer b.Close()

	found := false
	for _, w := range b.Warnings() {
		if strings.Contains(w, "mimetype") {
			found = true
		}
	}
	assert.True(t, found, "expected a mimetype warning, got %v", b.Warnings())
}

func TestOpenRejectsDRM(t *testing.T) {
	files := basicBookFiles()
	files["META-INF/encryption.xml"] = `<?xml version="1.0"?>
<encryption xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <EncryptedData xmlns="http://www.w3.org/2001/04/xmlenc#">
    <EncryptionMethod Algorithm="http://www.w3.org/2001/04/xmlenc#aes128-cbc"/>
  </EncryptedData>
</encryption>`

	data := buildZipBytes(t, files)
	_, err := NewReader(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrDRMProtected)
}

func TestReadFilePrefersStagedContent(t *testing.T) {
	b := openTestBook(t, basicBookFiles())
	defer b.Close()

	orig, err := b.ReadFile("css")
	require.NoError(t, err)
	assert.Equal(t, "body { margin: 0; }", string(orig))

	require.NoError(t, b.WriteFile("css", []byte("body { margin: 1em; }")))
	got, err := b.ReadFile("css")
	require.NoError(t, err)
	assert.Equal(t, "body { margin: 1em; }", string(got))

	_, err = b.ReadFile("ghost")
	assert.ErrorIs(t, err, ErrUnknownID)
}

func TestAddFilePlacesByMediaType(t *testing.T) {
	b := openTestBook(t, basicBookFiles())
	defer b.Close()

	id, err := b.AddFile("chapter3.xhtml", []byte("<html><body><p>three</p></body></html>"))
	require.NoError(t, err)

	entry, err := b.Entry(id)
	require.NoError(t, err)
	assert.Equal(t, "OEBPS/Text/chapter3.xhtml", entry.Path)
	assert.Equal(t, "application/xhtml+xml", entry.MediaType)
	assert.Equal(t, []string{"ch1", "ch2", "nav", id}, b.SpineOrder(), "new text joins the spine")

	imgID, err := b.AddFile("figure.jpeg", []byte("jpegdata"))
	require.NoError(t, err)
	imgEntry, err := b.Entry(imgID)
	require.NoError(t, err)
	assert.Equal(t, "OEBPS/Images/figure.jpeg", imgEntry.Path)
	assert.NotContains(t, b.SpineOrder(), imgID)
}

func TestDeleteFileCascades(t *testing.T) {
	b := openTestBook(t, basicBookFiles())
	defer b.Close()

	require.NoError(t, b.DeleteFile("ch2"))
	assert.Equal(t, []string{"ch1", "nav"}, b.SpineOrder())

	require.NoError(t, b.DeleteFile("img1"))
	_, ok := b.CoverID()
	assert.False(t, ok)

	assert.ErrorIs(t, b.DeleteFile("ch2"), ErrUnknownID)
}

func TestRenameFileFixesLinks(t *testing.T) {
	b := openTestBook(t, basicBookFiles())
	defer b.Close()

	require.NoError(t, b.RenameFile("img1", "portrait.png"))

	entry, err := b.Entry("img1")
	require.NoError(t, err)
	assert.Equal(t, "OEBPS/Images/portrait.png", entry.Path)

	ch1, err := b.ReadFile("ch1")
	require.NoError(t, err)
	assert.Contains(t, string(ch1), "../Images/portrait.png")
	assert.NotContains(t, string(ch1), "photo.png")
}

func TestRenameFileInheritsExtension(t *testing.T) {
	b := openTestBook(t, basicBookFiles())
	defer b.Close()

	require.NoError(t, b.RenameFile("ch2", "finale"))
	entry, err := b.Entry("ch2")
	require.NoError(t, err)
	assert.Equal(t, "OEBPS/Text/finale.xhtml", entry.Path)

	// Cross references follow the rename, fragments intact.
	ch1, err := b.ReadFile("ch1")
	require.NoError(t, err)
	assert.Contains(t, string(ch1), `finale.xhtml#top`)
}

func TestRenameFilesSwap(t *testing.T) {
	b := openTestBook(t, basicBookFiles())
	defer b.Close()

	err := b.RenameFiles(map[string]string{
		"ch1": "chapter2.xhtml",
		"ch2": "chapter1.xhtml",
	})
	require.NoError(t, err)

	e1, _ := b.Entry("ch1")
	e2, _ := b.Entry("ch2")
	assert.Equal(t, "OEBPS/Text/chapter2.xhtml", e1.Path)
	assert.Equal(t, "OEBPS/Text/chapter1.xhtml", e2.Path)
	assert.Equal(t, []string{"ch1", "ch2", "nav"}, b.SpineOrder(), "identity survives a swap")
}

func TestRenameFileRejectsCollision(t *testing.T) {
	b := openTestBook(t, basicBookFiles())
	defer b.Close()

	err := b.RenameFile("ch1", "chapter2.xhtml")
	assert.ErrorIs(t, err, ErrDuplicatePath)

	entry, _ := b.Entry("ch1")
	assert.Equal(t, "OEBPS/Text/chapter1.xhtml", entry.Path)
}

func TestRenameFileKeepsArchiveBytes(t *testing.T) {
	b := openTestBook(t, basicBookFiles())
	defer b.Close()

	require.NoError(t, b.RenameFile("img1", "portrait.png"))

	data, err := b.ReadFile("img1")
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG\r\n\x1a\nfakepixels", string(data))

	out := reopenBook(t, b)
	defer out.Close()
	entry, err := out.Entry("img1")
	require.NoError(t, err)
	assert.Equal(t, "OEBPS/Images/portrait.png", entry.Path)
	moved, err := out.ReadFile("img1")
	require.NoError(t, err)
	assert.Equal(t, string(data), string(moved))
}

func TestRenameFilesRejectsSharedTarget(t *testing.T) {
	b := openTestBook(t, basicBookFiles())
	defer b.Close()

	err := b.RenameFiles(map[string]string{"ch1": "same.xhtml", "ch2": "same.xhtml"})
	assert.ErrorIs(t, err, ErrDuplicatePath)

	e1, _ := b.Entry("ch1")
	e2, _ := b.Entry("ch2")
	assert.Equal(t, "OEBPS/Text/chapter1.xhtml", e1.Path)
	assert.Equal(t, "OEBPS/Text/chapter2.xhtml", e2.Path)
}

func TestRenameFileFixesStylesheet(t *testing.T) {
	b := openTestBook(t, basicBookFiles())
	defer b.Close()

	require.NoError(t, b.WriteFile("css", []byte(`body { background: url("../Images/photo.png"); }`)))
	require.NoError(t, b.RenameFile("img1", "portrait.png"))

	css, err := b.ReadFile("css")
	require.NoError(t, err)
	assert.Contains(t, string(css), `url("../Images/portrait.png")`)
	assert.NotContains(t, string(css), "photo.png")
}

func TestWriteRoundTrip(t *testing.T) {
	b := openTestBook(t, basicBookFiles())
	defer b.Close()

	id, err := b.AddFile("chapter3.xhtml", []byte(`<?xml version="1.0" encoding="utf-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>Three</title></head>
<body><h1>Chapter Three</h1></body></html>`))
	require.NoError(t, err)
	require.NoError(t, b.WriteFile("css", []byte("p { color: red; }")))
	require.NoError(t, b.DeleteFile("ch2"))

	out := reopenBook(t, b)
	defer out.Close()

	assert.ElementsMatch(t, []string{"nav", "ch1", id}, out.Texts())
	assert.Equal(t, []string{"ch1", "nav", id}, out.SpineOrder())
	assert.Equal(t, []string{"ch1", id}, out.LinearSpineOrder())

	cover, ok := out.CoverID()
	require.True(t, ok)
	assert.Equal(t, "img1", cover)

	css, err := out.ReadFile("css")
	require.NoError(t, err)
	assert.Equal(t, "p { color: red; }", string(css))

	md := out.Metadata()
	assert.Equal(t, []string{"Fixture Book"}, md.Titles)
}

func TestWriteEmitsValidContainer(t *testing.T) {
	b := openTestBook(t, basicBookFiles())
	defer b.Close()

	var buf bytes.Buffer
	require.NoError(t, b.Write(&buf))

	data := buf.Bytes()
	// The local file header is 30 bytes, so the first entry's name starts at
	// offset 30. It must be the mimetype, stored uncompressed.
	require.Greater(t, len(data), 68)
	assert.True(t, bytes.HasPrefix(data[30:], []byte("mimetype")), "first entry must be mimetype")
	assert.Contains(t, string(data), expectedMimetype)
}

func TestMoveNavToEnd(t *testing.T) {
	files := basicBookFiles()
	files["OEBPS/content.opf"] = strings.Replace(files["OEBPS/content.opf"],
		`<itemref idref="ch1"/>
    <itemref idref="ch2"/>
    <itemref idref="nav" linear="no"/>`,
		`<itemref idref="nav"/>
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>`, 1)

	b := openTestBook(t, files)
	defer b.Close()
	require.Equal(t, []string{"nav", "ch1", "ch2"}, b.SpineOrder())

	require.NoError(t, b.MoveNavToEnd())
	assert.Equal(t, []string{"ch1", "ch2", "nav"}, b.SpineOrder())
	assert.Equal(t, []string{"ch1", "ch2"}, b.LinearSpineOrder())
}

func TestNormalize(t *testing.T) {
	files := map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": validContainerXML,
		"OEBPS/content.opf": `<?xml version="1.0" encoding="utf-8"?>
<package version="2.0" unique-identifier="uid" xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="uid">x</dc:identifier>
    <dc:title>Messy</dc:title>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="ch1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="pic" href="stuff/pic.png" media-type="image/png"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
  </spine>
</package>`,
		"OEBPS/chapter1.xhtml": `<html xmlns="http://www.w3.org/1999/xhtml">
<body><img src="stuff/pic.png"/></body></html>`,
		"OEBPS/stuff/pic.png": "pngbytes",
	}

	b := openTestBook(t, files)
	defer b.Close()

	require.NoError(t, b.Normalize())

	ch1, err := b.Entry("ch1")
	require.NoError(t, err)
	assert.Equal(t, "OEBPS/Text/chapter1.xhtml", ch1.Path)
	pic, err := b.Entry("pic")
	require.NoError(t, err)
	assert.Equal(t, "OEBPS/Images/pic.png", pic.Path)

	content, err := b.ReadFile("ch1")
	require.NoError(t, err)
	assert.Contains(t, string(content), "../Images/pic.png")
}

func TestNormalizeRejectsBasenameCollision(t *testing.T) {
	files := map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": validContainerXML,
		"OEBPS/content.opf": `<?xml version="1.0" encoding="utf-8"?>
<package version="2.0" unique-identifier="uid" xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="uid">x</dc:identifier>
    <dc:title>Clashing</dc:title>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="ch1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="pic1" href="a/pic.png" media-type="image/png"/>
    <item id="pic2" href="b/pic.png" media-type="image/png"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
  </spine>
</package>`,
		"OEBPS/chapter1.xhtml": `<html xmlns="http://www.w3.org/1999/xhtml"><body/></html>`,
		"OEBPS/a/pic.png":      "pngbytes",
		"OEBPS/b/pic.png":      "morepngbytes",
	}

	b := openTestBook(t, files)
	defer b.Close()

	err := b.Normalize()
	assert.ErrorIs(t, err, ErrDuplicatePath)

	// Nothing moved, nothing half-moved.
	p1, _ := b.Entry("pic1")
	p2, _ := b.Entry("pic2")
	assert.Equal(t, "OEBPS/a/pic.png", p1.Path)
	assert.Equal(t, "OEBPS/b/pic.png", p2.Path)
	ch1, _ := b.Entry("ch1")
	assert.Equal(t, "OEBPS/chapter1.xhtml", ch1.Path)
}

func TestReadOnlyBlocksMutation(t *testing.T) {
	b := openTestBook(t, basicBookFiles(), WithReadOnly())
	defer b.Close()

	_, err := b.AddFile("x.xhtml", nil)
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.ErrorIs(t, b.DeleteFile("ch1"), ErrReadOnly)
	assert.ErrorIs(t, b.RenameFile("ch1", "y.xhtml"), ErrReadOnly)
	assert.ErrorIs(t, b.WriteFile("ch1", nil), ErrReadOnly)
	assert.ErrorIs(t, b.SetSpineOrder(nil), ErrReadOnly)
	assert.ErrorIs(t, b.SetCoverImage("img1"), ErrReadOnly)
	assert.ErrorIs(t, b.Save(t.TempDir()+"/out.epub"), ErrReadOnly)
	assert.ErrorIs(t, b.Write(&bytes.Buffer{}), ErrReadOnly)

	// Reads still work.
	_, err = b.ReadFile("ch1")
	assert.NoError(t, err)
}

func TestNewBookSkeleton(t *testing.T) {
	b := New()
	defer b.Close()

	assert.Equal(t, "nav", b.Nav())
	assert.Equal(t, "ncx", b.NCX())
	assert.Equal(t, []string{"nav"}, b.SpineOrder())
	assert.Empty(t, b.LinearSpineOrder())

	id, err := b.AddFile("intro.xhtml", []byte("<html><body><h1>Intro</h1></body></html>"))
	require.NoError(t, err)

	out := reopenBook(t, b)
	defer out.Close()
	assert.Equal(t, []string{"nav", id}, out.SpineOrder())

	md := out.Metadata()
	require.NotEmpty(t, md.Identifiers)
	assert.Contains(t, md.Identifiers[0].Value, "urn:uuid:")
}

func TestSaveWritesFile(t *testing.T) {
	b := openTestBook(t, basicBookFiles())
	defer b.Close()

	fp := t.TempDir() + "/saved.epub"
	require.NoError(t, b.Save(fp))

	out, err := Open(fp)
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, []string{"ch1", "ch2", "nav"}, out.SpineOrder())
}
