package epubfile

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// preprocessHTMLEntities tests
// ---------------------------------------------------------------------------

func TestPreprocessHTMLEntities_BasicReplacements(t *testing.T) {
	input := []byte(`<title>Hello&nbsp;World &mdash; An&hellip; Introduction</title>`)
	got := preprocessHTMLEntities(input)
	want := `<title>Hello&#160;World &#8212; An&#8230; Introduction</title>`
	if string(got) != want {
		t.Errorf("preprocessHTMLEntities():\n got: %s\nwant: %s", got, want)
	}
}

func TestPreprocessHTMLEntities_QuotationMarks(t *testing.T) {
	input := []byte(`&ldquo;Hello&rdquo; &lsquo;World&rsquo;`)
	got := preprocessHTMLEntities(input)
	want := `&#8220;Hello&#8221; &#8216;World&#8217;`
	if string(got) != want {
		t.Errorf("preprocessHTMLEntities():\n got: %s\nwant: %s", got, want)
	}
}

func TestPreprocessHTMLEntities_Symbols(t *testing.T) {
	input := []byte(`&copy; 2024 &reg; Company&trade; &bull; Item &middot; Sub`)
	got := preprocessHTMLEntities(input)
	want := `&#169; 2024 &#174; Company&#8482; &#8226; Item &#183; Sub`
	if string(got) != want {
		t.Errorf("preprocessHTMLEntities():\n got: %s\nwant: %s", got, want)
	}
}

func TestPreprocessHTMLEntities_AccentedChars(t *testing.T) {
	input := []byte(`caf&eacute; na&iuml;ve r&eacute;sum&eacute;`)
	got := preprocessHTMLEntities(input)
	want := `caf&#233; na&#239;ve r&#233;sum&#233;`
	if string(got) != want {
		t.Errorf("preprocessHTMLEntities():\n got: %s\nwant: %s", got, want)
	}
}

func TestPreprocessHTMLEntities_PreservesXMLEntities(t *testing.T) {
	// &amp;, &lt;, &gt;, &quot;, &apos; are valid XML entities and must be preserved.
	input := []byte(`&amp; &lt; &gt; &quot; &apos;`)
	got := preprocessHTMLEntities(input)
	if string(got) != string(input) {
		t.Errorf("XML entities should be preserved:\n got: %s\nwant: %s", got, input)
	}
}

func TestPreprocessHTMLEntities_NoEntities(t *testing.T) {
	input := []byte(`<p>Plain text with no entities</p>`)
	got := preprocessHTMLEntities(input)
	if string(got) != string(input) {
		t.Errorf("Text without entities should be unchanged:\n got: %s\nwant: %s", got, input)
	}
}

func TestPreprocessHTMLEntities_Dashes(t *testing.T) {
	input := []byte(`2020&ndash;2024 &mdash; a range`)
	got := preprocessHTMLEntities(input)
	want := `2020&#8211;2024 &#8212; a range`
	if string(got) != want {
		t.Errorf("preprocessHTMLEntities():\n got: %s\nwant: %s", got, want)
	}
}

// ---------------------------------------------------------------------------
// extractText tests
// ---------------------------------------------------------------------------

func TestExtractText_SimpleParagraphs(t *testing.T) {
	input := []byte(`<html><body><p>First paragraph.</p><p>Second paragraph.</p></body></html>`)
	got, err := extractText(input)
	if err != nil {
		t.Fatalf("extractText() error: %v", err)
	}
	want := "First paragraph.\nSecond paragraph."
	if got != want {
		t.Errorf("extractText():\n got: %q\nwant: %q", got, want)
	}
}

func TestExtractText_LineBreaks(t *testing.T) {
	input := []byte(`<html><body><p>Line one<br/>Line two<br>Line three</p></body></html>`)
	got, err := extractText(input)
	if err != nil {
		t.Fatalf("extractText() error: %v", err)
	}
	want := "Line one\nLine two\nLine three"
	if got != want {
		t.Errorf("extractText():\n got: %q\nwant: %q", got, want)
	}
}

func TestExtractText_Headings(t *testing.T) {
	input := []byte(`<html><body><h1>Title</h1><p>Content</p><h2>Subtitle</h2><p>More</p></body></html>`)
	got, err := extractText(input)
	if err != nil {
		t.Fatalf("extractText() error: %v", err)
	}
	want := "Title\nContent\nSubtitle\nMore"
	if got != want {
		t.Errorf("extractText():\n got: %q\nwant: %q", got, want)
	}
}

func TestExtractText_SkipScriptAndStyle(t *testing.T) {
	input := []byte(`<html>
<head><style>body { color: red; }</style></head>
<body>
<p>Visible text</p>
<script>alert("hidden");</script>
<p>Also visible</p>
</body></html>`)
	got, err := extractText(input)
	if err != nil {
		t.Fatalf("extractText() error: %v", err)
	}
	if strings.Contains(got, "alert") {
		t.Errorf("script content should be skipped, got: %q", got)
	}
	if strings.Contains(got, "color") {
		t.Errorf("style content should be skipped, got: %q", got)
	}
	if !strings.Contains(got, "Visible text") || !strings.Contains(got, "Also visible") {
		t.Errorf("visible text should be present, got: %q", got)
	}
}

func TestExtractText_SelfClosingScriptAndStyle(t *testing.T) {
	input := []byte(`<html><body><p>Before</p><script/><style/><p>After</p></body></html>`)
	got, err := extractText(input)
	if err != nil {
		t.Fatalf("extractText() error: %v", err)
	}
	want := "Before\nAfter"
	if got != want {
		t.Errorf("extractText():\n got: %q\nwant: %q", got, want)
	}
}

func TestExtractText_DivAndList(t *testing.T) {
	input := []byte(`<html><body><div>Block one</div><div>Block two</div><ul><li>Item A</li><li>Item B</li></ul></body></html>`)
	got, err := extractText(input)
	if err != nil {
		t.Fatalf("extractText() error: %v", err)
	}
	want := "Block one\nBlock two\nItem A\nItem B"
	if got != want {
		t.Errorf("extractText():\n got: %q\nwant: %q", got, want)
	}
}

func TestExtractText_EmptyInput(t *testing.T) {
	got, err := extractText([]byte(""))
	if err != nil {
		t.Fatalf("extractText() error: %v", err)
	}
	if got != "" {
		t.Errorf("extractText(empty) = %q; want empty", got)
	}
}

func TestExtractText_InlineElements(t *testing.T) {
	input := []byte(`<html><body><p>This is <b>bold</b> and <i>italic</i> text.</p></body></html>`)
	got, err := extractText(input)
	if err != nil {
		t.Fatalf("extractText() error: %v", err)
	}
	want := "This is bold and italic text."
	if got != want {
		t.Errorf("extractText():\n got: %q\nwant: %q", got, want)
	}
}

// ---------------------------------------------------------------------------
// link rewriting tests
// ---------------------------------------------------------------------------

func TestRewriteLinks_ImgAndAnchor(t *testing.T) {
	input := []byte(`<html><body>
<img src="../Images/old.png"/>
<a href="other.xhtml#frag">link</a>
</body></html>`)
	renames := map[string]string{
		"OEBPS/Images/old.png":   "OEBPS/Images/new.png",
		"OEBPS/Text/other.xhtml": "OEBPS/Text/moved.xhtml",
	}

	out, changed := rewriteLinks(input, "OEBPS/Text/doc.xhtml", renames)
	if !changed {
		t.Fatal("expected a change")
	}
	got := string(out)
	if !strings.Contains(got, `src="../Images/new.png"`) {
		t.Errorf("img not rewritten: %s", got)
	}
	if !strings.Contains(got, `href="moved.xhtml#frag"`) {
		t.Errorf("anchor not rewritten or fragment lost: %s", got)
	}
}

func TestRewriteLinks_LeavesExternalAlone(t *testing.T) {
	input := []byte(`<html><body>
<a href="https://example.com/old.png">ext</a>
<a href="#local">frag</a>
<a href="mailto:someone@example.com">mail</a>
</body></html>`)
	renames := map[string]string{"old.png": "new.png"}

	_, changed := rewriteLinks(input, "doc.xhtml", renames)
	if changed {
		t.Error("external and fragment links must not be rewritten")
	}
}

func TestRewriteLinks_NoMatches(t *testing.T) {
	input := []byte(`<html><body><img src="kept.png"/></body></html>`)
	out, changed := rewriteLinks(input, "doc.xhtml", map[string]string{"other.png": "x.png"})
	if changed {
		t.Error("unexpected change")
	}
	if string(out) != string(input) {
		t.Error("input bytes must be returned untouched")
	}
}

func TestRewriteLinksRebased(t *testing.T) {
	// The document moves from the root into Text/ while its image moves
	// into Images/; the emitted link must be relative to the new location.
	input := []byte(`<html><body><img src="pic.png"/></body></html>`)
	renames := map[string]string{
		"pic.png":   "Images/pic.png",
		"doc.xhtml": "Text/doc.xhtml",
	}

	out, changed := rewriteLinksRebased(input, "doc.xhtml", "Text/doc.xhtml", renames)
	if !changed {
		t.Fatal("expected a change")
	}
	if !strings.Contains(string(out), `src="../Images/pic.png"`) {
		t.Errorf("got: %s", out)
	}
}

func TestRewriteCSSURLs(t *testing.T) {
	renames := map[string]string{"OEBPS/Images/photo.png": "OEBPS/Images/portrait.png"}

	css := `body { background: url("../Images/photo.png"); } p { color: red; }`
	out, changed := rewriteCSSURLs(css, "OEBPS/Styles/style.css", "OEBPS/Styles", renames)
	if !changed {
		t.Fatal("expected a change")
	}
	if !strings.Contains(out, `url("../Images/portrait.png")`) {
		t.Errorf("got: %s", out)
	}
	if !strings.Contains(out, "color: red") {
		t.Errorf("unrelated rules must survive, got: %s", out)
	}

	if _, changed := rewriteCSSURLs(`@import url(other.css);`, "OEBPS/Styles/style.css", "OEBPS/Styles", renames); changed {
		t.Error("unrenamed target must not change")
	}
	if _, changed := rewriteCSSURLs(`a { background: url(https://example.com/photo.png); }`, "OEBPS/Styles/style.css", "OEBPS/Styles", renames); changed {
		t.Error("external url must not change")
	}
}

func TestRewriteLinks_StyleBlockAndAttribute(t *testing.T) {
	renames := map[string]string{"OEBPS/Images/photo.png": "OEBPS/Images/portrait.png"}
	input := []byte(`<html><head><style>body { background: url('../Images/photo.png'); }</style></head>` +
		`<body><div style="background-image: url(../Images/photo.png)">x</div></body></html>`)

	out, changed := rewriteLinks(input, "OEBPS/Text/chapter1.xhtml", renames)
	if !changed {
		t.Fatal("expected a change")
	}
	got := string(out)
	if !strings.Contains(got, `url('../Images/portrait.png')`) {
		t.Errorf("style tag not rewritten, got: %s", got)
	}
	if !strings.Contains(got, `url(../Images/portrait.png)`) {
		t.Errorf("style attribute not rewritten, got: %s", got)
	}
	if strings.Contains(got, "photo.png") {
		t.Errorf("old name survived, got: %s", got)
	}
}

func TestHasURIScheme(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com", true},
		{"mailto:x@y.z", true},
		{"data:image/png;base64,xx", true},
		{"chapter1.xhtml", false},
		{"../Images/pic.png", false},
		{"C1:whoops.xhtml", true},
		{"", false},
		{"#frag", false},
	}
	for _, tt := range tests {
		if got := hasURIScheme(tt.in); got != tt.want {
			t.Errorf("hasURIScheme(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// heading shifting tests
// ---------------------------------------------------------------------------

func TestShiftHeadings_Demote(t *testing.T) {
	input := []byte(`<html><body><h1>Top</h1><h2 class="x">Sub</h2><h6>Deep</h6></body></html>`)
	out := shiftHeadings(input, 1)
	got := string(out)
	if !strings.Contains(got, "<h2>Top</h2>") {
		t.Errorf("h1 not demoted: %s", got)
	}
	if !strings.Contains(got, `<h3 class="x">Sub</h3>`) {
		t.Errorf("h2 not demoted with attributes: %s", got)
	}
	if !strings.Contains(got, "<h6>Deep</h6>") {
		t.Errorf("h6 must stay clamped at h6: %s", got)
	}
}

func TestShiftHeadings_Promote(t *testing.T) {
	input := []byte(`<html><body><h3>Mid</h3><h1>Top</h1></body></html>`)
	out := shiftHeadings(input, -1)
	got := string(out)
	if !strings.Contains(got, "<h2>Mid</h2>") {
		t.Errorf("h3 not promoted: %s", got)
	}
	if !strings.Contains(got, "<h1>Top</h1>") {
		t.Errorf("h1 must stay clamped at h1: %s", got)
	}
}
