package extract

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/nevindra/modulebox"
)

const testStylesXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/></w:style>
<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/></w:style>
<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/></w:style>
<w:style w:type="paragraph" w:styleId="ListParagraph"><w:name w:val="List Paragraph"/></w:style>
<w:style w:type="character" w:styleId="Strong"><w:name w:val="Strong"/></w:style>
</w:styles>`

func TestReadDOCXStyles(t *testing.T) {
	content := buildTestDocx(t, []testParagraph{
		{text: "Quarterly Report", style: "Title"},
		{text: "Intro", style: "Heading1"},
		{text: "Body text"},
		{text: "Item", style: "ListParagraph"},
		{text: "Detail", style: "Heading2"},
		{text: "Stray", style: "NoSuchStyle"},
	}, true)

	res := mustReadDOCX(t, content)
	want := modulebox.Result{
		{Type: "Title", Text: "Quarterly Report"},
		{Type: "Heading 1", Text: "Intro"},
		{Type: "Normal", Text: "Body text"},
		{Type: "List Paragraph", Text: "Item"},
		{Type: "Heading 2", Text: "Detail"},
		{Type: "Normal", Text: "Stray"},
	}
	if !reflect.DeepEqual(res, want) {
		t.Errorf("got  %+v\nwant %+v", res, want)
	}
}

func TestReadDOCXJSONShape(t *testing.T) {
	content := buildTestDocx(t, []testParagraph{{text: "Intro", style: "Heading1"}}, true)
	data, err := json.Marshal(mustReadDOCX(t, content))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `[{"type":"Heading 1","content":"Intro"}]` {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestReadDOCXWithoutStylesPart(t *testing.T) {
	content := buildTestDocx(t, []testParagraph{{text: "Plain", style: "Heading1"}}, false)
	res := mustReadDOCX(t, content)
	if len(res) != 1 || res[0].Type != "Normal" {
		t.Errorf("got %+v", res)
	}
}

func TestReadDOCXSkipsBlankParagraphs(t *testing.T) {
	content := buildTestDocx(t, []testParagraph{
		{text: "First"},
		{text: ""},
		{text: "   "},
		{text: "  Indented  "},
	}, true)

	res := mustReadDOCX(t, content)
	if len(res) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(res), res)
	}
	if res[1].Text != "  Indented  " {
		t.Errorf("content should keep its whitespace, got %q", res[1].Text)
	}
}

func TestReadDOCXOnlyBlankParagraphs(t *testing.T) {
	content := buildTestDocx(t, []testParagraph{{text: ""}, {text: " "}}, true)
	res := mustReadDOCX(t, content)
	if len(res) != 0 {
		t.Fatalf("expected no records, got %+v", res)
	}
	data, _ := json.Marshal(res)
	if string(data) != "[]" {
		t.Errorf("got %s", data)
	}
}

func TestReadDOCXIgnoresTableParagraphs(t *testing.T) {
	body := `<w:p><w:r><w:t>Before</w:t></w:r></w:p>` +
		`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Cell</w:t></w:r></w:p></w:tc></w:tr></w:tbl>` +
		`<w:p><w:r><w:t>After</w:t></w:r></w:p>`
	res := mustReadDOCX(t, buildDocxBody(t, body))

	var texts []string
	for _, rec := range res {
		texts = append(texts, rec.Text)
	}
	if !reflect.DeepEqual(texts, []string{"Before", "After"}) {
		t.Errorf("got %q", texts)
	}
}

func TestReadDOCXRunContent(t *testing.T) {
	body := `<w:p>` +
		`<w:r><w:rPr><w:b/></w:rPr><w:t>a</w:t><w:tab/><w:t>b</w:t></w:r>` +
		`<w:r><w:br/><w:t xml:space="preserve">c </w:t><w:br w:type="page"/></w:r>` +
		`<w:hyperlink><w:r><w:t>link</w:t></w:r></w:hyperlink>` +
		`<w:r><w:noBreakHyphen/><w:cr/><w:t>end</w:t></w:r>` +
		`</w:p>`
	res := mustReadDOCX(t, buildDocxBody(t, body))
	if len(res) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res))
	}
	if want := "a\tb\nc link-\nend"; res[0].Text != want {
		t.Errorf("got %q, want %q", res[0].Text, want)
	}
}

func TestReadDOCXIgnoresInsertedTextBoxes(t *testing.T) {
	// Text inside a drawing belongs to a nested paragraph, not the outer one.
	body := `<w:p><w:r><w:t>Outer</w:t><w:drawing><w:txbxContent><w:p><w:r><w:t>Inner</w:t></w:r></w:p></w:txbxContent></w:drawing></w:r></w:p>`
	res := mustReadDOCX(t, buildDocxBody(t, body))
	if len(res) != 1 || res[0].Text != "Outer" {
		t.Errorf("got %+v", res)
	}
}

func TestReadDOCXMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("word/styles.xml")
	w.Write([]byte(testStylesXML))
	zw.Close()

	_, err := readDOCX(zipReader(t, buf.Bytes()))
	if err == nil {
		t.Fatal("expected error for missing document.xml")
	}
	if !strings.Contains(err.Error(), "missing word/document.xml") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestReadDOCXMalformedXML(t *testing.T) {
	if _, err := readDOCX(zipReader(t, buildDocxBody(t, "<w:p><w:r>"))); err == nil {
		t.Fatal("expected error for truncated document")
	}
}

func TestExtractDOCXFile(t *testing.T) {
	path := writeFile(t, "report.docx", buildTestDocx(t, []testParagraph{
		{text: "Intro", style: "Heading1"},
		{text: "Hello"},
	}, true))

	res, err := File(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 || res[0].Type != "Heading 1" || res[1].Text != "Hello" {
		t.Errorf("got %+v", res)
	}
}

// --- test helpers ---

type testParagraph struct {
	text  string
	style string
}

func mustReadDOCX(t *testing.T, content []byte) modulebox.Result {
	t.Helper()
	res, err := readDOCX(zipReader(t, content))
	if err != nil {
		t.Fatalf("readDOCX: %v", err)
	}
	return res
}

func zipReader(t *testing.T, content []byte) *zip.Reader {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatal(err)
	}
	return zr
}

func buildTestDocx(t *testing.T, paragraphs []testParagraph, withStyles bool) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString("<w:p>")
		if p.style != "" {
			body.WriteString(fmt.Sprintf(`<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, p.style))
		}
		body.WriteString(fmt.Sprintf(`<w:r><w:t xml:space="preserve">%s</w:t></w:r>`, p.text))
		body.WriteString("</w:p>")
	}
	parts := map[string]string{"word/document.xml": wrapBody(body.String())}
	if withStyles {
		parts["word/styles.xml"] = testStylesXML
	}
	return buildZip(t, parts)
}

func buildDocxBody(t *testing.T, body string) []byte {
	t.Helper()
	return buildZip(t, map[string]string{
		"word/document.xml": wrapBody(body),
		"word/styles.xml":   testStylesXML,
	})
}

func wrapBody(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		"\n<w:body>" + body + "</w:body></w:document>"
}

func buildZip(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
