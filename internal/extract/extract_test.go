package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := f.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return buf.Bytes()
}

func TestTextPlain(t *testing.T) {
	got, err := Text([]byte("Hello, world.\n"), "txt")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "Hello, world.\n" {
		t.Fatalf("got %q", got)
	}
}

func TestTextMarkdownAlias(t *testing.T) {
	got, err := Text([]byte("# Title"), "markdown")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "# Title" {
		t.Fatalf("got %q", got)
	}
}

func TestTextDocx(t *testing.T) {
	doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t></w:r><w:r><w:tab/><w:t>line.</w:t></w:r></w:p>
  </w:body>
</w:document>`
	got, err := Text(buildDocx(t, doc), "docx")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	want := "First paragraph.\nSecond\tline."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTextDocxCorrupt(t *testing.T) {
	if _, err := Text([]byte("not a zip archive"), "docx"); err == nil {
		t.Fatal("expected error for corrupt docx")
	}
}

func TestTextDocxMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, _ := w.Create("word/styles.xml")
	f.Write([]byte("<styles/>"))
	w.Close()

	if _, err := Text(buf.Bytes(), "docx"); err == nil {
		t.Fatal("expected error when word/document.xml is absent")
	}
}

func TestTextUnsupportedType(t *testing.T) {
	_, err := Text([]byte("data"), "xlsx")
	var ute *UnsupportedTypeError
	if !errors.As(err, &ute) {
		t.Fatalf("expected UnsupportedTypeError, got %v", err)
	}
	if ute.FileType != "xlsx" {
		t.Fatalf("got file type %q", ute.FileType)
	}
}

func TestSupported(t *testing.T) {
	cases := map[string]bool{
		"txt":      true,
		"TXT":      true,
		"md":       true,
		"markdown": true,
		"docx":     true,
		"pdf":      true,
		"xlsx":     false,
		"":         false,
	}
	for fileType, want := range cases {
		if got := Supported(fileType); got != want {
			t.Errorf("Supported(%q) = %v, want %v", fileType, got, want)
		}
	}
}
