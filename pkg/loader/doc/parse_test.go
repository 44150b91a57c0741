package doc

import (
	"archive/zip"
	"bytes"
	"testing"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("failed to create zip entry: %v", err)
	}
	if _, err := f.Write([]byte(documentXML)); err != nil {
		t.Fatalf("failed to write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func TestParseDocx(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want string
	}{
		{
			name: "paragraphs",
			xml: `<w:document xmlns:w="ns"><w:body>` +
				`<w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>` +
				`<w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>` +
				`</w:body></w:document>`,
			want: "First paragraph.\nSecond paragraph.\n",
		},
		{
			name: "tracked deletions are skipped",
			xml: `<w:document xmlns:w="ns"><w:body>` +
				`<w:p><w:r><w:t>Kept text.</w:t></w:r>` +
				`<w:del><w:r><w:t>Deleted text.</w:t></w:r></w:del></w:p>` +
				`</w:body></w:document>`,
			want: "Kept text.\n",
		},
		{
			name: "table cells joined with tabs",
			xml: `<w:document xmlns:w="ns"><w:body><w:tbl>` +
				`<w:tr><w:tc><w:p><w:r><w:t>System</w:t></w:r></w:p></w:tc>` +
				`<w:tc><w:p><w:r><w:t>Owner</w:t></w:r></w:p></w:tc></w:tr>` +
				`</w:tbl></w:body></w:document>`,
			want: "System\n\tOwner\n",
		},
		{
			name: "line break inside paragraph",
			xml: `<w:document xmlns:w="ns"><w:body>` +
				`<w:p><w:r><w:t>Line one</w:t><w:br/><w:t>line two.</w:t></w:r></w:p>` +
				`</w:body></w:document>`,
			want: "Line one\nline two.\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDocx(buildDocx(t, tt.xml))
			if err != nil {
				t.Fatalf("parseDocx() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("parseDocx() = %q, want %q", string(got), tt.want)
			}
		})
	}
}

func TestParseDocxRejectsNonZip(t *testing.T) {
	if _, err := parseDocx([]byte("not a zip archive")); err == nil {
		t.Fatal("parseDocx() accepted non-zip input")
	}
}

func TestParseDocxRejectsMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, _ := zw.Create("word/other.xml")
	f.Write([]byte("<w:document/>"))
	zw.Close()

	if _, err := parseDocx(buf.Bytes()); err == nil {
		t.Fatal("parseDocx() accepted docx without document.xml")
	}
}
