package doc

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const docXMLMax = 50 << 20

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// docxWalker accumulates plain text while walking the document XML.
// Tracked-change deletions (w:del) are skipped; table cells are separated
// by tabs and rows by newlines so tables survive as text.
type docxWalker struct {
	sb       strings.Builder
	inText   bool
	delDepth int
	inTable  bool
	cellIdx  int
}

func parseDocx(content []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("document.xml not found in docx")
	}
	if docFile.UncompressedSize64 > docXMLMax {
		return nil, fmt.Errorf("document.xml too large: %d bytes",
			docFile.UncompressedSize64)
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(io.LimitReader(rc, int64(docXMLMax)))
	w := &docxWalker{}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			w.start(t.Name.Local)
		case xml.EndElement:
			w.end(t.Name.Local)
		case xml.CharData:
			if w.delDepth == 0 && w.inText {
				w.sb.Write(t)
			}
		}
	}

	text := strings.TrimSpace(w.sb.String())
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	if text != "" {
		text += "\n"
	}

	return []byte(text), nil
}

func (w *docxWalker) start(name string) {
	switch name {
	case "del":
		w.delDepth++
	case "t":
		w.inText = true
	case "tab":
		if w.delDepth == 0 {
			w.sb.WriteByte('\t')
		}
	case "br", "cr":
		if w.delDepth == 0 {
			w.sb.WriteByte('\n')
		}
	case "noBreakHyphen":
		if w.delDepth == 0 {
			w.sb.WriteByte('-')
		}
	case "tbl":
		w.inTable = true
		w.cellIdx = 0
		if w.sb.Len() > 0 && !strings.HasSuffix(w.sb.String(), "\n") {
			w.sb.WriteByte('\n')
		}
	case "tr":
		w.cellIdx = 0
	case "tc":
		if w.inTable && w.delDepth == 0 {
			if w.cellIdx > 0 {
				w.sb.WriteByte('\t')
			}
			w.cellIdx++
		}
	}
}

func (w *docxWalker) end(name string) {
	switch name {
	case "t":
		w.inText = false
	case "p", "tr", "tbl":
		if w.delDepth == 0 {
			w.sb.WriteByte('\n')
		}
		if name == "tbl" {
			w.inTable = false
		}
	case "del":
		if w.delDepth > 0 {
			w.delDepth--
		}
	}
}
