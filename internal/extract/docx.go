package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	lexerrors "github.com/Aman-CERP/lexindex/internal/errors"
)

// DocxStrategy extracts raw paragraph text from word/document.xml.
// Formatting is discarded; paragraphs become lines.
type DocxStrategy struct{}

// Extract implements Strategy.
func (DocxStrategy) Extract(ctx context.Context, path string) (*Result, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, lexerrors.New(lexerrors.ErrCodeFileCorrupt, "not a valid docx archive", err)
	}
	defer r.Close()

	var doc *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, lexerrors.New(lexerrors.ErrCodeFileCorrupt, "word/document.xml not found in archive", nil)
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	text, err := docxText(ctx, rc)
	if err != nil {
		return nil, lexerrors.New(lexerrors.ErrCodeFileCorrupt, "malformed document.xml", err)
	}
	return &Result{Title: filepath.Base(path), Text: text}, nil
}

// docxText streams WordprocessingML and keeps the content of w:t runs.
// Tabs and breaks become whitespace so words from adjacent runs do not merge.
func docxText(ctx context.Context, r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var out, para strings.Builder
	inText := false

	for {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if line := strings.TrimSpace(para.String()); line != "" {
					out.WriteString(line)
					out.WriteByte('\n')
				}
				para.Reset()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	if line := strings.TrimSpace(para.String()); line != "" {
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return strings.TrimRight(out.String(), "\n"), nil
}
