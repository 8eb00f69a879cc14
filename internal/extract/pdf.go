package extract

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"

	lexerrors "github.com/Aman-CERP/lexindex/internal/errors"
)

// PDFOptions configures the scanned-PDF fallback.
type PDFOptions struct {
	// OCR enables the fallback. Rasterizer and Engine must be set when true.
	OCR        bool
	Rasterizer Rasterizer
	Engine     OCREngine
	// MinTextChars is the embedded-text length (after trimming) below
	// which the PDF is treated as a scan.
	MinTextChars int
	DPI          int
	// PageWorkers bounds concurrent page recognition.
	PageWorkers int
	// TempDir is where page images are rendered; empty uses os.TempDir.
	TempDir string
}

// PDFStrategy extracts embedded text with pdfcpu and falls back to
// rasterize-and-OCR for PDFs that carry (almost) no text.
type PDFStrategy struct {
	opts PDFOptions
	// textFn is replaced in tests to simulate text-bearing or scanned PDFs.
	textFn func(ctx context.Context, path string) (string, error)
}

// NewPDFStrategy creates a PDF strategy.
func NewPDFStrategy(opts PDFOptions) *PDFStrategy {
	if opts.DPI <= 0 {
		opts.DPI = 180
	}
	if opts.PageWorkers <= 0 {
		opts.PageWorkers = 1
	}
	return &PDFStrategy{opts: opts, textFn: pdfText}
}

// Extract implements Strategy. The title is always the file name.
func (s *PDFStrategy) Extract(ctx context.Context, path string) (*Result, error) {
	text, err := s.textFn(ctx, path)
	if err != nil {
		return nil, err
	}
	res := &Result{Title: filepath.Base(path), Text: text}

	if !s.opts.OCR || len([]rune(strings.TrimSpace(text))) >= s.opts.MinTextChars {
		return res, nil
	}

	slog.Debug("pdf has little embedded text, running OCR",
		slog.String("path", path),
		slog.Int("chars", len([]rune(strings.TrimSpace(text)))))

	ocrText, err := s.ocr(ctx, path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ocrText) != "" {
		res.Text = ocrText
		res.OCR = true
	}
	return res, nil
}

// ocr renders every page into a private temp dir, recognizes the pages
// concurrently and joins them in page order. The temp dir is removed on
// every path out.
func (s *PDFStrategy) ocr(ctx context.Context, path string) (string, error) {
	if s.opts.Rasterizer == nil || s.opts.Engine == nil {
		return "", lexerrors.New(lexerrors.ErrCodeToolMissing, "pdf OCR is enabled but no OCR tools are configured", nil)
	}

	dir, err := os.MkdirTemp(s.opts.TempDir, "lexindex-pdfocr-")
	if err != nil {
		return "", fmt.Errorf("create raster dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			slog.Warn("failed to remove raster dir", slog.String("dir", dir), slog.String("error", rmErr.Error()))
		}
	}()

	pages, err := s.opts.Rasterizer.Rasterize(ctx, path, dir, s.opts.DPI)
	if err != nil {
		return "", err
	}

	texts := make([]string, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.PageWorkers)
	for i, page := range pages {
		g.Go(func() error {
			img, err := os.ReadFile(page)
			if err != nil {
				return fmt.Errorf("read page image: %w", err)
			}
			t, err := s.opts.Engine.Recognize(gctx, img)
			if err != nil {
				return err
			}
			texts[i] = strings.TrimSpace(t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	return strings.TrimSpace(strings.Join(texts, "\n\n")), nil
}

// pdfText reads the text-showing operators of every page's content stream.
func pdfText(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return "", lexerrors.New(lexerrors.ErrCodeFileCorrupt, "cannot parse pdf", err)
	}

	var sb strings.Builder
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
		if err != nil || r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil || len(data) == 0 {
			continue
		}
		if page := contentStreamText(data); page != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(page)
		}
	}
	return sb.String(), nil
}

// pdfStringRe matches a literal string (group 1) or a hex string (group 2).
var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)|<([0-9A-Fa-f\s]*)>`)

// contentStreamText collects the strings shown by Tj, TJ, ' and ".
// Text positioned on a new line (Td, TD, T*, ') starts a new line.
func contentStreamText(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			writeShownStrings(&sb, line)
		case bytes.HasSuffix(line, []byte("'")), bytes.HasSuffix(line, []byte(`"`)):
			if bytes.ContainsAny(line, "(<") {
				sb.WriteByte('\n')
				writeShownStrings(&sb, line)
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			sb.WriteByte(' ')
		case bytes.Equal(line, []byte("T*")), bytes.Equal(line, []byte("ET")):
			sb.WriteByte('\n')
		}
	}
	return tidyLines(sb.String())
}

func writeShownStrings(sb *strings.Builder, line []byte) {
	for _, m := range pdfStringRe.FindAllSubmatchIndex(line, -1) {
		var raw []byte
		if m[2] >= 0 {
			raw = unescapePDFLiteral(line[m[2]:m[3]])
		} else {
			raw = decodePDFHex(line[m[4]:m[5]])
		}
		sb.WriteString(decodePDFText(raw))
	}
}

// unescapePDFLiteral resolves backslash escapes, including octal codes.
func unescapePDFLiteral(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			out = append(out, raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'b', 'f':
		case '\\', '(', ')':
			out = append(out, c)
		default:
			if c < '0' || c > '7' {
				out = append(out, c)
				continue
			}
			val := int(c - '0')
			for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			out = append(out, byte(val))
		}
	}
	return out
}

// decodePDFHex turns the digits of a <...> string into bytes. Whitespace
// is ignored and an odd final digit is padded with 0.
func decodePDFHex(digits []byte) []byte {
	clean := make([]byte, 0, len(digits)+1)
	for _, c := range digits {
		if !unicode.IsSpace(rune(c)) {
			clean = append(clean, c)
		}
	}
	if len(clean)%2 == 1 {
		clean = append(clean, '0')
	}
	out := make([]byte, hex.DecodedLen(len(clean)))
	n, err := hex.Decode(out, clean)
	if err != nil {
		return nil
	}
	return out[:n]
}

// decodePDFText converts string bytes to UTF-8. A BOM marks UTF-16BE text
// strings; bytes that already form valid UTF-8 are kept; anything else is
// read as Windows-1254, which is WinAnsi with the Turkish letters in place
// of the Icelandic ones.
func decodePDFText(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		out, err := xunicode.UTF16(xunicode.BigEndian, xunicode.ExpectBOM).NewDecoder().Bytes(raw)
		if err == nil {
			return string(out)
		}
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	out, err := charmap.Windows1254.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "")
	}
	return string(out)
}

// tidyLines collapses runs of blanks inside each line, drops
// non-printable runes and removes empty lines.
func tidyLines(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		var sb strings.Builder
		space := false
		for _, r := range line {
			switch {
			case unicode.IsSpace(r):
				space = sb.Len() > 0
			case unicode.IsPrint(r):
				if space {
					sb.WriteByte(' ')
					space = false
				}
				sb.WriteRune(r)
			}
		}
		if sb.Len() > 0 {
			out = append(out, sb.String())
		}
	}
	return strings.Join(out, "\n")
}
