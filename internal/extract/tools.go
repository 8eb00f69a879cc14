package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	lexerrors "github.com/Aman-CERP/lexindex/internal/errors"
)

// DefaultToolTimeout bounds one external tool invocation.
const DefaultToolTimeout = 2 * time.Minute

// PdftoppmRasterizer renders pages with poppler's pdftoppm.
type PdftoppmRasterizer struct {
	// Binary is the pdftoppm executable; empty means "pdftoppm" on PATH.
	Binary  string
	Timeout time.Duration
}

var pageImageRe = regexp.MustCompile(`^page-(\d+)\.png$`)

// Rasterize implements Rasterizer.
func (p PdftoppmRasterizer) Rasterize(ctx context.Context, pdfPath, outDir string, dpi int) ([]string, error) {
	bin := p.Binary
	if bin == "" {
		bin = "pdftoppm"
	}
	args := []string{"-png", "-r", strconv.Itoa(dpi), pdfPath, filepath.Join(outDir, "page")}
	if _, err := runTool(ctx, p.Timeout, bin, args, nil); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("list rendered pages: %w", err)
	}
	type page struct {
		n    int
		path string
	}
	var pages []page
	for _, e := range entries {
		m := pageImageRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		pages = append(pages, page{n: n, path: filepath.Join(outDir, e.Name())})
	}
	// pdftoppm zero-pads to the width of the last page number, so sort numerically.
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	out := make([]string, len(pages))
	for i, pg := range pages {
		out[i] = pg.path
	}
	return out, nil
}

// TesseractEngine recognizes text with the tesseract CLI, feeding the
// image on stdin and reading text from stdout.
type TesseractEngine struct {
	// Binary is the tesseract executable; empty means "tesseract" on PATH.
	Binary string
	// Languages is a tesseract language spec such as "tur+eng".
	Languages string
	Timeout   time.Duration
}

// Recognize implements OCREngine.
func (t TesseractEngine) Recognize(ctx context.Context, image []byte) (string, error) {
	bin := t.Binary
	if bin == "" {
		bin = "tesseract"
	}
	langs := t.Languages
	if langs == "" {
		langs = "tur+eng"
	}
	out, err := runTool(ctx, t.Timeout, bin, []string{"stdin", "stdout", "-l", langs}, image)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// runTool runs an external program under a timeout and classifies the
// failure: missing binary, timeout, or non-zero exit.
func runTool(ctx context.Context, timeout time.Duration, bin string, args []string, stdin []byte) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	err := cmd.Run()
	switch {
	case err == nil:
		return stdout.Bytes(), nil
	case errors.Is(err, exec.ErrNotFound):
		return nil, lexerrors.New(lexerrors.ErrCodeToolMissing, filepath.Base(bin)+" is not installed", err).
			WithSuggestion("install poppler-utils and tesseract-ocr, or disable OCR")
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, lexerrors.New(lexerrors.ErrCodeToolTimeout,
			fmt.Sprintf("%s timed out after %s", filepath.Base(bin), timeout), err)
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, lexerrors.New(lexerrors.ErrCodeExtractFailed,
			fmt.Sprintf("%s failed: %s", filepath.Base(bin), msg), err)
	}
}
