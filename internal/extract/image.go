package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	lexerrors "github.com/Aman-CERP/lexindex/internal/errors"
)

// ImageStrategy runs OCR on the raw image bytes.
type ImageStrategy struct {
	Engine OCREngine
}

// Extract implements Strategy.
func (s ImageStrategy) Extract(ctx context.Context, path string) (*Result, error) {
	if s.Engine == nil {
		return nil, lexerrors.New(lexerrors.ErrCodeToolMissing, "image OCR requested but no OCR engine is configured", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text, err := s.Engine.Recognize(ctx, data)
	if err != nil {
		return nil, err
	}
	return &Result{Title: filepath.Base(path), Text: strings.TrimSpace(text), OCR: true}, nil
}
