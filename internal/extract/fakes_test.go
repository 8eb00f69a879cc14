package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fakeRasterizer writes one small file per page and remembers where.
type fakeRasterizer struct {
	Pages  int
	Err    error
	mu     sync.Mutex
	outDir string
	calls  int
}

func (f *fakeRasterizer) Rasterize(_ context.Context, _ string, outDir string, _ int) ([]string, error) {
	f.mu.Lock()
	f.outDir = outDir
	f.calls++
	f.mu.Unlock()

	var paths []string
	for i := 1; i <= f.Pages; i++ {
		p := filepath.Join(outDir, fmt.Sprintf("page-%d.png", i))
		if err := os.WriteFile(p, []byte(fmt.Sprintf("page %d", i)), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return paths, nil
}

// fakeOCR echoes the image bytes, optionally via a custom function.
type fakeOCR struct {
	RecognizeFn func(ctx context.Context, image []byte) (string, error)
	mu          sync.Mutex
	calls       int
}

func (f *fakeOCR) Recognize(ctx context.Context, image []byte) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.RecognizeFn != nil {
		return f.RecognizeFn(ctx, image)
	}
	return "OCR:" + string(image), nil
}
