package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// renderPDF rasterizes a PDF into one PNG per page under a temp dir.
// Call cleanup() to remove the pages.
func (e *Extractor) renderPDF(ctx context.Context, path string) ([]string, func(), []string, error) {
	tmpDir, err := os.MkdirTemp("", "invoice-pp-*")
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.render.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, e.logger, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		cleanup()
		return nil, nil, []string{string(errb)}, fmt.Errorf("pdftoppm: %w", err)
	}

	// collect generated pngs (page-1.png, page-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sortPages(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		cleanup()
		return nil, nil, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}
	return matches, cleanup, nil, nil
}

// sortPages orders page-N.png files numerically; pdftoppm zero-pads only
// when the page count needs it, so plain string order is not enough.
func sortPages(paths []string) {
	num := func(p string) int {
		base := filepath.Base(p)
		ext := filepath.Ext(base)
		i := len(base) - len(ext)
		j := i
		for j > 0 && base[j-1] >= '0' && base[j-1] <= '9' {
			j--
		}
		n, _ := strconv.Atoi(base[j:i])
		return n
	}
	sort.SliceStable(paths, func(a, b int) bool { return num(paths[a]) < num(paths[b]) })
}
