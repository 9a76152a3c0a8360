// Package converter rasterizes non-raster inputs (PDF, SVG, HTML) with
// headless Chrome before they enter the print pipeline.
package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"qlprint/internal/logger"
)

// Chrome renders at 96 CSS pixels per inch by default; the device scale
// factor maps that to the printer resolution.
const cssDPI = 96.0

// Options for one rasterization. ChromePath overrides the browser binary
// when the default lookup fails (e.g. macOS app-bundle installs).
type Options struct {
	DPI        int
	ChromePath string
	// Viewport in CSS pixels before scaling. Zero values fall back to a
	// 4x6 inch page.
	ViewportW int64
	ViewportH int64
}

// Rasterize renders the file at the requested DPI and returns the decoded
// full-page screenshot.
func Rasterize(ctx context.Context, path string, opts Options) (image.Image, error) {
	if opts.DPI <= 0 {
		return nil, fmt.Errorf("converter dpi %d: must be positive", opts.DPI)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	vw, vh := opts.ViewportW, opts.ViewportH
	if vw == 0 {
		vw = 4 * cssDPI
	}
	if vh == 0 {
		vh = 6 * cssDPI
	}
	scale := float64(opts.DPI) / cssDPI

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
	)
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()
	cdpCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var pngBytes []byte
	err = chromedp.Run(cdpCtx,
		chromedp.EmulateViewport(vw, vh, chromedp.EmulateScale(scale)),
		chromedp.Navigate("file://"+abs),
		chromedp.Sleep(300*time.Millisecond),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, err := page.CaptureScreenshot().
				WithCaptureBeyondViewport(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pngBytes = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("rasterize %s: %w", path, err)
	}

	img, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, fmt.Errorf("decode rasterized page: %w", err)
	}

	logger.Info("input rasterized",
		zap.String("file", path),
		zap.Int("dpi", opts.DPI),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))
	return img, nil
}
