// Package raster turns a decoded source image into packed printer raster
// lines sized to the print head.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/makeworld-the-better-one/dither/v2"
	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"qlprint/internal/geometry"
	"qlprint/internal/logger"
)

// Mode selects the binarization policy.
type Mode int

const (
	// None converts to grayscale and thresholds at luminance 128.
	None Mode = iota
	FloydSteinberg
	Stucki
	JarvisJudiceNinke
)

// ParseMode maps a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "none", "threshold":
		return None, nil
	case "floyd-steinberg", "floydsteinberg":
		return FloydSteinberg, nil
	case "stucki":
		return Stucki, nil
	case "jarvis", "jarvis-judice-ninke":
		return JarvisJudiceNinke, nil
	}
	return None, fmt.Errorf("unknown dither mode %q", s)
}

// Options control encoding. RasterWidthPixels comes from the device model;
// MarginInk sets the padding color (false = white).
type Options struct {
	RasterWidthPixels int
	MarginInk         bool
	Dither            Mode
	Rotate            bool
}

// Bitmap is the prepared monochrome image. Rows[y][x] is true where ink is
// printed.
type Bitmap struct {
	Width  int
	Height int
	Rows   [][]bool
}

// Result carries the bitmap, the packed raster lines (one per row, each
// RasterWidthPixels/8 bytes), and the final label length in millimetres.
type Result struct {
	Bitmap        *Bitmap
	Lines         [][]byte
	LabelLengthMm int
}

// Encode scales the source to fit the printable bounds (never upscaling),
// binarizes it, and assembles one packed raster line per row. For continuous
// tape the label length is recomputed from the final pixel height.
func Encode(img image.Image, geo geometry.PrintGeometry, spec geometry.LabelSpec, opts Options) (*Result, error) {
	if opts.RasterWidthPixels <= 0 || opts.RasterWidthPixels%8 != 0 {
		return nil, fmt.Errorf("raster width %d: must be a positive multiple of 8", opts.RasterWidthPixels)
	}

	if opts.Rotate {
		img = imaging.Rotate90(img)
	}

	img = scaleToFit(img, geo)
	bm := binarize(img, opts.Dither)

	lengthMm := spec.HeightMm
	if spec.Type == geometry.Continuous {
		lengthMm = geometry.PxToMm(bm.Height, geo.DPI)
	}

	lines := make([][]byte, bm.Height)
	for y, row := range bm.Rows {
		lines[y] = Pack(BuildLine(row, opts.RasterWidthPixels, opts.MarginInk))
	}

	logger.Debug("raster encoded",
		zap.Int("width", bm.Width),
		zap.Int("height", bm.Height),
		zap.Int("label_length_mm", lengthMm))

	return &Result{Bitmap: bm, Lines: lines, LabelLengthMm: lengthMm}, nil
}

// scaleToFit shrinks the image so it fits the printable bounds, preserving
// aspect ratio. An image already within bounds is left at native size.
func scaleToFit(img image.Image, geo geometry.PrintGeometry) image.Image {
	sz := img.Bounds().Size()
	if sz.X <= 0 || sz.Y <= 0 {
		return img
	}

	widthRatio := float64(geo.MaxWidthPx) / float64(sz.X)
	heightRatio := float64(geo.MaxHeightPx) / float64(sz.Y)
	scale := math.Min(widthRatio, heightRatio)
	if scale >= 1 {
		return img
	}

	// Both targets are fixed here: letting the resizer derive one side from
	// the other's rounded value can overshoot the bounds by a row or column,
	// and extra rows become raster lines past the label end.
	newWidth := clampPx(math.Round(float64(sz.X)*scale), geo.MaxWidthPx)
	newHeight := clampPx(math.Round(float64(sz.Y)*scale), geo.MaxHeightPx)
	return resize.Resize(uint(newWidth), uint(newHeight), img, resize.Lanczos3)
}

func clampPx(v float64, max int) int {
	px := int(v)
	if px > max {
		px = max
	}
	if px < 1 {
		px = 1
	}
	return px
}

var monoPalette = []color.Color{color.Black, color.White}

// binarize reduces the image to one bit per pixel, either by error-diffusion
// dithering or by a plain luminance threshold.
func binarize(img image.Image, mode Mode) *Bitmap {
	if mode != None {
		d := dither.NewDitherer(monoPalette)
		switch mode {
		case FloydSteinberg:
			d.Matrix = dither.FloydSteinberg
		case Stucki:
			d.Matrix = dither.Stucki
		case JarvisJudiceNinke:
			d.Matrix = dither.JarvisJudiceNinke
		}
		img = d.Dither(img)
	} else {
		img = imaging.Grayscale(img)
	}

	b := img.Bounds()
	bm := &Bitmap{
		Width:  b.Dx(),
		Height: b.Dy(),
		Rows:   make([][]bool, b.Dy()),
	}
	for y := 0; y < bm.Height; y++ {
		row := make([]bool, bm.Width)
		for x := 0; x < bm.Width; x++ {
			r, g, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// 8-bit luminance; anything over 128 is paper white.
			luma := (r>>8 + g>>8 + bb>>8) / 3
			row[x] = luma <= 128
		}
		bm.Rows[y] = row
	}
	return bm
}

// BuildLine centers an image row within the full print-head width. The head
// scans right-to-left, so the row's pixels are written in reverse column
// order after floor(margin/2) leading margin pixels; the rest of the line is
// filled with the margin color.
func BuildLine(row []bool, rasterWidth int, marginInk bool) []bool {
	if len(row) > rasterWidth {
		row = row[:rasterWidth]
	}
	leading := (rasterWidth - len(row)) / 2

	line := make([]bool, rasterWidth)
	for i := 0; i < leading; i++ {
		line[i] = marginInk
	}
	for i, w := 0, len(row); i < w; i++ {
		line[leading+i] = row[w-1-i]
	}
	for i := leading + len(row); i < rasterWidth; i++ {
		line[i] = marginInk
	}
	return line
}

// Pack packs an assembled line 8 pixels per byte, most significant bit
// first, ink=1. The line length must be a multiple of 8.
func Pack(line []bool) []byte {
	data := make([]byte, len(line)/8)
	for x, ink := range line {
		if ink {
			data[x/8] |= 0x80 >> uint(x%8)
		}
	}
	return data
}
