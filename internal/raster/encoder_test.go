package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qlprint/internal/geometry"
)

// unpack reverses Pack for verification.
func unpack(data []byte, n int) []bool {
	line := make([]bool, n)
	for x := range line {
		line[x] = data[x/8]&(0x80>>uint(x%8)) != 0
	}
	return line
}

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPackRoundTrip(t *testing.T) {
	for _, n := range []int{8, 64, 832, 1280} {
		line := make([]bool, n)
		for x := range line {
			line[x] = x%3 == 0 || x%7 == 1
		}
		packed := Pack(line)
		require.Len(t, packed, n/8)
		assert.Equal(t, line, unpack(packed, n), "width %d", n)
	}
}

func TestPackBitOrder(t *testing.T) {
	line := make([]bool, 16)
	line[0] = true  // MSB of byte 0
	line[15] = true // LSB of byte 1
	assert.Equal(t, []byte{0x80, 0x01}, Pack(line))
}

func TestBuildLineMarginSymmetry(t *testing.T) {
	row := make([]bool, 100)
	for x := range row {
		row[x] = x%2 == 0
	}

	line := BuildLine(row, 832, false)
	require.Len(t, line, 832)

	leading := (832 - 100) / 2 // 366
	for i := 0; i < leading; i++ {
		assert.False(t, line[i], "leading margin pixel %d", i)
	}
	for i := leading + 100; i < 832; i++ {
		assert.False(t, line[i], "trailing margin pixel %d", i)
	}
	// Image pixels run right-to-left within the line.
	for i := 0; i < 100; i++ {
		assert.Equal(t, row[99-i], line[leading+i], "column %d", i)
	}
}

func TestBuildLineMarginInk(t *testing.T) {
	line := BuildLine(make([]bool, 10), 32, true)
	leading := (32 - 10) / 2
	for i := 0; i < leading; i++ {
		assert.True(t, line[i])
	}
	for i := leading; i < leading+10; i++ {
		assert.False(t, line[i])
	}
	for i := leading + 10; i < 32; i++ {
		assert.True(t, line[i])
	}
}

func TestEncodeNeverUpscales(t *testing.T) {
	img := solidImage(50, 60, color.Black)
	geo := geometry.PrintGeometry{MaxWidthPx: 496, MaxHeightPx: 751, DPI: 203}
	spec := geometry.LabelSpec{Type: geometry.DieCut, WidthMm: 62, HeightMm: 100}

	res, err := Encode(img, geo, spec, Options{RasterWidthPixels: 832})
	require.NoError(t, err)
	assert.Equal(t, 50, res.Bitmap.Width)
	assert.Equal(t, 60, res.Bitmap.Height)
	assert.Len(t, res.Lines, 60)
}

func TestEncodeScalesDown(t *testing.T) {
	img := solidImage(992, 400, color.Black)
	geo := geometry.PrintGeometry{MaxWidthPx: 496, MaxHeightPx: 751, DPI: 203}
	spec := geometry.LabelSpec{Type: geometry.DieCut, WidthMm: 62, HeightMm: 100}

	res, err := Encode(img, geo, spec, Options{RasterWidthPixels: 832})
	require.NoError(t, err)
	// Width ratio 0.5 is the limiting dimension.
	assert.Equal(t, 496, res.Bitmap.Width)
	assert.Equal(t, 200, res.Bitmap.Height)
}

// Rounding the scaled width up must not let the derived height spill past
// the printable bounds: every raster line has to land on the label.
func TestEncodeScaledOutputFitsBounds(t *testing.T) {
	testCases := []struct {
		name string
		w, h int
		geo  geometry.PrintGeometry
	}{
		{"tall narrow", 10, 2000, geometry.PrintGeometry{MaxWidthPx: 496, MaxHeightPx: 751, DPI: 203}},
		{"short max height", 3, 30, geometry.PrintGeometry{MaxWidthPx: 496, MaxHeightPx: 15, DPI: 203}},
		{"wide short", 2000, 10, geometry.PrintGeometry{MaxWidthPx: 496, MaxHeightPx: 751, DPI: 203}},
		{"narrow max width", 30, 3, geometry.PrintGeometry{MaxWidthPx: 15, MaxHeightPx: 496, DPI: 203}},
	}

	spec := geometry.LabelSpec{Type: geometry.DieCut, WidthMm: 62, HeightMm: 100}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Encode(solidImage(tc.w, tc.h, color.Black), tc.geo, spec, Options{RasterWidthPixels: 832})
			require.NoError(t, err)
			assert.LessOrEqual(t, res.Bitmap.Width, tc.geo.MaxWidthPx)
			assert.LessOrEqual(t, res.Bitmap.Height, tc.geo.MaxHeightPx)
			assert.Len(t, res.Lines, res.Bitmap.Height)
		})
	}
}

func TestEncodeContinuousLengthRecomputed(t *testing.T) {
	img := solidImage(100, 812, color.Black)
	geo := geometry.PrintGeometry{MaxWidthPx: 1205, MaxHeightPx: 35433, DPI: 300}
	spec := geometry.LabelSpec{Type: geometry.Continuous, WidthMm: 102, HeightMm: 500}

	res, err := Encode(img, geo, spec, Options{RasterWidthPixels: 1280})
	require.NoError(t, err)
	// ceil(812/300*25.4) = 69, overriding the supplied height.
	assert.Equal(t, 69, res.LabelLengthMm)
}

func TestEncodeDieCutKeepsSpecLength(t *testing.T) {
	img := solidImage(100, 150, color.Black)
	geo := geometry.PrintGeometry{MaxWidthPx: 496, MaxHeightPx: 751, DPI: 203}
	spec := geometry.LabelSpec{Type: geometry.DieCut, WidthMm: 62, HeightMm: 100}

	res, err := Encode(img, geo, spec, Options{RasterWidthPixels: 832})
	require.NoError(t, err)
	assert.Equal(t, 100, res.LabelLengthMm)
}

func TestEncodeThresholdBinarization(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.NRGBA{0, 0, 0, 255})       // ink
	img.Set(1, 0, color.NRGBA{120, 120, 120, 255}) // at/below threshold: ink
	img.Set(2, 0, color.NRGBA{250, 250, 250, 255}) // white
	geo := geometry.PrintGeometry{MaxWidthPx: 496, MaxHeightPx: 751, DPI: 203}
	spec := geometry.LabelSpec{Type: geometry.DieCut, WidthMm: 62, HeightMm: 100}

	res, err := Encode(img, geo, spec, Options{RasterWidthPixels: 832})
	require.NoError(t, err)
	row := res.Bitmap.Rows[0]
	assert.True(t, row[0])
	assert.True(t, row[1])
	assert.False(t, row[2])
}

// End-to-end bit pattern check: 100x150 all black at 203 dpi, die-cut, no
// dithering. Every bit inside the centered image region is ink, every
// margin bit is the default white.
func TestEncodeAllBlackEndToEnd(t *testing.T) {
	img := solidImage(100, 150, color.Black)
	geo := geometry.PrintGeometry{MaxWidthPx: 496, MaxHeightPx: 751, DPI: 203}
	spec := geometry.LabelSpec{Type: geometry.DieCut, WidthMm: 62, HeightMm: 100}

	res, err := Encode(img, geo, spec, Options{RasterWidthPixels: 832})
	require.NoError(t, err)
	require.Len(t, res.Lines, 150)

	leading := (832 - 100) / 2
	for y, line := range res.Lines {
		require.Len(t, line, 104)
		bits := unpack(line, 832)
		for x, ink := range bits {
			inImage := x >= leading && x < leading+100
			assert.Equal(t, inImage, ink, "line %d bit %d", y, x)
		}
	}

	// Bytes fully inside the image region are solid ink; bytes fully in
	// the margin are zero.
	line := res.Lines[0]
	for b := 46; b < 58; b++ {
		assert.Equal(t, byte(0xFF), line[b], "byte %d", b)
	}
	for b := 0; b < 45; b++ {
		assert.Equal(t, byte(0x00), line[b], "byte %d", b)
	}
}

func TestEncodeRejectsBadRasterWidth(t *testing.T) {
	img := solidImage(10, 10, color.Black)
	geo := geometry.PrintGeometry{MaxWidthPx: 496, MaxHeightPx: 751, DPI: 203}
	spec := geometry.LabelSpec{Type: geometry.DieCut, WidthMm: 62, HeightMm: 100}

	_, err := Encode(img, geo, spec, Options{RasterWidthPixels: 830})
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	for s, want := range map[string]Mode{
		"":                    None,
		"none":                None,
		"floyd-steinberg":     FloydSteinberg,
		"stucki":              Stucki,
		"jarvis-judice-ninke": JarvisJudiceNinke,
	} {
		got, err := ParseMode(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}

	_, err := ParseMode("atkinson")
	assert.Error(t, err)
}
