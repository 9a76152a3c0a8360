// Package geometry converts label media dimensions into printable bounds in
// device pixels.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"qlprint/internal/device"
)

// LabelType distinguishes pre-sized die-cut stock from continuous tape.
type LabelType int

const (
	DieCut LabelType = iota
	Continuous
)

func (t LabelType) String() string {
	switch t {
	case DieCut:
		return "die-cut"
	case Continuous:
		return "continuous"
	}
	return fmt.Sprintf("LabelType(%d)", int(t))
}

// LabelSpec describes the loaded media. HeightMm is ignored for continuous
// tape, whose printed length is image-driven.
type LabelSpec struct {
	Type     LabelType
	WidthMm  int
	HeightMm int
}

// PrintGeometry is the maximum printable area in device pixels, derived once
// per job from the model DPI and the label spec.
type PrintGeometry struct {
	MaxWidthPx  int
	MaxHeightPx int
	DPI         int
}

// ErrInvalidLabelSize means the label spec is malformed or yields a
// non-positive printable area.
var ErrInvalidLabelSize = errors.New("invalid label size")

const (
	// The device reserves a fixed 48-pixel feed margin on die-cut stock.
	dieCutMarginPx = 48

	// Longest supported continuous print, in millimetres.
	continuousMaxMm = 3000

	mmPerInch = 25.4
)

// ComputeMaxBounds derives the printable pixel bounds. Non-positive results
// are surfaced as ErrInvalidLabelSize, never clamped.
func ComputeMaxBounds(m device.Model, spec LabelSpec) (PrintGeometry, error) {
	if spec.WidthMm <= 0 {
		return PrintGeometry{}, fmt.Errorf("width %dmm: %w", spec.WidthMm, ErrInvalidLabelSize)
	}
	if spec.Type == DieCut && spec.HeightMm <= 0 {
		return PrintGeometry{}, fmt.Errorf("height %dmm: %w", spec.HeightMm, ErrInvalidLabelSize)
	}

	g := PrintGeometry{
		MaxWidthPx: mmToPx(spec.WidthMm, m.DPI),
		DPI:        m.DPI,
	}
	switch spec.Type {
	case DieCut:
		g.MaxHeightPx = mmToPx(spec.HeightMm, m.DPI) - dieCutMarginPx
	case Continuous:
		g.MaxHeightPx = mmToPx(continuousMaxMm, m.DPI)
	default:
		return PrintGeometry{}, fmt.Errorf("label type %v: %w", spec.Type, ErrInvalidLabelSize)
	}

	if g.MaxWidthPx <= 0 || g.MaxHeightPx <= 0 {
		return PrintGeometry{}, fmt.Errorf("%dx%dmm %s yields %dx%dpx: %w",
			spec.WidthMm, spec.HeightMm, spec.Type, g.MaxWidthPx, g.MaxHeightPx, ErrInvalidLabelSize)
	}
	return g, nil
}

func mmToPx(mm, dpi int) int {
	return int(math.Round(float64(mm) * float64(dpi) / mmPerInch))
}

// PxToMm converts a pixel extent back to millimetres, rounding up so the
// printed media never truncates the image. Used for continuous tape length.
func PxToMm(px, dpi int) int {
	return int(math.Ceil(float64(px) / float64(dpi) * mmPerInch))
}
