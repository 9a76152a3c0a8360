// Package protocol assembles the wire-exact raster command stream consumed
// by the printer. Byte values here are fixed by the device protocol and must
// not be derived or reordered.
package protocol

import (
	"bytes"
	"fmt"
)

// Media type codes carried in the print-information block.
const (
	MediaContinuous byte = 0x0A
	MediaDieCut     byte = 0x0B
)

const (
	// Number of zero bytes in the invalidate preamble that flushes any
	// half-received command left in the device.
	preambleLen = 350

	// Print-information flag byte: kind, width, length and recover bits set.
	printInfoFlags byte = 0x8E
)

var (
	initialize    = []byte{0x1B, 0x40}             // ESC @
	rasterMode    = []byte{0x1B, 0x69, 0x61, 0x01} // ESC i a: raster command mode
	statusOff     = []byte{0x1B, 0x69, 0x21, 0x00} // ESC i !: no automatic status
	modeAutoCut   = []byte{0x1B, 0x69, 0x4D, 0x40} // ESC i M: auto-cut mode
	noCompression = []byte{0x4D, 0x00}             // M: uncompressed raster lines

	feedNoCut     byte = 0x0C // between copies
	printWithFeed byte = 0x1A // after the final copy
)

// Params describe one print job's framing inputs. Lines are the packed
// raster lines shared by every copy.
type Params struct {
	MediaType byte
	WidthMm   int
	HeightMm  int // 0 for continuous media
	Copies    int
	Lines     [][]byte
}

// BuildStream assembles the full command stream: invalidate preamble,
// initialize, then per copy a control block followed by the 'g'-framed
// raster payload, with a feed marker between copies and a print-and-cut
// terminator after the last.
func BuildStream(p Params) ([]byte, error) {
	if p.Copies < 1 {
		return nil, fmt.Errorf("copies %d: must be at least 1", p.Copies)
	}
	if len(p.Lines) == 0 {
		return nil, fmt.Errorf("no raster lines to print")
	}
	if p.WidthMm < 0 || p.WidthMm > 0xFF || p.HeightMm < 0 || p.HeightMm > 0xFF {
		return nil, fmt.Errorf("label %dx%dmm: dimensions must fit one byte", p.WidthMm, p.HeightMm)
	}
	if p.MediaType != MediaDieCut && p.MediaType != MediaContinuous {
		return nil, fmt.Errorf("media type 0x%02X: unknown", p.MediaType)
	}

	var buf bytes.Buffer
	buf.Write(make([]byte, preambleLen))
	buf.Write(initialize)

	for c := 0; c < p.Copies; c++ {
		if c > 0 {
			buf.WriteByte(feedNoCut)
		}
		writeControlBlock(&buf, p)
		for _, line := range p.Lines {
			buf.WriteByte(0x67) // 'g'
			buf.WriteByte(0x00)
			buf.WriteByte(byte(len(line)))
			buf.Write(line)
		}
	}
	buf.WriteByte(printWithFeed)

	return buf.Bytes(), nil
}

func writeControlBlock(buf *bytes.Buffer, p Params) {
	buf.Write(rasterMode)
	buf.Write(statusOff)

	// Print information: ESC i z flags media width height count4 page reserved.
	buf.Write([]byte{0x1B, 0x69, 0x7A, printInfoFlags, p.MediaType, byte(p.WidthMm), byte(p.HeightMm)})
	buf.Write(intLowHigh(len(p.Lines), 4))
	buf.WriteByte(0x00) // starting page
	buf.WriteByte(0x00) // reserved

	buf.Write(modeAutoCut)
	buf.Write(noCompression)
}

// StreamLen is the exact byte length BuildStream produces for the given
// line shapes, usable as an arithmetic cross-check.
func StreamLen(copies int, lines [][]byte) int {
	payload := 0
	for _, line := range lines {
		payload += 3 + len(line)
	}
	const controlBlockLen = 4 + 4 + 13 + 4 + 2
	return preambleLen + len(initialize) + copies*(controlBlockLen+payload) + (copies - 1) + 1
}
