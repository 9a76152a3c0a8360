// Package job chains geometry, raster encoding and command framing into one
// print invocation and hands the result to a transport.
package job

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"qlprint/internal/device"
	"qlprint/internal/geometry"
	"qlprint/internal/logger"
	"qlprint/internal/protocol"
	"qlprint/internal/raster"
)

var (
	// ErrImageLoad means the source image could not be read or decoded.
	ErrImageLoad = errors.New("load source image")

	// ErrShortWrite means the transport accepted fewer bytes than the
	// command stream length.
	ErrShortWrite = errors.New("short write to printer")
)

// Job is one print invocation. Everything is fixed before BuildStream runs.
type Job struct {
	Model     device.Model
	Spec      geometry.LabelSpec
	Copies    int
	Dither    raster.Mode
	Rotate    bool
	MarginInk bool

	// DebugDir, when non-empty, receives bitmap.png, raster.bin and
	// stream.bin side artifacts.
	DebugDir string
}

// LoadImage decodes a raster input file.
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageLoad, path, err)
	}
	return img, nil
}

// BuildStream runs the computational half of the pipeline: printable bounds,
// raster encoding, command framing. The returned stream is complete and
// ready to transmit.
func (j *Job) BuildStream(img image.Image) ([]byte, *raster.Result, error) {
	geo, err := geometry.ComputeMaxBounds(j.Model, j.Spec)
	if err != nil {
		return nil, nil, err
	}

	res, err := raster.Encode(img, geo, j.Spec, raster.Options{
		RasterWidthPixels: j.Model.RasterWidthPixels,
		MarginInk:         j.MarginInk,
		Dither:            j.Dither,
		Rotate:            j.Rotate,
	})
	if err != nil {
		return nil, nil, err
	}

	mediaType := protocol.MediaDieCut
	heightMm := j.Spec.HeightMm
	if j.Spec.Type == geometry.Continuous {
		mediaType = protocol.MediaContinuous
		heightMm = 0
	}

	stream, err := protocol.BuildStream(protocol.Params{
		MediaType: mediaType,
		WidthMm:   j.Spec.WidthMm,
		HeightMm:  heightMm,
		Copies:    j.Copies,
		Lines:     res.Lines,
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info("command stream built",
		zap.String("model", j.Model.Name),
		zap.Int("raster_lines", len(res.Lines)),
		zap.Int("copies", j.Copies),
		zap.Int("stream_bytes", len(stream)))

	if j.DebugDir != "" {
		j.dumpArtifacts(res, stream)
	}
	return stream, res, nil
}

// Transmit writes the stream in a single call and verifies the byte count.
func (j *Job) Transmit(w io.Writer, stream []byte) error {
	n, err := w.Write(stream)
	if err != nil {
		return fmt.Errorf("write command stream: %w", err)
	}
	if n != len(stream) {
		return fmt.Errorf("%w: sent %d of %d bytes", ErrShortWrite, n, len(stream))
	}
	logger.Info("command stream transmitted", zap.Int("bytes", n))
	return nil
}

// dumpArtifacts writes the diagnostics side files. Failures are logged, not
// fatal; diagnostics never abort a print.
func (j *Job) dumpArtifacts(res *raster.Result, stream []byte) {
	if err := os.MkdirAll(j.DebugDir, 0o755); err != nil {
		logger.Warn("create debug dir", zap.Error(err))
		return
	}

	snapshot := image.NewGray(image.Rect(0, 0, res.Bitmap.Width, res.Bitmap.Height))
	for y, row := range res.Bitmap.Rows {
		for x, ink := range row {
			if !ink {
				snapshot.Pix[y*snapshot.Stride+x] = 0xFF
			}
		}
	}
	if err := imaging.Save(snapshot, filepath.Join(j.DebugDir, "bitmap.png")); err != nil {
		logger.Warn("write bitmap snapshot", zap.Error(err))
	}

	var rasterBytes []byte
	for _, line := range res.Lines {
		rasterBytes = append(rasterBytes, line...)
	}
	if err := os.WriteFile(filepath.Join(j.DebugDir, "raster.bin"), rasterBytes, 0o644); err != nil {
		logger.Warn("write raster dump", zap.Error(err))
	}
	if err := os.WriteFile(filepath.Join(j.DebugDir, "stream.bin"), stream, 0o644); err != nil {
		logger.Warn("write stream dump", zap.Error(err))
	}

	logger.Debug("debug artifacts written", zap.String("dir", j.DebugDir))
}
