package main

import (
	"context"
	"flag"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"qlprint/config"
	"qlprint/internal/converter"
	"qlprint/internal/device"
	"qlprint/internal/geometry"
	"qlprint/internal/job"
	"qlprint/internal/logger"
	"qlprint/internal/transport"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", envOr("QLPRINT_CONFIG", ""), "path to yaml config")
	copies := flag.Int("copies", 0, "override configured copy count")
	debug := flag.Bool("debug", false, "verbose logging and debug artifacts")
	flag.Parse()

	if err := logger.Init(*debug); err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if flag.NArg() != 1 {
		logger.Error("usage: qlprint [flags] <image|pdf|svg|html>")
		os.Exit(2)
	}
	input := flag.Arg(0)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Error("load config", zap.Error(err))
			os.Exit(1)
		}
		cfg = loaded
	}
	if *copies > 0 {
		cfg.Image.Copies = *copies
	}

	if err := run(cfg, input, *debug); err != nil {
		logger.Error("print failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, input string, debug bool) error {
	bus := transport.NewUSBBus()
	defer bus.Close()

	handle, model, err := device.Select(bus, device.VendorID, device.Criteria{
		Name:   cfg.Printer.Model,
		Serial: cfg.Printer.Serial,
	})
	if err != nil {
		return err
	}

	img, err := loadInput(cfg, input)
	if err != nil {
		handle.Close()
		return err
	}

	labelType, err := cfg.LabelType()
	if err != nil {
		handle.Close()
		return err
	}
	ditherMode, err := cfg.DitherMode()
	if err != nil {
		handle.Close()
		return err
	}

	j := &job.Job{
		Model: model,
		Spec: geometry.LabelSpec{
			Type:     labelType,
			WidthMm:  cfg.Label.WidthMm,
			HeightMm: cfg.Label.HeightMm,
		},
		Copies:    cfg.Image.Copies,
		Dither:    ditherMode,
		Rotate:    cfg.Image.Rotate,
		MarginInk: cfg.Image.MarginInk,
	}
	if debug || cfg.Debug.Enabled {
		j.DebugDir = cfg.Debug.Dir
	}

	stream, _, err := j.BuildStream(img)
	if err != nil {
		handle.Close()
		return err
	}

	if cfg.Transport.Kind == "serial" {
		// Serial path does not claim a USB interface; the handle is only
		// used for model identification.
		handle.Close()
		conn, err := transport.OpenSerial(cfg.Transport.SerialPort, cfg.Transport.BaudRate)
		if err != nil {
			return err
		}
		defer conn.Close()
		return j.Transmit(conn, stream)
	}

	conn, err := handle.Claim()
	if err != nil {
		// Claim closed the device handle already.
		return err
	}
	defer handle.Close()
	defer conn.Close()

	return j.Transmit(conn, stream)
}

// loadInput decodes a raster file directly and routes non-raster formats
// through the headless-Chrome rasterizer at the configured DPI.
func loadInput(cfg *config.Config, path string) (image.Image, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".svg", ".html", ".htm":
		return converter.Rasterize(context.Background(), path, converter.Options{
			DPI:        cfg.Converter.DPI,
			ChromePath: cfg.Converter.ChromePath,
		})
	}
	return job.LoadImage(path)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
