// Package config loads the printing configuration from a yaml file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"qlprint/internal/geometry"
	"qlprint/internal/raster"
)

// Config represents the overall application configuration.
type Config struct {
	Printer   PrinterConfig   `yaml:"printer"`
	Label     LabelConfig     `yaml:"label"`
	Image     ImageConfig     `yaml:"image"`
	Transport TransportConfig `yaml:"transport"`
	Converter ConverterConfig `yaml:"converter"`
	Debug     DebugConfig     `yaml:"debug"`
}

// PrinterConfig narrows device selection. Both empty picks the first
// connected supported printer.
type PrinterConfig struct {
	Model  string `yaml:"model"`
	Serial string `yaml:"serial"`
}

// LabelConfig describes the loaded media.
type LabelConfig struct {
	Type     string `yaml:"type"` // die-cut or continuous
	WidthMm  int    `yaml:"width_mm"`
	HeightMm int    `yaml:"height_mm"`
}

// ImageConfig holds the raster encoding knobs.
type ImageConfig struct {
	Dither    string `yaml:"dither"`
	Rotate    bool   `yaml:"rotate"`
	MarginInk bool   `yaml:"margin_ink"`
	Copies    int    `yaml:"copies"`
}

// TransportConfig picks the output path to the device.
type TransportConfig struct {
	Kind       string `yaml:"kind"` // usb or serial
	SerialPort string `yaml:"serial_port"`
	BaudRate   int    `yaml:"baud_rate"`
}

// ConverterConfig drives the headless-Chrome rasterizer used for PDF, SVG
// and HTML inputs.
type ConverterConfig struct {
	DPI        int    `yaml:"dpi"`
	ChromePath string `yaml:"chrome_path"`
}

// DebugConfig enables the diagnostics artifacts.
type DebugConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Default returns the configuration used when no file is given: 62x100mm
// die-cut, one copy, plain threshold, USB.
func Default() *Config {
	return &Config{
		Label:     LabelConfig{Type: "die-cut", WidthMm: 62, HeightMm: 100},
		Image:     ImageConfig{Copies: 1},
		Transport: TransportConfig{Kind: "usb", BaudRate: 115200},
		Converter: ConverterConfig{DPI: 300},
		Debug:     DebugConfig{Dir: "debug"},
	}
}

// Load reads the configuration from the given path and validates it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot interpret.
func (c *Config) Validate() error {
	if _, err := c.LabelType(); err != nil {
		return err
	}
	if _, err := raster.ParseMode(c.Image.Dither); err != nil {
		return err
	}
	if c.Image.Copies < 1 {
		return fmt.Errorf("copies %d: must be at least 1", c.Image.Copies)
	}
	switch c.Transport.Kind {
	case "usb":
	case "serial":
		if c.Transport.SerialPort == "" {
			return fmt.Errorf("serial transport requires serial_port")
		}
	default:
		return fmt.Errorf("unknown transport kind %q", c.Transport.Kind)
	}
	return nil
}

// LabelType maps the config string to a geometry.LabelType.
func (c *Config) LabelType() (geometry.LabelType, error) {
	switch c.Label.Type {
	case "die-cut", "diecut":
		return geometry.DieCut, nil
	case "continuous":
		return geometry.Continuous, nil
	}
	return 0, fmt.Errorf("unknown label type %q", c.Label.Type)
}

// DitherMode maps the config string to a raster.Mode.
func (c *Config) DitherMode() (raster.Mode, error) {
	return raster.ParseMode(c.Image.Dither)
}
