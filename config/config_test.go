package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qlprint/internal/geometry"
	"qlprint/internal/raster"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qlprint.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
printer:
  model: TD-4510D
label:
  type: continuous
  width_mm: 102
image:
  dither: floyd-steinberg
  rotate: true
  copies: 2
transport:
  kind: usb
converter:
  dpi: 300
debug:
  enabled: true
  dir: /tmp/qlprint-debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "TD-4510D", cfg.Printer.Model)
	assert.Equal(t, 102, cfg.Label.WidthMm)
	assert.True(t, cfg.Image.Rotate)
	assert.Equal(t, 2, cfg.Image.Copies)
	assert.True(t, cfg.Debug.Enabled)

	lt, err := cfg.LabelType()
	require.NoError(t, err)
	assert.Equal(t, geometry.Continuous, lt)

	dm, err := cfg.DitherMode()
	require.NoError(t, err)
	assert.Equal(t, raster.FloydSteinberg, dm)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
printer:
  serial: A1B2C3
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "die-cut", cfg.Label.Type)
	assert.Equal(t, 62, cfg.Label.WidthMm)
	assert.Equal(t, 1, cfg.Image.Copies)
	assert.Equal(t, "usb", cfg.Transport.Kind)
	assert.Equal(t, 300, cfg.Converter.DPI)
}

func TestValidateRejects(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad label type", func(c *Config) { c.Label.Type = "round" }},
		{"bad dither", func(c *Config) { c.Image.Dither = "bayer" }},
		{"zero copies", func(c *Config) { c.Image.Copies = 0 }},
		{"bad transport", func(c *Config) { c.Transport.Kind = "bluetooth" }},
		{"serial without port", func(c *Config) { c.Transport.Kind = "serial"; c.Transport.SerialPort = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
