package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"windscapes-barcode/internal/label"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 70.0, cfg.Label.WidthMM)
	assert.Equal(t, 35.0, cfg.Label.HeightMM)
	assert.Equal(t, 203, cfg.Label.DPI)
	assert.Equal(t, 1, cfg.Label.PerRow)
	assert.Equal(t, 1, cfg.Label.PerSheet)
	assert.Equal(t, []string{"04b8", "0483"}, cfg.Device.VendorIDs)
	assert.Equal(t, CatalogMemory, cfg.Catalog.Source)

	lc := cfg.LabelSettings()
	assert.Equal(t, label.DefaultConfig().Density, lc.Density)
	assert.Equal(t, label.SymbologyEAN13, lc.Symbology)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"label": {"width_mm": 50, "height_mm": 30, "dpi": 300, "narrow_dots": 3, "wide_dots": 6,
		          "bar_height_mm": 20, "per_row": 2, "per_sheet": 6},
		"device": {"driver": "file", "paths": ["/dev/usb/lp1"]}
	}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 50.0, cfg.Label.WidthMM)
	assert.Equal(t, 300, cfg.Label.DPI)
	assert.Equal(t, 6, cfg.Label.PerSheet)
	assert.Equal(t, "file", cfg.DeviceSettings().Driver)
	assert.Equal(t, []string{"/dev/usb/lp1"}, cfg.DeviceSettings().Paths)
	// Untouched sections keep their defaults.
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[label]
human_readable = true
per_row = 2
per_sheet = 6

[scanner]
port = "/dev/ttyACM0"
cooldown_ms = 500
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.Label.HumanReadable)
	assert.Equal(t, 2, cfg.Label.PerRow)
	assert.Equal(t, "/dev/ttyACM0", cfg.Scanner.Port)
	assert.Equal(t, int64(500), cfg.Scanner.Cooldown().Milliseconds())
	assert.Equal(t, 70.0, cfg.Label.WidthMM)
}

func TestEnvironmentWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server": {"port": 9000}, "device": {"port": "/dev/ttyS1"}}`), 0o644))

	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("PRINTER_VENDOR_IDS", "04b8, 1fc9")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "/dev/ttyS1", cfg.Device.Port)
	assert.Equal(t, []string{"04b8", "1fc9"}, cfg.Device.VendorIDs)
}

func TestMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, 203, cfg.Label.DPI)
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"label": `), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"zero dpi":        func(c *Config) { c.Label.DPI = 0 },
		"zero width":      func(c *Config) { c.Label.WidthMM = 0 },
		"narrow > wide":   func(c *Config) { c.Label.NarrowDots, c.Label.WideDots = 4, 2 },
		"zero per sheet":  func(c *Config) { c.Label.PerSheet = 0 },
		"unknown catalog": func(c *Config) { c.Catalog.Source = "sheets" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := getDefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := getDefaultConfig()
	cfg.Label.PerSheet = 4

	for _, name := range []string{"out.json", "out.toml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, cfg.Save(path))

		loaded, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 4, loaded.Label.PerSheet, name)
		assert.Equal(t, cfg.Device.VendorIDs, loaded.Device.VendorIDs, name)
	}
}
