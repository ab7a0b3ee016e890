package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"windscapes-barcode/internal/device"
	"windscapes-barcode/internal/label"
)

type Config struct {
	Database DatabaseConfig `json:"database" toml:"database"`
	Server   ServerConfig   `json:"server" toml:"server"`
	Catalog  CatalogConfig  `json:"catalog" toml:"catalog"`
	Label    LabelConfig    `json:"label" toml:"label"`
	Printer  PrinterConfig  `json:"printer" toml:"printer"`
	Device   DeviceConfig   `json:"device" toml:"device"`
	Fallback FallbackConfig `json:"fallback" toml:"fallback"`
	Scanner  ScannerConfig  `json:"scanner" toml:"scanner"`
	Logging  LoggingConfig  `json:"logging" toml:"logging"`
}

type DatabaseConfig struct {
	Host               string `json:"host" toml:"host"`
	Port               int    `json:"port" toml:"port"`
	Database           string `json:"database" toml:"database"`
	Username           string `json:"username" toml:"username"`
	Password           string `json:"password" toml:"password"`
	MaxOpenConns       int    `json:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns       int    `json:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `json:"conn_max_lifetime_sec" toml:"conn_max_lifetime_sec"`
	AutoMigrate        bool   `json:"auto_migrate" toml:"auto_migrate"`
}

// DSN builds the go-sql-driver/mysql connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=10s",
		d.Username,
		d.Password,
		d.Host,
		d.Port,
		d.Database,
	)
}

func (d DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(d.ConnMaxLifetimeSec) * time.Second
}

type ServerConfig struct {
	Port int    `json:"port" toml:"port"`
	Host string `json:"host" toml:"host"`
	Mode string `json:"mode" toml:"mode"`
	// APIKeyHash is a bcrypt hash; when set, mutating endpoints need X-API-Key.
	APIKeyHash string `json:"api_key_hash" toml:"api_key_hash"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

const (
	CatalogDatabase = "database"
	CatalogMemory   = "memory"
)

type CatalogConfig struct {
	Source string `json:"source" toml:"source"`
	// File is an ERP backup export ({"inventory": [...]}) for the memory source.
	File string `json:"file" toml:"file"`
}

type LabelConfig struct {
	WidthMM       float64 `json:"width_mm" toml:"width_mm"`
	HeightMM      float64 `json:"height_mm" toml:"height_mm"`
	GapMM         float64 `json:"gap_mm" toml:"gap_mm"`
	DPI           int     `json:"dpi" toml:"dpi"`
	NarrowDots    int     `json:"narrow_dots" toml:"narrow_dots"`
	WideDots      int     `json:"wide_dots" toml:"wide_dots"`
	BarHeightMM   float64 `json:"bar_height_mm" toml:"bar_height_mm"`
	SpacingMM     float64 `json:"spacing_mm" toml:"spacing_mm"`
	MarginLeftMM  float64 `json:"margin_left_mm" toml:"margin_left_mm"`
	MarginTopMM   float64 `json:"margin_top_mm" toml:"margin_top_mm"`
	HumanReadable bool    `json:"human_readable" toml:"human_readable"`
	PerRow        int     `json:"per_row" toml:"per_row"`
	PerSheet      int     `json:"per_sheet" toml:"per_sheet"`
}

type PrinterConfig struct {
	Density   int `json:"density" toml:"density"`
	Speed     int `json:"speed" toml:"speed"`
	Direction int `json:"direction" toml:"direction"`
}

type DeviceConfig struct {
	Driver       string   `json:"driver" toml:"driver"`
	Port         string   `json:"port" toml:"port"`
	VendorIDs    []string `json:"vendor_ids" toml:"vendor_ids"`
	BaudRate     int      `json:"baud_rate" toml:"baud_rate"`
	Paths        []string `json:"paths" toml:"paths"`
	PacketSize   int      `json:"packet_size" toml:"packet_size"`
	RequireClaim bool     `json:"require_claim" toml:"require_claim"`
	TimeoutMs    int      `json:"timeout_ms" toml:"timeout_ms"`
}

func (d DeviceConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

type FallbackConfig struct {
	Enabled   bool     `json:"enabled" toml:"enabled"`
	OutputDir string   `json:"output_dir" toml:"output_dir"`
	Spoolers  []string `json:"spoolers" toml:"spoolers"`
	Printer   string   `json:"printer" toml:"printer"`
}

type ScannerConfig struct {
	Port       string `json:"port" toml:"port"`
	BaudRate   int    `json:"baud_rate" toml:"baud_rate"`
	CooldownMs int    `json:"cooldown_ms" toml:"cooldown_ms"`
	Deduct     bool   `json:"deduct" toml:"deduct"`
	// ServerDecode enables image upload decoding on the HTTP API.
	ServerDecode bool `json:"server_decode" toml:"server_decode"`
}

func (s ScannerConfig) Cooldown() time.Duration {
	return time.Duration(s.CooldownMs) * time.Millisecond
}

type LoggingConfig struct {
	Level string `json:"level" toml:"level"`
	File  string `json:"file" toml:"file"`
}

func LoadConfig(path string) (*Config, error) {
	config := getDefaultConfig()

	loadFromEnvironment(config)

	if path != "" {
		if err := decodeFile(path, config); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		} else {
			// Environment wins over the file.
			loadFromEnvironment(config)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func decodeFile(path string, config *Config) error {
	if isTOML(path) {
		if _, err := toml.DecodeFile(path, config); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(config); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func (c *Config) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if isTOML(path) {
		return toml.NewEncoder(file).Encode(c)
	}
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c)
}

// Validate rejects settings that would make every label job fail.
func (c *Config) Validate() error {
	l := c.Label
	switch {
	case l.WidthMM <= 0 || l.HeightMM <= 0:
		return fmt.Errorf("label size must be positive, got %gx%g mm", l.WidthMM, l.HeightMM)
	case l.DPI <= 0:
		return fmt.Errorf("label dpi must be positive, got %d", l.DPI)
	case l.NarrowDots < 1 || l.WideDots < l.NarrowDots:
		return fmt.Errorf("bar widths must satisfy 1 <= narrow <= wide, got %d/%d", l.NarrowDots, l.WideDots)
	case l.BarHeightMM <= 0:
		return fmt.Errorf("bar height must be positive, got %g mm", l.BarHeightMM)
	case l.PerRow < 1 || l.PerSheet < 1:
		return fmt.Errorf("labels per row and per sheet must be at least 1, got %d/%d", l.PerRow, l.PerSheet)
	}
	switch c.Catalog.Source {
	case CatalogDatabase, CatalogMemory:
	default:
		return fmt.Errorf("unknown catalog source %q", c.Catalog.Source)
	}
	return nil
}

// LabelSettings combines label stock and printer tuning for the label package.
func (c *Config) LabelSettings() label.Config {
	return label.Config{
		WidthMM:       c.Label.WidthMM,
		HeightMM:      c.Label.HeightMM,
		GapMM:         c.Label.GapMM,
		DPI:           c.Label.DPI,
		NarrowDots:    c.Label.NarrowDots,
		WideDots:      c.Label.WideDots,
		BarHeightMM:   c.Label.BarHeightMM,
		SpacingMM:     c.Label.SpacingMM,
		MarginLeftMM:  c.Label.MarginLeftMM,
		MarginTopMM:   c.Label.MarginTopMM,
		HumanReadable: c.Label.HumanReadable,
		Density:       c.Printer.Density,
		Speed:         c.Printer.Speed,
		Direction:     c.Printer.Direction,
		Symbology:     label.SymbologyEAN13,
	}
}

func (c *Config) DeviceSettings() device.Config {
	return device.Config{
		Driver:       c.Device.Driver,
		Port:         c.Device.Port,
		VendorIDs:    c.Device.VendorIDs,
		BaudRate:     c.Device.BaudRate,
		Paths:        c.Device.Paths,
		PacketSize:   c.Device.PacketSize,
		RequireClaim: c.Device.RequireClaim,
	}
}

func getDefaultConfig() *Config {
	l := label.DefaultConfig()
	return &Config{
		Database: DatabaseConfig{
			Host:               "localhost",
			Port:               3306,
			Database:           "windscapes",
			Username:           "windscapes",
			Password:           "",
			MaxOpenConns:       10,
			MaxIdleConns:       2,
			ConnMaxLifetimeSec: 300,
		},
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
			Mode: "release",
		},
		Catalog: CatalogConfig{
			Source: CatalogMemory,
		},
		Label: LabelConfig{
			WidthMM:      l.WidthMM,
			HeightMM:     l.HeightMM,
			GapMM:        l.GapMM,
			DPI:          l.DPI,
			NarrowDots:   l.NarrowDots,
			WideDots:     l.WideDots,
			BarHeightMM:  l.BarHeightMM,
			SpacingMM:    l.SpacingMM,
			MarginLeftMM: l.MarginLeftMM,
			MarginTopMM:  l.MarginTopMM,
			PerRow:       1,
			PerSheet:     1,
		},
		Printer: PrinterConfig{
			Density:   l.Density,
			Speed:     l.Speed,
			Direction: l.Direction,
		},
		Device: DeviceConfig{
			Driver:     device.DriverSerial,
			VendorIDs:  []string{"04b8", "0483"},
			BaudRate:   9600,
			Paths:      []string{"/dev/usb/lp0", "/dev/rfcomm0"},
			PacketSize: device.DefaultPacketSize,
			TimeoutMs:  15000,
		},
		Fallback: FallbackConfig{
			Enabled:   true,
			OutputDir: "labels",
			Spoolers:  []string{"lp", "lpr"},
		},
		Scanner: ScannerConfig{
			BaudRate:     9600,
			CooldownMs:   1500,
			ServerDecode: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "stdout",
		},
	}
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *Config) {
	// Database configuration
	if host := os.Getenv("DB_HOST"); host != "" {
		config.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Database.Port = p
		}
	}
	if database := os.Getenv("DB_NAME"); database != "" {
		config.Database.Database = database
	}
	if username := os.Getenv("DB_USERNAME"); username != "" {
		config.Database.Username = username
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		config.Database.Password = password
	}

	// Server configuration
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if hash := os.Getenv("API_KEY_HASH"); hash != "" {
		config.Server.APIKeyHash = hash
	}

	// Catalog configuration
	if source := os.Getenv("CATALOG_SOURCE"); source != "" {
		config.Catalog.Source = source
	}
	if file := os.Getenv("CATALOG_FILE"); file != "" {
		config.Catalog.File = file
	}

	// Label and printer configuration
	if dpi := os.Getenv("LABEL_DPI"); dpi != "" {
		if d, err := strconv.Atoi(dpi); err == nil {
			config.Label.DPI = d
		}
	}
	if perSheet := os.Getenv("LABEL_PER_SHEET"); perSheet != "" {
		if n, err := strconv.Atoi(perSheet); err == nil {
			config.Label.PerSheet = n
		}
	}
	if perRow := os.Getenv("LABEL_PER_ROW"); perRow != "" {
		if n, err := strconv.Atoi(perRow); err == nil {
			config.Label.PerRow = n
		}
	}
	if driver := os.Getenv("PRINTER_DRIVER"); driver != "" {
		config.Device.Driver = driver
	}
	if port := os.Getenv("PRINTER_PORT"); port != "" {
		config.Device.Port = port
	}
	if paths := os.Getenv("PRINTER_PATHS"); paths != "" {
		config.Device.Paths = splitList(paths)
	}
	if vendors := os.Getenv("PRINTER_VENDOR_IDS"); vendors != "" {
		config.Device.VendorIDs = splitList(vendors)
	}

	// Fallback configuration
	if dir := os.Getenv("FALLBACK_DIR"); dir != "" {
		config.Fallback.OutputDir = dir
	}
	if printer := os.Getenv("FALLBACK_PRINTER"); printer != "" {
		config.Fallback.Printer = printer
	}

	// Scanner configuration
	if port := os.Getenv("SCANNER_PORT"); port != "" {
		config.Scanner.Port = port
	}
	if decode := os.Getenv("SCANNER_SERVER_DECODE"); decode != "" {
		if v, err := strconv.ParseBool(decode); err == nil {
			config.Scanner.ServerDecode = v
		}
	}

	// Logging configuration
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if file := os.Getenv("LOG_FILE"); file != "" {
		config.Logging.File = file
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
