package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/ketutoka/printlabel/internal/fonts"
	"github.com/ketutoka/printlabel/internal/label"
	"github.com/ketutoka/printlabel/internal/layout"
	"github.com/ketutoka/printlabel/internal/printer"
	"github.com/ketutoka/printlabel/internal/sink"
	"github.com/ketutoka/printlabel/internal/tspl"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Render: RenderConfig{
			OutputDir:      "labels",
			Format:         string(sink.FormatPNG),
			Prefix:         sink.DefaultPrefix,
			DefaultProfile: layout.ProfileNarrow,
			QRLevel:        "M",
			FontFiles:      append([]string(nil), fonts.DefaultFiles...),
			FontDirs:       append([]string(nil), fonts.DefaultDirs...),
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxBodyKB:       64,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			Composers:       runtime.NumCPU(),
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 10000,
			},
		},
		Printer: PrinterConfig{
			BaudRate: 115200,
			Density:  8,
			GapMM:    0,
			Copies:   1,
		},
		Batch: BatchConfig{
			Workers:         4,
			ContinueOnError: false,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if _, err := sink.ParseFormat(c.Render.Format); err != nil {
		return fmt.Errorf("invalid render format: %w", err)
	}
	if c.Render.DefaultProfile != "" {
		if _, ok := layout.ResolveProfile(c.Render.DefaultProfile); !ok {
			return fmt.Errorf("invalid default profile: %s (must be one of: %s)",
				c.Render.DefaultProfile, strings.Join(layout.ProfileNames(), ", "))
		}
	}
	validLevels := []string{"", "L", "M", "Q", "H"}
	if !contains(validLevels, strings.ToUpper(c.Render.QRLevel)) {
		return fmt.Errorf("invalid QR level: %s (must be one of: L, M, Q, H)", c.Render.QRLevel)
	}
	if strings.TrimSpace(c.Render.OutputDir) == "" {
		return fmt.Errorf("invalid output dir: must not be empty")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxBodyKB <= 0 {
		return fmt.Errorf("invalid max body size: %d (must be positive)", c.Server.MaxBodyKB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.Composers <= 0 {
		return fmt.Errorf("invalid composer pool size: %d (must be positive)", c.Server.Composers)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	if c.Printer.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate: %d (must be positive)", c.Printer.BaudRate)
	}
	if c.Printer.Density < 0 || c.Printer.Density > 15 {
		return fmt.Errorf("invalid printer density: %d (must be between 0 and 15)", c.Printer.Density)
	}
	if c.Printer.Copies <= 0 {
		return fmt.Errorf("invalid copies: %d (must be positive)", c.Printer.Copies)
	}

	return nil
}

// ToSink builds the output sink.
func (c *Config) ToSink() *sink.Sink {
	f, _ := sink.ParseFormat(c.Render.Format)
	return sink.New(c.Render.OutputDir,
		sink.WithPrefix(c.Render.Prefix),
		sink.WithFormat(f),
		sink.WithJobOptions(c.ToJobOptions()))
}

// ToComposerOptions converts the render section into composer options.
// Each composer built from the result loads its own font faces.
func (c *Config) ToComposerOptions(s label.Saver) label.Options {
	f, _ := sink.ParseFormat(c.Render.Format)
	return label.Options{
		Loader:  fonts.NewLoader(c.Render.FontFiles, c.Render.FontDirs),
		QRLevel: c.Render.QRLevel,
		Sink:    s,
		Format:  f,
	}
}

// ToJobOptions converts the printer section into TSPL job options.
func (c *Config) ToJobOptions() tspl.JobOptions {
	o := tspl.DefaultJobOptions()
	o.PaperWidth = layout.LookupProfile(c.Render.DefaultProfile).PaperWidth
	o.Density = c.Printer.Density
	o.GapMM = c.Printer.GapMM
	o.Copies = c.Printer.Copies
	return o
}

// ToSerialConfig converts the printer section into a serial port config.
func (c *Config) ToSerialConfig() printer.SerialConfig {
	sc := printer.DefaultSerialConfig(c.Printer.Port)
	if c.Printer.BaudRate > 0 {
		sc.BaudRate = c.Printer.BaudRate
	}
	return sc
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
