//nolint:lll
package config

// Config is the complete printlabel configuration. It is shared by every
// command and can be loaded from a file, PRINTLABEL_ environment variables
// and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Label rendering
	Render RenderConfig `mapstructure:"render" yaml:"render" json:"render"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Printer connection (for print command)
	Printer PrinterConfig `mapstructure:"printer" yaml:"printer" json:"printer"`

	// Batch rendering configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// RenderConfig contains composer and sink settings.
type RenderConfig struct {
	OutputDir      string   `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Format         string   `mapstructure:"format" yaml:"format" json:"format"`
	Prefix         string   `mapstructure:"prefix" yaml:"prefix" json:"prefix"`
	DefaultProfile string   `mapstructure:"default_profile" yaml:"default_profile" json:"default_profile"`
	QRLevel        string   `mapstructure:"qr_level" yaml:"qr_level" json:"qr_level"`
	FontFiles      []string `mapstructure:"font_files" yaml:"font_files" json:"font_files"`
	FontDirs       []string `mapstructure:"font_dirs" yaml:"font_dirs" json:"font_dirs"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxBodyKB       int    `mapstructure:"max_body_kb" yaml:"max_body_kb" json:"max_body_kb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	Composers       int    `mapstructure:"composers" yaml:"composers" json:"composers"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request quotas. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int  `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int  `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
}

// PrinterConfig contains serial printer settings.
type PrinterConfig struct {
	Port     string  `mapstructure:"port" yaml:"port" json:"port"`
	BaudRate int     `mapstructure:"baud_rate" yaml:"baud_rate" json:"baud_rate"`
	Density  int     `mapstructure:"density" yaml:"density" json:"density"`
	GapMM    float64 `mapstructure:"gap_mm" yaml:"gap_mm" json:"gap_mm"`
	Copies   int     `mapstructure:"copies" yaml:"copies" json:"copies"`
}

// BatchConfig contains batch rendering settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}
