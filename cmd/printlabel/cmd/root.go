package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ketutoka/printlabel/internal/config"
	"github.com/ketutoka/printlabel/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "printlabel",
	Short: "Render shipping labels for thermal receipt printers",
	Long: `printlabel renders shipping labels for 58mm and 80mm thermal receipt
printers. A label carries an optional recipient block, the sender block and
an optional shipping code printed as text and QR code.

Labels can be written as PNG, BMP, PDF or TSPL print jobs, sent to a serial
printer, rendered in bulk from a YAML manifest or served over HTTP.

Examples:
  printlabel render --sender-name "Budi Santoso" --sender-phone 0811111111 --code ABC123
  printlabel batch labels.yaml --workers 4
  printlabel verify labels/shipping_label_narrow_1_ABC123.png --expect ABC123
  printlabel serve --port 8080`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.Version = version.String()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is printlabel.yaml in ., $HOME, /etc/printlabel, $HOME/.config/printlabel)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("output-dir", "o", "", "directory for rendered labels")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("render.output_dir", rootCmd.PersistentFlags().Lookup("output-dir"))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		cfg := GetConfig()

		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel(cfg),
		})))
		return nil
	}
}

// logLevel maps the configured level; --verbose wins.
func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initConfig reads the config file and environment once per process.
func initConfig() error {
	if globalConfig != nil {
		return nil
	}
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		globalConfig = nil
		return fmt.Errorf("loading configuration: %w", err)
	}
	return nil
}

// GetConfig returns the configuration with bound flags applied. Flag
// binding happens after the first load, so the viper state is decoded again.
func GetConfig() *config.Config {
	if globalConfig == nil {
		if err := initConfig(); err != nil {
			cfg := config.DefaultConfig()
			return &cfg
		}
	}

	var cfg config.Config
	if err := GetConfigLoader().GetViper().Unmarshal(&cfg); err != nil {
		slog.Warn("re-reading configuration failed", "error", err)
		return globalConfig
	}
	return &cfg
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}
