package cmd

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/ketutoka/printlabel/internal/config"
	"github.com/ketutoka/printlabel/internal/label"
	"github.com/ketutoka/printlabel/internal/layout"
	"github.com/ketutoka/printlabel/internal/printer"
	"github.com/ketutoka/printlabel/internal/sink"
	"github.com/ketutoka/printlabel/internal/tspl"
	"github.com/spf13/cobra"
)

var printCmd = &cobra.Command{
	Use:   "print [label]",
	Short: "Send a label to a TSPL thermal printer",
	Long: `Convert a label to a TSPL print job and write it to a serial printer.

The label is either an existing file (PNG, BMP, JPEG or a .prn job, which is
sent unchanged) or rendered on the fly from the label flags. With --dry-run
the job is written to a file instead of the printer.

Examples:
  printlabel print labels/shipping_label_narrow_1_ABC123.png --port /dev/ttyUSB0
  printlabel print --sender-name "Budi" --sender-phone 0811 --code ABC123 --dry-run job.prn
  printlabel print --list-ports`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if list, _ := cmd.Flags().GetBool("list-ports"); list {
			ports, err := printer.ListPorts()
			if err != nil {
				return err
			}
			for _, p := range ports {
				_, _ = fmt.Fprintln(out, p)
			}
			return nil
		}

		cfg := GetConfig()
		if cmd.Flags().Changed("port") {
			cfg.Printer.Port, _ = cmd.Flags().GetString("port")
		}
		if cmd.Flags().Changed("baud") {
			cfg.Printer.BaudRate, _ = cmd.Flags().GetInt("baud")
		}
		if cmd.Flags().Changed("copies") {
			cfg.Printer.Copies, _ = cmd.Flags().GetInt("copies")
		}
		if cmd.Flags().Changed("density") {
			cfg.Printer.Density, _ = cmd.Flags().GetInt("density")
		}
		if cmd.Flags().Changed("gap") {
			cfg.Printer.GapMM, _ = cmd.Flags().GetFloat64("gap")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		job, err := buildPrintJob(cmd, args, cfg)
		if err != nil {
			return err
		}

		if dryRun, _ := cmd.Flags().GetString("dry-run"); dryRun != "" {
			if err := os.WriteFile(dryRun, job, 0o600); err != nil {
				return fmt.Errorf("write job: %w", err)
			}
			_, err := fmt.Fprintln(out, dryRun)
			return err
		}

		p, err := printer.Open(cfg.ToSerialConfig())
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		if err := p.Print(cmd.Context(), job); err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "sent %d bytes to %s\n", len(job), p.Name())
		return err
	},
}

// buildPrintJob returns the TSPL bytes for a label file or for the label
// described by the flags.
func buildPrintJob(cmd *cobra.Command, args []string, cfg *config.Config) ([]byte, error) {
	defaultProfile := cfg.Render.DefaultProfile
	var (
		img     image.Image
		profile = defaultProfile
	)

	switch {
	case len(args) == 1:
		path := args[0]
		if strings.EqualFold(filepath.Ext(path), ".prn") {
			return os.ReadFile(path) //nolint:gosec // G304: user-selected job file
		}
		loaded, err := sink.Load(path)
		if err != nil {
			return nil, err
		}
		img = loaded
		if p, _ := cmd.Flags().GetString("profile"); p != "" {
			profile = p
		} else {
			profile = profileForWidth(loaded.Bounds().Dx(), defaultProfile)
		}
	case hasRequestFlags(cmd):
		req := requestFromFlags(cmd, defaultProfile)
		composer := label.NewComposer(cfg.ToComposerOptions(nil))
		defer func() { _ = composer.Close() }()
		r, err := composer.Layout(req)
		if err != nil {
			return nil, err
		}
		img = r.Image
		profile = r.Profile.Name
	default:
		return nil, errors.New("nothing to print: pass a label file or --sender-name and --sender-phone")
	}

	opts := cfg.ToJobOptions()
	opts.PaperWidth = layout.LookupProfile(profile).PaperWidth
	return tspl.BuildJob(img, opts), nil
}

// profileForWidth picks the profile whose canvas matches a loaded label.
func profileForWidth(width int, fallback string) string {
	for _, p := range layout.Profiles() {
		if p.CanvasWidth == width {
			return p.Name
		}
	}
	return fallback
}

func init() {
	rootCmd.AddCommand(printCmd)
	addRequestFlags(printCmd)
	printCmd.Flags().String("port", "", "serial port of the printer (e.g. /dev/ttyUSB0, COM3)")
	printCmd.Flags().Int("baud", 0, "baud rate (default from config)")
	printCmd.Flags().Int("copies", 1, "number of copies")
	printCmd.Flags().Int("density", 8, "print density 0-15")
	printCmd.Flags().Float64("gap", 0, "gap between labels in mm; 0 for continuous paper")
	printCmd.Flags().String("dry-run", "", "write the job to this file instead of printing")
	printCmd.Flags().Bool("list-ports", false, "list serial ports and exit")
}
