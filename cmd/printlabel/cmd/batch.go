package cmd

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ketutoka/printlabel/internal/batch"
	"github.com/ketutoka/printlabel/internal/label"
	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch <manifest.yaml>",
	Short: "Render every label of a YAML manifest",
	Long: `Render all labels listed in a YAML manifest with a pool of workers.

Manifest layout:
  defaults:
    profile: narrow
    format: png
  labels:
    - id: order-1
      sender_name: Budi Santoso
      sender_phone: "0811111111"
      shipping_code: JNE1234567890

Entries without an id are numbered from 1. Results are reported in manifest
order. By default the first failure stops the run; --continue-on-error
renders the remaining labels and reports every failure.

Examples:
  printlabel batch labels.yaml
  printlabel batch labels.yaml --workers 8 --continue-on-error --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cmd.Flags().Changed("workers") {
			cfg.Batch.Workers, _ = cmd.Flags().GetInt("workers")
		}
		if cmd.Flags().Changed("continue-on-error") {
			cfg.Batch.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")
		}
		format, _ := cmd.Flags().GetString("format")
		showProgress, _ := cmd.Flags().GetBool("progress")

		manifest, err := batch.LoadManifest(args[0])
		if err != nil {
			return err
		}
		reqs := manifest.Requests()
		for i := range reqs {
			if reqs[i].PaperProfile == "" {
				reqs[i].PaperProfile = cfg.Render.DefaultProfile
			}
		}

		sink := cfg.ToSink()
		var (
			mu        sync.Mutex
			composers []*label.Composer
		)
		newRenderer := func() batch.Renderer {
			c := label.NewComposer(cfg.ToComposerOptions(sink))
			mu.Lock()
			composers = append(composers, c)
			mu.Unlock()
			return c
		}
		defer func() {
			for _, c := range composers {
				_ = c.Close()
			}
		}()

		var progress batch.ProgressCallback = batch.NewLogProgressCallback(slog.Default(), 10)
		if showProgress {
			progress = batch.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Rendering")
		}

		res, runErr := batch.Run(cmd.Context(), reqs, newRenderer, batch.Config{
			Workers:         cfg.Batch.Workers,
			ContinueOnError: cfg.Batch.ContinueOnError,
			Progress:        progress,
		})
		if res != nil {
			text, err := batch.FormatResult(res, format)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), text)
		}
		if runErr != nil {
			return runErr
		}
		if n := res.Failed(); n > 0 {
			return fmt.Errorf("%d of %d labels failed", n, len(res.Items))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().IntP("workers", "w", 0, "number of parallel workers (default from config)")
	batchCmd.Flags().Bool("continue-on-error", false, "render remaining labels after a failure")
	batchCmd.Flags().String("format", "text", "result format (text, json, csv)")
	batchCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
}
