package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/ketutoka/printlabel/internal/label"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a single shipping label",
	Long: `Render one shipping label and write it to the output directory.

The file name is derived from the profile, the label id and the shipping
code, so rendering the same label twice replaces the earlier file.

Examples:
  printlabel render --sender-name "Budi Santoso" --sender-phone 0811111111
  printlabel render --sender-name "Budi" --sender-phone 0811 \
      --recipient-name "Siti Rahayu" --recipient-address "Jl. Merdeka No. 10 Bandung" \
      --code JNE1234567890 --profile wide --format pdf
  printlabel render --sender-name "Budi" --sender-phone 0811 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		req := requestFromFlags(cmd, cfg.Render.DefaultProfile)
		req.Format, _ = cmd.Flags().GetString("format")

		composer := label.NewComposer(cfg.ToComposerOptions(cfg.ToSink()))
		defer func() { _ = composer.Close() }()

		rendered, err := composer.Compose(cmd.Context(), req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rendered)
		}
		_, err = fmt.Fprintln(out, rendered.FilePath)
		return err
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	addRequestFlags(renderCmd)
	renderCmd.Flags().StringP("format", "f", "", "output format (png, bmp, pdf, tspl)")
	renderCmd.Flags().Bool("json", false, "print the rendered label as JSON")
}
