package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/ketutoka/printlabel/internal/barcode"
	"github.com/ketutoka/printlabel/internal/sink"
	"github.com/spf13/cobra"
)

// VerifyResult is printed by verify --json.
type VerifyResult struct {
	File   string `json:"file"`
	Type   string `json:"type"`
	Value  string `json:"value"`
	Match  *bool  `json:"match,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

var verifyCmd = &cobra.Command{
	Use:   "verify <label>",
	Short: "Decode the QR code of a rendered label",
	Long: `Decode the shipping code QR symbol of a rendered label and print its
payload. PNG, BMP, JPEG and TSPL (.prn) files are accepted.

With --expect the command fails when the decoded payload differs, which
makes it usable as a print-readiness check in scripts.

Examples:
  printlabel verify labels/shipping_label_narrow_1_ABC123.png
  printlabel verify job.prn --expect ABC123 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		expect, _ := cmd.Flags().GetString("expect")
		asJSON, _ := cmd.Flags().GetBool("json")

		img, err := sink.Load(args[0])
		if err != nil {
			return err
		}
		res, err := barcode.NewDecoder().Decode(cmd.Context(), img, barcode.Options{TryHarder: true})
		if err != nil {
			return fmt.Errorf("verify %s: %w", args[0], err)
		}

		out := VerifyResult{
			File:   args[0],
			Type:   res.Type.String(),
			Value:  res.Value,
			Width:  img.Bounds().Dx(),
			Height: img.Bounds().Dy(),
		}
		if cmd.Flags().Changed("expect") {
			match := res.Value == expect
			out.Match = &match
		}

		w := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
		} else {
			_, _ = fmt.Fprintln(w, res.Value)
		}

		if out.Match != nil && !*out.Match {
			return fmt.Errorf("payload mismatch: got %q, want %q", res.Value, expect)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().String("expect", "", "fail unless the decoded payload equals this value")
	verifyCmd.Flags().Bool("json", false, "print the result as JSON")
}
