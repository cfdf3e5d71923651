package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/ketutoka/printlabel/internal/layout"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the built-in paper profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		out := cmd.OutOrStdout()
		profiles := layout.Profiles()

		switch format {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(profiles)
		case "yaml":
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(profiles); err != nil {
				return err
			}
			return enc.Close()
		case "text", "":
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tPAPER\tWIDTH\tMAX HEIGHT\tQR\tCHARS/LINE")
			for _, p := range profiles {
				_, _ = fmt.Fprintf(tw, "%s\t%.0fmm\t%dpx\t%dpx\t%dpx\t%d\n",
					p.Name, p.PaperWidth, p.CanvasWidth, p.MaxHeight, p.QRFootprint, p.MaxLineChars)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			_, err := fmt.Fprintf(out, "\naliases: %s\n", strings.Join(layout.ProfileNames(), ", "))
			return err
		default:
			return fmt.Errorf("unsupported format %q (use text, json or yaml)", format)
		}
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.Flags().String("format", "text", "output format (text, json, yaml)")
}
