package commands

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	apperrors "github.com/penwyp/ivt-split/internal/errors"
	"github.com/penwyp/ivt-split/internal/util"
	"github.com/spf13/cobra"
)

var formatsOutput string

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the report layouts split, route and watch understand",
	Args:  exactArgs(0),
	RunE:  runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)

	formatsCmd.Flags().StringVarP(&formatsOutput, "output", "o", "table",
		"Output format (table, json)")
}

func runFormats(cmd *cobra.Command, args []string) error {
	formats := appConfig.AllFormats()
	w := cmd.OutOrStdout()

	switch formatsOutput {
	case "json":
		data, err := sonic.MarshalIndent(formats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal formats: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	case "table":
	default:
		return apperrors.NewConfigError("invalid output", nil).WithContext("output", formatsOutput)
	}

	width := util.GetDisplayWidth("NAME")
	for _, f := range formats {
		width = max(width, util.GetDisplayWidth(f.Name))
	}

	for i, f := range formats {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s  %s\n", util.PadString(f.Name, width, true), f.Description)
		pad := strings.Repeat(" ", width+2)
		fmt.Fprintf(w, "%scolumns: %s\n", pad, strings.Join(f.Columns, ", "))
		fmt.Fprintf(w, "%skey:     %s (text before the first _)\n", pad, f.ID)
		fmt.Fprintf(w, "%stotals:  %s, %s\n", pad, f.Count, f.Cost)
		fmt.Fprintf(w, "%soutput:  %s\n", pad, strings.Join(f.Output, ", "))
	}
	return nil
}
