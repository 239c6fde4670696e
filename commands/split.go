package commands

import (
	"github.com/penwyp/ivt-split/internal/analyzer"
	"github.com/penwyp/ivt-split/internal/core/model"
	"github.com/spf13/cobra"
)

var (
	splitFormat string
	splitSheet  string
	splitOutput string
)

var splitCmd = &cobra.Command{
	Use:   "split <report> <output-dir>",
	Short: "Write one file per SSP into a directory",
	Long: `Reads the report and writes <ssp>_<report name>.csv for every SSP into
output-dir, creating it when missing. Existing files are overwritten.`,
	Args: exactArgs(2),
	RunE: runSplit,
}

func init() {
	rootCmd.AddCommand(splitCmd)

	splitCmd.Flags().StringVar(&splitFormat, "format", model.FormatIVT,
		"Report layout (see 'ivt-split formats')")
	splitCmd.Flags().StringVar(&splitSheet, "sheet", "",
		"Sheet to read from .xlsx reports (default first sheet)")
	splitCmd.Flags().StringVarP(&splitOutput, "output", "o", "table",
		"Run report output (table, json, none)")
}

func runSplit(cmd *cobra.Command, args []string) error {
	format, err := appConfig.Format(splitFormat)
	if err != nil {
		return err
	}

	a := analyzer.New(&analyzer.Config{
		ReportPath: args[0],
		OutputRoot: expandPath(args[1]),
		Format:     format,
		Sheet:      splitSheet,
	})
	result, err := a.Run(cmd.Context())
	if err != nil {
		return err
	}
	return printReport(cmd.OutOrStdout(), splitOutput, result)
}
