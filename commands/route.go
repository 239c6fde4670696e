package commands

import (
	"github.com/penwyp/ivt-split/internal/analyzer"
	"github.com/penwyp/ivt-split/internal/core/model"
	"github.com/spf13/cobra"
)

var (
	routeFormat        string
	routeOut           string
	routeSheet         string
	routeSummaryPolicy string
	routeOutput        string
)

var routeCmd = &cobra.Command{
	Use:   "route <report> <spend-limit-usd>",
	Short: "Split a report, moving big spenders into a separate folder",
	Long: `Writes the per-SSP files into a folder named after the report (without
extension) in the current directory. SSPs whose invalid cost is at least the
spend limit go into its spent_more_then_<limit>_USD subfolder. A combined
SUM_<report name>.csv lists every SSP total.

The summary is appended to by default, so running twice over the same folder
lists every SSP twice while the per-SSP files are replaced. The header line
is written only when the summary is new or truncated, not once per run. Use
--summary-policy truncate to start the summary over. A report without data
rows leaves the summary untouched.`,
	Args: exactArgs(2),
	RunE: runRoute,
}

func init() {
	rootCmd.AddCommand(routeCmd)

	routeCmd.Flags().StringVar(&routeFormat, "format", model.FormatIVTActivity,
		"Report layout (see 'ivt-split formats')")
	routeCmd.Flags().StringVar(&routeOut, "out", "",
		"Output root (default ./<report name>)")
	routeCmd.Flags().StringVar(&routeSheet, "sheet", "",
		"Sheet to read from .xlsx reports (default first sheet)")
	routeCmd.Flags().StringVar(&routeSummaryPolicy, "summary-policy", "",
		"Existing summary handling (append, truncate; default from config)")
	routeCmd.Flags().StringVarP(&routeOutput, "output", "o", "table",
		"Run report output (table, json, none)")
}

func runRoute(cmd *cobra.Command, args []string) error {
	format, err := appConfig.Format(routeFormat)
	if err != nil {
		return err
	}
	limit, err := parseLimit(args[1])
	if err != nil {
		return err
	}
	policy, err := summaryPolicy(routeSummaryPolicy)
	if err != nil {
		return err
	}

	root := analyzer.InputBase(args[0])
	if routeOut != "" {
		root = expandPath(routeOut)
	}

	a := analyzer.New(&analyzer.Config{
		ReportPath:    args[0],
		OutputRoot:    root,
		Format:        format,
		Sheet:         routeSheet,
		Limit:         &limit,
		Summary:       true,
		SummaryPolicy: policy,
	})
	result, err := a.Run(cmd.Context())
	if err != nil {
		return err
	}
	return printReport(cmd.OutOrStdout(), routeOutput, result)
}
