package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"promptstore/pkg/persistence"
	"promptstore/pkg/validator"
)

var reportFlag string

// validateCmd checks database integrity and writes a markdown report.
var validateCmd = &cobra.Command{
	Use:   "validate [db-path]",
	Short: "Validate database schema integrity",
	Long: `Run structural checks against the database schema: required tables and
indices, foreign key integrity, circular references, orphaned tables,
index coverage, and naming conventions. Results are printed and written
to a markdown report next to the database.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&reportFlag, "report", "", "Path for the markdown report (defaults next to the database)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := databasePath(args)

	db, err := persistence.Open(path)
	if err != nil {
		return fmt.Errorf("Connection error: %w", err)
	}
	defer db.Close()

	report, err := validator.BuildReport(db, path)
	if err != nil {
		return fmt.Errorf("Connection error: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, line := range report.SchemaLines {
		fmt.Fprintln(out, line)
	}
	for _, issue := range report.Issues {
		fmt.Fprintln(out, issue)
	}

	reportPath := firstNonEmpty(reportFlag, cfg.ReportPath(path))
	if err := report.Write(reportPath); err != nil {
		return err
	}
	fmt.Fprintf(out, "Report written to %s\n", reportPath)

	if !report.Passed() {
		return fmt.Errorf("validation found %d issues", report.IssueCount())
	}
	fmt.Fprintln(out, "Validation passed")
	return nil
}
