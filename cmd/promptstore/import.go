package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"promptstore/pkg/legacy"
	"promptstore/pkg/persistence"
)

var (
	oldDirFlag string
	newDirFlag string
)

// importCmd converts legacy JSON prompt files into database records.
var importCmd = &cobra.Command{
	Use:   "import [db-path]",
	Short: "Import legacy JSON prompt files into the database",
	Long: `Scan the legacy prompt directories for JSON prompt files and convert
each into a prompt record with one version row per urgency level.
Prompts whose type already exists in the database are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

// consolidateCmd merges the two legacy prompt directories into one.
var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge the old legacy prompt directory into the new one",
	Long: `Move JSON prompt files from the old legacy directory into the new one.
Identical duplicates are removed; files that differ from their
counterpart are renamed with a _REVIEW suffix and left for manual
inspection.`,
	Args: cobra.NoArgs,
	RunE: runConsolidate,
}

// seedCmd loads the built-in starter prompts.
var seedCmd = &cobra.Command{
	Use:   "seed [db-path]",
	Short: "Load the built-in starter prompts",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSeed,
}

func init() {
	importCmd.Flags().StringVar(&oldDirFlag, "old-dir", "", "Old legacy prompt directory (overrides config)")
	importCmd.Flags().StringVar(&newDirFlag, "new-dir", "", "New legacy prompt directory (overrides config)")
	consolidateCmd.Flags().StringVar(&oldDirFlag, "old-dir", "", "Old legacy prompt directory (overrides config)")
	consolidateCmd.Flags().StringVar(&newDirFlag, "new-dir", "", "New legacy prompt directory (overrides config)")
}

func runImport(cmd *cobra.Command, args []string) error {
	path := databasePath(args)

	db, err := persistence.InitializeDatabase(path)
	if err != nil {
		return err
	}
	defer db.Close()

	oldDir := firstNonEmpty(oldDirFlag, cfg.Legacy.OldDir)
	newDir := firstNonEmpty(newDirFlag, cfg.Legacy.NewDir)

	importer := legacy.NewImporter(db).WithLogger(logger)
	res, err := importer.ImportDirs(oldDir, newDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d prompts (%d skipped, %d failed)\n",
		res.Converted, res.Skipped, res.Failed)
	if res.Converted == 0 {
		return errors.New("no prompts were imported")
	}
	return nil
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	oldDir := firstNonEmpty(oldDirFlag, cfg.Legacy.OldDir)
	newDir := firstNonEmpty(newDirFlag, cfg.Legacy.NewDir)

	stats, err := legacy.Consolidate(oldDir, newDir, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Moved %d, removed %d duplicates, %d need review, %d errors\n",
		stats.Moved, stats.Duplicates, stats.NeedsReview, stats.Errors)
	if stats.Errors > 0 {
		return fmt.Errorf("%d files could not be consolidated", stats.Errors)
	}
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	path := databasePath(args)

	db, err := persistence.InitializeDatabase(path)
	if err != nil {
		return err
	}
	defer db.Close()

	importer := legacy.NewImporter(db).WithLogger(logger)
	res := importer.ImportSeeds()

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d prompts (%d already present)\n", res.Converted, res.Skipped)
	if res.Failed > 0 {
		return fmt.Errorf("%d seed prompts failed to import", res.Failed)
	}
	return nil
}
