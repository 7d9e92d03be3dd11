package main

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"promptstore/pkg/legacy"
	"promptstore/pkg/persistence"
)

var (
	importLegacy  bool
	migrationsDir string
)

// migrateCmd brings the database schema up to the latest version.
var migrateCmd = &cobra.Command{
	Use:   "migrate [db-path]",
	Short: "Apply pending schema migrations",
	Long: `Apply all pending schema migrations to the database, creating it if it
does not exist. With --import-legacy, a freshly created database is
seeded from the legacy JSON prompt directories.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&importLegacy, "import-legacy", false, "Import legacy JSON prompts into a freshly created database")
	migrateCmd.Flags().StringVar(&migrationsDir, "migrations-dir", "", "Load migration scripts from a directory instead of the built-in set")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	path := databasePath(args)

	db, err := persistence.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	var source fs.FS = persistence.DefaultMigrations()
	if dir := firstNonEmpty(migrationsDir, cfg.Migrations.Dir); dir != "" {
		source = os.DirFS(dir)
	}

	runner := persistence.NewRunner(db, source).WithLogger(logger)
	if importLegacy {
		runner = runner.WithImporter(func() error {
			importer := legacy.NewImporter(db).WithLogger(logger)
			res, err := importer.ImportDirs(cfg.Legacy.OldDir, cfg.Legacy.NewDir)
			if err != nil {
				return err
			}
			logger.Info("legacy import finished",
				zap.Int("converted", res.Converted),
				zap.Int("skipped", res.Skipped),
				zap.Int("failed", res.Failed))
			return nil
		})
	}

	if err := runner.Initialize(importLegacy); err != nil {
		return err
	}

	applied, err := runner.AppliedVersions()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Database %s is at schema version %d (%d migrations applied)\n",
		path, maxVersion(applied), len(applied))
	return nil
}

func maxVersion(versions []int) int {
	max := 0
	for _, v := range versions {
		if v > max {
			max = v
		}
	}
	return max
}
