package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"promptstore/pkg/persistence"
)

var (
	modelFlag    string
	failedFlag   bool
	tokensFlag   int64
	durationFlag int64
)

// useCmd records a usage event for a prompt.
var useCmd = &cobra.Command{
	Use:   "use <type>",
	Short: "Record a usage event for a prompt",
	Long: `Record that a prompt was used, updating its aggregate usage score. By
default the usage counts as a success; pass --failed to record a
failure.`,
	Args: cobra.ExactArgs(1),
	RunE: runUse,
}

func init() {
	useCmd.Flags().StringVar(&modelFlag, "model", "", "Model the prompt was used with")
	useCmd.Flags().BoolVar(&failedFlag, "failed", false, "Record the usage as a failure")
	useCmd.Flags().Int64Var(&tokensFlag, "tokens", 0, "Tokens consumed by the request")
	useCmd.Flags().Int64Var(&durationFlag, "duration", 0, "Request duration in milliseconds")
}

func runUse(cmd *cobra.Command, args []string) error {
	db, err := persistence.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := persistence.NewPromptRepository(db)
	p, found, err := repo.GetByType(args[0])
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("prompt %q not found", args[0])
	}

	usage := &persistence.UsageLog{
		PromptID: p.ID,
		Success:  !failedFlag,
		Model:    modelFlag,
	}
	if tokensFlag > 0 {
		usage.TokensUsed = &tokensFlag
	}
	if durationFlag > 0 {
		usage.DurationMS = &durationFlag
	}

	ops := persistence.NewAnalyticsOperations(db)
	if err := ops.RecordUsage(usage); err != nil {
		return err
	}

	score, found, err := ops.GetScore(p.ID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !found {
		fmt.Fprintln(out, "Usage recorded")
		return nil
	}
	fmt.Fprintf(out, "Usage recorded: %s used %d times, %d successes\n",
		p.Type, score.UsageCount, score.SuccessCount)
	return nil
}
