package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"promptstore/pkg/persistence"
	"promptstore/pkg/templates"
)

var (
	showJSON    bool
	urgencyFlag int
	varFlags    []string
)

// listCmd prints a one-line summary of every stored prompt.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored prompts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// showCmd prints a single prompt in detail.
var showCmd = &cobra.Command{
	Use:   "show <type>",
	Short: "Show a stored prompt by type",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

// renderCmd fills a prompt template with variable values.
var renderCmd = &cobra.Command{
	Use:   "render <type>",
	Short: "Render a prompt template with variable values",
	Long: `Render the template of a stored prompt. The version matching --urgency is
used when one exists; otherwise the prompt's representative template is
rendered. Placeholder values are supplied with repeated --var key=value
flags.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the prompt as JSON")
	renderCmd.Flags().IntVar(&urgencyFlag, "urgency", 5, "Urgency level to render (1-10)")
	renderCmd.Flags().StringArrayVar(&varFlags, "var", nil, "Template variable as key=value (repeatable)")
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := persistence.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := persistence.NewPromptRepository(db)
	prompts, err := repo.GetAll()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(prompts) == 0 {
		fmt.Fprintln(out, "No prompts stored")
		return nil
	}
	for _, p := range prompts {
		tags := ""
		if len(p.Tags) > 0 {
			tags = " [" + strings.Join(p.Tags, ", ") + "]"
		}
		fmt.Fprintf(out, "%-20s %s%s\n", p.Type, truncate(p.Title, 50), tags)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()
	if showJSON {
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Type:        %s\n", p.Type)
	fmt.Fprintf(out, "Title:       %s\n", p.Title)
	fmt.Fprintf(out, "Author:      %s\n", p.Author)
	fmt.Fprintf(out, "Version:     %s\n", p.Version)
	if len(p.Tags) > 0 {
		fmt.Fprintf(out, "Tags:        %s\n", strings.Join(p.Tags, ", "))
	}
	if vars := templates.ExtractVariables(p.Template); len(vars) > 0 {
		fmt.Fprintf(out, "Variables:   %s\n", strings.Join(vars, ", "))
	}

	versions, err := repo.VersionsByPromptID(p.ID)
	if err != nil {
		return err
	}
	if len(versions) > 0 {
		levels := make([]string, 0, len(versions))
		for _, v := range versions {
			levels = append(levels, fmt.Sprintf("%d (%s)", v.VersionNum, templates.UrgencyLabel(v.VersionNum)))
		}
		fmt.Fprintf(out, "Urgencies:   %s\n", strings.Join(levels, ", "))
	}
	fmt.Fprintf(out, "\n%s\n", p.Template)
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	vars := make(map[string]string, len(varFlags))
	for _, kv := range varFlags {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --var %q: expected key=value", kv)
		}
		vars[key] = value
	}

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

	versions, err := repo.VersionsByPromptID(p.ID)
	if err != nil {
		return err
	}

	rendered, err := templates.RenderPrompt(p, versions, urgencyFlag, vars)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return nil
}
