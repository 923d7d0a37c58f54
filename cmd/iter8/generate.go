package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iter8/iter8-cli/internal/changes"
	"github.com/iter8/iter8-cli/internal/feedback"
	"github.com/iter8/iter8-cli/internal/repl"
)

type generateOptions struct {
	Project string
	// Out saves the plan as JSON for a later 'iter8 apply'.
	Out string
	// Apply writes the plan right away.
	Apply bool
	applyOptions
}

var generateOpts generateOptions

// makeGenerator and makeGatherer are replaced in tests.
var (
	makeGenerator = func() (repl.Generator, error) {
		g, err := newGenerator()
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	makeGatherer = func() repl.Gatherer {
		return newGatherer()
	}
)

var generateCmd = &cobra.Command{
	Use:   "generate <number> [number...]",
	Short: "Generate a change plan for feedback items",
	Long: `Generate a change plan for one or more feedback items.

Numbers refer to 'iter8 feedback list' (newest first). iter8 gathers
project context, asks the configured LLM backend for full-file edits and
previews the result. Nothing is written unless --apply is given.

Example:
  iter8 generate 1
  iter8 generate 1,3 --out plan.json
  iter8 generate 2 --apply --yes`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		numbers, err := feedback.ParseNumbers(args)
		exitOnError(err)
		exitOnError(runGenerate(context.Background(), os.Stdin, os.Stdout, numbers, generateOpts))
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&generateOpts.Project, "project", "p", "", "Project name (default: configured project)")
	generateCmd.Flags().StringVarP(&generateOpts.Out, "out", "o", "", "Save the plan to a JSON file")
	generateCmd.Flags().BoolVar(&generateOpts.Apply, "apply", false, "Apply the plan after previewing it")
	generateCmd.Flags().BoolVarP(&generateOpts.Yes, "yes", "y", false, "Apply without asking for confirmation")
	generateCmd.Flags().BoolVar(&generateOpts.Commit, "commit", false, "Commit applied files with git")
}

func runGenerate(ctx context.Context, in io.Reader, w io.Writer, numbers []int, opts generateOptions) error {
	project, err := projectName(opts.Project)
	if err != nil {
		return err
	}
	items, err := loadFeedback(ctx, project)
	if err != nil {
		return err
	}
	selected, err := feedback.Select(items, numbers...)
	if err != nil {
		return err
	}

	gen, err := makeGenerator()
	if err != nil {
		return err
	}

	blue := color.New(color.FgHiBlue).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Fprintf(w, "\n%s %s\n", blue("Analyzing feedback..."), gray("("+gen.Backend()+")"))

	texts := make([]string, 0, len(selected))
	for _, it := range selected {
		texts = append(texts, it.Text)
	}
	snap, err := makeGatherer().Gather(ctx, strings.Join(texts, "\n"))
	if err != nil {
		return fmt.Errorf("failed to gather project context: %w", err)
	}

	result, err := gen.Generate(ctx, project, selected, snap)
	if err != nil {
		return fmt.Errorf("failed to generate changes: %w", err)
	}

	switch res := result.(type) {
	case changes.Malformed:
		return fmt.Errorf("the backend's reply could not be used: %s", res.Reason)
	case changes.Parsed:
		changes.DisplayChanges(w, res.Plan, cfg.Apply.PreviewLines)
		if len(res.Plan.Changes) == 0 {
			fmt.Fprintln(w, color.YellowString("\nNo changes to apply for this feedback."))
			return nil
		}
		if opts.Out != "" {
			if err := writePlan(opts.Out, res.Plan); err != nil {
				return err
			}
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Fprintf(w, "\n%s Plan saved to %s\n", green("✓"), opts.Out)
		}
		if opts.Apply {
			return applyPlan(ctx, in, w, res, opts.applyOptions)
		}
		fmt.Fprintf(w, "\n%s Next steps:\n", gray("→"))
		if opts.Out != "" {
			fmt.Fprintf(w, "  %s\n", gray("iter8 apply "+opts.Out))
		} else {
			fmt.Fprintf(w, "  %s\n", gray("iter8 generate "+joinNumbers(numbers)+" --apply"))
		}
		return nil
	default:
		return fmt.Errorf("unexpected plan result %T", result)
	}
}

// writePlan saves plan in the JSON format 'iter8 apply' reads.
func writePlan(path string, plan changes.GeneratedChanges) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}

func joinNumbers(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}
