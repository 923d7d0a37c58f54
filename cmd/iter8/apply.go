package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iter8/iter8-cli/internal/changes"
	"github.com/iter8/iter8-cli/internal/git"
	"github.com/iter8/iter8-cli/internal/llm"
)

// applyOptions controls how a parsed plan is written.
type applyOptions struct {
	// Yes skips the confirmation prompt.
	Yes bool
	// Commit commits the written files when the project is a git repository.
	Commit bool
}

var applyOpts applyOptions

var applyCmd = &cobra.Command{
	Use:   "apply <plan.json>",
	Short: "Apply a saved change plan",
	Long: `Apply a change plan saved by 'iter8 generate --out'.

The plan is parsed tolerantly (code fences and trailing commas are accepted),
previewed, and written only after confirmation. Every file is backed up
before it is written; use 'iter8 revert' to undo.

Example:
  iter8 generate 1 --out plan.json
  iter8 apply plan.json
  iter8 apply plan.json --yes --commit`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runApply(context.Background(), os.Stdin, os.Stdout, args[0], applyOpts))
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().BoolVarP(&applyOpts.Yes, "yes", "y", false, "Apply without asking for confirmation")
	applyCmd.Flags().BoolVar(&applyOpts.Commit, "commit", false, "Commit the written files with git")
}

func runApply(ctx context.Context, in io.Reader, w io.Writer, path string, opts applyOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read plan: %w", err)
	}

	switch res := llm.ParsePlan(string(data)).(type) {
	case changes.Malformed:
		return fmt.Errorf("invalid plan %s: %s", path, res.Reason)
	case changes.Parsed:
		changes.DisplayChanges(w, res.Plan, cfg.Apply.PreviewLines)
		return applyPlan(ctx, in, w, res, opts)
	default:
		return fmt.Errorf("invalid plan %s", path)
	}
}

// applyPlan warns about dirty targets, confirms, applies and optionally
// commits. A plan with failed changes returns an error so the command exits
// non-zero.
func applyPlan(ctx context.Context, in io.Reader, w io.Writer, plan changes.Parsed, opts applyOptions) error {
	if len(plan.Plan.Changes) == 0 {
		fmt.Fprintln(w, color.YellowString("\nNo changes to apply."))
		return nil
	}

	paths := make([]string, 0, len(plan.Plan.Changes))
	for _, c := range plan.Plan.Changes {
		paths = append(paths, c.FilePath)
	}

	var ops git.Operations
	if cfg.Apply.WarnDirty || opts.Commit {
		ops = openGit(ctx)
	}
	if cfg.Apply.WarnDirty && ops != nil {
		warnDirty(ctx, w, ops, paths)
	}

	if cfg.Apply.Confirm && !opts.Yes {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(w, "\n%s\n", red("WARNING: This will modify your codebase!"))
		if !confirm(in, w, fmt.Sprintf("Apply %d change(s)?", len(paths))) {
			fmt.Fprintln(w, color.YellowString("Changes cancelled."))
			return nil
		}
	}

	svc, err := newService(w)
	if err != nil {
		return err
	}
	summary, err := svc.ApplyChanges(plan)
	if err != nil {
		return err
	}
	changes.PrintApplySummary(w, summary)

	if opts.Commit && summary.SuccessCount > 0 && !summary.RolledBack {
		if err := commitApplied(ctx, w, ops, plan.Plan, summary); err != nil {
			return err
		}
	}

	if summary.FailureCount > 0 {
		return fmt.Errorf("%d of %d change(s) failed", summary.FailureCount, len(summary.Outcomes))
	}
	if n := summary.BackedUp(); n > 0 && !summary.RolledBack {
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Fprintf(w, "%s\n", gray(fmt.Sprintf("Use 'iter8 revert --last %d' to undo.", n)))
	}
	return nil
}

// warnDirty lists target files that have uncommitted git changes.
func warnDirty(ctx context.Context, w io.Writer, ops git.Operations, paths []string) {
	dirty, err := ops.DirtyPaths(ctx, projectRoot, paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to check git status: %v\n", err)
		return
	}
	if len(dirty) == 0 {
		return
	}
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(w, "\n%s These files have uncommitted changes:\n", yellow("!"))
	for _, p := range dirty {
		fmt.Fprintf(w, "    %s\n", p)
	}
}

// commitApplied commits the files that were written successfully.
func commitApplied(ctx context.Context, w io.Writer, ops git.Operations, plan changes.GeneratedChanges, summary changes.ApplySummary) error {
	if ops == nil {
		return fmt.Errorf("cannot commit: %s is not a git repository", projectRoot)
	}
	var paths []string
	for _, o := range summary.Outcomes {
		if o.Success {
			paths = append(paths, o.FilePath)
		}
	}
	hash, err := ops.CommitChanges(ctx, projectRoot, git.CommitOptions{
		Message: commitMessage(plan),
		Paths:   paths,
	})
	if err != nil {
		return fmt.Errorf("changes were applied but the commit failed: %w", err)
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(w, "%s Committed %s\n", green("✓"), shortHash(hash))
	return nil
}

func commitMessage(plan changes.GeneratedChanges) string {
	if plan.Summary == "" {
		return "iter8: apply feedback changes"
	}
	return "iter8: " + plan.Summary
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
