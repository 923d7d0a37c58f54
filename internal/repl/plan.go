package repl

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/iter8/iter8-cli/internal/changes"
	"github.com/iter8/iter8-cli/internal/codebase"
	"github.com/iter8/iter8-cli/internal/feedback"
)

// cmdGenerate asks the backend for a plan covering the numbered items
func (r *REPL) cmdGenerate(args []string) error {
	if r.generator == nil {
		return errors.New("no LLM backend configured; set llm.provider in .iter8/config.yaml")
	}
	if len(args) == 0 {
		return errors.New("usage: generate <number> [number...]")
	}
	numbers, err := feedback.ParseNumbers(args)
	if err != nil {
		return err
	}
	if len(r.items) == 0 {
		if err := r.loadFeedback(); err != nil {
			return err
		}
	}
	selected, err := feedback.Select(r.items, numbers...)
	if err != nil {
		return err
	}

	blue := color.New(color.FgHiBlue).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Fprintf(r.out, "\n%s %s\n", blue("Analyzing feedback..."), gray("("+r.generator.Backend()+")"))

	var snap codebase.Snapshot
	if r.gatherer != nil {
		texts := make([]string, 0, len(selected))
		for _, it := range selected {
			texts = append(texts, it.Text)
		}
		snap, err = r.gatherer.Gather(r.ctx, strings.Join(texts, "\n"))
		if err != nil {
			return fmt.Errorf("failed to gather project context: %w", err)
		}
	}

	result, err := r.generator.Generate(r.ctx, r.project, selected, snap)
	if err != nil {
		return fmt.Errorf("failed to generate changes: %w", err)
	}

	r.pending = nil
	switch res := result.(type) {
	case changes.Parsed:
		changes.DisplayChanges(r.out, res.Plan, r.previewLines)
		if len(res.Plan.Changes) == 0 {
			fmt.Fprintln(r.out, color.YellowString("\nNo changes to apply for this feedback."))
			return nil
		}
		r.pending = &res
		fmt.Fprintf(r.out, "\n%s\n", gray("Type 'apply' to write these changes."))
	case changes.Malformed:
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(r.out, "%s The backend's reply could not be used: %s\n", yellow("!"), res.Reason)
		fmt.Fprintln(r.out, gray("Nothing was changed. Try generating again."))
	}
	return nil
}

// cmdApply writes the pending plan, generating it first when numbers are given
func (r *REPL) cmdApply(args []string) error {
	if len(args) > 0 {
		if err := r.cmdGenerate(args); err != nil {
			return err
		}
	}
	if r.pending == nil {
		if len(args) > 0 {
			return nil
		}
		return errors.New("no pending plan; run 'generate <number>' first")
	}

	plan := *r.pending
	paths := make([]string, 0, len(plan.Plan.Changes))
	for _, c := range plan.Plan.Changes {
		paths = append(paths, c.FilePath)
	}
	r.warnDirty(paths)

	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", red("WARNING: This will modify your codebase!"))
	fmt.Fprintln(r.out, gray("A backup is created for every file before it is written."))
	if !r.confirm(fmt.Sprintf("Apply %d change(s)?", len(paths))) {
		fmt.Fprintln(r.out, color.YellowString("Changes cancelled."))
		return nil
	}

	summary, err := r.service.ApplyChanges(plan)
	if err != nil {
		return err
	}
	changes.PrintApplySummary(r.out, summary)
	if summary.BackedUp() > 0 && !summary.RolledBack {
		fmt.Fprintln(r.out, gray("Use 'revert' to undo."))
	}
	r.pending = nil
	return nil
}

// warnDirty lists target files that have uncommitted git changes.
func (r *REPL) warnDirty(paths []string) {
	if r.git == nil {
		return
	}
	dirty, err := r.git.DirtyPaths(r.ctx, r.service.Root(), paths)
	if err != nil {
		slog.Debug("Skipping uncommitted changes check", "error", err)
		return
	}
	if len(dirty) == 0 {
		return
	}
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(r.out, "\n%s These files have uncommitted changes:\n", yellow("!"))
	for _, p := range dirty {
		fmt.Fprintf(r.out, "    %s\n", p)
	}
}

// parseScope reads revert arguments: none or "all", "last N", "file PATH",
// or a bare number as shorthand for "last N".
func parseScope(args []string) (changes.Scope, error) {
	if len(args) == 0 {
		return changes.All(), nil
	}
	switch strings.ToLower(args[0]) {
	case "all":
		if len(args) > 1 {
			break
		}
		return changes.All(), nil
	case "last":
		n := 1
		if len(args) > 2 {
			break
		}
		if len(args) == 2 {
			v, err := strconv.Atoi(args[1])
			if err != nil || v < 1 {
				return changes.Scope{}, fmt.Errorf("invalid count %q", args[1])
			}
			n = v
		}
		return changes.LastN(n), nil
	case "file":
		if len(args) < 2 {
			return changes.Scope{}, errors.New("usage: revert file <path>")
		}
		return changes.ForFile(strings.Join(args[1:], " ")), nil
	default:
		if v, err := strconv.Atoi(args[0]); err == nil && v > 0 && len(args) == 1 {
			return changes.LastN(v), nil
		}
	}
	return changes.Scope{}, errors.New("usage: revert [all | last N | file PATH]")
}

// cmdRevert restores files from backups
func (r *REPL) cmdRevert(args []string) error {
	scope, err := parseScope(args)
	if err != nil {
		return err
	}
	if r.service.BackupCount() == 0 {
		fmt.Fprintf(r.out, "%s Nothing to revert.\n", color.YellowString("→"))
		return nil
	}
	if !r.confirm(fmt.Sprintf("Revert %s?", scope)) {
		fmt.Fprintln(r.out, color.YellowString("Revert cancelled."))
		return nil
	}

	result, err := r.service.RevertChanges(scope)
	if err != nil {
		return err
	}
	changes.PrintRevertResult(r.out, result)
	return nil
}
