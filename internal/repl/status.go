package repl

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"

	"github.com/iter8/iter8-cli/internal/changes"
)

// cmdStatus shows project overview
func (r *REPL) cmdStatus(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	project := r.project
	if project == "" {
		project = gray("(none)")
	}
	backend := gray("(not configured)")
	if r.generator != nil {
		backend = r.generator.Backend()
	}

	feedbackCount := gray("-")
	if r.project != "" {
		items, err := r.source.ListByProject(r.ctx, r.project)
		if err != nil {
			return fmt.Errorf("failed to count feedback: %w", err)
		}
		feedbackCount = strconv.Itoa(len(items))
	}

	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Project Status"))
	fmt.Fprintf(r.out, "  %-10s %s\n", "Project", project)
	fmt.Fprintf(r.out, "  %-10s %s\n", "Root", r.service.Root())
	fmt.Fprintf(r.out, "  %-10s %s\n", "Backend", backend)
	fmt.Fprintf(r.out, "  %-10s %s\n", "Feedback", feedbackCount)
	fmt.Fprintf(r.out, "  %-10s %d %s\n", "Backups", r.service.BackupCount(), gray("in "+r.service.Store().Dir()))
	if skipped := r.service.Store().Skipped(); skipped > 0 {
		fmt.Fprintf(r.out, "  %s %d unreadable backup record(s) were skipped\n", yellow("!"), skipped)
	}
	if r.pending != nil {
		fmt.Fprintf(r.out, "  %-10s %s\n", "Pending", green(fmt.Sprintf("%d change(s), type 'apply'", len(r.pending.Plan.Changes))))
	}
	fmt.Fprintln(r.out)
	return nil
}

// cmdBackups lists the most recent backups
func (r *REPL) cmdBackups(args []string) error {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid limit %q", args[0])
		}
		limit = n
	}

	entries := r.service.Backups(limit)
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", cyan(fmt.Sprintf("Backups (%d of %d):", len(entries), r.service.BackupCount())))
	changes.PrintBackups(r.out, entries)
	fmt.Fprintln(r.out)
	return nil
}
