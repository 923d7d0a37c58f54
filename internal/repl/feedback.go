package repl

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fatih/color"

	"github.com/iter8/iter8-cli/internal/feedback"
)

var errNoProject = errors.New("no project set; use 'project <name>' first")

// cmdRefresh pulls remote feedback (when configured) and lists it
func (r *REPL) cmdRefresh(args []string) error {
	if r.project == "" {
		return errNoProject
	}
	if r.refresh != nil {
		n, err := r.refresh(r.ctx, r.project)
		if err != nil {
			return fmt.Errorf("failed to refresh feedback: %w", err)
		}
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Fprintln(r.out, gray(fmt.Sprintf("Synced %d item(s)", n)))
	}
	return r.cmdList(args)
}

// cmdList lists feedback for the current project
func (r *REPL) cmdList(args []string) error {
	if err := r.loadFeedback(); err != nil {
		return err
	}
	r.printFeedback()
	return nil
}

// cmdShow prints one feedback item in full
func (r *REPL) cmdShow(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: show <number>")
	}
	numbers, err := feedback.ParseNumbers(args)
	if err != nil {
		return err
	}
	if len(numbers) != 1 {
		return errors.New("usage: show <number>")
	}
	if len(r.items) == 0 {
		if err := r.loadFeedback(); err != nil {
			return err
		}
	}
	selected, err := feedback.Select(r.items, numbers[0])
	if err != nil {
		return err
	}
	feedback.PrintItem(r.out, numbers[0], selected[0])
	return nil
}

func (r *REPL) loadFeedback() error {
	if r.project == "" {
		return errNoProject
	}
	items, err := r.source.ListByProject(r.ctx, r.project)
	if err != nil {
		return fmt.Errorf("failed to load feedback: %w", err)
	}
	feedback.SortNewestFirst(items)
	r.items = items
	slog.Debug("Loaded feedback", "project", r.project, "items", len(items))
	return nil
}

func (r *REPL) printFeedback() {
	if len(r.items) == 0 {
		fmt.Fprintln(r.out, color.YellowString("No feedback found for this project."))
		return
	}

	blue := color.New(color.FgHiBlue).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(r.out, "\n%s\n", blue(fmt.Sprintf("Feedback for %s:", color.New(color.Bold).Sprint(r.project))))
	fmt.Fprintln(r.out, color.CyanString(strings.Repeat("─", 50)))
	for i, it := range r.items {
		fmt.Fprintf(r.out, "%s %s\n", green(fmt.Sprintf("%d.", i+1)), it.Summary(200))
		if !it.CreatedAt.IsZero() {
			fmt.Fprintf(r.out, "   %s\n", gray("Date: "+it.CreatedAt.Local().Format("2006-01-02")))
		}
	}
	fmt.Fprintln(r.out)
}

// cmdProject shows or changes the current project
func (r *REPL) cmdProject(args []string) error {
	if len(args) == 0 {
		bold := color.New(color.Bold).SprintFunc()
		current := r.project
		if current == "" {
			current = "(none)"
		}
		fmt.Fprintf(r.out, "%s %s\n", bold("Current project:"), current)

		projects, err := r.source.Projects(r.ctx)
		if err != nil {
			return fmt.Errorf("failed to list projects: %w", err)
		}
		if len(projects) > 0 {
			fmt.Fprintf(r.out, "%s %s\n", bold("Known projects:"), strings.Join(projects, ", "))
		}
		return nil
	}

	name := strings.Join(args, " ")
	if r.saveProject != nil {
		if err := r.saveProject(name); err != nil {
			return fmt.Errorf("failed to save project: %w", err)
		}
	}
	r.project = name
	r.items = nil
	r.pending = nil
	if r.rl != nil {
		r.rl.SetPrompt(r.prompt())
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "%s Project changed to %q\n", green("✓"), name)
	return nil
}
