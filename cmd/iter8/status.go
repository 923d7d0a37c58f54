package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iter8/iter8-cli/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show project, backend and backup status",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runStatus(context.Background(), os.Stdout))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(ctx context.Context, w io.Writer) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "\n%s\n\n", cyan("=== iter8 Status ==="))

	configState := gray("(defaults, not initialized)")
	if config.Exists(projectRoot) {
		configState = config.Path(projectRoot)
	}
	project := cfg.Project.Name
	if project == "" {
		project = gray("(none)")
	}
	backend := cfg.LLM.Provider
	if cfg.LLM.Model != "" {
		backend += "/" + cfg.LLM.Model
	}

	fmt.Fprintf(w, "%s\n", yellow("Project:"))
	fmt.Fprintf(w, "  %-10s %s\n", "Name", project)
	fmt.Fprintf(w, "  %-10s %s\n", "Root", projectRoot)
	fmt.Fprintf(w, "  %-10s %s\n", "Config", configState)
	fmt.Fprintf(w, "  %-10s %s\n", "Backend", backend)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s\n", yellow("Feedback:"))
	fmt.Fprintf(w, "  %-10s %s\n", "Source", cfg.Feedback.Source)
	if cfg.Project.Name != "" {
		cache, err := openCache()
		if err != nil {
			return err
		}
		n, err := cache.Count(ctx, cfg.Project.Name)
		cache.Close()
		if err != nil {
			return fmt.Errorf("failed to count feedback: %w", err)
		}
		fmt.Fprintf(w, "  %-10s %d\n", "Cached", n)
	}
	fmt.Fprintln(w)

	svc, err := newService(w)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n", yellow("Backups:"))
	fmt.Fprintf(w, "  %-10s %d\n", "Count", svc.BackupCount())
	fmt.Fprintf(w, "  %-10s %s\n", "Directory", svc.Store().Dir())
	fmt.Fprintf(w, "  %-10s %s\n", "Retention", gray(cfg.Backup.String()))
	fmt.Fprintf(w, "  %-10s %s\n", "Policy", cfg.Apply.FailurePolicy)
	if skipped := svc.Store().Skipped(); skipped > 0 {
		fmt.Fprintf(w, "  %s %d unreadable backup record(s) were skipped\n", yellow("!"), skipped)
	}
	fmt.Fprintln(w)

	if ops := openGit(ctx); ops != nil {
		status, err := ops.GetStatus(ctx, projectRoot)
		if err != nil {
			return fmt.Errorf("failed to get git status: %w", err)
		}
		fmt.Fprintf(w, "%s\n", yellow("Git:"))
		if status.HasChanges {
			fmt.Fprintf(w, "  %s %d uncommitted change(s)\n", yellow("⚠"), len(status.All()))
		} else {
			fmt.Fprintf(w, "  %s clean\n", green("✓"))
		}
		fmt.Fprintln(w)
	}
	return nil
}
