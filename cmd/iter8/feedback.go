package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iter8/iter8-cli/internal/config"
	"github.com/iter8/iter8-cli/internal/feedback"
)

var (
	feedbackProject string
	feedbackLimit   int
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Browse and manage user feedback",
	Long: `Browse and manage the feedback iter8 turns into code changes.

Feedback is read from the local cache (.iter8/feedback.db). When
feedback.source is "postgres", 'iter8 feedback sync' pulls the project's
items from the remote table into the cache first.`,
}

var feedbackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List feedback for the project, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runFeedbackList(context.Background(), os.Stdout, feedbackProject, feedbackLimit))
	},
}

var feedbackShowCmd = &cobra.Command{
	Use:   "show <number>",
	Short: "Show the full text and attributes of one feedback item",
	Long: `Show one feedback item in full: its text, date and any extra columns
the remote table carries. Numbers follow 'iter8 feedback list'.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			exitOnError(fmt.Errorf("invalid feedback number %q", args[0]))
		}
		exitOnError(runFeedbackShow(context.Background(), os.Stdout, feedbackProject, n))
	},
}

var feedbackProjectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects that have feedback",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runFeedbackProjects(context.Background(), os.Stdout))
	},
}

var feedbackSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull feedback from the remote store into the local cache",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runFeedbackSync(context.Background(), os.Stdout, feedbackProject))
	},
}

var feedbackAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Record a feedback item in the local cache",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runFeedbackAdd(context.Background(), os.Stdout, feedbackProject, strings.Join(args, " ")))
	},
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
	feedbackCmd.AddCommand(feedbackListCmd, feedbackShowCmd, feedbackProjectsCmd, feedbackSyncCmd, feedbackAddCmd)
	feedbackCmd.PersistentFlags().StringVarP(&feedbackProject, "project", "p", "", "Project name (default: configured project)")
	feedbackListCmd.Flags().IntVarP(&feedbackLimit, "limit", "n", 0, "Show at most N items (0 = all)")
}

// loadFeedback returns the cached items for project, newest first. The
// numbering used by generate follows this order.
func loadFeedback(ctx context.Context, project string) ([]feedback.Item, error) {
	cache, err := openCache()
	if err != nil {
		return nil, err
	}
	defer cache.Close()

	items, err := cache.ListByProject(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback: %w", err)
	}
	feedback.SortNewestFirst(items)
	return items, nil
}

func runFeedbackList(ctx context.Context, w io.Writer, override string, limit int) error {
	project, err := projectName(override)
	if err != nil {
		return err
	}
	items, err := loadFeedback(ctx, project)
	if err != nil {
		return err
	}

	gray := color.New(color.FgHiBlack).SprintFunc()
	if len(items) == 0 {
		fmt.Fprintln(w, color.YellowString("No feedback found for %s.", project))
		if cfg.Feedback.Source == config.SourcePostgres {
			fmt.Fprintf(w, "%s\n", gray("Run 'iter8 feedback sync' to pull remote feedback."))
		}
		return nil
	}

	shown := items
	if limit > 0 && limit < len(shown) {
		shown = shown[:limit]
	}
	blue := color.New(color.FgHiBlue).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(w, "\n%s\n", blue(fmt.Sprintf("Feedback for %s (%d):", project, len(items))))
	for i, it := range shown {
		fmt.Fprintf(w, "%s %s\n", green(fmt.Sprintf("%d.", i+1)), it.Summary(200))
		if !it.CreatedAt.IsZero() {
			fmt.Fprintf(w, "   %s\n", gray("Date: "+it.CreatedAt.Local().Format("2006-01-02")))
		}
	}
	fmt.Fprintln(w)
	return nil
}

func runFeedbackShow(ctx context.Context, w io.Writer, override string, n int) error {
	project, err := projectName(override)
	if err != nil {
		return err
	}
	items, err := loadFeedback(ctx, project)
	if err != nil {
		return err
	}
	selected, err := feedback.Select(items, n)
	if err != nil {
		return err
	}
	feedback.PrintItem(w, n, selected[0])
	return nil
}

func runFeedbackProjects(ctx context.Context, w io.Writer) error {
	var source feedback.Source
	if cfg.Feedback.Source == config.SourcePostgres {
		remote, err := openRemote(ctx)
		if err != nil {
			return err
		}
		defer remote.Close()
		source = remote
	} else {
		cache, err := openCache()
		if err != nil {
			return err
		}
		defer cache.Close()
		source = cache
	}

	projects, err := source.Projects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	if len(projects) == 0 {
		fmt.Fprintln(w, color.YellowString("No projects found."))
		return nil
	}
	for _, p := range projects {
		marker := " "
		if p == cfg.Project.Name {
			marker = color.GreenString("*")
		}
		fmt.Fprintf(w, "%s %s\n", marker, p)
	}
	return nil
}

func runFeedbackSync(ctx context.Context, w io.Writer, override string) error {
	project, err := projectName(override)
	if err != nil {
		return err
	}
	cache, err := openCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	sync := syncFunc(cache)
	if sync == nil {
		return fmt.Errorf("feedback source is %q; nothing to sync", cfg.Feedback.Source)
	}
	n, err := sync(ctx, project)
	if err != nil {
		return err
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(w, "%s Synced %d item(s) for %s\n", green("✓"), n, project)
	return nil
}

func runFeedbackAdd(ctx context.Context, w io.Writer, override, text string) error {
	project, err := projectName(override)
	if err != nil {
		return err
	}
	cache, err := openCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	item, err := cache.Add(ctx, project, text)
	if err != nil {
		return fmt.Errorf("failed to add feedback: %w", err)
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(w, "%s Added feedback %s to %s\n", green("✓"), item.ID, project)
	return nil
}
