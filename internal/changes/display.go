package changes

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// DefaultPreviewLines is how many content lines DisplayChanges shows per file.
const DefaultPreviewLines = 20

// DisplayChanges writes a colored, read-only preview of plan to w, showing
// at most maxLines lines of each file's content (0 = no limit).
func DisplayChanges(w io.Writer, plan GeneratedChanges, maxLines int) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "\n%s\n", color.New(color.FgHiBlue, color.Bold).Sprint("Change Preview:"))
	fmt.Fprintln(w, cyan(strings.Repeat("─", 60)))

	summary := plan.Summary
	if summary == "" {
		summary = "No summary provided"
	}
	fmt.Fprintf(w, "%s %s\n", bold("Summary:"), summary)
	if plan.EstimatedTime != "" {
		fmt.Fprintf(w, "%s %s\n", bold("Estimated Time:"), plan.EstimatedTime)
	}
	fmt.Fprintf(w, "%s %s\n", bold("Risk Level:"), riskLabel(plan.Risk()))

	if len(plan.Changes) == 0 {
		fmt.Fprintf(w, "\n%s\n", yellow("No changes to apply."))
		return
	}

	fmt.Fprintf(w, "\n%s\n", bold(fmt.Sprintf("Files to modify (%d):", len(plan.Changes))))
	for i, c := range plan.Changes {
		fmt.Fprintf(w, "\n%s\n", color.New(color.FgHiBlue).Sprintf("%d. %s", i+1, c.FilePath))
		if c.Confidence != nil {
			fmt.Fprintf(w, "   %s\n", gray(fmt.Sprintf("Confidence: %d%%", int(*c.Confidence*100+0.5))))
		}
		fmt.Fprintf(w, "   %s\n", gray("Description: "+c.DescriptionOrDefault()))

		lines := strings.Split(c.Content, "\n")
		hidden := 0
		if maxLines > 0 && len(lines) > maxLines {
			hidden = len(lines) - maxLines
			lines = lines[:maxLines]
		}
		fmt.Fprintf(w, "   %s\n", gray("┌"+strings.Repeat("─", 40)))
		for _, line := range lines {
			fmt.Fprintf(w, "   %s%s\n", gray("│ "), line)
		}
		if hidden > 0 {
			fmt.Fprintf(w, "   %s%s\n", gray("│ "), gray(fmt.Sprintf("... (%d more lines)", hidden)))
		}
		fmt.Fprintf(w, "   %s\n", gray("└"+strings.Repeat("─", 40)))
	}
}

// PrintApplySummary writes the outcome of an apply call, naming every
// failed file with its reason.
func PrintApplySummary(w io.Writer, s ApplySummary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "\n%s applied, %s failed\n",
		green(fmt.Sprintf("%d", s.SuccessCount)),
		red(fmt.Sprintf("%d", s.FailureCount)))
	for _, o := range s.Outcomes {
		switch {
		case o.Success && o.Warning != "":
			fmt.Fprintf(w, "  %s %s %s\n", yellow("!"), o.FilePath, yellow("(no backup: "+o.Warning+")"))
		case o.Success:
			fmt.Fprintf(w, "  %s %s\n", green("✓"), o.FilePath)
		default:
			fmt.Fprintf(w, "  %s %s [%s]: %s\n", red("✗"), o.FilePath, o.Kind, o.Error)
		}
	}
	if s.RolledBack {
		fmt.Fprintf(w, "%s\n", yellow("All changes from this batch were rolled back."))
	}
}

// PrintRevertResult writes the outcome of a revert call.
func PrintRevertResult(w io.Writer, r RevertResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	if r.Reverted == 0 && r.Failed == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s reverted, %s failed\n",
		green(fmt.Sprintf("%d", r.Reverted)),
		red(fmt.Sprintf("%d", r.Failed)))
	for _, o := range r.Outcomes {
		if !o.Success {
			fmt.Fprintf(w, "  %s %s: %s\n", red("✗"), o.FilePath, o.Error)
		}
	}
}

func riskLabel(r RiskLevel) string {
	switch r {
	case RiskLow:
		return color.GreenString("LOW")
	case RiskMedium:
		return color.YellowString("MEDIUM")
	case RiskHigh:
		return color.RedString("HIGH")
	default:
		return color.HiBlackString("UNKNOWN")
	}
}

// PrintBackups lists backup entries, one per line.
func PrintBackups(w io.Writer, entries []BackupEntry) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	if len(entries) == 0 {
		fmt.Fprintln(w, color.YellowString("No backups."))
		return
	}
	for _, e := range entries {
		state := fmt.Sprintf("%d bytes", len(e.OriginalContent))
		if e.Absent {
			state = "new file"
		}
		fmt.Fprintf(w, "  %s  %s  %s %s\n",
			gray(e.Timestamp.Local().Format("2006-01-02 15:04:05")),
			gray(e.ID[:min(8, len(e.ID))]),
			e.FilePath,
			gray("("+state+")"))
	}
}
