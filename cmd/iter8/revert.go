package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iter8/iter8-cli/internal/changes"
)

var (
	revertAll  bool
	revertLast int
	revertFile string
	revertYes  bool
)

var revertCmd = &cobra.Command{
	Use:   "revert",
	Short: "Restore files from backups",
	Long: `Restore files from the backups taken before each write.

Backups are replayed newest first. Files that did not exist before iter8
created them are deleted. With no flag, every backup is reverted.

Example:
  iter8 revert                     # Revert everything
  iter8 revert --last 3            # Revert the three most recent writes
  iter8 revert --file src/app.ts   # Revert every write to one file`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		scope, err := revertScope(revertAll, revertLast, revertFile)
		exitOnError(err)
		exitOnError(runRevert(os.Stdin, os.Stdout, scope, revertYes))
	},
}

func init() {
	rootCmd.AddCommand(revertCmd)
	revertCmd.Flags().BoolVar(&revertAll, "all", false, "Revert every backup (default)")
	revertCmd.Flags().IntVar(&revertLast, "last", 0, "Revert the N most recent backups")
	revertCmd.Flags().StringVar(&revertFile, "file", "", "Revert every backup of one file")
	revertCmd.Flags().BoolVarP(&revertYes, "yes", "y", false, "Revert without asking for confirmation")
}

// revertScope turns the mutually exclusive flags into a scope.
func revertScope(all bool, last int, file string) (changes.Scope, error) {
	set := 0
	if all {
		set++
	}
	if last != 0 {
		set++
	}
	if file != "" {
		set++
	}
	if set > 1 {
		return changes.Scope{}, errors.New("--all, --last and --file are mutually exclusive")
	}
	switch {
	case last < 0:
		return changes.Scope{}, fmt.Errorf("--last must be positive, got %d", last)
	case last > 0:
		return changes.LastN(last), nil
	case file != "":
		return changes.ForFile(file), nil
	default:
		return changes.All(), nil
	}
}

func runRevert(in io.Reader, w io.Writer, scope changes.Scope, yes bool) error {
	svc, err := newService(w)
	if err != nil {
		return err
	}
	if svc.BackupCount() == 0 {
		fmt.Fprintf(w, "%s Nothing to revert.\n", color.YellowString("→"))
		return nil
	}
	if cfg.Apply.Confirm && !yes {
		if !confirm(in, w, fmt.Sprintf("Revert %s?", scope)) {
			fmt.Fprintln(w, color.YellowString("Revert cancelled."))
			return nil
		}
	}

	result, err := svc.RevertChanges(scope)
	if err != nil {
		return err
	}
	changes.PrintRevertResult(w, result)
	if result.Failed > 0 {
		return fmt.Errorf("%d backup(s) could not be restored", result.Failed)
	}
	return nil
}
