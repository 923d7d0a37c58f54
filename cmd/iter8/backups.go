package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iter8/iter8-cli/internal/changes"
)

var backupsLimit int

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List the most recent file backups",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runBackups(os.Stdout, backupsLimit))
	},
}

func init() {
	rootCmd.AddCommand(backupsCmd)
	backupsCmd.Flags().IntVarP(&backupsLimit, "limit", "n", 20, "Show at most N backups")
}

func runBackups(w io.Writer, limit int) error {
	if limit < 1 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}
	svc, err := newService(w)
	if err != nil {
		return err
	}
	entries := svc.Backups(limit)
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(w, "\n%s\n", cyan(fmt.Sprintf("Backups (%d of %d):", len(entries), svc.BackupCount())))
	changes.PrintBackups(w, entries)
	fmt.Fprintln(w)
	return nil
}
