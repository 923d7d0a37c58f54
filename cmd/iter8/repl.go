package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/iter8/iter8-cli/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start interactive REPL shell",
	Long: `Start an interactive REPL (Read-Eval-Print Loop) shell for iter8.

The REPL lets you:
- Browse and refresh feedback for the current project
- Generate a change plan and review it before writing
- Apply, list and revert backups without leaving the terminal

Type 'help' in the REPL for available commands.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		r, closeFn, err := newREPL(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create REPL: %v\n", err)
			os.Exit(1)
		}
		defer closeFn()

		if err := r.Run(context.Background()); err != nil {
			closeFn()
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

// newREPL wires the REPL to the project's service, cache, backend and git.
// The returned func closes the feedback cache.
func newREPL(ctx context.Context) (*repl.REPL, func(), error) {
	svc, err := newService(os.Stdout)
	if err != nil {
		return nil, nil, err
	}
	cache, err := openCache()
	if err != nil {
		return nil, nil, err
	}

	rcfg := &repl.Config{
		Service:      svc,
		Source:       cache,
		Refresh:      syncFunc(cache),
		Gatherer:     makeGatherer(),
		Project:      cfg.Project.Name,
		PreviewLines: cfg.Apply.PreviewLines,
		Out:          os.Stdout,
		SaveProject: func(project string) error {
			cfg.Project.Name = project
			return cfg.Save(projectRoot)
		},
	}

	// Browsing feedback and reverting work without a backend.
	if gen, err := makeGenerator(); err != nil {
		slog.Warn("LLM backend unavailable; generate and apply are disabled", "error", err)
	} else {
		rcfg.Generator = gen
	}
	if cfg.Apply.WarnDirty {
		if ops := openGit(ctx); ops != nil {
			rcfg.Git = ops
		}
	}

	r, err := repl.New(rcfg)
	if err != nil {
		cache.Close()
		return nil, nil, err
	}
	return r, func() { cache.Close() }, nil
}
