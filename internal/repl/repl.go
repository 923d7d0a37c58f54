// Package repl is iter8's interactive shell: browse feedback, generate a
// change plan, review it, apply it and revert it without leaving the
// terminal.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/iter8/iter8-cli/internal/changes"
	"github.com/iter8/iter8-cli/internal/codebase"
	"github.com/iter8/iter8-cli/internal/feedback"
)

// Generator produces a change plan for selected feedback.
type Generator interface {
	Generate(ctx context.Context, project string, items []feedback.Item, snap codebase.Snapshot) (changes.PlanResult, error)
	Backend() string
}

// Gatherer snapshots the project for the generator.
type Gatherer interface {
	Gather(ctx context.Context, query string) (codebase.Snapshot, error)
}

// DirtyChecker reports target files with uncommitted changes. *git.Git
// implements it.
type DirtyChecker interface {
	DirtyPaths(ctx context.Context, root string, paths []string) ([]string, error)
}

// lineReader is the part of readline.Instance the loop uses.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// REPL represents the interactive shell
type REPL struct {
	service      *changes.Service
	source       feedback.Source
	refresh      func(ctx context.Context, project string) (int, error)
	generator    Generator
	gatherer     Gatherer
	git          DirtyChecker
	saveProject  func(project string) error
	previewLines int
	out          io.Writer

	rl       lineReader
	ctx      context.Context
	project  string
	commands map[string]CommandHandler

	// items is the last feedback listing; generate numbers refer to it.
	items []feedback.Item
	// pending is the last generated plan awaiting apply.
	pending *changes.Parsed
}

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// Config holds REPL configuration
type Config struct {
	// Service applies and reverts changes. Required.
	Service *changes.Service
	// Source lists feedback, usually the local cache. Required.
	Source feedback.Source
	// Refresh pulls remote feedback into Source. Optional.
	Refresh func(ctx context.Context, project string) (int, error)
	// Generator is optional; without it generate and apply are disabled.
	Generator Generator
	Gatherer  Gatherer
	// Git enables the uncommitted-changes warning. Optional.
	Git     DirtyChecker
	Project string
	// SaveProject persists a project switch. Optional.
	SaveProject  func(project string) error
	PreviewLines int
	// Out defaults to stdout. Service output should go to the same writer.
	Out io.Writer
}

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("change service is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("feedback source is required")
	}

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	preview := cfg.PreviewLines
	if preview == 0 {
		preview = changes.DefaultPreviewLines
	}

	r := &REPL{
		service:      cfg.Service,
		source:       cfg.Source,
		refresh:      cfg.Refresh,
		generator:    cfg.Generator,
		gatherer:     cfg.Gatherer,
		git:          cfg.Git,
		saveProject:  cfg.SaveProject,
		previewLines: preview,
		out:          out,
		project:      cfg.Project,
		commands:     make(map[string]CommandHandler),
	}

	// Register built-in commands
	r.registerCommands()

	return r, nil
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	if r.rl == nil {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:            r.prompt(),
			InterruptPrompt:   "^C",
			EOFPrompt:         "exit",
			HistorySearchFold: true,
			Stdout:            r.out,
		})
		if err != nil {
			return fmt.Errorf("failed to create readline: %w", err)
		}
		r.rl = rl
	}
	defer r.rl.Close()

	r.printWelcome()

	// Main loop
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := r.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				// Ctrl+C - just show prompt again
				continue
			} else if errors.Is(err, io.EOF) {
				// Ctrl+D - exit
				fmt.Fprintln(r.out, "\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if errors.Is(err, io.EOF) {
				// Exit command - graceful shutdown
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(r.out, "%s %v\n", red("Error:"), err)
		}
	}
}

// processInput processes a single line of input
func (r *REPL) processInput(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	if handler, ok := r.commands[command]; ok {
		return handler(args)
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(r.out, "%s Unknown command %q. Type 'help' for available commands.\n", yellow("Note:"), command)
	return nil
}

// registerCommands registers all built-in commands
func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["refresh"] = r.cmdRefresh
	r.commands["list"] = r.cmdList
	r.commands["ls"] = r.cmdList
	r.commands["show"] = r.cmdShow
	r.commands["project"] = r.cmdProject
	r.commands["generate"] = r.cmdGenerate
	r.commands["apply"] = r.cmdApply
	r.commands["revert"] = r.cmdRevert
	r.commands["backups"] = r.cmdBackups
	r.commands["status"] = r.cmdStatus
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit
}

func (r *REPL) prompt() string {
	cyan := color.New(color.FgCyan).SprintFunc()
	if r.project == "" {
		return cyan("iter8> ")
	}
	return cyan(fmt.Sprintf("iter8(%s)> ", r.project))
}

// confirm asks a yes/no question on the prompt line. Anything but y/yes
// (including Ctrl+C) declines.
func (r *REPL) confirm(question string) bool {
	r.rl.SetPrompt(question + " [y/N] ")
	defer r.rl.SetPrompt(r.prompt())

	answer, err := r.rl.Readline()
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// printWelcome prints the welcome message
func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", cyan("Welcome to iter8"))
	fmt.Fprintln(r.out, "Turn user feedback into code changes")
	fmt.Fprintln(r.out)
	if r.project != "" {
		fmt.Fprintf(r.out, "Project: %s\n", color.New(color.Bold).Sprint(r.project))
	} else {
		fmt.Fprintln(r.out, "No project set. Use 'project <name>' to choose one.")
	}
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'exit' to quit")
	fmt.Fprintln(r.out)
}

// cmdHelp shows help information
func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"refresh", "Fetch the latest feedback and list it"},
		{"list, ls", "List feedback for the current project"},
		{"show <n>", "Show the full text and attributes of one item"},
		{"project [name]", "Show or change the current project"},
		{"generate <n> [n...]", "Generate a change plan for feedback items"},
		{"apply [n...]", "Apply the pending plan (or generate one first)"},
		{"revert [all|last N|file PATH]", "Restore files from backups (default: all)"},
		{"backups [N]", "List the most recent backups"},
		{"status", "Show project and backup status"},
		{"help, ?", "Show this help message"},
		{"exit, quit", "Exit the REPL"},
	}
	for _, cmd := range commands {
		fmt.Fprintf(r.out, "  %-32s %s\n", green(cmd.name), cmd.desc)
	}
	fmt.Fprintln(r.out)
	return nil
}

// cmdExit exits the REPL
func (r *REPL) cmdExit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s Goodbye!\n", green("✓"))
	return io.EOF // Signal to exit the loop
}
