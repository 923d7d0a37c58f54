package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iter8/iter8-cli/internal/config"
)

var (
	// projectRoot is the directory all change paths are relative to.
	projectRoot string
	// cfg is the loaded project configuration.
	cfg *config.Config

	rootFlag    string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "iter8",
	Short: "Turn user feedback into code changes",
	Long: `iter8 fetches user feedback, asks a language model to propose file edits,
and applies them to the local project with timestamped backups and revert support.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verboseFlag)

		root, err := resolveRoot(rootFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		projectRoot = root

		loaded, err := config.Load(projectRoot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
		slog.Debug("Loaded configuration", "root", projectRoot, "exists", config.Exists(projectRoot))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Project root (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging installs the stderr slog handler.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// resolveRoot returns the absolute project root, defaulting to the working directory.
func resolveRoot(flag string) (string, error) {
	if flag == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(flag)
	if err != nil {
		return "", fmt.Errorf("invalid root %q: %w", flag, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("invalid root %q: %w", flag, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("invalid root %q: not a directory", flag)
	}
	return abs, nil
}

// exitOnError prints err in the CLI's error format and exits with status 1.
func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
