package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/iter8/iter8-cli/internal/config"
	"github.com/iter8/iter8-cli/internal/llm"
)

var (
	initProvider string
	initForce    bool
)

var initCmd = &cobra.Command{
	Use:   "init [project-name]",
	Short: "Initialize iter8 in the current directory",
	Long: `Initialize iter8 by writing .iter8/config.yaml and creating the backup directory.

This creates:
  - .iter8/config.yaml (project configuration)
  - .iter8/feedback.db (local feedback cache)
  - .iter8_backups/ (file backups taken before every write)

If no project name is provided, the current directory name is used.

Example:
  cd ~/myapp
  iter8 init                       # Project "myapp"
  iter8 init "My App"              # Feedback project "My App"
  iter8 init --provider=ollama     # Use a local Ollama model`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		exitOnError(runInit(os.Stdout, name, initProvider, initForce))
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initProvider, "provider", "", "LLM provider (anthropic, openai, ollama)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration")
}

// runInit writes a fresh configuration for projectRoot and prepares the
// backup directory and feedback cache.
func runInit(w io.Writer, name, provider string, force bool) error {
	if config.Exists(projectRoot) && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", config.Path(projectRoot))
	}

	c := config.Default()
	c.Project.Name = strings.TrimSpace(name)
	if c.Project.Name == "" {
		c.Project.Name = filepath.Base(projectRoot)
	}
	if provider != "" {
		if !llm.Provider(provider).IsValid() {
			return fmt.Errorf("unknown provider %q (expected anthropic, openai or ollama)", provider)
		}
		c.LLM.Provider = provider
	}
	if err := c.Save(projectRoot); err != nil {
		return err
	}
	cfg = c

	svc, err := newService(io.Discard)
	if err != nil {
		return err
	}
	cache, err := openCache()
	if err != nil {
		return err
	}
	_ = cache.Close() // schema is created on open

	if err := ensureGitignore(projectRoot, c.Backup.Dir+"/", c.Feedback.CachePath+"*"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to update .gitignore: %v\n", err)
	}

	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "\n%s Initialized iter8\n\n", green("✓"))
	fmt.Fprintf(w, "  Project:  %s\n", cyan(c.Project.Name))
	fmt.Fprintf(w, "  Config:   %s\n", cyan(config.Path(projectRoot)))
	fmt.Fprintf(w, "  Backups:  %s\n", cyan(svc.Store().Dir()))
	fmt.Fprintf(w, "  Backend:  %s\n", cyan(c.LLM.Provider))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s Next steps:\n", gray("→"))
	fmt.Fprintf(w, "  %s\n", gray("iter8 feedback add \"...\"   # Or set feedback.source: postgres and run 'iter8 feedback sync'"))
	fmt.Fprintf(w, "  %s\n", gray("iter8 feedback list"))
	fmt.Fprintf(w, "  %s\n", gray("iter8 generate 1"))
	fmt.Fprintln(w)
	return nil
}

// ensureGitignore appends entries missing from root/.gitignore. Nothing is
// written when root is not a git checkout.
func ensureGitignore(root string, entries ...string) error {
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		return nil
	}
	path := filepath.Join(root, ".gitignore")
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	existing := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		existing[strings.TrimSpace(line)] = true
	}
	var missing []string
	for _, e := range entries {
		if !existing[e] {
			missing = append(missing, e)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var b strings.Builder
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		b.WriteString("\n")
	}
	b.WriteString("# iter8\n")
	for _, e := range missing {
		b.WriteString(e + "\n")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}
