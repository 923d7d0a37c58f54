package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/iter8/iter8-cli/internal/changes"
	"github.com/iter8/iter8-cli/internal/codebase"
	"github.com/iter8/iter8-cli/internal/config"
	"github.com/iter8/iter8-cli/internal/feedback"
	"github.com/iter8/iter8-cli/internal/git"
	"github.com/iter8/iter8-cli/internal/llm"
)

var errNoProject = errors.New("no project set; run 'iter8 init <project>' or set ITER8_PROJECT")

// newService builds and initializes the change service for the project.
func newService(out io.Writer) (*changes.Service, error) {
	sc := cfg.ServiceConfig(projectRoot)
	sc.Output = out
	svc, err := changes.NewService(sc)
	if err != nil {
		return nil, err
	}
	if err := svc.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize backups: %w", err)
	}
	return svc, nil
}

// openCache opens the local feedback cache.
func openCache() (*feedback.SQLiteStore, error) {
	store, err := feedback.OpenSQLiteStore(cfg.CachePath(projectRoot))
	if err != nil {
		return nil, fmt.Errorf("failed to open feedback cache: %w", err)
	}
	return store, nil
}

// openRemote connects to the configured Postgres feedback table. The caller
// must Close it.
func openRemote(ctx context.Context) (*feedback.PostgresSource, error) {
	if cfg.Feedback.Source != config.SourcePostgres {
		return nil, fmt.Errorf("feedback source is %q; set feedback.source to %q to use a remote store",
			cfg.Feedback.Source, config.SourcePostgres)
	}
	if cfg.Feedback.DatabaseURL == "" {
		return nil, errors.New("feedback.database_url is empty; set ITER8_DATABASE_URL or DATABASE_URL")
	}
	return feedback.NewPostgresSource(ctx, feedback.PostgresConfig{
		URL:   cfg.Feedback.DatabaseURL,
		Table: cfg.Feedback.Table,
	})
}

// syncFunc returns a refresh function pulling remote feedback into cache, or
// nil when the project reads from the local cache only.
func syncFunc(cache *feedback.SQLiteStore) func(ctx context.Context, project string) (int, error) {
	if cfg.Feedback.Source != config.SourcePostgres {
		return nil
	}
	return func(ctx context.Context, project string) (int, error) {
		remote, err := openRemote(ctx)
		if err != nil {
			return 0, err
		}
		defer remote.Close()
		return feedback.Sync(ctx, remote, cache, project)
	}
}

// newGenerator creates the LLM client and plan generator.
func newGenerator() (*llm.Generator, error) {
	client, err := llm.New(cfg.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return llm.NewGenerator(client, cfg.GenerationParams()), nil
}

func newGatherer() *codebase.Gatherer {
	return codebase.NewGatherer(projectRoot, cfg.GathererOptions())
}

// openGit returns git operations when git is installed and the project is
// a repository, nil otherwise.
var openGit = func(ctx context.Context) git.Operations {
	g, err := git.NewGit(ctx)
	if err != nil {
		slog.Debug("Git not available", "error", err)
		return nil
	}
	if !g.IsRepo(ctx, projectRoot) {
		slog.Debug("Project is not a git repository", "root", projectRoot)
		return nil
	}
	return g
}

// confirm asks a yes/no question on out and reads the answer from in.
// Anything but y/yes declines.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// projectName returns the --project override or the configured project.
func projectName(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if cfg.Project.Name == "" {
		return "", errNoProject
	}
	return cfg.Project.Name, nil
}
