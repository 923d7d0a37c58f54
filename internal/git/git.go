// Package git wraps the git CLI for the checks iter8 runs around applying
// changes: warning about uncommitted edits and optionally committing the
// applied files.
package git

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
)

// Git implements Operations using the git CLI.
type Git struct {
	// gitPath is the path to the git executable
	gitPath string
}

var _ Operations = (*Git)(nil)

// NewGit creates a new Git instance.
// It verifies that git is available on the system.
func NewGit(ctx context.Context) (*Git, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}

	// Verify git works
	cmd := exec.CommandContext(ctx, gitPath, "version")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git command failed: %w", err)
	}

	return &Git{gitPath: gitPath}, nil
}

// IsRepo reports whether path is inside a git work tree.
func (g *Git) IsRepo(ctx context.Context, repoPath string) bool {
	out, err := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "rev-parse", "--is-inside-work-tree").Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// HasUncommittedChanges checks if there are uncommitted changes.
// SECURITY: repoPath must be a validated, trusted path. This function
// does not perform path validation or sandboxing.
func (g *Git) HasUncommittedChanges(ctx context.Context, repoPath string) (bool, error) {
	status, err := g.GetStatus(ctx, repoPath)
	if err != nil {
		return false, fmt.Errorf("failed to check uncommitted changes in %s: %w", repoPath, err)
	}
	return status.HasChanges, nil
}

// GetStatus returns the git status of the repository.
// SECURITY: repoPath must be a validated, trusted path. This function
// does not perform path validation or sandboxing.
func (g *Git) GetStatus(ctx context.Context, repoPath string) (*Status, error) {
	// -uall lists files inside untracked directories individually
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "status", "--porcelain", "-uall")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git status failed in %s: %w", repoPath, err)
	}
	return parseStatus(string(output))
}

func parseStatus(output string) (*Status, error) {
	status := &Status{
		Modified:  []string{},
		Untracked: []string{},
		Deleted:   []string{},
		Added:     []string{},
		Renamed:   []string{},
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 4 {
			continue
		}

		statusCode := line[0:2]
		filePath := unquote(line[3:])

		// Parse status codes: XY where X=index, Y=working tree
		// Reference: https://git-scm.com/docs/git-status#_short_format
		switch {
		case statusCode == "??":
			status.Untracked = append(status.Untracked, filePath)
		case statusCode[0] == 'R':
			if i := strings.Index(line[3:], " -> "); i >= 0 {
				filePath = unquote(line[3+i+4:])
			}
			status.Renamed = append(status.Renamed, filePath)
		case statusCode[0] == 'A':
			status.Added = append(status.Added, filePath)
		case statusCode[0] == 'D', statusCode[1] == 'D':
			status.Deleted = append(status.Deleted, filePath)
		default:
			// Modified, type changes, unmerged and the rest
			status.Modified = append(status.Modified, filePath)
		}

		status.HasChanges = true
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse git status: %w", err)
	}

	return status, nil
}

// unquote strips the C-style quotes git adds around unusual paths.
func unquote(p string) string {
	if len(p) >= 2 && p[0] == '"' && p[len(p)-1] == '"' {
		return strings.ReplaceAll(p[1:len(p)-1], `\"`, `"`)
	}
	return p
}

// DirtyPaths returns the paths, given relative to root, that have
// uncommitted changes. root may be a subdirectory of the repository.
// SECURITY: root must be a validated, trusted path.
func (g *Git) DirtyPaths(ctx context.Context, root string, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	prefixOut, err := exec.CommandContext(ctx, g.gitPath, "-C", root, "rev-parse", "--show-prefix").Output()
	if err != nil {
		return nil, fmt.Errorf("git rev-parse failed in %s: %w", root, err)
	}
	prefix := strings.TrimSpace(string(prefixOut))

	status, err := g.GetStatus(ctx, root)
	if err != nil {
		return nil, err
	}
	changed := make(map[string]bool)
	for _, p := range status.All() {
		changed[p] = true
	}

	var dirty []string
	for _, p := range paths {
		rel := path.Join(prefix, filepath.ToSlash(filepath.Clean(p)))
		if changed[rel] {
			dirty = append(dirty, p)
		}
	}
	return dirty, nil
}

// CommitChanges creates a git commit.
// SECURITY: repoPath must be a validated, trusted path. This function
// does not perform path validation or sandboxing.
func (g *Git) CommitChanges(ctx context.Context, repoPath string, opts CommitOptions) (string, error) {
	if strings.TrimSpace(opts.Message) == "" {
		return "", fmt.Errorf("commit message is required")
	}

	// Stage the given paths; -A also records deletions
	if len(opts.Paths) > 0 {
		args := append([]string{"-C", repoPath, "add", "-A", "--"}, opts.Paths...)
		if out, err := exec.CommandContext(ctx, g.gitPath, args...).CombinedOutput(); err != nil {
			return "", fmt.Errorf("git add failed in %s: %w: %s", repoPath, err, strings.TrimSpace(string(out)))
		}
	}

	args := []string{"-C", repoPath, "commit", "-m", opts.Message}
	if opts.Author != "" {
		args = append(args, "--author", opts.Author)
	}
	if opts.AllowEmpty {
		args = append(args, "--allow-empty")
	}
	if len(opts.Paths) > 0 {
		// Commit only these paths even if other files are staged
		args = append(args, "--")
		args = append(args, opts.Paths...)
	}

	if out, err := exec.CommandContext(ctx, g.gitPath, args...).CombinedOutput(); err != nil {
		return "", fmt.Errorf("git commit failed in %s: %w: %s", repoPath, err, strings.TrimSpace(string(out)))
	}

	// Get the commit hash
	hashOutput, err := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "rev-parse", "HEAD").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get commit hash in %s: %w", repoPath, err)
	}

	return strings.TrimSpace(string(hashOutput)), nil
}
