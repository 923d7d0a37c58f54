package git

import (
	"context"
)

// Operations is the subset of git the CLI relies on. It exists so commands
// can be tested without a git binary.
type Operations interface {
	// HasUncommittedChanges checks if there are uncommitted changes in the repository.
	HasUncommittedChanges(ctx context.Context, repoPath string) (bool, error)

	// GetStatus returns detailed git status information.
	GetStatus(ctx context.Context, repoPath string) (*Status, error)

	// DirtyPaths returns the subset of paths (relative to root) that have
	// uncommitted changes.
	DirtyPaths(ctx context.Context, root string, paths []string) ([]string, error)

	// CommitChanges creates a commit with the given message.
	// Returns the commit hash if successful.
	CommitChanges(ctx context.Context, repoPath string, opts CommitOptions) (string, error)
}

// Status represents the git status of a repository. Paths are relative to
// the repository top level.
type Status struct {
	// Modified files (staged or unstaged)
	Modified []string

	// Untracked files
	Untracked []string

	// Deleted files
	Deleted []string

	// Added files (staged)
	Added []string

	// Renamed files (new name)
	Renamed []string

	// HasChanges is true if any changes exist
	HasChanges bool
}

// All returns every changed path.
func (s *Status) All() []string {
	out := make([]string, 0, len(s.Modified)+len(s.Untracked)+len(s.Deleted)+len(s.Added)+len(s.Renamed))
	out = append(out, s.Modified...)
	out = append(out, s.Untracked...)
	out = append(out, s.Deleted...)
	out = append(out, s.Added...)
	out = append(out, s.Renamed...)
	return out
}

// CommitOptions configures a git commit operation.
type CommitOptions struct {
	// Message is the commit message
	Message string

	// Author specifies the author (optional, uses git config if empty)
	Author string

	// Paths limits staging to these paths, relative to repoPath.
	// Deleted paths are staged as removals.
	Paths []string

	// AllowEmpty allows creating an empty commit
	AllowEmpty bool
}
