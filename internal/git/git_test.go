package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// initRepo creates a repository with one committed file, tracked.txt.
func initRepo(t *testing.T) (string, *Git) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	ctx := context.Background()
	dir := t.TempDir()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}
	run("init")
	run("config", "user.name", "Test User")
	run("config", "user.email", "test@example.com")
	run("config", "commit.gpgsign", "false")

	if err := os.WriteFile(filepath.Join(dir, "tracked.txt"), []byte("v1\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	run("add", "tracked.txt")
	run("commit", "-m", "initial")

	g, err := NewGit(ctx)
	if err != nil {
		t.Fatalf("Failed to create Git instance: %v", err)
	}
	return dir, g
}

func TestGitOperations(t *testing.T) {
	ctx := context.Background()
	dir, git := initRepo(t)

	t.Run("IsRepo", func(t *testing.T) {
		if !git.IsRepo(ctx, dir) {
			t.Error("Expected repository to be detected")
		}
		if git.IsRepo(ctx, t.TempDir()) {
			t.Error("Expected plain directory not to be a repository")
		}
	})

	t.Run("NoChangesInCleanRepo", func(t *testing.T) {
		hasChanges, err := git.HasUncommittedChanges(ctx, dir)
		if err != nil {
			t.Fatalf("HasUncommittedChanges failed: %v", err)
		}
		if hasChanges {
			t.Error("Expected no uncommitted changes in clean repo")
		}
	})

	t.Run("GetDetailedStatus", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "tracked.txt"), []byte("v2\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.MkdirAll(filepath.Join(dir, "src", "ui"), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "src", "ui", "new.ts"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		status, err := git.GetStatus(ctx, dir)
		if err != nil {
			t.Fatalf("GetStatus failed: %v", err)
		}
		if !status.HasChanges {
			t.Error("Expected HasChanges to be true")
		}
		if len(status.Modified) != 1 || status.Modified[0] != "tracked.txt" {
			t.Errorf("Modified = %v, want [tracked.txt]", status.Modified)
		}
		if len(status.Untracked) != 1 || status.Untracked[0] != "src/ui/new.ts" {
			t.Errorf("Untracked = %v, want [src/ui/new.ts]", status.Untracked)
		}
	})

	t.Run("DirtyPaths", func(t *testing.T) {
		dirty, err := git.DirtyPaths(ctx, dir, []string{"tracked.txt", "src/ui/new.ts", "src/other.ts", "./tracked.txt"})
		if err != nil {
			t.Fatalf("DirtyPaths failed: %v", err)
		}
		want := []string{"./tracked.txt", "src/ui/new.ts", "tracked.txt"}
		sort.Strings(dirty)
		if strings.Join(dirty, ",") != strings.Join(want, ",") {
			t.Errorf("DirtyPaths = %v, want %v", dirty, want)
		}
	})

	t.Run("DirtyPathsFromSubdirectory", func(t *testing.T) {
		dirty, err := git.DirtyPaths(ctx, filepath.Join(dir, "src"), []string{"ui/new.ts", "other.ts"})
		if err != nil {
			t.Fatalf("DirtyPaths failed: %v", err)
		}
		if len(dirty) != 1 || dirty[0] != "ui/new.ts" {
			t.Errorf("DirtyPaths = %v, want [ui/new.ts]", dirty)
		}
	})

	t.Run("CommitOnlyGivenPaths", func(t *testing.T) {
		hash, err := git.CommitChanges(ctx, dir, CommitOptions{
			Message: "Apply feedback changes",
			Paths:   []string{"src/ui/new.ts"},
		})
		if err != nil {
			t.Fatalf("CommitChanges failed: %v", err)
		}
		if len(hash) < 7 {
			t.Errorf("Unexpected commit hash %q", hash)
		}

		status, err := git.GetStatus(ctx, dir)
		if err != nil {
			t.Fatalf("GetStatus failed: %v", err)
		}
		if len(status.Untracked) != 0 {
			t.Errorf("Expected new file to be committed, untracked = %v", status.Untracked)
		}
		if len(status.Modified) != 1 || status.Modified[0] != "tracked.txt" {
			t.Errorf("Expected tracked.txt to stay uncommitted, modified = %v", status.Modified)
		}
	})

	t.Run("CommitDeletion", func(t *testing.T) {
		if err := os.Remove(filepath.Join(dir, "src", "ui", "new.ts")); err != nil {
			t.Fatal(err)
		}
		if _, err := git.CommitChanges(ctx, dir, CommitOptions{
			Message: "Revert feedback changes",
			Paths:   []string{"src/ui/new.ts"},
		}); err != nil {
			t.Fatalf("CommitChanges failed: %v", err)
		}
		dirty, err := git.DirtyPaths(ctx, dir, []string{"src/ui/new.ts"})
		if err != nil {
			t.Fatal(err)
		}
		if len(dirty) != 0 {
			t.Errorf("Expected deletion to be committed, dirty = %v", dirty)
		}
	})
}

func TestGitOperations_ErrorCases(t *testing.T) {
	ctx := context.Background()
	dir, git := initRepo(t)

	t.Run("InvalidRepoPath", func(t *testing.T) {
		if _, err := git.GetStatus(ctx, filepath.Join(dir, "missing")); err == nil {
			t.Error("Expected error for missing path")
		}
	})

	t.Run("StatusInNonRepo", func(t *testing.T) {
		if _, err := git.HasUncommittedChanges(ctx, t.TempDir()); err == nil {
			t.Error("Expected error outside a repository")
		}
	})

	t.Run("EmptyCommitMessage", func(t *testing.T) {
		for _, msg := range []string{"", "   \n"} {
			_, err := git.CommitChanges(ctx, dir, CommitOptions{Message: msg, AllowEmpty: true})
			if err == nil || !strings.Contains(err.Error(), "commit message is required") {
				t.Errorf("Expected message error for %q, got %v", msg, err)
			}
		}
	})

	t.Run("DirtyPathsNoPaths", func(t *testing.T) {
		dirty, err := git.DirtyPaths(ctx, t.TempDir(), nil)
		if err != nil || dirty != nil {
			t.Errorf("Expected nil, nil; got %v, %v", dirty, err)
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := git.GetStatus(cancelled, dir); err == nil {
			t.Error("Expected error with cancelled context")
		}
	})
}

func TestParseStatus(t *testing.T) {
	out := strings.Join([]string{
		" M modified.go",
		"MM both.go",
		"A  added.go",
		"AM added_then_edited.go",
		" D removed.go",
		"D  staged_removal.go",
		"R  old.go -> new.go",
		"?? \"with space.go\"",
		"UU conflict.go",
		"",
	}, "\n")

	status, err := parseStatus(out)
	if err != nil {
		t.Fatalf("parseStatus failed: %v", err)
	}

	check := func(name string, got []string, want ...string) {
		t.Helper()
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	check("Modified", status.Modified, "modified.go", "both.go", "conflict.go")
	check("Added", status.Added, "added.go", "added_then_edited.go")
	check("Deleted", status.Deleted, "removed.go", "staged_removal.go")
	check("Renamed", status.Renamed, "new.go")
	check("Untracked", status.Untracked, "with space.go")
	if !status.HasChanges {
		t.Error("Expected HasChanges")
	}
	if len(status.All()) != 10-1 {
		t.Errorf("All() returned %d paths, want 9", len(status.All()))
	}
}
